// Package frame models raw camera frames and the candidate descriptors that
// move between pipeline stages.
//
// Pixel storage is held by an owned buffer handle. Exactly one stage owns a
// frame at a time; the owner must call Release once when the frame is
// consumed, dropped, or evicted. A Ledger counts allocations and releases so
// tests and the status surface can prove the balance.
package frame
