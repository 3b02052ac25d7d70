// Package stage runs one pipeline stage worker.
//
// A Runner owns the outer loop every stage shares: wait on the stage's
// release signal with a timeout, run one bounded unit of work, account for
// its timing, and check the keep-running flag at the loop head. Stop clears
// the flag and interrupts the wait; a unit already in progress always runs to
// completion before the loop exits.
package stage
