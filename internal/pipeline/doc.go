// Package pipeline wires the sequencer, the four stage workers, and the
// hand-off channels between them into one runnable unit.
//
// Acquire pushes frames into a mutex-guarded overwrite-oldest ring.
// Difference drains the ring and sends motion candidates to the Select
// mailbox. Process drains Select, applies the optional transforms, and sends
// to the Write mailbox. Write drains that mailbox, persists each frame, and
// advances the completion counter that ends the run.
//
// Every frame is owned by exactly one holder at a time. A failed send frees
// the frame on the spot; anything still buffered when the run stops is freed
// by the shutdown coordinator. The ledger in Status shows the balance.
//
// Shutdown stops consumers before producers: Write, then Process, then a
// grace delay, then Difference, then Acquire. A stage finishes its current
// drain before it observes the stop.
package pipeline
