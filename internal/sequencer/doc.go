// Package sequencer drives the pipeline from a single fixed-rate tick.
//
// On every tick the sequencer increments a monotonic counter and posts the
// release signal of each stage whose divisor divides the counter. Stage rates
// must divide the base rate exactly; anything else is a configuration error
// caught at construction. The sequencer also tracks the completion counter
// that moves the pipeline from Running to Draining once the target frame
// count is reached.
package sequencer
