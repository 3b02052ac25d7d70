// Package mailbox implements the bounded hand-off queues that connect
// pipeline stages.
//
// A Queue is a priority-ordered bounded mailbox where priority only breaks
// ties: equal-priority messages are delivered in send order. TrySend never
// retries on its own; a full queue reports ErrFull and the caller applies its
// admission policy (usually drop and release). Receive reports ErrWouldBlock
// when nothing arrives within the window, which is the normal idle state
// between releases and must not be treated as a failure.
package mailbox
