// Package realtime applies OS scheduling attributes to the calling thread.
//
// Stage workers lock their goroutine to an OS thread and, when enabled, ask
// the kernel for SCHED_FIFO priority and a CPU affinity mask. Failures (most
// often missing CAP_SYS_NICE) are reported to the caller, which logs them and
// keeps running under the default scheduler.
package realtime
