// Command framewatch runs the motion capture pipeline and inspects it.
//
// `framewatch run` drives one pipeline in the foreground until the frame
// target is reached or the process is signalled. The other commands talk to
// a running instance over its control socket or read the capture index
// directly when nothing is running.
package main
