// Package logs reads the per-run log files written by `framewatch run`.
//
// Last reads the final lines of a file with memory bounded by the line
// count. Follow polls from an offset and hands new lines to a callback until
// the context ends, which is what `framewatch logs --follow` uses.
package logs
