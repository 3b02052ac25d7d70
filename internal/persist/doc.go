// Package persist turns candidate frames into files: one still per frame,
// an MJPEG stream of every persisted frame, and an optional drapto re-encode
// of that stream once the run stops.
package persist
