// Package capture provides frame sources for the Acquire stage: a synthetic
// painter, an image-directory replay, and a retrying wrapper that applies
// exponential backoff to empty reads from any vision.Capture.
package capture
