//go:build opencv

// Package opencv implements the vision collaborators over gocv. It is only
// compiled with -tags opencv because it links against the OpenCV C++
// libraries.
package opencv
