// Package software implements vision.Transformer in pure Go on top of
// disintegration/imaging and golang.org/x/image.
//
// The kernels are simple reference implementations: a fixed-threshold binary
// mask, a Laplacian edge map after the configured smoothing filter, and a
// coarse Hough line search. Circle detection is not provided by this backend.
package software
