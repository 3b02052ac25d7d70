// Package textutil holds small string helpers for building file names from
// user-supplied identifiers.
package textutil
