//go:build !linux

package realtime

import "errors"

var errUnsupported = errors.New("realtime scheduling is only supported on linux")

// Apply is a no-op on non-linux platforms unless a policy is enabled.
func Apply(p Policy) error {
	if !p.Enabled {
		return nil
	}
	return errUnsupported
}

// Current is unsupported on non-linux platforms.
func Current() (Info, error) {
	return Info{}, errUnsupported
}
