package testsupport

import (
	"framewatch/internal/vision"
	"framewatch/internal/vision/software"
)

// Backend returns the software vision backend. It has no device capture.
func Backend() vision.Backend {
	return vision.Backend{Transformer: software.New()}
}
