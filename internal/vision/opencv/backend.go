//go:build opencv

package opencv

import (
	"framewatch/internal/frame"
	"framewatch/internal/vision"
)

func init() {
	vision.Register("opencv", func(ledger *frame.Ledger) (vision.Backend, error) {
		return vision.Backend{
			Capture:     NewCapture(ledger),
			Transformer: NewTransformer(),
			NewPersister: func(opts vision.PersisterOptions) vision.Persister {
				return &Persister{VideoPath: opts.VideoPath, FPS: opts.FPS, JPEGQuality: opts.JPEGQuality}
			},
			VideoExt: ".avi",
		}, nil
	})
}
