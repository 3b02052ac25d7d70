package testsupport

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

// WriteFrames writes one uniform PNG per level into dir, named so lexical
// order matches argument order, and returns dir.
func WriteFrames(t testing.TB, dir string, width, height int, levels ...byte) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	for i, level := range levels {
		img := imaging.New(width, height, color.NRGBA{R: level, G: level, B: level, A: 255})
		path := filepath.Join(dir, fmt.Sprintf("frame_%04d.png", i))
		if err := imaging.Save(img, path); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return dir
}
