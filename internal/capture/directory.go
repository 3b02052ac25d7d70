package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"framewatch/internal/frame"
	"framewatch/internal/vision"
)

var replayExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff"}

// Directory replays the images in a directory in lexical order, looping
// when the end is reached. Images are resized to the configured
// dimensions.
type Directory struct {
	ledger *frame.Ledger
	dir    string

	mu     sync.Mutex
	files  []string
	next   int
	width  int
	height int
	seq    uint64
}

var _ vision.Capture = (*Directory)(nil)

// NewDirectory returns a replay source over dir.
func NewDirectory(ledger *frame.Ledger, dir string) *Directory {
	return &Directory{ledger: ledger, dir: dir}
}

// Open scans the directory. The device index is ignored.
func (d *Directory) Open(int) error {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return fmt.Errorf("read replay dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if slices.Contains(replayExtensions, strings.ToLower(filepath.Ext(entry.Name()))) {
			files = append(files, filepath.Join(d.dir, entry.Name()))
		}
	}
	if len(files) == 0 {
		return fmt.Errorf("replay dir %s contains no images", d.dir)
	}
	slices.Sort(files)
	d.mu.Lock()
	d.files = files
	d.next = 0
	d.mu.Unlock()
	return nil
}

func (d *Directory) Configure(width, height int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.width, d.height = width, height
	return nil
}

// Next decodes the next image. A file that fails to decode yields an empty
// frame and the error; the cursor still advances.
func (d *Directory) Next(ctx context.Context) (frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return frame.Frame{}, err
	}
	d.mu.Lock()
	if len(d.files) == 0 {
		d.mu.Unlock()
		return frame.Frame{}, fmt.Errorf("replay dir %s not open", d.dir)
	}
	path := d.files[d.next]
	d.next = (d.next + 1) % len(d.files)
	width, height := d.width, d.height
	d.seq++
	seq := d.seq
	d.mu.Unlock()

	img, err := imaging.Open(path)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if width > 0 && height > 0 {
		b := img.Bounds()
		if b.Dx() != width || b.Dy() != height {
			img = imaging.Resize(img, width, height, imaging.Linear)
		}
	}
	f := frame.FromImage(d.ledger, img, frame.FormatRGB)
	f.Seq = seq
	f.Captured = time.Now()
	return f, nil
}

func (d *Directory) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files = nil
	return nil
}
