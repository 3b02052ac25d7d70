package persist

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"

	"framewatch/internal/frame"
	"framewatch/internal/vision"
)

// Files is the pure-Go Persister. Stills go through imaging's encoders; the
// running video is a concatenated JPEG (MJPEG) stream.
type Files struct {
	videoPath   string
	jpegQuality int

	mu     sync.Mutex
	video  *os.File
	buf    *bufio.Writer
	frames int
}

var _ vision.Persister = (*Files)(nil)

// NewFiles returns a Persister. An empty videoPath disables AppendVideo.
func NewFiles(opts vision.PersisterOptions) *Files {
	quality := opts.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = 90
	}
	return &Files{videoPath: opts.VideoPath, jpegQuality: quality}
}

// SaveStill encodes f to path; the format follows the extension.
func (p *Files) SaveStill(f frame.Frame, path string) error {
	if f.Empty() {
		return fmt.Errorf("save %s: empty frame", filepath.Base(path))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create still dir: %w", err)
	}
	return imaging.Save(f.Image(), path, imaging.JPEGQuality(p.jpegQuality))
}

// AppendVideo appends one JPEG frame to the stream.
func (p *Files) AppendVideo(f frame.Frame) error {
	if p.videoPath == "" {
		return nil
	}
	if f.Empty() {
		return fmt.Errorf("append video: empty frame")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.video == nil {
		if err := os.MkdirAll(filepath.Dir(p.videoPath), 0o755); err != nil {
			return fmt.Errorf("create video dir: %w", err)
		}
		file, err := os.OpenFile(p.videoPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open video: %w", err)
		}
		p.video = file
		p.buf = bufio.NewWriter(file)
	}
	if err := imaging.Encode(p.buf, f.Image(), imaging.JPEG, imaging.JPEGQuality(p.jpegQuality)); err != nil {
		return fmt.Errorf("encode video frame: %w", err)
	}
	p.frames++
	return nil
}

// VideoFrames reports how many frames were appended.
func (p *Files) VideoFrames() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frames
}

func (p *Files) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.video == nil {
		return nil
	}
	flushErr := p.buf.Flush()
	closeErr := p.video.Close()
	p.video, p.buf = nil, nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// StillExt normalizes a configured still format into an extension.
func StillExt(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "png":
		return "png"
	case "bmp":
		return "bmp"
	default:
		return "jpg"
	}
}
