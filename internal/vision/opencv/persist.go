//go:build opencv

package opencv

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"framewatch/internal/frame"
	"framewatch/internal/vision"
)

// Persister writes stills with cv::imwrite and appends to an MJPG AVI via
// cv::VideoWriter. The writer opens lazily on the first appended frame.
type Persister struct {
	VideoPath   string
	FPS         float64
	JPEGQuality int

	mu     sync.Mutex
	writer *gocv.VideoWriter
	width  int
	height int
}

var _ vision.Persister = (*Persister)(nil)

func (p *Persister) SaveStill(f frame.Frame, path string) error {
	m, err := toMat(f)
	if err != nil {
		return err
	}
	defer m.Close()
	var params []int
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		if p.JPEGQuality > 0 {
			params = []int{gocv.IMWriteJpegQuality, p.JPEGQuality}
		}
	}
	if ok := gocv.IMWriteWithParams(path, m, params); !ok {
		return fmt.Errorf("imwrite %s failed", path)
	}
	return nil
}

func (p *Persister) AppendVideo(f frame.Frame) error {
	if p.VideoPath == "" {
		return nil
	}
	m, err := bgrMat(f)
	if err != nil {
		return err
	}
	defer m.Close()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer == nil {
		fps := p.FPS
		if fps <= 0 {
			fps = 1
		}
		writer, err := gocv.VideoWriterFile(p.VideoPath, "MJPG", fps, m.Cols(), m.Rows(), true)
		if err != nil {
			return fmt.Errorf("open video writer %s: %w", p.VideoPath, err)
		}
		p.writer, p.width, p.height = writer, m.Cols(), m.Rows()
	}
	if m.Cols() != p.width || m.Rows() != p.height {
		return fmt.Errorf("video frame %dx%d does not match writer %dx%d", m.Cols(), m.Rows(), p.width, p.height)
	}
	return p.writer.Write(m)
}

func (p *Persister) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer == nil {
		return nil
	}
	err := p.writer.Close()
	p.writer = nil
	return err
}
