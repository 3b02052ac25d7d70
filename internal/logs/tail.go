package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"framewatch/internal/ring"
)

const maxLineBytes = 1024 * 1024

// Chunk is a batch of lines and the file offset after the last one.
type Chunk struct {
	Lines  []string
	Offset int64
}

// Last returns up to limit trailing lines of path. A missing file yields an
// empty chunk at offset zero.
func Last(path string, limit int) (Chunk, error) {
	file, err := open(path)
	if err != nil || file == nil {
		return Chunk{}, err
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return Chunk{}, fmt.Errorf("seek log file: %w", err)
		}
		return Chunk{Offset: end}, nil
	}

	tail := ring.New[string](limit)
	offset, err := scan(file, func(line string) { tail.Put(line) })
	if err != nil {
		return Chunk{}, err
	}
	lines := make([]string, 0, tail.Size())
	for line, ok := tail.Get(); ok; line, ok = tail.Get() {
		lines = append(lines, line)
	}
	return Chunk{Lines: lines, Offset: offset}, nil
}

// From returns every complete line after offset. An offset past the end of
// the file (after truncation or rotation) restarts from zero.
func From(path string, offset int64) (Chunk, error) {
	file, err := open(path)
	if err != nil || file == nil {
		return Chunk{Offset: 0}, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Chunk{}, fmt.Errorf("stat log file: %w", err)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return Chunk{}, fmt.Errorf("seek log file: %w", err)
	}

	var lines []string
	read, err := scan(file, func(line string) { lines = append(lines, line) })
	if err != nil {
		return Chunk{}, err
	}
	return Chunk{Lines: lines, Offset: offset + read}, nil
}

// Follow polls path every interval starting at offset and calls emit for
// each new line. It returns ctx.Err() when the context ends.
func Follow(ctx context.Context, path string, offset int64, interval time.Duration, emit func(string)) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		chunk, err := From(path, offset)
		if err != nil {
			return err
		}
		for _, line := range chunk.Lines {
			emit(line)
		}
		offset = chunk.Offset

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func open(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("log path %q is a directory", path)
	}
	return file, nil
}

// scan feeds complete lines to fn and returns the bytes consumed. A trailing
// partial line is left for the next read.
func scan(r io.Reader, fn func(string)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadSlice('\n')
		if err == nil {
			consumed += int64(len(line))
			fn(string(line[:len(line)-1]))
			continue
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			// Overlong line: consume it whole.
			rest, restErr := reader.ReadString('\n')
			if restErr != nil {
				return consumed, nil
			}
			consumed += int64(len(line) + len(rest))
			full := strings.TrimSuffix(string(line)+rest, "\n")
			if len(full) > maxLineBytes {
				full = full[:maxLineBytes]
			}
			fn(full)
			continue
		}
		if errors.Is(err, io.EOF) {
			return consumed, nil
		}
		return consumed, fmt.Errorf("read log file: %w", err)
	}
}
