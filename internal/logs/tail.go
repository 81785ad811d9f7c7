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
)

const (
	defaultPollInterval = 250 * time.Millisecond
	maxLineBytes        = 1024 * 1024
)

// Reader reads a log file by byte offset.
type Reader struct {
	path         string
	pollInterval time.Duration
	match        string
}

// Option customizes a Reader.
type Option func(*Reader)

// WithPollInterval sets how often Follow checks for new lines.
func WithPollInterval(d time.Duration) Option {
	return func(r *Reader) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// WithMatch keeps only lines containing substr.
func WithMatch(substr string) Option {
	return func(r *Reader) {
		r.match = strings.TrimSpace(substr)
	}
}

// NewReader returns a reader for path. The file does not need to exist yet.
func NewReader(path string, opts ...Option) *Reader {
	r := &Reader{path: path, pollInterval: defaultPollInterval}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Last returns up to limit trailing lines and the offset just past them.
// A missing file yields no lines and offset 0.
func (r *Reader) Last(limit int) ([]string, int64, error) {
	file, size, err := r.open()
	if err != nil || file == nil {
		return nil, 0, err
	}
	defer file.Close()
	if limit <= 0 {
		return nil, size, nil
	}

	ring := make([]string, limit)
	count, next := 0, 0
	offset, err := r.scan(file, func(line string) {
		ring[next] = line
		next = (next + 1) % limit
		if count < limit {
			count++
		}
	})
	if err != nil {
		return nil, 0, err
	}

	lines := make([]string, count)
	start := 0
	if count == limit {
		start = next
	}
	for i := range lines {
		lines[i] = ring[(start+i)%limit]
	}
	return lines, offset, nil
}

// From returns every line after offset and the offset just past them.
func (r *Reader) From(offset int64) ([]string, int64, error) {
	file, size, err := r.open()
	if err != nil || file == nil {
		return nil, 0, err
	}
	defer file.Close()
	if offset < 0 || offset > size {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}
	var lines []string
	end, err := r.scan(file, func(line string) {
		lines = append(lines, line)
	})
	if err != nil {
		return nil, 0, err
	}
	return lines, offset + end, nil
}

// Follow calls emit for each line written after offset until ctx ends or emit
// fails. Cancellation is not reported as an error.
func (r *Reader) Follow(ctx context.Context, offset int64, emit func(string) error) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		lines, next, err := r.From(offset)
		if err != nil {
			return err
		}
		offset = next
		for _, line := range lines {
			if err := emit(line); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (r *Reader) open() (*os.File, int64, error) {
	file, err := os.Open(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, 0, fmt.Errorf("log path %q is a directory", r.path)
	}
	return file, info.Size(), nil
}

// scan feeds complete lines to fn and returns the number of bytes consumed.
// A trailing partial line is left for the next read.
func (r *Reader) scan(file io.Reader, fn func(string)) (int64, error) {
	reader := bufio.NewReaderSize(file, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			return consumed, nil
		}
		if err != nil {
			return 0, fmt.Errorf("read log file: %w", err)
		}
		consumed += int64(len(line))
		if len(line) > maxLineBytes {
			line = line[:maxLineBytes]
		}
		line = strings.TrimRight(line, "\r\n")
		if r.match == "" || strings.Contains(line, r.match) {
			fn(line)
		}
	}
}
