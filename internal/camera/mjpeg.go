package camera

import (
	"bytes"
	"strings"
	"sync"
)

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// maxPendingFrame caps buffered bytes while waiting for an end-of-image marker.
const maxPendingFrame = 10 << 20

// frameSplitter cuts a concatenated MJPEG byte stream into whole JPEG frames.
type frameSplitter struct {
	buf []byte
}

// Feed appends chunk and returns every frame it completed.
func (s *frameSplitter) Feed(chunk []byte) [][]byte {
	s.buf = append(s.buf, chunk...)
	var frames [][]byte
	for {
		start := bytes.Index(s.buf, jpegSOI)
		if start < 0 {
			// A trailing 0xFF may be the first half of a split SOI.
			if n := len(s.buf); n > 0 && s.buf[n-1] == 0xFF {
				s.buf = append(s.buf[:0], 0xFF)
			} else {
				s.buf = s.buf[:0]
			}
			return frames
		}
		if start > 0 {
			s.buf = append(s.buf[:0], s.buf[start:]...)
		}
		end := bytes.Index(s.buf[len(jpegSOI):], jpegEOI)
		if end < 0 {
			if len(s.buf) > maxPendingFrame {
				s.buf = s.buf[:0]
			}
			return frames
		}
		end += len(jpegSOI) + len(jpegEOI)
		frames = append(frames, bytes.Clone(s.buf[:end]))
		s.buf = append(s.buf[:0], s.buf[end:]...)
	}
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	data  []byte
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data, p...)
	if over := len(b.data) - b.limit; over > 0 {
		b.data = append(b.data[:0], b.data[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.data)
}

// LastLine returns the last non-empty line written.
func (b *tailBuffer) LastLine() string {
	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
