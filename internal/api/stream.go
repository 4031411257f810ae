package api

import (
	"errors"
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/brianly1003/aidev/internal/domain"
)

// streamReadSize is the read buffer size for streamed answers.
const streamReadSize = 4096

// Stream yields a streamed answer as text chunks in arrival order. A chunk
// never ends in the middle of a multi-byte UTF-8 sequence.
type Stream struct {
	op      string
	body    io.ReadCloser
	buf     []byte
	pending []byte

	mu     sync.Mutex
	closed bool
}

func newStream(op string, body io.ReadCloser) *Stream {
	return &Stream{
		op:   op,
		body: body,
		buf:  make([]byte, streamReadSize),
	}
}

// Next returns the next chunk. It returns io.EOF once the answer is
// complete. A transport failure mid-stream is returned as a NetworkError.
func (s *Stream) Next() (string, error) {
	for {
		n, err := s.body.Read(s.buf)
		if n > 0 {
			data := append(s.pending, s.buf[:n]...)
			cut := completePrefix(data)
			s.pending = append([]byte(nil), data[cut:]...)
			if cut > 0 {
				return string(data[:cut]), nil
			}
		}

		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			if len(s.pending) > 0 {
				// Flush whatever is left, even if it is not valid UTF-8.
				rest := string(s.pending)
				s.pending = nil
				return rest, nil
			}
			return "", io.EOF
		}
		if s.isClosed() {
			return "", io.EOF
		}
		return "", domain.NewNetworkError(s.op, err)
	}
}

// Each calls fn for every chunk until the stream ends.
func (s *Stream) Each(fn func(chunk string)) error {
	for {
		chunk, err := s.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fn(chunk)
	}
}

// Text drains the stream and returns the concatenated answer.
func (s *Stream) Text() (string, error) {
	var sb strings.Builder
	err := s.Each(func(chunk string) {
		sb.WriteString(chunk)
	})
	return sb.String(), err
}

// Close releases the underlying connection. It is safe to call more than
// once and from another goroutine than the reader.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.body.Close()
}

func (s *Stream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// completePrefix returns the length of the longest prefix of data that does
// not end inside an incomplete UTF-8 sequence.
func completePrefix(data []byte) int {
	end := len(data)
	// A rune is at most utf8.UTFMax bytes, so only the tail needs checking.
	for i := end - 1; i >= 0 && i >= end-utf8.UTFMax; i-- {
		if !utf8.RuneStart(data[i]) {
			continue
		}
		if utf8.FullRune(data[i:]) {
			return end
		}
		return i
	}
	return end
}
