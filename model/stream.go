package model

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"sync"

	json "github.com/goccy/go-json"
)

var doneMarker = []byte("[DONE]")

// sseStream pulls text fragments out of a server-sent-events response body.
// It is single-consumer: Recv is the only way to advance the stream, and a
// stream that returned io.EOF or an error stays terminated.
type sseStream struct {
	ctx     context.Context
	body    io.ReadCloser
	scanner *bufio.Scanner

	mu     sync.Mutex
	closed bool
}

func newSSEStream(ctx context.Context, body io.ReadCloser) *sseStream {
	scanner := bufio.NewScanner(body)
	// Large chunks: provider deltas occasionally exceed the default token.
	scanner.Buffer(make([]byte, 4096), 1024*1024)

	return &sseStream{
		ctx:     ctx,
		body:    body,
		scanner: scanner,
	}
}

// Recv returns the next non-empty text fragment, io.EOF on completion, or
// the context error once cancellation is observed. Fragments arrive in
// generation order and are never repeated: each parsed chunk is surfaced
// exactly once before the scanner advances.
func (s *sseStream) Recv() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", io.EOF
	}
	if err := s.ctx.Err(); err != nil {
		s.closeLocked()
		return "", err
	}

	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		line = bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data:")))
		if bytes.Equal(line, doneMarker) {
			s.closeLocked()
			return "", io.EOF
		}

		var chunk StreamChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			// Comments and keep-alive lines are not chunks.
			continue
		}
		if content := chunk.Content(); content != "" {
			return content, nil
		}
	}

	if err := s.scanner.Err(); err != nil {
		s.closeLocked()
		// A transport abort surfaces as a read error; report it as the
		// cancellation it is.
		if ctxErr := s.ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", err
	}

	s.closeLocked()
	return "", io.EOF
}

// Close releases the response body. Safe to call multiple times.
func (s *sseStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *sseStream) closeLocked() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
