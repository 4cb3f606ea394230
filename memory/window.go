package memory

import (
	"context"
	"sync"

	"github.com/wirechat/wirechat/core/protocol"
)

// windowStrategy surfaces only the newest size exchanges (2·size turns) on
// read. The full history is retained so the window size could be changed
// without losing older turns; they are simply never surfaced.
type windowStrategy struct {
	mu   sync.Mutex
	hist history
	size int
}

func newWindow(size int) *windowStrategy {
	return &windowStrategy{size: size}
}

func (s *windowStrategy) Kind() Kind {
	return KindWindow
}

func (s *windowStrategy) Read(ctx context.Context) ([]protocol.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.tail(2 * s.size), nil
}

func (s *windowStrategy) Write(ctx context.Context, user, assistant string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hist.appendPair(user, assistant)
	return nil
}

func (s *windowStrategy) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hist.reset()
}
