package memory

import (
	"context"
	"sync"

	"github.com/wirechat/wirechat/core/protocol"
)

// bufferStrategy replays the full conversation verbatim. Unbounded, so it
// suits short sessions; long-running sessions want a compacting strategy.
type bufferStrategy struct {
	mu   sync.Mutex
	hist history
}

func newBuffer() *bufferStrategy {
	return &bufferStrategy{}
}

func (s *bufferStrategy) Kind() Kind {
	return KindBuffer
}

func (s *bufferStrategy) Read(ctx context.Context) ([]protocol.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.tail(len(s.hist.turns)), nil
}

func (s *bufferStrategy) Write(ctx context.Context, user, assistant string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hist.appendPair(user, assistant)
	return nil
}

func (s *bufferStrategy) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hist.reset()
}
