package memory

import (
	"context"
	"sync"

	"github.com/wirechat/wirechat/core/protocol"
)

// summaryStrategy keeps a rolling summary instead of raw history, so the
// exposed context stays O(1) in conversation length. Each write folds the
// new exchange into the summary via a remote call. A failed fold leaves the
// previous summary untouched and queues the exchange for retry on the next
// write, so the summary is at worst stale, never corrupted.
type summaryStrategy struct {
	mu        sync.Mutex
	compactor Compactor
	hist      history
	summary   string
	// pending holds exchanges written but not yet folded into the summary,
	// oldest first. Non-empty only after a failed fold.
	pending []exchange
}

type exchange struct {
	user      protocol.Turn
	assistant protocol.Turn
}

func newSummary(compactor Compactor) *summaryStrategy {
	return &summaryStrategy{compactor: compactor}
}

func (s *summaryStrategy) Kind() Kind {
	return KindSummary
}

func (s *summaryStrategy) Read(ctx context.Context) ([]protocol.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.summary == "" {
		return nil, nil
	}
	return []protocol.Turn{protocol.NewTurn(protocol.RoleSystem, s.summary)}, nil
}

func (s *summaryStrategy) Write(ctx context.Context, user, assistant string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, a := s.hist.appendPair(user, assistant)
	s.pending = append(s.pending, exchange{user: u, assistant: a})

	for len(s.pending) > 0 {
		ex := s.pending[0]
		folded, err := s.compactor.Summarize(ctx, s.summary, ex.user, ex.assistant)
		if err != nil {
			return &CompactionError{Kind: KindSummary, Err: err}
		}
		s.summary = folded
		s.pending = s.pending[1:]
	}
	return nil
}

func (s *summaryStrategy) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hist.reset()
	s.summary = ""
	s.pending = nil
}
