package memory

import (
	"context"
	"sync"

	"github.com/wirechat/wirechat/core/protocol"
)

// summaryWindowStrategy combines a rolling summary with a recency window:
// reads expose the summary (when non-empty) followed by the newest 2·size
// raw turns. Whenever the live tail grows past 2·(size+2) turns, the oldest
// excess exchanges are folded into the summary and excluded from future
// reads. Folded turns stay in storage; absorbed marks the cut point. A
// failed fold leaves absorbed and the summary unchanged.
type summaryWindowStrategy struct {
	mu        sync.Mutex
	compactor Compactor
	hist      history
	size      int
	summary   string
	// absorbed counts the prefix of hist already folded into the summary.
	absorbed int
}

func newSummaryWindow(size int, compactor Compactor) *summaryWindowStrategy {
	return &summaryWindowStrategy{size: size, compactor: compactor}
}

func (s *summaryWindowStrategy) Kind() Kind {
	return KindSummaryWindow
}

func (s *summaryWindowStrategy) Read(ctx context.Context) ([]protocol.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := s.hist.turns[s.absorbed:]
	n := 2 * s.size
	if n > len(live) {
		n = len(live)
	}

	turns := make([]protocol.Turn, 0, n+1)
	if s.summary != "" {
		turns = append(turns, protocol.NewTurn(protocol.RoleSystem, s.summary))
	}
	turns = append(turns, live[len(live)-n:]...)
	return turns, nil
}

func (s *summaryWindowStrategy) Write(ctx context.Context, user, assistant string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hist.appendPair(user, assistant)

	// Fold exchange by exchange so a mid-loop failure still leaves a valid
	// summary covering everything before the cut point.
	limit := 2 * (s.size + 2)
	for len(s.hist.turns)-s.absorbed > limit {
		u := s.hist.turns[s.absorbed]
		a := s.hist.turns[s.absorbed+1]
		folded, err := s.compactor.Summarize(ctx, s.summary, u, a)
		if err != nil {
			return &CompactionError{Kind: KindSummaryWindow, Err: err}
		}
		s.summary = folded
		s.absorbed += 2
	}
	return nil
}

func (s *summaryWindowStrategy) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hist.reset()
	s.summary = ""
	s.absorbed = 0
}
