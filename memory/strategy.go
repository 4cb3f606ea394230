// Package memory implements conversational memory for chat sessions. Each
// session owns one Strategy instance that decides how dialogue history is
// compacted between turns: kept verbatim, windowed, rolled into a summary,
// or distilled into an entity table. Strategies that compact via a remote
// call degrade gracefully: a failed compaction leaves the previously
// committed state intact and surfaces a non-fatal CompactionError.
package memory

import (
	"context"
	"fmt"

	"github.com/wirechat/wirechat/core/protocol"
)

// Kind selects a memory strategy. The kind is fixed for a session's lifetime.
type Kind string

const (
	KindBuffer        Kind = "buffer"
	KindWindow        Kind = "window"
	KindSummary       Kind = "summary"
	KindSummaryWindow Kind = "summary_window"
	KindEntity        Kind = "entity"
)

// Valid reports whether the kind names a known strategy.
func (k Kind) Valid() bool {
	switch k {
	case KindBuffer, KindWindow, KindSummary, KindSummaryWindow, KindEntity:
		return true
	}
	return false
}

// requiresCompactor reports whether the strategy performs remote compaction.
func (k Kind) requiresCompactor() bool {
	switch k {
	case KindSummary, KindSummaryWindow, KindEntity:
		return true
	}
	return false
}

// Compactor performs the remote calls that back summarization and entity
// extraction. The model package provides the production implementation.
type Compactor interface {
	// Summarize folds a new user/assistant turn pair into the prior summary
	// and returns the replacement summary text.
	Summarize(ctx context.Context, prior string, user, assistant protocol.Turn) (string, error)
	// Extract proposes entity name→description updates from a turn pair.
	Extract(ctx context.Context, user, assistant protocol.Turn) (map[string]string, error)
}

// Strategy is one session's conversational memory. Read produces the prior
// context to prepend to a request; Write commits a completed user/assistant
// exchange. Implementations serialize Read/Write internally, so concurrent
// callers for the same session never observe partial state.
type Strategy interface {
	// Kind returns the strategy's kind.
	Kind() Kind
	// Read returns the context turns this strategy exposes, oldest first.
	Read(ctx context.Context) ([]protocol.Turn, error)
	// Write commits a completed exchange. A returned *CompactionError means
	// the raw turns were recorded but remote compaction failed; previously
	// committed state is never corrupted.
	Write(ctx context.Context, user, assistant string) error
	// Clear discards all of the strategy's state.
	Clear()
}

// newStrategy creates a Strategy of the given kind. The compactor may be nil
// for kinds that never compact remotely.
func newStrategy(kind Kind, windowSize int, compactor Compactor) (Strategy, error) {
	switch kind {
	case KindBuffer:
		return newBuffer(), nil
	case KindWindow:
		return newWindow(windowSize), nil
	case KindSummary:
		return newSummary(compactor), nil
	case KindSummaryWindow:
		return newSummaryWindow(windowSize, compactor), nil
	case KindEntity:
		return newEntity(compactor), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// history is the shared append-only turn log embedded by strategies. It
// assigns monotonic sequence numbers and retains every turn written, even
// ones a strategy no longer surfaces. Callers hold the strategy mutex.
type history struct {
	turns []protocol.Turn
	seq   uint64
}

func (h *history) append(role protocol.Role, content string) protocol.Turn {
	h.seq++
	turn := protocol.Turn{Role: role, Content: content, Sequence: h.seq}
	h.turns = append(h.turns, turn)
	return turn
}

func (h *history) appendPair(user, assistant string) (protocol.Turn, protocol.Turn) {
	u := h.append(protocol.RoleUser, user)
	a := h.append(protocol.RoleAssistant, assistant)
	return u, a
}

// tail returns a copy of the newest n turns.
func (h *history) tail(n int) []protocol.Turn {
	if n > len(h.turns) {
		n = len(h.turns)
	}
	out := make([]protocol.Turn, n)
	copy(out, h.turns[len(h.turns)-n:])
	return out
}

func (h *history) reset() {
	h.turns = nil
	h.seq = 0
}
