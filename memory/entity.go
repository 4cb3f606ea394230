package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/wirechat/wirechat/core/protocol"
)

// entityStrategy distills the conversation into a name→description table.
// Each write asks the compactor to propose updates from the new exchange;
// valid entries are merged (later values override, unseen keys persist) and
// a malformed extraction leaves the table unchanged.
type entityStrategy struct {
	mu        sync.Mutex
	compactor Compactor
	hist      history
	entities  map[string]string
}

func newEntity(compactor Compactor) *entityStrategy {
	return &entityStrategy{
		compactor: compactor,
		entities:  make(map[string]string),
	}
}

func (s *entityStrategy) Kind() Kind {
	return KindEntity
}

func (s *entityStrategy) Read(ctx context.Context) ([]protocol.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entities) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(s.entities))
	for name := range s.entities {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Known facts about the conversation:\n")
	for _, name := range names {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(s.entities[name])
		b.WriteString("\n")
	}
	return []protocol.Turn{protocol.NewTurn(protocol.RoleSystem, b.String())}, nil
}

func (s *entityStrategy) Write(ctx context.Context, user, assistant string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, a := s.hist.appendPair(user, assistant)

	updates, err := s.compactor.Extract(ctx, u, a)
	if err != nil {
		return &CompactionError{Kind: KindEntity, Err: err}
	}

	for name, description := range updates {
		if name == "" || description == "" {
			continue
		}
		s.entities[name] = description
	}
	return nil
}

func (s *entityStrategy) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hist.reset()
	s.entities = make(map[string]string)
}
