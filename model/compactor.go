package model

import (
	"context"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/wirechat/wirechat/core/protocol"
)

const summarizePrompt = `You maintain a running summary of a conversation. ` +
	`Fold the new exchange into the current summary and reply with the ` +
	`replacement summary only, no preamble.`

const extractPrompt = `You maintain a table of facts about a conversation. ` +
	`From the new exchange, extract entities worth remembering and reply ` +
	`with a single JSON object mapping entity name to a short description. ` +
	`Reply with {} if there is nothing to extract. JSON only, no prose.`

// Compactor implements memory compaction (rolling summaries and entity
// extraction) on top of a non-streaming Invoker call.
type Compactor struct {
	invoker Invoker
	model   string
}

// NewCompactor creates a Compactor. An empty model uses the invoker's
// configured default.
func NewCompactor(invoker Invoker, model string) *Compactor {
	return &Compactor{invoker: invoker, model: model}
}

// Summarize folds a user/assistant exchange into the prior summary and
// returns the replacement text.
func (c *Compactor) Summarize(ctx context.Context, prior string, user, assistant protocol.Turn) (string, error) {
	if prior == "" {
		prior = "(none)"
	}

	turns := []protocol.Turn{
		protocol.NewTurn(protocol.RoleSystem, summarizePrompt),
		protocol.NewTurn(protocol.RoleUser, fmt.Sprintf(
			"Current summary:\n%s\n\nNew exchange:\nuser: %s\nassistant: %s",
			prior, user.Content, assistant.Content,
		)),
	}

	out, err := c.invoker.Complete(ctx, turns, Params{Model: c.model})
	if err != nil {
		return "", err
	}

	summary := strings.TrimSpace(out)
	if summary == "" {
		return "", fmt.Errorf("summarizer returned empty text")
	}
	return summary, nil
}

// Extract proposes entity updates from a user/assistant exchange. The reply
// must be a JSON object of name→description strings; fenced code blocks are
// tolerated, anything else is an error and the caller keeps its table.
func (c *Compactor) Extract(ctx context.Context, user, assistant protocol.Turn) (map[string]string, error) {
	turns := []protocol.Turn{
		protocol.NewTurn(protocol.RoleSystem, extractPrompt),
		protocol.NewTurn(protocol.RoleUser, fmt.Sprintf(
			"New exchange:\nuser: %s\nassistant: %s",
			user.Content, assistant.Content,
		)),
	}

	out, err := c.invoker.Complete(ctx, turns, Params{Model: c.model})
	if err != nil {
		return nil, err
	}

	payload := stripFences(out)

	var raw map[string]any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("malformed extraction response: %w", err)
	}

	entities := make(map[string]string, len(raw))
	for name, value := range raw {
		if description, ok := value.(string); ok {
			entities[name] = description
		}
	}
	return entities, nil
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
