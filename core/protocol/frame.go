package protocol

import (
	"errors"
	"strings"

	json "github.com/goccy/go-json"
)

// FrameType identifies a server-to-client frame.
type FrameType string

const (
	FrameReady FrameType = "ready"
	FrameStart FrameType = "start"
	FrameDelta FrameType = "delta"
	FrameEnd   FrameType = "end"
	FrameError FrameType = "error"
)

// ErrNoInput indicates a client frame that yields no usable conversation
// content after normalization.
var ErrNoInput = errors.New("message contains no usable input")

// ClientMessage is one inbound message in a ClientFrame's explicit history.
// Content must be a plain string; anything else is discarded during
// normalization.
type ClientMessage struct {
	Role    Role `json:"role"`
	Content any  `json:"content"`
}

// ClientFrame is a client request over the duplex connection. ID is assigned
// by the server when absent. Messages, when present and non-empty, is used
// verbatim as the request's input turns; otherwise the trimmed Input becomes
// a single user turn. The remaining fields override per-request generation
// parameters.
type ClientFrame struct {
	ID           string          `json:"id,omitempty"`
	Input        string          `json:"input,omitempty"`
	Messages     []ClientMessage `json:"messages,omitempty"`
	Model        string          `json:"model,omitempty"`
	EnableSearch bool            `json:"enableSearch,omitempty"`
	Temperature  *float64        `json:"temperature,omitempty"`
	MaxTokens    int             `json:"maxTokens,omitempty"`
}

// DecodeClientFrame parses a raw inbound payload. A payload that is not a
// JSON object fails here; content-level validation happens in Normalize.
func DecodeClientFrame(data []byte) (*ClientFrame, error) {
	var frame ClientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, err
	}
	return &frame, nil
}

// Normalize produces the request's input turns. Explicit messages win over
// Input: entries with an invalid role or non-string content are dropped,
// and whatever survives is used verbatim. Without messages, the trimmed
// Input becomes a single user turn. Returns ErrNoInput when nothing usable
// remains.
func (f *ClientFrame) Normalize() ([]Turn, error) {
	if len(f.Messages) > 0 {
		turns := make([]Turn, 0, len(f.Messages))
		for _, msg := range f.Messages {
			content, ok := msg.Content.(string)
			if !ok || !msg.Role.Valid() {
				continue
			}
			turns = append(turns, NewTurn(msg.Role, content))
		}
		if len(turns) == 0 {
			return nil, ErrNoInput
		}
		return turns, nil
	}

	input := strings.TrimSpace(f.Input)
	if input == "" {
		return nil, ErrNoInput
	}
	return []Turn{NewTurn(RoleUser, input)}, nil
}

// ServerFrame is a server-to-client frame. ID correlates start/delta/end
// frames with the request they belong to; error frames omit it when the
// failure precedes request acceptance.
type ServerFrame struct {
	Type    FrameType `json:"type"`
	ID      string    `json:"id,omitempty"`
	Content string    `json:"content,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Encode serializes the frame for transmission.
func (f ServerFrame) Encode() ([]byte, error) {
	return json.Marshal(f)
}

// Ready is emitted once, immediately after connection establishment.
func Ready() ServerFrame {
	return ServerFrame{Type: FrameReady}
}

// Start signals that the request was accepted and generation has begun.
func Start(id string) ServerFrame {
	return ServerFrame{Type: FrameStart, ID: id}
}

// Delta carries one incremental text fragment for an in-flight request.
func Delta(id, content string) ServerFrame {
	return ServerFrame{Type: FrameDelta, ID: id, Content: content}
}

// End signals successful completion of a request's generation.
func End(id string) ServerFrame {
	return ServerFrame{Type: FrameEnd, ID: id}
}

// Error reports a failure. The id is empty for protocol-level failures that
// never produced an accepted request.
func Error(id, message string) ServerFrame {
	return ServerFrame{Type: FrameError, ID: id, Message: message}
}
