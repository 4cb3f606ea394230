// Package protocol defines the conversation data model and the wire frame
// vocabulary shared by the server, memory, and model subsystems.
package protocol

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the three conversation roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Turn is a single role-tagged message in a conversation's history.
// Sequence is a per-session monotonic counter assigned by the memory
// strategy that owns the turn. Turns are immutable once created.
type Turn struct {
	Role     Role   `json:"role"`
	Content  string `json:"content"`
	Sequence uint64 `json:"-"`
}

// NewTurn creates a Turn with the given role and content. The sequence
// number is zero until the owning strategy assigns one.
func NewTurn(role Role, content string) Turn {
	return Turn{Role: role, Content: content}
}
