package chat

// Role identifies the author of a transcript turn. The set is closed;
// anything else arriving at the service boundary is rejected.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the three accepted roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is a single transcript turn. Content is exactly what was shown
// to the user; injected document context never appears here.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
