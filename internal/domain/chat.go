package domain

// RoleSystem only appears in one-shot extraction requests; thread turns are
// always user or assistant.
const RoleSystem Role = "system"

// ChatMessage is one message of a stateless structured-extraction request,
// sent outside any conversation thread.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
