package core

import "fmt"

// Role identifies the author of a dialogue message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// GenerationMessage is one turn of dialogue history sent to a generation
// backend.
type GenerationMessage struct {
	Role    Role
	Content string
}

// GenerationRequest asks a generation backend for the next assistant reply.
type GenerationRequest struct {
	SystemPrompt string
	Messages     []GenerationMessage
}

// GenerationResponse is a completed assistant reply.
type GenerationResponse struct {
	Content string
}

// BackendError is a failure reported by an external backend, carrying the
// HTTP status when one was received.
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("backend error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend error: %s", e.Message)
}
