// Package chat holds the dialogue domain types: sessions, messages, the
// welcome templates and the declared-identity validation rules.
package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pocketsocrates/core"
)

// Message is one turn of a session's dialogue. Immutable once created.
type Message struct {
	ID        string    `json:"id"`
	Role      core.Role `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage builds a message with a fresh identity and the current
// wall-clock timestamp.
func NewMessage(role core.Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// Session is one conversation thread. The store owns all sessions; nothing
// else mutates them directly.
type Session struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	UserName    string    `json:"user_name"`
	UserAge     int       `json:"user_age"`
	Privileged  bool      `json:"privileged"`
	CreatedAt   time.Time `json:"created_at"`
	Messages    []Message `json:"messages"`
}

// HasMessage reports whether the session already holds a message with the
// given identity.
func (s *Session) HasMessage(id string) bool {
	for _, m := range s.Messages {
		if m.ID == id {
			return true
		}
	}
	return false
}

// AgeError rejects a negative declared age before any session mutation.
// The offending value is carried for the warning dialog.
type AgeError struct {
	Age int
}

func (e *AgeError) Error() string {
	abs := e.Age
	if abs < 0 {
		abs = -abs
	}
	plural := "s"
	if abs == 1 {
		plural = ""
	}
	return fmt.Sprintf("%d years? So you will be born %d year%s after today? Then come to me %d year%s later once you're born.",
		e.Age, abs, plural, abs, plural)
}

// ValidateAge rejects negative declared ages.
func ValidateAge(age int) error {
	if age < 0 {
		return &AgeError{Age: age}
	}
	return nil
}

// DisplayName derives the session's display name from the declared name and
// the privileged flag.
func DisplayName(name string, privileged bool) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Stranger"
	}
	if privileged {
		return name + ", Keeper of the Agora"
	}
	return name
}

const (
	welcomeStandard = "Greetings, %s. I am honored to engage in dialogue with you. What questions weigh upon your mind? Let us pursue wisdom together through the ancient art of dialectic."

	welcomeKeeper = "Welcome back, %s, keeper of this agora. The dialogue is yours to shape as much as to join. What shall we examine today?"
)

// WelcomeText returns the assistant greeting that seeds a new session,
// chosen by the privileged flag alone.
func WelcomeText(name string, privileged bool) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Stranger"
	}
	if privileged {
		return fmt.Sprintf(welcomeKeeper, name)
	}
	return fmt.Sprintf(welcomeStandard, name)
}

// NewSession validates the declared identity and builds a session seeded
// with its welcome message. The welcome is always the first message, chosen
// by the privileged flag.
func NewSession(userName string, age int, privileged bool) (*Session, error) {
	if err := ValidateAge(age); err != nil {
		return nil, err
	}
	return &Session{
		ID:          uuid.NewString(),
		DisplayName: DisplayName(userName, privileged),
		UserName:    strings.TrimSpace(userName),
		UserAge:     age,
		Privileged:  privileged,
		CreatedAt:   time.Now(),
		Messages:    []Message{NewMessage(core.RoleAssistant, WelcomeText(userName, privileged))},
	}, nil
}
