// Package memory provides the per-user conversation profile store.
package memory

import "time"

// Turn roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message unit in a conversation. Turns are created once and
// never mutated after being appended to a profile's history.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// UserProfile holds one user's personality setting and full conversation
// history, oldest turn first.
type UserProfile struct {
	Personality string `json:"personality"`
	History     []Turn `json:"history"`
}

// NewUserProfile returns a fresh profile with the given personality and an
// empty history.
func NewUserProfile(personality string) *UserProfile {
	return &UserProfile{
		Personality: personality,
		History:     []Turn{},
	}
}

// Append adds a turn to the history.
func (p *UserProfile) Append(role, content string) {
	p.History = append(p.History, Turn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
}

// RecentHistory returns up to the most recent maxTurns turns. A maxTurns of
// zero or less means the full history.
func (p *UserProfile) RecentHistory(maxTurns int) []Turn {
	if maxTurns <= 0 || len(p.History) <= maxTurns {
		return p.History
	}
	return p.History[len(p.History)-maxTurns:]
}
