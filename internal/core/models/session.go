package models

import (
	"errors"
	"strings"
	"time"
)

// DefaultTitle is the title of a session nobody has named yet
const DefaultTitle = "New Chat"

const autoTitleRunes = 40

// ChatSession is one conversation in the registry
type ChatSession struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt int64     `json:"timestamp"` // unix millis, set once
	Messages  []Message `json:"messages"`

	// Synced is true once the backend has acknowledged ID
	Synced bool `json:"synced,omitempty"`

	// IsRenaming is a UI flag and is never persisted
	IsRenaming bool `json:"-"`
}

// NewChatSession creates an empty session
func NewChatSession(id string, now time.Time) ChatSession {
	return ChatSession{
		ID:        id,
		Title:     DefaultTitle,
		CreatedAt: now.UnixMilli(),
		Messages:  []Message{},
	}
}

// Created returns CreatedAt as a time
func (s ChatSession) Created() time.Time {
	return time.UnixMilli(s.CreatedAt)
}

// Clone returns a deep copy of the session
func (s ChatSession) Clone() ChatSession {
	s.Messages = CloneMessages(s.Messages)
	return s
}

// Validate checks if the session has required fields
func (s *ChatSession) Validate() error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	if s.CreatedAt <= 0 {
		return errors.New("timestamp is required")
	}
	return nil
}

// AutoTitle derives a title from the first line of a user message
func AutoTitle(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	runes := []rune(text)
	if len(runes) > autoTitleRunes {
		return strings.TrimSpace(string(runes[:autoTitleRunes])) + "..."
	}
	if text == "" {
		return DefaultTitle
	}
	return text
}

// Identity is who the widget talks to the backend as
type Identity struct {
	Email   string
	GuestID string
}

// IsGuest reports whether no user is logged in
func (i Identity) IsGuest() bool {
	return strings.TrimSpace(i.Email) == ""
}
