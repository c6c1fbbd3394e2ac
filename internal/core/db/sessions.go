package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/neilberkman/supportchat/internal/core/models"
)

// Keys used by the widget
const (
	KeyGuestID  = "guest_session_id"
	KeyLoggedIn = "is_logged_in"
	KeyEmail    = "user_email"
	KeySessions = "chat_sessions"
)

// ErrCorruptState means a stored value could not be decoded
var ErrCorruptState = errors.New("corrupt saved state")

// LoadSessions returns the persisted chat sessions. A malformed payload
// yields ErrCorruptState and no sessions.
func (db *DB) LoadSessions() ([]models.ChatSession, error) {
	raw, ok, err := db.Get(KeySessions)
	if err != nil {
		return nil, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var sessions []models.ChatSession
	if err := json.Unmarshal([]byte(raw), &sessions); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptState, KeySessions, err)
	}

	// Drop entries that could never have been written by the registry
	valid := sessions[:0]
	for _, s := range sessions {
		if s.Validate() == nil {
			if s.Messages == nil {
				s.Messages = []models.Message{}
			}
			valid = append(valid, s)
		}
	}
	return valid, nil
}

// SaveSessions replaces the persisted chat sessions
func (db *DB) SaveSessions(sessions []models.ChatSession) error {
	if sessions == nil {
		sessions = []models.ChatSession{}
	}
	data, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}
	return db.Set(KeySessions, string(data))
}

// LoggedIn reports the persisted login flag
func (db *DB) LoggedIn() bool {
	v, ok, err := db.Get(KeyLoggedIn)
	return err == nil && ok && v == "true"
}

// SetLoggedIn persists the login flag
func (db *DB) SetLoggedIn(loggedIn bool) error {
	v := "false"
	if loggedIn {
		v = "true"
	}
	return db.Set(KeyLoggedIn, v)
}

// UserEmail returns the email of the logged-in user, if any
func (db *DB) UserEmail() string {
	v, _, _ := db.Get(KeyEmail)
	return v
}

// SetUserEmail persists the logged-in user's email
func (db *DB) SetUserEmail(email string) error {
	return db.Set(KeyEmail, email)
}

// ClearAuth forgets the logged-in user
func (db *DB) ClearAuth() error {
	if err := db.SetLoggedIn(false); err != nil {
		return err
	}
	return db.Delete(KeyEmail)
}

// GuestID returns the guest identifier, minting one on first use
func (db *DB) GuestID() (string, error) {
	v, ok, err := db.Get(KeyGuestID)
	if err != nil {
		return "", err
	}
	if ok && v != "" {
		return v, nil
	}
	id := uuid.NewString()
	if err := db.Set(KeyGuestID, id); err != nil {
		return "", err
	}
	return id, nil
}

// Identity returns who the widget talks to the backend as
func (db *DB) Identity() (models.Identity, error) {
	guest, err := db.GuestID()
	if err != nil {
		return models.Identity{}, err
	}
	ident := models.Identity{GuestID: guest}
	if db.LoggedIn() {
		ident.Email = db.UserEmail()
	}
	return ident, nil
}
