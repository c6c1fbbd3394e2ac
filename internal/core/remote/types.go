package remote

import (
	"time"
)

// SessionInfo is one row of the backend's session listing. Messages are
// not included; they are fetched per session on demand.
type SessionInfo struct {
	ID           string
	Title        string
	MessageCount int
	LastActivity time.Time
}

// TurnResult is the backend's reply to a chat turn
type TurnResult struct {
	Answer    string
	SessionID string
}

// AuthResult is the backend's reply to login and register
type AuthResult struct {
	Success bool
	Message string
}

type sessionPayload struct {
	SessionID     string  `json:"session_id"`
	Title         *string `json:"title"`
	MessagesCount int     `json:"messages_count"`
	LastActivity  string  `json:"last_activity"`
}

type historyPayload struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type chatRequest struct {
	Message   string           `json:"message"`
	History   []historyPayload `json:"history"`
	Email     string           `json:"email"`
	SessionID string           `json:"session_id"`
}

type chatResponse struct {
	Answer    string `json:"answer"`
	SessionID string `json:"session_id"`
}

type titleRequest struct {
	Email     string `json:"email"`
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
}

type deleteRequest struct {
	Email     string `json:"email"`
	SessionID string `json:"session_id"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type statusResponse struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

// parseActivity accepts the SQLite CURRENT_TIMESTAMP format and RFC 3339
func parseActivity(ts string) time.Time {
	formats := []string{
		"2006-01-02 15:04:05",
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, ts); err == nil {
			return t
		}
	}
	return time.Time{}
}
