package models

import (
	"strings"
	"testing"
	"time"
)

func TestSessionValidation(t *testing.T) {
	tests := []struct {
		name    string
		session ChatSession
		wantErr bool
	}{
		{
			name:    "valid session",
			session: NewChatSession("1730000000000", time.Now()),
			wantErr: false,
		},
		{
			name:    "missing id",
			session: ChatSession{CreatedAt: time.Now().UnixMilli()},
			wantErr: true,
		},
		{
			name:    "missing timestamp",
			session: ChatSession{ID: "abc"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.session.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCloneDoesNotShareMessages(t *testing.T) {
	s := NewChatSession("a", time.Now())
	s.Messages = append(s.Messages, NewMessage(RoleUser, "hi"))

	c := s.Clone()
	c.Messages[0].Text = "changed"

	if s.Messages[0].Text != "hi" {
		t.Errorf("clone mutated original: %q", s.Messages[0].Text)
	}
}

func TestAutoTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"How do I reset my password?", "How do I reset my password?"},
		{"  first line\nsecond line", "first line"},
		{"", DefaultTitle},
		{strings.Repeat("a", 50), strings.Repeat("a", 40) + "..."},
	}
	for _, tt := range tests {
		if got := AutoTitle(tt.in); got != tt.want {
			t.Errorf("AutoTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIdentityIsGuest(t *testing.T) {
	if !(Identity{GuestID: "g"}).IsGuest() {
		t.Error("expected guest without email")
	}
	if (Identity{Email: "a@b.c"}).IsGuest() {
		t.Error("expected user with email")
	}
}
