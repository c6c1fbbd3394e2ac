package models

import "strings"

// Role identifies who authored a message
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// ParseRole maps a backend role onto a widget role. The backend stores
// assistant turns as "assistant"; anything that is not "user" is the bot.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleUser)) {
		return RoleUser
	}
	return RoleBot
}

// Direction is the layout direction of a message
type Direction string

const (
	LTR Direction = "ltr"
	RTL Direction = "rtl"
)

// Align is the text alignment of a message
type Align string

const (
	AlignLeft  Align = "left"
	AlignRight Align = "right"
)

// Message is a single chat line. Direction and Align are derived from Text
// and are never authoritative.
type Message struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Direction Direction `json:"direction,omitempty"`
	Align     Align     `json:"align,omitempty"`
}

// NewMessage builds a message with direction and alignment computed from text
func NewMessage(role Role, text string) Message {
	dir, align := DetectDirection(text)
	return Message{Role: role, Text: text, Direction: dir, Align: align}
}

// IsRTLRune reports whether r is in the Arabic block (U+0600..U+06FF)
func IsRTLRune(r rune) bool {
	return r >= 0x0600 && r <= 0x06FF
}

// DetectDirection returns rtl/right if any rune of text is Arabic, else ltr/left
func DetectDirection(text string) (Direction, Align) {
	for _, r := range text {
		if IsRTLRune(r) {
			return RTL, AlignRight
		}
	}
	return LTR, AlignLeft
}

// Unquote strips one layer of wrapping quote characters. Backend payloads
// sometimes arrive JSON-encoded twice, leaving a stray pair of quotes.
func Unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	first, last := s[0], s[len(s)-1]
	if (first == '"' || first == '\'') && first == last {
		return s[1 : len(s)-1]
	}
	return s
}

// NormalizeText unquotes and trims server text
func NormalizeText(s string) string {
	return strings.TrimSpace(Unquote(strings.TrimSpace(s)))
}

// CloneMessages returns a copy of msgs that shares no backing array
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
