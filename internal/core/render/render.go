// Package render turns stored messages into display fragments.
package render

import (
	"html"
	"regexp"
	"strings"

	"github.com/muesli/termenv"
	"github.com/neilberkman/supportchat/internal/core/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Kind of a fragment
type Kind int

const (
	Text Kind = iota
	Link
)

// Fragment is a run of plain text or a hyperlink
type Fragment struct {
	Kind Kind
	Text string
	URL  string
}

// Rendered is a message ready to be drawn
type Rendered struct {
	Role      models.Role
	Direction models.Direction
	Align     models.Align
	Fragments []Fragment
}

var urlPattern = regexp.MustCompile(`https?://[A-Za-z0-9\-._~:/?#\[\]@!$&'()*+,;=%]+`)

const trailingPunct = ".,;:!?'\""

var closers = map[byte]byte{')': '(', ']': '[', '}': '{'}

// Message renders m. Direction and alignment carried by m win over the
// ones detected from its text.
func Message(m models.Message) Rendered {
	text := models.NormalizeText(m.Text)

	dir, align := models.DetectDirection(text)
	if m.Direction != "" {
		dir = m.Direction
		align = m.Align
		if align == "" {
			align = models.AlignLeft
			if dir == models.RTL {
				align = models.AlignRight
			}
		}
	}

	return Rendered{
		Role:      m.Role,
		Direction: dir,
		Align:     align,
		Fragments: Linkify(text),
	}
}

// Linkify splits text into plain and link fragments
func Linkify(text string) []Fragment {
	var out []Fragment
	last := 0
	for _, loc := range urlPattern.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[0]+len(trimURL(text[loc[0]:loc[1]]))
		if end-start <= len("http://") {
			continue
		}
		if start > last {
			out = append(out, Fragment{Kind: Text, Text: text[last:start]})
		}
		u := text[start:end]
		out = append(out, Fragment{Kind: Link, Text: u, URL: u})
		last = end
	}
	if last < len(text) {
		out = append(out, Fragment{Kind: Text, Text: text[last:]})
	}
	return out
}

// trimURL drops sentence punctuation and unbalanced closing brackets from
// the end of a match
func trimURL(u string) string {
	for len(u) > 0 {
		c := u[len(u)-1]
		if strings.IndexByte(trailingPunct, c) >= 0 {
			u = u[:len(u)-1]
			continue
		}
		if open, ok := closers[c]; ok && strings.Count(u, string(open)) < strings.Count(u, string(c)) {
			u = u[:len(u)-1]
			continue
		}
		break
	}
	return u
}

// Plain returns the text without markup
func (r Rendered) Plain() string {
	var b strings.Builder
	for _, f := range r.Fragments {
		b.WriteString(f.Text)
	}
	return b.String()
}

// Links returns the URLs in the message
func (r Rendered) Links() []string {
	var out []string
	for _, f := range r.Fragments {
		if f.Kind == Link {
			out = append(out, f.URL)
		}
	}
	return out
}

// HTML renders the message as an escaped block whose links open in a new
// browsing context
func (r Rendered) HTML() string {
	var b strings.Builder
	b.WriteString(`<div class="message ` + html.EscapeString(string(r.Role)) + `" dir="` +
		string(r.Direction) + `" style="text-align: ` + string(r.Align) + `">`)
	for _, f := range r.Fragments {
		if f.Kind == Link {
			b.WriteString(`<a href="` + html.EscapeString(f.URL) +
				`" target="_blank" rel="noopener noreferrer">` + html.EscapeString(f.Text) + `</a>`)
			continue
		}
		b.WriteString(html.EscapeString(f.Text))
	}
	b.WriteString(`</div>`)
	return b.String()
}

// Terminal renders links as OSC-8 hyperlinks. style, if set, is applied to
// the visible link text.
func (r Rendered) Terminal(style func(string) string) string {
	var b strings.Builder
	for _, f := range r.Fragments {
		if f.Kind == Link {
			text := f.Text
			if style != nil {
				text = style(text)
			}
			b.WriteString(termenv.Hyperlink(f.URL, text))
			continue
		}
		b.WriteString(f.Text)
	}
	return b.String()
}

// RoleLabel returns the display label of a role, e.g. "User"
func RoleLabel(role models.Role) string {
	if role == "" {
		role = models.RoleBot
	}
	return cases.Title(language.English).String(string(role))
}
