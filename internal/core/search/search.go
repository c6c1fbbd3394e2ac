// Package search filters chat sessions by title, message text and date.
package search

import (
	"strings"

	"github.com/neilberkman/supportchat/internal/core/models"
	"github.com/sahilm/fuzzy"
)

// Result is a session that matched a query
type Result struct {
	Session models.ChatSession
	// TitleMatches are the byte offsets in the title matched by the text
	TitleMatches []int
	// Snippet is the first message containing the text, when the title
	// did not match
	Snippet string
}

type titles []models.ChatSession

func (t titles) String(i int) string { return t[i].Title }
func (t titles) Len() int            { return len(t) }

// Filter applies q to sessions. Without text the input order is kept;
// with text, fuzzy title matches come first by score, then sessions whose
// messages contain the text.
func Filter(sessions []models.ChatSession, q Query) []Result {
	var candidates []models.ChatSession
	for _, s := range sessions {
		if keep(s, q) {
			candidates = append(candidates, s)
		}
	}

	if q.Text == "" {
		out := make([]Result, len(candidates))
		for i, s := range candidates {
			out[i] = Result{Session: s}
		}
		return out
	}

	var out []Result
	matched := map[int]bool{}
	for _, m := range fuzzy.FindFrom(q.Text, titles(candidates)) {
		matched[m.Index] = true
		out = append(out, Result{Session: candidates[m.Index], TitleMatches: m.MatchedIndexes})
	}

	needle := strings.ToLower(q.Text)
	for i, s := range candidates {
		if matched[i] {
			continue
		}
		if snippet, ok := findInMessages(s.Messages, needle); ok {
			out = append(out, Result{Session: s, Snippet: snippet})
		}
	}
	return out
}

func keep(s models.ChatSession, q Query) bool {
	created := s.Created()
	if q.HasAfter && created.Before(q.AfterDate) {
		return false
	}
	if q.HasBefore && !created.Before(q.BeforeDate) {
		return false
	}
	if q.OnlyLocal && s.Synced {
		return false
	}
	if q.OnlySynced && !s.Synced {
		return false
	}
	return true
}

func findInMessages(msgs []models.Message, needle string) (string, bool) {
	for _, m := range msgs {
		if strings.Contains(strings.ToLower(m.Text), needle) {
			return m.Text, true
		}
	}
	return "", false
}
