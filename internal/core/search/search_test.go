package search

import (
	"testing"
	"time"

	"github.com/neilberkman/supportchat/internal/core/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 5, 14, 12, 0, 0, 0, time.UTC)

func session(id, title string, created time.Time, synced bool, texts ...string) models.ChatSession {
	s := models.NewChatSession(id, created)
	s.Title = title
	s.Synced = synced
	for _, text := range texts {
		s.Messages = append(s.Messages, models.NewMessage(models.RoleUser, text))
	}
	return s
}

func TestParseQuery(t *testing.T) {
	q := ParseQuery("wifi after:2025-05-01 before:2025/05/10 is:local", now)

	assert.Equal(t, "wifi", q.Text)
	require.True(t, q.HasAfter)
	assert.Equal(t, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), q.AfterDate)
	require.True(t, q.HasBefore)
	assert.Equal(t, time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC), q.BeforeDate)
	assert.True(t, q.OnlyLocal)
	assert.False(t, q.OnlySynced)
}

func TestParseQueryNaturalLanguage(t *testing.T) {
	q := ParseQuery("date:yesterday", now)
	require.True(t, q.HasAfter)
	assert.Equal(t, now.AddDate(0, 0, -1).Format("2006-01-02"), q.AfterDate.Format("2006-01-02"))
	assert.Equal(t, "", q.Text)
}

func TestParseQueryKeepsUnknownTokens(t *testing.T) {
	q := ParseQuery("https://portal is:weird after:", now)
	assert.Equal(t, "https://portal is:weird after:", q.Text)
	assert.False(t, q.HasAfter)
	assert.True(t, ParseQuery("  ", now).IsZero())
}

func TestFilterNoText(t *testing.T) {
	sessions := []models.ChatSession{
		session("1", "Old", now.AddDate(0, 0, -30), true),
		session("2", "Recent", now.AddDate(0, 0, -2), false),
		session("3", "Today", now, true),
	}

	results := Filter(sessions, ParseQuery("after:2025-05-01", now))
	require.Len(t, results, 2)
	assert.Equal(t, "2", results[0].Session.ID)
	assert.Equal(t, "3", results[1].Session.ID)

	results = Filter(sessions, ParseQuery("is:synced", now))
	require.Len(t, results, 2)
	assert.Equal(t, "1", results[0].Session.ID)

	results = Filter(sessions, ParseQuery("before:2025-05-13", now))
	require.Len(t, results, 2)
	assert.Equal(t, "2", results[1].Session.ID)
}

func TestFilterText(t *testing.T) {
	sessions := []models.ChatSession{
		session("1", "Password reset", now, true, "how do I reset it?"),
		session("2", "Enrollment", now, true, "my password expired"),
		session("3", "Parking", now, true, "where do I park"),
	}

	results := Filter(sessions, ParseQuery("password", now))
	require.Len(t, results, 2)

	assert.Equal(t, "1", results[0].Session.ID)
	assert.NotEmpty(t, results[0].TitleMatches)
	assert.Empty(t, results[0].Snippet)

	assert.Equal(t, "2", results[1].Session.ID)
	assert.Equal(t, "my password expired", results[1].Snippet)
}

func TestFilterFuzzyTitle(t *testing.T) {
	sessions := []models.ChatSession{
		session("1", "Library hours", now, true),
		session("2", "Parking", now, true),
	}
	results := Filter(sessions, ParseQuery("lbhrs", now))
	require.Len(t, results, 1)
	assert.Equal(t, "1", results[0].Session.ID)
}
