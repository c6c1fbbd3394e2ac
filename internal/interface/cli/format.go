package cli

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/neilberkman/supportchat/internal/core/models"
)

// truncateTitle flattens a title onto one line and cuts it to width cells
func truncateTitle(title string, width int) string {
	title = strings.Join(strings.Fields(title), " ")
	return runewidth.Truncate(title, width, "...")
}

// formatTimestamp formats a timestamp in a human-friendly way
func formatTimestamp(t time.Time) string {
	if t.IsZero() || t.Unix() <= 0 {
		return "unknown"
	}
	if time.Since(t) < 30*24*time.Hour {
		return humanize.Time(t)
	}
	if t.Year() == time.Now().Year() {
		return t.Format("Jan 2")
	}
	return t.Format("Jan 2, 2006")
}

func botMessage(text string) models.Message {
	return models.NewMessage(models.RoleBot, text)
}
