package tui

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/neilberkman/supportchat/internal/core/chat"
	"github.com/neilberkman/supportchat/internal/core/content"
	"github.com/neilberkman/supportchat/internal/core/models"
	"github.com/neilberkman/supportchat/internal/core/registry"
	"github.com/neilberkman/supportchat/internal/core/remote"
)

type turnReplyMsg struct {
	turn   chat.Turn
	result remote.TurnResult
	err    error
}

// typingTickMsg reveals the next rune of run. Ticks from an older run are
// ignored.
type typingTickMsg struct {
	run uint64
}

type historyMsg struct {
	ticket registry.Ticket
	msgs   []models.Message
	err    error
}

type syncedMsg struct {
	added int
	err   error
}

type sessionChangedMsg struct {
	err error
}

type pageLoadedMsg struct {
	page content.Page
	text string
	err  error
}

type statusMsg struct {
	text string
	err  error
}

func postTurn(svc *chat.Service, turn chat.Turn, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		result, err := svc.PostTurn(ctx, turn)
		return turnReplyMsg{turn: turn, result: result, err: err}
	}
}

func typingTick(interval time.Duration, run uint64) tea.Cmd {
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return typingTickMsg{run: run}
	})
}

func loadHistory(svc *chat.Service, t registry.Ticket, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		msgs, err := svc.LoadHistory(ctx, t)
		return historyMsg{ticket: t, msgs: msgs, err: err}
	}
}

func syncSessions(svc *chat.Service, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		added, err := svc.SyncSessions(ctx)
		return syncedMsg{added: added, err: err}
	}
}

func pushRename(svc *chat.Service, id, title string, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		svc.PushRename(ctx, id, title)
		return sessionChangedMsg{}
	}
}

func pushDelete(svc *chat.Service, id string, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		svc.PushDelete(ctx, id)
		return sessionChangedMsg{}
	}
}

func loadPage(src *content.Source, p content.Page) tea.Cmd {
	return func() tea.Msg {
		text, err := src.Get(p)
		return pageLoadedMsg{page: p, text: text, err: err}
	}
}

func exportTranscript(svc *chat.Service, dir, format string) tea.Cmd {
	return func() tea.Msg {
		path, err := svc.Export(dir, format)
		if err != nil {
			return statusMsg{text: "Nothing exported", err: err}
		}
		return statusMsg{text: "Saved " + path}
	}
}

func copyTranscript(svc *chat.Service) tea.Cmd {
	return func() tea.Msg {
		text, err := svc.TranscriptText()
		if err != nil {
			return statusMsg{text: "Nothing to copy", err: err}
		}
		// Use cross-platform clipboard library
		if err := clipboard.WriteAll(text); err != nil {
			return statusMsg{text: "Clipboard unavailable; use ctrl+t to save a text file", err: err}
		}
		return statusMsg{text: "Transcript copied to clipboard!"}
	}
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}

func describeError(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}
