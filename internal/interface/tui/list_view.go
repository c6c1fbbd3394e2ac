package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/neilberkman/supportchat/internal/core/models"
	"github.com/neilberkman/supportchat/internal/core/search"
)

type sessionListItem struct {
	session models.ChatSession
	active  bool
	snippet string
}

func (i sessionListItem) FilterValue() string {
	return i.session.Title
}

func (i sessionListItem) Title() string {
	if i.session.IsRenaming {
		return i.session.Title + " (renaming)"
	}
	return i.session.Title
}

func (i sessionListItem) Description() string {
	where := "synced"
	if !i.session.Synced {
		where = "local"
	}
	desc := fmt.Sprintf("%s | %s | Created: %s",
		pluralize(len(i.session.Messages), "message"), where, humanize.Time(i.session.Created()))
	if i.snippet != "" {
		desc += " | " + i.snippet
	}
	return desc
}

// Custom delegate to highlight the active session
type sessionDelegate struct {
	list.DefaultDelegate
}

func (d sessionDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	s, ok := item.(sessionListItem)
	if !ok {
		d.DefaultDelegate.Render(w, m, index, item)
		return
	}

	width := m.Width() - 4
	if width < 20 {
		width = 20
	}
	title := runewidth.Truncate(s.Title(), width, "...")
	desc := runewidth.Truncate(s.Description(), width, "...")

	switch {
	case index == m.Index():
		title = selectedItemStyle.Render("> " + title)
		desc = selectedItemStyle.Faint(true).Render("  " + desc)
	case s.active:
		title = activeItemStyle.Render(title)
		desc = itemStyle.Render(desc)
	default:
		title = itemStyle.Render(title)
		desc = itemStyle.Render(desc)
	}

	fmt.Fprintf(w, "%s\n%s", title, desc)
}

func createSessionList(items []list.Item, width, height int) list.Model {
	delegate := sessionDelegate{DefaultDelegate: list.NewDefaultDelegate()}

	l := list.New(items, delegate, width, height-3) // Reserve lines for header and help
	l.Title = ""
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetShowTitle(false)
	l.SetFilteringEnabled(false) // Filtering goes through search.Filter with /
	return l
}

// refreshList rebuilds the list from the registry, newest first, applying
// the current filter
func (m *Model) refreshList() {
	sessions := m.svc.Registry().Sessions()
	for i, j := 0, len(sessions)-1; i < j; i, j = i+1, j-1 {
		sessions[i], sessions[j] = sessions[j], sessions[i]
	}

	activeID := m.svc.Registry().ActiveID()
	results := search.Filter(sessions, search.ParseQuery(m.filter.Value(), time.Now()))
	items := make([]list.Item, len(results))
	for i, r := range results {
		items[i] = sessionListItem{
			session: r.Session,
			active:  r.Session.ID == activeID,
			snippet: r.Snippet,
		}
	}

	cursor := m.list.Index()
	m.list.SetItems(items)
	if cursor >= len(items) {
		cursor = len(items) - 1
	}
	if cursor >= 0 {
		m.list.Select(cursor)
	}
}

func (m Model) selectedSession() (models.ChatSession, bool) {
	selected, ok := m.list.SelectedItem().(sessionListItem)
	if !ok {
		return models.ChatSession{}, false
	}
	return selected.session, true
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.renaming != "" {
		return m.updateRename(msg)
	}
	if m.filtering {
		return m.updateFilter(msg)
	}

	switch msg.String() {
	case "esc", "q":
		m.mode = chatView
		return m, nil

	case "enter":
		s, ok := m.selectedSession()
		if !ok {
			return m, nil
		}
		m.mode = chatView
		m.err = nil
		t, ok := m.svc.SwitchTo(s.ID)
		if !ok {
			// already on screen
			return m, nil
		}
		m.refreshTranscript()
		return m, loadHistory(m.svc, t, m.opts.RequestTimeout)

	case "n":
		m.svc.NewChat()
		m.mode = chatView
		m.refreshTranscript()
		return m, nil

	case "r":
		s, ok := m.selectedSession()
		if !ok {
			return m, nil
		}
		m.svc.Registry().SetRenaming(s.ID, true)
		m.renaming = s.ID
		m.rename.SetValue(s.Title)
		m.rename.CursorEnd()
		m.rename.Focus()
		m.refreshList()
		return m, nil

	case "d":
		s, ok := m.selectedSession()
		if !ok {
			return m, nil
		}
		push, err := m.svc.DeleteLocal(s.ID)
		if err != nil {
			m.err = err
			return m, nil
		}
		m.status = "Deleted " + s.Title
		m.refreshList()
		m.refreshTranscript()
		if !push {
			return m, nil
		}
		return m, pushDelete(m.svc, s.ID, m.opts.RequestTimeout)

	case "/":
		m.filtering = true
		m.filter.Focus()
		return m, nil

	case "s":
		return m, syncSessions(m.svc, m.opts.RequestTimeout)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateRename(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	id := m.renaming
	switch msg.String() {
	case "enter":
		title := strings.TrimSpace(m.rename.Value())
		m.renaming = ""
		m.rename.Blur()
		push, err := m.svc.RenameLocal(id, title)
		if err != nil {
			m.err = err
		}
		m.refreshList()
		if !push {
			return m, nil
		}
		return m, pushRename(m.svc, id, title, m.opts.RequestTimeout)

	case "esc":
		m.renaming = ""
		m.rename.Blur()
		m.svc.Registry().SetRenaming(id, false)
		m.refreshList()
		return m, nil
	}

	var cmd tea.Cmd
	m.rename, cmd = m.rename.Update(msg)
	return m, cmd
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.filtering = false
		m.filter.Blur()
		return m, nil

	case "esc":
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.refreshList()
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.refreshList()
	return m, cmd
}

func (m Model) viewList() string {
	header := titleStyle.Render("Chat sessions")

	var footer string
	switch {
	case m.renaming != "":
		footer = m.rename.View() + "\n" + helpStyle.Render("enter save • esc cancel")
	case m.filtering || m.filter.Value() != "":
		footer = m.filter.View() + "\n" + helpStyle.Render("enter keep filter • esc clear")
	default:
		footer = helpStyle.Render("↑/k up • ↓/j down • enter open • n new • r rename • d delete • / filter • s sync • esc back")
	}
	if m.err != nil {
		footer = errorStyle.Render(describeError(m.err)) + "\n" + footer
	}

	if len(m.list.Items()) == 0 {
		body := "No sessions yet. Press 'n' to start a chat."
		if m.filter.Value() != "" {
			body = "No sessions match: " + m.filter.Value()
		}
		return header + "\n\n" + body + "\n\n" + footer
	}

	return header + "\n" + m.list.View() + "\n" + footer
}
