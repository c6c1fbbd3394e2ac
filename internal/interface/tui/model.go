package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/neilberkman/supportchat/internal/core/chat"
	"github.com/neilberkman/supportchat/internal/core/content"
)

type viewMode int

const (
	chatView viewMode = iota
	sessionsView
	helpView
	contentView
)

// Options configures the chat widget
type Options struct {
	// Pages serves the docs, FAQ and support pages
	Pages *content.Source
	// ExportDir is where ctrl+e and ctrl+t write transcripts
	ExportDir string
	// RequestTimeout bounds each backend call
	RequestTimeout time.Duration
}

type Model struct {
	svc  *chat.Service
	opts Options
	mode viewMode

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	width    int
	height   int

	// turns sent and not yet answered
	waiting int
	status  string
	err     error

	// session list
	list      list.Model
	filter    textinput.Model
	filtering bool
	rename    textinput.Model
	renaming  string

	// static pages
	page     content.Page
	pageText string
	pageView viewport.Model
}

func New(svc *chat.Service, opts Options) Model {
	if opts.Pages == nil {
		opts.Pages = content.New("")
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	input := textinput.New()
	input.Placeholder = "Type your question..."
	input.Prompt = "> "
	input.CharLimit = 4000
	input.Focus()

	filter := textinput.New()
	filter.Placeholder = "title, text, after:last-week, is:local"
	filter.Prompt = "/ "

	rename := textinput.New()
	rename.Prompt = "Title: "
	rename.CharLimit = 200

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = metaStyle

	m := Model{
		svc:      svc,
		opts:     opts,
		mode:     chatView,
		input:    input,
		filter:   filter,
		rename:   rename,
		spinner:  sp,
		viewport: viewport.New(80, 20),
		pageView: viewport.New(80, 20),
		width:    80,
		height:   24,
		status:   "Voice input is not available in the terminal; type your questions.",
	}
	m.list = createSessionList(nil, m.width, m.height)
	m.refreshTranscript()
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if !m.svc.Identity().IsGuest() {
		cmds = append(cmds, syncSessions(m.svc, m.opts.RequestTimeout))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.svc.Player().Flush()
			return m, tea.Quit
		case "f1":
			m.mode = helpView
			return m, nil
		case "f2":
			return m, loadPage(m.opts.Pages, content.Docs)
		case "f3":
			return m, loadPage(m.opts.Pages, content.FAQ)
		case "f4":
			return m, loadPage(m.opts.Pages, content.Support)
		}

		// Mode-specific key handling
		switch m.mode {
		case chatView:
			return m.updateChat(msg)
		case sessionsView:
			return m.updateList(msg)
		case helpView:
			return m.updateHelp(msg)
		case contentView:
			return m.updateContent(msg)
		}

	case turnReplyMsg:
		c := m.svc.CompleteTurn(msg.turn, msg.result, msg.err)
		if m.waiting > 0 {
			m.waiting--
		}
		if c.Failed() {
			m.err = c.Err
		}
		m.refreshTranscript()
		m.refreshList()
		if c.Animated {
			return m, typingTick(m.svc.Player().Interval(), c.RunID)
		}
		return m, nil

	case typingTickMsg:
		player := m.svc.Player()
		if msg.run != player.RunID() {
			return m, nil
		}
		more := player.Step()
		m.refreshTranscript()
		if more {
			return m, typingTick(player.Interval(), msg.run)
		}
		return m, nil

	case historyMsg:
		if m.svc.ApplyHistory(msg.ticket, msg.msgs, msg.err) {
			m.refreshTranscript()
		}
		return m, nil

	case syncedMsg:
		if msg.err != nil {
			m.status = "Showing local sessions only"
		} else if msg.added > 0 {
			m.status = pluralize(msg.added, "session") + " loaded from the server"
		}
		m.refreshList()
		return m, nil

	case sessionChangedMsg:
		if msg.err != nil {
			m.err = msg.err
		}
		m.refreshTranscript()
		m.refreshList()
		return m, nil

	case pageLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.page = msg.page
		m.pageText = msg.text
		m.pageView.SetContent(msg.text)
		m.pageView.GotoTop()
		m.mode = contentView
		return m, nil

	case statusMsg:
		m.status = msg.text
		m.err = msg.err
		return m, nil

	case spinner.TickMsg:
		if m.waiting == 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.mode == chatView {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	switch m.mode {
	case chatView:
		return m.viewChat()
	case sessionsView:
		return m.viewList()
	case helpView:
		return m.viewHelp()
	case contentView:
		return m.viewContent()
	}

	return ""
}

// resize lays the views out for the current window
func (m *Model) resize() {
	// header, input, status and key hints
	h := m.height - 5
	if h < 3 {
		h = 3
	}
	m.viewport.Width = m.width
	m.viewport.Height = h
	m.input.Width = m.width - 4
	m.pageView.Width = m.width
	m.pageView.Height = m.height - 3
	m.list.SetSize(m.width, m.height-3)
	m.refreshTranscript()
}
