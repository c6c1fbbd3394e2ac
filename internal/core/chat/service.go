// Package chat coordinates the session registry, the backend, typing
// playback and local persistence.
//
// Every operation that talks to the backend is split so that callers can
// run the network part off the UI loop: Begin* mutates the registry and
// returns what the request needs, the request runs, and the matching
// Complete*/Apply* re-validates against the registry before writing.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/neilberkman/supportchat/internal/core/export"
	"github.com/neilberkman/supportchat/internal/core/logging"
	"github.com/neilberkman/supportchat/internal/core/models"
	"github.com/neilberkman/supportchat/internal/core/playback"
	"github.com/neilberkman/supportchat/internal/core/registry"
	"github.com/neilberkman/supportchat/internal/core/remote"
)

// ConnectionErrorText is shown as the bot's reply when a turn fails
const ConnectionErrorText = "Sorry, I couldn't reach the support server. Please try again in a moment."

var (
	// ErrEmptyMessage is returned for blank input; nothing is sent
	ErrEmptyMessage = errors.New("message is empty")
	// ErrEmptyTitle is returned when renaming to a blank title
	ErrEmptyTitle = errors.New("title is empty")
	// ErrUnknownSession is returned for ids not in the registry
	ErrUnknownSession = errors.New("unknown session")
	// ErrNotLoggedIn is returned by operations that need an account
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrAuthFailed wraps the backend's reason for refusing credentials
	ErrAuthFailed = errors.New("authentication failed")
	// ErrLocalOnly means a session has no remote history to fetch
	ErrLocalOnly = errors.New("session has no remote history")
)

// Remote is the backend the service talks to
type Remote interface {
	ListSessions(ctx context.Context, ident models.Identity) ([]remote.SessionInfo, error)
	FetchHistory(ctx context.Context, ident models.Identity, sessionID string) ([]models.Message, error)
	PostTurn(ctx context.Context, ident models.Identity, sessionID, text string, prior []models.Message) (remote.TurnResult, error)
	RenameSession(ctx context.Context, ident models.Identity, sessionID, title string) error
	DeleteSession(ctx context.Context, ident models.Identity, sessionID string) error
	Login(ctx context.Context, email, password string) (remote.AuthResult, error)
	Register(ctx context.Context, username, email, password string) (remote.AuthResult, error)
	Health(ctx context.Context) error
}

// Store persists sessions and who is logged in
type Store interface {
	LoadSessions() ([]models.ChatSession, error)
	SaveSessions(sessions []models.ChatSession) error
	Identity() (models.Identity, error)
	SetLoggedIn(loggedIn bool) error
	SetUserEmail(email string) error
	ClearAuth() error
}

// Turn is a user message that has been recorded locally and is waiting
// for the backend
type Turn struct {
	SessionID string // registry id when the turn began
	RemoteID  string // id sent to the backend, "" to let it mint one
	Text      string
	Prior     []models.Message
	Ident     models.Identity
}

// Completion describes how a turn ended
type Completion struct {
	SessionID string // final id of the origin session
	Index     int    // position of the bot message, -1 if not written
	Answer    string
	RunID     uint64 // playback run, 0 if the answer was written directly
	Animated  bool
	Err       error // network failure, already reported in the transcript
}

// Failed reports whether the backend could not be reached
func (c Completion) Failed() bool {
	return c.Err != nil
}

// Service is safe for concurrent use
type Service struct {
	reg    *registry.Registry
	player *playback.Controller
	remote Remote
	store  Store
	log    *log.Logger

	exportTitle string
	now         func() time.Time

	mu    sync.Mutex
	ident models.Identity
}

type options struct {
	logger         *log.Logger
	typingInterval time.Duration
	exportTitle    string
	now            func() time.Time
}

// Option configures a Service
type Option func(*options)

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTypingInterval sets the delay between revealed characters
func WithTypingInterval(d time.Duration) Option {
	return func(o *options) { o.typingInterval = d }
}

// WithExportTitle sets the mustache template for export headings
func WithExportTitle(tpl string) Option {
	return func(o *options) { o.exportTitle = tpl }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewService creates a service. Call Bootstrap before use.
func NewService(rem Remote, store Store, opts ...Option) *Service {
	o := options{now: time.Now, typingInterval: playback.DefaultInterval}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Discard()
	}

	s := &Service{
		remote:      rem,
		store:       store,
		log:         o.logger,
		exportTitle: o.exportTitle,
		now:         o.now,
	}
	s.reg = registry.New(registry.WithClock(o.now), registry.WithOnChange(s.persist))
	s.player = playback.New(s.reg, o.typingInterval)
	return s
}

func (s *Service) persist(sessions []models.ChatSession) {
	if err := s.store.SaveSessions(sessions); err != nil {
		s.log.Warn("failed to save sessions", "err", err)
	}
}

// Bootstrap loads the identity and the saved sessions. Unreadable saved
// sessions are logged and treated as none.
func (s *Service) Bootstrap() error {
	ident, err := s.store.Identity()
	if err != nil {
		return fmt.Errorf("failed to load identity: %w", err)
	}
	s.setIdentity(ident)

	sessions, err := s.store.LoadSessions()
	if err != nil {
		s.log.Warn("ignoring saved sessions", "err", err)
		sessions = nil
	}
	s.reg.Load(sessions)
	s.log.Debug("bootstrapped", "sessions", len(sessions), "guest", ident.IsGuest())
	return nil
}

// Resume activates the newest session if it is still empty, otherwise a
// new one, and returns the active id
func (s *Service) Resume() string {
	if id := s.reg.ActiveID(); id != "" {
		return id
	}
	sessions := s.reg.Sessions()
	if n := len(sessions); n > 0 && len(sessions[n-1].Messages) == 0 && !sessions[n-1].Synced {
		if t, ok := s.reg.BeginSwitch(sessions[n-1].ID); ok {
			s.reg.RestoreLocal(t)
			return t.ID
		}
	}
	return s.reg.EnsureActive()
}

// BeginTurn records text as a user message in the active session,
// creating one if needed, and returns the request to send
func (s *Service) BeginTurn(text string) (Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Turn{}, ErrEmptyMessage
	}

	s.player.Flush()
	id := s.reg.EnsureActive()
	active, _ := s.reg.Active()

	prior := make([]models.Message, 0, len(active.Messages))
	hasUser := false
	for _, m := range active.Messages {
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		if m.Role == models.RoleUser {
			hasUser = true
		}
		prior = append(prior, m)
	}

	if !hasUser && active.Title == models.DefaultTitle {
		s.reg.Rename(id, models.AutoTitle(text))
	}
	s.reg.AppendTo(id, models.NewMessage(models.RoleUser, text))

	turn := Turn{SessionID: id, Text: text, Prior: prior, Ident: s.Identity()}
	if active.Synced {
		turn.RemoteID = id
	}
	return turn, nil
}

// PostTurn sends a turn to the backend. A turn begun before its session
// got a server id is sent under that id once it is known.
func (s *Service) PostTurn(ctx context.Context, turn Turn) (remote.TurnResult, error) {
	if turn.RemoteID == "" {
		if sess, ok := s.reg.Session(s.reg.Resolve(turn.SessionID)); ok && sess.Synced {
			turn.RemoteID = sess.ID
		}
	}
	return s.remote.PostTurn(ctx, turn.Ident, turn.RemoteID, turn.Text, turn.Prior)
}

// CompleteTurn writes the outcome of a turn into its origin session. If
// the origin is still on screen the answer is typed out by the playback
// controller; otherwise it is stored directly.
func (s *Service) CompleteTurn(turn Turn, result remote.TurnResult, err error) Completion {
	origin := s.reg.Resolve(turn.SessionID)
	c := Completion{SessionID: origin, Index: -1}

	if err != nil {
		s.log.Warn("chat turn failed", "session", origin, "err", err)
		c.Err = err
		c.Answer = ConnectionErrorText
		if s.reg.AppendTo(origin, models.NewMessage(models.RoleBot, ConnectionErrorText)) {
			c.Index = s.lastIndex(origin)
		}
		return c
	}

	sess, _ := s.reg.Session(origin)
	switch {
	case result.SessionID == "" || result.SessionID == origin:
		s.reg.MarkSynced(origin)
	case sess.Synced:
		// an overlapping turn already got the session its server id
		s.log.Warn("backend answered under another id", "session", origin, "remote", result.SessionID)
	case s.reg.ReplaceID(origin, result.SessionID):
		s.log.Debug("session id assigned", "local", origin, "remote", result.SessionID)
		c.SessionID = result.SessionID
	}
	c.Answer = result.Answer

	if s.reg.ActiveID() != c.SessionID {
		if s.reg.AppendTo(c.SessionID, models.NewMessage(models.RoleBot, result.Answer)) {
			c.Index = s.lastIndex(c.SessionID)
		}
		return c
	}

	dir, align := models.DetectDirection(result.Answer)
	placeholder := models.Message{Role: models.RoleBot, Direction: dir, Align: align}
	if !s.reg.AppendTo(c.SessionID, placeholder) {
		return c
	}
	c.Index = s.lastIndex(c.SessionID)
	c.RunID = s.player.Start(c.SessionID, c.Index, result.Answer)
	c.Animated = true
	return c
}

func (s *Service) lastIndex(id string) int {
	sess, ok := s.reg.Session(id)
	if !ok {
		return -1
	}
	return len(sess.Messages) - 1
}

// Send runs a whole turn synchronously. The answer is written in full,
// without playback. A network failure is reported in Completion.Err and
// in the transcript, not as the returned error.
func (s *Service) Send(ctx context.Context, text string) (Completion, error) {
	turn, err := s.BeginTurn(text)
	if err != nil {
		return Completion{}, err
	}
	result, err := s.PostTurn(ctx, turn)
	c := s.CompleteTurn(turn, result, err)
	if c.Animated {
		s.player.Flush()
	}
	return c, nil
}

// SwitchTo makes id the active session and shows its stored transcript.
// The ticket must be passed to LoadHistory and ApplyHistory.
func (s *Service) SwitchTo(id string) (registry.Ticket, bool) {
	s.player.Flush()
	return s.reg.BeginSwitch(id)
}

// LoadHistory fetches the remote transcript for a switch. Guests and
// sessions the backend does not know get ErrLocalOnly.
func (s *Service) LoadHistory(ctx context.Context, t registry.Ticket) ([]models.Message, error) {
	ident := s.Identity()
	sess, ok := s.reg.Session(t.ID)
	if ident.IsGuest() || !ok || !sess.Synced {
		return nil, ErrLocalOnly
	}
	return s.remote.FetchHistory(ctx, ident, t.ID)
}

// ApplyHistory finishes a switch. Results for a switch that has since
// been superseded are dropped. Fetch failures keep the stored transcript.
func (s *Service) ApplyHistory(t registry.Ticket, msgs []models.Message, err error) bool {
	switch {
	case errors.Is(err, ErrLocalOnly):
		return s.reg.RestoreLocal(t)
	case err != nil:
		s.log.Warn("history fetch failed", "session", t.ID, "err", err)
		return false
	}
	if !s.reg.ApplyHistory(t, msgs) {
		s.log.Debug("discarding stale history", "session", t.ID)
		return false
	}
	return true
}

// Switch runs a whole switch synchronously
func (s *Service) Switch(ctx context.Context, id string) error {
	t, ok := s.SwitchTo(id)
	if !ok {
		if id != "" && id == s.reg.ActiveID() {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	msgs, err := s.LoadHistory(ctx, t)
	s.ApplyHistory(t, msgs, err)
	return nil
}

// Rename sets a session title locally and, for logged-in users, on the
// backend. A backend failure is logged and the local title is kept.
func (s *Service) Rename(ctx context.Context, id, title string) error {
	push, err := s.RenameLocal(id, title)
	if err != nil {
		return err
	}
	if push {
		s.PushRename(ctx, id, title)
	}
	return nil
}

// RenameLocal sets a session title in the registry only. It reports
// whether the backend should be told with PushRename.
func (s *Service) RenameLocal(id, title string) (bool, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		s.reg.SetRenaming(id, false)
		return false, ErrEmptyTitle
	}
	sess, ok := s.reg.Session(id)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	s.reg.Rename(id, title)
	return !s.Identity().IsGuest() && sess.Synced, nil
}

// PushRename sends a title to the backend. Failures are logged only.
func (s *Service) PushRename(ctx context.Context, id, title string) {
	ident := s.Identity()
	if ident.IsGuest() {
		return
	}
	if err := s.remote.RenameSession(ctx, ident, id, strings.TrimSpace(title)); err != nil {
		s.log.Warn("remote rename failed", "session", id, "err", err)
	}
}

// Delete removes a session locally and, best effort, on the backend
func (s *Service) Delete(ctx context.Context, id string) error {
	push, err := s.DeleteLocal(id)
	if err != nil {
		return err
	}
	if push {
		s.PushDelete(ctx, id)
	}
	return nil
}

// DeleteLocal removes a session from the registry only. It reports
// whether the backend should be told with PushDelete.
func (s *Service) DeleteLocal(id string) (bool, error) {
	sess, ok := s.reg.Session(id)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	if s.player.SessionID() == id {
		s.player.Flush()
	}
	s.reg.Remove(id)
	return !s.Identity().IsGuest() && sess.Synced, nil
}

// PushDelete deletes a session on the backend. Failures are logged only.
func (s *Service) PushDelete(ctx context.Context, id string) {
	ident := s.Identity()
	if ident.IsGuest() {
		return
	}
	if err := s.remote.DeleteSession(ctx, ident, id); err != nil {
		s.log.Warn("remote delete failed", "session", id, "err", err)
	}
}

// NewChat starts an empty session and makes it active
func (s *Service) NewChat() string {
	s.player.Flush()
	return s.reg.NewSession()
}

// SyncSessions merges the backend's session listing into the registry and
// returns how many sessions were added. The registry is left unchanged on
// failure.
func (s *Service) SyncSessions(ctx context.Context) (int, error) {
	ident := s.Identity()
	if ident.IsGuest() {
		return 0, nil
	}
	listing, err := s.remote.ListSessions(ctx, ident)
	if err != nil {
		s.log.Warn("session listing failed", "err", err)
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	summaries := make([]registry.Summary, 0, len(listing))
	for _, info := range listing {
		summaries = append(summaries, registry.Summary{
			ID:       info.ID,
			Title:    info.Title,
			Activity: info.LastActivity,
		})
	}
	added := s.reg.Merge(summaries)
	s.log.Debug("sessions synced", "listed", len(listing), "added", added)
	return added, nil
}

// Login checks credentials, remembers the user and pulls their sessions
func (s *Service) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	res, err := s.remote.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("failed to log in: %w", err)
	}
	if !res.Success {
		return fmt.Errorf("%w: %s", ErrAuthFailed, res.Message)
	}

	if err := s.store.SetUserEmail(email); err != nil {
		return fmt.Errorf("failed to save login: %w", err)
	}
	if err := s.store.SetLoggedIn(true); err != nil {
		return fmt.Errorf("failed to save login: %w", err)
	}
	s.mu.Lock()
	s.ident.Email = email
	s.mu.Unlock()
	s.log.Info("logged in", "email", email)

	if _, err := s.SyncSessions(ctx); err != nil {
		s.log.Warn("could not load sessions after login", "err", err)
	}
	return nil
}

// Register creates an account and returns the backend's message
func (s *Service) Register(ctx context.Context, username, email, password string) (string, error) {
	res, err := s.remote.Register(ctx, username, email, password)
	if err != nil {
		return "", fmt.Errorf("failed to register: %w", err)
	}
	if !res.Success {
		return res.Message, fmt.Errorf("%w: %s", ErrAuthFailed, res.Message)
	}
	return res.Message, nil
}

// Logout forgets the user and their sessions
func (s *Service) Logout() error {
	if s.Identity().IsGuest() {
		return ErrNotLoggedIn
	}
	if err := s.store.ClearAuth(); err != nil {
		return fmt.Errorf("failed to log out: %w", err)
	}
	s.mu.Lock()
	s.ident.Email = ""
	s.mu.Unlock()

	s.player.Flush()
	s.reg.Clear()
	return nil
}

// Health checks the backend
func (s *Service) Health(ctx context.Context) error {
	return s.remote.Health(ctx)
}

// Document prepares session id for export, or the active session if id is
// empty. The transcript on screen wins over the stored one when it is not
// empty.
func (s *Service) Document(id string) (export.Document, error) {
	if id == "" {
		id = s.reg.ActiveID()
	}
	sess, ok := s.reg.Session(id)
	if !ok {
		return export.Document{}, export.ErrEmptyTranscript
	}
	msgs := sess.Messages
	if id == s.reg.ActiveID() {
		msgs = export.Select(s.reg.Visible(), sess.Messages)
	}
	return export.NewDocument(sess, msgs, s.exportTitle, s.now())
}

// Export writes the active session to dir in format and returns the path
func (s *Service) Export(dir, format string) (string, error) {
	return s.ExportSession(dir, "", format)
}

// ExportSession writes session id to dir in format and returns the path
func (s *Service) ExportSession(dir, id, format string) (string, error) {
	s.player.Flush()
	doc, err := s.Document(id)
	if err != nil {
		return "", err
	}
	return export.WriteFile(dir, doc.SessionID, format, doc)
}

// TranscriptText returns the active transcript as plain text
func (s *Service) TranscriptText() (string, error) {
	doc, err := s.Document("")
	if err != nil {
		return "", err
	}
	return export.FormatText(doc), nil
}

func (s *Service) setIdentity(ident models.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ident = ident
}

// Identity returns who the service talks to the backend as
func (s *Service) Identity() models.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ident
}

// Registry exposes the session registry for display
func (s *Service) Registry() *registry.Registry {
	return s.reg
}

// Player exposes the playback controller so a UI can drive its ticks
func (s *Service) Player() *playback.Controller {
	return s.player
}
