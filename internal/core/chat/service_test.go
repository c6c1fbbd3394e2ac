package chat

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/neilberkman/supportchat/internal/core/db"
	"github.com/neilberkman/supportchat/internal/core/export"
	"github.com/neilberkman/supportchat/internal/core/models"
	"github.com/neilberkman/supportchat/internal/core/playback"
	"github.com/neilberkman/supportchat/internal/core/remote"
	"github.com/neilberkman/supportchat/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const email = "student@example.edu"

type fixture struct {
	svc     *Service
	db      *db.DB
	backend *testutil.Backend
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := testutil.NewBackend()
	t.Cleanup(backend.Close)

	database, err := db.New(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	client := remote.New(backend.URL(), remote.WithTimeout(5*time.Second))
	svc := NewService(client, database, WithTypingInterval(time.Millisecond), WithExportTitle("{{title}}"))
	require.NoError(t, svc.Bootstrap())
	return &fixture{svc: svc, db: database, backend: backend}
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	f.backend.AddUser(email, "pw")
	require.NoError(t, f.svc.Login(context.Background(), email, "pw"))
}

// drain finishes any playback by stepping it like a UI would
func (f *fixture) drain() {
	for f.svc.Player().Step() {
	}
}

func TestGuestPasswordResetScenario(t *testing.T) {
	f := newFixture(t)
	f.backend.Answer = func(string, []testutil.HistoryEntry) string { return "Visit the IT portal." }

	turn, err := f.svc.BeginTurn("How do I reset my password?")
	require.NoError(t, err)

	// the question is recorded before the network call
	visible := f.svc.Registry().Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, models.RoleUser, visible[0].Role)

	result, err := f.svc.PostTurn(context.Background(), turn)
	require.NoError(t, err)
	c := f.svc.CompleteTurn(turn, result, nil)
	require.True(t, c.Animated)
	assert.Equal(t, playback.Streaming, f.svc.Player().State())
	f.drain()

	req, ok := f.backend.LastRequest()
	require.True(t, ok)
	assert.NotNil(t, req.History)
	assert.Empty(t, req.History)
	assert.Equal(t, "", req.Email)

	visible = f.svc.Registry().Visible()
	require.Len(t, visible, 2)
	assert.Equal(t, "How do I reset my password?", visible[0].Text)
	assert.Equal(t, models.RoleBot, visible[1].Role)
	assert.Equal(t, "Visit the IT portal.", visible[1].Text)

	active, _ := f.svc.Registry().Active()
	assert.Equal(t, visible, active.Messages)
	assert.Equal(t, "How do I reset my password?", active.Title)
}

func TestFirstResponseReplacesLocalID(t *testing.T) {
	f := newFixture(t)

	local := f.svc.Resume()
	turn, err := f.svc.BeginTurn("hello")
	require.NoError(t, err)
	assert.Equal(t, "", turn.RemoteID, "unsynced sessions let the backend mint an id")

	result, err := f.svc.PostTurn(context.Background(), turn)
	require.NoError(t, err)
	require.NotEqual(t, local, result.SessionID)

	c := f.svc.CompleteTurn(turn, result, nil)
	f.drain()

	assert.Equal(t, result.SessionID, c.SessionID)
	assert.Equal(t, result.SessionID, f.svc.Registry().ActiveID())
	sessions := f.svc.Registry().Sessions()
	require.Len(t, sessions, 1)
	assert.Len(t, sessions[0].Messages, 2)
	assert.True(t, sessions[0].Synced)

	// the next turn reuses the server id
	turn, err = f.svc.BeginTurn("again")
	require.NoError(t, err)
	assert.Equal(t, result.SessionID, turn.RemoteID)
	require.Len(t, turn.Prior, 2)
}

func TestOverlappingTurnsOnNewSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.BeginTurn("first")
	require.NoError(t, err)
	second, err := f.svc.BeginTurn("second")
	require.NoError(t, err)

	r1, err := f.svc.PostTurn(ctx, first)
	require.NoError(t, err)
	c1 := f.svc.CompleteTurn(first, r1, nil)

	// the second turn goes out under the id the first one was given
	r2, err := f.svc.PostTurn(ctx, second)
	require.NoError(t, err)
	req, _ := f.backend.LastRequest()
	assert.Equal(t, r1.SessionID, req.SessionID)

	c2 := f.svc.CompleteTurn(second, r2, nil)
	f.drain()

	assert.Equal(t, c1.SessionID, c2.SessionID)
	assert.GreaterOrEqual(t, c2.Index, 0)
	sessions := f.svc.Registry().Sessions()
	require.Len(t, sessions, 1)
	var bot []string
	for _, m := range sessions[0].Messages {
		if m.Role == models.RoleBot {
			bot = append(bot, m.Text)
		}
	}
	assert.Equal(t, []string{"You asked: first", "You asked: second"}, bot)
}

func TestLateReplyUnderSecondServerIDKeepsAnswer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, _ := f.svc.BeginTurn("first")
	second, _ := f.svc.BeginTurn("second")

	// both leave before either reply arrives, so the backend mints two ids
	r1, err := f.svc.PostTurn(ctx, first)
	require.NoError(t, err)
	r2, err := f.svc.PostTurn(ctx, second)
	require.NoError(t, err)
	require.NotEqual(t, r1.SessionID, r2.SessionID)

	f.svc.CompleteTurn(first, r1, nil)
	c2 := f.svc.CompleteTurn(second, r2, nil)
	f.drain()

	assert.Equal(t, r1.SessionID, c2.SessionID)
	assert.Equal(t, r1.SessionID, f.svc.Registry().ActiveID())
	s, ok := f.svc.Registry().Session(r1.SessionID)
	require.True(t, ok)
	assert.Len(t, s.Messages, 4)
	assert.Equal(t, "You asked: second", s.Messages[3].Text)
}

func TestNetworkFailureKeepsUserMessage(t *testing.T) {
	f := newFixture(t)
	f.backend.Fail["/chat"] = true

	c, err := f.svc.Send(context.Background(), "is anyone there?")
	require.NoError(t, err)
	assert.True(t, c.Failed())

	visible := f.svc.Registry().Visible()
	require.Len(t, visible, 2)
	assert.Equal(t, "is anyone there?", visible[0].Text)
	assert.Equal(t, ConnectionErrorText, visible[1].Text)

	saved, err := f.db.LoadSessions()
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Len(t, saved[0].Messages, 2)
}

func TestBlankMessageNeverReachesNetwork(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.BeginTurn("   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	_, ok := f.backend.LastRequest()
	assert.False(t, ok)
	assert.Equal(t, 0, f.svc.Registry().Len())
}

func TestAnswerForInactiveSessionIsStored(t *testing.T) {
	f := newFixture(t)

	turn, err := f.svc.BeginTurn("first question")
	require.NoError(t, err)
	f.svc.NewChat()

	result, err := f.svc.PostTurn(context.Background(), turn)
	require.NoError(t, err)
	c := f.svc.CompleteTurn(turn, result, nil)

	assert.False(t, c.Animated)
	assert.Empty(t, f.svc.Registry().Visible())
	s, ok := f.svc.Registry().Session(c.SessionID)
	require.True(t, ok)
	require.Len(t, s.Messages, 2)
	assert.Equal(t, "You asked: first question", s.Messages[1].Text)
}

func TestSendDuringPlaybackFlushesPrevious(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	turn, _ := f.svc.BeginTurn("one")
	result, _ := f.svc.PostTurn(ctx, turn)
	f.svc.CompleteTurn(turn, result, nil)
	require.Equal(t, playback.Streaming, f.svc.Player().State())

	_, err := f.svc.BeginTurn("two")
	require.NoError(t, err)

	visible := f.svc.Registry().Visible()
	require.Len(t, visible, 3)
	assert.Equal(t, "You asked: one", visible[1].Text)
}

func TestSwitchRaceLastRequestWins(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	ctx := context.Background()
	now := time.Now()
	f.backend.AddSession(email, "a", "A", now, testutil.HistoryEntry{Role: "user", Text: "from a"})
	f.backend.AddSession(email, "b", "B", now, testutil.HistoryEntry{Role: "user", Text: "from b"})
	_, err := f.svc.SyncSessions(ctx)
	require.NoError(t, err)

	f.backend.Hold("a")
	ta, ok := f.svc.SwitchTo("a")
	require.True(t, ok)
	slow := make(chan []models.Message)
	slowErr := make(chan error, 1)
	go func() {
		msgs, err := f.svc.LoadHistory(ctx, ta)
		slowErr <- err
		slow <- msgs
	}()

	require.NoError(t, f.svc.Switch(ctx, "b"))
	assert.Equal(t, "from b", f.svc.Registry().Visible()[0].Text)

	f.backend.Release("a")
	err = <-slowErr
	msgs := <-slow
	require.NoError(t, err)
	assert.False(t, f.svc.ApplyHistory(ta, msgs, err))

	assert.Equal(t, "b", f.svc.Registry().ActiveID())
	visible := f.svc.Registry().Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, "from b", visible[0].Text)

	a, _ := f.svc.Registry().Session("a")
	assert.Empty(t, a.Messages, "late history is not written anywhere")
}

func TestGuestSwitchRestoresLocalTranscript(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, "guest question")
	require.NoError(t, err)
	first := f.svc.Registry().ActiveID()
	f.svc.NewChat()

	require.NoError(t, f.svc.Switch(ctx, first))
	visible := f.svc.Registry().Visible()
	require.Len(t, visible, 2)
	assert.Equal(t, "guest question", visible[0].Text)

	assert.ErrorIs(t, f.svc.Switch(ctx, "missing"), ErrUnknownSession)
	assert.NoError(t, f.svc.Switch(ctx, first), "switching to the active session is a no-op")
}

func TestHistoryFailureKeepsStoredTranscript(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, "kept locally")
	require.NoError(t, err)
	id := f.svc.Registry().ActiveID()
	f.svc.NewChat()

	f.backend.Fail["/history"] = true
	require.NoError(t, f.svc.Switch(ctx, id))
	visible := f.svc.Registry().Visible()
	require.Len(t, visible, 2)
	assert.Equal(t, "kept locally", visible[0].Text)
}

func TestRenameOfflineKeepsTitle(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, "question")
	require.NoError(t, err)
	id := f.svc.Registry().ActiveID()

	f.backend.Fail["/session/title"] = true
	require.NoError(t, f.svc.Rename(ctx, id, "Offline title"))

	s, _ := f.svc.Registry().Session(id)
	assert.Equal(t, "Offline title", s.Title)
	assert.Equal(t, "", f.backend.Title(email, id))

	assert.ErrorIs(t, f.svc.Rename(ctx, id, "  "), ErrEmptyTitle)
	assert.ErrorIs(t, f.svc.Rename(ctx, "missing", "x"), ErrUnknownSession)
}

func TestRenamePropagates(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, "question")
	require.NoError(t, err)
	id := f.svc.Registry().ActiveID()

	require.NoError(t, f.svc.Rename(ctx, id, "Enrollment"))
	assert.Equal(t, "Enrollment", f.backend.Title(email, id))
}

func TestLocalRenameAndDeleteDoNotCallBackend(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, "question")
	require.NoError(t, err)
	id := f.svc.Registry().ActiveID()

	push, err := f.svc.RenameLocal(id, "Local first")
	require.NoError(t, err)
	assert.True(t, push)
	s, _ := f.svc.Registry().Session(id)
	assert.Equal(t, "Local first", s.Title)
	assert.Equal(t, "", f.backend.Title(email, id))

	f.svc.PushRename(ctx, id, "Local first")
	assert.Equal(t, "Local first", f.backend.Title(email, id))

	push, err = f.svc.DeleteLocal(id)
	require.NoError(t, err)
	assert.True(t, push)
	assert.Equal(t, 0, f.svc.Registry().Len())
	assert.True(t, f.backend.HasSession(email, id))

	f.svc.PushDelete(ctx, id)
	assert.False(t, f.backend.HasSession(email, id))

	// guests never push
	require.NoError(t, f.svc.Logout())
	local := f.svc.NewChat()
	push, err = f.svc.RenameLocal(local, "Guest title")
	require.NoError(t, err)
	assert.False(t, push)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, "question")
	require.NoError(t, err)
	id := f.svc.Registry().ActiveID()
	require.True(t, f.backend.HasSession(email, id))

	require.NoError(t, f.svc.Delete(ctx, id))
	assert.Equal(t, "", f.svc.Registry().ActiveID())
	assert.False(t, f.backend.HasSession(email, id))
	assert.ErrorIs(t, f.svc.Delete(ctx, id), ErrUnknownSession)

	// the next message lazily creates a fresh session
	_, err = f.svc.Send(ctx, "again")
	require.NoError(t, err)
	assert.Equal(t, 1, f.svc.Registry().Len())
}

func TestSyncSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	added, err := f.svc.SyncSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, added, "guests have no remote sessions")

	f.backend.AddUser(email, "pw")
	f.backend.AddSession(email, "s1", "Parking", time.Now())
	require.NoError(t, f.svc.Login(ctx, email, "pw"))
	assert.Equal(t, 1, f.svc.Registry().Len())

	f.backend.Fail["/sessions"] = true
	_, err = f.svc.SyncSessions(ctx)
	assert.Error(t, err)
	assert.Equal(t, 1, f.svc.Registry().Len())
}

func TestLoginLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.backend.AddUser(email, "pw")

	err := f.svc.Login(ctx, email, "wrong")
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.True(t, f.svc.Identity().IsGuest())

	require.NoError(t, f.svc.Login(ctx, email, "pw"))
	assert.Equal(t, email, f.svc.Identity().Email)
	assert.True(t, f.db.LoggedIn())

	msg, err := f.svc.Register(ctx, "someone", email, "pw")
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.NotEmpty(t, msg)

	require.NoError(t, f.svc.Logout())
	assert.True(t, f.svc.Identity().IsGuest())
	assert.False(t, f.db.LoggedIn())
	assert.Equal(t, 0, f.svc.Registry().Len())
	assert.ErrorIs(t, f.svc.Logout(), ErrNotLoggedIn)
}

func TestBootstrapRestoresSessions(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Send(context.Background(), "persist me")
	require.NoError(t, err)

	again := NewService(remote.New(f.backend.URL()), f.db)
	require.NoError(t, again.Bootstrap())
	require.Equal(t, 1, again.Registry().Len())
	assert.Equal(t, "", again.Registry().ActiveID())

	id := again.Resume()
	assert.NotEqual(t, f.svc.Registry().ActiveID(), id, "non-empty sessions are not resumed")
	assert.Equal(t, 2, again.Registry().Len())
	assert.Equal(t, id, again.Resume())
}

func TestBootstrapCorruptState(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Set(db.KeySessions, "{not json"))

	svc := NewService(remote.New(f.backend.URL()), f.db)
	require.NoError(t, svc.Bootstrap())
	assert.Equal(t, 0, svc.Registry().Len())
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()

	_, err := f.svc.Export(dir, "txt")
	assert.ErrorIs(t, err, export.ErrEmptyTranscript)
	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)

	f.backend.Answer = func(string, []testutil.HistoryEntry) string { return "Visit the IT portal." }
	_, err = f.svc.Send(context.Background(), "How do I reset my password?")
	require.NoError(t, err)

	path, err := f.svc.Export(dir, "txt")
	require.NoError(t, err)
	assert.Equal(t, f.svc.Registry().ActiveID()+".txt", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "User: How do I reset my password?\nBot: Visit the IT portal.", string(data))

	text, err := f.svc.TranscriptText()
	require.NoError(t, err)
	assert.Equal(t, string(data), text)
}
