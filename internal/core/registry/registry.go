// Package registry holds the in-memory list of chat sessions, the active
// session and the transcript currently on screen.
//
// The visible transcript is a mirror of the active session's messages:
// every method that changes one changes the other under the same lock.
// Asynchronous work (history fetches, typing playback) must carry a
// Ticket or an Epoch taken before it suspended and re-validate it before
// writing back.
package registry

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/neilberkman/supportchat/internal/core/models"
)

// Ticket identifies one switch. History fetched for a ticket may only be
// applied while the ticket is still current.
type Ticket struct {
	ID  string
	Rev uint64
}

// Summary is a session as known to the backend listing
type Summary struct {
	ID       string
	Title    string
	Activity time.Time
}

// Registry is safe for concurrent use. OnChange hooks run with the
// persistence lock held and must not mutate the registry.
type Registry struct {
	mu       sync.Mutex
	sessions []models.ChatSession
	activeID string
	visible  []models.Message

	epoch  uint64 // bumped whenever the active session changes
	rev    uint64 // bumped whenever the visible transcript changes
	lastID int64

	// replaced maps ids given up in ReplaceID to their successors
	replaced map[string]string

	persistMu sync.Mutex
	onChange  func([]models.ChatSession)
	now       func() time.Time
}

// Option configures a Registry
type Option func(*Registry)

// WithOnChange registers the persistence hook
func WithOnChange(fn func([]models.ChatSession)) Option {
	return func(r *Registry) { r.onChange = fn }
}

// OnChange replaces the persistence hook
func (r *Registry) OnChange(fn func([]models.ChatSession)) {
	r.persistMu.Lock()
	r.onChange = fn
	r.persistMu.Unlock()
}

// WithClock overrides time.Now for id generation
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New creates an empty registry with no active session
func New(opts ...Option) *Registry {
	r := &Registry{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// mutate runs fn under the lock and, if it reports a change, hands a fresh
// snapshot to the persistence hook. Taking the snapshot inside persistMu
// means the last hook call always sees the latest state.
func (r *Registry) mutate(fn func() bool) bool {
	r.mu.Lock()
	changed := fn()
	r.mu.Unlock()

	if !changed {
		return false
	}
	r.persistMu.Lock()
	if r.onChange != nil {
		r.onChange(r.Sessions())
	}
	r.persistMu.Unlock()
	return true
}

func (r *Registry) indexLocked(id string) int {
	for i := range r.sessions {
		if r.sessions[i].ID == id {
			return i
		}
	}
	return -1
}

// newIDLocked returns a timestamp-derived id not used by any session
func (r *Registry) newIDLocked() string {
	ms := r.now().UnixMilli()
	if ms <= r.lastID {
		ms = r.lastID + 1
	}
	for r.indexLocked(strconv.FormatInt(ms, 10)) >= 0 {
		ms++
	}
	r.lastID = ms
	return strconv.FormatInt(ms, 10)
}

func (r *Registry) createLocked() string {
	s := models.NewChatSession(r.newIDLocked(), r.now())
	r.sessions = append(r.sessions, s)
	r.activeID = s.ID
	r.visible = []models.Message{}
	r.epoch++
	r.rev++
	return s.ID
}

// snapshotVisibleLocked copies the visible transcript into the active entry
func (r *Registry) snapshotVisibleLocked() {
	if r.activeID == "" {
		return
	}
	if i := r.indexLocked(r.activeID); i >= 0 {
		r.sessions[i].Messages = models.CloneMessages(r.visible)
		if r.sessions[i].Messages == nil {
			r.sessions[i].Messages = []models.Message{}
		}
	}
}

// setMessagesLocked writes msgs to entry i and, if i is active, to the
// visible transcript
func (r *Registry) setMessagesLocked(i int, msgs []models.Message) {
	if msgs == nil {
		msgs = []models.Message{}
	}
	r.sessions[i].Messages = models.CloneMessages(msgs)
	if r.sessions[i].ID == r.activeID {
		r.visible = models.CloneMessages(msgs)
		r.rev++
	}
}

// Load replaces the registry content, e.g. from the local store. No session
// is active afterwards.
func (r *Registry) Load(sessions []models.ChatSession) {
	r.mutate(func() bool {
		r.sessions = make([]models.ChatSession, 0, len(sessions))
		seen := map[string]bool{}
		for _, s := range sessions {
			if s.ID == "" || seen[s.ID] {
				continue
			}
			seen[s.ID] = true
			r.sessions = append(r.sessions, s.Clone())
		}
		r.activeID = ""
		r.visible = nil
		r.replaced = nil
		r.epoch++
		r.rev++
		return true
	})
}

// Clear removes every session
func (r *Registry) Clear() {
	r.Load(nil)
}

// EnsureActive creates and activates a session if none is active and
// returns the active id. It is a no-op when a session is already active.
func (r *Registry) EnsureActive() string {
	var id string
	r.mutate(func() bool {
		if r.activeID != "" {
			id = r.activeID
			return false
		}
		id = r.createLocked()
		return true
	})
	return id
}

// NewSession starts a fresh conversation and makes it active
func (r *Registry) NewSession() string {
	var id string
	r.mutate(func() bool {
		r.snapshotVisibleLocked()
		id = r.createLocked()
		return true
	})
	return id
}

// SetActiveMessages replaces the active session's messages and the visible
// transcript with msgs. It does nothing if no session is active.
func (r *Registry) SetActiveMessages(msgs []models.Message) bool {
	return r.mutate(func() bool {
		i := r.indexLocked(r.activeID)
		if r.activeID == "" || i < 0 {
			return false
		}
		r.setMessagesLocked(i, msgs)
		return true
	})
}

// BeginSwitch snapshots the outgoing transcript, activates id and shows its
// stored messages. The returned ticket must accompany the history fetched
// for id. ok is false when id is unknown or already active.
func (r *Registry) BeginSwitch(id string) (Ticket, bool) {
	var t Ticket
	var ok bool
	r.mutate(func() bool {
		i := r.indexLocked(id)
		if i < 0 || id == r.activeID {
			return false
		}
		r.snapshotVisibleLocked()
		r.activeID = id
		r.visible = models.CloneMessages(r.sessions[i].Messages)
		r.epoch++
		r.rev++
		t = Ticket{ID: id, Rev: r.rev}
		ok = true
		return true
	})
	return t, ok
}

// ApplyHistory overwrites the transcript of t.ID with msgs if t is still
// current: t.ID is active and nothing has touched the transcript since.
func (r *Registry) ApplyHistory(t Ticket, msgs []models.Message) bool {
	return r.mutate(func() bool {
		if t.ID == "" || t.ID != r.activeID || t.Rev != r.rev {
			return false
		}
		i := r.indexLocked(t.ID)
		if i < 0 {
			return false
		}
		r.setMessagesLocked(i, msgs)
		return true
	})
}

// RestoreLocal shows the stored transcript of t.ID if t is still current.
// Guests have no remote history, so this is their half of a switch.
func (r *Registry) RestoreLocal(t Ticket) bool {
	return r.mutate(func() bool {
		if t.ID == "" || t.ID != r.activeID || t.Rev != r.rev {
			return false
		}
		i := r.indexLocked(t.ID)
		if i < 0 {
			return false
		}
		r.setMessagesLocked(i, r.sessions[i].Messages)
		return true
	})
}

// Current returns a ticket for the active session as it is right now
func (r *Registry) Current() (Ticket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeID == "" {
		return Ticket{}, false
	}
	return Ticket{ID: r.activeID, Rev: r.rev}, true
}

// Rename sets a session's title locally
func (r *Registry) Rename(id, title string) bool {
	title = strings.TrimSpace(title)
	return r.mutate(func() bool {
		i := r.indexLocked(id)
		if i < 0 || title == "" {
			return false
		}
		r.sessions[i].Title = title
		r.sessions[i].IsRenaming = false
		return true
	})
}

// SetRenaming toggles the transient renaming flag
func (r *Registry) SetRenaming(id string, renaming bool) bool {
	return r.mutate(func() bool {
		i := r.indexLocked(id)
		if i < 0 || r.sessions[i].IsRenaming == renaming {
			return false
		}
		r.sessions[i].IsRenaming = renaming
		return true
	})
}

// Remove deletes a session. Removing the active session leaves none active.
func (r *Registry) Remove(id string) bool {
	return r.mutate(func() bool {
		i := r.indexLocked(id)
		if i < 0 {
			return false
		}
		r.sessions = append(r.sessions[:i], r.sessions[i+1:]...)
		if r.activeID == id {
			r.activeID = ""
			r.visible = nil
			r.epoch++
			r.rev++
		}
		return true
	})
}

// ReplaceID renames a session's id in place, keeping its messages. Used
// when the backend mints an id for a conversation started locally. If
// another entry already carries newID it is dropped so ids stay unique.
func (r *Registry) ReplaceID(oldID, newID string) bool {
	newID = strings.TrimSpace(newID)
	return r.mutate(func() bool {
		if newID == "" || oldID == newID {
			return false
		}
		i := r.indexLocked(oldID)
		if i < 0 {
			return false
		}
		if j := r.indexLocked(newID); j >= 0 {
			r.sessions = append(r.sessions[:j], r.sessions[j+1:]...)
			if j < i {
				i--
			}
		}
		r.sessions[i].ID = newID
		r.sessions[i].Synced = true
		if r.activeID == oldID {
			r.activeID = newID
		}
		if r.replaced == nil {
			r.replaced = map[string]string{}
		}
		r.replaced[oldID] = newID
		delete(r.replaced, newID)
		return true
	})
}

// Resolve follows ids replaced by ReplaceID and returns the id the session
// carries now. Ids never replaced are returned as is.
func (r *Registry) Resolve(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for hops := 0; hops <= len(r.replaced); hops++ {
		next, ok := r.replaced[id]
		if !ok {
			return id
		}
		id = next
	}
	return id
}

// MarkSynced records that the backend knows id
func (r *Registry) MarkSynced(id string) bool {
	return r.mutate(func() bool {
		i := r.indexLocked(id)
		if i < 0 || r.sessions[i].Synced {
			return false
		}
		r.sessions[i].Synced = true
		return true
	})
}

// AppendTo adds msg to session id, mirroring it on screen if id is active
func (r *Registry) AppendTo(id string, msg models.Message) bool {
	return r.mutate(func() bool {
		i := r.indexLocked(id)
		if i < 0 {
			return false
		}
		msgs := append(models.CloneMessages(r.sessions[i].Messages), msg)
		r.setMessagesLocked(i, msgs)
		return true
	})
}

// RewriteMessage replaces message index of session id in place, mirroring
// it on screen if id is active
func (r *Registry) RewriteMessage(id string, index int, msg models.Message) bool {
	return r.mutate(func() bool {
		i := r.indexLocked(id)
		if i < 0 || index < 0 || index >= len(r.sessions[i].Messages) {
			return false
		}
		msgs := models.CloneMessages(r.sessions[i].Messages)
		msgs[index] = msg
		r.setMessagesLocked(i, msgs)
		return true
	})
}

// Merge folds a backend listing into the registry. Known sessions take the
// backend title unless it is empty; unknown ones are added without messages, which are loaded
// when the session is opened.
func (r *Registry) Merge(listing []Summary) int {
	added := 0
	r.mutate(func() bool {
		changed := false
		for _, s := range listing {
			if s.ID == "" {
				continue
			}
			title := strings.TrimSpace(s.Title)
			if title == "" {
				title = models.DefaultTitle
			}
			if i := r.indexLocked(s.ID); i >= 0 {
				// the backend has no title for sessions named locally
				if title == models.DefaultTitle {
					title = r.sessions[i].Title
				}
				if r.sessions[i].Title != title || !r.sessions[i].Synced {
					r.sessions[i].Title = title
					r.sessions[i].Synced = true
					changed = true
				}
				continue
			}
			created := s.Activity
			if created.IsZero() {
				created = r.now()
			}
			cs := models.NewChatSession(s.ID, created)
			cs.Title = title
			cs.Synced = true
			r.sessions = append(r.sessions, cs)
			added++
			changed = true
		}
		return changed
	})
	return added
}

// Sessions returns a deep copy of every session in order
func (r *Registry) Sessions() []models.ChatSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ChatSession, len(r.sessions))
	for i, s := range r.sessions {
		out[i] = s.Clone()
	}
	return out
}

// Session returns a copy of session id
func (r *Registry) Session(id string) (models.ChatSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexLocked(id); i >= 0 {
		return r.sessions[i].Clone(), true
	}
	return models.ChatSession{}, false
}

// Active returns a copy of the active session
func (r *Registry) Active() (models.ChatSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexLocked(r.activeID); r.activeID != "" && i >= 0 {
		return r.sessions[i].Clone(), true
	}
	return models.ChatSession{}, false
}

// ActiveID returns the active session id, or "" if none
func (r *Registry) ActiveID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeID
}

// Visible returns a copy of the transcript on screen
func (r *Registry) Visible() []models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return models.CloneMessages(r.visible)
}

// Epoch changes every time the active session changes
func (r *Registry) Epoch() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.epoch
}

// Len returns the number of sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
