// Package testutil provides an in-memory stand-in for the assistant backend
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"
)

// HistoryEntry is one stored chat line
type HistoryEntry struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// ChatRequest is what the widget posted to /chat
type ChatRequest struct {
	Message   string         `json:"message"`
	History   []HistoryEntry `json:"history"`
	Email     string         `json:"email"`
	SessionID string         `json:"session_id"`
}

type backendSession struct {
	id       string
	title    *string
	created  time.Time
	messages []HistoryEntry
}

// Backend mimics the support backend's HTTP surface
type Backend struct {
	mu       sync.Mutex
	users    map[string]string // email -> password
	sessions map[string]map[string]*backendSession
	gates    map[string]chan struct{}
	nextID   int

	// Answer produces the bot reply; defaults to echoing the question
	Answer func(question string, history []HistoryEntry) string

	// Fail makes every request to the listed paths return 503
	Fail map[string]bool

	// Requests records every /chat body in order
	Requests []ChatRequest

	Server *httptest.Server
}

// NewBackend starts a fake backend. Close it with b.Server.Close.
func NewBackend() *Backend {
	b := &Backend{
		users:    map[string]string{},
		sessions: map[string]map[string]*backendSession{},
		gates:    map[string]chan struct{}{},
		Fail:     map[string]bool{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", b.health)
	mux.HandleFunc("/chat", b.chat)
	mux.HandleFunc("/sessions", b.listSessions)
	mux.HandleFunc("/history", b.history)
	mux.HandleFunc("/session/title", b.rename)
	mux.HandleFunc("/session", b.deleteSession)
	mux.HandleFunc("/login", b.login)
	mux.HandleFunc("/register", b.register)
	b.Server = httptest.NewServer(b.failing(mux))
	return b
}

// URL is the backend base URL
func (b *Backend) URL() string {
	return b.Server.URL
}

// Close shuts the server down, releasing any gated requests first
func (b *Backend) Close() {
	b.mu.Lock()
	for id, g := range b.gates {
		close(g)
		delete(b.gates, id)
	}
	b.mu.Unlock()
	b.Server.Close()
}

// AddUser registers an account directly
func (b *Backend) AddUser(email, password string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[email] = password
}

// AddSession seeds a session with messages for email
func (b *Backend) AddSession(email, id, title string, created time.Time, msgs ...HistoryEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.session(email, id)
	if title != "" {
		s.title = &title
	}
	s.created = created
	s.messages = append(s.messages, msgs...)
}

// Title returns the stored title of a session
func (b *Backend) Title(email, id string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.sessions[email][id]; ok && s.title != nil {
		return *s.title
	}
	return ""
}

// HasSession reports whether the backend stores id for email
func (b *Backend) HasSession(email, id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.sessions[email][id]
	return ok
}

// Hold makes /history for sessionID block until Release is called
func (b *Backend) Hold(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gates[sessionID] = make(chan struct{})
}

// Release unblocks /history for sessionID
func (b *Backend) Release(sessionID string) {
	b.mu.Lock()
	g, ok := b.gates[sessionID]
	delete(b.gates, sessionID)
	b.mu.Unlock()
	if ok {
		close(g)
	}
}

// LastRequest returns the most recent /chat body
func (b *Backend) LastRequest() (ChatRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.Requests) == 0 {
		return ChatRequest{}, false
	}
	return b.Requests[len(b.Requests)-1], true
}

func (b *Backend) session(email, id string) *backendSession {
	if b.sessions[email] == nil {
		b.sessions[email] = map[string]*backendSession{}
	}
	s, ok := b.sessions[email][id]
	if !ok {
		s = &backendSession{id: id, created: time.Now()}
		b.sessions[email][id] = s
	}
	return s
}

func (b *Backend) failing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		fail := b.Fail[r.URL.Path]
		b.mu.Unlock()
		if fail {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (b *Backend) health(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

func (b *Backend) chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	question := strings.TrimSpace(req.Message)
	if question == "" {
		writeJSON(w, map[string]string{"answer": "Please enter your question."})
		return
	}

	b.mu.Lock()
	b.Requests = append(b.Requests, req)
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		b.nextID++
		sessionID = fmt.Sprintf("srv-%d", b.nextID)
	}
	answerFn := b.Answer
	b.mu.Unlock()

	answer := "You asked: " + question
	if answerFn != nil {
		answer = answerFn(question, req.History)
	}

	b.mu.Lock()
	if _, known := b.users[req.Email]; known {
		s := b.session(req.Email, sessionID)
		s.messages = append(s.messages, HistoryEntry{"user", question}, HistoryEntry{"assistant", answer})
	}
	b.mu.Unlock()

	writeJSON(w, map[string]string{"answer": answer, "session_id": sessionID})
}

func (b *Backend) listSessions(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	b.mu.Lock()
	defer b.mu.Unlock()

	type row struct {
		SessionID     string  `json:"session_id"`
		Title         *string `json:"title"`
		MessagesCount int     `json:"messages_count"`
		LastActivity  string  `json:"last_activity"`
		created       time.Time
	}
	rows := []row{}
	for _, s := range b.sessions[email] {
		rows = append(rows, row{
			SessionID:     s.id,
			Title:         s.title,
			MessagesCount: len(s.messages),
			LastActivity:  s.created.UTC().Format("2006-01-02 15:04:05"),
			created:       s.created,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].created.After(rows[j].created) })
	writeJSON(w, rows)
}

func (b *Backend) history(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	id := r.URL.Query().Get("session_id")

	b.mu.Lock()
	gate := b.gates[id]
	b.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	out := []HistoryEntry{}
	if s, ok := b.sessions[email][id]; ok {
		out = append(out, s.messages...)
	}
	writeJSON(w, out)
}

func (b *Backend) rename(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string `json:"email"`
		SessionID string `json:"session_id"`
		Title     string `json:"title"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.users[req.Email]; !ok || req.SessionID == "" {
		writeJSON(w, map[string]any{"success": false, "message": "Missing email or session ID."})
		return
	}
	title := req.Title
	b.session(req.Email, req.SessionID).title = &title
	writeJSON(w, map[string]any{"success": true})
}

func (b *Backend) deleteSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Email     string `json:"email"`
		SessionID string `json:"session_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.users[req.Email]; !ok || req.SessionID == "" {
		writeJSON(w, map[string]any{"success": false, "message": "Missing email or session ID."})
		return
	}
	deleted := 0
	if s, ok := b.sessions[req.Email][req.SessionID]; ok {
		deleted = len(s.messages)
		delete(b.sessions[req.Email], req.SessionID)
	}
	writeJSON(w, map[string]any{"success": true, "deleted_messages": deleted})
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	defer b.mu.Unlock()
	if pw, ok := b.users[req.Email]; ok && pw == req.Password {
		writeJSON(w, map[string]any{"success": true, "message": "Login successful."})
		return
	}
	writeJSON(w, map[string]any{"success": false, "message": "UserName/Password incorrect."})
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	defer b.mu.Unlock()
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeJSON(w, map[string]any{"success": false, "message": "All fields are required."})
		return
	}
	if _, exists := b.users[req.Email]; exists {
		writeJSON(w, map[string]any{"success": false, "message": "Username or email already exists."})
		return
	}
	b.users[req.Email] = req.Password
	writeJSON(w, map[string]any{"success": true, "message": "Registration successful."})
}
