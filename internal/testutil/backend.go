package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/brianly1003/aidev/internal/domain/events"
)

// RecordedRequest captures one request received by the fake backend.
type RecordedRequest struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	HasAuth       bool
	ContentType   string
	Body          string
}

// FakeBackend is an in-process stand-in for the assistant API. It serves
// every HTTP endpoint the client consumes plus the /ws realtime socket.
type FakeBackend struct {
	Server *httptest.Server

	mu       sync.Mutex
	users    map[string]string // username -> password
	tokens   map[string]string // token -> username
	files    map[string]string
	branches []string
	current  string
	requests []RecordedRequest
	failures map[string]int // "METHOD /path" -> status
	holds    map[string]chan struct{}

	// Canned AI answers.
	Answer       string
	StreamChunks []string
	Completion   string
	Assistance   string
	Review       string
	Suggestions  []map[string]interface{}
	Analysis     map[string][]map[string]interface{}

	upgrader websocket.Upgrader
	wsMu     sync.Mutex
	wsConns  []*websocket.Conn
	inbound  []events.BaseEvent
}

// NewFakeBackend starts a fake backend and registers its shutdown with t.
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()

	fb := &FakeBackend{
		users:    map[string]string{"alice": "wonderland"},
		tokens:   make(map[string]string),
		files:    map[string]string{"main.py": "print('hi')\n"},
		branches: []string{"main"},
		current:  "main",
		failures: make(map[string]int),
		holds:    make(map[string]chan struct{}),

		Answer:       "42",
		StreamChunks: []string{"Hel", "lo"},
		Completion:   "    return x\n",
		Assistance:   "Check the index bounds.",
		Review:       "Looks good.",
		Suggestions: []map[string]interface{}{
			{"line": 1, "message": "Use a main guard", "suggestion": "if __name__ == '__main__':"},
		},
		Analysis: map[string][]map[string]interface{}{
			"app.py": {{"type": "warning", "message": "unused import", "line": 3}},
		},
	}

	fb.Server = httptest.NewServer(fb.router())
	t.Cleanup(fb.Close)
	return fb
}

// URL returns the HTTP base URL.
func (fb *FakeBackend) URL() string {
	return fb.Server.URL
}

// WebSocketURL returns the ws:// URL of the realtime endpoint.
func (fb *FakeBackend) WebSocketURL() string {
	return "ws" + strings.TrimPrefix(fb.Server.URL, "http") + "/ws"
}

// Close drops realtime connections and stops the server.
func (fb *FakeBackend) Close() {
	fb.mu.Lock()
	for key, gate := range fb.holds {
		close(gate)
		delete(fb.holds, key)
	}
	fb.mu.Unlock()

	fb.DropConnections()
	fb.Server.Close()
}

// AddUser registers credentials accepted by /auth/token.
func (fb *FakeBackend) AddUser(username, password string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.users[username] = password
}

// IssueToken mints a valid token for username without a login round trip.
func (fb *FakeBackend) IssueToken(username string) string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	token := "tok-" + username
	fb.tokens[token] = username
	return token
}

// RevokeTokens invalidates every issued token.
func (fb *FakeBackend) RevokeTokens() {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.tokens = make(map[string]string)
}

// FailNext makes every request to "METHOD /path" answer status until cleared
// with status 0.
func (fb *FakeBackend) FailNext(method, path string, status int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	key := method + " " + path
	if status == 0 {
		delete(fb.failures, key)
		return
	}
	fb.failures[key] = status
}

// Hold makes requests to "METHOD /path" block until the returned release
// function is called. The request is recorded before it blocks.
func (fb *FakeBackend) Hold(method, path string) (release func()) {
	gate := make(chan struct{})
	fb.mu.Lock()
	fb.holds[method+" "+path] = gate
	fb.mu.Unlock()

	return func() {
		fb.mu.Lock()
		defer fb.mu.Unlock()
		if fb.holds[method+" "+path] == gate {
			delete(fb.holds, method+" "+path)
			close(gate)
		}
	}
}

// SetFile stores a file in the fake listing.
func (fb *FakeBackend) SetFile(name, content string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.files[name] = content
}

// RemoveFile drops a file from the fake listing.
func (fb *FakeBackend) RemoveFile(name string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	delete(fb.files, name)
}

// FileNames returns the stored file names, sorted.
func (fb *FakeBackend) FileNames() []string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	names := make([]string, 0, len(fb.files))
	for name := range fb.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Requests returns every recorded request.
func (fb *FakeBackend) Requests() []RecordedRequest {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	result := make([]RecordedRequest, len(fb.requests))
	copy(result, fb.requests)
	return result
}

// RequestsTo returns recorded requests for one method and path.
func (fb *FakeBackend) RequestsTo(method, path string) []RecordedRequest {
	var result []RecordedRequest
	for _, r := range fb.Requests() {
		if r.Method == method && r.Path == path {
			result = append(result, r)
		}
	}
	return result
}

// ResetRequests clears the request log.
func (fb *FakeBackend) ResetRequests() {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.requests = nil
}

func (fb *FakeBackend) router() http.Handler {
	r := mux.NewRouter()
	r.Use(fb.record)

	r.HandleFunc("/auth/token", fb.handleToken).Methods(http.MethodPost)
	r.HandleFunc("/auth/register", fb.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/ws", fb.handleWebSocket)

	api := r.NewRoute().Subrouter()
	api.Use(fb.requireAuth)
	api.HandleFunc("/ai/ask", fb.handleAsk).Methods(http.MethodPost)
	api.HandleFunc("/ai/stream", fb.handleStream).Methods(http.MethodPost)
	api.HandleFunc("/ai/switch-model", fb.handleSwitchModel).Methods(http.MethodPost)
	api.HandleFunc("/files/list", fb.handleListFiles).Methods(http.MethodGet)
	api.HandleFunc("/files/upload", fb.handleUpload).Methods(http.MethodPost)
	api.HandleFunc("/files/{name}", fb.handleGetFile).Methods(http.MethodGet)
	api.HandleFunc("/files/{name}", fb.handleDeleteFile).Methods(http.MethodDelete)
	api.HandleFunc("/code/refactor", fb.handleRefactor).Methods(http.MethodPost)
	api.HandleFunc("/code/complete", fb.handleComplete).Methods(http.MethodPost)
	api.HandleFunc("/code/debug", fb.handleDebug).Methods(http.MethodPost)
	api.HandleFunc("/git/commit", fb.handleCommit).Methods(http.MethodPost)
	api.HandleFunc("/git/create-branch", fb.handleCreateBranch).Methods(http.MethodPost)
	api.HandleFunc("/git/current-branch", fb.handleCurrentBranch).Methods(http.MethodGet)
	api.HandleFunc("/git/branches", fb.handleBranches).Methods(http.MethodGet)
	api.HandleFunc("/git/review", fb.handleReview).Methods(http.MethodPost)
	api.HandleFunc("/project/analyze", fb.handleAnalyze).Methods(http.MethodPost)
	api.HandleFunc("/project/summary", fb.handleSummary).Methods(http.MethodGet)
	api.HandleFunc("/project/add-to-context", fb.handleAddToContext).Methods(http.MethodPost)
	api.HandleFunc("/search/web", fb.handleSearch).Methods(http.MethodGet)
	api.HandleFunc("/search/knowledge-base", fb.handleSearch).Methods(http.MethodGet)

	return r
}

func (fb *FakeBackend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil && !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(strings.NewReader(string(body)))
		}
		_, hasAuth := r.Header["Authorization"]

		fb.mu.Lock()
		fb.requests = append(fb.requests, RecordedRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
			HasAuth:       hasAuth,
			ContentType:   r.Header.Get("Content-Type"),
			Body:          string(body),
		})
		status := fb.failures[r.Method+" "+r.URL.Path]
		gate := fb.holds[r.Method+" "+r.URL.Path]
		fb.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}

		if status != 0 {
			writeJSON(w, status, map[string]string{"detail": "forced failure"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (fb *FakeBackend) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		fb.mu.Lock()
		_, ok := fb.tokens[token]
		fb.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (fb *FakeBackend) handleToken(w http.ResponseWriter, r *http.Request) {
	username, password := r.FormValue("username"), r.FormValue("password")

	fb.mu.Lock()
	expected, ok := fb.users[username]
	fb.mu.Unlock()
	if !ok || expected != password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect username or password"})
		return
	}

	token := fb.IssueToken(username)
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token, "token_type": "bearer"})
}

func (fb *FakeBackend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var user map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (fb *FakeBackend) handleAsk(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"response": fb.Answer})
}

func (fb *FakeBackend) handleStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	for _, chunk := range fb.StreamChunks {
		_, _ = io.WriteString(w, chunk)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (fb *FakeBackend) handleSwitchModel(w http.ResponseWriter, r *http.Request) {
	model := r.URL.Query().Get("model")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Switched to model: " + model})
}

func (fb *FakeBackend) handleListFiles(w http.ResponseWriter, r *http.Request) {
	names := fb.FileNames()
	files := make([]map[string]interface{}, 0, len(names))
	fb.mu.Lock()
	for _, name := range names {
		files = append(files, map[string]interface{}{"id": name, "name": name, "size": len(fb.files[name])})
	}
	fb.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"files": files})
}

func (fb *FakeBackend) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	fb.SetFile(header.Filename, string(data))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "File uploaded successfully",
		"file_info": map[string]interface{}{"id": header.Filename, "name": header.Filename, "size": len(data)},
	})
}

func (fb *FakeBackend) handleGetFile(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	fb.mu.Lock()
	content, ok := fb.files[name]
	fb.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "file not found: " + name})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"content": content})
}

func (fb *FakeBackend) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	fb.mu.Lock()
	_, ok := fb.files[name]
	delete(fb.files, name)
	fb.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "file not found: " + name})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "File deleted successfully"})
}

func (fb *FakeBackend) handleRefactor(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, fb.Suggestions)
}

func (fb *FakeBackend) handleComplete(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"completion": fb.Completion})
}

func (fb *FakeBackend) handleDebug(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"assistance": fb.Assistance})
}

func (fb *FakeBackend) handleCommit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Committed: " + req.Message})
}

func (fb *FakeBackend) handleCreateBranch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "name is required"})
		return
	}
	fb.mu.Lock()
	fb.branches = append(fb.branches, req.Name)
	fb.current = req.Name
	fb.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Created and switched to new branch: %s", req.Name)})
}

func (fb *FakeBackend) handleCurrentBranch(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	current := fb.current
	fb.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"branch": current})
}

func (fb *FakeBackend) handleBranches(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	branches := append([]string(nil), fb.branches...)
	fb.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"branches": branches})
}

func (fb *FakeBackend) handleReview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"review": fb.Review})
}

func (fb *FakeBackend) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("project_path") == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "project_path is required"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"project_analysis": fb.Analysis})
}

func (fb *FakeBackend) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"project_summary": map[string]int{"files": len(fb.FileNames())}})
}

func (fb *FakeBackend) handleAddToContext(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("project_path")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Added " + path + " to context"})
}

func (fb *FakeBackend) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": []string{"result for " + query}})
}

// --- realtime ---

func (fb *FakeBackend) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	fb.mu.Lock()
	_, ok := fb.tokens[token]
	fb.mu.Unlock()
	if !ok {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := fb.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	fb.wsMu.Lock()
	fb.wsConns = append(fb.wsConns, conn)
	fb.wsMu.Unlock()

	go fb.serveSocket(conn)
}

func (fb *FakeBackend) serveSocket(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		event, err := events.Parse(data)
		if err != nil {
			continue
		}

		fb.wsMu.Lock()
		fb.inbound = append(fb.inbound, *event)
		fb.wsMu.Unlock()

		if event.Type() == events.EventTypeStreamAIResponse {
			for i, chunk := range fb.StreamChunks {
				reply := events.NewAIStreamChunkEvent(chunk, i == len(fb.StreamChunks)-1)
				reply.RequestID = event.RequestID
				if err := fb.writeTo(conn, reply); err != nil {
					return
				}
			}
		}
	}
}

func (fb *FakeBackend) writeTo(conn *websocket.Conn, event *events.BaseEvent) error {
	data, err := event.ToJSON()
	if err != nil {
		return err
	}
	fb.wsMu.Lock()
	defer fb.wsMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Broadcast pushes an event to every connected realtime client.
func (fb *FakeBackend) Broadcast(event *events.BaseEvent) {
	fb.wsMu.Lock()
	conns := append([]*websocket.Conn(nil), fb.wsConns...)
	fb.wsMu.Unlock()
	for _, conn := range conns {
		_ = fb.writeTo(conn, event)
	}
}

// BroadcastRaw pushes a raw text frame to every connected realtime client.
func (fb *FakeBackend) BroadcastRaw(frame string) {
	fb.wsMu.Lock()
	defer fb.wsMu.Unlock()
	for _, conn := range fb.wsConns {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(frame))
	}
}

// ConnectionCount returns the number of realtime connections accepted so far
// that have not been dropped.
func (fb *FakeBackend) ConnectionCount() int {
	fb.wsMu.Lock()
	defer fb.wsMu.Unlock()
	return len(fb.wsConns)
}

// DropConnections closes every realtime connection from the server side.
func (fb *FakeBackend) DropConnections() {
	fb.wsMu.Lock()
	conns := fb.wsConns
	fb.wsConns = nil
	fb.wsMu.Unlock()
	for _, conn := range conns {
		_ = conn.Close()
	}
}

// Inbound returns the events received over realtime connections.
func (fb *FakeBackend) Inbound() []events.BaseEvent {
	fb.wsMu.Lock()
	defer fb.wsMu.Unlock()
	result := make([]events.BaseEvent, len(fb.inbound))
	copy(result, fb.inbound)
	return result
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
