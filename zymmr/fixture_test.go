package zymmr

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testUser     = "dev@example.com"
	testPassword = "secret"
)

// fakeFrappe is an in-memory Frappe server covering the endpoints the client uses
type fakeFrappe struct {
	server *httptest.Server

	mu        sync.Mutex
	sessions  map[string]bool
	docs      map[string][]Document // doctype -> documents in insertion order
	required  map[string][]string   // doctype -> mandatory fields
	seq       int
	logins    int
	hits      map[string]int // "METHOD path" -> count
	requestID map[string][]string
	lastQuery url.Values
	forbidden map[string]bool // doctypes the test user may not read or write

	failures   int           // data calls still to fail with failStatus
	failStatus int           // defaults to 500
	delay      time.Duration // added to data calls
}

func newFakeFrappe(t *testing.T) *fakeFrappe {
	t.Helper()

	f := &fakeFrappe{
		sessions:  make(map[string]bool),
		docs:      make(map[string][]Document),
		required:  map[string][]string{DocTypeProject: {"title"}},
		hits:      make(map[string]int),
		requestID: make(map[string][]string),
		forbidden: make(map[string]bool),
	}
	for _, dt := range []string{DocTypeProject, DocTypeWorkItem, DocTypeUser, DocTypeTimeLog, DocTypeSprint} {
		f.docs[dt] = nil
	}
	f.docs[DocTypeUser] = []Document{{"name": testUser, "email": testUser, "full_name": "Dev User"}}

	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeFrappe) URL() string {
	return f.server.URL
}

// seed adds documents without going through the API
func (f *fakeFrappe) seed(doctype string, docs ...Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range docs {
		f.docs[doctype] = append(f.docs[doctype], d.Clone())
	}
}

// expireSessions invalidates every session issued so far
func (f *fakeFrappe) expireSessions() {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.sessions)
}

func (f *fakeFrappe) failNext(n, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = n
	f.failStatus = status
}

// forbid makes every call on doctype fail with a PermissionError
func (f *fakeFrappe) forbid(doctype string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forbidden[doctype] = true
}

func (f *fakeFrappe) loginCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins
}

func (f *fakeFrappe) hitCount(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[method+" "+path]
}

func (f *fakeFrappe) query() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastQuery
}

func (f *fakeFrappe) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.hits[r.Method+" "+r.URL.Path]++
	f.requestID[r.URL.Path] = append(f.requestID[r.URL.Path], r.Header.Get("X-Request-ID"))
	delay := f.delay
	f.mu.Unlock()

	if r.URL.Path == loginPath {
		f.handleLogin(w, r)
		return
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failures > 0 {
		f.failures--
		status := f.failStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, map[string]any{"exc_type": "InternalError", "exception": "Internal failure"})
		return
	}

	cookie, err := r.Cookie("sid")
	if err != nil || cookie.Value == "Guest" {
		writeJSON(w, http.StatusForbidden, map[string]any{"exc_type": "PermissionError", "exception": "frappe.exceptions.PermissionError: Not permitted"})
		return
	}
	if !f.sessions[cookie.Value] {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"exc_type": "AuthenticationError", "session_expired": 1})
		return
	}

	switch {
	case r.URL.Path == logoutPath:
		delete(f.sessions, cookie.Value)
		writeJSON(w, http.StatusOK, map[string]any{})
	case r.URL.Path == loggedUserPath:
		writeJSON(w, http.StatusOK, map[string]any{"message": testUser})
	case r.URL.Path == getValuePath:
		f.handleGetValue(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/resource/"):
		f.handleResource(w, r)
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"exc_type": "DoesNotExistError"})
	}
}

func (f *fakeFrappe) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": err.Error()})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if r.PostForm.Get("usr") != testUser || r.PostForm.Get("pwd") != testPassword {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"message":  "Invalid Login. Try again.",
			"exc_type": "AuthenticationError",
		})
		return
	}

	f.logins++
	sid := fmt.Sprintf("sid-%d", f.logins)
	f.sessions[sid] = true
	http.SetCookie(w, &http.Cookie{Name: "sid", Value: sid, Path: "/"})
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Logged In",
		"home_page": "/app",
		"full_name": "Dev User",
	})
}

func (f *fakeFrappe) handleGetValue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	docs, ok := f.docs[q.Get("doctype")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"exc_type": "DoesNotExistError"})
		return
	}

	triples, err := parseTriples(q.Get("filters"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": err.Error()})
		return
	}

	field := q.Get("fieldname")
	for _, d := range docs {
		if matchTriples(d, triples) {
			writeJSON(w, http.StatusOK, map[string]any{"message": map[string]any{field: d[field]}})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": nil})
}

func (f *fakeFrappe) handleResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.EscapedPath(), "/api/resource/")
	doctypeRaw, nameRaw, hasName := strings.Cut(rest, "/")
	doctype, _ := url.PathUnescape(doctypeRaw)
	name, _ := url.PathUnescape(nameRaw)

	docs, ok := f.docs[doctype]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"exc_type":  "DoesNotExistError",
			"exception": "frappe.exceptions.DoesNotExistError: DocType " + doctype + " not found",
		})
		return
	}
	if f.forbidden[doctype] {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"exc_type":  "PermissionError",
			"exception": "frappe.exceptions.PermissionError: No permission for " + doctype,
		})
		return
	}

	if !hasName {
		switch r.Method {
		case http.MethodGet:
			f.handleList(w, r, docs)
		case http.MethodPost:
			f.handleInsert(w, r, doctype)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	idx := slices.IndexFunc(docs, func(d Document) bool { return d.Name() == name })
	if idx < 0 {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"exc_type":  "DoesNotExistError",
			"exception": fmt.Sprintf("frappe.exceptions.DoesNotExistError: %s %s not found", doctype, name),
		})
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"data": docs[idx]})
	case http.MethodPut:
		var patch Document
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": err.Error()})
			return
		}
		for k, v := range patch {
			docs[idx][k] = v
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": docs[idx]})
	case http.MethodDelete:
		f.docs[doctype] = slices.Delete(docs, idx, idx+1)
		writeJSON(w, http.StatusAccepted, map[string]any{"message": "ok"})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeFrappe) handleList(w http.ResponseWriter, r *http.Request, docs []Document) {
	q := r.URL.Query()
	f.lastQuery = q

	triples, err := parseTriples(q.Get("filters"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": err.Error()})
		return
	}

	var fields []string
	if raw := q.Get("fields"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": err.Error()})
			return
		}
	}

	start, _ := strconv.Atoi(q.Get("limit_start"))
	limit := 20
	if raw := q.Get("limit_page_length"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	matched := []Document{}
	for _, d := range docs {
		if matchTriples(d, triples) {
			matched = append(matched, project(d, fields))
		}
	}

	if start > len(matched) {
		start = len(matched)
	}
	matched = matched[start:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": matched})
}

func (f *fakeFrappe) handleInsert(w http.ResponseWriter, r *http.Request, doctype string) {
	var doc Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": err.Error()})
		return
	}

	for _, field := range f.required[doctype] {
		if doc.String(field) == "" {
			msg, _ := json.Marshal(map[string]string{"message": "Value missing for " + doctype + ": " + field})
			serverMessages, _ := json.Marshal([]string{string(msg)})
			writeJSON(w, http.StatusExpectationFailed, map[string]any{
				"exc_type":         "MandatoryError",
				"exception":        "frappe.exceptions.MandatoryError: " + field,
				"_server_messages": string(serverMessages),
			})
			return
		}
	}

	if doc.Name() == "" {
		f.seq++
		doc["name"] = fmt.Sprintf("%s-%04d", strings.ToUpper(strings.ReplaceAll(doctype, " ", "")[:2]), f.seq)
	}
	if slices.ContainsFunc(f.docs[doctype], func(d Document) bool { return d.Name() == doc.Name() }) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"exc_type":  "DuplicateEntryError",
			"exception": "frappe.exceptions.DuplicateEntryError: " + doc.Name(),
		})
		return
	}

	doc["doctype"] = doctype
	f.docs[doctype] = append(f.docs[doctype], doc)
	writeJSON(w, http.StatusOK, map[string]any{"data": doc})
}

func parseTriples(raw string) ([][]any, error) {
	if raw == "" {
		return nil, nil
	}
	var triples [][]any
	if err := json.Unmarshal([]byte(raw), &triples); err != nil {
		return nil, err
	}
	return triples, nil
}

func matchTriples(d Document, triples [][]any) bool {
	for _, t := range triples {
		if len(t) != 3 {
			return false
		}
		field, _ := t[0].(string)
		op, _ := t[1].(string)
		if !matchCondition(d[field], op, t[2]) {
			return false
		}
	}
	return true
}

func matchCondition(actual any, op string, want any) bool {
	switch op {
	case OpEquals:
		return looseEqual(actual, want)
	case OpNotEquals:
		return !looseEqual(actual, want)
	case OpIn:
		values, _ := want.([]any)
		return slices.ContainsFunc(values, func(v any) bool { return looseEqual(actual, v) })
	case OpLike:
		s, _ := actual.(string)
		pattern, _ := want.(string)
		return strings.Contains(strings.ToLower(s), strings.ToLower(strings.Trim(pattern, "%")))
	case OpGreater, OpGreaterEqual, OpLess, OpLessEqual:
		a, ok1 := toFloat(actual)
		b, ok2 := toFloat(want)
		if !ok1 || !ok2 {
			return false
		}
		switch op {
		case OpGreater:
			return a > b
		case OpGreaterEqual:
			return a >= b
		case OpLess:
			return a < b
		default:
			return a <= b
		}
	}
	return false
}

func project(d Document, fields []string) Document {
	if len(fields) == 0 || slices.Contains(fields, "*") {
		return d.Clone()
	}
	out := Document{}
	for _, f := range fields {
		if v, ok := d[f]; ok {
			out[f] = v
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// testConfig returns a config pointing at url with fast retries
func testConfig(url string) Config {
	cfg := DefaultConfig()
	cfg.BaseURL = url
	cfg.Username = testUser
	cfg.Password = testPassword
	cfg.Timeout = 5 * time.Second
	cfg.RetryDelay = time.Millisecond
	cfg.MaxRetryDelay = 5 * time.Millisecond
	return cfg
}

func newTestClient(t *testing.T, cfg Config, opts ...Option) *Client {
	t.Helper()

	client, err := NewClient(cfg, zerolog.Nop(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}
