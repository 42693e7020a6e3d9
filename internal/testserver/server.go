// Package testserver runs a small fake Subsonic server for tests. It checks
// the fixed client parameters, verifies every authentication scheme, and
// counts the requests each endpoint receives.
package testserver

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/briangreenhill/subsonic/api"
)

// Protocol error codes returned by the fake server.
const (
	CodeMissingParameter = 10
	CodeWrongCredentials = 40
	CodeInvalidAPIKey    = 44
	CodeNotFound         = 70
)

const (
	ServerVersion   = "0.1"
	ProtocolVersion = "1.16.1"
)

// Server is a fake Subsonic server backed by httptest.
type Server struct {
	*httptest.Server

	username   string
	password   string
	apiKey     string
	extensions []api.Extension

	mu        sync.Mutex
	overrides map[string]http.HandlerFunc
	hits      map[string]int
	queries   map[string][]url.Values
}

// Option configures a Server.
type Option func(*Server)

// WithUser sets the accepted username and password.
func WithUser(username, password string) Option {
	return func(s *Server) { s.username, s.password = username, password }
}

// WithAPIKey sets the accepted API key.
func WithAPIKey(key string) Option {
	return func(s *Server) { s.apiKey = key }
}

// WithExtensions sets the advertised OpenSubsonic extensions.
func WithExtensions(exts ...api.Extension) Option {
	return func(s *Server) { s.extensions = exts }
}

// WithHandler replaces the built-in behaviour of one endpoint.
func WithHandler(endpoint string, h http.HandlerFunc) Option {
	return func(s *Server) { s.overrides[endpoint] = h }
}

// New starts a Server. Close it when done.
func New(opts ...Option) *Server {
	s := &Server{
		username:  "admin",
		password:  "sesame",
		overrides: make(map[string]http.HandlerFunc),
		hits:      make(map[string]int),
		queries:   make(map[string][]url.Values),
	}
	for _, o := range opts {
		o(s)
	}

	r := chi.NewRouter()
	r.With(s.record, requireClientParams, s.requireAuth).Get("/rest/{endpoint}", s.serve)
	s.Server = httptest.NewServer(r)
	return s
}

// Handle replaces the behaviour of one endpoint on a running server.
func (s *Server) Handle(endpoint string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[endpoint] = h
}

// Hits returns how many requests endpoint has received.
func (s *Server) Hits(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[endpoint]
}

// LastQuery returns the query of the latest request to endpoint, or nil.
func (s *Server) LastQuery(endpoint string) url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queries[endpoint]
	if len(q) == 0 {
		return nil
	}
	return q[len(q)-1]
}

// Queries returns the queries of every request to endpoint, oldest first.
func (s *Server) Queries(endpoint string) []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.queries[endpoint]...)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	switch endpointOf(r) {
	case "ping":
		WriteEnvelope(w, api.StatusOK, nil)
	case "getOpenSubsonicExtensions":
		WriteEnvelope(w, api.StatusOK, map[string]any{"openSubsonicExtensions": s.extensions})
	case "getLicense":
		WriteEnvelope(w, api.StatusOK, map[string]any{"license": map[string]any{"valid": true}})
	default:
		WriteError(w, CodeNotFound, "Endpoint not found: "+endpointOf(r))
	}
}

// authenticate returns a non-zero protocol error code when q does not carry
// valid credentials.
func (s *Server) authenticate(q url.Values) (int, string) {
	if key := q.Get("apiKey"); key != "" {
		if q.Has("u") {
			return CodeInvalidAPIKey, "Multiple conflicting authentication mechanisms provided"
		}
		if s.apiKey == "" || key != s.apiKey {
			return CodeInvalidAPIKey, "Invalid API key"
		}
		return 0, ""
	}

	if q.Get("u") != s.username {
		return CodeWrongCredentials, "Wrong username or password"
	}
	if t, salt := q.Get("t"), q.Get("s"); t != "" {
		sum := md5.Sum([]byte(s.password + salt))
		if salt == "" || t != hex.EncodeToString(sum[:]) {
			return CodeWrongCredentials, "Wrong username or password"
		}
		return 0, ""
	}

	p := q.Get("p")
	if enc, ok := strings.CutPrefix(p, "enc:"); ok {
		raw, err := hex.DecodeString(enc)
		if err != nil {
			return CodeWrongCredentials, "Wrong username or password"
		}
		p = string(raw)
	}
	if p == "" || p != s.password {
		return CodeWrongCredentials, "Wrong username or password"
	}
	return 0, ""
}

// WriteEnvelope writes a JSON envelope with the given status and extra
// top-level fields.
func WriteEnvelope(w http.ResponseWriter, status string, extra map[string]any) {
	body := map[string]any{
		"status":        status,
		"version":       ProtocolVersion,
		"type":          "testserver",
		"serverVersion": ServerVersion,
		"openSubsonic":  true,
	}
	for k, v := range extra {
		body[k] = v
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"subsonic-response": body}); err != nil {
		log.Printf("Error encoding envelope: %v", err)
	}
}

// WriteError writes a failed envelope carrying code and message.
func WriteError(w http.ResponseWriter, code int, message string) {
	WriteEnvelope(w, api.StatusFailed, map[string]any{
		"error": map[string]any{"code": code, "message": message},
	})
}

// WriteRaw writes body with the given HTTP status.
func WriteRaw(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
