package testserver

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// publicEndpoints answer without credentials.
var publicEndpoints = map[string]bool{
	"getOpenSubsonicExtensions": true,
}

func endpointOf(r *http.Request) string {
	return strings.TrimSuffix(chi.URLParam(r, "endpoint"), ".view")
}

// record counts the request and hands it to an override handler if one is
// registered for the endpoint.
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := endpointOf(r)

		s.mu.Lock()
		s.hits[endpoint]++
		s.queries[endpoint] = append(s.queries[endpoint], r.URL.Query())
		override := s.overrides[endpoint]
		s.mu.Unlock()

		if override != nil {
			override(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireClientParams rejects requests without the protocol version and
// client name.
func requireClientParams(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		for _, p := range []string{"v", "c"} {
			if q.Get(p) == "" {
				WriteError(w, CodeMissingParameter, "Required parameter is missing: "+p)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !publicEndpoints[endpointOf(r)] {
			if code, msg := s.authenticate(r.URL.Query()); code != 0 {
				WriteError(w, code, msg)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
