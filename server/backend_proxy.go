package server

import (
	"io"
	"net/http"

	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
	"github.com/rs/zerolog/log"
)

// Headers copied from the console request to the admin API and back
var (
	proxiedRequestHeaders  = []string{"Accept", "Content-Type"}
	proxiedResponseHeaders = []string{"Content-Type", "Cache-Control", "Location"}
)

// BackendProxyHandler forwards /api/backend/<path> to the admin API with the operator's
// access token and active workspace attached.
func (s *Server) BackendProxyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := s.apiBaseURL + "/" + r.PathValue("path")
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}

		req, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
		if err != nil {
			writeJSONError(w, "invalid_request", err.Error(), http.StatusBadRequest)
			return
		}
		for _, h := range proxiedRequestHeaders {
			if v := r.Header.Get(h); v != "" {
				req.Header.Set(h, v)
			}
		}
		req.Header.Set(headerRequestID, requestID(r))

		resp, err := s.backend.Do(req)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrNotAuthenticated) {
				writeJSONError(w, "not_authenticated", "access token is not available", http.StatusUnauthorized)
				return
			}
			log.Err(err).Str("target", target).Str("request_id", requestID(r)).Msg("Backend request failed")
			writeJSONError(w, "bad_gateway", "admin API unavailable", http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()

		for _, h := range proxiedResponseHeaders {
			if v := resp.Header.Get(h); v != "" {
				w.Header().Set(h, v)
			}
		}
		w.WriteHeader(resp.StatusCode)
		if _, err := io.Copy(w, resp.Body); err != nil {
			log.Warn().Err(err).Str("target", target).Msg("Failed to copy backend response")
		}
	}
}
