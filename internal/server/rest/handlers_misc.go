package rest

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gophsocial/internal/server/relay"
	"github.com/dmitrijs2005/gophsocial/internal/server/storage"
	"github.com/gorilla/mux"
)

const uploadCacheControl = "public, max-age=604800, immutable"

type healthResponse struct {
	Status string `json:"status"`
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.Ping != nil {
		if err := s.Ping(r.Context()); err != nil {
			s.logger.Warn(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// serveUpload streams a locally stored image or redirects to a presigned
// object storage URL.
func (s *Server) serveUpload(w http.ResponseWriter, r *http.Request) {
	key, err := storage.CleanKey(mux.Vars(r)["key"])
	if err != nil {
		http.NotFound(w, r)
		return
	}

	loc, err := s.Storage.Locate(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidKey) {
			http.NotFound(w, r)
			return
		}
		s.writeError(w, r, err)
		return
	}

	if loc.URL != "" {
		http.Redirect(w, r, loc.URL, http.StatusFound)
		return
	}

	w.Header().Set("Cache-Control", uploadCacheControl)
	http.ServeFile(w, r, loc.Path)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	if err := s.Relay.ServeWS(w, r, user.ID); err != nil && !errors.Is(err, relay.ErrHubClosed) {
		s.logger.Debug(r.Context(), "relay upgrade failed", "error", err)
	}
}
