package rest

import (
	"net/http"

	"github.com/dmitrijs2005/gophsocial/internal/server/storage"
	"github.com/gorilla/mux"
)

type uploadPictureResponse struct {
	Message        string `json:"message"`
	ProfilePicture string `json:"profilePicture"`
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	s.writeProfile(w, r, user.ID)
}

func (s *Server) publicProfile(w http.ResponseWriter, r *http.Request) {
	s.writeProfile(w, r, mux.Vars(r)["id"])
}

func (s *Server) writeProfile(w http.ResponseWriter, r *http.Request, userID string) {
	p, err := s.Users.Profile(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfile(p))
}

func (s *Server) searchUsers(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	found, err := s.Users.Search(r.Context(), r.URL.Query().Get("keyword"), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserSummaries(found))
}

func (s *Server) follow(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	created, err := s.Users.Follow(r.Context(), user.ID, mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if !created {
		writeMessage(w, http.StatusOK, "Already following this user")
		return
	}
	s.Metrics.Follows.Inc()
	writeMessage(w, http.StatusOK, "User followed")
}

func (s *Server) unfollow(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	removed, err := s.Users.Unfollow(r.Context(), user.ID, mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if !removed {
		writeMessage(w, http.StatusOK, "You are not following this user")
		return
	}
	s.Metrics.Unfollows.Inc()
	writeMessage(w, http.StatusOK, "User unfollowed")
}

func (s *Server) uploadProfilePicture(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	if err := s.parseMultipart(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	upload, err := s.formUpload(r, "profilePicture")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	key, err := s.Users.UploadProfilePicture(r.Context(), user.ID, upload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.Metrics.ImageUploads.WithLabelValues("profile").Inc()
	writeJSON(w, http.StatusOK, uploadPictureResponse{
		Message:        "Profile picture updated",
		ProfilePicture: storage.PublicURL(key),
	})
}
