package rest

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

type commentRequest struct {
	Content string `json:"content"`
}

type likeResponse struct {
	Message string `json:"message"`
	Likes   int    `json:"likes"`
}

func (s *Server) feed(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	fp, err := s.Posts.Feed(r.Context(), user.ID, page, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, feedDTO{
		Items:   toPosts(fp.Items),
		Page:    fp.Page,
		Limit:   fp.Limit,
		Total:   fp.Total,
		HasMore: fp.HasMore,
	})
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	if err := s.parseMultipart(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}

	content := r.FormValue("content")
	if content == "" && r.MultipartForm == nil {
		var req commentRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		content = req.Content
	}

	image, err := s.formUpload(r, "image")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	post, err := s.Posts.Create(r.Context(), user.ID, content, image)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.Metrics.PostsCreated.Inc()
	if post.Image != "" {
		s.Metrics.ImageUploads.WithLabelValues("post").Inc()
	}
	writeJSON(w, http.StatusCreated, toPost(post))
}

func (s *Server) getPost(w http.ResponseWriter, r *http.Request) {
	post, err := s.Posts.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPost(post))
}

func (s *Server) userPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.Posts.ListByUser(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPosts(posts))
}

func (s *Server) deletePost(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	if err := s.Posts.Delete(r.Context(), mux.Vars(r)["id"], user.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Post removed")
}

func (s *Server) likePost(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	added, count, err := s.Posts.Like(r.Context(), mux.Vars(r)["id"], user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	msg := "Already liked"
	if added {
		msg = "Liked"
		s.Metrics.Likes.Inc()
	}
	writeJSON(w, http.StatusOK, likeResponse{Message: msg, Likes: count})
}

func (s *Server) unlikePost(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	removed, count, err := s.Posts.Unlike(r.Context(), mux.Vars(r)["id"], user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	msg := "Not liked"
	if removed {
		msg = "Unliked"
	}
	writeJSON(w, http.StatusOK, likeResponse{Message: msg, Likes: count})
}

func (s *Server) commentPost(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, err := s.Posts.Comment(r.Context(), mux.Vars(r)["id"], user.ID, req.Content); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.Metrics.Comments.Inc()
	writeMessage(w, http.StatusCreated, "Comment Added")
}
