package rest

import (
	"net/http"

	"github.com/gorilla/mux"
)

type createChatRequest struct {
	UserID string `json:"userId"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (s *Server) createChat(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var req createChatRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	chat, err := s.Chats.CreateOrGet(r.Context(), user.ID, req.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChat(chat))
}

func (s *Server) listChats(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	chats, err := s.Chats.List(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChats(chats))
}

func (s *Server) getChat(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	chat, err := s.Chats.Get(r.Context(), mux.Vars(r)["id"], user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChat(chat))
}

func (s *Server) chatHistory(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	msgs, err := s.Chats.History(r.Context(), mux.Vars(r)["id"], user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMessages(msgs))
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	chat, err := s.Chats.AppendMessage(r.Context(), mux.Vars(r)["id"], user.ID, req.Content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.Metrics.MessagesSent.Inc()
	writeJSON(w, http.StatusCreated, toChat(chat))
}
