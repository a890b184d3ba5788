package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/gophsocial/internal/common"
)

var (
	errPayloadTooLarge = errors.New("payload too large")
	errBadJSON         = common.NewValidationError("Invalid request body")
)

type messageResponse struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// writeError maps err onto a status code and a client-safe message.
// Unexpected errors are logged and answered with 500; their text is only
// exposed outside production.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *common.ValidationError
	if errors.As(err, &ve) {
		writeMessage(w, http.StatusBadRequest, ve.Message)
		return
	}

	var status int
	var msg string

	switch {
	case errors.Is(err, errPayloadTooLarge):
		status, msg = http.StatusRequestEntityTooLarge, "File too large"
	case errors.Is(err, common.ErrInvalidCredentials):
		status, msg = http.StatusUnauthorized, "Invalid Credentials"
	case errors.Is(err, common.ErrInvalidTOTP):
		status, msg = http.StatusUnauthorized, "Invalid 2FA token"
	case errors.Is(err, common.ErrorUnauthorized):
		status, msg = http.StatusUnauthorized, "Not authorized"
	case errors.Is(err, common.ErrorForbidden):
		status, msg = http.StatusForbidden, "Forbidden"
	case errors.Is(err, common.ErrorNotFound):
		status, msg = http.StatusNotFound, "Not found"
	case errors.Is(err, common.ErrorConflict):
		status, msg = http.StatusConflict, "Already exists"
	case errors.Is(err, common.ErrorValidation):
		status, msg = http.StatusBadRequest, "Invalid request"
	default:
		s.logger.Error(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestIDFromContext(r.Context()),
			"error", err,
		)
		resp := messageResponse{Message: "Internal server error"}
		if !s.production {
			resp.Detail = err.Error()
		}
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}

	var me *common.MessageError
	if errors.As(err, &me) {
		msg = me.Message
	}
	writeMessage(w, status, msg)
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", errBadJSON, err)
	}
	return nil
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusNotFound, fmt.Sprintf("Not Found - %s", r.URL.Path))
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
}
