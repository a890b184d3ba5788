package rest

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gophsocial/internal/common"
)

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginRequest accepts the TOTP code as totpCode or, for older clients, token.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TOTPCode string `json:"totpCode"`
	Token    string `json:"token"`
}

type enableTwoFactorResponse struct {
	Message         string `json:"message"`
	ProvisioningURI string `json:"provisioningUri"`
	// Secret repeats the URI for clients that render the QR code from it.
	Secret string `json:"secret"`
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	sess, err := s.Auth.Signup(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			writeMessage(w, http.StatusConflict, "User Already Exists")
			return
		}
		s.writeError(w, r, err)
		return
	}

	s.Metrics.Signups.Inc()
	writeJSON(w, http.StatusCreated, toAuthResponse(sess.User, sess.Token))
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	code := req.TOTPCode
	if code == "" {
		code = req.Token
	}

	sess, err := s.Auth.Login(r.Context(), req.Email, req.Password, code)
	if err != nil {
		s.Metrics.Logins.WithLabelValues(loginResult(err)).Inc()
		s.writeError(w, r, err)
		return
	}

	s.Metrics.Logins.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, toAuthResponse(sess.User, sess.Token))
}

func loginResult(err error) string {
	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, common.ErrInvalidTOTP):
		return "invalid_totp"
	default:
		return "error"
	}
}

func (s *Server) enableTwoFactor(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	uri, err := s.Auth.EnableTwoFactor(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, enableTwoFactorResponse{
		Message:         "Two-factor authentication is enabled",
		ProvisioningURI: uri,
		Secret:          uri,
	})
}
