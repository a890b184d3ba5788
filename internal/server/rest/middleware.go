package rest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophsocial/internal/common"
	"github.com/dmitrijs2005/gophsocial/internal/server/models"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type ctxKey string

const (
	userKey      ctxKey = "user"
	requestIDKey ctxKey = "requestID"
)

// UserFromContext returns the user attached by the session middleware.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey).(*models.User)
	return u, ok && u != nil
}

// RequestIDFromContext returns the id assigned to the request.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(common.RequestIDHeaderName)
		if id == "" || len(id) > 128 {
			id = newRequestID()
		}
		w.Header().Set(common.RequestIDHeaderName, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func newRequestID() string {
	id, err := common.MakeRandHexString(16)
	if err != nil {
		return uuid.NewString()
	}
	return id
}

// statusRecorder captures the response code. It keeps Hijack working for
// the WebSocket upgrade.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	if r.status == 0 {
		r.status = http.StatusSwitchingProtocols
	}
	return h.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", duration.String(),
			"request_id", RequestIDFromContext(r.Context()),
		}

		// Upgraded connections run for the whole socket session.
		if status == http.StatusSwitchingProtocols {
			s.logger.Info(r.Context(), "websocket session closed", args...)
			s.Metrics.ObserveUpgrade(r.Method, route)
			return
		}

		if s.slowRequest > 0 && duration > s.slowRequest {
			s.logger.Warn(r.Context(), "Slow request detected", args...)
		} else {
			s.logger.Info(r.Context(), "request", args...)
		}
		s.Metrics.ObserveHTTP(r.Method, route, status, duration)
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				s.logger.Error(r.Context(), "panic serving request",
					"panic", fmt.Sprint(p),
					"stack", string(debug.Stack()),
					"request_id", RequestIDFromContext(r.Context()),
				)
				s.writeError(w, r, fmt.Errorf("panic: %v", p))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authenticate resolves the bearer token to a user. With allowQuery the
// token may also come from the "token" query parameter, which browsers need
// for WebSocket handshakes.
func (s *Server) authenticate(next http.Handler, allowQuery bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" && allowQuery {
			token = r.URL.Query().Get("token")
		}

		user, err := s.Auth.Authenticate(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, common.ErrTokenMissing):
				writeMessage(w, http.StatusUnauthorized, "Not authorized, no token")
			case errors.Is(err, common.ErrTokenExpired):
				writeMessage(w, http.StatusUnauthorized, "Not authorized, token expired")
			case errors.Is(err, common.ErrInvalidToken):
				writeMessage(w, http.StatusUnauthorized, "Not authorized, token invalid")
			case errors.Is(err, common.ErrorNotFound):
				writeMessage(w, http.StatusUnauthorized, "Not authorized, user not found")
			default:
				s.writeError(w, r, err)
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get(common.AuthorizationHeaderName))
	n := len(common.BearerPrefix)
	if len(h) < n || !strings.EqualFold(h[:n], common.BearerPrefix) {
		return ""
	}
	return strings.TrimSpace(h[n:])
}
