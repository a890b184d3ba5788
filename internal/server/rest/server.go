// Package rest exposes the gophsocial API over HTTP: JSON resources under
// /api, the WebSocket relay, uploaded images, health and metrics.
package rest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophsocial/internal/logging"
	"github.com/dmitrijs2005/gophsocial/internal/server/config"
	"github.com/dmitrijs2005/gophsocial/internal/server/metrics"
	"github.com/dmitrijs2005/gophsocial/internal/server/models"
	"github.com/dmitrijs2005/gophsocial/internal/server/services"
	"github.com/dmitrijs2005/gophsocial/internal/server/storage"
	"github.com/gorilla/mux"
)

type AuthService interface {
	Signup(ctx context.Context, username, email, password string) (*services.Session, error)
	Login(ctx context.Context, email, password, totpCode string) (*services.Session, error)
	EnableTwoFactor(ctx context.Context, userID string) (string, error)
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

type UserService interface {
	Profile(ctx context.Context, userID string) (*models.Profile, error)
	Search(ctx context.Context, keyword, requesterID string) ([]models.UserSummary, error)
	Follow(ctx context.Context, requesterID, targetID string) (bool, error)
	Unfollow(ctx context.Context, requesterID, targetID string) (bool, error)
	UploadProfilePicture(ctx context.Context, userID string, upload *services.Upload) (string, error)
}

type PostService interface {
	Feed(ctx context.Context, userID string, page, limit int) (*models.FeedPage, error)
	Create(ctx context.Context, userID, content string, image *services.Upload) (*models.Post, error)
	Get(ctx context.Context, postID string) (*models.Post, error)
	ListByUser(ctx context.Context, userID string) ([]models.Post, error)
	Like(ctx context.Context, postID, userID string) (bool, int, error)
	Unlike(ctx context.Context, postID, userID string) (bool, int, error)
	Comment(ctx context.Context, postID, userID, content string) (*models.Comment, error)
	Delete(ctx context.Context, postID, userID string) error
}

type ChatService interface {
	CreateOrGet(ctx context.Context, requesterID, peerID string) (*models.Chat, error)
	List(ctx context.Context, requesterID string) ([]models.Chat, error)
	Get(ctx context.Context, chatID, requesterID string) (*models.Chat, error)
	History(ctx context.Context, chatID, requesterID string) ([]models.Message, error)
	AppendMessage(ctx context.Context, chatID, requesterID, content string) (*models.Chat, error)
}

// Relay serves an authenticated WebSocket connection.
type Relay interface {
	ServeWS(w http.ResponseWriter, r *http.Request, userID string) error
}

// Deps bundles everything the handlers call into.
type Deps struct {
	Auth    AuthService
	Users   UserService
	Posts   PostService
	Chats   ChatService
	Relay   Relay
	Storage storage.Storage
	Metrics *metrics.Metrics
	// Ping checks backing services for /healthz. Optional.
	Ping func(ctx context.Context) error
}

type Server struct {
	Deps

	address         string
	logger          logging.Logger
	production      bool
	maxUploadBytes  int64
	slowRequest     time.Duration
	shutdownTimeout time.Duration

	router *mux.Router
}

func NewServer(cfg *config.Config, l logging.Logger, d Deps) *Server {
	s := &Server{
		Deps:            d,
		address:         cfg.HTTPAddr,
		logger:          l.With("module", "http_server"),
		production:      cfg.IsProduction(),
		maxUploadBytes:  cfg.MaxUploadBytes,
		slowRequest:     cfg.SlowRequestThreshold,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler; useful for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestID, s.accessLog, s.recoverer)
	r.NotFoundHandler = http.HandlerFunc(s.notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(s.methodNotAllowed)

	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", s.Metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/uploads/{key:.+}", s.serveUpload).Methods(http.MethodGet, http.MethodHead)
	r.Handle("/ws", s.authenticate(http.HandlerFunc(s.serveWS), true)).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/signup", s.signup).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.login).Methods(http.MethodPost)

	p := api.NewRoute().Subrouter()
	p.Use(func(next http.Handler) http.Handler { return s.authenticate(next, false) })

	p.HandleFunc("/auth/enable-2fa", s.enableTwoFactor).Methods(http.MethodPost)

	p.HandleFunc("/posts", s.feed).Methods(http.MethodGet)
	p.HandleFunc("/posts", s.createPost).Methods(http.MethodPost)
	p.HandleFunc("/posts/user/{userId}", s.userPosts).Methods(http.MethodGet)
	p.HandleFunc("/posts/{id}", s.getPost).Methods(http.MethodGet)
	p.HandleFunc("/posts/{id}", s.deletePost).Methods(http.MethodDelete)
	p.HandleFunc("/posts/{id}/like", s.likePost).Methods(http.MethodPost)
	p.HandleFunc("/posts/{id}/unlike", s.unlikePost).Methods(http.MethodPost)
	p.HandleFunc("/posts/{id}/comments", s.commentPost).Methods(http.MethodPost)

	p.HandleFunc("/users/profile", s.profile).Methods(http.MethodGet)
	p.HandleFunc("/users/profile/upload", s.uploadProfilePicture).Methods(http.MethodPost)
	p.HandleFunc("/users/search", s.searchUsers).Methods(http.MethodGet)
	p.HandleFunc("/users/follow/{id}", s.follow).Methods(http.MethodPost)
	p.HandleFunc("/users/unfollow/{id}", s.unfollow).Methods(http.MethodPost)
	p.HandleFunc("/users/{id}", s.publicProfile).Methods(http.MethodGet)

	p.HandleFunc("/chat", s.createChat).Methods(http.MethodPost)
	p.HandleFunc("/chat", s.listChats).Methods(http.MethodGet)
	p.HandleFunc("/chat/{id}", s.getChat).Methods(http.MethodGet)
	p.HandleFunc("/chat/{id}/message", s.chatHistory).Methods(http.MethodGet)
	p.HandleFunc("/chat/{id}/message", s.sendMessage).Methods(http.MethodPost)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		stopped <- srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return <-stopped
}
