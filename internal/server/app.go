// Package server wires the gophsocial application together: database and
// migrations, image storage, services, the WebSocket relay and the HTTP API.
// It also handles graceful shutdown on SIGINT, SIGTERM and SIGQUIT.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophsocial/internal/logging"
	"github.com/dmitrijs2005/gophsocial/internal/server/config"
	"github.com/dmitrijs2005/gophsocial/internal/server/metrics"
	"github.com/dmitrijs2005/gophsocial/internal/server/relay"
	"github.com/dmitrijs2005/gophsocial/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophsocial/internal/server/rest"
	"github.com/dmitrijs2005/gophsocial/internal/server/services"
	"github.com/dmitrijs2005/gophsocial/internal/server/storage"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	hub    *relay.Hub
	http   *rest.Server
}

// openDB and newStorage are seams for tests.
var (
	openDB     = repomanager.OpenDB
	newStorage = storage.New
)

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	st, err := newStorage(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	return newApp(c, logger, db, rm, st), nil
}

func newApp(c *config.Config, logger logging.Logger, db *sql.DB, rm repomanager.RepositoryManager, st storage.Storage) *App {
	m := metrics.New()

	authService := services.NewAuthService(db, rm, c)
	userService := services.NewUserService(db, rm, st, logger.With("module", "users"))
	postService := services.NewPostService(db, rm, st, logger.With("module", "posts"))
	chatService := services.NewChatService(db, rm)

	hub := relay.NewHub(chatService, logger, m, c.RelaySendBuffer)

	srv := rest.NewServer(c, logger, rest.Deps{
		Auth:    authService,
		Users:   userService,
		Posts:   postService,
		Chats:   chatService,
		Relay:   hub,
		Storage: st,
		Metrics: m,
		Ping:    db.PingContext,
	})

	return &App{config: c, logger: logger, db: db, hub: hub, http: srv}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.http.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until a termination signal arrives or ctx is cancelled. The
// HTTP server shuts down first; the relay is closed once it has returned,
// since hijacked WebSocket connections outlive Shutdown. The database is
// closed last.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	hubCtx, stopHub := context.WithCancel(context.WithoutCancel(ctx))
	defer stopHub()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.hub.Run(hubCtx); err != nil {
			app.logger.Error(ctx, err.Error())
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer stopHub()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "error closing database", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
