package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/justinas/alice"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/diewo77/briefly/internal/access"
	"github.com/diewo77/briefly/internal/auth"
	"github.com/diewo77/briefly/internal/config"
	"github.com/diewo77/briefly/internal/handlers"
	"github.com/diewo77/briefly/internal/logging"
	"github.com/diewo77/briefly/internal/metrics"
	"github.com/diewo77/briefly/internal/middleware"
	"github.com/diewo77/briefly/internal/notify"
	"github.com/diewo77/briefly/internal/policy"
	"github.com/diewo77/briefly/internal/render"
	"github.com/diewo77/briefly/internal/services"
	"github.com/diewo77/briefly/internal/store"
)

// App is the main application handler that sets up all routes.
type App struct {
	mux      *http.ServeMux
	handler  http.Handler
	db       *gorm.DB
	redis    *redis.Client
	logger   logging.Logger
	metrics  *metrics.Metrics
	sessions *auth.Sessions
}

// NewApp wires the stores, services and handlers from cfg.
func NewApp(cfg *config.Config, conn *gorm.DB, l logging.Logger) (*App, error) {
	l = logging.OrNop(l)
	app := &App{
		mux:     http.NewServeMux(),
		db:      conn,
		logger:  l,
		metrics: metrics.New(),
	}

	attempts, err := app.attemptStore(cfg.Access)
	if err != nil {
		return nil, err
	}

	var notifier notify.Notifier = notify.NewLogNotifier(l.Named("notify"))
	outbox := notify.NewOutbox(conn)
	if cfg.Notify.Notifier == "outbox" {
		notifier = outbox
	}

	docStore := store.NewDocumentStore(conn)
	users := store.NewUserStore(conn)
	clients := store.NewClientStore(conn)
	authz := policy.NewOwnerGate()
	hasher := access.NewBcryptHasher(cfg.Auth.BcryptCost)
	accounts := services.NewAccountService(users, hasher)

	app.sessions = auth.NewSessions(cfg.Auth.SessionSecret,
		auth.WithVerifier(accounts.Exists),
		auth.WithSecureCookies(cfg.Auth.SecureCookies),
	)

	docs := services.NewDocumentService(docStore, clients, users, authz, hasher,
		notify.NewDispatcher(notifier, l.Named("notify")),
		services.WithPublicBaseURL(cfg.Server.PublicBaseURL),
		services.WithMetrics(app.metrics),
		services.WithLogger(l.Named("documents")),
	)

	gate := access.NewGate(docStore, attempts, hasher,
		access.Config{WindowMinutes: cfg.Access.WindowMinutes, MaxAttempts: cfg.Access.MaxAttempts},
		access.WithLogger(l.Named("access")),
		access.WithObserver(func(r access.Reason) { app.metrics.GateDecision(string(r)) }),
	)

	renderer, err := render.New()
	if err != nil {
		return nil, err
	}

	app.setupRoutes(routeDeps{
		auth:          handlers.NewAuthHandler(accounts, users, app.sessions, l),
		clients:       handlers.NewClientHandler(services.NewClientService(clients, authz), l),
		documents:     handlers.NewDocumentHandler(docs, renderer, l),
		notifications: handlers.NewNotificationHandler(outbox, l),
		public: handlers.NewPublicHandler(docs, gate, app.sessions, renderer, l,
			handlers.WithTrustProxy(cfg.Server.TrustProxy),
			handlers.WithGrantTTL(cfg.Access.GrantTTL()),
		),
	})

	app.handler = alice.New(
		middleware.Recover(l),
		middleware.RequestLogger(l.Named("http")),
		middleware.SecureHeaders,
		middleware.Prefs,
		app.sessions.Middleware,
		// Innermost, so it sees the pattern the mux matched.
		app.metrics.Middleware,
	).Then(app.mux)
	return app, nil
}

func (a *App) attemptStore(cfg config.AccessConfig) (access.AttemptStore, error) {
	if cfg.Store != "redis" {
		return store.NewAttemptStore(a.db), nil
	}
	a.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := a.redis.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
	}
	a.logger.Infow("access attempts stored in redis", "addr", cfg.RedisAddr)
	return store.NewRedisAttemptStore(a.redis, cfg.Window()), nil
}

type routeDeps struct {
	auth          *handlers.AuthHandler
	clients       *handlers.ClientHandler
	documents     *handlers.DocumentHandler
	notifications *handlers.NotificationHandler
	public        *handlers.PublicHandler
}

// setupRoutes configures all application routes.
func (a *App) setupRoutes(d routeDeps) {
	protect := a.sessions.RequireAuth

	// Operations
	a.mux.HandleFunc("GET /healthz", handlers.Health(a.db))
	a.mux.Handle("GET /metrics", a.metrics.Handler())

	// Accounts
	a.mux.HandleFunc("POST /api/signup", d.auth.Signup)
	a.mux.HandleFunc("POST /api/login", d.auth.Login)
	a.mux.HandleFunc("POST /api/logout", d.auth.Logout)
	a.mux.Handle("GET /api/me", protect(http.HandlerFunc(d.auth.Me)))

	// Clients
	a.mux.Handle("GET /api/clients", protect(http.HandlerFunc(d.clients.List)))
	a.mux.Handle("POST /api/clients", protect(http.HandlerFunc(d.clients.Create)))
	a.mux.Handle("GET /api/clients/{id}", protect(http.HandlerFunc(d.clients.Get)))

	// Briefs and invoices
	d.documents.Routes(a.mux, protect)

	// Notifications
	a.mux.Handle("GET /api/notifications", protect(http.HandlerFunc(d.notifications.List)))
	a.mux.Handle("POST /api/notifications/{id}/read", protect(http.HandlerFunc(d.notifications.MarkRead)))

	// Public document pages
	d.public.Routes(a.mux)
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// Close releases the connections opened by NewApp and the database.
func (a *App) Close() error {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
