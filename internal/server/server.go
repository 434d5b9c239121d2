// Package server is the composition root: it builds the store, executor,
// services and handlers from a config.Config, mounts the routes and runs the
// HTTP server until a shutdown signal arrives.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/robfig/cron/v3"

	"github.com/sakif/codecraft/internal/auth"
	"github.com/sakif/codecraft/internal/config"
	"github.com/sakif/codecraft/internal/executor"
	"github.com/sakif/codecraft/internal/executor/docker"
	"github.com/sakif/codecraft/internal/executor/piston"
	"github.com/sakif/codecraft/internal/handler"
	"github.com/sakif/codecraft/internal/mail"
	"github.com/sakif/codecraft/internal/middleware"
	sqliteRepo "github.com/sakif/codecraft/internal/repository/sqlite"
	"github.com/sakif/codecraft/internal/runtime"
	"github.com/sakif/codecraft/internal/service"
)

// Server owns the database, the executor and the runtime sync job. All three
// are released by Start on shutdown, or by Close when Start never ran.
type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	exec     executor.Executor
	tokens   *auth.TokenService
	runtimes *runtime.Registry
	piston   *piston.Client
	cron     *cron.Cron
}

// New wires every dependency. It does not touch the network: the docker
// backend is the one exception, since it pulls images and warms its pools.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setup(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Server) setup() error {
	var err error
	s.tokens, err = auth.NewTokenService(s.config.JWTSecret, s.config.SessionTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	s.runtimes, err = runtime.NewRegistry(s.logger)
	if err != nil {
		return fmt.Errorf("loading language registry: %w", err)
	}

	// The piston client also serves runtime sync, so it exists even when
	// docker runs the code.
	s.piston = piston.New(s.config.PistonURL, &http.Client{Timeout: s.config.ExecutionTimeout + 5*time.Second}, s.logger)

	switch s.config.Executor {
	case config.ExecutorDocker:
		dcfg := docker.DefaultConfig()
		dcfg.Timeout = s.config.ExecutionTimeout
		exec, err := docker.New(dcfg, s.logger)
		if err != nil {
			return fmt.Errorf("starting docker executor: %w", err)
		}
		s.logger.Info("docker executor ready", slog.Any("languages", exec.Languages()))
		s.exec = exec
	default:
		s.exec = s.piston
	}

	s.setupRoutes()
	return nil
}

func (s *Server) mailer() mail.Mailer {
	if !s.config.MailEnabled() {
		s.logger.Warn("MAILJET_API_KEY not set, welcome mails are disabled")
		return mail.Noop{Logger: s.logger}
	}
	return mail.NewMailjet(s.config.MailjetAPIKey, s.config.MailjetSecretKey, s.config.MailjetSender, s.config.MailjetSenderName)
}

// setupRoutes mounts the API.
//
//	GET  /health
//	/auth/github/login, /auth/github/callback, /auth/logout
//	/api/me, /api/users, /api/languages, /api/completions, /api/execute
//	/api/snippets/..., /api/marketplace/..., /api/newsletter/...
//
// Every /api request passes through OptionalAuth, so handlers see the caller
// when there is one; the services decide what needs a signed-in user.
func (s *Server) setupRoutes() {
	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	db := s.db
	snippets := service.NewSnippetService(db, db, db, db, s.logger)
	users := service.NewAuthService(db, s.tokens, s.logger)
	executions := service.NewExecutionService(s.exec, s.runtimes, db, db, db, db, s.logger)
	marketplace := service.NewMarketplaceService(db, db, s.logger)
	ratings := service.NewRatingService(db, db, db, s.logger)
	comments := service.NewCommentService(db, db, db, s.logger)
	favorites := service.NewFavoriteService(db, db, s.logger)
	newsletter := service.NewNewsletterService(db, s.mailer(), s.logger)

	authHandler := handler.NewAuthHandler(handler.AuthHandlerConfig{
		GitHub:      auth.NewGitHubProvider(s.config.GitHubClientID, s.config.GitHubClientSecret, s.config.GitHubCallbackURL),
		States:      auth.NewStateStore([]byte(s.config.CookieHashKey), s.config.SecureCookies),
		Users:       users,
		SessionTTL:  int(s.config.SessionTTL.Seconds()),
		Secure:      s.config.SecureCookies,
		FrontendURL: s.config.FrontendURL,
	}, s.logger)
	userHandler := handler.NewUserHandler(users, executions, snippets, s.logger)
	snippetHandler := handler.NewSnippetHandler(snippets, s.logger)
	marketHandler := handler.NewMarketplaceHandler(marketplace, ratings, comments, favorites, s.logger)
	executeHandler := handler.NewExecuteHandler(executions, s.runtimes, s.logger)
	newsletterHandler := handler.NewNewsletterHandler(newsletter, s.logger)

	if !s.config.GitHubEnabled() {
		s.logger.Warn("GITHUB_CLIENT_ID not set, GitHub sign-in is disabled")
	}

	r.Get("/health", s.handleHealth)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/github/login", authHandler.HandleGitHubLogin)
		r.Get("/github/callback", authHandler.HandleGitHubCallback)
		r.Post("/logout", authHandler.HandleLogout)
	})

	strict := httprate.Limit(s.config.StrictRateLimit, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
		httprate.WithLimitHandler(tooManyRequests),
	)

	r.Route("/api", func(r chi.Router) {
		r.Use(httprate.Limit(s.config.RateLimit, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(tooManyRequests),
		))
		r.Use(auth.OptionalAuth(s.tokens))

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(s.tokens))
			r.Get("/me", userHandler.HandleMe)
			r.Get("/me/starred", userHandler.HandleStarred)
			r.Get("/me/favorites", userHandler.HandleFavorites)
		})

		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/", userHandler.HandleGet)
			r.Get("/executions", userHandler.HandleExecutions)
			r.Get("/stats", userHandler.HandleStats)
		})

		r.Get("/languages", executeHandler.HandleLanguages)
		r.Post("/completions", executeHandler.HandleCompletions)
		r.With(strict).Post("/execute", executeHandler.HandleExecute)

		r.Route("/snippets", func(r chi.Router) {
			r.Get("/", snippetHandler.HandleList)
			r.Post("/", snippetHandler.HandleCreate)
			r.Put("/comments/{commentId}", snippetHandler.HandleEditComment)
			r.Delete("/comments/{commentId}", snippetHandler.HandleDeleteComment)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", snippetHandler.HandleGet)
				r.Put("/", snippetHandler.HandleUpdate)
				r.Delete("/", snippetHandler.HandleDelete)
				r.Get("/versions", snippetHandler.HandleVersions)
				r.Get("/comments", snippetHandler.HandleComments)
				r.Post("/comments", snippetHandler.HandleAddComment)
				r.Get("/star", snippetHandler.HandleStars)
				r.Post("/star", snippetHandler.HandleStar)
				r.Delete("/star", snippetHandler.HandleUnstar)
				r.Post("/favorite", snippetHandler.HandleFavorite)
				r.Delete("/favorite", snippetHandler.HandleUnfavorite)
			})
		})

		r.Route("/marketplace", func(r chi.Router) {
			r.Get("/", marketHandler.HandleList)
			r.Post("/", marketHandler.HandleCreate)
			r.Get("/favorites", marketHandler.HandleFavorites)
			r.Put("/comments/{commentId}", marketHandler.HandleEditComment)
			r.Delete("/comments/{commentId}", marketHandler.HandleDeleteComment)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", marketHandler.HandleGet)
				r.Post("/purchase", marketHandler.HandlePurchase)
				r.Get("/ratings", marketHandler.HandleRatings)
				r.Post("/ratings", marketHandler.HandleRate)
				r.Get("/comments", marketHandler.HandleComments)
				r.Post("/comments", marketHandler.HandleAddComment)
				r.Get("/favorite", marketHandler.HandleIsFavorited)
				r.Post("/favorite", marketHandler.HandleFavorite)
				r.Delete("/favorite", marketHandler.HandleUnfavorite)
			})
		})

		r.Route("/newsletter", func(r chi.Router) {
			r.Use(strict)
			r.Post("/subscribe", newsletterHandler.HandleSubscribe)
			r.Post("/unsubscribe", newsletterHandler.HandleUnsubscribe)
		})
	})
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.db.Ping(ctx); err != nil {
		s.logger.Error("health check: database unreachable", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.Write([]byte(`{"status":"ok"}`))
}

func tooManyRequests(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"error":"rate_limited","message":"Too many requests, slow down"}`))
}

// syncRuntimes pulls the current Piston versions into the registry.
func (s *Server) syncRuntimes() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.runtimes.Sync(ctx, s.piston); err != nil {
		s.logger.Warn("runtime sync failed, keeping current versions", slog.String("error", err.Error()))
	}
}

// startRuntimeSync runs one sync now and schedules the rest. Runtime versions
// only matter to the piston backend.
func (s *Server) startRuntimeSync() error {
	if s.config.Executor != config.ExecutorPiston {
		return nil
	}
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.config.RuntimeSyncSchedule, s.syncRuntimes); err != nil {
		return fmt.Errorf("scheduling runtime sync %q: %w", s.config.RuntimeSyncSchedule, err)
	}
	go s.syncRuntimes()
	s.cron.Start()
	return nil
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for up
// to 30 seconds and releases everything New acquired.
func (s *Server) Start() error {
	defer s.Close()

	if err := s.startRuntimeSync(); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.config.ExecutionTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.String("executor", s.config.Executor),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}

// Close stops the sync job, the executor and the database. Safe to call
// after a failed New.
func (s *Server) Close() error {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	var errs []error
	if c, ok := s.exec.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}
