package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emilythestrangee/lokniti/backend/internal/ai"
	"github.com/emilythestrangee/lokniti/backend/internal/auth"
	"github.com/emilythestrangee/lokniti/backend/internal/authz"
	"github.com/emilythestrangee/lokniti/backend/internal/config"
	"github.com/emilythestrangee/lokniti/backend/internal/database"
	"github.com/emilythestrangee/lokniti/backend/internal/handlers"
	"github.com/emilythestrangee/lokniti/backend/internal/logging"
	"github.com/emilythestrangee/lokniti/backend/internal/metrics"
	"github.com/emilythestrangee/lokniti/backend/internal/middleware"
	"github.com/emilythestrangee/lokniti/backend/internal/models"
	"github.com/emilythestrangee/lokniti/backend/internal/notify"
)

const shutdownTimeout = 15 * time.Second

// Options are the collaborators built by main.
type Options struct {
	Config   *config.Config
	DB       database.Service
	Notifier *notify.Notifier
	AI       *ai.Service
	// Registry is exposed on /metrics. A private registry is created when
	// nil.
	Registry *prometheus.Registry
	// Metrics must be registered on Registry. Created when nil.
	Metrics *metrics.Metrics
}

type Server struct {
	cfg       *config.Config
	db        database.Service
	handler   *handlers.Handler
	issuer    *auth.Issuer
	registry  *prometheus.Registry
	aiLimiter *middleware.RateLimiter
	router    *gin.Engine
}

// New wires handlers, middleware and routes.
func New(opts Options) (*Server, error) {
	if err := registerValidators(); err != nil {
		return nil, err
	}

	authorizer, err := authz.New()
	if err != nil {
		return nil, err
	}

	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New(reg)
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.New(nil, 1, m)
	}
	aiService := opts.AI
	if aiService == nil {
		aiService = ai.NewService(nil, ai.BreakerSettings{}, m)
	}

	cfg := opts.Config
	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	s := &Server{
		cfg:    cfg,
		db:     opts.DB,
		issuer: issuer,
		handler: handlers.NewHandler(handlers.Deps{
			DB:         opts.DB.GetDB(),
			Authz:      authorizer,
			Notifier:   notifier,
			Metrics:    m,
			Issuer:     issuer,
			AI:         aiService,
			BcryptCost: cfg.Auth.BcryptCost,
		}),
		registry:  reg,
		aiLimiter: middleware.NewRateLimiter(cfg.AI.RatePerMinute, cfg.AI.Burst),
	}
	s.router = s.RegisterRoutes(m)
	return s, nil
}

var (
	validatorsOnce sync.Once
	validatorsErr  error
)

// registerValidators adds the enum tags to gin's validator. The engine is
// process-wide, so registration happens once however many servers are built.
func registerValidators() error {
	validatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			validatorsErr = errors.New("unexpected binding validator engine")
			return
		}
		validatorsErr = models.RegisterValidators(v)
	})
	return validatorsErr
}

// Handler returns the root http handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Issuer returns the token issuer used by the auth routes.
func (s *Server) Issuer() *auth.Issuer {
	return s.issuer
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes(m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(), middleware.Metrics(m))

	allowAll := len(s.cfg.Server.AllowedOrigins) == 0 || s.cfg.Server.AllowedOrigins[0] == "*"
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: !allowAll,
		MaxAge:           12 * time.Hour,
	}
	if allowAll {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.cfg.Server.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", s.healthHandler)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	h := s.handler
	api := r.Group("/api")
	{
		// Auth routes (public)
		api.POST("/auth/register", h.Auth.Register)
		api.POST("/auth/login", h.Auth.Login)

		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(s.issuer))
		{
			protected.GET("/auth/me", h.Auth.GetMe)

			protected.GET("/users/leaderboard", h.User.GetLeaderboard)
			protected.GET("/users/:id", h.User.GetUserProfile)
			protected.PUT("/users/:id/role", h.User.UpdateUserRole)

			protected.GET("/posts", h.Post.GetPosts)
			protected.POST("/posts", h.Post.CreatePost)
			protected.GET("/posts/:id", h.Post.GetPost)
			protected.PUT("/posts/:id", h.Post.UpdatePost)
			protected.DELETE("/posts/:id", h.Post.DeletePost)

			protected.GET("/posts/:id/discussions", h.Discussion.GetDiscussions)
			protected.POST("/posts/:id/discussions", h.Discussion.CreateDiscussion)
			protected.PUT("/discussions/:id", h.Discussion.UpdateDiscussion)
			protected.DELETE("/discussions/:id", h.Discussion.DeleteDiscussion)

			protected.GET("/events", h.Event.GetEvents)
			protected.GET("/events/:id", h.Event.GetEvent)
			protected.PUT("/events/:id", h.Event.UpdateEvent)
			protected.POST("/events/:id/attend", h.Event.AttendEvent)
			protected.DELETE("/events/:id/attend", h.Event.LeaveEvent)

			protected.GET("/polls/:id", h.Poll.GetPoll)
			protected.POST("/polls/:id/vote", h.Poll.VotePoll)

			protected.GET("/petitions/:id", h.Petition.GetPetition)
			protected.POST("/petitions/:id/sign", h.Petition.SignPetition)
			protected.DELETE("/petitions/:id/sign", h.Petition.UnsignPetition)

			protected.GET("/notifications", h.Notification.GetNotifications)
			protected.PUT("/notifications/read-all", h.Notification.MarkAllRead)
			protected.PUT("/notifications/:id/read", h.Notification.MarkRead)

			assistant := protected.Group("/ai")
			assistant.Use(s.aiLimiter.PerUser())
			{
				assistant.POST("/posts/:id/summarize", h.AI.Summarize)
				assistant.POST("/posts/:id/visualize", h.AI.Visualize)
				assistant.POST("/faq", h.AI.AnswerFAQ)
			}
		}
	}

	return r
}

func (s *Server) healthHandler(c *gin.Context) {
	stats := s.db.Health()
	status := http.StatusOK
	if stats["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, stats)
}

// HTTPServer builds the http.Server for the configured port.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", s.cfg.Server.Port),
		Handler:      s.router,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := s.HTTPServer()

	go s.sweepLimiter(ctx)

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, failed := <-errCh:
		if failed {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logging.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func (s *Server) sweepLimiter(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.aiLimiter.Sweep()
		case <-ctx.Done():
			return
		}
	}
}
