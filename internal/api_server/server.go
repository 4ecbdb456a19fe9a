package apiserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/safestream/moderator/internal/config"
	"github.com/safestream/moderator/internal/events"
	"github.com/safestream/moderator/internal/store"
	"github.com/safestream/moderator/pkg/log"
	"github.com/safestream/moderator/pkg/metrics"
	"go.uber.org/zap"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
)

type Server struct {
	cfg      *config.Config
	store    store.Store
	trigger  Trigger
	hub      *events.Hub
	listener net.Listener
}

// New returns a new instance of the moderation API server.
func New(
	cfg *config.Config,
	store store.Store,
	trigger Trigger,
	hub *events.Hub,
	listener net.Listener,
) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		trigger:  trigger,
		hub:      hub,
		listener: listener,
	}
}

// NewRouter builds the API routes. The request metrics are registered on reg when it is not nil.
func NewRouter(cfg *config.Config, s store.Store, trigger Trigger, hub *events.Hub, reg prometheus.Registerer) http.Handler {
	router := chi.NewRouter()

	metricMiddleware := metrics.NewMiddleware("api_server")
	if reg != nil {
		metricMiddleware.MustRegister(reg)
	}

	router.Use(
		metricMiddleware.Handler,
		cors.Handler(cors.Options{
			AllowedOrigins: cfg.Service.CorsOrigins,
			AllowedMethods: []string{"GET", "PUT", "POST", "PATCH", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}),
		chiMiddleware.RequestID,
		log.Logger(zap.L(), "router"),
		chiMiddleware.Recoverer,
	)

	h := &handler{
		store:    s,
		trigger:  trigger,
		hub:      hub,
		validate: validator.New(),
	}
	h.routes(router)

	return router
}

func (s *Server) Run(ctx context.Context) error {
	zap.S().Named("api_server").Info("Initializing API server")

	router := NewRouter(s.cfg, s.store, s.trigger, s.hub, prometheus.DefaultRegisterer)
	srv := http.Server{Addr: s.cfg.Service.Address, Handler: router}

	go func() {
		<-ctx.Done()
		zap.S().Named("api_server").Infof("Shutdown signal received: %s", ctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		zap.S().Named("api_server").Info("api server terminated")
	}()

	zap.S().Named("api_server").Infof("Listening on %s...", s.listener.Addr().String())
	if err := srv.Serve(s.listener); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
