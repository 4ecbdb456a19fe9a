package apiserver

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MetricServer exposes the pipeline and request metrics on a separate listener.
type MetricServer struct {
	srv      *http.Server
	listener net.Listener
}

// NewMetricServer serves the metrics collected by gatherer. A nil gatherer serves the default registry.
func NewMetricServer(listener net.Listener, gatherer prometheus.Gatherer) *MetricServer {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return &MetricServer{
		srv:      &http.Server{Handler: router},
		listener: listener,
	}
}

func (m *MetricServer) Handler() http.Handler {
	return m.srv.Handler
}

func (m *MetricServer) Run(ctx context.Context) error {
	log := zap.S().Named("metrics_server")

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()
		_ = m.srv.Shutdown(shutdownCtx)
	}()

	log.Infow("serving metrics", "address", m.listener.Addr().String())
	err := m.srv.Serve(m.listener)
	if errors.Is(err, http.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
		<-stopped
		log.Info("metrics server terminated")
		return nil
	}
	return err
}
