package apiserver_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	apiserver "github.com/safestream/moderator/internal/api_server"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("metrics server", func() {
	It("serves the gathered metrics", func() {
		reg := prometheus.NewRegistry()
		counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_runs_total", Help: "test"})
		reg.MustRegister(counter)
		counter.Add(3)

		listener, err := net.Listen("tcp", "localhost:0")
		Expect(err).To(BeNil())
		DeferCleanup(listener.Close)

		srv := apiserver.NewMetricServer(listener, reg)

		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("test_runs_total 3"))

		rec = httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	It("stops when the context is cancelled", func(ctx SpecContext) {
		listener, err := net.Listen("tcp", "localhost:0")
		Expect(err).To(BeNil())

		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() {
			done <- apiserver.NewMetricServer(listener, prometheus.NewRegistry()).Run(runCtx)
		}()

		Eventually(func() error {
			resp, err := http.Get("http://" + listener.Addr().String() + "/health")
			if err == nil {
				resp.Body.Close()
			}
			return err
		}).Should(Succeed())

		cancel()
		Eventually(done).Should(Receive(BeNil()))
	}, NodeTimeout(10*time.Second))
})
