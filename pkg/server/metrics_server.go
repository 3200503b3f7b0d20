package server

import (
	"net/http"

	"go.uber.org/zap"
)

// startMetricsServer runs a standalone HTTP listener serving /metrics,
// separate from the main TCP port since Prometheus scraping speaks
// HTTP, not the francodb wire protocol.
func (s *Server) startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	s.metricsSrv = &http.Server{Addr: s.cfg.MetricsAddr, Handler: mux}

	go func() {
		if err := s.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
}
