package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dbehnke/fne-peer/pkg/logger"
)

// PrometheusConfig holds Prometheus server configuration.
type PrometheusConfig struct {
	Enabled bool
	Port    int
	Path    string
}

// PrometheusHandler handles Prometheus metrics HTTP requests.
type PrometheusHandler struct {
	collector *Collector
}

// NewPrometheusHandler creates a new Prometheus handler.
func NewPrometheusHandler(collector *Collector) *PrometheusHandler {
	return &PrometheusHandler{
		collector: collector,
	}
}

// ServeHTTP handles HTTP requests for metrics.
func (h *PrometheusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	var output strings.Builder

	connected := 0
	if h.collector.IsConnected() {
		connected = 1
	}
	output.WriteString("# HELP fne_peer_connected Whether the session is currently Running\n")
	output.WriteString("# TYPE fne_peer_connected gauge\n")
	output.WriteString(fmt.Sprintf("fne_peer_connected %d\n", connected))

	output.WriteString("# HELP fne_peer_frames_decoded_total Total frames successfully dispatched\n")
	output.WriteString("# TYPE fne_peer_frames_decoded_total counter\n")
	output.WriteString(fmt.Sprintf("fne_peer_frames_decoded_total %d\n", h.collector.GetFramesDecoded()))

	output.WriteString("# HELP fne_peer_frames_dropped_total Total frames dropped (malformed, unexpected, or rejected)\n")
	output.WriteString("# TYPE fne_peer_frames_dropped_total counter\n")
	output.WriteString(fmt.Sprintf("fne_peer_frames_dropped_total %d\n", h.collector.GetFramesDropped()))

	output.WriteString("# HELP fne_peer_crc_failures_total Total CRC mismatches across all PDU layers\n")
	output.WriteString("# TYPE fne_peer_crc_failures_total counter\n")
	output.WriteString(fmt.Sprintf("fne_peer_crc_failures_total %d\n", h.collector.GetCRCFailures()))

	output.WriteString("# HELP fne_peer_fec_uncorrectable_total Total Trellis/Reed-Solomon blocks that failed correction\n")
	output.WriteString("# TYPE fne_peer_fec_uncorrectable_total counter\n")
	output.WriteString(fmt.Sprintf("fne_peer_fec_uncorrectable_total %d\n", h.collector.GetFECUncorrectable()))

	output.WriteString("# HELP fne_peer_pings_sent_total Total liveness pings sent\n")
	output.WriteString("# TYPE fne_peer_pings_sent_total counter\n")
	output.WriteString(fmt.Sprintf("fne_peer_pings_sent_total %d\n", h.collector.GetPingsSent()))

	output.WriteString("# HELP fne_peer_pings_acked_total Total pongs received\n")
	output.WriteString("# TYPE fne_peer_pings_acked_total counter\n")
	output.WriteString(fmt.Sprintf("fne_peer_pings_acked_total %d\n", h.collector.GetPingsAcked()))

	output.WriteString("# HELP fne_peer_pings_missed Outstanding unacknowledged pings\n")
	output.WriteString("# TYPE fne_peer_pings_missed gauge\n")
	output.WriteString(fmt.Sprintf("fne_peer_pings_missed %d\n", h.collector.GetMissedPings()))

	output.WriteString("# HELP fne_peer_last_ping_rtt_seconds Most recent ping round-trip time\n")
	output.WriteString("# TYPE fne_peer_last_ping_rtt_seconds gauge\n")
	output.WriteString(fmt.Sprintf("fne_peer_last_ping_rtt_seconds %f\n", h.collector.GetLastRTT().Seconds()))

	w.Write([]byte(output.String()))
}

// PrometheusServer is an HTTP server for Prometheus metrics.
type PrometheusServer struct {
	config    PrometheusConfig
	collector *Collector
	log       *logger.Logger
	server    *http.Server
}

// NewPrometheusServer creates a new Prometheus metrics server.
func NewPrometheusServer(config PrometheusConfig, collector *Collector, log *logger.Logger) *PrometheusServer {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}

	return &PrometheusServer{
		config:    config,
		collector: collector,
		log:       log.WithComponent("metrics"),
	}
}

// Start starts the Prometheus metrics server.
func (s *PrometheusServer) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.log.Info("Prometheus metrics server disabled")
		return nil
	}

	handler := NewPrometheusHandler(s.collector)
	mux := http.NewServeMux()
	mux.Handle(s.config.Path, handler)

	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	actualPort := listener.Addr().(*net.TCPAddr).Port

	s.server = &http.Server{
		Handler: mux,
	}

	s.log.Info("Starting Prometheus metrics server",
		logger.Int("port", actualPort),
		logger.String("path", s.config.Path))

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("Shutting down Prometheus metrics server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown error: %w", err)
		}
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

// Stop stops the Prometheus metrics server.
func (s *PrometheusServer) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(ctx)
	}
}
