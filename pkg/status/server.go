package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/dbehnke/fne-peer/pkg/logger"
	"github.com/dbehnke/fne-peer/pkg/metrics"
	"github.com/dbehnke/fne-peer/pkg/session"
)

// Config holds status-server configuration.
type Config struct {
	Enabled      bool
	Host         string
	Port         int
	PollInterval time.Duration // how often to poll the session for a fresh snapshot
}

// Server serves a read-only JSON snapshot endpoint and a websocket feed of
// a single session's connection state and counters.
type Server struct {
	config  Config
	logger  *logger.Logger
	hub     *Hub
	sess    *session.Session
	metrics *metrics.Collector
	httpSrv *http.Server
	addr    string
}

// NewServer builds a status Server observing sess and m.
func NewServer(cfg Config, sess *session.Session, m *metrics.Collector, log *logger.Logger) *Server {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}
	return &Server{
		config:  cfg,
		logger:  log.WithComponent("status"),
		hub:     NewHub(log),
		sess:    sess,
		metrics: m,
	}
}

// Addr returns the address the server is listening on, valid only after
// Start has begun serving.
func (s *Server) Addr() string {
	return s.addr
}

// Start runs the status HTTP/websocket server and the background snapshot
// poller until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("status server disabled")
		return nil
	}

	go s.hub.Run(ctx)
	go s.pollLoop(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/snapshot", s.handleSnapshot)
	mux.Handle("/ws", s.hub.Handler())
	mux.Handle("/metrics", metrics.NewPrometheusHandler(s.metrics))

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("status: failed to listen: %w", err)
	}
	s.addr = listener.Addr().String()

	s.httpSrv = &http.Server{
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpSrv.Serve(listener)
	}()

	s.logger.Info("status server started", logger.String("addr", s.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.hub.Broadcast(BuildSnapshot(s.sess, s.metrics))
		}
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := BuildSnapshot(s.sess, s.metrics)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}
