// Command fne-peer runs a single FNE peer session against one master: it
// loads a PeerConfig, brings up the session/adapter, and exposes a local
// read-only status feed and an event publisher wired to the session's
// lifecycle callbacks. It replaces the teacher's cmd/dmr-nexus (a MASTER-
// mode FNE server) with the peer-side binary this module is actually
// about; the master side is out of scope per this library's spec.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dbehnke/fne-peer/pkg/adapter"
	"github.com/dbehnke/fne-peer/pkg/config"
	"github.com/dbehnke/fne-peer/pkg/events"
	"github.com/dbehnke/fne-peer/pkg/keystore"
	"github.com/dbehnke/fne-peer/pkg/logger"
	"github.com/dbehnke/fne-peer/pkg/metrics"
	"github.com/dbehnke/fne-peer/pkg/p25"
	"github.com/dbehnke/fne-peer/pkg/status"
)

var (
	version   = "dev"
	gitCommit = "unknown"
)

func main() {
	configFile := flag.String("config", "peer.yaml", "Path to peer configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	statusPort := flag.Int("status-port", 0, "Port for the local status websocket/snapshot server (0 disables it)")
	metricsPort := flag.Int("metrics-port", 0, "Port for a standalone Prometheus metrics server, separate from -status-port (0 disables it)")
	keyDBPath := flag.String("keydb", "fne-peer-keys.db", "Path to the key-cache SQLite database")
	flag.Parse()

	if *showVersion {
		fmt.Printf("fne-peer %s (%s)\n", version, gitCommit)
		os.Exit(0)
	}

	log := logger.New(logger.Config{Level: "info", Format: "text"})

	cfg, err := config.LoadPeerConfig(*configFile)
	if err != nil {
		log.Error("failed to load peer configuration", logger.Error(err))
		os.Exit(1)
	}

	aesKey, err := decodeAESKey(cfg.Session.AESKeyHex)
	if err != nil {
		log.Error("invalid aes_key_hex", logger.Error(err))
		os.Exit(1)
	}

	ks, err := keystore.Open(keystore.Config{Path: *keyDBPath}, log)
	if err != nil {
		log.Error("failed to open key store", logger.Error(err))
		os.Exit(1)
	}
	defer func() { _ = ks.Close() }()

	pub := events.New(cfg.Session.PeerID, events.Config{
		Enabled:     true,
		TopicPrefix: "fne/peer",
	}, log)

	sys, err := adapter.New(
		cfg.Session.PeerID,
		cfg.Session.Passphrase,
		cfg.Details,
		cfg.Session.MasterIP,
		cfg.Session.MasterPort,
		cfg.Session.BindPort,
		time.Duration(cfg.Session.PingTimeSeconds)*time.Second,
		cfg.Session.MaxMissedPings,
		aesKey,
		log,
	)
	if err != nil {
		log.Error("failed to build session", logger.Error(err))
		os.Exit(1)
	}

	sys.OnPeerConnected(func() {
		log.Info("peer connected to master")
		if err := pub.PublishPeerConnected(); err != nil {
			log.Warn("failed to publish peer-connected event", logger.Error(err))
		}
	})
	sys.OnDisconnected(func() {
		log.Warn("peer disconnected from master")
		if err := pub.PublishPeerDisconnected("disconnected"); err != nil {
			log.Warn("failed to publish peer-disconnected event", logger.Error(err))
		}
	})
	sys.OnNak(func(reason uint16) {
		if err := pub.PublishNak(reason); err != nil {
			log.Warn("failed to publish nak event", logger.Error(err))
		}
	})
	sys.OnKeyResponse(func(mk p25.ModifyKey) {
		if err := ks.Put(mk.Keyset, mk.KeyID, mk.MI); err != nil {
			log.Error("failed to persist key response", logger.Error(err))
		}
		if err := pub.PublishKeyResponse(mk); err != nil {
			log.Warn("failed to publish key-response event", logger.Error(err))
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 2)
	go func() { errCh <- sys.Start(ctx) }()

	if *statusPort > 0 {
		statusSrv := status.NewServer(status.Config{
			Enabled:      true,
			Host:         "127.0.0.1",
			Port:         *statusPort,
			PollInterval: time.Second,
		}, sys.Session(), sys.Session().Metrics(), log)
		go func() { errCh <- statusSrv.Start(ctx) }()
	}

	if *metricsPort > 0 {
		metricsSrv := metrics.NewPrometheusServer(metrics.PrometheusConfig{
			Enabled: true,
			Port:    *metricsPort,
			Path:    "/metrics",
		}, sys.Session().Metrics(), log)
		go func() { errCh <- metricsSrv.Start(ctx) }()
	}

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
		sys.Stop()
		cancel()
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			log.Error("session exited with error", logger.Error(err))
		}
		cancel()
	}

	log.Info("fne-peer stopped")
}

func decodeAESKey(hexKey string) ([]byte, error) {
	if hexKey == "" {
		return nil, nil
	}
	key := make([]byte, hex.DecodedLen(len(hexKey)))
	n, err := hex.Decode(key, []byte(hexKey))
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	key = key[:n]
	if len(key) != 32 {
		return nil, fmt.Errorf("aes key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}
