package status

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/dbehnke/fne-peer/pkg/config"
	"github.com/dbehnke/fne-peer/pkg/logger"
	"github.com/dbehnke/fne-peer/pkg/session"
)

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	log := logger.New(logger.Config{Level: "error"})
	sess, err := session.New(312100, "password", config.PeerDetails{Identity: "TEST"}, "127.0.0.1", 62031, 0, time.Second, 5, nil, log, session.Callbacks{})
	if err != nil {
		t.Fatalf("session.New failed: %v", err)
	}
	return sess
}

func TestBuildSnapshot(t *testing.T) {
	sess := newTestSession(t)
	m := sess.Metrics()
	m.FrameDecoded(0x00)
	m.FrameDropped(0xFF)
	m.CRCFailure()
	m.PingSent()

	snap := BuildSnapshot(sess, m)
	if snap.PeerID != 312100 {
		t.Errorf("expected peer id 312100, got %d", snap.PeerID)
	}
	if snap.ConnectionState != "WaitingLogin" {
		t.Errorf("expected WaitingLogin, got %s", snap.ConnectionState)
	}
	if snap.FramesDecoded != 1 || snap.FramesDropped != 1 || snap.CRCFailures != 1 || snap.PingsSent != 1 {
		t.Errorf("unexpected snapshot counters: %+v", snap)
	}
}

func TestServerSnapshotEndpoint(t *testing.T) {
	sess := newTestSession(t)
	m := sess.Metrics()
	log := logger.New(logger.Config{Level: "error"})

	srv := NewServer(Config{Enabled: true, Host: "127.0.0.1", Port: 0, PollInterval: 50 * time.Millisecond}, sess, m, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	var addr string
	for i := 0; i < 50; i++ {
		addr = srv.Addr()
		if addr != "" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if addr == "" {
		t.Fatal("status server never reported a listen address")
	}

	resp, err := http.Get("http://" + addr + "/snapshot")
	if err != nil {
		t.Fatalf("GET /snapshot failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	if snap.PeerID != 312100 {
		t.Errorf("expected peer id 312100, got %d", snap.PeerID)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("status server did not shut down in time")
	}
}

func TestServerDisabled(t *testing.T) {
	sess := newTestSession(t)
	m := sess.Metrics()
	log := logger.New(logger.Config{Level: "error"})
	srv := NewServer(Config{Enabled: false}, sess, m, log)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("expected no error for disabled server, got %v", err)
	}
}
