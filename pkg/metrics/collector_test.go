package metrics

import (
	"testing"
	"time"

	"github.com/dbehnke/fne-peer/pkg/framing"
)

func TestNewCollector(t *testing.T) {
	collector := NewCollector()
	if collector == nil {
		t.Fatal("Expected non-nil collector")
	}
}

func TestCollector_FrameMetrics(t *testing.T) {
	collector := NewCollector()

	collector.FrameDecoded(framing.FuncProtocol)
	collector.FrameDecoded(framing.FuncAck)
	collector.FrameDropped(framing.FuncNak)

	if got := collector.GetFramesDecoded(); got != 2 {
		t.Errorf("expected 2 decoded frames, got %d", got)
	}
	if got := collector.GetFramesDropped(); got != 1 {
		t.Errorf("expected 1 dropped frame, got %d", got)
	}
}

func TestCollector_CRCAndFECMetrics(t *testing.T) {
	collector := NewCollector()

	collector.CRCFailure()
	collector.CRCFailure()
	collector.FECUncorrectable()

	if got := collector.GetCRCFailures(); got != 2 {
		t.Errorf("expected 2 CRC failures, got %d", got)
	}
	if got := collector.GetFECUncorrectable(); got != 1 {
		t.Errorf("expected 1 uncorrectable FEC block, got %d", got)
	}
}

func TestCollector_PingLiveness(t *testing.T) {
	collector := NewCollector()

	collector.PingSent()
	collector.PingSent()
	collector.PingSent()
	collector.PingAcked(50 * time.Millisecond)

	if got := collector.GetPingsSent(); got != 3 {
		t.Errorf("expected 3 pings sent, got %d", got)
	}
	if got := collector.GetPingsAcked(); got != 1 {
		t.Errorf("expected 1 ping acked, got %d", got)
	}
	if got := collector.GetMissedPings(); got != 2 {
		t.Errorf("expected 2 missed pings, got %d", got)
	}
	if got := collector.GetLastRTT(); got != 50*time.Millisecond {
		t.Errorf("expected last RTT of 50ms, got %v", got)
	}
}

func TestCollector_ConnectionState(t *testing.T) {
	collector := NewCollector()

	if collector.IsConnected() {
		t.Fatal("expected not connected initially")
	}
	collector.PeerConnected()
	if !collector.IsConnected() {
		t.Fatal("expected connected after PeerConnected")
	}
	collector.PeerDisconnected()
	if collector.IsConnected() {
		t.Fatal("expected not connected after PeerDisconnected")
	}
}

func TestCollector_Reset(t *testing.T) {
	collector := NewCollector()

	collector.FrameDecoded(framing.FuncProtocol)
	collector.CRCFailure()
	collector.PingSent()

	collector.Reset()

	if collector.GetFramesDecoded() != 0 {
		t.Error("expected frames decoded to be 0 after reset")
	}
	if collector.GetCRCFailures() != 0 {
		t.Error("expected CRC failures to be 0 after reset")
	}
	if collector.GetPingsSent() != 0 {
		t.Error("expected pings sent to be 0 after reset")
	}
}

func TestCollector_Concurrent(t *testing.T) {
	collector := NewCollector()

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			collector.FrameDecoded(framing.FuncProtocol)
			collector.PingSent()
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	if collector.GetFramesDecoded() < 10 {
		t.Error("expected at least 10 decoded frames")
	}
}
