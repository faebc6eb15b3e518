package session

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/dbehnke/fne-peer/pkg/config"
	"github.com/dbehnke/fne-peer/pkg/framing"
	"github.com/dbehnke/fne-peer/pkg/logger"
)

func newMockMaster(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("failed to start mock master: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *net.UDPConn, timeout time.Duration) (framing.Envelope, *net.UDPAddr) {
	t.Helper()
	buf := make([]byte, 4096)
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	n, addr, err := conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("mock master failed to receive datagram: %v", err)
	}
	env, err := framing.Decode(buf[:n])
	if err != nil {
		t.Fatalf("mock master failed to decode envelope: %v", err)
	}
	return env, addr
}

func sendAck(t *testing.T, conn *net.UDPConn, to *net.UDPAddr, streamID uint32, field uint32) {
	t.Helper()
	payload := make([]byte, 10)
	copy(payload, "RPTACK")
	binary.BigEndian.PutUint32(payload[6:10], field)
	datagram := framing.Encode(framing.Envelope{
		Rtp: framing.RtpHeader{Version: framing.RtpVersion, Extension: true, PayloadType: framing.DvmPayloadType},
		Fne: framing.FneExtHeader{Function: framing.FuncAck, SubFunction: framing.SubAny, StreamID: streamID},
		Payload: payload,
	})
	if _, err := conn.WriteToUDP(datagram, to); err != nil {
		t.Fatalf("mock master failed to send ACK: %v", err)
	}
}

func sendNak(t *testing.T, conn *net.UDPConn, to *net.UDPAddr, reason uint16) {
	t.Helper()
	payload := make([]byte, 12)
	copy(payload, "MSTNAK")
	binary.BigEndian.PutUint16(payload[10:12], reason)
	datagram := framing.Encode(framing.Envelope{
		Rtp: framing.RtpHeader{Version: framing.RtpVersion, Extension: true, PayloadType: framing.DvmPayloadType},
		Fne: framing.FneExtHeader{Function: framing.FuncNak, SubFunction: framing.SubAny},
		Payload: payload,
	})
	if _, err := conn.WriteToUDP(datagram, to); err != nil {
		t.Fatalf("mock master failed to send NAK: %v", err)
	}
}

// driveHandshake pushes a freshly-started session through login,
// authorisation and config, mirroring the S1 scenario, and returns the
// peer's observed UDP address for further sends.
func driveHandshake(t *testing.T, master *net.UDPConn, peerID uint32, passphrase string, salt uint32) *net.UDPAddr {
	t.Helper()

	env, clientAddr := readEnvelope(t, master, time.Second)
	if env.Fne.Function != framing.FuncRptl {
		t.Fatalf("expected RPTL, got function %#x", env.Fne.Function)
	}

	sendAck(t, master, clientAddr, env.Fne.StreamID, salt)

	env, _ = readEnvelope(t, master, time.Second)
	if env.Fne.Function != framing.FuncRptk {
		t.Fatalf("expected RPTK, got function %#x", env.Fne.Function)
	}
	wantHash := func() [32]byte {
		var saltBytes [4]byte
		binary.BigEndian.PutUint32(saltBytes[:], salt)
		h := sha256.New()
		h.Write(saltBytes[:])
		h.Write([]byte(passphrase))
		var out [32]byte
		copy(out[:], h.Sum(nil))
		return out
	}()
	if string(env.Payload[0:4]) != "RPTK" {
		t.Fatalf("expected RPTK tag, got %q", env.Payload[0:4])
	}
	if got := binary.BigEndian.Uint32(env.Payload[4:8]); got != peerID {
		t.Fatalf("expected peer id %d in RPTK, got %d", peerID, got)
	}
	var gotHash [32]byte
	copy(gotHash[:], env.Payload[8:40])
	if gotHash != wantHash {
		t.Fatalf("RPTK hash mismatch: got %x want %x", gotHash, wantHash)
	}

	sendAck(t, master, clientAddr, env.Fne.StreamID, peerID)

	env, _ = readEnvelope(t, master, time.Second)
	if env.Fne.Function != framing.FuncRptc {
		t.Fatalf("expected RPTC, got function %#x", env.Fne.Function)
	}
	if string(env.Payload[0:4]) != "RPTC" {
		t.Fatalf("expected RPTC tag, got %q", env.Payload[0:4])
	}
	var details config.PeerDetails
	if err := json.Unmarshal(env.Payload[8:], &details); err != nil {
		t.Fatalf("failed to unmarshal RPTC config JSON: %v", err)
	}

	sendAck(t, master, clientAddr, env.Fne.StreamID, peerID)
	return clientAddr
}

// TestLoginAndHandshake mirrors scenario S1: a peer authenticates with
// passphrase "password" against a salted SHA-256 challenge and proceeds
// through RPTK and RPTC to a PeerConnected callback.
func TestLoginAndHandshake(t *testing.T) {
	master := newMockMaster(t)
	masterPort := master.LocalAddr().(*net.UDPAddr).Port

	connected := make(chan struct{}, 1)
	log := logger.New(logger.Config{Level: "error"})
	details := config.PeerDetails{Identity: "TESTPEER"}

	sess, err := New(312000, "password", details, "127.0.0.1", masterPort, 0, 50*time.Millisecond, 5, nil, log, Callbacks{
		OnPeerConnected: func() { connected <- struct{}{} },
	})
	if err != nil {
		t.Fatalf("failed to build session: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	go func() { _ = sess.Start(ctx) }()

	driveHandshake(t, master, 312000, "password", 0x12345678)

	select {
	case <-connected:
	case <-time.After(time.Second):
		t.Fatalf("expected OnPeerConnected to fire")
	}
	if sess.State() != Running {
		t.Fatalf("expected Running state, got %s", sess.State())
	}

	sess.Stop()
}

// TestLoginRetriesWhileMasterSilent checks that, with no response from the
// master, the peer's maintenance task keeps retrying the login handshake on
// every tick and stays in WaitingLogin.
func TestLoginRetriesWhileMasterSilent(t *testing.T) {
	master := newMockMaster(t)
	masterPort := master.LocalAddr().(*net.UDPAddr).Port

	log := logger.New(logger.Config{Level: "error"})
	sess, err := New(312000, "password", config.PeerDetails{}, "127.0.0.1", masterPort, 0, 30*time.Millisecond, 5, nil, log, Callbacks{})
	if err != nil {
		t.Fatalf("failed to build session: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go func() { _ = sess.Start(ctx) }()

	seenIDs := map[uint32]bool{}
	for i := 0; i < 6; i++ {
		env, _ := readEnvelope(t, master, time.Second)
		if env.Fne.Function != framing.FuncRptl {
			t.Fatalf("expected RPTL retry %d, got function %#x", i, env.Fne.Function)
		}
		seenIDs[env.Fne.StreamID] = true
	}
	if sess.State() != WaitingLogin {
		t.Fatalf("expected to remain in WaitingLogin, got %s", sess.State())
	}

	sess.Stop()
}

// TestNakPeerAclStopsSession mirrors scenario S3: a NAK with reason
// PeerAcl while Running fires the disconnect callback and stops the
// session; nothing further is sent.
func TestNakPeerAclStopsSession(t *testing.T) {
	master := newMockMaster(t)
	masterPort := master.LocalAddr().(*net.UDPAddr).Port

	disconnected := make(chan struct{}, 1)
	log := logger.New(logger.Config{Level: "error"})
	sess, err := New(312000, "password", config.PeerDetails{}, "127.0.0.1", masterPort, 0, 50*time.Millisecond, 5, nil, log, Callbacks{
		OnDisconnected: func() { disconnected <- struct{}{} },
	})
	if err != nil {
		t.Fatalf("failed to build session: %v", err)
	}

	ctx := context.Background()
	startErrCh := make(chan error, 1)
	go func() { startErrCh <- sess.Start(ctx) }()

	clientAddr := driveHandshake(t, master, 312000, "password", 0xAABBCCDD)

	select {
	case <-time.After(200 * time.Millisecond):
	case <-startErrCh:
		t.Fatalf("session exited before NAK was sent")
	}

	sendNak(t, master, clientAddr, framing.NakPeerAcl)

	select {
	case <-disconnected:
	case <-time.After(time.Second):
		t.Fatalf("expected OnDisconnected to fire")
	}

	select {
	case err := <-startErrCh:
		if err == nil {
			t.Fatalf("expected Start to return a cancellation error")
		}
	case <-time.After(time.Second):
		t.Fatalf("expected Start to return after PeerAcl NAK")
	}
}
