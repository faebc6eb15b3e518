package adapter

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/dbehnke/fne-peer/pkg/config"
	"github.com/dbehnke/fne-peer/pkg/dmr"
	"github.com/dbehnke/fne-peer/pkg/framing"
	"github.com/dbehnke/fne-peer/pkg/logger"
	"github.com/dbehnke/fne-peer/pkg/p25"
	"github.com/dbehnke/fne-peer/pkg/session"
)

// trellisBlockSize is the fixed Trellis-1/2 channel width (98 four-bit
// points packed MSB-first): every EncodeHeader/EncodeRawBlock call
// produces exactly this many bytes, regardless of its clear input length.
const trellisBlockSize = 98 * 4 / 8

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

// newConnectedSystem starts sys against a mock master, drives it through
// the login handshake so it reaches Running with an active call stream,
// and returns a cancel func that stops the session.
func newConnectedSystem(t *testing.T, peerID uint32, passphrase string, sys *System, master *net.UDPConn) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = sys.Start(ctx) }()

	env, clientAddr := readEnvelope(t, master, time.Second)
	if env.Fne.Function != framing.FuncRptl {
		t.Fatalf("expected RPTL, got function %#x", env.Fne.Function)
	}
	const salt = 0x1234
	sendAck(t, master, clientAddr, env.Fne.StreamID, salt)

	env, _ = readEnvelope(t, master, time.Second)
	if env.Fne.Function != framing.FuncRptk {
		t.Fatalf("expected RPTK, got function %#x", env.Fne.Function)
	}
	sendAck(t, master, clientAddr, env.Fne.StreamID, peerID)

	env, _ = readEnvelope(t, master, time.Second)
	if env.Fne.Function != framing.FuncRptc {
		t.Fatalf("expected RPTC, got function %#x", env.Fne.Function)
	}
	sendAck(t, master, clientAddr, env.Fne.StreamID, peerID)

	deadline := time.Now().Add(time.Second)
	for sys.State() != session.Running {
		if time.Now().After(deadline) {
			t.Fatalf("session did not reach Running")
		}
		time.Sleep(time.Millisecond)
	}

	return cancel
}

func newTestSystem(t *testing.T) (*System, *net.UDPConn) {
	t.Helper()
	master, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("failed to start mock master: %v", err)
	}
	t.Cleanup(func() { master.Close() })

	log := logger.New(logger.Config{Level: "error"})
	sys, err := New(312000, "password", config.PeerDetails{}, "127.0.0.1", master.LocalAddr().(*net.UDPAddr).Port, 0, time.Second, 5, nil, log)
	if err != nil {
		t.Fatalf("failed to build system: %v", err)
	}
	return sys, master
}

func TestSendDMRVoiceTerminatorRoundTrip(t *testing.T) {
	sys, master := newTestSystem(t)
	cancel := newConnectedSystem(t, 312000, "password", sys, master)
	defer cancel()

	if err := sys.SendDMRVoiceTerminator(99, 0, 1, 312100, 312200, dmr.FLCOGroup); err != nil {
		t.Fatalf("SendDMRVoiceTerminator failed: %v", err)
	}

	env, _ := readEnvelope(t, master, time.Second)
	if env.Fne.Function != framing.FuncProtocol || env.Fne.SubFunction != framing.SubProtocolDMR {
		t.Fatalf("expected DMR protocol frame, got function %#x sub %#x", env.Fne.Function, env.Fne.SubFunction)
	}
	preamble, err := framing.DecodeProtocolPreamble(env.Payload)
	if err != nil {
		t.Fatalf("failed to decode preamble: %v", err)
	}
	if preamble.SourceID != 312100 || preamble.DestinationID != 312200 {
		t.Fatalf("unexpected addressing: src=%d dst=%d", preamble.SourceID, preamble.DestinationID)
	}
	lc, err := dmr.DecodeFullLC(env.Payload[framing.PreambleSize:])
	if err != nil {
		t.Fatalf("failed to decode full lc: %v", err)
	}
	if lc.SrcID != 312100 || lc.DstID != 312200 || lc.FLCO != dmr.FLCOGroup {
		t.Fatalf("unexpected LC fields: %+v", lc)
	}
}

func TestSendP25TSDURoundTrip(t *testing.T) {
	sys, master := newTestSystem(t)
	cancel := newConnectedSystem(t, 312000, "password", sys, master)
	defer cancel()

	tsbk := p25.Encode(p25.Fields{Opcode: p25.OpcodeIOSPAckRsp, LastBlock: true}, p25.IOSPAckRsp{
		ServiceType: 0x10, SrcId: 312100, DstId: 312200,
	})
	if err := sys.SendP25TSDU(42, 0, 312100, 312200, tsbk); err != nil {
		t.Fatalf("SendP25TSDU failed: %v", err)
	}

	env, _ := readEnvelope(t, master, time.Second)
	if env.Fne.Function != framing.FuncProtocol || env.Fne.SubFunction != framing.SubProtocolP25 {
		t.Fatalf("expected P25 protocol frame, got function %#x sub %#x", env.Fne.Function, env.Fne.SubFunction)
	}
	channel := env.Payload[framing.PreambleSize:]
	header, err := p25.DecodeHeader(channel[0:trellisBlockSize])
	if err != nil {
		t.Fatalf("failed to decode header: %v", err)
	}
	if header.BlocksToFollow != 1 || header.Format != p25.FormatUnconfirmed {
		t.Fatalf("unexpected header: %+v", header)
	}

	block, err := p25.DecodeRawBlock(channel[trellisBlockSize : 2*trellisBlockSize])
	if err != nil {
		t.Fatalf("failed to decode block: %v", err)
	}
	decoded, err := p25.Decode(block.Payload[0:p25.TSBKSize])
	if err != nil {
		t.Fatalf("failed to decode tsbk: %v", err)
	}
	ack, ok := decoded.Payload.(p25.IOSPAckRsp)
	if !ok {
		t.Fatalf("expected IOSPAckRsp payload, got %T", decoded.Payload)
	}
	if ack.SrcId != 312100 || ack.DstId != 312200 {
		t.Fatalf("unexpected tsbk fields: %+v", ack)
	}
}
