package session

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/dbehnke/fne-peer/pkg/config"
	"github.com/dbehnke/fne-peer/pkg/fnecrypto"
	"github.com/dbehnke/fne-peer/pkg/framing"
	"github.com/dbehnke/fne-peer/pkg/logger"
	"github.com/dbehnke/fne-peer/pkg/metrics"
	"github.com/dbehnke/fne-peer/pkg/p25"
)

// MaxMissedPeerPings is the liveness threshold from §4.10: once pings-sent
// exceeds pings-acked by more than this many, the link is declared dead.
const MaxMissedPeerPings = 5

// Callbacks holds the receive-side hooks a host registers with a Session.
// Any field left nil is simply not invoked.
type Callbacks struct {
	OnDMRData       func(framing.ProtocolPreamble, []byte)
	OnP25Data       func(framing.ProtocolPreamble, []byte)
	OnNXDNData      func(framing.ProtocolPreamble, []byte)
	OnPeerConnected func()
	OnDisconnected  func()
	OnKeyResponse   func(p25.ModifyKey)
	OnNak           func(reason uint16)
}

// Session implements the peer-to-master state machine and its two
// cooperatively-cancellable tasks (§4.10, §5): a listen task and a
// maintenance task sharing one UDP transport handle.
type Session struct {
	peerID     uint32
	passphrase string
	details    config.PeerDetails

	masterAddr *net.UDPAddr
	bindPort   int
	conn       *net.UDPConn

	aesKey []byte

	state ConnectionState
	stateMu sync.RWMutex

	pings pingCounters

	pingInterval   time.Duration
	maxMissedPings int

	stream txStream

	rxMu        sync.Mutex
	rxStreamID  uint32
	rxHaveSeen  bool

	clock *framing.Clock

	rngMu sync.Mutex
	rng   *rand.Rand

	lastSaltMu sync.Mutex
	lastSalt   uint32

	log       *logger.Logger
	callbacks Callbacks
	metrics   *metrics.Collector

	pingSentAt   time.Time
	pingSentAtMu sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
	closeOnce sync.Once
}

// txStream bundles the current outbound StreamId and its PacketSequence
// counter: §3 requires the sequence reset to 0 whenever the stream id
// changes, so the two travel together behind one mutex.
type txStream struct {
	mu  sync.Mutex
	id  uint32
	seq uint16
}

func (t *txStream) regenerate(newID uint32) {
	t.mu.Lock()
	t.id = newID
	t.seq = 0
	t.mu.Unlock()
}

func (t *txStream) next() (uint32, uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	seq := t.seq
	t.seq++
	return t.id, seq
}

func (t *txStream) current() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.id
}

// New builds a Session for the given peer identity, passphrase, and the
// PeerDetails it will advertise during the config phase. aesKey may be nil
// to disable the datagram-level AES wrap.
func New(peerID uint32, passphrase string, details config.PeerDetails, masterIP string, masterPort, bindPort int, pingInterval time.Duration, maxMissedPings int, aesKey []byte, log *logger.Logger, cb Callbacks) (*Session, error) {
	masterAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", masterIP, masterPort))
	if err != nil {
		return nil, fmt.Errorf("session: failed to resolve master address: %w", err)
	}
	if maxMissedPings <= 0 {
		maxMissedPings = MaxMissedPeerPings
	}
	return &Session{
		peerID:         peerID,
		passphrase:     passphrase,
		details:        details,
		masterAddr:     masterAddr,
		bindPort:       bindPort,
		aesKey:         aesKey,
		pingInterval:   pingInterval,
		maxMissedPings: maxMissedPings,
		clock:          framing.NewClock(),
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
		log:            log.WithComponent("session"),
		callbacks:      cb,
		metrics:        metrics.NewCollector(),
	}, nil
}

// Metrics returns the session's counter collector (frames decoded/dropped,
// CRC/FEC failures, ping RTT), suitable for exposing via pkg/status or a
// Prometheus handler.
func (s *Session) Metrics() *metrics.Collector {
	return s.metrics
}

func (s *Session) getState() ConnectionState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Session) setState(v ConnectionState) {
	s.stateMu.Lock()
	prev := s.state
	s.state = v
	s.stateMu.Unlock()
	if prev != v {
		s.log.Info("state transition", logger.String("from", prev.String()), logger.String("to", v.String()))
	}
}

func (s *Session) nextStreamID() uint32 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Uint32()
}

// LastSalt returns the most recently received authentication salt, for
// tests and diagnostics.
func (s *Session) LastSalt() uint32 {
	s.lastSaltMu.Lock()
	defer s.lastSaltMu.Unlock()
	return s.lastSalt
}

// State returns the current connection state.
func (s *Session) State() ConnectionState {
	return s.getState()
}

// Start opens the UDP transport and runs the listen and maintenance tasks
// until ctx is cancelled, Stop is called, or an unrecoverable transport
// error occurs.
func (s *Session) Start(ctx context.Context) error {
	localAddr := &net.UDPAddr{IP: net.IPv4zero, Port: s.bindPort}
	conn, err := net.ListenUDP("udp", localAddr)
	if err != nil {
		return fmt.Errorf("session: failed to open UDP socket: %w", err)
	}
	s.conn = conn
	defer conn.Close()

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()

	s.log.Info("session started",
		logger.String("master", s.masterAddr.String()),
		logger.String("local", conn.LocalAddr().String()))

	errCh := make(chan error, 2)
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		errCh <- s.listenLoop(runCtx)
	}()
	go func() {
		defer s.wg.Done()
		errCh <- s.maintenanceLoop(runCtx)
	}()

	select {
	case <-runCtx.Done():
		s.wg.Wait()
		return runCtx.Err()
	case err := <-errCh:
		cancel()
		s.wg.Wait()
		return err
	}
}

// Stop sends RptClosing and cancels both tasks. It does not wait for them;
// Start returns once both have exited.
func (s *Session) Stop() {
	s.closeOnce.Do(func() {
		_ = s.sendOnActiveStream(framing.FuncRptClosing, framing.SubAny, []byte{0x00})
		if s.cancel != nil {
			s.cancel()
		}
	})
}

func (s *Session) listenLoop(ctx context.Context) error {
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond)); err != nil {
			return fmt.Errorf("session: set read deadline: %w", err)
		}
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			return fmt.Errorf("session: read error: %w", err)
		}
		if addr.Port != s.masterAddr.Port || !addr.IP.Equal(s.masterAddr.IP) {
			s.log.Debug("dropping datagram from unexpected sender", logger.String("from", addr.String()))
			continue
		}
		s.handleDatagram(buf[:n])
	}
}

func (s *Session) handleDatagram(raw []byte) {
	s.metrics.BytesReceived(len(raw))
	datagram := raw
	if s.aesKey != nil {
		unwrapped, err := fnecrypto.Unwrap(s.aesKey, raw)
		if err != nil {
			s.log.Error("aes unwrap failed", logger.Error(err))
			return
		}
		if unwrapped == nil {
			s.log.Debug("dropping datagram without AES magic prefix")
			return
		}
		datagram = unwrapped
	}

	env, err := framing.Decode(datagram)
	if err != nil {
		s.log.Error("dropping frame", logger.Error(err))
		s.metrics.FrameDropped(0xFF)
		return
	}

	s.rxMu.Lock()
	if !s.rxHaveSeen || env.Fne.StreamID != s.rxStreamID {
		s.rxStreamID = env.Fne.StreamID
		s.rxHaveSeen = true
	}
	s.rxMu.Unlock()

	s.metrics.FrameDecoded(env.Fne.Function)

	switch env.Fne.Function {
	case framing.FuncProtocol:
		s.dispatchProtocol(env)
	case framing.FuncAck:
		s.handleAck(env)
	case framing.FuncNak:
		s.handleNak(env)
	case framing.FuncMstClosing:
		s.setState(WaitingLogin)
		s.metrics.PeerDisconnected()
		if s.callbacks.OnDisconnected != nil {
			s.callbacks.OnDisconnected()
		}
	case framing.FuncPong:
		s.pings.incAcked()
		s.pingSentAtMu.Lock()
		sentAt := s.pingSentAt
		s.pingSentAtMu.Unlock()
		if !sentAt.IsZero() {
			s.metrics.PingAcked(time.Since(sentAt))
		}
	case framing.FuncKeyRsp:
		s.handleKeyResponse(env.Payload)
	case framing.FuncMaster:
		// reserved; no-op on the peer per §4.10
	default:
		s.log.Debug("dropping unrecognised function", logger.Uint32("function", uint32(env.Fne.Function)))
		s.metrics.FrameDropped(env.Fne.Function)
	}
}

func (s *Session) dispatchProtocol(env framing.Envelope) {
	preamble, err := framing.DecodeProtocolPreamble(env.Payload)
	if err != nil {
		s.log.Error("dropping malformed protocol frame", logger.Error(err))
		return
	}
	switch env.Fne.SubFunction {
	case framing.SubProtocolDMR:
		if s.callbacks.OnDMRData != nil {
			s.callbacks.OnDMRData(preamble, env.Payload)
		}
	case framing.SubProtocolP25:
		if s.callbacks.OnP25Data != nil {
			s.callbacks.OnP25Data(preamble, env.Payload)
		}
	case framing.SubProtocolNXDN:
		if s.callbacks.OnNXDNData != nil {
			s.callbacks.OnNXDNData(preamble, env.Payload)
		}
	case framing.SubProtocolAnalog:
		s.log.Debug("dropping analog protocol frame (unsupported)")
	default:
		s.log.Debug("dropping protocol frame with unknown sub-function")
	}
}

func (s *Session) handleAck(env framing.Envelope) {
	switch s.getState() {
	case WaitingLogin:
		salt, err := parseAckField(env.Payload)
		if err != nil {
			s.log.Error("malformed ACK while waiting for login", logger.Error(err))
			return
		}
		s.lastSaltMu.Lock()
		s.lastSalt = salt
		s.lastSaltMu.Unlock()

		var saltBytes [4]byte
		binary.BigEndian.PutUint32(saltBytes[:], salt)
		h := sha256.New()
		h.Write(saltBytes[:])
		h.Write([]byte(s.passphrase))
		var hash [32]byte
		copy(hash[:], h.Sum(nil))

		if err := s.sendOnActiveStream(framing.FuncRptk, framing.SubAny, buildRPTK(s.peerID, hash)); err != nil {
			s.log.Error("failed to send RPTK", logger.Error(err))
			return
		}
		s.setState(WaitingAuthorisation)

	case WaitingAuthorisation:
		echoed, err := parseAckField(env.Payload)
		if err != nil || echoed != s.peerID {
			s.log.Error("ACK peer id mismatch while waiting for authorisation", logger.Uint32("got", echoed))
			s.setState(WaitingLogin)
			return
		}
		configJSON, err := json.Marshal(s.details)
		if err != nil {
			s.log.Error("failed to marshal peer details", logger.Error(err))
			return
		}
		if err := s.sendOnActiveStream(framing.FuncRptc, framing.SubAny, buildRPTC(s.peerID, configJSON)); err != nil {
			s.log.Error("failed to send RPTC", logger.Error(err))
			return
		}
		s.setState(WaitingConfig)

	case WaitingConfig:
		echoed, err := parseAckField(env.Payload)
		if err != nil || echoed != s.peerID {
			s.log.Error("ACK peer id mismatch while waiting for config", logger.Uint32("got", echoed))
			s.setState(WaitingLogin)
			return
		}
		s.setState(Running)
		s.pings.reset()
		if s.callbacks.OnPeerConnected != nil {
			s.callbacks.OnPeerConnected()
		}

	case Running:
		s.log.Debug("dropping unexpected ACK while running")
	}
}

func (s *Session) handleNak(env framing.Envelope) {
	reason, ok := parseNakReason(env.Payload)
	if ok {
		s.log.Warn("received NAK", logger.Uint32("reason", uint32(reason)))
		if s.callbacks.OnNak != nil {
			s.callbacks.OnNak(reason)
		}
		if reason == framing.NakPeerAcl {
			if s.callbacks.OnDisconnected != nil {
				s.callbacks.OnDisconnected()
			}
			if s.cancel != nil {
				s.cancel()
			}
			return
		}
	} else {
		s.log.Warn("received NAK with no reason code")
	}
	s.setState(WaitingLogin)
}

func (s *Session) handleKeyResponse(payload []byte) {
	header, err := p25.DecodeKMMHeader(payload)
	if err != nil {
		s.log.Error("dropping malformed key response", logger.Error(err))
		return
	}
	if header.MessageID != p25.MessageIDModifyKeyCmd {
		s.log.Debug("dropping unrecognised KMM message id", logger.Uint32("message_id", uint32(header.MessageID)))
		return
	}
	modifyKey, err := p25.DecodeModifyKey(payload[p25.KMMHeaderSize:])
	if err != nil {
		s.log.Error("dropping malformed ModifyKey", logger.Error(err))
		return
	}
	if s.callbacks.OnKeyResponse != nil {
		s.callbacks.OnKeyResponse(modifyKey)
	}
}

func (s *Session) maintenanceLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			switch s.getState() {
			case WaitingLogin:
				s.stream.regenerate(s.nextStreamID())
				s.pings.reset()
				if err := s.sendOnActiveStream(framing.FuncRptl, framing.SubAny, buildRPTL(s.peerID)); err != nil {
					s.log.Error("failed to send RPTL", logger.Error(err))
				}
			case Running:
				if s.pings.missed() > s.maxMissedPings {
					s.log.Warn("peer link declared dead, reconnecting")
					s.setState(WaitingLogin)
					s.pings.reset()
					continue
				}
				if err := s.send(framing.FuncPing, framing.SubAny, buildPing(s.peerID), s.stream.current(), 0xFFFF); err != nil {
					s.log.Error("failed to send PING", logger.Error(err))
					continue
				}
				s.pings.incSent()
			}
		}
	}
}

// send assembles and transmits a frame envelope with explicit stream id and
// sequence number, wrapping it in AES if a key is configured.
func (s *Session) send(function, subFunction byte, payload []byte, streamID uint32, seq uint16) error {
	env := framing.Envelope{
		Rtp: framing.RtpHeader{
			Version:        framing.RtpVersion,
			Extension:      true,
			PayloadType:    framing.DvmPayloadType,
			SequenceNumber: seq,
			Timestamp:      s.clock.Next(),
			SSRC:           s.peerID,
		},
		Fne: framing.FneExtHeader{
			Function:    function,
			SubFunction: subFunction,
			StreamID:    streamID,
			PeerID:      s.peerID,
		},
		Payload: payload,
	}
	datagram := framing.Encode(env)
	if s.aesKey != nil {
		wrapped, err := fnecrypto.Wrap(s.aesKey, datagram)
		if err != nil {
			return fmt.Errorf("session: aes wrap failed: %w", err)
		}
		datagram = wrapped
	}
	n, err := s.conn.WriteToUDP(datagram, s.masterAddr)
	if err == nil {
		s.metrics.BytesSent(n)
	}
	return err
}

// sendOnActiveStream sends using the session's current stream id, reading
// and incrementing its sequence counter per §5's ordering rule.
func (s *Session) sendOnActiveStream(function, subFunction byte, payload []byte) error {
	id, seq := s.stream.next()
	return s.send(function, subFunction, payload, id, seq)
}

// Announce sends an announcement (affiliation, registration, etc.) with
// packet sequence 0 and a forced stream id of 0, per §4.10.
func (s *Session) Announce(subFunction byte, payload []byte) error {
	return s.send(framing.FuncAnnounce, subFunction, payload, 0, 0)
}

// SendKeyRequest sends a key-request (function 0x7C) with packet sequence 0
// and a forced stream id of 0, per §4.10.
func (s *Session) SendKeyRequest(payload []byte) error {
	return s.send(framing.FuncKeyReq, framing.SubAny, payload, 0, 0)
}

// SendProtocolData sends a Protocol (0x00) frame of the given technology
// sub-function on the active call stream. streamID identifies the call;
// seq is typically produced by the caller's own per-call sequence counter
// (the adapter layer owns call-stream lifetime, not the session).
func (s *Session) SendProtocolData(subFunction byte, streamID uint32, seq uint16, payload []byte) error {
	return s.send(framing.FuncProtocol, subFunction, payload, streamID, seq)
}

// PeerID returns the session's configured peer identity.
func (s *Session) PeerID() uint32 {
	return s.peerID
}
