// Package adapter is the abstract system base a host application embeds
// to speak to one FNE master: it owns a *session.Session, exposes
// registration hooks for the three carried technologies, and synthesizes
// the call-control payloads a system that has no real radio hardware
// still needs to emit (a DMR voice terminator-with-LC, a single-block P25
// TSDU). It generalizes the embed-and-delegate shape the teacher uses
// between pkg/network.Client and the packet types it owns.
package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/dbehnke/fne-peer/pkg/config"
	"github.com/dbehnke/fne-peer/pkg/dmr"
	"github.com/dbehnke/fne-peer/pkg/fec"
	"github.com/dbehnke/fne-peer/pkg/framing"
	"github.com/dbehnke/fne-peer/pkg/logger"
	"github.com/dbehnke/fne-peer/pkg/p25"
	"github.com/dbehnke/fne-peer/pkg/session"
)

// System embeds the session state machine and fans its receive callbacks
// out to handlers a host can register after construction, rather than at
// session.New time.
type System struct {
	sess *session.Session
	log  *logger.Logger

	mu             sync.RWMutex
	onDMR          func(framing.ProtocolPreamble, []byte)
	onP25          func(framing.ProtocolPreamble, []byte)
	onNXDN         func(framing.ProtocolPreamble, []byte)
	onConnected    func()
	onDisconnected func()
	onKeyResponse  func(p25.ModifyKey)
	onNak          func(reason uint16)
}

// New builds a System and the Session beneath it, wiring the session's
// Callbacks to this System's registration hooks.
func New(peerID uint32, passphrase string, details config.PeerDetails, masterIP string, masterPort, bindPort int, pingInterval time.Duration, maxMissedPings int, aesKey []byte, log *logger.Logger) (*System, error) {
	s := &System{log: log.WithComponent("adapter")}

	sess, err := session.New(peerID, passphrase, details, masterIP, masterPort, bindPort, pingInterval, maxMissedPings, aesKey, log, session.Callbacks{
		OnDMRData: func(p framing.ProtocolPreamble, payload []byte) {
			s.mu.RLock()
			h := s.onDMR
			s.mu.RUnlock()
			if h != nil {
				h(p, payload)
			}
		},
		OnP25Data: func(p framing.ProtocolPreamble, payload []byte) {
			s.mu.RLock()
			h := s.onP25
			s.mu.RUnlock()
			if h != nil {
				h(p, payload)
			}
		},
		OnNXDNData: func(p framing.ProtocolPreamble, payload []byte) {
			s.mu.RLock()
			h := s.onNXDN
			s.mu.RUnlock()
			if h != nil {
				h(p, payload)
			}
		},
		OnPeerConnected: func() {
			s.mu.RLock()
			h := s.onConnected
			s.mu.RUnlock()
			if h != nil {
				h()
			}
		},
		OnDisconnected: func() {
			s.mu.RLock()
			h := s.onDisconnected
			s.mu.RUnlock()
			if h != nil {
				h()
			}
		},
		OnKeyResponse: func(mk p25.ModifyKey) {
			s.mu.RLock()
			h := s.onKeyResponse
			s.mu.RUnlock()
			if h != nil {
				h(mk)
			}
		},
		OnNak: func(reason uint16) {
			s.mu.RLock()
			h := s.onNak
			s.mu.RUnlock()
			if h != nil {
				h(reason)
			}
		},
	})
	if err != nil {
		return nil, err
	}
	s.sess = sess
	return s, nil
}

// OnDMRData registers the handler invoked for every decoded DMR protocol
// frame. Passing nil unregisters.
func (s *System) OnDMRData(fn func(framing.ProtocolPreamble, []byte)) {
	s.mu.Lock()
	s.onDMR = fn
	s.mu.Unlock()
}

// OnP25Data registers the handler invoked for every decoded P25 protocol
// frame.
func (s *System) OnP25Data(fn func(framing.ProtocolPreamble, []byte)) {
	s.mu.Lock()
	s.onP25 = fn
	s.mu.Unlock()
}

// OnNXDNData registers the handler invoked for every decoded NXDN protocol
// frame.
func (s *System) OnNXDNData(fn func(framing.ProtocolPreamble, []byte)) {
	s.mu.Lock()
	s.onNXDN = fn
	s.mu.Unlock()
}

// OnPeerConnected registers the handler invoked once the session reaches
// Running.
func (s *System) OnPeerConnected(fn func()) {
	s.mu.Lock()
	s.onConnected = fn
	s.mu.Unlock()
}

// OnDisconnected registers the handler invoked when the session drops back
// to WaitingLogin or is terminated by a terminal NAK.
func (s *System) OnDisconnected(fn func()) {
	s.mu.Lock()
	s.onDisconnected = fn
	s.mu.Unlock()
}

// OnKeyResponse registers the handler invoked for a decoded KMM ModifyKey.
func (s *System) OnKeyResponse(fn func(p25.ModifyKey)) {
	s.mu.Lock()
	s.onKeyResponse = fn
	s.mu.Unlock()
}

// OnNak registers the handler invoked for any NAK carrying a reason code.
func (s *System) OnNak(fn func(reason uint16)) {
	s.mu.Lock()
	s.onNak = fn
	s.mu.Unlock()
}

// Start runs the underlying session until ctx is cancelled or Stop is
// called.
func (s *System) Start(ctx context.Context) error {
	return s.sess.Start(ctx)
}

// Stop cleanly closes the underlying session.
func (s *System) Stop() {
	s.sess.Stop()
}

// PeerID returns the configured peer identity.
func (s *System) PeerID() uint32 {
	return s.sess.PeerID()
}

// State returns the current connection state.
func (s *System) State() session.ConnectionState {
	return s.sess.State()
}

// Session returns the underlying session, for hosts that need direct
// access (e.g. to build a status.Snapshot from it).
func (s *System) Session() *session.Session {
	return s.sess
}

// SendDMRVoiceTerminator assembles an RS-protected Full LC voice
// terminator and sends it as a DMR protocol frame on the given call
// stream, generalizing the teacher's BuildVoiceTerminatorPayload (now the
// real implementation lives in pkg/dmr.EncodeFullLC).
func (s *System) SendDMRVoiceTerminator(streamID uint32, seq uint16, slot int, srcID, dstID uint32, flco dmr.FLCO) error {
	lc := dmr.FullLC{FLCO: flco, DstID: dstID, SrcID: srcID}
	protected := dmr.EncodeFullLC(lc)

	slotByte := dmr.Preamble{Slot: slot, FrameType: 0x02}.PackSlotByte()
	preamble := framing.ProtocolPreamble{
		Tag:           framing.PacketTypeDMRD,
		SourceID:      srcID,
		DestinationID: dstID,
		FlagsByte:     slotByte,
	}
	payload := framing.EncodeProtocolPreamble(preamble, protected)
	return s.sess.SendProtocolData(framing.SubProtocolDMR, streamID, seq, payload)
}

// SendP25TSDU wraps a single encoded TSBK in a one-block Unconfirmed PDU
// (header + Trellis-1/2-coded block with the mandatory trailing CRC-32)
// and sends it as a P25 protocol frame, reusing the assembler's own wire
// shapes in reverse.
func (s *System) SendP25TSDU(streamID uint32, seq uint16, srcID, dstID uint32, tsbk []byte) error {
	header := p25.DataHeader{Format: p25.FormatUnconfirmed, SAP: 0x03, BlocksToFollow: 1}

	block := p25.RawBlock{HasCRC32: true}
	copy(block.Payload[:], tsbk)
	block.CRC32 = fec.CRC32(block.Payload[:])

	channel := make([]byte, 0, 64)
	channel = append(channel, p25.EncodeHeader(header)...)
	channel = append(channel, p25.EncodeRawBlock(block)...)

	preamble := framing.ProtocolPreamble{
		Tag:           framing.PacketTypeP25D,
		SourceID:      srcID,
		DestinationID: dstID,
	}
	payload := framing.EncodeProtocolPreamble(preamble, channel)
	return s.sess.SendProtocolData(framing.SubProtocolP25, streamID, seq, payload)
}

// SendKeyRequest forwards to the underlying session's key-request send.
func (s *System) SendKeyRequest(payload []byte) error {
	return s.sess.SendKeyRequest(payload)
}

// Announce forwards to the underlying session's announcement send.
func (s *System) Announce(subFunction byte, payload []byte) error {
	return s.sess.Announce(subFunction, payload)
}
