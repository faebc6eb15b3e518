// Package status exposes a read-only websocket feed of a session's
// connection state, ping/pong counters, and decoded-frame tallies. It
// adapts the teacher's pkg/web (a live peer/bridge dashboard) to this
// module's single-session perspective: same hub/broadcast shape, same
// gorilla/websocket upgrade handling, generalized from "connected peers on
// a master" to "this peer's connection to its master."
package status

import (
	"time"

	"github.com/dbehnke/fne-peer/pkg/metrics"
	"github.com/dbehnke/fne-peer/pkg/session"
	"github.com/dustin/go-humanize"
)

// Snapshot is a point-in-time summary of a session's state, broadcast to
// connected websocket clients and also available via a plain JSON GET.
type Snapshot struct {
	Timestamp        time.Time `json:"timestamp"`
	PeerID           uint32    `json:"peer_id"`
	ConnectionState  string    `json:"connection_state"`
	Connected        bool      `json:"connected"`
	FramesDecoded    uint64    `json:"frames_decoded"`
	FramesDropped    uint64    `json:"frames_dropped"`
	CRCFailures      uint64    `json:"crc_failures"`
	FECUncorrectable uint64    `json:"fec_uncorrectable"`
	PingsSent        uint64    `json:"pings_sent"`
	PingsAcked       uint64    `json:"pings_acked"`
	MissedPings      uint64    `json:"missed_pings"`
	LastRTTMillis    int64     `json:"last_rtt_millis"`
	BytesReceived    uint64    `json:"bytes_received"`
	BytesSent        uint64    `json:"bytes_sent"`
	BytesReceivedHuman string  `json:"bytes_received_human"`
	BytesSentHuman     string  `json:"bytes_sent_human"`
}

// BuildSnapshot builds a Snapshot of sess's current state and m's counters.
func BuildSnapshot(sess *session.Session, m *metrics.Collector) Snapshot {
	bytesRx := m.GetBytesReceived()
	bytesTx := m.GetBytesSent()
	return Snapshot{
		Timestamp:          time.Now(),
		PeerID:             sess.PeerID(),
		ConnectionState:    sess.State().String(),
		Connected:          m.IsConnected(),
		FramesDecoded:      m.GetFramesDecoded(),
		FramesDropped:      m.GetFramesDropped(),
		CRCFailures:        m.GetCRCFailures(),
		FECUncorrectable:   m.GetFECUncorrectable(),
		PingsSent:          m.GetPingsSent(),
		PingsAcked:         m.GetPingsAcked(),
		MissedPings:        m.GetMissedPings(),
		LastRTTMillis:      m.GetLastRTT().Milliseconds(),
		BytesReceived:      bytesRx,
		BytesSent:          bytesTx,
		BytesReceivedHuman: humanize.Bytes(bytesRx),
		BytesSentHuman:     humanize.Bytes(bytesTx),
	}
}
