// Package events publishes session lifecycle events (peer connected/
// disconnected, NAK received, key response) to an external event broker.
// It adapts the teacher's pkg/mqtt (a stub publisher for master-side peer/
// traffic/bridge events, never given a real broker dial) to this module's
// session-callback surface: the same Config/event-struct shape and the
// same documented stub posture, but wired to pkg/session.Callbacks instead
// of left dangling.
package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dbehnke/fne-peer/pkg/logger"
	"github.com/dbehnke/fne-peer/pkg/p25"
)

// Config holds event-publisher configuration.
type Config struct {
	Enabled     bool
	Broker      string
	TopicPrefix string
	ClientID    string
	Username    string
	Password    string
	QoS         byte
	Retained    bool
}

// PeerConnectedEvent fires when the session reaches the Running state.
type PeerConnectedEvent struct {
	PeerID    uint32    `json:"peer_id"`
	Timestamp time.Time `json:"timestamp"`
}

// PeerDisconnectedEvent fires on master-closing or a terminal NAK.
type PeerDisconnectedEvent struct {
	PeerID    uint32    `json:"peer_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// NakEvent fires whenever the master sends a NAK, successful reconnect or
// not.
type NakEvent struct {
	PeerID    uint32    `json:"peer_id"`
	Reason    uint16    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// KeyResponseEvent fires when a KMM ModifyKey is decoded off the wire.
type KeyResponseEvent struct {
	PeerID      uint32    `json:"peer_id"`
	AlgorithmID byte      `json:"algorithm_id"`
	KeyID       uint16    `json:"key_id"`
	KeysetID    byte      `json:"keyset_id"`
	KeyCount    int       `json:"key_count"`
	Timestamp   time.Time `json:"timestamp"`
}

// Publisher publishes session lifecycle events to the configured broker.
type Publisher struct {
	config Config
	log    *logger.Logger
	peerID uint32
}

// New creates a new Publisher for the given peer identity.
func New(peerID uint32, config Config, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}
	return &Publisher{
		config: config,
		log:    log.WithComponent("events"),
		peerID: peerID,
	}
}

// PublishPeerConnected publishes a PeerConnectedEvent.
func (p *Publisher) PublishPeerConnected() error {
	if !p.config.Enabled {
		return nil
	}
	return p.publish("peer/connected", PeerConnectedEvent{PeerID: p.peerID, Timestamp: time.Now()})
}

// PublishPeerDisconnected publishes a PeerDisconnectedEvent.
func (p *Publisher) PublishPeerDisconnected(reason string) error {
	if !p.config.Enabled {
		return nil
	}
	return p.publish("peer/disconnected", PeerDisconnectedEvent{PeerID: p.peerID, Reason: reason, Timestamp: time.Now()})
}

// PublishNak publishes a NakEvent.
func (p *Publisher) PublishNak(reason uint16) error {
	if !p.config.Enabled {
		return nil
	}
	return p.publish("peer/nak", NakEvent{PeerID: p.peerID, Reason: reason, Timestamp: time.Now()})
}

// PublishKeyResponse publishes a KeyResponseEvent summarising a decoded
// ModifyKey (§4.10), without including raw key material.
func (p *Publisher) PublishKeyResponse(m p25.ModifyKey) error {
	if !p.config.Enabled {
		return nil
	}
	return p.publish("peer/key_response", KeyResponseEvent{
		PeerID:      p.peerID,
		AlgorithmID: m.AlgorithmID,
		KeyID:       m.KeyID,
		KeysetID:    m.Keyset.KeysetID,
		KeyCount:    len(m.Keyset.Keys),
		Timestamp:   time.Now(),
	})
}

func (p *Publisher) publish(topicSuffix string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Error("failed to serialize event", logger.String("topic", topicSuffix), logger.Error(err))
		return fmt.Errorf("events: marshal %s: %w", topicSuffix, err)
	}

	topic := p.formatTopic(topicSuffix)

	// TODO: dial a real broker client here once one is added to go.mod;
	// the teacher's own mqtt publisher never got past this same stub, so
	// we keep the posture rather than inventing a dependency.
	p.log.Debug("would publish event",
		logger.String("topic", topic),
		logger.Int("payload_size", len(payload)))
	return nil
}

func (p *Publisher) formatTopic(suffix string) string {
	prefix := strings.TrimSuffix(p.config.TopicPrefix, "/")
	if prefix == "" {
		return suffix
	}
	return fmt.Sprintf("%s/%s", prefix, suffix)
}
