package framing

import (
	"bytes"
	"errors"
	"testing"
)

func sampleEnvelope(payload []byte) Envelope {
	return Envelope{
		Rtp: RtpHeader{
			Version:        RtpVersion,
			Extension:      true,
			PayloadType:    DvmPayloadType,
			SequenceNumber: 42,
			Timestamp:      1000,
			SSRC:           0x00112233,
		},
		Fne: FneExtHeader{
			Function:    FuncProtocol,
			SubFunction: SubProtocolDMR,
			StreamID:    0xAABBCCDD,
			PeerID:      0x00112233,
		},
		Payload: payload,
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte("DMRD\x00\x01\x02\x03test-payload-bytes")
	env := sampleEnvelope(payload)

	wire := Encode(env)
	if len(wire) != EnvelopeSize+len(payload) {
		t.Fatalf("unexpected wire length: got %d want %d", len(wire), EnvelopeSize+len(payload))
	}

	decoded, err := Decode(wire)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if decoded.Rtp.SequenceNumber != env.Rtp.SequenceNumber {
		t.Fatalf("sequence mismatch: got %d want %d", decoded.Rtp.SequenceNumber, env.Rtp.SequenceNumber)
	}
	if decoded.Fne.StreamID != env.Fne.StreamID {
		t.Fatalf("stream id mismatch: got %#x want %#x", decoded.Fne.StreamID, env.Fne.StreamID)
	}
	if !bytes.Equal(decoded.Payload, payload) {
		t.Fatalf("payload mismatch: got %v want %v", decoded.Payload, payload)
	}
}

func TestDecodeRejectsWrongVersion(t *testing.T) {
	env := sampleEnvelope([]byte("x"))
	wire := Encode(env)
	wire[0] = (wire[0] &^ 0xC0) | (1 << 6) // force version 1

	if _, err := Decode(wire); !errors.Is(err, ErrFraming) {
		t.Fatalf("expected ErrFraming, got %v", err)
	}
}

func TestDecodeRejectsMissingExtensionBit(t *testing.T) {
	env := sampleEnvelope([]byte("x"))
	wire := Encode(env)
	wire[0] &^= 0x10

	if _, err := Decode(wire); !errors.Is(err, ErrFraming) {
		t.Fatalf("expected ErrFraming, got %v", err)
	}
}

func TestDecodeRejectsBadPayloadType(t *testing.T) {
	env := sampleEnvelope([]byte("x"))
	wire := Encode(env)
	wire[1] = (wire[1] & 0x80) | 10 // valid marker bit, invalid payload type

	if _, err := Decode(wire); !errors.Is(err, ErrFraming) {
		t.Fatalf("expected ErrFraming, got %v", err)
	}
}

func TestDecodeRejectsCRCMismatch(t *testing.T) {
	env := sampleEnvelope([]byte("original-payload"))
	wire := Encode(env)
	wire[len(wire)-1] ^= 0xFF

	if _, err := Decode(wire); !errors.Is(err, ErrFraming) {
		t.Fatalf("expected ErrFraming, got %v", err)
	}
}

func TestDecodeRejectsShortDatagram(t *testing.T) {
	if _, err := Decode(make([]byte, EnvelopeSize-1)); !errors.Is(err, ErrFraming) {
		t.Fatalf("expected ErrFraming, got %v", err)
	}
}

func TestClockAdvancesByFixedStep(t *testing.T) {
	c := NewClockSeeded(1000)
	first := c.Next()
	second := c.Next()
	if second-first != RtpTimestampStep {
		t.Fatalf("expected step %d, got %d", RtpTimestampStep, second-first)
	}
}

func TestSequenceCounterWraps(t *testing.T) {
	var s SequenceCounter
	s.value = 0xFFFF
	if got := s.Next(); got != 0xFFFF {
		t.Fatalf("expected 0xFFFF, got %#x", got)
	}
	if got := s.Next(); got != 0 {
		t.Fatalf("expected wrap to 0, got %#x", got)
	}
}
