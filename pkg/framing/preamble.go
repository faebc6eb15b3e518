package framing

import "fmt"

// PreambleSize is the fixed 16-byte common protocol-frame preamble shared
// by DMRD, P25D and NXDD payloads, described in §6's preamble table.
const PreambleSize = 16

// ProtocolPreamble is the technology-agnostic header every Protocol (0x00)
// payload starts with: a four-character tag, a sequence-or-LCO byte, 24-bit
// source/destination ids, four mode-specific bytes, and the packed slot/
// call-type/frame-type/data-type byte. The technology-specific packages
// (pkg/dmr, pkg/nxdn) interpret the mode-specific and final bytes further.
type ProtocolPreamble struct {
	Tag           string
	SequenceOrLCO byte
	SourceID      uint32 // 24-bit
	DestinationID uint32 // 24-bit
	ModeSpecific  [4]byte
	FlagsByte     byte // slot / call-type / frame-type / data-type bits
}

// DecodeProtocolPreamble reads the common 16-byte preamble from the front
// of payload.
func DecodeProtocolPreamble(payload []byte) (ProtocolPreamble, error) {
	if len(payload) < PreambleSize {
		return ProtocolPreamble{}, fmt.Errorf("framing: protocol preamble too short: %d bytes", len(payload))
	}
	p := ProtocolPreamble{
		Tag:           string(payload[0:4]),
		SequenceOrLCO: payload[4],
		SourceID:      uint32(payload[5])<<16 | uint32(payload[6])<<8 | uint32(payload[7]),
		DestinationID: uint32(payload[8])<<16 | uint32(payload[9])<<8 | uint32(payload[10]),
		FlagsByte:     payload[15],
	}
	copy(p.ModeSpecific[:], payload[11:15])
	return p, nil
}

// EncodeProtocolPreamble packs p into the front PreambleSize bytes of a new
// payload buffer, leaving room for rest to be appended by the caller.
func EncodeProtocolPreamble(p ProtocolPreamble, rest []byte) []byte {
	buf := make([]byte, PreambleSize+len(rest))
	copy(buf[0:4], []byte(p.Tag))
	buf[4] = p.SequenceOrLCO
	buf[5] = byte(p.SourceID >> 16)
	buf[6] = byte(p.SourceID >> 8)
	buf[7] = byte(p.SourceID)
	buf[8] = byte(p.DestinationID >> 16)
	buf[9] = byte(p.DestinationID >> 8)
	buf[10] = byte(p.DestinationID)
	copy(buf[11:15], p.ModeSpecific[:])
	buf[15] = p.FlagsByte
	copy(buf[16:], rest)
	return buf
}

// Slot reports the timeslot bit (bit 7) of FlagsByte.
func (p ProtocolPreamble) Slot() int {
	if p.FlagsByte&0x80 != 0 {
		return 1
	}
	return 0
}

// PrivateCall reports the call-type bit (bit 6; 1 = private).
func (p ProtocolPreamble) PrivateCall() bool {
	return p.FlagsByte&0x40 != 0
}

// FrameType returns bits 5-4 of FlagsByte.
func (p ProtocolPreamble) FrameType() byte {
	return (p.FlagsByte >> 4) & 0x03
}

// DataType returns bits 4-0 of FlagsByte, valid when FrameType indicates a
// DMR data frame (bit 5 set); for other cases this is the DUID/message-type
// nibble, interpreted by the caller's codec-specific package.
func (p ProtocolPreamble) DataType() byte {
	return p.FlagsByte & 0x1F
}
