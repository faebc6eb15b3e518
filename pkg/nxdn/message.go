// Package nxdn implements the message-type enumeration and LICH framing
// used to route a decoded NXDN preamble to a receive callback.
package nxdn

import "fmt"

// MessageType identifies the kind of traffic an NXDN frame carries, taken
// from the RCCH/FACCH message id field.
type MessageType byte

// Recognised NXDN message types.
const (
	MessageTypeVoiceCall       MessageType = 0x01
	MessageTypeVoiceCallAssign MessageType = 0x03
	MessageTypeDataCallAssign  MessageType = 0x04
	MessageTypeTxRelease       MessageType = 0x07
	MessageTypeIdle            MessageType = 0x10
	MessageTypeGroupRegistration MessageType = 0x20
	MessageTypeRegistration    MessageType = 0x21
	MessageTypeRegistrationClear MessageType = 0x22
	MessageTypeStatus          MessageType = 0x24
)

// String gives a short human-readable name for a message type, falling
// back to its numeric value for anything this module does not model.
func (m MessageType) String() string {
	switch m {
	case MessageTypeVoiceCall:
		return "VCALL"
	case MessageTypeVoiceCallAssign:
		return "VCALL_ASSIGN"
	case MessageTypeDataCallAssign:
		return "DCALL_ASSIGN"
	case MessageTypeTxRelease:
		return "TX_REL"
	case MessageTypeIdle:
		return "IDLE"
	case MessageTypeGroupRegistration:
		return "GRP_REG"
	case MessageTypeRegistration:
		return "REG"
	case MessageTypeRegistrationClear:
		return "REG_CLEAR"
	case MessageTypeStatus:
		return "STATUS"
	default:
		return fmt.Sprintf("UNKNOWN(%#x)", byte(m))
	}
}

// StructureType is NXDN's RDCH/RCCH "usc"/structure field (SACCH USC bits),
// distinguishing single, header, and continuation blocks of a multi-block
// message.
type StructureType byte

// Recognised structure types.
const (
	StructureSingle       StructureType = 0x00
	StructureHeaderAndFirst StructureType = 0x01
	StructureContinuation StructureType = 0x02
	StructureLast         StructureType = 0x03
)

// LICH is the Link Information Channel carried at the front of every NXDN
// RF/RDCH frame: which logical channel follows, its transmission direction,
// and the structure of the message it is part of.
type LICH struct {
	RFCT      byte // RF Channel Type
	FCT       byte // Function Channel Type
	Option    byte
	Direction byte // 0 = inbound (subscriber to site), 1 = outbound
}

// packed8 returns the LICH fields packed into the single byte NXDN carries
// them in: RFCT(2) | FCT(2) | Option(2) | Direction(1) | parity(1, unused
// here since site-side decode already validates the channel's own FEC).
func (l LICH) packed8() byte {
	var b byte
	b |= (l.RFCT & 0x03) << 6
	b |= (l.FCT & 0x03) << 4
	b |= (l.Option & 0x03) << 2
	b |= (l.Direction & 0x01) << 1
	return b
}

func unpackLICH8(b byte) LICH {
	return LICH{
		RFCT:      (b >> 6) & 0x03,
		FCT:       (b >> 4) & 0x03,
		Option:    (b >> 2) & 0x03,
		Direction: (b >> 1) & 0x01,
	}
}

// Preamble holds the NXDN fields that Encode packs into 6 bytes for the
// NXDD packet type: a LICH, a message type, and the source/destination
// addressing shared with the DMR and P25 preambles.
type Preamble struct {
	Lich        LICH
	Type        MessageType
	Structure   StructureType
	SrcID       uint32 // 16-bit NXDN unit/group id
	DstID       uint32
	GroupCall   bool
}

// Encode packs a Preamble into the message-type byte plus LICH byte and
// 2-byte source/destination fields used inline in the common 16-byte
// envelope preamble.
func Encode(p Preamble) []byte {
	buf := make([]byte, 6)
	buf[0] = p.Lich.packed8()
	b1 := byte(p.Type) & 0x3F
	b1 |= (byte(p.Structure) & 0x03) << 6
	buf[1] = b1
	buf[2] = byte(p.SrcID >> 8)
	buf[3] = byte(p.SrcID)
	buf[4] = byte(p.DstID >> 8)
	buf[5] = byte(p.DstID)
	if p.GroupCall {
		buf[4] |= 0x80
	}
	return buf
}

// Decode is the inverse of Encode.
func Decode(buf []byte) (Preamble, error) {
	if len(buf) < 6 {
		return Preamble{}, fmt.Errorf("nxdn: preamble too short: %d bytes", len(buf))
	}
	p := Preamble{
		Lich:      unpackLICH8(buf[0]),
		Type:      MessageType(buf[1] & 0x3F),
		Structure: StructureType((buf[1] >> 6) & 0x03),
		SrcID:     uint32(buf[2])<<8 | uint32(buf[3]),
		GroupCall: buf[4]&0x80 != 0,
	}
	p.DstID = uint32(buf[4]&0x7F)<<8 | uint32(buf[5])
	return p, nil
}

// IsVoice reports whether a message type carries voice traffic, the
// distinction a receive callback dispatch table needs to route frames to
// a voice decoder versus a signalling handler.
func (m MessageType) IsVoice() bool {
	switch m {
	case MessageTypeVoiceCall, MessageTypeVoiceCallAssign:
		return true
	default:
		return false
	}
}
