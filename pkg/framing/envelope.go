package framing

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dbehnke/fne-peer/pkg/fec"
)

// ErrFraming is the sentinel wrapped by every envelope decode rejection
// described in §7 FramingError. Individual failures carry more detail via
// %w so callers can still errors.Is against this sentinel.
var ErrFraming = errors.New("framing: invalid frame")

// RtpHeader is the fixed 12-byte RTP header described in §4.8.
type RtpHeader struct {
	Version        uint8
	Padding        bool
	Extension      bool
	CSRCCount      uint8
	Marker         bool
	PayloadType    uint8
	SequenceNumber uint16
	Timestamp      uint32
	SSRC           uint32 // peer id
}

func (h RtpHeader) encode(buf []byte) {
	b0 := (h.Version & 0x3) << 6
	if h.Padding {
		b0 |= 0x20
	}
	if h.Extension {
		b0 |= 0x10
	}
	b0 |= h.CSRCCount & 0x0F
	buf[0] = b0

	b1 := h.PayloadType & 0x7F
	if h.Marker {
		b1 |= 0x80
	}
	buf[1] = b1

	binary.BigEndian.PutUint16(buf[2:4], h.SequenceNumber)
	binary.BigEndian.PutUint32(buf[4:8], h.Timestamp)
	binary.BigEndian.PutUint32(buf[8:12], h.SSRC)
}

func decodeRtpHeader(buf []byte) RtpHeader {
	b0 := buf[0]
	b1 := buf[1]
	return RtpHeader{
		Version:        b0 >> 6,
		Padding:        b0&0x20 != 0,
		Extension:      b0&0x10 != 0,
		CSRCCount:      b0 & 0x0F,
		Marker:         b1&0x80 != 0,
		PayloadType:    b1 & 0x7F,
		SequenceNumber: binary.BigEndian.Uint16(buf[2:4]),
		Timestamp:      binary.BigEndian.Uint32(buf[4:8]),
		SSRC:           binary.BigEndian.Uint32(buf[8:12]),
	}
}

// RtpExtHeader is the 4-byte RTP extension header carrying the DVM
// sentinel.
type RtpExtHeader struct {
	PayloadType uint16
	Length32    uint16 // length of the extension data, in 32-bit units
}

func (h RtpExtHeader) encode(buf []byte) {
	binary.BigEndian.PutUint16(buf[0:2], h.PayloadType)
	binary.BigEndian.PutUint16(buf[2:4], h.Length32)
}

func decodeRtpExtHeader(buf []byte) RtpExtHeader {
	return RtpExtHeader{
		PayloadType: binary.BigEndian.Uint16(buf[0:2]),
		Length32:    binary.BigEndian.Uint16(buf[2:4]),
	}
}

// FneExtHeader is the 12-byte FNE-specific extension content that follows
// the RTP extension header: opcode, stream correlation and integrity.
type FneExtHeader struct {
	CRC         uint16
	Function    uint8
	SubFunction uint8
	StreamID    uint32
	PeerID      uint32
}

func (h FneExtHeader) encode(buf []byte) {
	binary.BigEndian.PutUint16(buf[0:2], h.CRC)
	buf[2] = h.Function
	buf[3] = h.SubFunction
	binary.BigEndian.PutUint32(buf[4:8], h.StreamID)
	binary.BigEndian.PutUint32(buf[8:12], h.PeerID)
}

func decodeFneExtHeader(buf []byte) FneExtHeader {
	return FneExtHeader{
		CRC:         binary.BigEndian.Uint16(buf[0:2]),
		Function:    buf[2],
		SubFunction: buf[3],
		StreamID:    binary.BigEndian.Uint32(buf[4:8]),
		PeerID:      binary.BigEndian.Uint32(buf[8:12]),
	}
}

// Envelope is the ordered triple (RtpHeader, RtpExtHeader+FneExtHeader,
// Payload) described in §4.8's frame-envelope invariants.
type Envelope struct {
	Rtp     RtpHeader
	RtpExt  RtpExtHeader
	Fne     FneExtHeader
	Payload []byte
}

// Encode serialises env into a complete wire datagram (without any AES
// wrap), recomputing the CRC-16 over Payload and writing it into the FNE
// extension header.
func Encode(env Envelope) []byte {
	env.Fne.CRC = fec.CRC16CCITT(env.Payload)
	env.RtpExt.PayloadType = DvmExtensionSentinel
	env.RtpExt.Length32 = DvmExtensionLength32

	out := make([]byte, EnvelopeSize+len(env.Payload))
	env.Rtp.encode(out[0:RtpHeaderSize])
	env.RtpExt.encode(out[RtpHeaderSize : RtpHeaderSize+RtpExtHeaderSize])
	env.Fne.encode(out[RtpHeaderSize+RtpExtHeaderSize : EnvelopeSize])
	copy(out[EnvelopeSize:], env.Payload)
	return out
}

// Decode parses and validates a complete wire datagram (after any AES
// unwrap), rejecting it per the invariants in §4.8 with an error wrapping
// ErrFraming.
func Decode(datagram []byte) (Envelope, error) {
	if len(datagram) < EnvelopeSize {
		return Envelope{}, fmt.Errorf("%w: datagram too short (%d bytes)", ErrFraming, len(datagram))
	}

	rtp := decodeRtpHeader(datagram[0:RtpHeaderSize])
	if rtp.Version != RtpVersion {
		return Envelope{}, fmt.Errorf("%w: rtp version %d", ErrFraming, rtp.Version)
	}
	if !rtp.Extension {
		return Envelope{}, fmt.Errorf("%w: rtp extension bit clear", ErrFraming)
	}
	if rtp.PayloadType != DvmPayloadType && rtp.PayloadType != DvmPayloadType+1 {
		return Envelope{}, fmt.Errorf("%w: rtp payload type %d", ErrFraming, rtp.PayloadType)
	}

	rtpExt := decodeRtpExtHeader(datagram[RtpHeaderSize : RtpHeaderSize+RtpExtHeaderSize])
	if rtpExt.PayloadType != DvmExtensionSentinel {
		return Envelope{}, fmt.Errorf("%w: extension payload type 0x%02X", ErrFraming, rtpExt.PayloadType)
	}
	if rtpExt.Length32 != DvmExtensionLength32 {
		return Envelope{}, fmt.Errorf("%w: extension length %d", ErrFraming, rtpExt.Length32)
	}

	fne := decodeFneExtHeader(datagram[RtpHeaderSize+RtpExtHeaderSize : EnvelopeSize])
	payload := datagram[EnvelopeSize:]

	if crc := fec.CRC16CCITT(payload); crc != fne.CRC {
		return Envelope{}, fmt.Errorf("%w: crc mismatch (got 0x%04X, want 0x%04X)", ErrFraming, crc, fne.CRC)
	}

	return Envelope{Rtp: rtp, RtpExt: rtpExt, Fne: fne, Payload: payload}, nil
}
