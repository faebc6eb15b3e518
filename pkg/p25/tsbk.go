package p25

import (
	"encoding/binary"
	"errors"

	"github.com/dbehnke/fne-peer/pkg/fec"
)

// TSBKSize is the fixed 12-byte wire size of every trunking-signalling
// block.
const TSBKSize = 12

// ErrTSBKCRC is returned when a decoded TSBK's CRC-16 trailer does not
// match.
var ErrTSBKCRC = errors.New("p25: tsbk CRC-16 mismatch")

// ErrTSBKSize is returned when a buffer is not exactly TSBKSize bytes.
var ErrTSBKSize = errors.New("p25: tsbk must be 12 bytes")

// Opcode identifies a TSBK's message class (the low 6 bits of byte 0).
type Opcode byte

// Recognised opcodes. §9's dynamic-dispatch redesign re-expresses the
// source's open-inheritance TSBK family as this tagged sum: each opcode's
// args live in a small value type with an Encode/Decode pair, sharing the
// Trellis-free 12-byte wire shape and CRC-16 trailer below.
const (
	OpcodeIOSPExtFnct Opcode = 0x24
	OpcodeIOSPAckRsp  Opcode = 0x20
)

// Args is the shared capability set every TSBK payload type implements:
// pack its opcode-specific fields into the 8-byte args region (bytes 2-9).
type Args interface {
	EncodeArgs() [8]byte
}

// Fields is the common envelope around a TSBK's opcode-specific args:
// opcode, manufacturer id, and the last-block/protected flags carried in
// byte 0.
type Fields struct {
	Opcode      Opcode
	MFID        byte
	LastBlock   bool
	Protected   bool
}

// Encode packs fields and args into the raw 12-byte TSBK, computing the
// CRC-16-CCITT trailer over bytes 0-9.
func Encode(fields Fields, args Args) []byte {
	buf := make([]byte, TSBKSize)
	b0 := byte(fields.Opcode) & 0x3F
	if fields.LastBlock {
		b0 |= 0x80
	}
	if fields.Protected {
		b0 |= 0x40
	}
	buf[0] = b0
	buf[1] = fields.MFID

	a := args.EncodeArgs()
	copy(buf[2:10], a[:])

	crc := fec.CRC16CCITT(buf[0:10])
	binary.BigEndian.PutUint16(buf[10:12], crc)
	return buf
}

// Decoded is the result of dispatching a raw TSBK to its opcode-specific
// decoder; Payload holds the recognised type (IOSPExtFnct, IOSPAckRsp) or
// a raw [8]byte for an opcode this module does not yet model.
type Decoded struct {
	Fields  Fields
	Payload interface{}
}

// Decode verifies raw's CRC-16 trailer and dispatches on its opcode.
func Decode(raw []byte) (Decoded, error) {
	if len(raw) != TSBKSize {
		return Decoded{}, ErrTSBKSize
	}
	crc := binary.BigEndian.Uint16(raw[10:12])
	if fec.CRC16CCITT(raw[0:10]) != crc {
		return Decoded{}, ErrTSBKCRC
	}

	fields := Fields{
		Opcode:    Opcode(raw[0] & 0x3F),
		LastBlock: raw[0]&0x80 != 0,
		Protected: raw[0]&0x40 != 0,
		MFID:      raw[1],
	}

	var args [8]byte
	copy(args[:], raw[2:10])

	var payload interface{}
	switch fields.Opcode {
	case OpcodeIOSPExtFnct:
		payload = DecodeIOSPExtFnct(args)
	case OpcodeIOSPAckRsp:
		payload = DecodeIOSPAckRsp(args)
	default:
		payload = args
	}

	return Decoded{Fields: fields, Payload: payload}, nil
}

// IOSPExtFnct is the Extended Function Command TSBK: a manufacturer
// extended-function code plus the source and destination units it
// targets.
type IOSPExtFnct struct {
	ExtendedFunction uint16
	SrcId            uint32 // 24-bit
	DstId            uint32 // 24-bit
}

// EncodeArgs implements Args.
func (t IOSPExtFnct) EncodeArgs() [8]byte {
	var a [8]byte
	binary.BigEndian.PutUint16(a[0:2], t.ExtendedFunction)
	a[2] = byte(t.SrcId >> 16)
	a[3] = byte(t.SrcId >> 8)
	a[4] = byte(t.SrcId)
	a[5] = byte(t.DstId >> 16)
	a[6] = byte(t.DstId >> 8)
	a[7] = byte(t.DstId)
	return a
}

// DecodeIOSPExtFnct is the inverse of EncodeArgs.
func DecodeIOSPExtFnct(args [8]byte) IOSPExtFnct {
	return IOSPExtFnct{
		ExtendedFunction: binary.BigEndian.Uint16(args[0:2]),
		SrcId:            uint32(args[2])<<16 | uint32(args[3])<<8 | uint32(args[4]),
		DstId:            uint32(args[5])<<16 | uint32(args[6])<<8 | uint32(args[7]),
	}
}

// IOSPAckRsp is the Acknowledge Response TSBK. Per §9 note 2, the source
// file's two variants disagreed on field order between encode and decode;
// this module uses the same (SrcId at args offset 0, DstId at offset 3)
// layout for both directions so the pair round-trips.
type IOSPAckRsp struct {
	ServiceType byte
	SrcId       uint32 // 24-bit
	DstId       uint32 // 24-bit
}

// EncodeArgs implements Args.
func (t IOSPAckRsp) EncodeArgs() [8]byte {
	var a [8]byte
	a[0] = byte(t.SrcId >> 16)
	a[1] = byte(t.SrcId >> 8)
	a[2] = byte(t.SrcId)
	a[3] = byte(t.DstId >> 16)
	a[4] = byte(t.DstId >> 8)
	a[5] = byte(t.DstId)
	a[6] = t.ServiceType
	return a
}

// DecodeIOSPAckRsp is the inverse of EncodeArgs.
func DecodeIOSPAckRsp(args [8]byte) IOSPAckRsp {
	return IOSPAckRsp{
		SrcId:       uint32(args[0])<<16 | uint32(args[1])<<8 | uint32(args[2]),
		DstId:       uint32(args[3])<<16 | uint32(args[4])<<8 | uint32(args[5]),
		ServiceType: args[6],
	}
}
