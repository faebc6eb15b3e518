package p25

import (
	"encoding/binary"
	"errors"

	"github.com/dbehnke/fne-peer/pkg/fec"
)

// BlockPayloadSize is the fixed user-data payload carried by every data
// block, confirmed or not.
const BlockPayloadSize = 16

// ErrBlockCRC9 is returned when a confirmed block's CRC-9 trailer does not
// match.
var ErrBlockCRC9 = errors.New("p25: confirmed block CRC-9 mismatch")

// RawBlock is an Unconfirmed/Response/AMBT-format data block: 16 bytes of
// user data with no per-block FEC trailer beyond the shared Trellis-1/2
// coding, plus an optional CRC-32 trailer present only on the PDU's last
// block.
type RawBlock struct {
	Payload  [BlockPayloadSize]byte
	CRC32    uint32
	HasCRC32 bool
}

func (b RawBlock) clearBytes() []byte {
	buf := make([]byte, BlockPayloadSize+4)
	copy(buf[0:BlockPayloadSize], b.Payload[:])
	if b.HasCRC32 {
		binary.BigEndian.PutUint32(buf[BlockPayloadSize:], b.CRC32)
	}
	return buf
}

// EncodeRawBlock Trellis-1/2-encodes b.
func EncodeRawBlock(b RawBlock) []byte {
	return fec.Trellis12Encode(b.clearBytes())
}

// DecodeRawBlock Trellis-1/2-decodes channel into a RawBlock. The caller
// (the assembler) decides whether the CRC32 field is meaningful, since
// that depends on this block's position, not its own contents.
func DecodeRawBlock(channel []byte) (RawBlock, error) {
	buf, err := fec.Trellis12Decode(channel)
	if err != nil {
		return RawBlock{}, err
	}
	var b RawBlock
	copy(b.Payload[:], buf[0:BlockPayloadSize])
	b.CRC32 = binary.BigEndian.Uint32(buf[BlockPayloadSize : BlockPayloadSize+4])
	return b, nil
}

// ConfirmedBlock is a Confirmed-format data block: a 7-bit serial number,
// 16 bytes of user data, a CRC-9 over the serial+payload+reserved prefix,
// and (on the PDU's last block only) a CRC-32 trailer.
type ConfirmedBlock struct {
	SerialNumber byte
	Payload      [BlockPayloadSize]byte
	CRC32        uint32
	HasCRC32     bool
}

func (b ConfirmedBlock) prefix18() []byte {
	buf := make([]byte, 18)
	buf[0] = b.SerialNumber & 0x7F
	copy(buf[1:17], b.Payload[:])
	return buf
}

func (b ConfirmedBlock) clearBytes() []byte {
	prefix := b.prefix18()
	crc9 := fec.CRC9(prefix)
	hiBit, lo := fec.PackCRC9(crc9)

	buf := make([]byte, 18+2+4)
	copy(buf, prefix)
	if hiBit {
		buf[18] = 1
	}
	buf[19] = lo
	if b.HasCRC32 {
		binary.BigEndian.PutUint32(buf[20:24], b.CRC32)
	}
	return buf
}

// EncodeConfirmedBlock Trellis-3/4-encodes b, computing its CRC-9 trailer.
func EncodeConfirmedBlock(b ConfirmedBlock) []byte {
	return fec.Trellis34Encode(b.clearBytes())
}

// DecodeConfirmedBlock Trellis-3/4-decodes channel and verifies the CRC-9
// trailer over the serial+payload prefix.
func DecodeConfirmedBlock(channel []byte) (ConfirmedBlock, error) {
	buf, err := fec.Trellis34Decode(channel)
	if err != nil {
		return ConfirmedBlock{}, err
	}
	if len(buf) < 24 {
		return ConfirmedBlock{}, ErrBlockCRC9
	}
	prefix := buf[0:18]
	wantCRC := fec.UnpackCRC9(buf[18] != 0, buf[19])
	if fec.CRC9(prefix) != wantCRC {
		return ConfirmedBlock{}, ErrBlockCRC9
	}

	var b ConfirmedBlock
	b.SerialNumber = buf[0] & 0x7F
	copy(b.Payload[:], buf[1:17])
	b.CRC32 = binary.BigEndian.Uint32(buf[20:24])
	return b, nil
}

// ExtendedAddress extracts the extended SAP and logical-link id carried
// in the first four payload bytes (SAP in byte 0, 24-bit LLID in bytes 1-3)
// of a confirmed block whose serial number
// is zero, per §4.9's Confirmed+ExtAddr path (§9 note 3).
func ExtendedAddress(payload []byte) (sap byte, llid uint32) {
	sap = payload[0] & 0x1F
	llid = uint32(payload[1])<<16 | uint32(payload[2])<<8 | uint32(payload[3])
	return
}
