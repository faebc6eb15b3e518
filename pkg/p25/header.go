// Package p25 implements the P25 protocol data units carried over the FNE
// envelope: the PDU data header, data blocks, the PDU assembler that
// stitches frames into a CRC-32-verified user-data buffer, the TSBK
// trunking-signalling family, and KMM key-management messages.
package p25

import (
	"encoding/binary"
	"errors"

	"github.com/dbehnke/fne-peer/pkg/fec"
)

// Format identifies the PDU data-header format.
type Format byte

// Recognised formats.
const (
	FormatUnconfirmed Format = 0x00
	FormatConfirmed   Format = 0x01
	FormatResponse    Format = 0x02
	FormatAMBT        Format = 0x03
)

// SAPExtAddr is the Service Access Point value signalling extended
// addressing, per §4.9 and §9 note 3.
const SAPExtAddr byte = 0x1F

// MaxBlocksToFollow is the rejection threshold: a header advertising this
// many blocks or more is malformed.
const MaxBlocksToFollow = 32

// ErrHeaderCRC is returned when a decoded data header's CRC-16 trailer
// does not match.
var ErrHeaderCRC = errors.New("p25: data header CRC-16 mismatch")

// ErrTooManyBlocks is returned when a header advertises
// BlocksToFollow >= MaxBlocksToFollow.
var ErrTooManyBlocks = errors.New("p25: header advertises too many blocks")

// DataHeader is the primary (or secondary) P25 PDU data header: format,
// service access point, and the block count that follows it.
type DataHeader struct {
	Format         Format
	SAP            byte
	BlocksToFollow byte
}

// dataHeaderSize is the 10-byte data-header region the CRC-16 covers, per
// spec §4.2: "10 data bytes + 2 CRC bytes, little-endian in the trailer."
const dataHeaderSize = 10

func (h DataHeader) clearBytes() []byte {
	buf := make([]byte, dataHeaderSize+2)
	buf[0] = (byte(h.Format)&0x07)<<5 | (h.SAP & 0x1F)
	buf[1] = h.BlocksToFollow
	// buf[2:10] is reserved for data-header fields this module does not
	// model; always zero.
	crc := fec.CRC16CCITT(buf[0:dataHeaderSize])
	binary.LittleEndian.PutUint16(buf[dataHeaderSize:dataHeaderSize+2], crc)
	return buf
}

// EncodeHeader Trellis-1/2-encodes h into its channel representation.
func EncodeHeader(h DataHeader) []byte {
	return fec.Trellis12Encode(h.clearBytes())
}

// DecodeHeader Trellis-1/2-decodes channel, verifies the CRC-16 trailer,
// and rejects a header advertising BlocksToFollow >= MaxBlocksToFollow.
func DecodeHeader(channel []byte) (DataHeader, error) {
	buf, err := fec.Trellis12Decode(channel)
	if err != nil {
		return DataHeader{}, err
	}
	if len(buf) < dataHeaderSize+2 {
		return DataHeader{}, ErrHeaderCRC
	}
	crc := binary.LittleEndian.Uint16(buf[dataHeaderSize : dataHeaderSize+2])
	if fec.CRC16CCITT(buf[0:dataHeaderSize]) != crc {
		return DataHeader{}, ErrHeaderCRC
	}
	h := DataHeader{
		Format:         Format(buf[0] >> 5 & 0x07),
		SAP:            buf[0] & 0x1F,
		BlocksToFollow: buf[1],
	}
	if h.BlocksToFollow >= MaxBlocksToFollow {
		return DataHeader{}, ErrTooManyBlocks
	}
	return h, nil
}

// SecondaryHeader is the extended-addressing header present as the first
// accumulated block when Format==Unconfirmed and SAP==SAPExtAddr (§4.9).
type SecondaryHeader struct {
	SAP  byte
	LLID uint32 // 24-bit logical link id
}

func (h SecondaryHeader) clearBytes() []byte {
	buf := make([]byte, 6)
	buf[0] = h.SAP & 0x1F
	buf[1] = byte(h.LLID >> 16)
	buf[2] = byte(h.LLID >> 8)
	buf[3] = byte(h.LLID)
	crc := fec.CRC16CCITT(buf[0:4])
	binary.BigEndian.PutUint16(buf[4:6], crc)
	return buf
}

// EncodeSecondaryHeader Trellis-1/2-encodes h.
func EncodeSecondaryHeader(h SecondaryHeader) []byte {
	return fec.Trellis12Encode(h.clearBytes())
}

// DecodeSecondaryHeader Trellis-1/2-decodes channel and verifies its
// CRC-16 trailer.
func DecodeSecondaryHeader(channel []byte) (SecondaryHeader, error) {
	buf, err := fec.Trellis12Decode(channel)
	if err != nil {
		return SecondaryHeader{}, err
	}
	if len(buf) < 6 {
		return SecondaryHeader{}, ErrHeaderCRC
	}
	crc := binary.BigEndian.Uint16(buf[4:6])
	if fec.CRC16CCITT(buf[0:4]) != crc {
		return SecondaryHeader{}, ErrHeaderCRC
	}
	return SecondaryHeader{
		SAP:  buf[0] & 0x1F,
		LLID: uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3]),
	}, nil
}
