// Package fec implements the forward-error-correction and integrity codes
// the framing and P25 data-unit layers depend on: CRC-9/CRC-16-CCITT/CRC-32,
// Golay(20,8,7), QR(16,7,6), Trellis 1/2 and 3/4 rate coding, the P25
// interleaver, and Reed-Solomon (24,12,13)/(24,16,9)/(36,20,17) over GF(2^6).
//
// Grounded on the teacher's bit-twiddling idiom in pkg/protocol/dmrd.go and
// the syndrome-table decode shape of its pkg/ysf/golay.go.
package fec

import "github.com/dbehnke/fne-peer/pkg/bitops"

// CRC9 computes the P25 PDU confirmed-block CRC-9 over the first 144 bits
// (18 bytes) of block. The generator polynomial is x^9+x^6+x^4+x^3+1 (0x059
// below the x^9 term), as
// defined by the P25 confirmed-block specification.
func CRC9(block []byte) uint16 {
	const poly = 0x059
	var crc uint16
	for i := 0; i < 144; i++ {
		bit := bitops.ReadBit(block, i)
		msb := (crc>>8)&1 != 0
		crc <<= 1
		if bit {
			crc ^= 1
		}
		if msb {
			crc ^= poly
		}
		crc &= 0x1FF
	}
	return crc
}

// PackCRC9 splits a 9-bit CRC across the high bit of byte0 (bit 8) and all
// of byte1 (bits 0-7), per §4.2.
func PackCRC9(crc uint16) (byte0bit bool, byte1 byte) {
	return crc&0x100 != 0, byte(crc & 0xFF)
}

// UnpackCRC9 is the inverse of PackCRC9.
func UnpackCRC9(byte0bit bool, byte1 byte) uint16 {
	var crc uint16
	if byte0bit {
		crc = 0x100
	}
	return crc | uint16(byte1)
}

const crc16CCITTPoly = 0x1021

// crc16Table is the standard CCITT (poly 0x1021, init 0xFFFF) table.
var crc16Table = buildCRC16Table()

func buildCRC16Table() [256]uint16 {
	var table [256]uint16
	for i := 0; i < 256; i++ {
		crc := uint16(i) << 8
		for b := 0; b < 8; b++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ crc16CCITTPoly
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}

// CRC16CCITT computes the CCITT CRC-16 over data (the "CCITT-162" variant
// referenced in §4.2), used on both the P25 PDU data header trailer and the
// FNE header's payload CRC field.
func CRC16CCITT(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc = (crc << 8) ^ crc16Table[byte(crc>>8)^b]
	}
	return crc
}

var crc32Table = buildCRC32Table()

func buildCRC32Table() [256]uint32 {
	const poly = 0xEDB88320
	var table [256]uint32
	for i := 0; i < 256; i++ {
		crc := uint32(i)
		for b := 0; b < 8; b++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ poly
			} else {
				crc >>= 1
			}
		}
		table[i] = crc
	}
	return table
}

// CRC32 computes the standard (reflected, poly 0xEDB88320) CRC-32 over data,
// used as the full-message trailer over the assembled P25 PDU user-data
// buffer.
func CRC32(data []byte) uint32 {
	crc := uint32(0xFFFFFFFF)
	for _, b := range data {
		crc = (crc >> 8) ^ crc32Table[byte(crc)^b]
	}
	return ^crc
}
