package dmr

import "github.com/dbehnke/fne-peer/pkg/fec"

// DataType identifies the content of a DMR data/control burst (the low
// nibble of Slot Type).
type DataType byte

// Recognised data types.
const (
	DataTypePIHeader     DataType = 0x0
	DataTypeVoiceLCHeader DataType = 0x1
	DataTypeTerminatorLC DataType = 0x2
	DataTypeCSBK         DataType = 0x3
	DataTypeMBCHeader    DataType = 0x4
	DataTypeMBCContinue  DataType = 0x5
	DataTypeDataHeader   DataType = 0x6
	DataTypeRate12Data   DataType = 0x7
	DataTypeRate34Data   DataType = 0x8
	DataTypeIdle         DataType = 0x9
)

// SlotType is the 8-bit colour-code + data-type field protected by the
// Golay(20,8,7) code and carried in every non-voice burst.
type SlotType struct {
	ColorCode byte
	DataType  DataType
}

func (s SlotType) pack8() byte {
	return (s.ColorCode&0x0F)<<4 | byte(s.DataType)&0x0F
}

func unpackSlotType8(v byte) SlotType {
	return SlotType{
		ColorCode: (v >> 4) & 0x0F,
		DataType:  DataType(v & 0x0F),
	}
}

// EncodeSlotType protects s with the Golay(20,8,7) code, returning the 20-bit
// codeword.
func EncodeSlotType(s SlotType) uint32 {
	return fec.EncodeGolay2087(s.pack8())
}

// DecodeSlotType reverses EncodeSlotType.
func DecodeSlotType(codeword uint32) SlotType {
	return unpackSlotType8(fec.DecodeGolay2087(codeword))
}
