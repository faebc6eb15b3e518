package dmr

import "github.com/dbehnke/fne-peer/pkg/fec"

// LCSS identifies the position of an embedded-LC fragment within a
// superframe (single fragment, or first/continuation/last of three).
type LCSS byte

// Recognised LCSS values.
const (
	LCSSSingleFragment LCSS = 0
	LCSSFirstFragment  LCSS = 1
	LCSSLastFragment   LCSS = 2
	LCSSContinuation   LCSS = 3
)

// EMB is the 1-byte Embedded Signalling header carried in every voice
// burst B-E: 4-bit colour code, privacy indicator bit, and 2-bit LCSS.
type EMB struct {
	ColorCode byte
	PI        bool
	LCSS      LCSS
}

func (e EMB) pack7() byte {
	v := (e.ColorCode & 0x0F) << 3
	if e.PI {
		v |= 0x04
	}
	v |= byte(e.LCSS) & 0x03
	return v
}

func unpackEMB7(v byte) EMB {
	return EMB{
		ColorCode: (v >> 3) & 0x0F,
		PI:        v&0x04 != 0,
		LCSS:      LCSS(v & 0x03),
	}
}

// Encode protects e with the QR(16,7,6) code, returning the 16-bit
// codeword carried across the embedded signalling field.
func Encode(e EMB) uint16 {
	return fec.EncodeQR1676(e.pack7())
}

// Decode reverses Encode, correcting up to the code's guaranteed distance.
func Decode(codeword uint16) EMB {
	return unpackEMB7(fec.DecodeQR1676(codeword))
}
