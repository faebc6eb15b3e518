// Package dmr implements the DMR protocol data units carried inside a
// voice or data burst: Full LC / Privacy LC, EMB, and Slot Type. It
// generalizes the teacher's pkg/protocol LC sketch into RS-protected
// assemblies using pkg/fec.
package dmr

import "github.com/dbehnke/fne-peer/pkg/fec"

// FLCO is the Full Link Control Opcode carried in the low 6 bits of byte 0
// of a Full LC.
type FLCO byte

// Recognised FLCO values.
const (
	FLCOGroup    FLCO = 0x00
	FLCOUserUser FLCO = 0x03
)

// FullLC is the 9-byte clear-text DMR Link Control payload: protect flag,
// FLCO, feature-set ID, service options, destination and source addresses.
type FullLC struct {
	ProtectFlag    bool
	FLCO           FLCO
	FeatureSetID   byte
	ServiceOptions byte
	DstID          uint32
	SrcID          uint32
}

// Pack serialises the LC fields into the canonical 9-byte clear form.
func (lc FullLC) Pack() []byte {
	out := make([]byte, 9)
	b0 := byte(lc.FLCO) & 0x3F
	if lc.ProtectFlag {
		b0 |= 0x80
	}
	out[0] = b0
	out[1] = lc.FeatureSetID
	out[2] = lc.ServiceOptions
	out[3] = byte(lc.DstID >> 16)
	out[4] = byte(lc.DstID >> 8)
	out[5] = byte(lc.DstID)
	out[6] = byte(lc.SrcID >> 16)
	out[7] = byte(lc.SrcID >> 8)
	out[8] = byte(lc.SrcID)
	return out
}

// UnpackFullLC is the inverse of Pack.
func UnpackFullLC(clear []byte) (FullLC, bool) {
	if len(clear) < 9 {
		return FullLC{}, false
	}
	return FullLC{
		ProtectFlag:    clear[0]&0x80 != 0,
		FLCO:           FLCO(clear[0] & 0x3F),
		FeatureSetID:   clear[1],
		ServiceOptions: clear[2],
		DstID:          uint32(clear[3])<<16 | uint32(clear[4])<<8 | uint32(clear[5]),
		SrcID:          uint32(clear[6])<<16 | uint32(clear[7])<<8 | uint32(clear[8]),
	}, true
}

// EncodeFullLC packs lc and protects it with the (24,12,13) Reed-Solomon
// code over GF(2^6), returning the 24-hex-symbol (18-byte) RS-protected
// form carried in the voice LC header and terminator bursts.
func EncodeFullLC(lc FullLC) []byte {
	return fec.RS241213.Encode(lc.Pack())
}

// DecodeFullLC reverses EncodeFullLC, correcting up to the code's
// correction capacity before unpacking the clear fields.
func DecodeFullLC(protected []byte) (FullLC, error) {
	clear, err := fec.RS241213.Decode(protected)
	if err != nil {
		return FullLC{}, err
	}
	lc, ok := UnpackFullLC(clear)
	if !ok {
		return FullLC{}, fec.ErrRSUncorrectable
	}
	return lc, nil
}

// PrivacyLC carries the same addressing fields as FullLC plus the
// algorithm/key identifiers needed to select a voice keystream (§4.7).
type PrivacyLC struct {
	FLCO       FLCO
	AlgorithmID byte
	KeyID       byte
	DstID       uint32
}

// Pack serialises a Privacy LC into its 9-byte clear form: byte 0 FLCO,
// byte 1 algorithm id, byte 2 key id, bytes 3-5 destination, bytes 6-8
// reserved (zero), mirroring FullLC's field widths so both share one RS
// code.
func (lc PrivacyLC) Pack() []byte {
	out := make([]byte, 9)
	out[0] = byte(lc.FLCO) & 0x3F
	out[1] = lc.AlgorithmID
	out[2] = lc.KeyID
	out[3] = byte(lc.DstID >> 16)
	out[4] = byte(lc.DstID >> 8)
	out[5] = byte(lc.DstID)
	return out
}

// UnpackPrivacyLC is the inverse of Pack.
func UnpackPrivacyLC(clear []byte) (PrivacyLC, bool) {
	if len(clear) < 6 {
		return PrivacyLC{}, false
	}
	return PrivacyLC{
		FLCO:        FLCO(clear[0] & 0x3F),
		AlgorithmID: clear[1],
		KeyID:       clear[2],
		DstID:       uint32(clear[3])<<16 | uint32(clear[4])<<8 | uint32(clear[5]),
	}, true
}

// EncodePrivacyLC protects lc with the same RS(24,12,13) code used for
// FullLC.
func EncodePrivacyLC(lc PrivacyLC) []byte {
	return fec.RS241213.Encode(lc.Pack())
}

// DecodePrivacyLC reverses EncodePrivacyLC.
func DecodePrivacyLC(protected []byte) (PrivacyLC, error) {
	clear, err := fec.RS241213.Decode(protected)
	if err != nil {
		return PrivacyLC{}, err
	}
	lc, ok := UnpackPrivacyLC(clear)
	if !ok {
		return PrivacyLC{}, fec.ErrRSUncorrectable
	}
	return lc, nil
}
