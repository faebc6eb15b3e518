package p25

import (
	"encoding/binary"
	"errors"
)

// KMMHeaderSize is the fixed 8-byte KMM frame header described in §4.10's
// key-response handling.
const KMMHeaderSize = 8

// MIKeyLength is the Message Indicator length carried by a ModifyKey frame
// whose DecryptInfoFormat signals one is present.
const MIKeyLength = 9

// MessageID values recognised by this module.
const (
	MessageIDModifyKeyCmd byte = 0x13
)

// DecryptInfoFormat bit 0 signals the optional 9-byte MI is present.
const decryptInfoHasMI = 0x01

// ErrKMMTooShort is returned when a buffer is too short for the header or
// the ModifyKey body it claims to carry.
var ErrKMMTooShort = errors.New("p25: kmm frame too short")

// KMMHeader is the 8-byte KMM frame header: message id, message length,
// response kind, complete flag, and the destination/source logical-link
// ids.
type KMMHeader struct {
	MessageID     byte
	MessageLength uint16
	ResponseKind  byte
	Complete      bool
	DstLLID       uint16
	SrcLLID       uint16
}

// EncodeKMMHeader packs h into its 8-byte wire form.
func EncodeKMMHeader(h KMMHeader) []byte {
	buf := make([]byte, KMMHeaderSize)
	buf[0] = h.MessageID
	binary.BigEndian.PutUint16(buf[1:3], h.MessageLength)
	b3 := h.ResponseKind & 0x7F
	if h.Complete {
		b3 |= 0x80
	}
	buf[3] = b3
	binary.BigEndian.PutUint16(buf[4:6], h.DstLLID)
	binary.BigEndian.PutUint16(buf[6:8], h.SrcLLID)
	return buf
}

// DecodeKMMHeader is the inverse of EncodeKMMHeader.
func DecodeKMMHeader(buf []byte) (KMMHeader, error) {
	if len(buf) < KMMHeaderSize {
		return KMMHeader{}, ErrKMMTooShort
	}
	return KMMHeader{
		MessageID:     buf[0],
		MessageLength: binary.BigEndian.Uint16(buf[1:3]),
		ResponseKind:  buf[3] & 0x7F,
		Complete:      buf[3]&0x80 != 0,
		DstLLID:       binary.BigEndian.Uint16(buf[4:6]),
		SrcLLID:       binary.BigEndian.Uint16(buf[6:8]),
	}, nil
}

// KeyMaterialSize is the fixed width of a KeyItem's key-material buffer,
// per §3: "The material buffer is always 32 bytes wide; only the first
// KeyLength bytes are valid." A KeyItem therefore always occupies
// 5+KeyMaterialSize bytes on the wire, regardless of the parent KeysetItem's
// KeyLength — so a KeysetItem with more than one KeyItem stays in sync even
// when KeyLength < KeyMaterialSize.
const KeyMaterialSize = 32

// keyItemSize is the fixed wire width of one KeyItem: 1 format byte, 2 SLN
// bytes, 2 key-id bytes, and the fixed 32-byte material buffer.
const keyItemSize = 5 + KeyMaterialSize

// KeyItem is one key entry within a KeysetItem: its format, storage
// location number, key id, and key material. Key is always the full
// 32-byte buffer; only the first KeyLength bytes of the parent KeysetItem
// are meaningful (§3).
type KeyItem struct {
	KeyFormat byte
	SLN       uint16
	KeyID     uint16
	Key       [KeyMaterialSize]byte
}

func (k KeyItem) encode() []byte {
	buf := make([]byte, keyItemSize)
	buf[0] = k.KeyFormat
	binary.BigEndian.PutUint16(buf[1:3], k.SLN)
	binary.BigEndian.PutUint16(buf[3:5], k.KeyID)
	copy(buf[5:], k.Key[:])
	return buf
}

func decodeKeyItem(buf []byte) (KeyItem, int, error) {
	if len(buf) < keyItemSize {
		return KeyItem{}, 0, ErrKMMTooShort
	}
	var item KeyItem
	item.KeyFormat = buf[0]
	item.SLN = binary.BigEndian.Uint16(buf[1:3])
	item.KeyID = binary.BigEndian.Uint16(buf[3:5])
	copy(item.Key[:], buf[5:keyItemSize])
	return item, keyItemSize, nil
}

// KeysetItem is the keyset carried by a ModifyKey command: the keyset's
// own id, algorithm, per-key length, and the KeyItems within it.
type KeysetItem struct {
	KeysetID    byte
	AlgorithmID byte
	KeyLength   byte
	Keys        []KeyItem
}

func (k KeysetItem) encode() []byte {
	buf := make([]byte, 0, 4+len(k.Keys)*keyItemSize)
	buf = append(buf, k.KeysetID, k.AlgorithmID, k.KeyLength, byte(len(k.Keys)))
	for _, item := range k.Keys {
		buf = append(buf, item.encode()...)
	}
	return buf
}

func decodeKeysetItem(buf []byte) (KeysetItem, int, error) {
	if len(buf) < 4 {
		return KeysetItem{}, 0, ErrKMMTooShort
	}
	ks := KeysetItem{
		KeysetID:    buf[0],
		AlgorithmID: buf[1],
		KeyLength:   buf[2],
	}
	keyCount := int(buf[3])
	offset := 4
	for i := 0; i < keyCount; i++ {
		item, n, err := decodeKeyItem(buf[offset:])
		if err != nil {
			return KeysetItem{}, 0, err
		}
		ks.Keys = append(ks.Keys, item)
		offset += n
	}
	return ks, offset, nil
}

// ModifyKey is the MODIFY_KEY_CMD (0x13) KMM body: decrypt-info format,
// algorithm id, key id, an optional Message Indicator, and the keyset it
// carries.
type ModifyKey struct {
	DecryptInfoFormat byte
	AlgorithmID       byte
	KeyID             uint16
	MI                []byte // present iff DecryptInfoFormat&decryptInfoHasMI != 0
	Keyset            KeysetItem
}

// EncodeModifyKey packs m into its wire form, following the KMM header.
func EncodeModifyKey(m ModifyKey) []byte {
	buf := []byte{m.DecryptInfoFormat, m.AlgorithmID}
	var keyID [2]byte
	binary.BigEndian.PutUint16(keyID[:], m.KeyID)
	buf = append(buf, keyID[:]...)
	if m.DecryptInfoFormat&decryptInfoHasMI != 0 {
		mi := make([]byte, MIKeyLength)
		copy(mi, m.MI)
		buf = append(buf, mi...)
	}
	buf = append(buf, m.Keyset.encode()...)
	return buf
}

// DecodeModifyKey is the inverse of EncodeModifyKey.
func DecodeModifyKey(buf []byte) (ModifyKey, error) {
	if len(buf) < 4 {
		return ModifyKey{}, ErrKMMTooShort
	}
	m := ModifyKey{
		DecryptInfoFormat: buf[0],
		AlgorithmID:       buf[1],
		KeyID:             binary.BigEndian.Uint16(buf[2:4]),
	}
	offset := 4
	if m.DecryptInfoFormat&decryptInfoHasMI != 0 {
		if len(buf) < offset+MIKeyLength {
			return ModifyKey{}, ErrKMMTooShort
		}
		m.MI = append([]byte{}, buf[offset:offset+MIKeyLength]...)
		offset += MIKeyLength
	}
	ks, _, err := decodeKeysetItem(buf[offset:])
	if err != nil {
		return ModifyKey{}, err
	}
	m.Keyset = ks
	return m, nil
}
