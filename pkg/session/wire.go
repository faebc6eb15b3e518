package session

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ASCII tags carried inside control-packet payloads, in addition to the
// function byte that already identifies the opcode class on the FNE
// extension header. Kept for wire compatibility with existing masters, per
// §6's per-opcode payload layouts.
const (
	tagRPTL   = "RPTL"
	tagRPTK   = "RPTK"
	tagRPTC   = "RPTC"
	tagRPTACK = "RPTACK"
	tagRPTPING = "RPTPING"
)

var errShortPayload = errors.New("session: payload too short")

func buildRPTL(peerID uint32) []byte {
	buf := make([]byte, 4+4)
	copy(buf, tagRPTL)
	binary.BigEndian.PutUint32(buf[4:8], peerID)
	return buf
}

func buildRPTK(peerID uint32, hash [32]byte) []byte {
	buf := make([]byte, 4+4+32)
	copy(buf, tagRPTK)
	binary.BigEndian.PutUint32(buf[4:8], peerID)
	copy(buf[8:40], hash[:])
	return buf
}

func buildRPTC(peerID uint32, configJSON []byte) []byte {
	buf := make([]byte, 4+4+len(configJSON))
	copy(buf, tagRPTC)
	binary.BigEndian.PutUint32(buf[4:8], peerID)
	copy(buf[8:], configJSON)
	return buf
}

func buildPing(peerID uint32) []byte {
	buf := make([]byte, 7+4)
	copy(buf, tagRPTPING)
	binary.BigEndian.PutUint32(buf[7:11], peerID)
	return buf
}

// parseAckField reads the generic 32-bit field the master's ACK payload
// carries at offset 6 (immediately after the 6-byte "RPTACK" tag): a salt
// while WaitingLogin, the echoed peer id afterwards.
func parseAckField(payload []byte) (uint32, error) {
	if len(payload) < 10 {
		return 0, fmt.Errorf("%w: ack payload %d bytes", errShortPayload, len(payload))
	}
	return binary.BigEndian.Uint32(payload[6:10]), nil
}

// parseNakReason reads the 16-bit NAK reason code at offset 10; ok is false
// unless the payload is at least 12 bytes long.
func parseNakReason(payload []byte) (uint16, bool) {
	if len(payload) < 12 {
		return 0, false
	}
	return binary.BigEndian.Uint16(payload[10:12]), true
}
