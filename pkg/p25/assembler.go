package p25

import (
	"errors"

	"github.com/dbehnke/fne-peer/pkg/fec"
)

// ErrAssemblerCRC32 is returned when the last block's CRC-32 trailer does
// not match the assembled user-data buffer.
var ErrAssemblerCRC32 = errors.New("p25: assembled PDU CRC-32 mismatch")

type assemblerState int

const (
	stateIdle assemblerState = iota
	stateDecoding
)

// Assembler runs the PDU state machine described in §4.9: Idle until a
// data header arrives, then Decoding until BlocksToFollow frames have been
// consumed, at which point it verifies the CRC-32 over the accumulated
// user-data buffer.
type Assembler struct {
	state           assemblerState
	header          DataHeader
	secondary       *SecondaryHeader
	framesExpected  int
	framesSeen      int
	userData        []byte
	extended        bool
	extSAP          byte
	extLLID         uint32
}

// NewAssembler returns an Assembler in the Idle state.
func NewAssembler() *Assembler {
	return &Assembler{state: stateIdle}
}

// Reset returns the assembler to Idle, discarding any in-progress PDU.
func (a *Assembler) Reset() {
	*a = Assembler{state: stateIdle}
}

// Header returns the primary data header decoded for the PDU currently
// being assembled (or most recently completed).
func (a *Assembler) Header() DataHeader { return a.header }

// ExtendedAddress returns the SAP/LLID pair extracted per §9 note 3, and
// whether extended addressing was present on this PDU.
func (a *Assembler) ExtendedAddress() (sap byte, llid uint32, ok bool) {
	return a.extSAP, a.extLLID, a.extended
}

// UserData returns the assembled, CRC-32-verified user-data buffer once
// FeedFrame has reported done==true.
func (a *Assembler) UserData() []byte { return a.userData }

// FeedFrame processes one frame's Trellis channel bytes. done reports
// whether this frame completed the PDU (UserData is then valid).
func (a *Assembler) FeedFrame(channel []byte) (done bool, err error) {
	switch a.state {
	case stateIdle:
		return a.feedHeader(channel)
	case stateDecoding:
		return a.feedBlock(channel)
	default:
		return false, errors.New("p25: assembler in unknown state")
	}
}

func (a *Assembler) feedHeader(channel []byte) (bool, error) {
	h, err := DecodeHeader(channel)
	if err != nil {
		return false, err
	}
	a.header = h
	a.secondary = nil
	a.framesExpected = int(h.BlocksToFollow)
	a.framesSeen = 0
	a.userData = nil
	a.extended = false

	if a.framesExpected == 0 {
		a.state = stateIdle
		return true, nil
	}
	a.state = stateDecoding
	return false, nil
}

func (a *Assembler) feedBlock(channel []byte) (bool, error) {
	isFirst := a.framesSeen == 0
	isLast := a.framesSeen == a.framesExpected-1

	secondaryHeaderFrame := isFirst &&
		a.header.Format == FormatUnconfirmed &&
		a.header.SAP == SAPExtAddr

	if secondaryHeaderFrame {
		sh, err := DecodeSecondaryHeader(channel)
		if err != nil {
			return false, err
		}
		a.secondary = &sh
		a.extended = true
		a.extSAP = sh.SAP
		a.extLLID = sh.LLID
		a.framesSeen++
		if isLast {
			return a.finish()
		}
		return false, nil
	}

	switch a.header.Format {
	case FormatConfirmed:
		block, err := DecodeConfirmedBlock(channel)
		if err != nil {
			return false, err
		}
		if isFirst && a.header.SAP == SAPExtAddr && block.SerialNumber == 0 {
			sap, llid := ExtendedAddress(block.Payload[:])
			a.extended = true
			a.extSAP = sap
			a.extLLID = llid
		}
		a.userData = append(a.userData, block.Payload[:]...)
		if isLast {
			if block.CRC32 != fec.CRC32(a.userData) {
				a.state = stateIdle
				return false, ErrAssemblerCRC32
			}
		}
	default: // Unconfirmed, Response, AMBT
		block, err := DecodeRawBlock(channel)
		if err != nil {
			return false, err
		}
		a.userData = append(a.userData, block.Payload[:]...)
		if isLast {
			if block.CRC32 != fec.CRC32(a.userData) {
				a.state = stateIdle
				return false, ErrAssemblerCRC32
			}
		}
	}

	a.framesSeen++
	if isLast {
		return a.finish()
	}
	return false, nil
}

func (a *Assembler) finish() (bool, error) {
	a.state = stateIdle
	return true, nil
}
