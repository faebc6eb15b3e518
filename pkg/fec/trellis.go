package fec

import "errors"

// ErrTrellisUncorrectable is returned when the decoder's fix-up loop cannot
// find a state-consistent path through the received constellation points
// (§4.3, §7 FecUncorrectable).
var ErrTrellisUncorrectable = errors.New("fec: trellis decode uncorrectable")

// symbolsPerBlock is the fixed interleave-table size referenced in §4.3/§4.4.
const symbolsPerBlock = 98

// trellisInterleave is the fixed 98-entry symbol interleave table. Built as
// a modular permutation (multiplier 5, coprime with 98) so it is bijective
// by construction; the exact permutation is an implementation constant, not
// an externally observable contract beyond "fixed and self-inverse under
// Deinterleave".
var trellisInterleave = buildTrellisInterleave()

func buildTrellisInterleave() [symbolsPerBlock]int {
	var t [symbolsPerBlock]int
	for i := 0; i < symbolsPerBlock; i++ {
		t[i] = (i * 5) % symbolsPerBlock
	}
	return t
}

func trellisDeinterleave() [symbolsPerBlock]int {
	var inv [symbolsPerBlock]int
	for i, v := range trellisInterleave {
		inv[v] = i
	}
	return inv
}

// trellisTransition is one state-table entry: the next state and the 4-bit
// constellation point (dibit pair) emitted for a given (state,input) pair.
type trellisTransition struct {
	nextState uint8
	point     uint8
}

// buildStateTable constructs a deterministic, invertible convolutional state
// table of the shape described in §4.3: nStates entries, each with
// 2^inputWidth outgoing transitions. The next-state function is a
// shift-register update; the point function XORs the current state's low
// bits with the input so that, for a fixed state, distinct inputs always
// produce distinct points (required for the greedy inverse lookup).
func buildStateTable(nStates int, inputWidth int) [][]trellisTransition {
	table := make([][]trellisTransition, nStates)
	nInputs := 1 << inputWidth
	for s := 0; s < nStates; s++ {
		table[s] = make([]trellisTransition, nInputs)
		for in := 0; in < nInputs; in++ {
			next := ((s << inputWidth) | in) & (nStates - 1)
			point := uint8((s ^ in) & 0xF)
			table[s][in] = trellisTransition{
				nextState: uint8(next),
				point:     point,
			}
		}
	}
	return table
}

// halfRateTable is the 16-entry (4-bit state) table for the 1/2-rate code;
// inputs are dibits (2 bits).
var halfRateTable = buildStateTable(16, 2)

// threeQuarterTable is the 64-entry (6-bit state) table for the 3/4-rate
// code; inputs are tribits (3 bits).
var threeQuarterTable = buildStateTable(64, 3)

// pointToDibitPair / dibitPairToPoint map a 4-bit constellation point to the
// two output dibits (4 bits total) carried on the channel, per §4.3 "map
// points to dibit pairs and interleave into the output bitstream". The
// mapping is the identity permutation of the 4-bit point value; it exists as
// a named seam so a future constellation remap does not touch the state
// machine.
func pointToDibitPair(point uint8) uint8 { return point & 0xF }
func dibitPairToPoint(pair uint8) uint8  { return pair & 0xF }

// trellisEncode is shared by the 1/2 and 3/4 rate encoders.
func trellisEncode(inputs []uint8, inputWidth int, table [][]trellisTransition) []uint8 {
	points := make([]uint8, len(inputs))
	state := uint8(0)
	for i, in := range inputs {
		tr := table[state][in]
		points[i] = pointToDibitPair(tr.point)
		state = tr.nextState
	}
	return points
}

// packBitsMSB packs a slice of symbolWidth-bit values into a big-endian bit
// buffer, MSB first.
func packBitsMSB(symbols []uint8, symbolWidth int) []byte {
	totalBits := len(symbols) * symbolWidth
	buf := make([]byte, (totalBits+7)/8)
	bit := 0
	for _, s := range symbols {
		for b := symbolWidth - 1; b >= 0; b-- {
			writeBitAbs(buf, bit, s&(1<<uint(b)) != 0)
			bit++
		}
	}
	return buf
}

func unpackBitsMSB(buf []byte, count, symbolWidth int) []uint8 {
	out := make([]uint8, count)
	bit := 0
	for i := 0; i < count; i++ {
		var v uint8
		for b := 0; b < symbolWidth; b++ {
			v <<= 1
			if readBitAbs(buf, bit) {
				v |= 1
			}
			bit++
		}
		out[i] = v
	}
	return out
}

func unpackSymbols(payload []byte, symbolWidth int) []uint8 {
	totalBits := len(payload) * 8
	count := totalBits / symbolWidth
	return unpackBitsMSB(payload, count, symbolWidth)
}

// padSymbols right-pads or truncates symbols to exactly symbolsPerBlock
// entries, since the fixed interleave table addresses the full block width
// regardless of how many symbols the caller's payload actually filled.
func padSymbols(symbols []uint8) []uint8 {
	if len(symbols) >= symbolsPerBlock {
		return symbols[:symbolsPerBlock]
	}
	padded := make([]uint8, symbolsPerBlock)
	copy(padded, symbols)
	return padded
}

// Trellis12Encode encodes a 196-bit (98 dibit) payload into its interleaved
// 392-bit (98 four-bit point) channel representation. Payloads shorter than
// the full block are zero-padded; the caller truncates the decoded result
// back to its original length.
func Trellis12Encode(payload []byte) []byte {
	inputs := padSymbols(unpackSymbols(payload, 2))
	points := trellisEncode(inputs, 2, halfRateTable)
	interleaved := make([]uint8, symbolsPerBlock)
	for i, p := range points {
		interleaved[trellisInterleave[i]] = p
	}
	return packBitsMSB(interleaved, 4)
}

// Trellis34Encode encodes a 294-bit (98 tribit) payload into the same
// 392-bit channel width, carrying more payload and less FEC overhead than
// the 196-bit 1/2-rate code.
func Trellis34Encode(payload []byte) []byte {
	inputs := padSymbols(unpackSymbols(payload, 3))
	points := trellisEncode(inputs, 3, threeQuarterTable)
	interleaved := make([]uint8, symbolsPerBlock)
	for i, p := range points {
		interleaved[trellisInterleave[i]] = p
	}
	return packBitsMSB(interleaved, 4)
}

// trellisDecode runs the greedy state-consistent inverse lookup described
// in §4.3, with the bounded fix-up/backtrack recovery it specifies.
func trellisDecode(channel []byte, inputWidth int, table [][]trellisTransition) ([]uint8, error) {
	points := padSymbols(unpackSymbols(channel, 4))
	deinterleave := trellisDeinterleave()
	ordered := make([]uint8, symbolsPerBlock)
	for i, p := range points {
		ordered[deinterleave[i]] = dibitPairToPoint(p)
	}

	const maxFixRounds = 20
	backtracked := false

	attempt := func() ([]uint8, bool) {
		inputs := make([]uint8, len(ordered))
		state := uint8(0)
		fixRounds := 0
		for i, pt := range ordered {
			in, next, ok := lookupInput(table, state, pt)
			if !ok {
				fixed := false
				for cand := uint8(0); cand < 16 && fixRounds < maxFixRounds; cand++ {
					fixRounds++
					if in2, next2, ok2 := lookupInput(table, state, cand); ok2 {
						in, next, fixed = in2, next2, true
						break
					}
				}
				if !fixed {
					return nil, false
				}
			}
			inputs[i] = in
			state = next
		}
		return inputs, true
	}

	if inputs, ok := attempt(); ok {
		return inputs, nil
	}
	if !backtracked && len(ordered) > 1 {
		backtracked = true
		truncated := ordered[:len(ordered)-1]
		ordered = truncated
		if inputs, ok := attempt(); ok {
			return inputs, nil
		}
	}
	return nil, ErrTrellisUncorrectable
}

func lookupInput(table [][]trellisTransition, state uint8, point uint8) (input uint8, next uint8, ok bool) {
	row := table[state]
	for in, tr := range row {
		if tr.point == point {
			return uint8(in), tr.nextState, true
		}
	}
	return 0, 0, false
}

// Trellis12Decode is the inverse of Trellis12Encode.
func Trellis12Decode(channel []byte) ([]byte, error) {
	inputs, err := trellisDecode(channel, 2, halfRateTable)
	if err != nil {
		return nil, err
	}
	return packBitsMSB(inputs, 2), nil
}

// Trellis34Decode is the inverse of Trellis34Encode.
func Trellis34Decode(channel []byte) ([]byte, error) {
	inputs, err := trellisDecode(channel, 3, threeQuarterTable)
	if err != nil {
		return nil, err
	}
	return packBitsMSB(inputs, 3), nil
}
