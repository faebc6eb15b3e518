package fec

import "errors"

// ErrRSUncorrectable is returned when the number of symbol errors exceeds
// the code's correction capacity (n-k)/2; per §4.5 the decoder is
// detection-only beyond that point and may silently return a wrong decode,
// so callers that need a hard guarantee should treat this error as
// authoritative and any non-error return as "best effort".
var ErrRSUncorrectable = errors.New("fec: reed-solomon uncorrectable")

// gf64 is the GF(2^6) field used by all three RS codes, built from the
// primitive polynomial x^6+x+1 (0x43).
type gf64 struct {
	expTable [64]byte // alpha^0 .. alpha^62, plus a guard slot
	logTable [64]int  // logTable[0] is unused (log of 0 undefined)
}

const gf64Prime = 0x43 // x^6 + x + 1
const gf64Order = 63   // nonzero elements in GF(2^6)

var gf = buildGF64()

func buildGF64() *gf64 {
	f := &gf64{}
	reg := 1
	for i := 0; i < gf64Order; i++ {
		f.expTable[i] = byte(reg)
		f.logTable[reg] = i
		reg <<= 1
		if reg&0x40 != 0 {
			reg ^= gf64Prime
		}
		reg &= 0x3F
	}
	return f
}

func (f *gf64) exp(power int) byte {
	power %= gf64Order
	if power < 0 {
		power += gf64Order
	}
	return f.expTable[power]
}

func (f *gf64) log(v byte) int {
	return f.logTable[v&0x3F]
}

// gf6Mult multiplies two GF(2^6) symbols.
func gf6Mult(a, b byte) byte {
	a &= 0x3F
	b &= 0x3F
	if a == 0 || b == 0 {
		return 0
	}
	return gf.exp(gf.log(a) + gf.log(b))
}

func gf6Div(a, b byte) byte {
	if a == 0 {
		return 0
	}
	return gf.exp(gf.log(a) - gf.log(b))
}

func gf6Inv(a byte) byte {
	return gf.exp(-gf.log(a))
}

// poly is a GF(2^6) polynomial, index i holding the coefficient of x^i
// (lowest degree first).
type poly []byte

func polyMul(a, b poly) poly {
	if len(a) == 0 || len(b) == 0 {
		return poly{}
	}
	out := make(poly, len(a)+len(b)-1)
	for i, ai := range a {
		if ai == 0 {
			continue
		}
		for j, bj := range b {
			out[i+j] ^= gf6Mult(ai, bj)
		}
	}
	return out
}

// polyMod reduces dividend modulo divisor (both lowest-degree-first),
// returning the remainder with length len(divisor)-1.
func polyMod(dividend, divisor poly) poly {
	rem := append(poly{}, dividend...)
	for len(rem) >= len(divisor) && len(divisor) > 0 {
		lead := rem[len(rem)-1]
		if lead != 0 {
			shift := len(rem) - len(divisor)
			for i, d := range divisor {
				rem[i+shift] ^= gf6Mult(d, lead)
			}
		}
		rem = rem[:len(rem)-1]
	}
	for len(rem) < len(divisor)-1 {
		rem = append(rem, 0)
	}
	return rem
}

// RSCode describes one of the three (n,k,d) GF(2^6) codes this module
// supports: a systematic code whose generator polynomial has roots at
// alpha^1..alpha^(n-k), matching the Berlekamp-Massey decode flow of §4.5.
type RSCode struct {
	N, K      int
	generator poly
}

func buildGenerator(n, k int) poly {
	nParity := n - k
	g := poly{1}
	for i := 1; i <= nParity; i++ {
		root := gf.exp(i)
		g = polyMul(g, poly{root, 1}) // (x + alpha^i), char-2 so "-root"=="+root"
	}
	return g
}

// RS241213 is the (24,12,13) code.
var RS241213 = &RSCode{N: 24, K: 12, generator: buildGenerator(24, 12)}

// RS24169 is the (24,16,9) code.
var RS24169 = &RSCode{N: 24, K: 16, generator: buildGenerator(24, 16)}

// RS362017 is the (36,20,17) code.
var RS362017 = &RSCode{N: 36, K: 20, generator: buildGenerator(36, 20)}

func (c *RSCode) nParity() int { return c.N - c.K }

// Encode packs message (K 6-bit symbols via HEX2BIN over the byte buffer,
// MSB-first symbol order) and returns the N-symbol systematic codeword,
// packed the same way: the first K symbols are the message unchanged, the
// last N-K are the parity.
func (c *RSCode) Encode(message []byte) []byte {
	symbols := unpackHexSymbols(message, c.K)

	// Message as a poly, lowest degree first: m[i] holds symbols[K-1-i].
	m := make(poly, c.K)
	for i := 0; i < c.K; i++ {
		m[i] = symbols[c.K-1-i]
	}

	shifted := make(poly, c.K+c.nParity())
	copy(shifted[c.nParity():], m)

	parity := polyMod(shifted, c.generator)

	codeword := make([]byte, c.N)
	copy(codeword, symbols)
	for i := 0; i < c.nParity(); i++ {
		codeword[c.N-1-i] = parity[i]
	}
	return packHexSymbols(codeword)
}

func unpackHexSymbols(buf []byte, count int) []byte {
	out := make([]byte, count)
	bitOffset := 0
	tmp := make([]byte, (count*6+7)/8)
	copy(tmp, buf)
	for i := 0; i < count; i++ {
		out[i] = bin2Hex(tmp, bitOffset)
		bitOffset += 6
	}
	return out
}

func packHexSymbols(symbols []byte) []byte {
	out := make([]byte, (len(symbols)*6+7)/8)
	bitOffset := 0
	for _, s := range symbols {
		hex2Bin(out, bitOffset, s)
		bitOffset += 6
	}
	return out
}

func bin2Hex(buf []byte, bitOffset int) byte {
	var v byte
	for i := 0; i < 6; i++ {
		v <<= 1
		if readBitAbs(buf, bitOffset+i) {
			v |= 1
		}
	}
	return v
}

func hex2Bin(buf []byte, bitOffset int, symbol byte) {
	for i := 0; i < 6; i++ {
		writeBitAbs(buf, bitOffset+i, symbol&(1<<uint(5-i)) != 0)
	}
}

// correctionCapacity returns floor((n-k)/2), the maximum number of symbol
// errors this code can correct.
func (c *RSCode) correctionCapacity() int {
	return c.nParity() / 2
}

// Decode runs the Berlekamp-Massey / Chien-search / Forney flow of §4.5
// over a received N-symbol codeword (packed via BIN2HEX), returning the
// corrected K-symbol message packed the same way.
//
// This is detection-only beyond correctionCapacity(): if more than that
// many symbols are in error, the syndrome computation cannot distinguish
// the true error pattern and this function may return a plausible-looking
// but wrong decode, per §4.5 and §7 FecUncorrectable.
func (c *RSCode) Decode(received []byte) ([]byte, error) {
	symbols := unpackHexSymbols(received, c.N)

	// Received codeword as a poly, lowest degree first: r[i] = symbols[N-1-i].
	r := make(poly, c.N)
	for i := 0; i < c.N; i++ {
		r[i] = symbols[c.N-1-i]
	}

	nParity := c.nParity()
	syndromes := make([]byte, nParity)
	allZero := true
	for i := 1; i <= nParity; i++ {
		syndromes[i-1] = evalPoly(r, gf.exp(i))
		if syndromes[i-1] != 0 {
			allZero = false
		}
	}

	if allZero {
		return packHexSymbols(symbols[:c.K]), nil
	}

	lambda, errCount, ok := berlekampMassey(syndromes, c.correctionCapacity())
	if !ok {
		return packHexSymbols(symbols[:c.K]), ErrRSUncorrectable
	}

	// Chien search: an error at polynomial degree p (codeword symbol N-1-p,
	// counted from the high end) corresponds to a root of lambda at alpha^-p.
	type errLoc struct {
		pos   int
		xInv  byte
	}
	var locs []errLoc
	for p := 0; p < c.N; p++ {
		xInv := gf6Inv(gf.exp(p))
		if evalPoly(lambda, xInv) == 0 {
			locs = append(locs, errLoc{pos: p, xInv: xInv})
		}
	}
	if len(locs) != errCount {
		return packHexSymbols(symbols[:c.K]), ErrRSUncorrectable
	}

	omega := computeOmega(syndromes, lambda)
	lambdaDeriv := formalDerivative(lambda)

	corrected := make(poly, c.N)
	copy(corrected, r)
	for _, loc := range locs {
		num := evalPoly(omega, loc.xInv)
		den := evalPoly(lambdaDeriv, loc.xInv)
		if den == 0 {
			return packHexSymbols(symbols[:c.K]), ErrRSUncorrectable
		}
		magnitude := gf6Div(num, den)
		corrected[loc.pos] ^= magnitude
	}

	outSymbols := make([]byte, c.N)
	for i := 0; i < c.N; i++ {
		outSymbols[c.N-1-i] = corrected[i]
	}
	return packHexSymbols(outSymbols[:c.K]), nil
}

// berlekampMassey computes the error-locator polynomial Lambda(x) from the
// syndrome sequence, returning its coefficients (low-order first), the
// number of errors it implies, and whether that count is within cap.
func berlekampMassey(syndromes []byte, cap int) (lambda []byte, errCount int, ok bool) {
	n := len(syndromes)
	c := make([]byte, n+1)
	b := make([]byte, n+1)
	c[0] = 1
	b[0] = 1
	l := 0
	m := 1
	bCoeff := byte(1)

	for i := 0; i < n; i++ {
		delta := syndromes[i]
		for j := 1; j <= l; j++ {
			delta ^= gf6Mult(c[j], syndromes[i-j])
		}
		if delta == 0 {
			m++
			continue
		}
		t := make([]byte, len(c))
		copy(t, c)

		coeff := gf6Div(delta, bCoeff)
		for j := 0; j < len(b); j++ {
			idx := j + m
			if idx < len(c) {
				c[idx] ^= gf6Mult(coeff, b[j])
			}
		}

		if 2*l <= i {
			l = i + 1 - l
			b = t
			bCoeff = delta
			m = 1
		} else {
			m++
		}
	}
	if l > cap {
		return nil, 0, false
	}
	return c[:l+1], l, true
}

func evalPoly(p poly, x byte) byte {
	var acc byte
	xp := byte(1)
	for _, coeff := range p {
		acc ^= gf6Mult(coeff, xp)
		xp = gf6Mult(xp, x)
	}
	return acc
}

func computeOmega(syndromes []byte, lambda []byte) []byte {
	omega := make([]byte, len(syndromes))
	for i := range syndromes {
		var acc byte
		for j := 0; j <= i && j < len(lambda); j++ {
			acc ^= gf6Mult(lambda[j], syndromes[i-j])
		}
		omega[i] = acc
	}
	return omega
}

func formalDerivative(p poly) []byte {
	if len(p) <= 1 {
		return []byte{0}
	}
	out := make([]byte, len(p)-1)
	for i := 1; i < len(p); i++ {
		if i%2 == 1 {
			out[i-1] = p[i]
		}
	}
	return out
}
