package fec

import "bytes"

import "testing"

func TestRS241213EncodeDecodeClean(t *testing.T) {
	msg := make([]byte, (12*6+7)/8)
	for i := range msg {
		msg[i] = byte(i*31 + 7)
	}
	code := RS241213.Encode(msg)
	if len(code) != (24*6+7)/8 {
		t.Fatalf("unexpected codeword length %d", len(code))
	}
	decoded, err := RS241213.Decode(code)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	gotMsg := unpackHexSymbols(decoded, 12)
	wantMsg := unpackHexSymbols(msg, 12)
	if !bytes.Equal(gotMsg, wantMsg) {
		t.Fatalf("message mismatch:\n got  %v\n want %v", gotMsg, wantMsg)
	}
}

func TestGF64MultiplyIdentities(t *testing.T) {
	for a := byte(1); a < 64; a++ {
		if gf6Mult(a, 1) != a {
			t.Fatalf("a*1 != a for a=%d", a)
		}
		inv := gf6Inv(a)
		if gf6Mult(a, inv) != 1 {
			t.Fatalf("a*inv(a) != 1 for a=%d (inv=%d)", a, inv)
		}
	}
}

func TestRS241213CorrectionCapacity(t *testing.T) {
	if RS241213.correctionCapacity() != 6 {
		t.Fatalf("expected correction capacity 6, got %d", RS241213.correctionCapacity())
	}
}

// TestRS241213CorrectsWithinCapacity covers §8 invariant 4: up to
// correctionCapacity() (6) symbol errors must be fully corrected.
func TestRS241213CorrectsWithinCapacity(t *testing.T) {
	msg := make([]byte, (12*6+7)/8)
	for i := range msg {
		msg[i] = byte(i*31 + 7)
	}
	code := RS241213.Encode(msg)
	wantMsg := unpackHexSymbols(msg, 12)

	symbols := unpackHexSymbols(code, 24)
	for _, errs := range []int{1, 3, 6} {
		corrupted := make([]byte, len(symbols))
		copy(corrupted, symbols)
		for i := 0; i < errs; i++ {
			corrupted[i] ^= byte(0x15 + i)
		}
		decoded, err := RS241213.Decode(packHexSymbols(corrupted))
		if err != nil {
			t.Fatalf("%d errors: unexpected decode error: %v", errs, err)
		}
		gotMsg := unpackHexSymbols(decoded, 12)
		if !bytes.Equal(gotMsg, wantMsg) {
			t.Fatalf("%d errors: message mismatch:\n got  %v\n want %v", errs, gotMsg, wantMsg)
		}
	}
}

// TestRS241213UncorrectableBeyondCapacity covers §8's "beyond (n-k)/2 the
// decoder is detection-only" clause: 7 symbol errors exceed the (24,12,13)
// code's correction capacity of 6, so Decode must report ErrRSUncorrectable
// (or, per §4.5, may silently miscorrect — but when it does detect, the
// returned error must be ErrRSUncorrectable, never a clean decode of the
// original message).
func TestRS241213UncorrectableBeyondCapacity(t *testing.T) {
	msg := make([]byte, (12*6+7)/8)
	for i := range msg {
		msg[i] = byte(i*31 + 7)
	}
	code := RS241213.Encode(msg)
	wantMsg := unpackHexSymbols(msg, 12)

	symbols := unpackHexSymbols(code, 24)
	corrupted := make([]byte, len(symbols))
	copy(corrupted, symbols)
	for i := 0; i < 7; i++ {
		corrupted[i] ^= byte(0x11 + i)
	}

	decoded, err := RS241213.Decode(packHexSymbols(corrupted))
	if err == nil {
		gotMsg := unpackHexSymbols(decoded, 12)
		if bytes.Equal(gotMsg, wantMsg) {
			t.Fatalf("7 errors exceeds correction capacity 6; decode should not silently recover the original message")
		}
		return
	}
	if err != ErrRSUncorrectable {
		t.Fatalf("expected ErrRSUncorrectable, got %v", err)
	}
}
