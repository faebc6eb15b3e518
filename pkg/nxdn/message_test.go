package nxdn

import "testing"

func TestPreambleRoundTrip(t *testing.T) {
	want := Preamble{
		Lich:      LICH{RFCT: 0x01, FCT: 0x02, Option: 0x03, Direction: 0x01},
		Type:      MessageTypeVoiceCallAssign,
		Structure: StructureHeaderAndFirst,
		SrcID:     0x1234,
		DstID:     0x0F0F,
		GroupCall: true,
	}
	buf := Encode(want)
	if len(buf) != 6 {
		t.Fatalf("expected 6 byte preamble, got %d", len(buf))
	}
	got, err := Decode(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	if _, err := Decode(make([]byte, 5)); err == nil {
		t.Fatalf("expected an error for a short buffer")
	}
}

func TestMessageTypeString(t *testing.T) {
	cases := map[MessageType]string{
		MessageTypeVoiceCall: "VCALL",
		MessageTypeIdle:      "IDLE",
		MessageType(0x3F):    "UNKNOWN(0x3f)",
	}
	for mt, want := range cases {
		if got := mt.String(); got != want {
			t.Fatalf("MessageType(%#x).String() = %q, want %q", byte(mt), got, want)
		}
	}
}

func TestIsVoice(t *testing.T) {
	if !MessageTypeVoiceCall.IsVoice() {
		t.Fatalf("expected VCALL to be voice traffic")
	}
	if MessageTypeIdle.IsVoice() {
		t.Fatalf("did not expect IDLE to be voice traffic")
	}
}
