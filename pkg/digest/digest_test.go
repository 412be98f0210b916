package digest

import "testing"

func TestOfAndFromHex(t *testing.T) {
	d := Of([]byte("hello world"))
	hex := d.String()

	parsed, err := FromHex(hex)
	if err != nil {
		t.Fatalf("FromHex(%q): %v", hex, err)
	}
	if !parsed.Equal(d) {
		t.Errorf("FromHex round-trip = %v, want %v", parsed, d)
	}
}

func TestFromHexBadInput(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"too short", "1234"},
		{"too long", "123456789012345678901234567890123456789012"},
		{"non-hex", "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz"},
		{"exact length bogus", "12345678901234567890"}, // 20 raw bytes when decoded as text, not hex
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromHex(tt.in); err == nil {
				t.Errorf("FromHex(%q) succeeded, want ErrBadDigest", tt.in)
			}
		})
	}
}

func TestNewWrongLength(t *testing.T) {
	if _, err := New([]byte{1, 2, 3}); err == nil {
		t.Errorf("New with 3 bytes succeeded, want ErrBadDigest")
	}
}

func TestCompareOrdering(t *testing.T) {
	a := Digest{0x01}
	b := Digest{0x02}

	if a.Compare(b) >= 0 {
		t.Errorf("a.Compare(b) = %d, want negative", a.Compare(b))
	}
	if b.Compare(a) <= 0 {
		t.Errorf("b.Compare(a) = %d, want positive", b.Compare(a))
	}
	if a.Compare(a) != 0 {
		t.Errorf("a.Compare(a) = %d, want 0", a.Compare(a))
	}
}

func TestHasherMatchesOf(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")

	h := NewHasher()
	if _, err := h.Write(data[:10]); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := h.Write(data[10:]); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if got, want := h.Sum(), Of(data); got != want {
		t.Errorf("incremental hash = %v, want %v", got, want)
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	d := Of([]byte("round trip me"))

	raw, err := d.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}

	var out Digest
	if err := out.UnmarshalBinary(raw); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if out != d {
		t.Errorf("round trip = %v, want %v", out, d)
	}
}
