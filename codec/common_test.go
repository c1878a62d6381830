package codec

import "testing"

func TestSignatureAlgorithmModSize(t *testing.T) {
	cases := []struct {
		alg  SignatureAlgorithm
		want int
	}{
		{SignatureAlgorithmRSA4096, 0x200},
		{SignatureAlgorithmRSA2048, 0x100},
		{SignatureAlgorithmECDSA, 0x3c},
		{SignatureAlgorithm(99), 0},
	}
	for _, c := range cases {
		if got := c.alg.ModSize(); got != c.want {
			t.Errorf("ModSize(%v) = %d, want %d", c.alg, got, c.want)
		}
	}
}

func TestSignatureTypeHashAlgorithm(t *testing.T) {
	if SignatureTypeRSA2048SHA1.HashAlgorithm() == SignatureTypeRSA2048SHA256.HashAlgorithm() {
		t.Error("SHA1 and SHA256 signature types resolved to the same hash algorithm")
	}
}

func TestWriterAlign(t *testing.T) {
	var w writer
	w.put([]byte{1, 2, 3})
	w.align(0x40)
	if w.buf.Len() != 0x40 {
		t.Errorf("len = %d, want 0x40", w.buf.Len())
	}

	w.align(0x40)
	if w.buf.Len() != 0x40 {
		t.Errorf("aligning an already-aligned buffer changed its length: %d", w.buf.Len())
	}
}

func TestCursorTakeTruncated(t *testing.T) {
	c := newCursor([]byte{1, 2, 3})
	if _, err := c.take(10, "field"); err == nil {
		t.Fatal("take() error = nil, want TruncatedError")
	}
}

func TestCursorAlign(t *testing.T) {
	c := newCursor(make([]byte, 5))
	if _, err := c.take(3, "x"); err != nil {
		t.Fatalf("take() error = %v", err)
	}
	if err := c.align(4, "pad"); err != nil {
		t.Fatalf("align() error = %v", err)
	}
	if c.pos != 4 {
		t.Errorf("pos = %d, want 4", c.pos)
	}
}
