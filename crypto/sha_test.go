package crypto

import (
	"crypto/sha1" //nolint:gosec // test fixture hash, matches the wire format under test
	"crypto/sha256"
	"testing"
)

func TestVerifySHA1(t *testing.T) {
	data := []byte("hello")
	sum := sha1.Sum(data) //nolint:gosec
	if err := VerifySHA1("field", data, sum[:]); err != nil {
		t.Fatalf("VerifySHA1() error = %v", err)
	}
	if err := VerifySHA1("field", data, make([]byte, 20)); err == nil {
		t.Fatal("VerifySHA1() error = nil, want ChecksumMismatchError")
	}
}

func TestVerifySHA256(t *testing.T) {
	data := []byte("world")
	sum := sha256.Sum256(data)
	if err := VerifySHA256("field", data, sum[:]); err != nil {
		t.Fatalf("VerifySHA256() error = %v", err)
	}
	if err := VerifySHA256("field", data, make([]byte, 32)); err == nil {
		t.Fatal("VerifySHA256() error = nil, want ChecksumMismatchError")
	}
}
