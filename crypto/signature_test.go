package crypto

import (
	stdcrypto "crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // exercising the module's own SHA-1 signature path
	"testing"
)

func genRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("rsa.GenerateKey() error = %v", err)
	}
	return key
}

func TestVerifyRSASignatureRoundTrip(t *testing.T) {
	key := genRSAKey(t)
	data := []byte("signed payload")
	sum := sha1.Sum(data) //nolint:gosec
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, stdcrypto.SHA1, sum[:])
	if err != nil {
		t.Fatalf("SignPKCS1v15() error = %v", err)
	}

	pub := RSAPublicKey{Modulus: key.PublicKey.N.Bytes(), Exponent: key.PublicKey.E}
	if !VerifyRSASignature(data, HashSHA1, pub, sig) {
		t.Error("VerifyRSASignature() = false, want true for a genuine signature")
	}
	if VerifyRSASignature([]byte("tampered payload"), HashSHA1, pub, sig) {
		t.Error("VerifyRSASignature() = true for tampered data, want false")
	}
}

func TestVerifyChainTwoLevel(t *testing.T) {
	rootKey := genRSAKey(t)
	cpKey := genRSAKey(t)

	// CP's own certificate is signed by Root.
	cpRaw := []byte("CP certificate body")
	cpRawSum := sha1.Sum(cpRaw) //nolint:gosec
	cpSig, err := rsa.SignPKCS1v15(rand.Reader, rootKey, stdcrypto.SHA1, cpRawSum[:])
	if err != nil {
		t.Fatalf("SignPKCS1v15() error = %v", err)
	}

	// The leaf document (e.g. a ticket) is signed by CP.
	leafData := []byte("ticket body")
	leafSum := sha1.Sum(leafData) //nolint:gosec
	leafSig, err := rsa.SignPKCS1v15(rand.Reader, cpKey, stdcrypto.SHA1, leafSum[:])
	if err != nil {
		t.Fatalf("SignPKCS1v15() error = %v", err)
	}

	certs := map[string]ChainCert{
		"CP0000000b": {
			Name:      "CP0000000b",
			Issuer:    "Root",
			Key:       RSAPublicKey{Modulus: cpKey.PublicKey.N.Bytes(), Exponent: cpKey.PublicKey.E},
			RawCert:   cpRaw,
			SigHash:   HashSHA1,
			Signature: cpSig,
		},
	}

	rootPub := RSAPublicKey{Modulus: rootKey.PublicKey.N.Bytes(), Exponent: rootKey.PublicKey.E}

	if err := VerifyChain(leafData, "Root-CP0000000b", HashSHA1, leafSig, certs, rootPub); err != nil {
		t.Fatalf("VerifyChain() error = %v", err)
	}
}

func TestVerifyChainMissingCert(t *testing.T) {
	rootKey := genRSAKey(t)
	rootPub := RSAPublicKey{Modulus: rootKey.PublicKey.N.Bytes(), Exponent: rootKey.PublicKey.E}

	err := VerifyChain([]byte("x"), "Root-CA00000003-CP0000000b", HashSHA1, []byte("sig"), map[string]ChainCert{}, rootPub)
	if err == nil {
		t.Fatal("VerifyChain() error = nil, want MissingCertError")
	}
	if _, ok := err.(*MissingCertError); !ok {
		t.Errorf("error = %v (%T), want *MissingCertError", err, err)
	}
}

func TestVerifyChainBadTopIssuer(t *testing.T) {
	err := VerifyChain([]byte("x"), "NotRoot-CA00000003", HashSHA1, []byte("sig"), nil, RSAPublicKey{})
	if err == nil {
		t.Fatal("VerifyChain() error = nil, want top-issuer error")
	}
}
