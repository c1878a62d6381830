package crypto

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha1"  //nolint:gosec // wire format mandates SHA-1 for older signature types
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"
)

// HashAlgorithm identifies the digest a SignatureType uses, derived from
// the ticket/TMD/certificate signature type field.
type HashAlgorithm int

// Supported hash algorithms. ECDSA signature types are rejected rather
// than silently mishandled; the NUS catalog this module talks to never
// issues them.
const (
	HashSHA1 HashAlgorithm = iota
	HashSHA256
)

// RSAPublicKey is the minimal public-key shape used throughout the
// ticket/TMD/certificate chain: a raw modulus and exponent, exactly as
// they appear on the wire.
type RSAPublicKey struct {
	Modulus  []byte
	Exponent int
}

func (k RSAPublicKey) toStdlib() *rsa.PublicKey {
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(k.Modulus),
		E: k.Exponent,
	}
}

// VerifyRSASignature reports whether sig is a valid PKCS#1 v1.5
// signature over data's hash under key.
func VerifyRSASignature(data []byte, hashAlg HashAlgorithm, key RSAPublicKey, sig []byte) bool {
	var digest []byte
	var hash crypto.Hash
	switch hashAlg {
	case HashSHA1:
		sum := sha1.Sum(data) //nolint:gosec // wire format mandates SHA-1 for older signature types
		digest, hash = sum[:], crypto.SHA1
	case HashSHA256:
		sum := sha256.Sum256(data)
		digest, hash = sum[:], crypto.SHA256
	default:
		return false
	}
	return rsa.VerifyPKCS1v15(key.toStdlib(), hash, digest, sig) == nil
}

// ChainCert is the minimal view of a certificate the chain verifier
// needs: its own signature over its raw bytes, the issuer string of
// that signature, and the public key it vouches for.
type ChainCert struct {
	Name      string
	Issuer    string
	Key       RSAPublicKey
	RawCert   []byte
	SigHash   HashAlgorithm
	Signature []byte
}

// MissingCertError reports that the chain named a certificate not
// present in the supplied set.
type MissingCertError struct {
	Name string
}

func (e *MissingCertError) Error() string {
	return fmt.Sprintf("nus/crypto: missing certificate %q", e.Name)
}

// SignatureInvalidError reports that a link in the chain failed
// signature verification.
type SignatureInvalidError struct {
	Issuer string
}

func (e *SignatureInvalidError) Error() string {
	return fmt.Sprintf("nus/crypto: invalid signature by %q", e.Issuer)
}

// IssuerMismatchError reports that an intermediate certificate's own
// issuer string doesn't match the chain being walked.
type IssuerMismatchError struct {
	Name string
}

func (e *IssuerMismatchError) Error() string {
	return fmt.Sprintf("nus/crypto: issuer of certificate %q does not match the chain being verified", e.Name)
}

// VerifyChain walks a signature chain from data/sigHash/sig, whose
// issuer string looks like "Root-CA00000003-CP0000000b", out to the
// pinned root key. Each '-'-separated path component beyond "Root" must
// name an entry in certs. This mirrors the original's verify_chain: the
// topmost issuer must start with "Root", every named certificate must
// resolve, and each step's signature must verify under the next
// certificate's key (or rootKey at the end).
func VerifyChain(data []byte, issuer string, sigHash HashAlgorithm, sig []byte, certs map[string]ChainCert, rootKey RSAPublicKey) error {
	parts := strings.Split(issuer, "-")
	if len(parts) == 0 || parts[0] != "Root" {
		return fmt.Errorf("nus/crypto: topmost issuer of chain must be %q, got %q", "Root", issuer)
	}
	for _, name := range parts[1:] {
		if _, ok := certs[name]; !ok {
			return &MissingCertError{Name: name}
		}
	}

	curData, curHash, curSig := data, sigHash, sig

	for {
		last := parts[len(parts)-1]

		var key RSAPublicKey
		if last == "Root" {
			key = rootKey
		} else {
			cert := certs[last]
			if strings.Join(parts[:len(parts)-1], "-") != cert.Issuer {
				return &IssuerMismatchError{Name: last}
			}
			key = cert.Key
		}

		if !VerifyRSASignature(curData, curHash, key, curSig) {
			return &SignatureInvalidError{Issuer: last}
		}

		if last == "Root" {
			return nil
		}

		cert := certs[last]
		parts = parts[:len(parts)-1]
		curData = cert.RawCert
		curHash = cert.SigHash
		curSig = cert.Signature
	}
}
