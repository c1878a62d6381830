package codec

import (
	"bytes"
	"encoding/binary"

	"github.com/bodgit/nus/crypto"
)

// SignatureAlgorithm identifies the public-key family of a signature or
// certificate, per https://www.3dbrew.org/wiki/Certificates#Public_Key.
type SignatureAlgorithm uint32

// Known signature algorithms.
const (
	SignatureAlgorithmRSA4096 SignatureAlgorithm = 0
	SignatureAlgorithmRSA2048 SignatureAlgorithm = 1
	SignatureAlgorithmECDSA   SignatureAlgorithm = 2
)

// ModSize is the byte length of the algorithm's key/signature material.
func (a SignatureAlgorithm) ModSize() int {
	switch a {
	case SignatureAlgorithmRSA4096:
		return 0x200
	case SignatureAlgorithmRSA2048:
		return 0x100
	case SignatureAlgorithmECDSA:
		return 0x3c
	default:
		return 0
	}
}

// SignatureType identifies both the public-key family and hash algorithm
// of a signature, per https://www.3dbrew.org/wiki/Certificates#Signature.
type SignatureType uint32

// Known signature types.
const (
	SignatureTypeRSA4096SHA1   SignatureType = 0x010000
	SignatureTypeRSA2048SHA1   SignatureType = 0x010001
	SignatureTypeECDSASHA1     SignatureType = 0x010002
	SignatureTypeRSA4096SHA256 SignatureType = 0x010003
	SignatureTypeRSA2048SHA256 SignatureType = 0x010004
	SignatureTypeECDSASHA256   SignatureType = 0x010005
)

// Algorithm returns the public-key family this signature type uses.
func (t SignatureType) Algorithm() SignatureAlgorithm {
	switch t {
	case SignatureTypeRSA4096SHA1, SignatureTypeRSA4096SHA256:
		return SignatureAlgorithmRSA4096
	case SignatureTypeRSA2048SHA1, SignatureTypeRSA2048SHA256:
		return SignatureAlgorithmRSA2048
	case SignatureTypeECDSASHA1, SignatureTypeECDSASHA256:
		return SignatureAlgorithmECDSA
	default:
		return 0
	}
}

// HashAlgorithm returns the hash this signature type uses, translated to
// the crypto package's enum.
func (t SignatureType) HashAlgorithm() crypto.HashAlgorithm {
	switch t {
	case SignatureTypeRSA4096SHA256, SignatureTypeRSA2048SHA256, SignatureTypeECDSASHA256:
		return crypto.HashSHA256
	default:
		return crypto.HashSHA1
	}
}

// Signature is a 0x40-aligned signature block: a type tag followed by
// type-dependent signature data, padded to the next 0x40 boundary.
type Signature struct {
	Type SignatureType
	Data []byte
}

// writer is the append-only counterpart of cursor, used by every Build
// method to reproduce a structure's exact wire bytes field-by-field.
type writer struct {
	buf bytes.Buffer
}

func (w *writer) put(b []byte) { w.buf.Write(b) }

func (w *writer) u16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) u32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) u64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// paddedString writes s followed by zero bytes up to n total bytes.
func (w *writer) paddedString(s string, n int) {
	b := make([]byte, n)
	copy(b, s)
	w.buf.Write(b)
}

// zero writes n zero bytes, for reserved/unknown fields.
func (w *writer) zero(n int) {
	w.buf.Write(make([]byte, n))
}

// align pads with zero bytes until the buffer length is a multiple of n.
func (w *writer) align(n int) {
	if pad := (n - w.buf.Len()%n) % n; pad > 0 {
		w.zero(pad)
	}
}

func writeSignature(w *writer, sig Signature) {
	w.u32(uint32(sig.Type))
	w.put(sig.Data)
	w.align(0x40)
}

func writeCertificate(w *writer, cert Certificate) {
	writeSignature(w, cert.Signature)
	w.put(cert.RawCert)
	w.align(0x40)
}

// cursor is a forward-only reader over a byte slice that tracks its
// absolute offset, so callers can slice out raw byte ranges (needed to
// re-verify a certificate's own signature when it appears further up a
// chain) without re-parsing.
type cursor struct {
	data []byte
	pos  int
}

func newCursor(data []byte) *cursor {
	return &cursor{data: data}
}

func (c *cursor) remaining() int { return len(c.data) - c.pos }

func (c *cursor) take(n int, field string) ([]byte, error) {
	if c.remaining() < n {
		return nil, &TruncatedError{Field: field}
	}
	out := c.data[c.pos : c.pos+n]
	c.pos += n
	return out, nil
}

func (c *cursor) u16(field string) (uint16, error) {
	b, err := c.take(2, field)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (c *cursor) u32(field string) (uint32, error) {
	b, err := c.take(4, field)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (c *cursor) u64(field string) (uint64, error) {
	b, err := c.take(8, field)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (c *cursor) paddedString(n int, field string) (string, error) {
	b, err := c.take(n, field)
	if err != nil {
		return "", err
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b), nil
}

// align discards padding bytes so pos lands on the next multiple of n.
func (c *cursor) align(n int, field string) error {
	pad := (n - c.pos%n) % n
	if pad == 0 {
		return nil
	}
	_, err := c.take(pad, field)
	return err
}

// sliceFrom returns the raw bytes from start up to the cursor's current
// position.
func (c *cursor) sliceFrom(start int) []byte {
	return c.data[start:c.pos]
}

func readSignature(c *cursor) (Signature, error) {
	typ, err := c.u32("signature.type")
	if err != nil {
		return Signature{}, err
	}
	st := SignatureType(typ)
	size := st.Algorithm().ModSize()
	if size == 0 {
		return Signature{}, &UnknownSignatureTypeError{Value: typ}
	}
	data, err := c.take(size, "signature.data")
	if err != nil {
		return Signature{}, err
	}
	if err := c.align(0x40, "signature.padding"); err != nil {
		return Signature{}, err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return Signature{Type: st, Data: cp}, nil
}

// Certificate is one entry of a certificate chain: a signature over the
// rest of the certificate, the name of whoever issued that signature,
// this certificate's own name, and the public key it vouches for.
type Certificate struct {
	Signature Signature
	Issuer    string
	KeyType   SignatureAlgorithm
	Name      string
	Modulus   []byte
	Exponent  uint32

	// RawCert is the exact bytes from Issuer through the end of Key,
	// i.e. everything Signature covers. Needed to re-verify this
	// certificate's own signature when it appears as a link further
	// up a chain.
	RawCert []byte
}

// readCertificates reads a greedy array of 0x40-aligned certificates
// until c is exhausted.
func readCertificates(c *cursor) ([]Certificate, error) {
	var out []Certificate
	for c.remaining() > 0 {
		cert, err := readCertificate(c)
		if err != nil {
			return nil, err
		}
		out = append(out, cert)
	}
	return out, nil
}

func readCertificate(c *cursor) (Certificate, error) {
	sig, err := readSignature(c)
	if err != nil {
		return Certificate{}, err
	}

	rawStart := c.pos
	issuer, err := c.paddedString(0x40, "certificate.issuer")
	if err != nil {
		return Certificate{}, err
	}
	keyType, err := c.u32("certificate.key_type")
	if err != nil {
		return Certificate{}, err
	}
	name, err := c.paddedString(0x40, "certificate.name")
	if err != nil {
		return Certificate{}, err
	}
	if _, err := c.u32("certificate._unk1"); err != nil {
		return Certificate{}, err
	}

	alg := SignatureAlgorithm(keyType)
	var modulus []byte
	var exponent uint32
	switch alg {
	case SignatureAlgorithmRSA4096, SignatureAlgorithmRSA2048:
		raw, err := c.take(alg.ModSize(), "certificate.key.modulus")
		if err != nil {
			return Certificate{}, err
		}
		modulus = append([]byte(nil), raw...)
		exponent, err = c.u32("certificate.key.exponent")
		if err != nil {
			return Certificate{}, err
		}
	case SignatureAlgorithmECDSA:
		if _, err := c.take(alg.ModSize(), "certificate.key.ecdsa"); err != nil {
			return Certificate{}, err
		}
	default:
		return Certificate{}, &UnknownSignatureTypeError{Value: keyType}
	}

	raw := append([]byte(nil), c.sliceFrom(rawStart)...)

	if err := c.align(0x40, "certificate.padding"); err != nil {
		return Certificate{}, err
	}

	return Certificate{
		Signature: sig,
		Issuer:    issuer,
		KeyType:   alg,
		Name:      name,
		Modulus:   modulus,
		Exponent:  exponent,
		RawCert:   raw,
	}, nil
}

// toChainCert adapts a parsed Certificate into the crypto package's
// generic ChainCert shape for signature-chain verification.
func (c Certificate) toChainCert() crypto.ChainCert {
	return crypto.ChainCert{
		Name:      c.Name,
		Issuer:    c.Issuer,
		Key:       crypto.RSAPublicKey{Modulus: c.Modulus, Exponent: int(c.Exponent)},
		RawCert:   c.RawCert,
		SigHash:   c.Signature.Type.HashAlgorithm(),
		Signature: c.Signature.Data,
	}
}

// certMap builds the name-keyed lookup VerifyChain expects.
func certMap(certs []Certificate) map[string]crypto.ChainCert {
	out := make(map[string]crypto.ChainCert, len(certs))
	for _, cert := range certs {
		out[cert.Name] = cert.toChainCert()
	}
	return out
}
