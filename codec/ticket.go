package codec

import (
	"log"

	"github.com/bodgit/nus"
	"github.com/bodgit/nus/crypto"
)

// Ticket carries the encrypted per-title key and licensing metadata the
// NUS CDN issues alongside a title's TMD.
//
// ref: https://www.3dbrew.org/wiki/Ticket, https://wiibrew.org/wiki/Ticket
type Ticket struct {
	nus.LoadGuard

	Signature         Signature
	Issuer            string
	TitleKeyEncrypted []byte
	TicketID          []byte
	ConsoleID         []byte
	TitleID           nus.TitleID
	TitleVersion      uint16
	LicenseType       byte
	KeyYIndex         byte
	AccountID         []byte
	Audit             byte
	Certificates      []Certificate

	rawSigned []byte // everything the ticket signature covers
}

// Load parses a Ticket from reader. Tickets carry no self-describing
// checksum, so config.VerifyChecksums has no effect here; the signature
// chain is checked according to config.VerifySignatures.
func (t *Ticket) Load(reader nus.Reader, config nus.NUSTypeLoadConfig) error {
	if err := t.Enter("Ticket"); err != nil {
		return err
	}
	defer t.Done()

	data, err := reader.ReadAll()
	if err != nil {
		return err
	}
	c := newCursor(data)

	sig, err := readSignature(c)
	if err != nil {
		return err
	}
	signedStart := c.pos

	issuer, err := c.paddedString(0x40, "ticket.issuer")
	if err != nil {
		return err
	}
	if _, err := c.take(0x3c, "ticket.ecdh_data"); err != nil {
		return err
	}
	if _, err := c.take(3, "ticket.version/ca_crl/signer_crl"); err != nil {
		return err
	}
	titleKeyEncrypted, err := c.take(16, "ticket.titlekey_encrypted")
	if err != nil {
		return err
	}
	if _, err := c.take(1, "ticket._unk1"); err != nil {
		return err
	}
	ticketID, err := c.take(8, "ticket.ticket_id")
	if err != nil {
		return err
	}
	consoleID, err := c.take(4, "ticket.console_id")
	if err != nil {
		return err
	}
	titleIDBytes, err := c.take(8, "ticket.title_id")
	if err != nil {
		return err
	}
	titleID, err := nus.NewTitleIDFromBytes(titleIDBytes)
	if err != nil {
		return err
	}
	if _, err := c.take(2, "ticket._unk2"); err != nil {
		return err
	}
	titleVersion, err := c.u16("ticket.title_version")
	if err != nil {
		return err
	}
	if _, err := c.take(8, "ticket._unk3"); err != nil {
		return err
	}
	licenseType, err := c.take(1, "ticket.license_type")
	if err != nil {
		return err
	}
	keyYIndex, err := c.take(1, "ticket.keyY_index")
	if err != nil {
		return err
	}
	if _, err := c.take(0x2a, "ticket._unk4"); err != nil {
		return err
	}
	accountID, err := c.take(4, "ticket.account_id")
	if err != nil {
		return err
	}
	if _, err := c.take(1, "ticket._unk5"); err != nil {
		return err
	}
	audit, err := c.take(1, "ticket.audit")
	if err != nil {
		return err
	}
	if _, err := c.take(0x42, "ticket._unk6"); err != nil {
		return err
	}
	if _, err := c.take(0x40, "ticket.limits"); err != nil {
		return err
	}
	if _, err := c.take(4, "ticket.content_index._unk1"); err != nil {
		return err
	}
	size, err := c.u32("ticket.content_index.size")
	if err != nil {
		return err
	}
	if size < 8 {
		return &FormatError{Field: "ticket.content_index.size", Expected: ">= 8", Actual: size}
	}
	if _, err := c.take(int(size-8), "ticket.content_index._unk2"); err != nil {
		return err
	}

	rawSigned := append([]byte(nil), c.sliceFrom(signedStart)...)

	certs, err := readCertificates(c)
	if err != nil {
		return err
	}

	t.Signature = sig
	t.Issuer = issuer
	t.TitleKeyEncrypted = append([]byte(nil), titleKeyEncrypted...)
	t.TicketID = append([]byte(nil), ticketID...)
	t.ConsoleID = append([]byte(nil), consoleID...)
	t.TitleID = titleID
	t.TitleVersion = titleVersion
	t.LicenseType = licenseType[0]
	t.KeyYIndex = keyYIndex[0]
	t.AccountID = append([]byte(nil), accountID...)
	t.Audit = audit[0]
	t.Certificates = certs
	t.rawSigned = rawSigned

	return verifySignaturePolicy(config, t.rawSigned, t.Issuer, t.Signature, t.Certificates)
}

// verifySignaturePolicy implements the tri-state VerifySignatures policy
// shared by Ticket and TMD: skip when false, require a RootKey and a
// valid chain when true. When nil (TryWarn), a missing root key or a
// missing certificate in the chain is downgraded to a logged warning
// instead of a fatal error; an actual bad signature stays fatal either
// way (spec.md §4.6).
func verifySignaturePolicy(config nus.NUSTypeLoadConfig, rawSigned []byte, issuer string, sig Signature, certs []Certificate) error {
	if config.VerifySignatures != nil && !*config.VerifySignatures {
		return nil
	}
	force := config.VerifySignatures != nil && *config.VerifySignatures

	if config.RootKey == nil || !config.RootKey.IsSet() {
		if force {
			return &MissingRootKeyError{}
		}
		log.Printf("nus/codec: skipping signature verification: no root key configured")
		return nil
	}

	rootKey := crypto.RSAPublicKey{Modulus: config.RootKey.Modulus, Exponent: int(config.RootKey.Exponent)}
	err := crypto.VerifyChain(rawSigned, issuer, sig.Type.HashAlgorithm(), sig.Data, certMap(certs), rootKey)
	if err == nil || force {
		return err
	}
	if mc, ok := err.(*crypto.MissingCertError); ok {
		log.Printf("nus/codec: %v", mc)
		return nil
	}
	return err
}

// MissingRootKeyError is returned when strict signature verification was
// requested but no root key was supplied to verify against.
type MissingRootKeyError struct{}

func (e *MissingRootKeyError) Error() string {
	return "nus/codec: signature verification requested but no root key was provided"
}

// VerifyAgainstRoot verifies the ticket's signature chain against
// rootKey, returning any crypto.MissingCertError / SignatureInvalidError
// / IssuerMismatchError encountered.
func (t *Ticket) VerifyAgainstRoot(rootKey crypto.RSAPublicKey) error {
	return crypto.VerifyChain(t.rawSigned, t.Issuer, t.Signature.Type.HashAlgorithm(), t.Signature.Data, certMap(t.Certificates), rootKey)
}

// Build re-serializes the ticket to its exact wire bytes. Every field
// between the signature and the appended certificate chain was captured
// verbatim as rawSigned at parse time (the codec's raw_view facility),
// so Build reproduces it rather than re-encoding field-by-field:
// build(parse(b)) == b holds by construction.
func (t *Ticket) Build() ([]byte, error) {
	var w writer
	writeSignature(&w, t.Signature)
	w.put(t.rawSigned)
	for _, cert := range t.Certificates {
		writeCertificate(&w, cert)
	}
	return w.buf.Bytes(), nil
}
