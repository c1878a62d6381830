package codec

import (
	"strconv"

	"github.com/bodgit/nus"
	"github.com/bodgit/nus/crypto"
)

// ContentType is the bitmask carried by each TMD content entry,
// selecting encryption, Merkle hashing, optional-ness, and shared
// status.
//
// ref: https://www.3dbrew.org/wiki/Title_metadata#Content_Type
type ContentType uint16

// Known content-type bits.
const (
	ContentTypeEncrypted ContentType = 0x0001
	ContentTypeHashed    ContentType = 0x0002
	ContentTypeOptional  ContentType = 0x4000
	ContentTypeShared    ContentType = 0x8000
)

// Encrypted reports whether the content is AES-CBC encrypted with the
// title key.
func (t ContentType) Encrypted() bool { return t&ContentTypeEncrypted != 0 }

// Hashed reports whether the content uses the 0x10000-byte Merkle block
// layout (as opposed to a flat AES-CBC stream).
func (t ContentType) Hashed() bool { return t&ContentTypeHashed != 0 }

// Optional reports whether the content may be absent from a title
// install.
func (t ContentType) Optional() bool { return t&ContentTypeOptional != 0 }

// Shared reports whether the content is shared across titles.
func (t ContentType) Shared() bool { return t&ContentTypeShared != 0 }

// ContentEntry is one row of a TMD's content table: one per `.app` file
// belonging to the title.
type ContentEntry struct {
	ID      uint32
	Index   uint16
	Type    ContentType
	Size    uint64
	Hash    []byte // SHA-1 (padded to 32 bytes) on WiiU, SHA-256 on 3DS
	rawBytes []byte
}

// ContentInfoEntry is one row of a TMD's 64-entry content-info array: a
// cross-hash covering a contiguous run of ContentEntry rows.
type ContentInfoEntry struct {
	IndexOffset  uint16
	CommandCount uint16
	Hash         [32]byte // SHA-256 over contents[IndexOffset:IndexOffset+CommandCount]
}

// TMD is the Title Metadata structure: a signed table of contents for a
// title, one ContentEntry per `.app` file.
//
// ref: https://www.3dbrew.org/wiki/Title_metadata, https://wiibrew.org/wiki/Title_metadata
type TMD struct {
	nus.LoadGuard

	Signature        Signature
	Issuer           string
	Version          byte
	CACRLVersion     byte
	SignerCRLVersion byte
	SystemVersion    uint64
	TitleID          nus.TitleID
	TitleType        uint32
	GroupID          uint16
	AccessRights     uint32
	TitleVersion     uint16
	BootIndex        uint16
	ContentInfoSHA256 [32]byte
	ContentInfo      [64]ContentInfoEntry
	Contents         []ContentEntry

	certificates     []Certificate

	rawHeaderSigned  []byte // everything the TMD signature covers
	rawContentInfo   []byte // the 64-entry content-info array, as seen on the wire
}

// contentHashSize is the on-wire width of a content entry's hash slot:
// 32 bytes either way, holding a SHA-256 on 3DS or a SHA-1 zero-padded
// to the same width on WiiU.
const contentHashSize = 32

// Load parses a TMD from reader. When config.VerifyChecksums is set, the
// content-info array hash and every per-info contents hash are
// recomputed and compared (spec.md §3, §4.2); a mismatch is a fatal
// ChecksumMismatch. Signature verification follows the same tri-state
// policy as Ticket.
func (t *TMD) Load(reader nus.Reader, config nus.NUSTypeLoadConfig) error {
	if err := t.Enter("TMD"); err != nil {
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
	headerSignedStart := c.pos

	issuer, err := c.paddedString(0x40, "tmd.issuer")
	if err != nil {
		return err
	}
	version, err := c.take(1, "tmd.version")
	if err != nil {
		return err
	}
	caCRL, err := c.take(1, "tmd.ca_crl_version")
	if err != nil {
		return err
	}
	signerCRL, err := c.take(1, "tmd.signer_crl_version")
	if err != nil {
		return err
	}
	if _, err := c.take(1, "tmd._unk1"); err != nil {
		return err
	}
	systemVersion, err := c.u64("tmd.system_version")
	if err != nil {
		return err
	}
	titleIDBytes, err := c.take(8, "tmd.title_id")
	if err != nil {
		return err
	}
	titleID, err := nus.NewTitleIDFromBytes(titleIDBytes)
	if err != nil {
		return err
	}
	titleType, err := c.u32("tmd.title_type")
	if err != nil {
		return err
	}
	groupID, err := c.u16("tmd.group_id")
	if err != nil {
		return err
	}
	if _, err := c.take(62, "tmd._unk2"); err != nil {
		return err
	}
	accessRights, err := c.u32("tmd.access_rights")
	if err != nil {
		return err
	}
	titleVersion, err := c.u16("tmd.title_version")
	if err != nil {
		return err
	}
	contentCount, err := c.u16("tmd.content_count")
	if err != nil {
		return err
	}
	bootIndex, err := c.u16("tmd.boot_index")
	if err != nil {
		return err
	}
	if _, err := c.take(2, "tmd._padding"); err != nil {
		return err
	}
	contentInfoSHA256, err := c.take(32, "tmd.content_info_sha256")
	if err != nil {
		return err
	}

	contentInfoStart := c.pos
	var contentInfo [64]ContentInfoEntry
	for i := range contentInfo {
		off, err := c.u16("tmd.content_info.index_offset")
		if err != nil {
			return err
		}
		cnt, err := c.u16("tmd.content_info.command_count")
		if err != nil {
			return err
		}
		h, err := c.take(32, "tmd.content_info.sha256")
		if err != nil {
			return err
		}
		var entry ContentInfoEntry
		entry.IndexOffset = off
		entry.CommandCount = cnt
		copy(entry.Hash[:], h)
		contentInfo[i] = entry
	}
	rawContentInfo := append([]byte(nil), c.sliceFrom(contentInfoStart)...)

	contents := make([]ContentEntry, contentCount)
	for i := range contents {
		entryStart := c.pos
		id, err := c.u32("tmd.content.id")
		if err != nil {
			return err
		}
		index, err := c.u16("tmd.content.index")
		if err != nil {
			return err
		}
		typ, err := c.u16("tmd.content.type")
		if err != nil {
			return err
		}
		size, err := c.u64("tmd.content.size")
		if err != nil {
			return err
		}
		hash, err := c.take(contentHashSize, "tmd.content.hash")
		if err != nil {
			return err
		}
		contents[i] = ContentEntry{
			ID:       id,
			Index:    index,
			Type:     ContentType(typ),
			Size:     size,
			Hash:     append([]byte(nil), hash...),
			rawBytes: append([]byte(nil), c.sliceFrom(entryStart)...),
		}
	}

	rawHeaderSigned := append([]byte(nil), c.sliceFrom(headerSignedStart)...)

	certs, err := readCertificates(c)
	if err != nil {
		return err
	}

	t.Signature = sig
	t.Issuer = issuer
	t.Version = version[0]
	t.CACRLVersion = caCRL[0]
	t.SignerCRLVersion = signerCRL[0]
	t.SystemVersion = systemVersion
	t.TitleID = titleID
	t.TitleType = titleType
	t.GroupID = groupID
	t.AccessRights = accessRights
	t.TitleVersion = titleVersion
	t.BootIndex = bootIndex
	copy(t.ContentInfoSHA256[:], contentInfoSHA256)
	t.ContentInfo = contentInfo
	t.Contents = contents
	t.rawHeaderSigned = rawHeaderSigned
	t.rawContentInfo = rawContentInfo
	t.certificates = certs

	if config.VerifyChecksums {
		if err := t.verifyContentHashes(); err != nil {
			return err
		}
	}

	return verifySignaturePolicy(config, t.rawHeaderSigned, t.Issuer, t.Signature, t.certificates)
}

// Certificates returns the TMD's appended certificate chain.
func (t *TMD) Certificates() []Certificate { return t.certificates }

// Build re-serializes the TMD to its exact wire bytes. rawHeaderSigned
// was captured verbatim at parse time (covering everything from the
// issuer through the last content entry, including the content-info
// array and per-content hashes), so Build reproduces it directly:
// build(parse(b)) == b holds by construction.
func (t *TMD) Build() ([]byte, error) {
	var w writer
	writeSignature(&w, t.Signature)
	w.put(t.rawHeaderSigned)
	for _, cert := range t.certificates {
		writeCertificate(&w, cert)
	}
	return w.buf.Bytes(), nil
}

// verifyContentHashes recomputes content_info_sha256 over the raw
// 64-entry array and, for every info entry with CommandCount > 0, the
// contents_sha256 over the corresponding raw ContentEntry byte ranges
// (spec.md §3 Invariants, §8).
func (t *TMD) verifyContentHashes() error {
	if err := crypto.VerifySHA256("tmd.content_info_sha256", t.rawContentInfo, t.ContentInfoSHA256[:]); err != nil {
		return err
	}
	for i, info := range t.ContentInfo {
		if info.CommandCount == 0 {
			continue
		}
		start := int(info.IndexOffset)
		end := start + int(info.CommandCount)
		if start < 0 || end > len(t.Contents) {
			return &FormatError{Field: "tmd.content_info.index_offset", Expected: "within contents range", Actual: info.IndexOffset}
		}
		var concat []byte
		for _, ce := range t.Contents[start:end] {
			concat = append(concat, ce.rawBytes...)
		}
		field := "tmd.content_info[" + strconv.Itoa(i) + "].contents_sha256"
		if err := crypto.VerifySHA256(field, concat, info.Hash[:]); err != nil {
			return err
		}
	}
	return nil
}
