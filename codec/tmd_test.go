package codec

import (
	"bytes"
	"crypto/sha1" //nolint:gosec // TMD content hashes are SHA-1 by wire format
	"crypto/sha256"
	"encoding/binary"
	"testing"

	"github.com/bodgit/nus"
)

// buildTMD assembles a minimal, well-formed TMD with one content entry
// and no certificate chain, returning the raw bytes.
func buildTMD(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer

	// signature: RSA-2048/SHA-1, zeroed, padded to 0x40.
	binary.Write(&buf, binary.BigEndian, uint32(SignatureTypeRSA2048SHA1))
	buf.Write(make([]byte, SignatureAlgorithmRSA2048.ModSize()))
	padTo40(&buf)

	writePaddedString(&buf, "Root-CA00000003-CP0000000b", 0x40)
	buf.WriteByte(0) // version
	buf.WriteByte(0) // ca_crl_version
	buf.WriteByte(0) // signer_crl_version
	buf.WriteByte(0) // unk1
	binary.Write(&buf, binary.BigEndian, uint64(0)) // system_version
	buf.Write([]byte{0x00, 0x05, 0x00, 0x00, 0x10, 0x00, 0x01, 0x00}) // title id
	binary.Write(&buf, binary.BigEndian, uint32(0x00050000)) // title_type
	binary.Write(&buf, binary.BigEndian, uint16(0))          // group_id
	buf.Write(make([]byte, 62))                              // unk2
	binary.Write(&buf, binary.BigEndian, uint32(0)) // access_rights
	binary.Write(&buf, binary.BigEndian, uint16(3)) // title_version
	binary.Write(&buf, binary.BigEndian, uint16(1)) // content_count
	binary.Write(&buf, binary.BigEndian, uint16(0)) // boot_index
	buf.Write(make([]byte, 2))                      // padding

	contentInfoPlaceholder := buf.Len()
	buf.Write(make([]byte, 32)) // content_info_sha256, patched below

	contentInfoStart := buf.Len()

	contentHash := sha1.Sum([]byte("content")) //nolint:gosec
	var contentHash32 [32]byte
	copy(contentHash32[:], contentHash[:])

	// content-info entry 0 covers the single content entry; compute its
	// hash after writing the content entry itself, so build the content
	// entry bytes first.
	var contentEntryBuf bytes.Buffer
	binary.Write(&contentEntryBuf, binary.BigEndian, uint32(1))    // id
	binary.Write(&contentEntryBuf, binary.BigEndian, uint16(0))    // index
	binary.Write(&contentEntryBuf, binary.BigEndian, uint16(ContentTypeEncrypted|ContentTypeHashed)) // type
	binary.Write(&contentEntryBuf, binary.BigEndian, uint64(7))    // size
	contentEntryBuf.Write(contentHash32[:])

	contentsHash := sha256.Sum256(contentEntryBuf.Bytes())

	binary.Write(&buf, binary.BigEndian, uint16(0)) // index_offset
	binary.Write(&buf, binary.BigEndian, uint16(1)) // command_count
	buf.Write(contentsHash[:])
	for i := 1; i < 64; i++ {
		buf.Write(make([]byte, 36))
	}

	rawContentInfo := buf.Bytes()[contentInfoStart:]
	infoSHA := sha256.Sum256(rawContentInfo)
	out := buf.Bytes()
	copy(out[contentInfoPlaceholder:contentInfoPlaceholder+32], infoSHA[:])

	buf.Write(contentEntryBuf.Bytes())

	return buf.Bytes()
}

func writePaddedString(buf *bytes.Buffer, s string, n int) {
	b := make([]byte, n)
	copy(b, s)
	buf.Write(b)
}

func padTo40(buf *bytes.Buffer) {
	if pad := (0x40 - buf.Len()%0x40) % 0x40; pad > 0 {
		buf.Write(make([]byte, pad))
	}
}

func TestTMDLoadAndBuild(t *testing.T) {
	data := buildTMD(t)

	var tmd TMD
	if err := nus.LoadBytes(&tmd, data); err != nil {
		t.Fatalf("LoadBytes() error = %v", err)
	}

	if tmd.TitleVersion != 3 {
		t.Errorf("TitleVersion = %d, want 3", tmd.TitleVersion)
	}
	if len(tmd.Contents) != 1 {
		t.Fatalf("len(Contents) = %d, want 1", len(tmd.Contents))
	}
	if tmd.Contents[0].Size != 7 {
		t.Errorf("Contents[0].Size = %d, want 7", tmd.Contents[0].Size)
	}
	if !tmd.Contents[0].Type.Encrypted() || !tmd.Contents[0].Type.Hashed() {
		t.Errorf("Contents[0].Type = %v, want encrypted+hashed", tmd.Contents[0].Type)
	}

	rebuilt, err := tmd.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !bytes.Equal(rebuilt, data) {
		t.Errorf("Build() did not round-trip: got %d bytes, want %d bytes", len(rebuilt), len(data))
	}
}

func TestTMDLoadChecksumMismatch(t *testing.T) {
	data := buildTMD(t)
	// Corrupt the first content entry's hash field so content-info
	// verification fails.
	data[len(data)-1] ^= 0xff

	var tmd TMD
	err := tmd.Load(byteReaderForTest(data), nus.NUSTypeLoadConfig{
		TypeLoadConfig:   nus.TypeLoadConfig{VerifyChecksums: true},
		VerifySignatures: nus.FalseState(),
	})
	if err == nil {
		t.Fatal("Load() error = nil, want checksum mismatch")
	}
}

func TestTMDAlreadyLoaded(t *testing.T) {
	data := buildTMD(t)
	var tmd TMD
	config := nus.NUSTypeLoadConfig{VerifySignatures: nus.FalseState()}
	if err := tmd.Load(byteReaderForTest(data), config); err != nil {
		t.Fatalf("first Load() error = %v", err)
	}
	if err := tmd.Load(byteReaderForTest(data), config); err == nil {
		t.Fatal("second Load() error = nil, want AlreadyLoadedError")
	}
}
