package codec

import (
	"unicode/utf16"

	"github.com/bodgit/nus"
	"github.com/bodgit/nus/crypto"
)

// idbeLanguageCount is the number of localized title-name slots carried
// by every IDBE, one per supported UI language.
const idbeLanguageCount = 16

// idbeTitleNameLen is the fixed UTF-16 code-unit width of one localized
// title name slot.
const idbeTitleNameLen = 0x100

// IDBERegion is the region-availability bitmask carried by every IDBE.
type IDBERegion uint32

// Known IDBE region bits.
const (
	IDBERegionJapan IDBERegion = 1 << iota
	IDBERegionUSA
	IDBERegionEurope
	IDBERegionAustralia
	IDBERegionChina
	IDBERegionKorea
	IDBERegionTaiwan
)

// IDBE is the per-title Icon Database Entry: region availability,
// localized title strings, and icon imagery, AES-CBC encrypted under a
// shared IV and one of four keys selected by title_id.uid & 3.
//
// Field layout differs physically by platform: 3DS stores little-endian
// UTF-16 names and a raw RGB565 icon, WiiU stores big-endian UTF-16
// names and a TGA icon body.
type IDBE struct {
	nus.LoadGuard

	Platform   nus.TitlePlatform
	Region     IDBERegion
	TitleNames [idbeLanguageCount]string
	IconData   []byte
}

// IDBEKeyIndex selects which of the four shared IDBE keys decrypts a
// given title's icon database entry. Observed behavior of the service,
// not a documented format detail.
func IDBEKeyIndex(titleID nus.TitleID) int {
	return int(titleID.UID & 3)
}

// idbeIconSize is the fixed icon payload size per platform: 48x48 raw
// RGB565 on 3DS, a fixed-size TGA body on WiiU.
func idbeIconSize(platform nus.TitlePlatform) int {
	if platform == nus.Platform3DS {
		return 0x1200
	}
	return 0xf400
}

// Load decrypts and parses an IDBE for titleID using iv/key (selected by
// the caller via IDBEKeyIndex from its KeyStore), verifying the trailing
// SHA-256 over the decrypted body when config.VerifyChecksums is set.
func (i *IDBE) Load(reader nus.Reader, titleID nus.TitleID, iv, key []byte, config nus.NUSTypeLoadConfig) error {
	if err := i.Enter("IDBE"); err != nil {
		return err
	}
	defer i.Done()

	data, err := reader.ReadAll()
	if err != nil {
		return err
	}

	decrypted, err := crypto.DecryptBlock(data, key, iv)
	if err != nil {
		return err
	}

	platform := titleID.Type.Platform()
	iconSize := idbeIconSize(platform)
	bodyLen := len(decrypted) - 32
	if bodyLen < 4+idbeLanguageCount*idbeTitleNameLen*2+iconSize {
		return &TruncatedError{Field: "idbe.body"}
	}

	c := newCursor(decrypted[:bodyLen])

	region, err := c.u32("idbe.region")
	if err != nil {
		return err
	}

	bigEndian := platform == nus.PlatformWiiU

	var names [idbeLanguageCount]string
	for lang := range names {
		raw, err := c.take(idbeTitleNameLen*2, "idbe.title_name")
		if err != nil {
			return err
		}
		names[lang] = decodeIDBEString(raw, bigEndian)
	}

	icon, err := c.take(iconSize, "idbe.icon")
	if err != nil {
		return err
	}

	trailer := decrypted[bodyLen:]
	if config.VerifyChecksums {
		if err := crypto.VerifySHA256("idbe.trailer_sha256", decrypted[:bodyLen], trailer); err != nil {
			return err
		}
	}

	i.Platform = platform
	i.Region = IDBERegion(region)
	i.TitleNames = names
	i.IconData = append([]byte(nil), icon...)

	return nil
}

// decodeIDBEString decodes a fixed-width, null-terminated UTF-16 title
// name, big-endian on WiiU and little-endian on 3DS.
func decodeIDBEString(raw []byte, bigEndian bool) string {
	units := make([]uint16, len(raw)/2)
	for idx := range units {
		if bigEndian {
			units[idx] = uint16(raw[idx*2])<<8 | uint16(raw[idx*2+1])
		} else {
			units[idx] = uint16(raw[idx*2+1])<<8 | uint16(raw[idx*2])
		}
	}
	for n, v := range units {
		if v == 0 {
			units = units[:n]
			break
		}
	}
	return string(utf16.Decode(units))
}
