package crypto

import (
	"fmt"

	"github.com/bodgit/nus"
)

// KeySet holds the common keys needed to derive per-title keys. Values
// are populated from a pinned key store; see the root package's KeyStore.
type KeySet struct {
	CommonWiiU []byte
}

// DecryptTitleKey derives the per-title AES key from an encrypted title
// key and its owning TitleID. The IV is the title ID's 8 raw bytes
// followed by 8 zero bytes, matching the original's TitleKey.decrypt.
//
// 3DS titles use a per-title key derivation scheme this module does not
// implement; it always returns ErrUnsupportedPlatform for them.
func DecryptTitleKey(keys KeySet, encrypted []byte, titleID nus.TitleID) ([]byte, error) {
	switch titleID.Type.Platform() {
	case nus.PlatformWiiU:
		iv := make([]byte, 16)
		copy(iv, titleID.Bytes())
		return DecryptBlock(encrypted, keys.CommonWiiU, iv)
	case nus.Platform3DS:
		return nil, ErrUnsupportedPlatform
	default:
		return nil, fmt.Errorf("nus/crypto: unknown platform for title %s", titleID)
	}
}

// ErrUnsupportedPlatform is returned by operations that only have a
// known implementation for Wii U titles. It wraps nus.ErrNotImplemented.
var ErrUnsupportedPlatform = fmt.Errorf("nus/crypto: 3DS title-key derivation: %w", nus.ErrNotImplemented)
