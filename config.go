package nus

import (
	"crypto/sha1" //nolint:gosec // pin format mandated by the original key store
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// KeyMismatchError reports that a key being set into a KeyStore does not
// hash to the value the store expects, which almost always means the
// wrong key material was supplied.
type KeyMismatchError struct {
	Name string
}

func (e *KeyMismatchError) Error() string {
	return fmt.Sprintf("nus: unexpected hash for key %q", e.Name)
}

// pinnedKey holds a key's SHA-1 fingerprint alongside its value, so a Set
// call can reject accidental substitutions before they reach the crypto
// layer.
type pinnedKey struct {
	name  string
	sha1  [20]byte
	value []byte
}

func newPinnedKey(name, sha1hex string) pinnedKey {
	var sum [20]byte
	copy(sum[:], mustHex(sha1hex))
	return pinnedKey{name: name, sha1: sum}
}

func (k *pinnedKey) set(value []byte) error {
	sum := sha1.Sum(value) //nolint:gosec // pin format mandated by the original key store
	if sum != k.sha1 {
		return &KeyMismatchError{Name: k.name}
	}
	k.value = value
	return nil
}

func mustHex(s string) []byte {
	out := make([]byte, len(s)/2)
	for i := range out {
		hi := hexVal(s[i*2])
		lo := hexVal(s[i*2+1])
		out[i] = hi<<4 | lo
	}
	return out
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}

// KeyStore holds the shared symmetric keys needed to decrypt title keys
// and IDBE icon payloads. Every setter is pinned to a known-good SHA-1
// fingerprint (lifted from the original's IniKey descriptors), so a
// keys file with the wrong bytes in the right slot fails loudly instead
// of silently decrypting garbage.
type KeyStore struct {
	commonWiiU pinnedKey
	idbeIV     pinnedKey
	idbeKeys   [4]pinnedKey
}

// NewKeyStore returns an empty KeyStore; every key must be populated via
// Set* or LoadFile before it can be used.
func NewKeyStore() *KeyStore {
	return &KeyStore{
		commonWiiU: newPinnedKey("common_wiiu", "6a0b87fc98b306ae3366f0e0a88d0b06a2813313"),
		idbeIV:     newPinnedKey("idbe_iv", "3db78243a8c9a89b399cc8e7511f06cbde9fa10b"),
		idbeKeys: [4]pinnedKey{
			newPinnedKey("idbe_key0", "1ec1f7927524e8027985a1a3b2345b4d06c92152"),
			newPinnedKey("idbe_key1", "0fae601895044799eaaf5ce91f0f00509073824b"),
			newPinnedKey("idbe_key2", "db73e30940500dcefdc3efe1b880af131fb7b745"),
			newPinnedKey("idbe_key3", "0bd3a8b30b8416afecd58dce4669c0e3e82a4ee7"),
		},
	}
}

// SetCommonWiiU sets the shared Wii U common key used to decrypt title
// keys.
func (ks *KeyStore) SetCommonWiiU(key []byte) error { return ks.commonWiiU.set(key) }

// CommonWiiU returns the Wii U common key, or nil if unset.
func (ks *KeyStore) CommonWiiU() []byte { return ks.commonWiiU.value }

// SetIDBEIV sets the shared IV used for every IDBE icon decryption.
func (ks *KeyStore) SetIDBEIV(iv []byte) error { return ks.idbeIV.set(iv) }

// IDBEIV returns the shared IDBE IV, or nil if unset.
func (ks *KeyStore) IDBEIV() []byte { return ks.idbeIV.value }

// SetIDBEKey sets one of the four IDBE keys selected by uid&3.
func (ks *KeyStore) SetIDBEKey(index int, key []byte) error { return ks.idbeKeys[index].set(key) }

// IDBEKey returns one of the four IDBE keys, or nil if unset.
func (ks *KeyStore) IDBEKey(index int) []byte { return ks.idbeKeys[index].value }

// keysFile is the on-disk shape of a keys file:
//
//	[common]
//	common_key_wiiu = "<hex>"
//
//	[idbe]
//	iv = "<hex>"
//	key0 = "<hex>"
//	key1 = "<hex>"
//	key2 = "<hex>"
//	key3 = "<hex>"
type keysFile struct {
	Common struct {
		CommonKeyWiiU string `toml:"common_key_wiiu"`
	} `toml:"common"`
	IDBE struct {
		IV   string `toml:"iv"`
		Key0 string `toml:"key0"`
		Key1 string `toml:"key1"`
		Key2 string `toml:"key2"`
		Key3 string `toml:"key3"`
	} `toml:"idbe"`
}

// LoadFile populates the key store from a TOML-formatted keys file. A
// missing file is not an error (mirrors the original's
// ConfigParser().read() returning an empty list silently when the file
// doesn't exist); missing entries within an existing file are left
// untouched; a key hashing to the wrong pinned fingerprint fails the
// whole load.
func (ks *KeyStore) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var f keysFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return err
	}
	if f.Common.CommonKeyWiiU != "" {
		if err := ks.SetCommonWiiU(mustHex(f.Common.CommonKeyWiiU)); err != nil {
			return err
		}
	}
	if f.IDBE.IV != "" {
		if err := ks.SetIDBEIV(mustHex(f.IDBE.IV)); err != nil {
			return err
		}
	}
	for i, v := range []string{f.IDBE.Key0, f.IDBE.Key1, f.IDBE.Key2, f.IDBE.Key3} {
		if v != "" {
			if err := ks.SetIDBEKey(i, mustHex(v)); err != nil {
				return err
			}
		}
	}
	return nil
}

// RootKey is the pinned "Root" RSA-4096 public key that anchors every
// certificate chain. It must match a fixed SHA-1 fingerprint of
// modulus||big-endian(exponent) before Set will accept it.
type RootKey struct {
	Modulus  []byte
	Exponent uint32
	set      bool
}

const rootKeyFingerprint = "076bed301a9bcf40706330213470f53c78ff67f2"

// Set installs the root key, rejecting it with a KeyMismatchError if it
// doesn't match the pinned fingerprint.
func (rk *RootKey) Set(modulus []byte, exponent uint32) error {
	data := make([]byte, len(modulus)+4)
	copy(data, modulus)
	data[len(modulus)+0] = byte(exponent >> 24)
	data[len(modulus)+1] = byte(exponent >> 16)
	data[len(modulus)+2] = byte(exponent >> 8)
	data[len(modulus)+3] = byte(exponent)
	sum := sha1.Sum(data) //nolint:gosec // pin format mandated by the original key store
	if hexEncode(sum[:]) != rootKeyFingerprint {
		return &KeyMismatchError{Name: "root"}
	}
	rk.Modulus, rk.Exponent, rk.set = modulus, exponent, true
	return nil
}

// IsSet reports whether the root key has been installed.
func (rk *RootKey) IsSet() bool { return rk.set }

func hexEncode(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = digits[v>>4]
		out[i*2+1] = digits[v&0xf]
	}
	return string(out)
}

// DefaultUserAgent is sent by every BaseSource unless overridden.
const DefaultUserAgent = "nus-go/1.0"

// DefaultChunkSize is the Reader chunk size used when a caller doesn't
// specify one.
const DefaultChunkSize = 4096

// DefaultCachePath is the cache root used by the CLI when the user
// doesn't override it.
const DefaultCachePath = "cache"
