// Package crypto implements the title-key, hash, and signature-chain
// primitives that back the rest of the module's codec and content
// packages.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"io"

	"github.com/connesc/cipherio"
)

// BlockReader wraps r with AES-CBC decryption, streaming the decrypted
// bytes as they're read rather than buffering the whole ciphertext. This
// is the same connesc/cipherio wrapper the disc-image decrypter uses for
// its per-partition and per-file readers.
func BlockReader(r io.Reader, key, iv []byte) (io.Reader, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipherio.NewBlockReader(r, cipher.NewCBCDecrypter(block, iv)), nil
}

// DecryptBlock decrypts a single fixed-size buffer with AES-CBC into a
// newly allocated buffer, leaving data untouched, for cases (title keys,
// IDBE payloads, hashed-block tables and data) too small to warrant a
// streaming reader.
func DecryptBlock(data, key, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	return out, nil
}
