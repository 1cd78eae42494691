package converter

import (
	"crypto/cipher"
	"encoding/base64"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the length of a Cipher key in bytes.
const KeySize = chacha20poly1305.KeySize

var (
	// ErrKeySize is returned by NewCipher for keys that are not KeySize bytes long.
	ErrKeySize = errors.New("cipher key must be 32 bytes")

	// ErrMalformedCiphertext is returned when decrypting input that is too short or fails authentication.
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
)

var cipherEncoding = base64.RawURLEncoding

// Cipher encrypts text with XChaCha20-Poly1305.
//
// The nonce is a keyed BLAKE2b hash of the plaintext, so equal plaintexts encrypt to equal
// ciphertexts. That makes it usable for keys, which must encode deterministically, at the
// cost of revealing which stored values are equal.
type Cipher struct {
	aead     cipher.AEAD
	nonceKey []byte
}

// NewCipher builds a Cipher from a 32 byte key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "NewCipher chacha20poly1305.NewX")
	}
	nonceKey := blake2b.Sum256(append([]byte("pluggable-store nonce key"), key...))
	return &Cipher{aead: aead, nonceKey: nonceKey[:]}, nil
}

// Encoder returns the encrypting converter.
func (c *Cipher) Encoder() Func {
	return c.Encrypt
}

// Decoder returns the decrypting converter.
func (c *Cipher) Decoder() Func {
	return c.Decrypt
}

// Encrypt returns nonce||ciphertext encoded as unpadded URL-safe Base64.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce, err := c.nonce([]byte(plaintext))
	if err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return cipherEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (c *Cipher) Decrypt(input string) (string, error) {
	sealed, err := cipherEncoding.DecodeString(input)
	if err != nil {
		return "", errors.Wrap(ErrMalformedCiphertext, err.Error())
	}
	nonceSize := c.aead.NonceSize()
	if len(sealed) < nonceSize+c.aead.Overhead() {
		return "", errors.Wrap(ErrMalformedCiphertext, "input too short")
	}
	plaintext, err := c.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return "", errors.Wrap(ErrMalformedCiphertext, err.Error())
	}
	return string(plaintext), nil
}

func (c *Cipher) nonce(plaintext []byte) ([]byte, error) {
	h, err := blake2b.New(c.aead.NonceSize(), c.nonceKey)
	if err != nil {
		return nil, errors.Wrap(err, "Cipher.nonce blake2b.New")
	}
	h.Write(plaintext)
	return h.Sum(nil), nil
}
