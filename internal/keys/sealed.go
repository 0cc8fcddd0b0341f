package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/pem"
	"fmt"
	"os"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Private keys at rest may be sealed under a passphrase: argon2id
// derives a key-encryption key, chacha20poly1305 seals the PKCS#1 PEM.
// The sealed file carries a PEM block whose bytes are
// salt || nonce || ciphertext.

const (
	pemTypeSealed = "SEALED RSA PRIVATE KEY"

	saltBytes = 16

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	kekBytes     = 32
)

func deriveKEK(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, kekBytes)
}

// SealPrivate produces the at-rest encoding of the private key. With
// an empty passphrase the key is stored as plain PEM.
func SealPrivate(key *rsa.PrivateKey, passphrase string) ([]byte, error) {
	plain := ExportPrivatePEM(key)
	if passphrase == "" {
		return plain, nil
	}

	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	kek := deriveKEK(passphrase, salt)
	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	sealed := aead.Seal(nil, nonce, plain, nil)

	blob := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = append(blob, sealed...)
	return encodeSealedPEM(blob), nil
}

// OpenPrivate reverses SealPrivate. A plain PEM block needs no
// passphrase; a sealed block requires the one used to seal it.
func OpenPrivate(data []byte, passphrase string) (*rsa.PrivateKey, error) {
	blob, sealed, err := decodeKeyPEM(data)
	if err != nil {
		return nil, err
	}
	if !sealed {
		return ImportPrivatePEM(data)
	}

	if len(blob) < saltBytes+chacha20poly1305.NonceSize {
		return nil, ErrInvalidKey
	}
	salt := blob[:saltBytes]
	nonce := blob[saltBytes : saltBytes+chacha20poly1305.NonceSize]
	ciphertext := blob[saltBytes+chacha20poly1305.NonceSize:]

	kek := deriveKEK(passphrase, salt)
	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: wrong passphrase or corrupt key file", ErrDecryptionFailed)
	}
	return ImportPrivatePEM(plain)
}

func encodeSealedPEM(blob []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: pemTypeSealed, Bytes: blob})
}

func decodeKeyPEM(data []byte) (blob []byte, sealed bool, err error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, false, ErrInvalidKey
	}
	switch block.Type {
	case pemTypeSealed:
		return block.Bytes, true, nil
	case pemTypePrivate:
		return block.Bytes, false, nil
	default:
		return nil, false, ErrInvalidKey
	}
}

// SavePrivate writes the (optionally sealed) private key to path.
func SavePrivate(path string, key *rsa.PrivateKey, passphrase string) error {
	data, err := SealPrivate(key, passphrase)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// LoadPrivate reads a private key written by SavePrivate.
func LoadPrivate(path string, passphrase string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return OpenPrivate(data, passphrase)
}

// SavePublic writes the public key PEM to path.
func SavePublic(path string, pub *rsa.PublicKey) error {
	data, err := ExportPublicPEM(pub)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadPublic reads a public key written by SavePublic.
func LoadPublic(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ImportPublicPEM(data)
}
