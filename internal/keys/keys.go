// Package keys owns the user's RSA key pair: generation, PEM and DER
// codecs, file persistence, and the PKCS#1 v1.5 operations the vault
// handshake and password fields use.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

var (
	ErrInvalidKey       = errors.New("keys: invalid key material")
	ErrEncryptionFailed = errors.New("keys: encryption failed")
	ErrDecryptionFailed = errors.New("keys: decryption failed")
)

// Bits is the vault key size. The server stores the public half and
// encrypts at most an 8-byte login challenge under it.
const Bits = 2048

const (
	pemTypePublic  = "PUBLIC KEY"
	pemTypePrivate = "RSA PRIVATE KEY"
)

// Generate creates a new RSA-2048 key pair.
func Generate() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, Bits)
}

// MarshalPublicDER exports the public key as PKIX DER; this is the
// byte form that crosses the wire at user creation.
func MarshalPublicDER(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return der, nil
}

// ParsePublicDER imports a PKIX DER public key.
func ParsePublicDER(der []byte) (*rsa.PublicKey, error) {
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA public key", ErrInvalidKey)
	}
	return rsaPub, nil
}

// ExportPublicPEM exports the public key to PEM.
func ExportPublicPEM(pub *rsa.PublicKey) ([]byte, error) {
	der, err := MarshalPublicDER(pub)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemTypePublic, Bytes: der}), nil
}

// ImportPublicPEM imports a PEM public key.
func ImportPublicPEM(pemData []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil || block.Type != pemTypePublic {
		return nil, ErrInvalidKey
	}
	return ParsePublicDER(block.Bytes)
}

// ExportPrivatePEM exports the private key to PKCS#1 PEM.
func ExportPrivatePEM(key *rsa.PrivateKey) []byte {
	der := x509.MarshalPKCS1PrivateKey(key)
	return pem.EncodeToMemory(&pem.Block{Type: pemTypePrivate, Bytes: der})
}

// ImportPrivatePEM imports a PKCS#1 PEM private key.
func ImportPrivatePEM(pemData []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil || block.Type != pemTypePrivate {
		return nil, ErrInvalidKey
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return key, nil
}

// Encrypt encrypts data under the public key using PKCS#1 v1.5
// padding. The vault protocol predates OAEP adoption on the server
// side, so v1.5 is the wire contract.
func Encrypt(pub *rsa.PublicKey, data []byte) ([]byte, error) {
	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, pub, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	return ciphertext, nil
}

// Decrypt decrypts PKCS#1 v1.5 ciphertext with the private key.
func Decrypt(key *rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	plaintext, err := rsa.DecryptPKCS1v15(rand.Reader, key, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}
