package keys

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

func TestPublicKeyDERRoundTrip(t *testing.T) {
	key, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	der, err := MarshalPublicDER(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	pub, err := ParsePublicDER(der)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if pub.N.Cmp(key.PublicKey.N) != 0 || pub.E != key.PublicKey.E {
		t.Fatalf("public key mismatch after DER round trip")
	}
}

func TestPEMRoundTrip(t *testing.T) {
	key, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	pubPEM, err := ExportPublicPEM(&key.PublicKey)
	if err != nil {
		t.Fatalf("export public: %v", err)
	}
	pub, err := ImportPublicPEM(pubPEM)
	if err != nil {
		t.Fatalf("import public: %v", err)
	}
	if pub.N.Cmp(key.PublicKey.N) != 0 {
		t.Fatalf("public key mismatch after PEM round trip")
	}

	privPEM := ExportPrivatePEM(key)
	priv, err := ImportPrivatePEM(privPEM)
	if err != nil {
		t.Fatalf("import private: %v", err)
	}
	if priv.D.Cmp(key.D) != 0 {
		t.Fatalf("private key mismatch after PEM round trip")
	}
}

func TestImportRejectsGarbage(t *testing.T) {
	if _, err := ImportPublicPEM([]byte("not pem")); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	if _, err := ImportPrivatePEM([]byte("not pem")); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	if _, err := ParsePublicDER([]byte{0x30, 0x00}); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestEncryptDecrypt(t *testing.T) {
	key, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	plaintext := []byte("p@ss")
	ciphertext, err := Encrypt(&key.PublicKey, plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Equal(ciphertext, plaintext) {
		t.Fatalf("ciphertext equals plaintext")
	}
	out, err := Decrypt(key, ciphertext)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(out, plaintext) {
		t.Fatalf("round trip mismatch: %q", out)
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	alice, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	mallory, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	ciphertext, err := Encrypt(&alice.PublicKey, []byte("challenge"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := Decrypt(mallory, ciphertext); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestSealedKeyFileRoundTrip(t *testing.T) {
	key, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	path := filepath.Join(t.TempDir(), "vault.key")

	if err := SavePrivate(path, key, "hunter2"); err != nil {
		t.Fatalf("save: %v", err)
	}
	out, err := LoadPrivate(path, "hunter2")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out.D.Cmp(key.D) != 0 {
		t.Fatalf("private key mismatch after sealed round trip")
	}

	if _, err := LoadPrivate(path, "wrong"); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("expected ErrDecryptionFailed for wrong passphrase, got %v", err)
	}
}

func TestPlainKeyFileRoundTrip(t *testing.T) {
	key, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	dir := t.TempDir()
	privPath := filepath.Join(dir, "vault.key")
	pubPath := filepath.Join(dir, "vault.pub")

	if err := SavePrivate(privPath, key, ""); err != nil {
		t.Fatalf("save private: %v", err)
	}
	if err := SavePublic(pubPath, &key.PublicKey); err != nil {
		t.Fatalf("save public: %v", err)
	}

	priv, err := LoadPrivate(privPath, "")
	if err != nil {
		t.Fatalf("load private: %v", err)
	}
	if priv.D.Cmp(key.D) != 0 {
		t.Fatalf("private key mismatch")
	}
	pub, err := LoadPublic(pubPath)
	if err != nil {
		t.Fatalf("load public: %v", err)
	}
	if pub.N.Cmp(key.PublicKey.N) != 0 {
		t.Fatalf("public key mismatch")
	}
}
