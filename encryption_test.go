package prefixcode

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncryptor_EncryptDecrypt(t *testing.T) {
	enc, err := NewEncryptor(EncryptionConfig{
		Enabled:     true,
		KeyPassword: "test-password-123",
	})
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}

	plaintext := []byte("hello world")

	ciphertext, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if bytes.Equal(ciphertext, plaintext) {
		t.Error("ciphertext should not equal plaintext")
	}

	decrypted, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}

	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("decrypted data does not match: got %s, want %s", decrypted, plaintext)
	}
}

func TestEncryptor_WithRawKey(t *testing.T) {
	key := make([]byte, EncryptionKeySize)
	for i := range key {
		key[i] = byte(i)
	}

	enc, err := NewEncryptorWithKey(key)
	if err != nil {
		t.Fatalf("NewEncryptorWithKey failed: %v", err)
	}

	ciphertext, err := enc.Encrypt([]byte("secret data"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	decrypted, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}

	if string(decrypted) != "secret data" {
		t.Error("decrypted data does not match")
	}
}

func TestEncryptor_TamperedCiphertext(t *testing.T) {
	enc, err := NewEncryptor(EncryptionConfig{Enabled: true, KeyPassword: "pw"})
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}

	ciphertext, err := enc.Encrypt([]byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	ciphertext[len(ciphertext)-1] ^= 0x01

	_, err = enc.Decrypt(ciphertext)
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("got %v, want ErrAuthenticationFailed", err)
	}
}

func TestEncryptor_WrongKey(t *testing.T) {
	enc1, err := NewEncryptorWithKey(bytes.Repeat([]byte{0x11}, EncryptionKeySize))
	if err != nil {
		t.Fatalf("NewEncryptorWithKey failed: %v", err)
	}
	enc2, err := NewEncryptorWithKey(bytes.Repeat([]byte{0x22}, EncryptionKeySize))
	if err != nil {
		t.Fatalf("NewEncryptorWithKey failed: %v", err)
	}

	ciphertext, err := enc1.Encrypt([]byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if _, err := enc2.Decrypt(ciphertext); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("got %v, want ErrAuthenticationFailed", err)
	}
}

func TestEncryptor_TruncatedCiphertext(t *testing.T) {
	enc, err := NewEncryptor(EncryptionConfig{Enabled: true, KeyPassword: "pw"})
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}

	if _, err := enc.Decrypt([]byte{0x01, 0x02}); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("got %v, want ErrAuthenticationFailed", err)
	}
}

func TestEncryptor_SaltReproducesKey(t *testing.T) {
	password := "my-secret-password"

	enc1, err := NewEncryptor(EncryptionConfig{Enabled: true, KeyPassword: password})
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}

	ciphertext, err := enc1.Encrypt([]byte("carried across restarts"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	enc2, err := NewEncryptorWithSalt(password, enc1.Salt())
	if err != nil {
		t.Fatalf("NewEncryptorWithSalt failed: %v", err)
	}

	decrypted, err := enc2.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if string(decrypted) != "carried across restarts" {
		t.Error("decrypted data does not match")
	}
}

func TestEncryptor_Disabled(t *testing.T) {
	enc, err := NewEncryptor(EncryptionConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}
	if enc != nil {
		t.Error("disabled config should produce a nil encryptor")
	}
}

func TestEncryptor_CiphertextSurvivesCodecTransit(t *testing.T) {
	// Ciphertext moves through bit packing as plain bytes; a packed round
	// trip must hand decrypt exactly what encrypt produced.
	enc, err := NewEncryptor(EncryptionConfig{Enabled: true, KeyPassword: "transit"})
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}

	ciphertext, err := enc.Encrypt([]byte("hello world"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	carried, err := BitsToBytes(BytesToBits(ciphertext))
	if err != nil {
		t.Fatalf("BitsToBytes failed: %v", err)
	}

	decrypted, err := enc.Decrypt(carried)
	if err != nil {
		t.Fatalf("Decrypt after transit failed: %v", err)
	}
	if string(decrypted) != "hello world" {
		t.Error("round trip through bit packing corrupted the ciphertext")
	}
}
