package prefixcode

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// EncryptionNonceSize is the nonce size for AES-GCM
	EncryptionNonceSize = 12
	// EncryptionSaltSize is the salt size for key derivation
	EncryptionSaltSize = 32
	// EncryptionKeySize is the AES-256 key size
	EncryptionKeySize = 32
	// PBKDF2Iterations is the number of iterations for key derivation
	PBKDF2Iterations = 100000
)

// EncryptionConfig configures the encryption collaborator.
type EncryptionConfig struct {
	// Enabled turns on encryption support in the service layer
	Enabled bool `yaml:"enabled"`
	// Key is the encryption key (must be 32 bytes for AES-256)
	// If empty, KeyPassword is used to derive a key
	Key []byte `yaml:"key,omitempty"`
	// KeyPassword is used to derive the encryption key via PBKDF2
	KeyPassword string `yaml:"key_password,omitempty"`
}

// Encryptor is an opaque authenticated-encryption transform over byte
// buffers. The coding engine never inspects its output: ciphertext moves
// through encode and decode as arbitrary bytes.
type Encryptor struct {
	gcm  cipher.AEAD
	salt []byte
}

// NewEncryptor creates a new encryptor from a key or password. It returns
// (nil, nil) when the config is disabled.
func NewEncryptor(cfg EncryptionConfig) (*Encryptor, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var key []byte
	var salt []byte

	if len(cfg.Key) > 0 {
		if len(cfg.Key) != EncryptionKeySize {
			return nil, errors.New("encryption key must be 32 bytes for AES-256")
		}
		key = cfg.Key
		salt = make([]byte, EncryptionSaltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, err
		}
	} else if cfg.KeyPassword != "" {
		salt = make([]byte, EncryptionSaltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, err
		}
		key = pbkdf2.Key([]byte(cfg.KeyPassword), salt, PBKDF2Iterations, EncryptionKeySize, sha256.New)
	} else {
		return nil, errors.New("encryption enabled but no key or password provided")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Encryptor{gcm: gcm, salt: salt}, nil
}

// NewEncryptorWithSalt creates an encryptor using an existing salt, so a
// password-derived key can be reproduced for decryption.
func NewEncryptorWithSalt(password string, salt []byte) (*Encryptor, error) {
	if len(salt) != EncryptionSaltSize {
		return nil, errors.New("invalid salt size")
	}

	key := pbkdf2.Key([]byte(password), salt, PBKDF2Iterations, EncryptionKeySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Encryptor{gcm: gcm, salt: salt}, nil
}

// NewEncryptorWithKey creates an encryptor with a raw key.
func NewEncryptorWithKey(key []byte) (*Encryptor, error) {
	if len(key) != EncryptionKeySize {
		return nil, errors.New("encryption key must be 32 bytes")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Encryptor{gcm: gcm}, nil
}

// Salt returns the salt used for key derivation.
func (e *Encryptor) Salt() []byte {
	return e.salt
}

// Encrypt encrypts plaintext and returns ciphertext with prepended nonce.
func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, EncryptionNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	// Prepend nonce to ciphertext
	ciphertext := e.gcm.Seal(nonce, nonce, plaintext, nil)
	return ciphertext, nil
}

// Decrypt decrypts ciphertext (with prepended nonce) and returns plaintext.
// Tampered, truncated, or wrong-key input fails with
// ErrAuthenticationFailed.
func (e *Encryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < EncryptionNonceSize {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrAuthenticationFailed)
	}

	nonce := ciphertext[:EncryptionNonceSize]
	ciphertext = ciphertext[EncryptionNonceSize:]

	plaintext, err := e.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}

	return plaintext, nil
}
