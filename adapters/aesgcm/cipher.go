// Package aesgcm implements the encryption gateway with AES-256-GCM and an
// argon2id passphrase-derived key. Ciphertexts are self-describing
// envelopes: v1:<key-id>:<base64(salt | nonce | ciphertext)>.
package aesgcm

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"

	"github.com/artpar/conftree/core/tree"
)

var _ tree.Cipher = (*Cipher)(nil)

const (
	envelopeVersion = "v1"
	saltSize        = 16
)

// EncryptionError reports missing key material, a malformed envelope, or a
// cipher failure.
type EncryptionError struct {
	Op     string
	Reason string
}

func (e *EncryptionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// Keyring holds passphrases keyed by ID so envelopes written under an old
// key stay readable after rotation. The most recently added key encrypts.
type Keyring struct {
	mu     sync.RWMutex
	keys   map[string]string
	active string
}

// NewKeyring creates a keyring with one active passphrase.
func NewKeyring(passphrase string) *Keyring {
	k := &Keyring{keys: make(map[string]string)}
	k.Add(passphrase)
	return k
}

// Add registers a new passphrase, makes it active, and returns its ID. The
// ID is derived from the passphrase, so envelopes stay decryptable across
// processes sharing the same key material.
func (k *Keyring) Add(passphrase string) string {
	k.mu.Lock()
	defer k.mu.Unlock()
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(passphrase)).String()
	k.keys[id] = passphrase
	k.active = id
	return id
}

// Active returns the ID of the encrypting key.
func (k *Keyring) Active() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.active
}

func (k *Keyring) passphrase(id string) (string, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	p, ok := k.keys[id]
	return p, ok
}

// Cipher encrypts and decrypts string payloads. It satisfies tree.Cipher.
type Cipher struct {
	keyring *Keyring
}

// New creates a cipher over the given keyring.
func New(keyring *Keyring) *Cipher {
	return &Cipher{keyring: keyring}
}

// NewWithPassphrase creates a cipher with a single-key keyring.
func NewWithPassphrase(passphrase string) *Cipher {
	return New(NewKeyring(passphrase))
}

// Encrypt seals plaintext under the active key.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if c.keyring == nil || c.keyring.Active() == "" {
		return "", &EncryptionError{Op: "encrypt", Reason: "no key material configured"}
	}
	keyID := c.keyring.Active()
	passphrase, _ := c.keyring.passphrase(keyID)

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", &EncryptionError{Op: "encrypt", Reason: fmt.Sprintf("generate salt: %v", err)}
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", &EncryptionError{Op: "encrypt", Reason: err.Error()}
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", &EncryptionError{Op: "encrypt", Reason: fmt.Sprintf("generate nonce: %v", err)}
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	payload := base64.StdEncoding.EncodeToString(append(salt, sealed...))
	return envelopeVersion + ":" + keyID + ":" + payload, nil
}

// Decrypt opens an envelope produced by Encrypt.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	parts := strings.SplitN(ciphertext, ":", 3)
	if len(parts) != 3 || parts[0] != envelopeVersion {
		return "", &EncryptionError{Op: "decrypt", Reason: "malformed envelope"}
	}
	keyID, payload := parts[1], parts[2]

	if c.keyring == nil {
		return "", &EncryptionError{Op: "decrypt", Reason: "no key material configured"}
	}
	passphrase, ok := c.keyring.passphrase(keyID)
	if !ok {
		return "", &EncryptionError{Op: "decrypt", Reason: fmt.Sprintf("unknown key %s", keyID)}
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", &EncryptionError{Op: "decrypt", Reason: "malformed envelope"}
	}
	if len(raw) < saltSize {
		return "", &EncryptionError{Op: "decrypt", Reason: "ciphertext too short"}
	}
	salt, sealed := raw[:saltSize], raw[saltSize:]

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", &EncryptionError{Op: "decrypt", Reason: err.Error()}
	}
	if len(sealed) < gcm.NonceSize() {
		return "", &EncryptionError{Op: "decrypt", Reason: "ciphertext too short"}
	}
	nonce, body := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]

	plain, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return "", &EncryptionError{Op: "decrypt", Reason: "cipher failure"}
	}
	return string(plain), nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
