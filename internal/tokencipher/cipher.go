// Package tokencipher encrypts session tokens before they leave the server in cookies.
//
// Blob format: base64(IV[16] ‖ tag[16] ‖ ciphertext), AES-256-GCM with a 16 byte nonce.
// The key is derived from the configured secret with scrypt.
package tokencipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/scrypt"

	"github.com/nkiryanov/leagueadmin/internal/apperrors"
)

const (
	ivSize  = 16
	tagSize = 16
	keySize = 32

	// scrypt cost parameters
	scryptN = 1 << 14
	scryptR = 8
	scryptP = 1
)

// Fixed application salt, the secret is what keeps the key private
var salt = []byte("leagueadmin/session-cookie/v1")

// Used only when the app runs in development without SESSION_SECRET
const insecureSecret = "leagueadmin-insecure-development-secret"

type warner interface {
	Warn(msg string, args ...any)
}

type Cipher struct {
	aead cipher.AEAD
}

// New derives key from secret
// Secret must not be empty: returns apperrors.ErrNoSecret
func New(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, apperrors.ErrNoSecret
	}
	return newCipher(secret)
}

// NewInsecure returns cipher with a key everybody can derive
// Never use it in production, the app refuses to start there without a secret
func NewInsecure(l warner) (*Cipher, error) {
	l.Warn("SESSION_SECRET is not set: session cookies are encrypted with the well-known development key")
	return newCipher(insecureSecret)
}

func newCipher(secret string) (*Cipher, error) {
	key, err := scrypt.Key([]byte(secret), salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("error while deriving key. Err: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("error while creating block cipher. Err: %w", err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("error while creating gcm. Err: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext with a fresh random IV
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("error while generating iv. Err: %w", err)
	}

	// GCM output is ciphertext ‖ tag, the blob keeps tag in front of ciphertext
	sealed := c.aead.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	blob := make([]byte, 0, ivSize+len(sealed))
	blob = append(blob, iv...)
	blob = append(blob, tag...)
	blob = append(blob, ciphertext...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt opens blob made by Encrypt
// Any malformed or tampered blob returns error wrapping apperrors.ErrDecrypt
func (c *Cipher) Decrypt(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperrors.ErrDecrypt, err)
	}
	if len(raw) < ivSize+tagSize {
		return "", fmt.Errorf("%w: blob is %d bytes long", apperrors.ErrDecrypt, len(raw))
	}

	iv, tag, ciphertext := raw[:ivSize], raw[ivSize:ivSize+tagSize], raw[ivSize+tagSize:]

	sealed := make([]byte, 0, len(ciphertext)+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := c.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperrors.ErrDecrypt, err)
	}

	return string(plaintext), nil
}
