package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"io"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrCiphertextTooShort = goerr.New("ciphertext too short")
	ErrNotConfigured      = goerr.New("no data encryption key configured")
)

// Sealer encrypts document numbers and other identifiers at rest with AES-256-GCM.
// Without a key Seal passes values through and Open refuses sealed input.
type Sealer struct {
	aead cipher.AEAD
}

func New(key string) (*Sealer, error) {
	if key == "" {
		return &Sealer{}, nil
	}
	decoded := decodeKey(key)
	if len(decoded) != 32 {
		return nil, goerr.New("DATA_ENCRYPTION_KEY must be 32 bytes after decoding", goerr.V("length", len(decoded)))
	}
	block, err := aes.NewCipher(decoded)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build cipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build gcm")
	}
	return &Sealer{aead: aead}, nil
}

func (s *Sealer) Configured() bool {
	return s != nil && s.aead != nil
}

func (s *Sealer) Seal(plain []byte) ([]byte, error) {
	if len(plain) == 0 {
		return nil, nil
	}
	if !s.Configured() {
		return plain, nil
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, goerr.Wrap(err, "failed to read nonce")
	}
	return s.aead.Seal(nonce, nonce, plain, nil), nil
}

func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) == 0 {
		return nil, nil
	}
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	size := s.aead.NonceSize()
	if len(sealed) < size {
		return nil, ErrCiphertextTooShort
	}
	plain, err := s.aead.Open(nil, sealed[:size], sealed[size:], nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sealed value")
	}
	return plain, nil
}

func (s *Sealer) SealString(value string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	return s.Seal([]byte(value))
}

// OpenString returns the plaintext of sealed, or "" when it cannot be opened with the
// configured key. Ciphertext is never returned.
func (s *Sealer) OpenString(ctx context.Context, sealed []byte) string {
	if len(sealed) == 0 {
		return ""
	}
	plain, err := s.Open(sealed)
	if err != nil {
		ctxlog.From(ctx).Warn("sealed value could not be opened", "configured", s.Configured(), "err", err)
		return ""
	}
	return string(plain)
}

// decodeKey accepts a 64-char hex key, a base64 key decoding to 32 bytes, or 32 raw bytes.
func decodeKey(raw string) []byte {
	if len(raw) == 64 {
		if decoded, err := hex.DecodeString(raw); err == nil {
			return decoded
		}
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding} {
		if decoded, err := enc.DecodeString(raw); err == nil && len(decoded) == 32 {
			return decoded
		}
	}
	return []byte(raw)
}
