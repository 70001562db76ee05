// Package secrets stores per-organization provider credentials encrypted at
// rest. Only the ciphertext and an opaque reference string are persisted;
// plaintext secrets never touch the database or the logs.
package secrets

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ghostcrm/messaging/internal/messaging/domain"
	"github.com/ghostcrm/messaging/internal/messaging/repository"
	"golang.org/x/crypto/hkdf"
)

const keyDerivationInfo = "ghostcrm-provider-secrets"

// Store encrypts and persists provider secret bundles. Keys are derived per
// organization from a process-wide master key via HKDF-SHA256, so a leaked
// per-org key does not expose other tenants.
type Store struct {
	masterKey []byte
	repo      repository.SecretRepository
	db        repository.Querier
}

// NewStore creates a secret store from a base64-encoded master key.
func NewStore(masterKeyB64 string, repo repository.SecretRepository, db repository.Querier) (*Store, error) {
	if masterKeyB64 == "" {
		return nil, errors.New("secrets master key not configured")
	}
	masterKey, err := base64.StdEncoding.DecodeString(masterKeyB64)
	if err != nil {
		return nil, fmt.Errorf("decode secrets master key: %w", err)
	}
	if len(masterKey) < 16 {
		return nil, errors.New("secrets master key must be at least 16 bytes")
	}
	return &Store{masterKey: masterKey, repo: repo, db: db}, nil
}

// Save encrypts the secret bundle and inserts it under a fresh reference.
// References are append-only: a re-save of the same org+provider produces a
// new reference and leaves prior blobs untouched.
func (s *Store) Save(ctx context.Context, orgID, providerID string, secretsObj map[string]string) (string, error) {
	plaintext, err := json.Marshal(secretsObj)
	if err != nil {
		return "", fmt.Errorf("marshal secrets: %w", err)
	}

	aead, err := s.aeadForOrg(orgID)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	ciphertext := aead.Seal(nonce, nonce, plaintext, []byte(orgID))

	ref, err := newRef(orgID)
	if err != nil {
		return "", err
	}

	if err := s.repo.Insert(ctx, s.db, ref, orgID, providerID, base64.StdEncoding.EncodeToString(ciphertext)); err != nil {
		return "", fmt.Errorf("persist secret blob: %w", err)
	}
	return ref, nil
}

// Load decrypts the blob behind a reference. Any failure along the way
// (unknown ref, corrupt ciphertext, GCM tag mismatch) maps to
// domain.ErrDecryptionFailed: a tampered blob is never returned as a
// silently-wrong object.
func (s *Store) Load(ctx context.Context, ref string) (map[string]string, error) {
	ciphertextB64, err := s.repo.GetCiphertext(ctx, s.db, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrDecryptionFailed, err.Error())
	}

	data, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return nil, fmt.Errorf("%w: base64 decode failed", domain.ErrDecryptionFailed)
	}

	orgID, ok := orgFromRef(ref)
	if !ok {
		return nil, fmt.Errorf("%w: malformed reference", domain.ErrDecryptionFailed)
	}

	aead, err := s.aeadForOrg(orgID)
	if err != nil {
		return nil, err
	}

	if len(data) < aead.NonceSize()+aead.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", domain.ErrDecryptionFailed)
	}
	nonce := data[:aead.NonceSize()]
	plaintext, err := aead.Open(nil, nonce, data[aead.NonceSize():], []byte(orgID))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrDecryptionFailed, err.Error())
	}

	var secretsObj map[string]string
	if err := json.Unmarshal(plaintext, &secretsObj); err != nil {
		return nil, fmt.Errorf("%w: payload not valid JSON", domain.ErrDecryptionFailed)
	}
	return secretsObj, nil
}

func (s *Store) aeadForOrg(orgID string) (cipher.AEAD, error) {
	reader := hkdf.New(sha256.New, s.masterKey, []byte(orgID), []byte(keyDerivationInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("derive org key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// newRef builds a reference scoped to org+timestamp plus random suffix, e.g.
// "sec_org-42_1724832000000000000_a1b2c3d4e5f6".
func newRef(orgID string) (string, error) {
	suffix := make([]byte, 6)
	if _, err := io.ReadFull(rand.Reader, suffix); err != nil {
		return "", fmt.Errorf("generate reference: %w", err)
	}
	return fmt.Sprintf("sec_%s_%d_%s", orgID, time.Now().UnixNano(), hex.EncodeToString(suffix)), nil
}

// orgFromRef extracts the organization ID embedded in a reference. The org ID
// may itself contain underscores, so parse from both ends.
func orgFromRef(ref string) (string, bool) {
	if !strings.HasPrefix(ref, "sec_") {
		return "", false
	}
	rest := ref[len("sec_"):]
	// Strip "_<unixnano>_<hex>" from the right.
	i := strings.LastIndex(rest, "_")
	if i <= 0 {
		return "", false
	}
	rest = rest[:i]
	i = strings.LastIndex(rest, "_")
	if i <= 0 {
		return "", false
	}
	return rest[:i], true
}
