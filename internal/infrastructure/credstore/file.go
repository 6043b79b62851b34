// Package credstore holds the durable implementations of
// ports.CredentialStore that live on the local machine.
package credstore

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/docflow/ingest-console/internal/core/ports"
)

const (
	credentialsDir  = ".ingest"
	credentialsFile = "credentials.json"

	saltSize  = 16
	nonceSize = 24
	keySize   = 32
)

var ErrWrongPassphrase = errors.New("credential file cannot be opened with this passphrase")

// fileRecord is the on-disk layout. Exactly one of AccessToken and Sealed is set.
type fileRecord struct {
	AccessToken string    `json:"access_token,omitempty"`
	Sealed      []byte    `json:"sealed,omitempty"`
	Salt        []byte    `json:"salt,omitempty"`
	SavedAt     time.Time `json:"saved_at"`
}

// FileStore keeps the access token in a JSON file readable only by the
// owner. With a passphrase the token is sealed with a key derived by argon2id.
type FileStore struct {
	path       string
	passphrase []byte

	mu sync.Mutex
}

var _ ports.CredentialStore = (*FileStore)(nil)

// DefaultPath returns ~/.ingest/credentials.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, credentialsDir, credentialsFile), nil
}

// NewFileStore creates the parent directory of path if needed. An empty path
// means DefaultPath; an empty passphrase stores the token unsealed.
func NewFileStore(path, passphrase string) (*FileStore, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create credentials directory: %w", err)
	}
	s := &FileStore{path: path}
	if passphrase != "" {
		s.passphrase = []byte(passphrase)
	}
	return s, nil
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read credentials file: %w", err)
	}
	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", fmt.Errorf("failed to unmarshal credentials: %w", err)
	}
	if rec.Sealed == nil {
		return rec.AccessToken, nil
	}
	if s.passphrase == nil {
		return "", ErrWrongPassphrase
	}
	return s.open(rec)
}

func (s *FileStore) Set(_ context.Context, accessToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := fileRecord{SavedAt: time.Now().UTC()}
	if s.passphrase == nil {
		rec.AccessToken = accessToken
	} else if err := s.seal(&rec, accessToken); err != nil {
		return err
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace credentials file: %w", err)
	}
	return nil
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credentials file: %w", err)
	}
	return nil
}

func (s *FileStore) seal(rec *fileRecord, accessToken string) error {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	key := s.key(salt)
	rec.Salt = salt
	rec.Sealed = secretbox.Seal(nonce[:], []byte(accessToken), &nonce, key)
	return nil
}

func (s *FileStore) open(rec fileRecord) (string, error) {
	if len(rec.Sealed) < nonceSize {
		return "", ErrWrongPassphrase
	}
	var nonce [nonceSize]byte
	copy(nonce[:], rec.Sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, rec.Sealed[nonceSize:], &nonce, s.key(rec.Salt))
	if !ok {
		return "", ErrWrongPassphrase
	}
	return string(plain), nil
}

func (s *FileStore) key(salt []byte) *[keySize]byte {
	var key [keySize]byte
	copy(key[:], argon2.IDKey(s.passphrase, salt, 1, 64*1024, 4, keySize))
	return &key
}
