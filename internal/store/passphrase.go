package store

import (
	"crypto/rand"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/scrypt"
)

const (
	saltFile  = "salt"
	saltBytes = 16
	keyBytes  = 32
)

// Tunables for scrypt key derivation.
func scryptParams() (N, r, p int) { return 1 << 15, 8, 1 }

// DeriveKey turns a passphrase into the 32-byte pickle key using scrypt with
// a salt persisted alongside the store. The salt is created on first use.
func (s *FileStore) DeriveKey(passphrase string) ([]byte, error) {
	salt, err := s.loadOrCreateSalt()
	if err != nil {
		return nil, err
	}
	N, r, p := scryptParams()
	return scrypt.Key([]byte(passphrase), salt, N, r, p, keyBytes)
}

func (s *FileStore) loadOrCreateSalt() ([]byte, error) {
	path := filepath.Join(s.home, saltFile)
	salt, err := os.ReadFile(path)
	if err == nil {
		if len(salt) != saltBytes {
			return nil, errors.New("corrupt salt file")
		}
		return salt, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	salt = make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.home, 0o700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, salt, 0o600); err != nil {
		return nil, err
	}
	return salt, nil
}
