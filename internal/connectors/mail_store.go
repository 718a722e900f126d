package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
)

// MailStore archives raw messages on disk, content-addressed so refetches of
// the same message are free.
type MailStore struct {
	rawMailDir string
}

func NewMailStore(rawMailDir string) *MailStore {
	return &MailStore{rawMailDir: rawMailDir}
}

// Archive writes the raw message to <sha256>.eml and returns the path and
// content hash. Existing files are left untouched.
func (s *MailStore) Archive(raw []byte) (string, string, error) {
	hashBytes := sha256.Sum256(raw)
	hash := hex.EncodeToString(hashBytes[:])

	if err := os.MkdirAll(s.rawMailDir, 0o755); err != nil {
		return "", "", err
	}

	rawPath := filepath.Join(s.rawMailDir, hash+".eml")
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, raw, 0o644); err != nil {
			return "", "", err
		}
	}
	return rawPath, hash, nil
}
