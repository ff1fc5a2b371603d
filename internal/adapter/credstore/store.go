package credstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"glow2mqtt/internal/core/port"
)

var accountFileRegexp = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// FileStore keeps one JSON credential file per account under a base
// directory. Writes go through a temp file + rename so a crash mid-write
// never leaves a truncated credential behind.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create credentials dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Load(account string) (port.Credential, error) {
	data, err := os.ReadFile(s.path(account))
	if err != nil {
		if os.IsNotExist(err) {
			return port.Credential{}, port.ErrCredentialNotFound
		}
		return port.Credential{}, fmt.Errorf("read credential: %w", err)
	}
	var cred port.Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return port.Credential{}, fmt.Errorf("decode credential: %w", err)
	}
	return cred, nil
}

func (s *FileStore) Save(account string, cred port.Credential) error {
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	path := s.path(account)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp")
	if err != nil {
		return fmt.Errorf("create temp credential: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write credential: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close credential: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace credential: %w", err)
	}
	return nil
}

func (s *FileStore) path(account string) string {
	name := accountFileRegexp.ReplaceAllString(account, "_")
	return filepath.Join(s.dir, name+".json")
}

// ensure interface compliance
var _ port.CredentialStore = (*FileStore)(nil)
