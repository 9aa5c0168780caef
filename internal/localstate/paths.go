// Package localstate resolves where the vault keeps its files on this
// machine: the sqlite database, backups and the session token.
package localstate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	envHome       = "VAULT_HOME"    // override for tests
	dirName       = ".memory-vault" // default under $HOME
	dbFilename    = "vault.db"
	backupDirName = "backups"
	tokenFilename = "token"
)

// DataDir returns the directory where local state is stored (~/.memory-vault).
// It creates the directory with 0700 permissions if it does not exist.
func DataDir() (string, error) {
	if custom := os.Getenv(envHome); custom != "" {
		if err := os.MkdirAll(custom, 0o700); err != nil {
			return "", err
		}
		return custom, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine user home: %w", err)
	}
	dir := filepath.Join(home, dirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

// DBPath returns the absolute path to the SQLite database file.
func DBPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, dbFilename), nil
}

// BackupDir returns the default directory for backup files, creating it.
func BackupDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	backups := filepath.Join(dir, backupDirName)
	if err := os.MkdirAll(backups, 0o700); err != nil {
		return "", err
	}
	return backups, nil
}

func tokenPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, tokenFilename), nil
}

// LoadToken returns the stored session token, "" when none is stored.
func LoadToken() (string, error) {
	p, err := tokenPath()
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// SaveToken stores the session token readable only by the current user.
func SaveToken(token string) error {
	p, err := tokenPath()
	if err != nil {
		return err
	}
	return os.WriteFile(p, []byte(token+"\n"), 0o600)
}

// ClearToken removes the stored token. A missing token is not an error.
func ClearToken() error {
	p, err := tokenPath()
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
