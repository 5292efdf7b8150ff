package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultAPIURL = "http://localhost:8080"
	tokenFileName = ".hci_undo_token"
)

// ErrNotLoggedIn is returned by LoadToken when no token has been saved.
var ErrNotLoggedIn = errors.New("not logged in: run `hci-undo login` first")

// APIURL returns the base URL for the HCI undo API.
// It can be overridden with the HCI_UNDO_API_URL environment variable.
func APIURL() string {
	if v := os.Getenv("HCI_UNDO_API_URL"); v != "" {
		return strings.TrimRight(v, "/")
	}
	return defaultAPIURL
}

// TokenPath is where the JWT is kept between commands (HCI_UNDO_TOKEN_FILE overrides it).
func TokenPath() string {
	if v := os.Getenv("HCI_UNDO_TOKEN_FILE"); v != "" {
		return v
	}
	dir, _ := os.UserHomeDir()
	return filepath.Join(dir, tokenFileName)
}

func SaveToken(token string) error {
	return os.WriteFile(TokenPath(), []byte(token), 0600)
}

func LoadToken() (string, error) {
	data, err := os.ReadFile(TokenPath())
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotLoggedIn
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// DeleteToken removes the saved token. It reports false when none was saved.
func DeleteToken() (bool, error) {
	err := os.Remove(TokenPath())
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}
