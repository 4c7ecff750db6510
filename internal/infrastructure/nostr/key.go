package nostr

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nbd-wtf/go-nostr"
)

const keyFile = "nostr.key"

// LoadOrCreateKey returns key if set. Otherwise it reads the key persisted in
// datadir, generating and persisting a new one the first time.
func LoadOrCreateKey(datadir, key string) (string, error) {
	if key != "" {
		if _, err := nostr.GetPublicKey(key); err != nil {
			return "", fmt.Errorf("invalid nostr private key: %w", err)
		}
		return key, nil
	}

	path := filepath.Join(datadir, keyFile)
	buf, err := os.ReadFile(path)
	if err == nil {
		return strings.TrimSpace(string(buf)), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to read nostr key: %w", err)
	}

	if err := os.MkdirAll(datadir, 0755); err != nil {
		return "", fmt.Errorf("failed to create datadir: %w", err)
	}
	key = nostr.GeneratePrivateKey()
	if err := os.WriteFile(path, []byte(key), 0600); err != nil {
		return "", fmt.Errorf("failed to persist nostr key: %w", err)
	}
	return key, nil
}
