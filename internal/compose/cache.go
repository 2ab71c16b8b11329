package compose

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"sync"
)

// Fingerprint returns the hex SHA-256 of a compose file's content.
func Fingerprint(body []byte) (string, error) {
	if len(body) == 0 {
		return "", errors.New("compose body is empty")
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

// Cache re-parses a compose file only when its content fingerprint changes.
type Cache struct {
	mu          sync.Mutex
	fingerprint string
	services    DeclaredServices
}

// Load returns the declared services of the file at path.
func (c *Cache) Load(ctx context.Context, path string, env map[string]string) (DeclaredServices, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fingerprint, err := Fingerprint(body)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if fingerprint == c.fingerprint {
		return c.services, nil
	}

	services, err := ParseDeclaredServices(ctx, body, env)
	if err != nil {
		return nil, err
	}
	c.fingerprint = fingerprint
	c.services = services
	return services, nil
}
