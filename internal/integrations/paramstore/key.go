package paramstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// KeyFunc resolves a provider API key at call time.
type KeyFunc func(ctx context.Context) (string, error)

// StaticKey returns a KeyFunc for a key known at startup, such as one read
// from the environment.
func StaticKey(key string) KeyFunc {
	key = strings.TrimSpace(key)
	return func(context.Context) (string, error) {
		if key == "" {
			return "", errors.New("paramstore: API key is empty")
		}
		return key, nil
	}
}

// tokenPayload is the expected JSON shape stored in SSM for an API token.
type tokenPayload struct {
	Token string `json:"token"`
}

// tokenCache holds the first successfully fetched token. Failures are not
// cached so the next call retries SSM.
type tokenCache struct {
	getter Getter
	name   string

	mu     sync.RWMutex
	loaded bool
	token  string
}

// TokenKey returns a KeyFunc that reads a {"token": "..."} JSON parameter on
// first use and reuses it for the lifetime of the process.
func TokenKey(getter Getter, name string) KeyFunc {
	c := &tokenCache{getter: getter, name: strings.TrimSpace(name)}
	return c.resolve
}

func (c *tokenCache) resolve(ctx context.Context) (string, error) {
	c.mu.RLock()
	if c.loaded {
		token := c.token
		c.mu.RUnlock()
		return token, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return c.token, nil
	}
	token, err := fetchToken(ctx, c.getter, c.name)
	if err != nil {
		return "", err
	}
	c.token = token
	c.loaded = true
	return token, nil
}

func fetchToken(ctx context.Context, getter Getter, name string) (string, error) {
	if getter == nil {
		return "", errors.New("paramstore: getter is nil")
	}
	if name == "" {
		return "", errors.New("paramstore: token parameter name is empty")
	}

	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("paramstore: fetch token: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("paramstore: unmarshal token value as JSON: %w", err)
	}
	if tp.Token == "" {
		return "", errors.New("paramstore: API token is empty")
	}
	return tp.Token, nil
}
