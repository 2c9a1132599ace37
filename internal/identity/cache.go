// ABOUTME: On-disk session cache so a restarted client can restore its session
// ABOUTME: Stores the provider token set as JSON with owner-only permissions

package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// sessionCache persists the provider's token set between runs. This is the
// provider's own persistence (the browser equivalent is local storage); the
// rest of the client never reads the file directly.
type sessionCache struct {
	path string
}

// load reads the cached session. Returns (nil, nil) when no cache exists.
func (c *sessionCache) load() (*Session, error) {
	if c == nil || c.path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session cache: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("parsing session cache: %w", err)
	}
	if sess.AccessToken == "" {
		return nil, nil
	}
	return &sess, nil
}

// save writes the session to disk, creating parent directories as needed.
func (c *sessionCache) save(sess *Session) error {
	if c == nil || c.path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session cache: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0600); err != nil {
		return fmt.Errorf("writing session cache: %w", err)
	}
	return nil
}

// clear removes the cached session. Missing files are not an error.
func (c *sessionCache) clear() error {
	if c == nil || c.path == "" {
		return nil
	}
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing session cache: %w", err)
	}
	return nil
}
