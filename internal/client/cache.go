package client

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pastesync/sync-server-go/internal/model"
)

const (
	cacheNamespace = "pastesync"
	cacheFileName  = "session.json"
)

// Record is the local client record: just enough identity to resume a
// session after a reload or network blip. It is owned by one client and
// never authoritative; the store is.
type Record struct {
	SessionCode      string                 `json:"sessionCode"`
	DeviceID         string                 `json:"deviceId"`
	DisplayName      string                 `json:"displayName"`
	ColorTag         string                 `json:"colorTag"`
	JoinedAt         time.Time              `json:"joinedAt"`
	DisconnectReason model.DisconnectReason `json:"disconnectReason,omitempty"`
}

// Cache persists the record as a single JSON file. Written on join and
// disconnect, read once at startup, removed on manual leave or permanently
// failed reconnection.
type Cache struct {
	path string
}

func DefaultCachePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, cacheNamespace, cacheFileName), nil
}

// OpenCache prepares a cache at path, creating parent directories. An empty
// path uses the platform default config location.
func OpenCache(path string) (*Cache, error) {
	if path == "" {
		var err error
		path, err = DefaultCachePath()
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	return &Cache{path: path}, nil
}

func (c *Cache) Path() string {
	return c.path
}

// Load returns the saved record, or nil if none exists. A corrupt file is
// discarded rather than blocking startup.
func (c *Cache) Load() (*Record, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		log.Warn().Err(err).Str("path", c.path).Msg("discarding corrupt client record")
		_ = c.Clear()
		return nil, nil
	}
	return &record, nil
}

// Persist writes the record atomically via a temp file and rename.
func (c *Cache) Persist(record *Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}

func (c *Cache) Clear() error {
	err := os.Remove(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
