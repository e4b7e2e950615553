package client

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pastesync/sync-server-go/internal/model"
)

func testCache(t *testing.T) *Cache {
	t.Helper()
	cache, err := OpenCache(filepath.Join(t.TempDir(), "nested", "session.json"))
	require.NoError(t, err)
	return cache
}

func TestCacheRoundTrip(t *testing.T) {
	cache := testCache(t)

	record := &Record{
		SessionCode: "AB3K9QZ",
		DeviceID:    "123e4567-e89b-12d3-a456-426614174000",
		DisplayName: "foxfire",
		ColorTag:    "bg-red-500",
		JoinedAt:    time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, cache.Persist(record))

	loaded, err := cache.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, record.SessionCode, loaded.SessionCode)
	assert.Equal(t, record.DeviceID, loaded.DeviceID)
	assert.Equal(t, record.DisplayName, loaded.DisplayName)
	assert.True(t, record.JoinedAt.Equal(loaded.JoinedAt))
	assert.Equal(t, model.DisconnectNone, loaded.DisconnectReason)
}

func TestCacheLoadMissing(t *testing.T) {
	cache := testCache(t)

	record, err := cache.Load()
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestCacheLoadCorrupt(t *testing.T) {
	cache := testCache(t)
	require.NoError(t, os.WriteFile(cache.Path(), []byte("{not json"), 0o600))

	record, err := cache.Load()
	require.NoError(t, err)
	assert.Nil(t, record)

	_, statErr := os.Stat(cache.Path())
	assert.True(t, os.IsNotExist(statErr), "corrupt file should be removed")
}

func TestCacheClear(t *testing.T) {
	cache := testCache(t)
	require.NoError(t, cache.Persist(&Record{SessionCode: "AB3K9QZ"}))

	require.NoError(t, cache.Clear())

	record, err := cache.Load()
	require.NoError(t, err)
	assert.Nil(t, record)

	assert.NoError(t, cache.Clear(), "clearing twice is fine")
}

func TestCachePersistOverwrites(t *testing.T) {
	cache := testCache(t)
	require.NoError(t, cache.Persist(&Record{SessionCode: "AB3K9QZ", DeviceID: "d1"}))
	require.NoError(t, cache.Persist(&Record{SessionCode: "AB3K9QZ", DeviceID: "d1", DisconnectReason: model.DisconnectKicked}))

	loaded, err := cache.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, model.DisconnectKicked, loaded.DisconnectReason)
	assert.True(t, loaded.DisconnectReason.Terminal())
}
