package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pastesync/sync-server-go/internal/model"
)

// pushStore records UpdateContent calls; the rest of the Store surface is
// unused by the syncer.
type pushStore struct {
	mu       sync.Mutex
	pushes   []string
	failNext int
}

func (s *pushStore) UpdateContent(ctx context.Context, sessionID, content string, kind model.ContentKind) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext > 0 {
		s.failNext--
		return nil, errors.New("connection reset")
	}
	s.pushes = append(s.pushes, content)
	return &model.Session{ID: sessionID, Content: content, ContentKind: kind}, nil
}

func (s *pushStore) pushed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.pushes...)
}

func (s *pushStore) CreateSession(ctx context.Context) (*model.Session, error) { return nil, nil }

func (s *pushStore) FindSession(ctx context.Context, code string) (*model.Session, error) {
	return nil, nil
}

func (s *pushStore) JoinSession(ctx context.Context, code, name, color string) (*model.Session, *model.SessionDevice, error) {
	return nil, nil, nil
}

func (s *pushStore) TouchDevice(ctx context.Context, deviceID string) (bool, error) {
	return false, nil
}

func (s *pushStore) LeaveSession(ctx context.Context, sessionID, deviceID string) error { return nil }

func (s *pushStore) KickDevice(ctx context.Context, sessionID, targetDeviceID string) error {
	return nil
}

func (s *pushStore) ListActiveDevices(ctx context.Context, sessionID string) ([]model.SessionDevice, error) {
	return nil, nil
}

func TestSyncerCoalescesRapidEdits(t *testing.T) {
	store := &pushStore{}
	syncer := newSyncer(context.Background(), store, "s1", 30*time.Millisecond)
	defer syncer.Stop()

	for _, content := range []string{"h", "he", "hel", "hell", "hello"} {
		syncer.Queue(content, model.ContentKindText)
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return len(store.pushed()) > 0
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"hello"}, store.pushed(), "only the final edit should be written")
}

func TestSyncerPushesAgainAfterQuietPeriod(t *testing.T) {
	store := &pushStore{}
	syncer := newSyncer(context.Background(), store, "s1", 20*time.Millisecond)
	defer syncer.Stop()

	syncer.Queue("first", model.ContentKindText)
	require.Eventually(t, func() bool {
		return len(store.pushed()) == 1
	}, time.Second, 5*time.Millisecond)

	syncer.Queue("second", model.ContentKindCode)
	require.Eventually(t, func() bool {
		return len(store.pushed()) == 2
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"first", "second"}, store.pushed())
}

func TestSyncerRetriesFailedPush(t *testing.T) {
	store := &pushStore{failNext: 1}
	syncer := newSyncer(context.Background(), store, "s1", 20*time.Millisecond)
	defer syncer.Stop()

	syncer.Queue("hello", model.ContentKindText)

	require.Eventually(t, func() bool {
		return len(store.pushed()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"hello"}, store.pushed())
}

func TestSyncerNewerEditSupersedesFailedPush(t *testing.T) {
	store := &pushStore{failNext: 1}
	syncer := newSyncer(context.Background(), store, "s1", 20*time.Millisecond)
	defer syncer.Stop()

	syncer.Queue("stale", model.ContentKindText)
	time.Sleep(25 * time.Millisecond) // first push fails
	syncer.Queue("fresh", model.ContentKindText)

	require.Eventually(t, func() bool {
		return len(store.pushed()) > 0
	}, time.Second, 5*time.Millisecond)

	pushes := store.pushed()
	assert.Equal(t, "fresh", pushes[len(pushes)-1])
	assert.NotContains(t, pushes, "stale")
}

func TestSyncerStopDropsPendingPush(t *testing.T) {
	store := &pushStore{}
	syncer := newSyncer(context.Background(), store, "s1", 20*time.Millisecond)

	syncer.Queue("never written", model.ContentKindText)
	syncer.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, store.pushed())

	syncer.Queue("after stop", model.ContentKindText)
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, store.pushed())
}
