package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	"github.com/pastesync/sync-server-go/internal/model"
	"github.com/pastesync/sync-server-go/internal/repository"
)

// sweepSessionRepo hands out its pending counts once; later sweeps find
// nothing left, mirroring a store where deleted rows stay deleted.
type sweepSessionRepo struct {
	mu             sync.Mutex
	expiredLeft    int64
	abandonedLeft  int64
	expiredCalls   int
	abandonedCalls int
	deleteErr      error
}

func (m *sweepSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return nil, nil
}

func (m *sweepSessionRepo) FindByCode(ctx context.Context, code string) (*model.Session, error) {
	return nil, nil
}

func (m *sweepSessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	return nil, nil
}

func (m *sweepSessionRepo) UpdateContent(ctx context.Context, id string, content string, kind model.ContentKind) (*model.Session, error) {
	return nil, nil
}

func (m *sweepSessionRepo) IncrementActiveUsers(ctx context.Context, id string, delta int) error {
	return nil
}

func (m *sweepSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expiredCalls++
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	n := m.expiredLeft
	m.expiredLeft = 0
	return n, nil
}

func (m *sweepSessionRepo) DeleteAbandoned(ctx context.Context, threshold time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.abandonedCalls++
	n := m.abandonedLeft
	m.abandonedLeft = 0
	return n, nil
}

func (m *sweepSessionRepo) CountActive(ctx context.Context) (int, error) { return 0, nil }

func (m *sweepSessionRepo) CountTotal(ctx context.Context) (int, error) { return 0, nil }

func (m *sweepSessionRepo) WithTx(tx *sqlx.Tx) repository.SessionRepository { return m }

type sweepDeviceRepo struct {
	mu         sync.Mutex
	staleLeft  int64
	staleCalls int
}

func (m *sweepDeviceRepo) FindByID(ctx context.Context, id string) (*model.SessionDevice, error) {
	return nil, nil
}

func (m *sweepDeviceRepo) Insert(ctx context.Context, params model.InsertDeviceParams) (*model.SessionDevice, error) {
	return nil, nil
}

func (m *sweepDeviceRepo) Touch(ctx context.Context, id string) (bool, error) {
	return false, nil
}

func (m *sweepDeviceRepo) Deactivate(ctx context.Context, id string) error { return nil }

func (m *sweepDeviceRepo) ListActive(ctx context.Context, sessionID string, staleness time.Duration) ([]model.SessionDevice, error) {
	return nil, nil
}

func (m *sweepDeviceRepo) DeactivateStale(ctx context.Context, staleness time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staleCalls++
	n := m.staleLeft
	m.staleLeft = 0
	return n, nil
}

func (m *sweepDeviceRepo) WithTx(tx *sqlx.Tx) repository.DeviceRepository { return m }

func TestSweep(t *testing.T) {
	t.Run("runs all three cleanup passes", func(t *testing.T) {
		sessionRepo := &sweepSessionRepo{expiredLeft: 3, abandonedLeft: 2}
		deviceRepo := &sweepDeviceRepo{staleLeft: 5}
		job := NewCleanupJob(sessionRepo, deviceRepo, time.Hour, 10*time.Minute, 90*time.Second)

		job.Sweep()

		assert.Equal(t, 1, sessionRepo.expiredCalls)
		assert.Equal(t, 1, sessionRepo.abandonedCalls)
		assert.Equal(t, 1, deviceRepo.staleCalls)
	})

	t.Run("second sweep over clean data is a no-op", func(t *testing.T) {
		sessionRepo := &sweepSessionRepo{expiredLeft: 3}
		deviceRepo := &sweepDeviceRepo{}
		job := NewCleanupJob(sessionRepo, deviceRepo, time.Hour, 10*time.Minute, 90*time.Second)

		job.Sweep()
		job.Sweep()

		assert.Equal(t, 2, sessionRepo.expiredCalls)
		assert.Equal(t, int64(0), sessionRepo.expiredLeft)
	})

	t.Run("a failing pass does not stop the others", func(t *testing.T) {
		sessionRepo := &sweepSessionRepo{deleteErr: errors.New("connection reset")}
		deviceRepo := &sweepDeviceRepo{staleLeft: 1}
		job := NewCleanupJob(sessionRepo, deviceRepo, time.Hour, 10*time.Minute, 90*time.Second)

		job.Sweep()

		assert.Equal(t, 1, sessionRepo.abandonedCalls)
		assert.Equal(t, 1, deviceRepo.staleCalls)
	})
}

func TestStartStop(t *testing.T) {
	t.Run("sweeps immediately on start and then on the ticker", func(t *testing.T) {
		sessionRepo := &sweepSessionRepo{}
		deviceRepo := &sweepDeviceRepo{}
		job := NewCleanupJob(sessionRepo, deviceRepo, 20*time.Millisecond, 10*time.Minute, 90*time.Second)

		job.Start()
		time.Sleep(70 * time.Millisecond)
		job.Stop()

		sessionRepo.mu.Lock()
		calls := sessionRepo.expiredCalls
		sessionRepo.mu.Unlock()
		assert.GreaterOrEqual(t, calls, 2)
	})

	t.Run("stop halts further sweeps", func(t *testing.T) {
		sessionRepo := &sweepSessionRepo{}
		deviceRepo := &sweepDeviceRepo{}
		job := NewCleanupJob(sessionRepo, deviceRepo, 20*time.Millisecond, 10*time.Minute, 90*time.Second)

		job.Start()
		time.Sleep(30 * time.Millisecond)
		job.Stop()

		sessionRepo.mu.Lock()
		callsAtStop := sessionRepo.expiredCalls
		sessionRepo.mu.Unlock()

		time.Sleep(60 * time.Millisecond)

		sessionRepo.mu.Lock()
		callsAfter := sessionRepo.expiredCalls
		sessionRepo.mu.Unlock()
		assert.Equal(t, callsAtStop, callsAfter)
	})
}
