package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pastesync/sync-server-go/internal/model"
)

type DeviceRepository interface {
	FindByID(ctx context.Context, id string) (*model.SessionDevice, error)
	Insert(ctx context.Context, params model.InsertDeviceParams) (*model.SessionDevice, error)
	// Touch records a heartbeat: last_seen = now, is_active = true.
	// Returns false if no row with that id exists.
	Touch(ctx context.Context, id string) (bool, error)
	Deactivate(ctx context.Context, id string) error
	ListActive(ctx context.Context, sessionID string, staleness time.Duration) ([]model.SessionDevice, error)
	DeactivateStale(ctx context.Context, staleness time.Duration) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) DeviceRepository
}

type deviceDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type deviceRepo struct {
	db deviceDB
}

func NewDeviceRepository(db *sqlx.DB) DeviceRepository {
	return &deviceRepo{db: db}
}

func (r *deviceRepo) WithTx(tx *sqlx.Tx) DeviceRepository {
	return &deviceRepo{db: tx}
}

func (r *deviceRepo) FindByID(ctx context.Context, id string) (*model.SessionDevice, error) {
	var device model.SessionDevice
	err := r.db.GetContext(ctx, &device, `
		SELECT * FROM session_devices WHERE id = $1
	`, id)
	return HandleNotFound(&device, err)
}

func (r *deviceRepo) Insert(ctx context.Context, params model.InsertDeviceParams) (*model.SessionDevice, error) {
	var device model.SessionDevice
	err := r.db.GetContext(ctx, &device, `
		INSERT INTO session_devices (id, session_id, session_code, display_name, color_tag, joined_at, last_seen, is_active)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW(), TRUE)
		RETURNING *
	`, params.ID, params.SessionID, params.SessionCode, params.DisplayName, params.ColorTag)
	if err != nil {
		return nil, err
	}
	return &device, nil
}

func (r *deviceRepo) Touch(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE session_devices SET
			last_seen = NOW(),
			is_active = TRUE
		WHERE id = $1
	`, id)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// Deactivate marks the device inactive without deleting the row, so a later
// reconnect can reclaim the identity.
func (r *deviceRepo) Deactivate(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE session_devices SET
			is_active = FALSE
		WHERE id = $1
	`, id)
	return err
}

func (r *deviceRepo) ListActive(ctx context.Context, sessionID string, staleness time.Duration) ([]model.SessionDevice, error) {
	devices := []model.SessionDevice{}
	err := r.db.SelectContext(ctx, &devices, `
		SELECT * FROM session_devices
		WHERE session_id = $1
		AND is_active = TRUE
		AND last_seen > NOW() - ($2 * INTERVAL '1 second')
		ORDER BY joined_at ASC
	`, sessionID, int64(staleness.Seconds()))
	if err != nil {
		return nil, err
	}
	return devices, nil
}

func (r *deviceRepo) DeactivateStale(ctx context.Context, staleness time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE session_devices SET
			is_active = FALSE
		WHERE is_active = TRUE
		AND last_seen < NOW() - ($1 * INTERVAL '1 second')
	`, int64(staleness.Seconds()))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
