package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pastesync/sync-server-go/internal/model"
)

type SessionRepository interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
	FindByCode(ctx context.Context, code string) (*model.Session, error)
	Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error)
	UpdateContent(ctx context.Context, id string, content string, kind model.ContentKind) (*model.Session, error)
	IncrementActiveUsers(ctx context.Context, id string, delta int) error
	DeleteExpired(ctx context.Context) (int64, error)
	DeleteAbandoned(ctx context.Context, threshold time.Duration) (int64, error)
	CountActive(ctx context.Context) (int, error)
	CountTotal(ctx context.Context) (int, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) SessionRepository
}

// sessionDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type sessionDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type sessionRepo struct {
	db sessionDB
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

func (r *sessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM sessions WHERE id = $1
	`, id)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) FindByCode(ctx context.Context, code string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM sessions WHERE code = $1
	`, code)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO sessions (id, code, content, content_kind, active_user_count, last_activity, expires_at)
		VALUES ($1, $2, '', 'text', 0, NOW(), $3)
		RETURNING *
	`, params.ID, params.Code, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// UpdateContent is a last-write-wins overwrite: no version check, the most
// recent write observed by the store replaces the whole document.
func (r *sessionRepo) UpdateContent(ctx context.Context, id string, content string, kind model.ContentKind) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		UPDATE sessions SET
			content = $2,
			content_kind = $3,
			last_activity = NOW()
		WHERE id = $1
		RETURNING *
	`, id, content, kind)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) IncrementActiveUsers(ctx context.Context, id string, delta int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			active_user_count = GREATEST(0, active_user_count + $2),
			last_activity = NOW()
		WHERE id = $1
	`, id, delta)
	return err
}

func (r *sessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE expires_at < NOW()
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *sessionRepo) DeleteAbandoned(ctx context.Context, threshold time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE active_user_count = 0
		AND last_activity < NOW() - ($1 * INTERVAL '1 second')
	`, int64(threshold.Seconds()))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *sessionRepo) CountActive(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM sessions
		WHERE expires_at > NOW() AND active_user_count > 0
	`)
	return count, err
}

func (r *sessionRepo) CountTotal(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM sessions
	`)
	return count, err
}
