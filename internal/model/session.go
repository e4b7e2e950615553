package model

import "time"

type Session struct {
	ID              string      `db:"id" json:"id"`
	Code            string      `db:"code" json:"code"`
	Content         string      `db:"content" json:"content"`
	ContentKind     ContentKind `db:"content_kind" json:"contentKind"`
	ActiveUserCount int         `db:"active_user_count" json:"activeUserCount"`
	LastActivity    time.Time   `db:"last_activity" json:"lastActivity"`
	ExpiresAt       time.Time   `db:"expires_at" json:"expiresAt"`
	CreatedAt       time.Time   `db:"created_at" json:"createdAt"`
}

// Expired reports whether the session has passed its TTL. expires_at is set
// once at creation and never extended.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

type CreateSessionParams struct {
	ID        string
	Code      string
	ExpiresAt time.Time
}
