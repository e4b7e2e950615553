package model

import "time"

// SessionDevice is one client's presence row in a session. Rows are never
// deleted on leave or kick; is_active flips instead, so a returning client
// can reclaim its identity.
type SessionDevice struct {
	ID          string    `db:"id" json:"id"`
	SessionID   string    `db:"session_id" json:"sessionId"`
	SessionCode string    `db:"session_code" json:"sessionCode"`
	DisplayName string    `db:"display_name" json:"displayName"`
	ColorTag    string    `db:"color_tag" json:"colorTag"`
	JoinedAt    time.Time `db:"joined_at" json:"joinedAt"`
	LastSeen    time.Time `db:"last_seen" json:"lastSeen"`
	IsActive    bool      `db:"is_active" json:"isActive"`
}

type InsertDeviceParams struct {
	ID          string
	SessionID   string
	SessionCode string
	DisplayName string
	ColorTag    string
}
