package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Session codes: 7 uppercase alphanumerics, retried on collision.
const (
	SessionCodeLength = 7
	SessionCodeChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Presence. Staleness must exceed the heartbeat interval with margin so a
// single missed tick does not mark a device dead.
const (
	HeartbeatInterval = 30 * time.Second
	PresenceStaleness = 90 * time.Second
	DebounceWindow    = 500 * time.Millisecond
	ReconnectDelay    = 2 * time.Second
	MaxReconnectTries = 5
)

// Background cleanup
const (
	CleanupJobInterval = 5 * time.Minute
	AbandonedThreshold = 10 * time.Minute
)

// Default rate limiting
const DefaultRateLimitPerMin = 60

// Request body cap for content pushes
const MaxContentBytes = 1 << 20
