package model

type ContentKind string

const (
	ContentKindText ContentKind = "text"
	ContentKindCode ContentKind = "code"
)

func (k ContentKind) Valid() bool {
	return k == ContentKindText || k == ContentKindCode
}

// DisconnectReason records why a client left a session. It lives in the
// local client record, never in the store.
type DisconnectReason string

const (
	// DisconnectNone marks an involuntary interruption (reload, crash,
	// network loss); the client is allowed to resume.
	DisconnectNone DisconnectReason = ""

	DisconnectManual  DisconnectReason = "manual"
	DisconnectKicked  DisconnectReason = "kicked"
	DisconnectTimeout DisconnectReason = "timeout"
)

// Terminal reports whether the reason forbids automatic reconnection.
func (r DisconnectReason) Terminal() bool {
	return r == DisconnectManual || r == DisconnectKicked
}
