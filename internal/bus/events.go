package bus

import (
	"encoding/json"

	"github.com/pastesync/sync-server-go/internal/model"
)

// Event types carried on a session channel. Row-level changes and
// out-of-band broadcasts share one channel; broadcasts are delivered to
// every subscriber regardless of which row changed.
const (
	TypeSessionChanged = "session_changed"
	TypeDevicesChanged = "devices_changed"
	TypeBroadcast      = "broadcast"
)

// Broadcast message names
const BroadcastDeviceKicked = "device_kicked"

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// SessionChange mirrors a row-level change on the sessions table.
type SessionChange struct {
	Before *model.Session `json:"before,omitempty"`
	After  *model.Session `json:"after,omitempty"`
}

// DevicesChange signals that the set of attached devices changed;
// subscribers re-list active devices rather than patching locally.
type DevicesChange struct {
	SessionID string `json:"sessionId"`
}

// BroadcastMessage is an out-of-band message, e.g. a kick notice naming
// the evicted device.
type BroadcastMessage struct {
	Event          string `json:"event"`
	TargetDeviceID string `json:"targetDeviceId,omitempty"`
}

func NewSessionChangedEvent(before, after *model.Session) (Event, error) {
	data, err := json.Marshal(SessionChange{Before: before, After: after})
	if err != nil {
		return Event{}, err
	}
	return Event{Type: TypeSessionChanged, Data: data}, nil
}

func NewDevicesChangedEvent(sessionID string) (Event, error) {
	data, err := json.Marshal(DevicesChange{SessionID: sessionID})
	if err != nil {
		return Event{}, err
	}
	return Event{Type: TypeDevicesChanged, Data: data}, nil
}

func NewBroadcastEvent(msg BroadcastMessage) (Event, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: TypeBroadcast, Data: data}, nil
}
