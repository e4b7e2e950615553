package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pastesync/sync-server-go/internal/bus"
	"github.com/pastesync/sync-server-go/internal/config"
	apperrors "github.com/pastesync/sync-server-go/internal/errors"
	"github.com/pastesync/sync-server-go/internal/model"
)

// Store is the session store surface the client engine consumes. The
// server-side SessionService satisfies it directly for in-process use.
type Store interface {
	CreateSession(ctx context.Context) (*model.Session, error)
	FindSession(ctx context.Context, code string) (*model.Session, error)
	JoinSession(ctx context.Context, code, name, color string) (*model.Session, *model.SessionDevice, error)
	UpdateContent(ctx context.Context, sessionID, content string, kind model.ContentKind) (*model.Session, error)
	TouchDevice(ctx context.Context, deviceID string) (bool, error)
	LeaveSession(ctx context.Context, sessionID, deviceID string) error
	KickDevice(ctx context.Context, sessionID, targetDeviceID string) error
	ListActiveDevices(ctx context.Context, sessionID string) ([]model.SessionDevice, error)
}

// Bus hands out cancellable subscriptions to a session's event stream.
type Bus interface {
	Subscribe(sessionID string) *bus.Subscriber
	Unsubscribe(sub *bus.Subscriber)
}

// State of the client's attachment lifecycle.
type State string

const (
	StateFresh        State = "fresh"
	StateJoining      State = "joining"
	StateAttached     State = "attached"
	StateDisconnected State = "disconnected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

// ErrNoSavedSession is returned by Resume when no local record exists.
var ErrNoSavedSession = errors.New("no saved session to resume")

type Options struct {
	HeartbeatInterval time.Duration
	DebounceWindow    time.Duration
	ReconnectDelay    time.Duration
	MaxReconnectTries int
}

func DefaultOptions() Options {
	return Options{
		HeartbeatInterval: config.HeartbeatInterval,
		DebounceWindow:    config.DebounceWindow,
		ReconnectDelay:    config.ReconnectDelay,
		MaxReconnectTries: config.MaxReconnectTries,
	}
}

// Handlers are the client application's view of inbound activity. All are
// optional and invoked from the dispatch goroutine.
type Handlers struct {
	OnContent func(content string, kind model.ContentKind)
	OnDevices func(devices []model.SessionDevice)
	OnKicked  func()
}

// SessionClient owns one client's attachment to a session: the local
// client record, the heartbeat loop, the debounced content pusher, and the
// subscription dispatch loop. All loops share one lifetime and are torn
// down together on leave, kick, or Close.
type SessionClient struct {
	store    Store
	bus      Bus
	cache    *Cache
	opts     Options
	handlers Handlers

	mu      sync.Mutex
	state   State
	session *model.Session
	device  *model.SessionDevice
	content string
	kind    model.ContentKind
	syncer  *Syncer
	sub     *bus.Subscriber
	cancel  context.CancelFunc

	wg sync.WaitGroup
}

func New(store Store, b Bus, cache *Cache, opts Options, handlers Handlers) *SessionClient {
	if opts.HeartbeatInterval <= 0 {
		opts = DefaultOptions()
	}
	return &SessionClient{
		store:    store,
		bus:      b,
		cache:    cache,
		opts:     opts,
		handlers: handlers,
		state:    StateFresh,
		kind:     model.ContentKindText,
	}
}

func (c *SessionClient) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *SessionClient) Session() *model.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *SessionClient) Device() *model.SessionDevice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device
}

func (c *SessionClient) Content() (string, model.ContentKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content, c.kind
}

// Create makes a new session and attaches this client to it.
func (c *SessionClient) Create(ctx context.Context, name string) (*model.Session, error) {
	c.setState(StateJoining)

	session, err := c.store.CreateSession(ctx)
	if err != nil {
		c.setState(StateFresh)
		return nil, err
	}

	return session, c.joinAndAttach(ctx, session.Code, name, "")
}

// Join attaches this client to an existing session by code.
func (c *SessionClient) Join(ctx context.Context, code, name string) error {
	c.setState(StateJoining)
	return c.joinAndAttach(ctx, code, name, "")
}

func (c *SessionClient) joinAndAttach(ctx context.Context, code, name, color string) error {
	session, device, err := c.store.JoinSession(ctx, code, name, color)
	if err != nil {
		c.setState(StateFresh)
		return err
	}
	return c.attach(session, device)
}

// Resume re-attaches using the saved local record, without user action.
// Terminal disconnect reasons (manual leave, kicked) refuse resumption and
// discard the record. Other failures are retried up to the configured
// bound with a fixed delay; exhausting the bound clears the record.
func (c *SessionClient) Resume(ctx context.Context) error {
	record, err := c.cache.Load()
	if err != nil {
		return err
	}
	if record == nil {
		return ErrNoSavedSession
	}

	if record.DisconnectReason.Terminal() {
		_ = c.cache.Clear()
		c.setState(StateFresh)
		return apperrors.TerminalDisconnect(string(record.DisconnectReason))
	}

	c.setState(StateReconnecting)

	for attempt := 1; attempt <= c.opts.MaxReconnectTries; attempt++ {
		err := c.tryReconnect(ctx, record)
		if err == nil {
			// Attempt count resets implicitly: the next Resume starts at 1.
			return nil
		}

		if isPermanentResumeFailure(err) {
			log.Info().Err(err).Str("code", record.SessionCode).Msg("session unrecoverable, clearing record")
			_ = c.cache.Clear()
			c.setState(StateFailed)
			return err
		}

		log.Warn().Err(err).
			Str("code", record.SessionCode).
			Int("attempt", attempt).
			Msg("reconnect attempt failed")

		if attempt < c.opts.MaxReconnectTries {
			select {
			case <-ctx.Done():
				c.setState(StateDisconnected)
				return ctx.Err()
			case <-time.After(c.opts.ReconnectDelay):
			}
		}
	}

	_ = c.cache.Clear()
	c.setState(StateFailed)
	return apperrors.ReconnectExhausted(c.opts.MaxReconnectTries)
}

func (c *SessionClient) tryReconnect(ctx context.Context, record *Record) error {
	session, err := c.store.FindSession(ctx, record.SessionCode)
	if err != nil {
		return err
	}
	if session.Expired(time.Now()) {
		return apperrors.SessionExpired()
	}

	found, err := c.store.TouchDevice(ctx, record.DeviceID)
	if err != nil {
		return err
	}

	if found {
		device := &model.SessionDevice{
			ID:          record.DeviceID,
			SessionID:   session.ID,
			SessionCode: session.Code,
			DisplayName: record.DisplayName,
			ColorTag:    record.ColorTag,
			JoinedAt:    record.JoinedAt,
			LastSeen:    time.Now(),
			IsActive:    true,
		}
		return c.attach(session, device)
	}

	// Device row reclaimed while we were away: start a fresh identity with
	// the remembered name and color, rewriting the record with the new id.
	session, device, err := c.store.JoinSession(ctx, record.SessionCode, record.DisplayName, record.ColorTag)
	if err != nil {
		return err
	}
	return c.attach(session, device)
}

// isPermanentResumeFailure separates errors that must stop reconnection
// (session gone or expired) from transient connectivity failures.
func isPermanentResumeFailure(err error) bool {
	return apperrors.IsCode(err, apperrors.ErrCodeNotFound) ||
		apperrors.IsCode(err, apperrors.ErrCodeSessionExpired) ||
		apperrors.IsCode(err, apperrors.ErrCodeInvalidInput)
}

// attach persists the record, transitions to Attached, and starts the
// heartbeat, debounce, and dispatch loops under one cancellable lifetime.
func (c *SessionClient) attach(session *model.Session, device *model.SessionDevice) error {
	record := &Record{
		SessionCode: session.Code,
		DeviceID:    device.ID,
		DisplayName: device.DisplayName,
		ColorTag:    device.ColorTag,
		JoinedAt:    device.JoinedAt,
	}
	if err := c.cache.Persist(record); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := c.bus.Subscribe(session.ID)
	syncer := newSyncer(ctx, c.store, session.ID, c.opts.DebounceWindow)

	c.mu.Lock()
	c.state = StateAttached
	c.session = session
	c.device = device
	c.content = session.Content
	c.kind = session.ContentKind
	c.syncer = syncer
	c.sub = sub
	c.cancel = cancel
	c.mu.Unlock()

	c.wg.Add(2)
	go c.heartbeatLoop(ctx, device.ID)
	go c.dispatchLoop(ctx, sub, session.ID, device.ID)

	log.Info().
		Str("sessionId", session.ID).
		Str("deviceId", device.ID).
		Str("code", session.Code).
		Msg("attached to session")

	return nil
}

// SetContent applies a local edit: local state updates immediately, the
// store write is debounced.
func (c *SessionClient) SetContent(content string, kind model.ContentKind) {
	c.mu.Lock()
	if c.state != StateAttached {
		c.mu.Unlock()
		return
	}
	c.content = content
	c.kind = kind
	syncer := c.syncer
	c.mu.Unlock()

	syncer.Queue(content, kind)
}

// Foreground sends an out-of-cycle heartbeat, covering long background
// suspension between scheduled ticks.
func (c *SessionClient) Foreground(ctx context.Context) {
	c.mu.Lock()
	device := c.device
	attached := c.state == StateAttached
	c.mu.Unlock()

	if !attached || device == nil {
		return
	}
	if _, err := c.store.TouchDevice(ctx, device.ID); err != nil {
		log.Warn().Err(err).Str("deviceId", device.ID).Msg("foreground heartbeat failed")
	}
}

// Kick forcibly removes another device from the session.
func (c *SessionClient) Kick(ctx context.Context, targetDeviceID string) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil {
		return apperrors.NotFound("Session")
	}
	return c.store.KickDevice(ctx, session.ID, targetDeviceID)
}

// Leave detaches voluntarily: server-side activity is cleared, every loop
// stops, and the local record is removed entirely so no resume happens.
func (c *SessionClient) Leave(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	device := c.device
	c.mu.Unlock()

	if session == nil || device == nil {
		return nil
	}

	if err := c.store.LeaveSession(ctx, session.ID, device.ID); err != nil {
		log.Warn().Err(err).Str("deviceId", device.ID).Msg("leave: failed to clear server activity")
	}

	c.stopLoops()
	c.wg.Wait()

	if err := c.cache.Clear(); err != nil {
		return err
	}

	c.mu.Lock()
	c.state = StateFresh
	c.session = nil
	c.device = nil
	c.mu.Unlock()

	log.Info().Str("sessionId", session.ID).Msg("left session")
	return nil
}

// Close shuts the client down without touching the record, as on a page
// reload or process exit: the saved identity carries no disconnect reason,
// so the next startup resumes automatically.
func (c *SessionClient) Close() {
	c.stopLoops()
	c.wg.Wait()

	c.mu.Lock()
	if c.state == StateAttached {
		c.state = StateDisconnected
	}
	c.mu.Unlock()
}

// stopLoops cancels the shared lifetime and releases the subscription and
// syncer. Idempotent; safe to call from the dispatch goroutine itself.
func (c *SessionClient) stopLoops() {
	c.mu.Lock()
	cancel := c.cancel
	sub := c.sub
	syncer := c.syncer
	c.cancel = nil
	c.sub = nil
	c.syncer = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if syncer != nil {
		syncer.Stop()
	}
	if sub != nil {
		c.bus.Unsubscribe(sub)
	}
}

func (c *SessionClient) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// heartbeatLoop touches the device on a fixed interval. Failures are
// logged and retried on the next scheduled tick; never surfaced.
func (c *SessionClient) heartbeatLoop(ctx context.Context, deviceID string) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.store.TouchDevice(ctx, deviceID); err != nil {
				log.Warn().Err(err).Str("deviceId", deviceID).Msg("heartbeat failed")
			}
		}
	}
}

// dispatchLoop drains the subscription and applies inbound changes:
// content replaces local state unconditionally when it differs (reading
// side of last-write-wins), device changes trigger a re-list, and a kick
// broadcast naming this device ends the attachment for good.
func (c *SessionClient) dispatchLoop(ctx context.Context, sub *bus.Subscriber, sessionID, deviceID string) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done:
			return
		case event := <-sub.Events:
			if done := c.handleEvent(ctx, event, sessionID, deviceID); done {
				return
			}
		}
	}
}

func (c *SessionClient) handleEvent(ctx context.Context, event bus.Event, sessionID, deviceID string) bool {
	switch event.Type {
	case bus.TypeSessionChanged:
		var change bus.SessionChange
		if err := json.Unmarshal(event.Data, &change); err != nil {
			log.Error().Err(err).Msg("malformed session change event")
			return false
		}
		if change.After == nil {
			return false
		}
		c.applyRemoteContent(change.After)

	case bus.TypeDevicesChanged:
		if c.handlers.OnDevices == nil {
			return false
		}
		devices, err := c.store.ListActiveDevices(ctx, sessionID)
		if err != nil {
			log.Warn().Err(err).Str("sessionId", sessionID).Msg("failed to refresh device list")
			return false
		}
		c.handlers.OnDevices(devices)

	case bus.TypeBroadcast:
		var msg bus.BroadcastMessage
		if err := json.Unmarshal(event.Data, &msg); err != nil {
			log.Error().Err(err).Msg("malformed broadcast event")
			return false
		}
		if msg.Event == bus.BroadcastDeviceKicked && msg.TargetDeviceID == deviceID {
			c.handleKicked()
			return true
		}
	}

	return false
}

func (c *SessionClient) applyRemoteContent(session *model.Session) {
	c.mu.Lock()
	changed := session.Content != c.content || session.ContentKind != c.kind
	if changed {
		c.content = session.Content
		c.kind = session.ContentKind
		c.session = session
	}
	c.mu.Unlock()

	if changed && c.handlers.OnContent != nil {
		c.handlers.OnContent(session.Content, session.ContentKind)
	}
}

// handleKicked runs on the dispatch goroutine when this device's own id
// appears in a kick broadcast. The record keeps the kicked reason so no
// later startup silently rejoins.
func (c *SessionClient) handleKicked() {
	c.mu.Lock()
	device := c.device
	c.state = StateDisconnected
	c.mu.Unlock()

	if device != nil {
		record := &Record{
			SessionCode:      device.SessionCode,
			DeviceID:         device.ID,
			DisplayName:      device.DisplayName,
			ColorTag:         device.ColorTag,
			JoinedAt:         device.JoinedAt,
			DisconnectReason: model.DisconnectKicked,
		}
		if err := c.cache.Persist(record); err != nil {
			log.Error().Err(err).Msg("failed to persist kicked record")
		}
	}

	c.stopLoops()

	log.Info().Msg("kicked from session")

	if c.handlers.OnKicked != nil {
		c.handlers.OnKicked()
	}
}
