package service

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pastesync/sync-server-go/internal/bus"
	"github.com/pastesync/sync-server-go/internal/config"
	apperrors "github.com/pastesync/sync-server-go/internal/errors"
	"github.com/pastesync/sync-server-go/internal/model"
	"github.com/pastesync/sync-server-go/internal/repository"
	"github.com/pastesync/sync-server-go/internal/util"
)

// Collisions on the 7-character code space are rare; a handful of retries
// is plenty before giving up.
const maxCodeAttempts = 5

// EventPublisher is the outbound side of the notification bus. Satisfied
// by *bus.Broker.
type EventPublisher interface {
	Publish(ctx context.Context, sessionID string, event bus.Event) error
}

type SessionService struct {
	sessionRepo repository.SessionRepository
	deviceRepo  repository.DeviceRepository
	broker      EventPublisher
	ttl         time.Duration
}

func NewSessionService(
	sessionRepo repository.SessionRepository,
	deviceRepo repository.DeviceRepository,
	broker EventPublisher,
	ttl time.Duration,
) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		deviceRepo:  deviceRepo,
		broker:      broker,
		ttl:         ttl,
	}
}

// CreateSession inserts a new empty session with a freshly generated code.
// Code collisions are detected by the store's uniqueness constraint and
// retried with a new code.
func (s *SessionService) CreateSession(ctx context.Context) (*model.Session, error) {
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code := generateSessionCode()

		session, err := s.sessionRepo.Create(ctx, model.CreateSessionParams{
			ID:        uuid.NewString(),
			Code:      code,
			ExpiresAt: time.Now().Add(s.ttl),
		})
		if err != nil {
			if repository.IsUniqueViolation(err) {
				log.Warn().Str("code", code).Int("attempt", attempt).Msg("session code collision, retrying")
				continue
			}
			return nil, apperrors.Database(err)
		}

		log.Info().
			Str("sessionId", session.ID).
			Str("code", session.Code).
			Time("expiresAt", session.ExpiresAt).
			Msg("session created")

		return session, nil
	}

	return nil, apperrors.Internal("could not generate a unique session code")
}

// FindSession looks a session up by its code. Input is accepted in any
// case and normalized to uppercase before the lookup.
func (s *SessionService) FindSession(ctx context.Context, code string) (*model.Session, error) {
	normalized := util.NormalizeCode(code)
	if !util.IsValidCode(normalized) {
		return nil, apperrors.InvalidInput("code", "must be 7 alphanumeric characters")
	}

	session, err := s.sessionRepo.FindByCode(ctx, normalized)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}
	return session, nil
}

// JoinSession attaches a device to a session. The session must exist and
// not have passed its expiry; a blank display name or color gets a
// generated one.
func (s *SessionService) JoinSession(ctx context.Context, code, name, color string) (*model.Session, *model.SessionDevice, error) {
	session, err := s.FindSession(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	if session.Expired(time.Now()) {
		return nil, nil, apperrors.SessionExpired()
	}

	device, err := s.deviceRepo.Insert(ctx, model.InsertDeviceParams{
		ID:          uuid.NewString(),
		SessionID:   session.ID,
		SessionCode: session.Code,
		DisplayName: DeviceNameOrDefault(name),
		ColorTag:    ColorTagOrDefault(color),
	})
	if err != nil {
		return nil, nil, apperrors.Database(err)
	}

	if err := s.sessionRepo.IncrementActiveUsers(ctx, session.ID, 1); err != nil {
		return nil, nil, apperrors.Database(err)
	}
	session.ActiveUserCount++

	log.Info().
		Str("sessionId", session.ID).
		Str("deviceId", device.ID).
		Str("displayName", device.DisplayName).
		Msg("device joined session")

	s.publishDevicesChanged(ctx, session.ID)

	return session, device, nil
}

// UpdateContent overwrites the whole document, last write wins. The change
// is published to every subscriber of the session.
func (s *SessionService) UpdateContent(ctx context.Context, sessionID, content string, kind model.ContentKind) (*model.Session, error) {
	if !kind.Valid() {
		return nil, apperrors.InvalidInput("contentKind", "must be text or code")
	}

	session, err := s.sessionRepo.UpdateContent(ctx, sessionID, content, kind)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}

	event, err := bus.NewSessionChangedEvent(nil, session)
	if err == nil {
		err = s.broker.Publish(ctx, session.ID, event)
	}
	if err != nil {
		log.Warn().Err(err).Str("sessionId", session.ID).Msg("failed to publish content change")
	}

	return session, nil
}

// TouchDevice records a heartbeat. Returns false when the device row no
// longer exists, which a reconnecting client treats as "identity gone,
// re-join instead".
func (s *SessionService) TouchDevice(ctx context.Context, deviceID string) (bool, error) {
	found, err := s.deviceRepo.Touch(ctx, deviceID)
	if err != nil {
		return false, apperrors.Database(err)
	}
	return found, nil
}

// LeaveSession detaches a device voluntarily: the row is kept but marked
// inactive, and the active user count drops (clamped at zero by the store).
func (s *SessionService) LeaveSession(ctx context.Context, sessionID, deviceID string) error {
	if err := s.deviceRepo.Deactivate(ctx, deviceID); err != nil {
		return apperrors.Database(err)
	}
	if err := s.sessionRepo.IncrementActiveUsers(ctx, sessionID, -1); err != nil {
		return apperrors.Database(err)
	}

	log.Info().
		Str("sessionId", sessionID).
		Str("deviceId", deviceID).
		Msg("device left session")

	s.publishDevicesChanged(ctx, sessionID)
	return nil
}

// KickDevice forcibly removes a device. Besides the row-level devices
// change, a broadcast naming the target goes out so the victim observes
// its own removal even though its row is the one being hidden.
func (s *SessionService) KickDevice(ctx context.Context, sessionID, targetDeviceID string) error {
	target, err := s.deviceRepo.FindByID(ctx, targetDeviceID)
	if err != nil {
		return apperrors.Database(err)
	}
	if target == nil || target.SessionID != sessionID {
		return apperrors.NotFound("Device")
	}

	if err := s.deviceRepo.Deactivate(ctx, targetDeviceID); err != nil {
		return apperrors.Database(err)
	}
	if err := s.sessionRepo.IncrementActiveUsers(ctx, sessionID, -1); err != nil {
		return apperrors.Database(err)
	}

	log.Info().
		Str("sessionId", sessionID).
		Str("deviceId", targetDeviceID).
		Msg("device kicked from session")

	event, err := bus.NewBroadcastEvent(bus.BroadcastMessage{
		Event:          bus.BroadcastDeviceKicked,
		TargetDeviceID: targetDeviceID,
	})
	if err == nil {
		err = s.broker.Publish(ctx, sessionID, event)
	}
	if err != nil {
		log.Error().Err(err).Str("sessionId", sessionID).Msg("failed to publish kick broadcast")
	}

	s.publishDevicesChanged(ctx, sessionID)
	return nil
}

// ListActiveDevices returns the devices currently considered live: marked
// active and heard from within the staleness window.
func (s *SessionService) ListActiveDevices(ctx context.Context, sessionID string) ([]model.SessionDevice, error) {
	devices, err := s.deviceRepo.ListActive(ctx, sessionID, config.PresenceStaleness)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return devices, nil
}

type SessionStats struct {
	ActiveSessions int `json:"activeSessions"`
	TotalSessions  int `json:"totalSessions"`
}

// Stats reports how many sessions exist and how many are live (unexpired
// with at least one attached device).
func (s *SessionService) Stats(ctx context.Context) (*SessionStats, error) {
	active, err := s.sessionRepo.CountActive(ctx)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	total, err := s.sessionRepo.CountTotal(ctx)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return &SessionStats{ActiveSessions: active, TotalSessions: total}, nil
}

func (s *SessionService) publishDevicesChanged(ctx context.Context, sessionID string) {
	event, err := bus.NewDevicesChangedEvent(sessionID)
	if err == nil {
		err = s.broker.Publish(ctx, sessionID, event)
	}
	if err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("failed to publish devices change")
	}
}

func generateSessionCode() string {
	chars := []byte(config.SessionCodeChars)
	code := make([]byte, config.SessionCodeLength)

	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		code[i] = chars[n.Int64()]
	}

	return string(code)
}
