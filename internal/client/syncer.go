package client

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pastesync/sync-server-go/internal/model"
)

const pushTimeout = 10 * time.Second

// Syncer is the outbound half of the content sync channel. Local edits are
// buffered and pushed only after the debounce window passes with no new
// keystroke, so fast typing coalesces into a single full-document write.
// A failed push is kept pending and retried when the window next elapses;
// there is no immediate retry.
type Syncer struct {
	store     Store
	sessionID string
	window    time.Duration
	ctx       context.Context

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	stopped bool
	content string
	kind    model.ContentKind
}

func newSyncer(ctx context.Context, store Store, sessionID string, window time.Duration) *Syncer {
	return &Syncer{
		store:     store,
		sessionID: sessionID,
		window:    window,
		ctx:       ctx,
	}
}

// Queue records the latest local content and restarts the quiet-period
// timer. Only the newest queued value is ever pushed.
func (s *Syncer) Queue(content string, kind model.ContentKind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	s.content = content
	s.kind = kind
	s.pending = true

	if s.timer == nil {
		s.timer = time.AfterFunc(s.window, s.flush)
	} else {
		s.timer.Reset(s.window)
	}
}

func (s *Syncer) flush() {
	s.mu.Lock()
	if s.stopped || !s.pending {
		s.mu.Unlock()
		return
	}
	content := s.content
	kind := s.kind
	s.pending = false
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(s.ctx, pushTimeout)
	defer cancel()

	if _, err := s.store.UpdateContent(ctx, s.sessionID, content, kind); err != nil {
		log.Warn().Err(err).Str("sessionId", s.sessionID).Msg("content push failed, will retry")

		s.mu.Lock()
		// Re-arm with the failed write unless a newer edit superseded it.
		if !s.stopped && !s.pending {
			s.content = content
			s.kind = kind
			s.pending = true
			s.timer.Reset(s.window)
		}
		s.mu.Unlock()
	}
}

// Stop cancels any pending push. Edits queued after Stop are dropped; the
// syncer is bound to the session's lifetime.
func (s *Syncer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
	}
}
