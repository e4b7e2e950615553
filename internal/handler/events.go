package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/pastesync/sync-server-go/internal/bus"
	"github.com/pastesync/sync-server-go/internal/config"
	"github.com/pastesync/sync-server-go/internal/service"
)

// EventsHandler streams a session's change events and broadcasts over SSE.
// This is the wire transport for remote subscribers of the notification
// bus; in-process clients subscribe to the broker directly.
type EventsHandler struct {
	broker         *bus.Broker
	sessionService *service.SessionService
}

func NewEventsHandler(broker *bus.Broker, sessionService *service.SessionService) *EventsHandler {
	return &EventsHandler{
		broker:         broker,
		sessionService: sessionService,
	}
}

// GET /v1/sessions/{code}/events
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessionService.FindSession(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := h.broker.Subscribe(session.ID)
	defer h.broker.Unsubscribe(sub)

	log.Info().
		Str("sessionId", session.ID).
		Str("code", session.Code).
		Msg("sse connection established")

	if err := h.sendEvent(w, flusher, bus.Event{
		Type: "connected",
		Data: fmt.Appendf(nil, `{"sessionId":%q,"code":%q}`, session.ID, session.Code),
	}); err != nil {
		return
	}

	ctx := r.Context()
	keepalive := time.NewTicker(config.HeartbeatInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().
				Str("sessionId", session.ID).
				Msg("sse connection closed by client")
			return

		case <-sub.Done:
			log.Info().
				Str("sessionId", session.ID).
				Msg("sse connection closed by broker")
			return

		case event := <-sub.Events:
			if err := h.sendEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}

		case <-keepalive.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().
					Str("sessionId", session.ID).
					Msg("keepalive failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, event bus.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
