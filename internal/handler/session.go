package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/pastesync/sync-server-go/internal/errors"
	"github.com/pastesync/sync-server-go/internal/model"
	"github.com/pastesync/sync-server-go/internal/service"
	"github.com/pastesync/sync-server-go/internal/util"
)

type SessionHandler struct {
	sessionService *service.SessionService
	baseURL        string
}

func NewSessionHandler(sessionService *service.SessionService, baseURL string) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		baseURL:        baseURL,
	}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateSession)
	r.Get("/{code}", h.GetSession)
	r.Post("/{code}/join", h.JoinSession)
	r.Put("/{code}/content", h.UpdateContent)
	r.Get("/{code}/devices", h.ListDevices)
	r.Post("/{code}/devices/{deviceID}/heartbeat", h.Heartbeat)
	r.Post("/{code}/devices/{deviceID}/leave", h.LeaveSession)
	r.Post("/{code}/devices/{deviceID}/kick", h.KickDevice)

	return r
}

type createResponse struct {
	*model.Session
	ShareURL string `json:"shareUrl,omitempty"`
}

// POST /v1/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessionService.CreateSession(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to create session")
		writeError(w, err)
		return
	}

	resp := createResponse{Session: session}
	if h.baseURL != "" {
		resp.ShareURL = fmt.Sprintf("%s/join/%s", h.baseURL, session.Code)
	}

	writeJSON(w, http.StatusCreated, resp)
}

// GET /v1/sessions/{code}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessionService.FindSession(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

type joinRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type joinResponse struct {
	Session *model.Session       `json:"session"`
	Device  *model.SessionDevice `json:"device"`
}

// POST /v1/sessions/{code}/join
func (h *SessionHandler) JoinSession(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
			return
		}
	}

	session, device, err := h.sessionService.JoinSession(r.Context(), chi.URLParam(r, "code"), req.Name, req.Color)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, joinResponse{Session: session, Device: device})
}

type updateContentRequest struct {
	Content     string            `json:"content"`
	ContentKind model.ContentKind `json:"contentKind"`
}

// PUT /v1/sessions/{code}/content
func (h *SessionHandler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessionService.FindSession(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req updateContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}
	if req.ContentKind == "" {
		req.ContentKind = model.ContentKindText
	}

	updated, err := h.sessionService.UpdateContent(r.Context(), session.ID, req.Content, req.ContentKind)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// GET /v1/sessions/{code}/devices
func (h *SessionHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessionService.FindSession(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}

	devices, err := h.sessionService.ListActiveDevices(r.Context(), session.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

// POST /v1/sessions/{code}/devices/{deviceID}/heartbeat
func (h *SessionHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")
	if !util.IsValidUUID(deviceID) {
		writeError(w, apperrors.InvalidInput("deviceID", "must be a UUID"))
		return
	}

	found, err := h.sessionService.TouchDevice(r.Context(), deviceID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		writeError(w, apperrors.NotFound("Device"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /v1/sessions/{code}/devices/{deviceID}/leave
func (h *SessionHandler) LeaveSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessionService.FindSession(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}

	deviceID := chi.URLParam(r, "deviceID")
	if !util.IsValidUUID(deviceID) {
		writeError(w, apperrors.InvalidInput("deviceID", "must be a UUID"))
		return
	}

	if err := h.sessionService.LeaveSession(r.Context(), session.ID, deviceID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /v1/sessions/{code}/devices/{deviceID}/kick
func (h *SessionHandler) KickDevice(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessionService.FindSession(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}

	deviceID := chi.URLParam(r, "deviceID")
	if !util.IsValidUUID(deviceID) {
		writeError(w, apperrors.InvalidInput("deviceID", "must be a UUID"))
		return
	}

	if err := h.sessionService.KickDevice(r.Context(), session.ID, deviceID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
