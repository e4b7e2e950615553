package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pastesync/sync-server-go/internal/httputil"
	"github.com/pastesync/sync-server-go/internal/service"
)

// Input validation rejects bad requests before any repository call, so a
// service with no backing store is enough for these paths.
func testRouter() http.Handler {
	svc := service.NewSessionService(nil, nil, nil, 0)
	return NewSessionHandler(svc, "").Routes()
}

func doRequest(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	testRouter().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	var resp httputil.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestGetSessionValidation(t *testing.T) {
	t.Run("rejects a short code", func(t *testing.T) {
		rec := doRequest(t, http.MethodGet, "/short", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_INPUT", string(decodeError(t, rec).Code))
	})

	t.Run("rejects a code with symbols", func(t *testing.T) {
		rec := doRequest(t, http.MethodGet, "/AB3K9Q!", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestJoinSessionValidation(t *testing.T) {
	t.Run("rejects malformed JSON", func(t *testing.T) {
		rec := doRequest(t, http.MethodPost, "/AB3K9QZ/join", "{not json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_INPUT", string(decodeError(t, rec).Code))
	})

	t.Run("rejects an invalid code before reading the body", func(t *testing.T) {
		rec := doRequest(t, http.MethodPost, "/bad/join", `{"name":"foxfire"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUpdateContentValidation(t *testing.T) {
	t.Run("rejects an invalid code", func(t *testing.T) {
		rec := doRequest(t, http.MethodPut, "/bad/content", `{"content":"hello"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHeartbeatValidation(t *testing.T) {
	t.Run("rejects a non-UUID device id", func(t *testing.T) {
		rec := doRequest(t, http.MethodPost, "/AB3K9QZ/devices/not-a-uuid/heartbeat", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_INPUT", string(decodeError(t, rec).Code))
	})
}

func TestKickValidation(t *testing.T) {
	t.Run("rejects an invalid session code", func(t *testing.T) {
		rec := doRequest(t, http.MethodPost, "/bad/devices/123e4567-e89b-12d3-a456-426614174000/kick", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
