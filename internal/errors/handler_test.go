package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/framekit/internal/logger"
)

func newTestHandler() (*ErrorHandler, *test.Hook) {
	log, hook := test.NewNullLogger()
	return NewErrorHandler(logger.NewLogrusAdapter(logrus.NewEntry(log))), hook
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedType   ErrorType
		expectedLevel  logrus.Level
	}{
		{"validation", NewValidationError("invalid input"), http.StatusBadRequest, ErrorTypeValidation, logrus.WarnLevel},
		{"plain error", errors.New("something went wrong"), http.StatusInternalServerError, ErrorTypeInternal, logrus.ErrorLevel},
		{"not found", NewNotFoundError("codec"), http.StatusNotFound, ErrorTypeNotFound, logrus.WarnLevel},
		{"service down", NewServiceDownError("redis"), http.StatusServiceUnavailable, ErrorTypeServiceDown, logrus.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, hook := newTestHandler()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/codecs/x", nil)
			req.Header.Set(logger.RequestIDHeader, "req-123")
			rr := httptest.NewRecorder()

			handler.HandleError(rr, req, tt.err)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			resp := decode(t, rr)
			assert.Equal(t, tt.expectedType, resp.Error.Type)
			assert.Equal(t, "req-123", resp.TraceID)

			require.NotNil(t, hook.LastEntry())
			assert.Equal(t, tt.expectedLevel, hook.LastEntry().Level)
			assert.Equal(t, "/api/v1/codecs/x", hook.LastEntry().Data["path"])
		})
	}
}

func TestHandleError_HidesInternalCause(t *testing.T) {
	handler, _ := newTestHandler()
	rr := httptest.NewRecorder()

	handler.HandleError(rr, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("redis password rejected"))

	assert.NotContains(t, rr.Body.String(), "password")
}

func TestHandleNotFoundAndMethodNotAllowed(t *testing.T) {
	handler, _ := newTestHandler()

	rr := httptest.NewRecorder()
	handler.HandleNotFound(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "endpoint not found", decode(t, rr).Error.Message)

	rr = httptest.NewRecorder()
	handler.HandleMethodNotAllowed(rr, httptest.NewRequest(http.MethodDelete, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, ErrorTypeMethodNotAllowed, decode(t, rr).Error.Type)
}

func TestMiddleware_RecoversPanic(t *testing.T) {
	handler, hook := newTestHandler()
	h := handler.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("merge failed")
	}))

	rr := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	var panicLogged bool
	for _, e := range hook.AllEntries() {
		if e.Message == "Panic recovered in HTTP handler" {
			panicLogged = true
			assert.Equal(t, "merge failed", e.Data["panic"])
		}
	}
	assert.True(t, panicLogged)
}

func TestMiddleware_PassesThrough(t *testing.T) {
	handler, _ := newTestHandler()
	h := handler.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}
