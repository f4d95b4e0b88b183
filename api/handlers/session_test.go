package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/lfg-matchmaker/api/handlers"
	"github.com/linesmerrill/lfg-matchmaker/matchmaking"
	"github.com/linesmerrill/lfg-matchmaker/models"
)

type MockSessionManager struct {
	mock.Mock
}

// Get provides a mock function.
func (_m *MockSessionManager) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	ret := _m.Called(ctx, sessionID)

	var r0 *models.Session
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Session)
	}
	return r0, ret.Error(1)
}

// Teardown provides a mock function.
func (_m *MockSessionManager) Teardown(ctx context.Context, sessionID string, trigger matchmaking.Trigger) error {
	ret := _m.Called(ctx, sessionID, trigger)
	return ret.Error(0)
}

func serve(handler http.HandlerFunc, method, path, pattern string) *httptest.ResponseRecorder {
	r := mux.NewRouter()
	r.HandleFunc(pattern, handler).Methods(method)
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestSession_SessionByIDHandler(t *testing.T) {
	m := &MockSessionManager{}
	m.On("Get", mock.Anything, "abc").Return(&models.Session{SessionID: "abc", GameName: "Valorant", Status: models.SessionOpen}, nil)
	s := handlers.Session{Manager: m}

	rr := serve(s.SessionByIDHandler, "GET", "/api/v1/session/abc", "/api/v1/session/{session_id}")

	require.Equal(t, http.StatusOK, rr.Code)
	var got models.Session
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "abc", got.SessionID)
	assert.Equal(t, models.SessionOpen, got.Status)
	m.AssertExpectations(t)
}

func TestSession_SessionByIDHandlerErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		body string
	}{
		{name: "missing", err: models.ErrNotFound, code: http.StatusNotFound, body: `{"response": "failed to get session by ID, not found"}`},
		{name: "store down", err: errors.New("mocked-error"), code: http.StatusInternalServerError, body: `{"response": "failed to get session by ID, mocked-error"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &MockSessionManager{}
			m.On("Get", mock.Anything, "abc").Return(nil, tt.err)
			s := handlers.Session{Manager: m}

			rr := serve(s.SessionByIDHandler, "GET", "/api/v1/session/abc", "/api/v1/session/{session_id}")

			assert.Equal(t, tt.code, rr.Code)
			assert.Equal(t, tt.body, rr.Body.String())
		})
	}
}

func TestSession_EndSessionHandler(t *testing.T) {
	m := &MockSessionManager{}
	m.On("Get", mock.Anything, "abc").Return(&models.Session{SessionID: "abc", Status: models.SessionOpen}, nil).Once()
	m.On("Teardown", mock.Anything, "abc", matchmaking.TriggerAdmin).Return(nil)
	m.On("Get", mock.Anything, "abc").Return(&models.Session{SessionID: "abc", Status: models.SessionClosed}, nil).Once()
	s := handlers.Session{Manager: m}

	rr := serve(s.EndSessionHandler, "POST", "/api/v1/session/abc/end", "/api/v1/session/{session_id}/end")

	require.Equal(t, http.StatusOK, rr.Code)
	var got models.Session
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, models.SessionClosed, got.Status)
	m.AssertExpectations(t)
}

func TestSession_EndSessionHandlerUnknownSession(t *testing.T) {
	m := &MockSessionManager{}
	m.On("Get", mock.Anything, "nope").Return(nil, models.ErrNotFound)
	s := handlers.Session{Manager: m}

	rr := serve(s.EndSessionHandler, "POST", "/api/v1/session/nope/end", "/api/v1/session/{session_id}/end")

	assert.Equal(t, http.StatusNotFound, rr.Code)
	m.AssertNotCalled(t, "Teardown", mock.Anything, mock.Anything, mock.Anything)
}

func TestSession_EndSessionHandlerConflict(t *testing.T) {
	m := &MockSessionManager{}
	m.On("Get", mock.Anything, "abc").Return(&models.Session{SessionID: "abc"}, nil)
	m.On("Teardown", mock.Anything, "abc", matchmaking.TriggerAdmin).Return(models.ErrVersionConflict)
	s := handlers.Session{Manager: m}

	rr := serve(s.EndSessionHandler, "POST", "/api/v1/session/abc/end", "/api/v1/session/{session_id}/end")

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, `{"response": "failed to end session, session version conflict"}`, rr.Body.String())
}
