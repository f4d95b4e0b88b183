package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/linesmerrill/lfg-matchmaker/config"
	"github.com/linesmerrill/lfg-matchmaker/matchmaking"
	"github.com/linesmerrill/lfg-matchmaker/models"
)

// SessionManager is the part of the session lifecycle the admin API uses
type SessionManager interface {
	Get(ctx context.Context, sessionID string) (*models.Session, error)
	Teardown(ctx context.Context, sessionID string, trigger matchmaking.Trigger) error
}

// Session exported for testing purposes
type Session struct {
	Manager SessionManager
}

// SessionByIDHandler returns a session by its public id
func (s Session) SessionByIDHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]

	zap.S().Debugw("admin session lookup", "sessionId", sessionID)

	session, err := s.Manager.Get(r.Context(), sessionID)
	if err != nil {
		config.ErrorStatus("failed to get session by ID", statusFor(err), w, err)
		return
	}

	writeSession(w, session)
}

// EndSessionHandler tears a session down on behalf of an admin and returns
// the resulting document
func (s Session) EndSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]

	if _, err := s.Manager.Get(r.Context(), sessionID); err != nil {
		config.ErrorStatus("failed to get session by ID", statusFor(err), w, err)
		return
	}

	if err := s.Manager.Teardown(r.Context(), sessionID, matchmaking.TriggerAdmin); err != nil {
		config.ErrorStatus("failed to end session", statusFor(err), w, err)
		return
	}
	zap.S().Infow("session ended by admin", "sessionId", sessionID)

	session, err := s.Manager.Get(r.Context(), sessionID)
	if err != nil {
		config.ErrorStatus("failed to get session by ID", statusFor(err), w, err)
		return
	}
	writeSession(w, session)
}

func writeSession(w http.ResponseWriter, session *models.Session) {
	b, err := json.Marshal(session)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrVersionConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
