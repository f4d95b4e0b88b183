package models

import "errors"

// HealthCheckResponse is the body of the health endpoint
type HealthCheckResponse struct {
	Alive bool `json:"alive"`
}

var (
	// ErrNotFound is returned when a session or profile does not exist
	ErrNotFound = errors.New("not found")
	// ErrActiveSessionExists is returned when the creator already hosts an open or full session
	ErrActiveSessionExists = errors.New("active session already exists for creator")
	// ErrVersionConflict is returned when a session changed between read and write
	ErrVersionConflict = errors.New("session version conflict")
	// ErrDeliveryFailed is returned when a direct message cannot reach the recipient
	ErrDeliveryFailed = errors.New("delivery failed")
	// ErrAlreadyGone is returned when a message or channel was already removed
	ErrAlreadyGone = errors.New("already gone")
	// ErrSessionFull is returned when joining a session at capacity
	ErrSessionFull = errors.New("session is full")
	// ErrSessionClosed is returned when acting on a closing or closed session
	ErrSessionClosed = errors.New("session is closed")
	// ErrAlreadyJoined is returned when a participant joins twice
	ErrAlreadyJoined = errors.New("already joined")
	// ErrInvalidSession is returned for malformed session requests
	ErrInvalidSession = errors.New("invalid session")
	// ErrSchedulerActive is returned when an invite scheduler already runs for a session
	ErrSchedulerActive = errors.New("invite scheduler already active")
)
