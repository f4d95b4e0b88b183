package logging

import "go.uber.org/zap"

// ForSession returns the global sugared logger tagged with a session id
func ForSession(sessionID string) *zap.SugaredLogger {
	return zap.S().With("sessionId", sessionID)
}

// ForTrigger tags a session logger with the teardown trigger that fired
func ForTrigger(sessionID, trigger string) *zap.SugaredLogger {
	return ForSession(sessionID).With("trigger", trigger)
}
