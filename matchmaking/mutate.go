package matchmaking

import (
	"context"
	"errors"

	"github.com/linesmerrill/lfg-matchmaker/models"
)

// maxCASAttempts bounds how often a mutation is re-applied after losing a
// version race
const maxCASAttempts = 5

// errNoChange lets a mutation abort without writing
var errNoChange = errors.New("no change")

// mutateSession reads the latest session, applies fn and writes it back with
// a version check. A lost race re-reads and re-applies fn, so fn must derive
// everything from the session it is given. Store errors other than a version
// conflict are returned as is.
func mutateSession(ctx context.Context, store SessionStore, sessionID string, fn func(*models.Session) error) (*models.Session, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		session, err := store.FindByKey(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if err := fn(session); err != nil {
			if errors.Is(err, errNoChange) {
				return session, nil
			}
			return session, err
		}
		err = store.Update(ctx, session)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, models.ErrVersionConflict) {
			return nil, err
		}
	}
	return nil, models.ErrVersionConflict
}
