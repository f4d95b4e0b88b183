package api

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/shaj13/go-guardian/auth"
	"github.com/shaj13/go-guardian/auth/strategies/basic"
	"github.com/shaj13/go-guardian/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// QueryTimeout bounds the work an admin request may do
const QueryTimeout = 10 * time.Second

const credentialCacheTTL = 10 * time.Minute

// Guard protects the admin routes with basic auth against a single admin
// account whose password is stored as a bcrypt hash
type Guard struct {
	Email        string
	PasswordHash string

	authenticator auth.Authenticator
}

// SetupGoGuardian sets up the go-guardian authenticator
func (g *Guard) SetupGoGuardian(ctx context.Context) {
	g.authenticator = auth.New()
	cache := store.NewFIFO(ctx, credentialCacheTTL)
	g.authenticator.EnableStrategy(basic.StrategyKey, basic.New(g.ValidateUser, cache))
}

// Middleware rejects requests without valid admin credentials and bounds the
// request context with QueryTimeout
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		user, err := g.authenticator.Authenticate(r)
		if err != nil {
			zap.S().Errorw("unauthorized",
				"url", r.URL)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "unauthorized"}`))
			return
		}
		zap.S().Debugw("admin authenticated", "user", user.UserName())

		ctx, cancel := context.WithTimeout(r.Context(), QueryTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ValidateUser checks basic auth credentials against the configured admin
func (g *Guard) ValidateUser(_ context.Context, _ *http.Request, email, password string) (auth.Info, error) {
	if g.Email == "" || g.PasswordHash == "" {
		return nil, fmt.Errorf("admin account is not configured")
	}

	usernameHash := sha256.Sum256([]byte(email))
	expectedUsernameHash := sha256.Sum256([]byte(g.Email))
	usernameMatch := subtle.ConstantTimeCompare(usernameHash[:], expectedUsernameHash[:]) == 1

	err := bcrypt.CompareHashAndPassword([]byte(g.PasswordHash), []byte(password))
	if err != nil {
		return nil, fmt.Errorf("failed to compare password")
	}

	if usernameMatch {
		return auth.NewDefaultUser(email, "1", nil, nil), nil
	}
	return nil, fmt.Errorf("invalid credentials")
}
