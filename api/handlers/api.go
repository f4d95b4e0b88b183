package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/linesmerrill/lfg-matchmaker/api"
	"github.com/linesmerrill/lfg-matchmaker/config"
)

// App stores the router and its collaborators, so it can be reused
type App struct {
	Router   *mux.Router
	Config   config.Config
	Sessions SessionManager
}

// New creates a new mux router and all the routes
func (a *App) New(ctx context.Context) *mux.Router {
	// setup go-guardian for middleware
	g := &api.Guard{Email: a.Config.AdminEmail, PasswordHash: a.Config.AdminPasswordHash}
	g.SetupGoGuardian(ctx)

	r := mux.NewRouter()
	s := Session{Manager: a.Sessions}

	// healthchex
	r.HandleFunc("/health", api.HealthCheckHandler)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()

	apiCreate.Handle("/session/{session_id}", g.Middleware(http.HandlerFunc(s.SessionByIDHandler))).Methods("GET")
	apiCreate.Handle("/session/{session_id}/end", g.Middleware(http.HandlerFunc(s.EndSessionHandler))).Methods("POST")

	return r
}

// Initialize is invoked by main to create the router
func (a *App) Initialize(ctx context.Context) {
	a.Router = a.New(ctx)
}
