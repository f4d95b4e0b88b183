package bot

import (
	"sync"
	"time"

	"github.com/linesmerrill/lfg-matchmaker/models"
)

const (
	confirmEndID    = "confirm_end_session"
	confirmUpdateID = "confirm_update"
	cancelUpdateID  = "cancel_update"

	endConfirmWindow  = 15 * time.Second
	linkConfirmWindow = 30 * time.Second
)

type confirmKind int

const (
	confirmEnd confirmKind = iota
	confirmLink
)

// pendingConfirm is a question waiting for the user's button press
type pendingConfirm struct {
	kind    confirmKind
	timer   *time.Timer
	profile *models.Profile
}

// confirmations holds at most one open question per user
type confirmations struct {
	mu      sync.Mutex
	pending map[string]*pendingConfirm
}

func newConfirmations() *confirmations {
	return &confirmations{pending: make(map[string]*pendingConfirm)}
}

// add asks userID a question. expire runs if no answer arrives within ttl.
// A newer question replaces the older one without expiring it.
func (c *confirmations) add(userID string, kind confirmKind, ttl time.Duration, profile *models.Profile, expire func()) {
	p := &pendingConfirm{kind: kind, profile: profile}

	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.pending[userID]; ok {
		old.timer.Stop()
	}
	c.pending[userID] = p
	p.timer = time.AfterFunc(ttl, func() {
		c.mu.Lock()
		current := c.pending[userID] == p
		if current {
			delete(c.pending, userID)
		}
		c.mu.Unlock()
		if current {
			expire()
		}
	})
}

// take claims the answer to userID's open question of the given kind. It
// fails when there is none or the window already closed.
func (c *confirmations) take(userID string, kind confirmKind) (*pendingConfirm, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[userID]
	if !ok || p.kind != kind {
		return nil, false
	}
	if !p.timer.Stop() {
		// expiry is already running and owns the entry
		return nil, false
	}
	delete(c.pending, userID)
	return p, true
}

func (c *confirmations) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, p := range c.pending {
		p.timer.Stop()
		delete(c.pending, id)
	}
}
