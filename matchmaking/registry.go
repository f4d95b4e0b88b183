package matchmaking

import (
	"context"
	"sync"
	"time"

	"github.com/linesmerrill/lfg-matchmaker/models"
)

// sessionTimers is the per-session record of background work. It is created
// when a session opens and released when it closes, which cancels everything
// it owns.
type sessionTimers struct {
	sessionID string
	ctx       context.Context
	cancel    context.CancelFunc

	mu        sync.Mutex
	idle      *time.Timer
	idleGen   uint64
	scheduler *InviteScheduler
	full      chan struct{}
}

// armIdle replaces any pending idle timer. fire only runs when the timer was
// not cancelled or replaced in the meantime.
func (t *sessionTimers) armIdle(d time.Duration, fire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ctx.Err() != nil {
		return
	}
	if t.idle != nil {
		t.idle.Stop()
	}
	t.idleGen++
	gen := t.idleGen
	t.idle = time.AfterFunc(d, func() {
		t.mu.Lock()
		current := gen == t.idleGen && t.ctx.Err() == nil
		if current {
			t.idle = nil
		}
		t.mu.Unlock()
		if current {
			fire()
		}
	})
}

func (t *sessionTimers) cancelIdle() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.idleGen++
	if t.idle == nil {
		return false
	}
	t.idle.Stop()
	t.idle = nil
	return true
}

func (t *sessionTimers) idleArmed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.idle != nil
}

// attach installs s as the session's only scheduler
func (t *sessionTimers) attach(s *InviteScheduler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ctx.Err() != nil {
		return models.ErrSessionClosed
	}
	if t.scheduler != nil && !t.scheduler.finished() {
		return models.ErrSchedulerActive
	}
	t.scheduler = s
	return nil
}

func (t *sessionTimers) activeScheduler() *InviteScheduler {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scheduler
}

// signalFull wakes the fullness watcher without blocking
func (t *sessionTimers) signalFull() {
	select {
	case t.full <- struct{}{}:
	default:
	}
}

func (t *sessionTimers) stop() {
	t.cancel()
	t.mu.Lock()
	t.idleGen++
	if t.idle != nil {
		t.idle.Stop()
		t.idle = nil
	}
	t.mu.Unlock()
}

// timerRegistry owns one sessionTimers per live session
type timerRegistry struct {
	parent context.Context

	mu       sync.Mutex
	sessions map[string]*sessionTimers
	byVoice  map[string]string
}

func newTimerRegistry(parent context.Context) *timerRegistry {
	return &timerRegistry{
		parent:   parent,
		sessions: make(map[string]*sessionTimers),
		byVoice:  make(map[string]string),
	}
}

// ensure returns the record for the session, registering it first if needed
func (r *timerRegistry) ensure(sessionID, voiceChannelID string) *sessionTimers {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.sessions[sessionID]; ok {
		return t
	}
	ctx, cancel := context.WithCancel(r.parent)
	t := &sessionTimers{
		sessionID: sessionID,
		ctx:       ctx,
		cancel:    cancel,
		full:      make(chan struct{}, 1),
	}
	r.sessions[sessionID] = t
	if voiceChannelID != "" {
		r.byVoice[voiceChannelID] = sessionID
	}
	return t
}

func (r *timerRegistry) get(sessionID string) (*sessionTimers, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.sessions[sessionID]
	return t, ok
}

func (r *timerRegistry) byVoiceChannel(channelID string) (*sessionTimers, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byVoice[channelID]
	if !ok {
		return nil, false
	}
	t, ok := r.sessions[id]
	return t, ok
}

// release deregisters the session and cancels its timers
func (r *timerRegistry) release(sessionID string) {
	r.mu.Lock()
	t, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	for ch, id := range r.byVoice {
		if id == sessionID {
			delete(r.byVoice, ch)
		}
	}
	r.mu.Unlock()
	if ok {
		t.stop()
	}
}

func (r *timerRegistry) releaseAll() []*InviteScheduler {
	r.mu.Lock()
	all := make([]*sessionTimers, 0, len(r.sessions))
	for _, t := range r.sessions {
		all = append(all, t)
	}
	r.sessions = make(map[string]*sessionTimers)
	r.byVoice = make(map[string]string)
	r.mu.Unlock()

	schedulers := make([]*InviteScheduler, 0, len(all))
	for _, t := range all {
		t.stop()
		if s := t.activeScheduler(); s != nil {
			schedulers = append(schedulers, s)
		}
	}
	return schedulers
}

func (r *timerRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
