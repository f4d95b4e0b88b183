package matchmaking

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/lfg-matchmaker/logging"
	"github.com/linesmerrill/lfg-matchmaker/models"
)

// Default scheduler delays
const (
	DefaultReconcileDelay = 60 * time.Second
	DefaultWatchInterval  = 5 * time.Second
)

// SchedulerConfig holds the scheduler delays
type SchedulerConfig struct {
	ReconcileDelay time.Duration
	WatchInterval  time.Duration
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.ReconcileDelay <= 0 {
		c.ReconcileDelay = DefaultReconcileDelay
	}
	if c.WatchInterval <= 0 {
		c.WatchInterval = DefaultWatchInterval
	}
	return c
}

// InviteScheduler walks a ranked candidate list for one session. Each batch
// invites at most as many candidates as there are open spots, waits
// ReconcileDelay, revokes the invites nobody accepted and backfills from the
// cursor. A watcher revokes everything still outstanding once the session is
// full.
type InviteScheduler struct {
	sessionID string
	ranked    []Candidate
	target    int
	store     SessionStore
	notifier  Notifier
	cfg       SchedulerConfig
	full      <-chan struct{}
	log       *zap.SugaredLogger

	mu     sync.Mutex
	cursor int
	sent   int

	dispatchCtx  context.Context
	stopDispatch context.CancelFunc
	watchCtx     context.Context
	stopWatch    context.CancelFunc
	runDone      chan struct{}
	watchDone    chan struct{}
	done         chan struct{}
	startOnce    sync.Once
}

// NewInviteScheduler prepares a scheduler for session. The target is fixed
// here: the ranked count capped by the spots that were open beyond the host.
// full may be nil; it carries the synchronous signal from the join path.
func NewInviteScheduler(parent context.Context, session *models.Session, ranked []Candidate, store SessionStore, notifier Notifier, cfg SchedulerConfig, full <-chan struct{}) *InviteScheduler {
	joined := len(session.Participants) - 1
	if joined < 0 {
		joined = 0
	}
	target := session.MaxPlayers - joined
	if target > len(ranked) {
		target = len(ranked)
	}
	if target < 0 {
		target = 0
	}

	s := &InviteScheduler{
		sessionID: session.SessionID,
		ranked:    ranked,
		target:    target,
		store:     store,
		notifier:  notifier,
		cfg:       cfg.withDefaults(),
		full:      full,
		log:       logging.ForSession(session.SessionID),
		runDone:   make(chan struct{}),
		watchDone: make(chan struct{}),
		done:      make(chan struct{}),
	}
	s.dispatchCtx, s.stopDispatch = context.WithCancel(parent)
	s.watchCtx, s.stopWatch = context.WithCancel(parent)
	return s
}

// Start launches the dispatch loop and the fullness watcher
func (s *InviteScheduler) Start() {
	s.startOnce.Do(func() {
		go s.run()
		go s.watch()
		go func() {
			<-s.runDone
			<-s.watchDone
			close(s.done)
		}()
	})
}

// Stop cancels the scheduler and waits for it to exit
func (s *InviteScheduler) Stop() {
	s.stopDispatch()
	s.stopWatch()
	s.Start()
	<-s.done
}

// Done is closed once both the dispatch loop and the watcher have exited
func (s *InviteScheduler) Done() <-chan struct{} {
	return s.done
}

func (s *InviteScheduler) finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Progress reports the cursor, the number of send attempts and the target
func (s *InviteScheduler) Progress() (cursor, sent, target int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor, s.sent, s.target
}

func (s *InviteScheduler) run() {
	defer close(s.runDone)
	for {
		delivered, more, err := s.DispatchBatch(s.dispatchCtx)
		if err != nil {
			if s.dispatchCtx.Err() == nil {
				s.log.Warnw("invite dispatch stopped", "error", err)
			}
			return
		}
		if delivered == 0 {
			if !more {
				s.log.Debugw("invite scheduler finished")
				return
			}
			continue
		}

		if !s.sleep(s.cfg.ReconcileDelay) {
			return
		}
		cont, err := s.Reconcile(s.dispatchCtx)
		if err != nil {
			if s.dispatchCtx.Err() == nil {
				s.log.Warnw("invite reconciliation failed", "error", err)
			}
			return
		}
		if !cont {
			s.log.Debugw("invite scheduler finished")
			return
		}
	}
}

// DispatchBatch sends the next batch of invites. It reads the session fresh
// and never attempts more sends than the spots open at that moment. more is
// false once the scheduler reached a terminal state: the session is full or
// gone, or the cursor reached the target.
func (s *InviteScheduler) DispatchBatch(ctx context.Context) (delivered int, more bool, err error) {
	session, err := s.store.FindByKey(ctx, s.sessionID)
	if errors.Is(err, models.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if session.Status != models.SessionOpen {
		return 0, false, nil
	}
	spotsLeft := session.SpotsLeft()
	if spotsLeft <= 0 || !s.remaining() {
		return 0, false, nil
	}

	summary := summarize(session)
	attempts := 0
	for attempts < spotsLeft {
		if err := ctx.Err(); err != nil {
			return delivered, false, err
		}
		c, ok := s.next()
		if !ok {
			break
		}
		userID := c.UserID()
		if session.HasParticipant(userID) || session.HasInvite(userID) {
			continue
		}

		attempts++
		s.mu.Lock()
		s.sent++
		s.mu.Unlock()

		ref, err := s.notifier.SendDirectInvite(ctx, userID, summary)
		if err != nil {
			if errors.Is(err, models.ErrDeliveryFailed) {
				s.log.Infow("invite not delivered", "userId", userID, "error", err)
			} else {
				s.log.Warnw("failed to send invite", "userId", userID, "error", err)
			}
			continue
		}

		err = s.record(ctx, models.InviteRecord{UserID: userID, ChannelID: ref.ChannelID, MessageID: ref.MessageID})
		switch {
		case err == nil:
			delivered++
		case errors.Is(err, models.ErrAlreadyJoined):
			s.revoke(context.WithoutCancel(ctx), ref)
		case errors.Is(err, models.ErrSessionFull), errors.Is(err, models.ErrSessionClosed), errors.Is(err, models.ErrNotFound):
			s.revoke(context.WithoutCancel(ctx), ref)
			return delivered, false, nil
		default:
			s.revoke(context.WithoutCancel(ctx), ref)
			return delivered, false, err
		}
	}
	return delivered, s.remaining(), nil
}

// Reconcile revokes every outstanding invite whose candidate has not joined
// and reports whether another batch should follow.
func (s *InviteScheduler) Reconcile(ctx context.Context) (bool, error) {
	session, err := s.store.FindByKey(ctx, s.sessionID)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !session.Status.Active() {
		return false, nil
	}

	stale := make(map[string]struct{})
	for _, inv := range session.PersonalizedInvites {
		if session.HasParticipant(inv.UserID) {
			continue
		}
		s.revoke(ctx, inv.Message())
		stale[inv.MessageID] = struct{}{}
	}

	if len(stale) > 0 {
		updated, err := mutateSession(ctx, s.store, s.sessionID, func(sess *models.Session) error {
			kept := make([]models.InviteRecord, 0, len(sess.PersonalizedInvites))
			for _, inv := range sess.PersonalizedInvites {
				if _, ok := stale[inv.MessageID]; ok && !sess.HasParticipant(inv.UserID) {
					continue
				}
				kept = append(kept, inv)
			}
			if len(kept) == len(sess.PersonalizedInvites) {
				return errNoChange
			}
			sess.PersonalizedInvites = kept
			return nil
		})
		if err != nil {
			return false, err
		}
		session = updated
	}

	return session.Status == models.SessionOpen && s.remaining(), nil
}

func (s *InviteScheduler) watch() {
	defer close(s.watchDone)
	ticker := time.NewTicker(s.cfg.WatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.watchCtx.Done():
			return
		case <-s.runDone:
			s.checkFull(s.watchCtx)
			return
		case <-s.full:
		case <-ticker.C:
		}
		if s.checkFull(s.watchCtx) {
			return
		}
	}
}

// checkFull reports whether the watcher is done. On a full session it stops
// dispatch first so nothing new is recorded, then revokes what is left.
func (s *InviteScheduler) checkFull(ctx context.Context) bool {
	session, err := s.store.FindByKey(ctx, s.sessionID)
	if errors.Is(err, models.ErrNotFound) {
		s.stopDispatch()
		return true
	}
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warnw("fullness check failed", "error", err)
		}
		return ctx.Err() != nil
	}

	switch session.Status {
	case models.SessionOpen:
		return false
	case models.SessionFull:
		s.stopDispatch()
		<-s.runDone
		if err := s.revokeAll(ctx); err != nil {
			s.log.Warnw("failed to revoke invites on full session", "error", err)
		}
		return true
	default:
		// teardown owns the remaining invites
		s.stopDispatch()
		return true
	}
}

func (s *InviteScheduler) revokeAll(ctx context.Context) error {
	session, err := s.store.FindByKey(ctx, s.sessionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return err
	}
	if len(session.PersonalizedInvites) == 0 {
		return nil
	}

	revoked := make(map[string]struct{}, len(session.PersonalizedInvites))
	for _, inv := range session.PersonalizedInvites {
		s.revoke(ctx, inv.Message())
		revoked[inv.MessageID] = struct{}{}
	}
	s.log.Infow("session full, revoked outstanding invites", "count", len(revoked))

	_, err = mutateSession(ctx, s.store, s.sessionID, func(sess *models.Session) error {
		kept := make([]models.InviteRecord, 0, len(sess.PersonalizedInvites))
		for _, inv := range sess.PersonalizedInvites {
			if _, ok := revoked[inv.MessageID]; !ok {
				kept = append(kept, inv)
			}
		}
		if len(kept) == len(sess.PersonalizedInvites) {
			return errNoChange
		}
		sess.PersonalizedInvites = kept
		return nil
	})
	return err
}

// record stores a delivered invite. It refuses when the session stopped
// accepting players after the invite went out.
func (s *InviteScheduler) record(ctx context.Context, inv models.InviteRecord) error {
	_, err := mutateSession(ctx, s.store, s.sessionID, func(sess *models.Session) error {
		switch {
		case sess.Status == models.SessionFull:
			return models.ErrSessionFull
		case !sess.Status.Active():
			return models.ErrSessionClosed
		case sess.HasParticipant(inv.UserID):
			return models.ErrAlreadyJoined
		}
		sess.DropInvite(inv.UserID)
		sess.PersonalizedInvites = append(sess.PersonalizedInvites, inv)
		return nil
	})
	return err
}

func (s *InviteScheduler) revoke(ctx context.Context, ref models.PostRef) {
	err := s.notifier.DeleteMessage(ctx, ref)
	switch {
	case err == nil:
	case errors.Is(err, models.ErrAlreadyGone), errors.Is(err, models.ErrDeliveryFailed):
		s.log.Debugw("invite already gone", "channelId", ref.ChannelID, "messageId", ref.MessageID)
	default:
		s.log.Warnw("failed to revoke invite", "channelId", ref.ChannelID, "messageId", ref.MessageID, "error", err)
	}
}

func (s *InviteScheduler) next() (Candidate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor >= s.target {
		return Candidate{}, false
	}
	c := s.ranked[s.cursor]
	s.cursor++
	return c, true
}

func (s *InviteScheduler) remaining() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor < s.target
}

func (s *InviteScheduler) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.dispatchCtx.Done():
		return false
	case <-t.C:
		return true
	}
}
