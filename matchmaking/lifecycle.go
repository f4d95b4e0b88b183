package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linesmerrill/lfg-matchmaker/logging"
	"github.com/linesmerrill/lfg-matchmaker/models"
)

// Trigger names what asked for a teardown
type Trigger string

// Teardown triggers
const (
	TriggerExplicit  Trigger = "explicit"
	TriggerIdle      Trigger = "idle"
	TriggerReconcile Trigger = "reconcile"
	TriggerAdmin     Trigger = "admin"
)

// Session request limits
const (
	DefaultMaxPlayers     = 2
	MinPlayers            = 2
	MaxPlayers            = 99
	MaxDescriptionLength  = 250
	DefaultDescription    = "No description provided."
	DefaultIdleGrace      = 60 * time.Second
	backgroundCallTimeout = 30 * time.Second
)

// Deps are the collaborators a Manager drives
type Deps struct {
	Sessions  SessionStore
	Profiles  ProfileStore
	Notifier  Notifier
	Presence  PresenceSource
	Occupancy Occupancy // optional
}

// Options tune a Manager
type Options struct {
	Scheduler    SchedulerConfig
	IdleGrace    time.Duration
	CandidateCap int
	Weights      *Weights
	// PostChannel returns the advertisement channel for a platform
	PostChannel func(platform string) (string, bool)
	Now         func() time.Time
}

// OpenRequest describes a new session
type OpenRequest struct {
	GuildID          string
	CreatorID        string
	CreatorUsername  string
	CreatorProfileID string
	GameID           string
	GameName         string
	Platform         string
	Description      string
	MaxPlayers       int
}

// Manager owns the session lifecycle: open, join, fill, and the single
// teardown that every end trigger funnels into.
type Manager struct {
	sessions  SessionStore
	profiles  ProfileStore
	notifier  Notifier
	presence  PresenceSource
	occupancy Occupancy
	selector  *Selector
	opts      Options
	now       func() time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	timers  *timerRegistry
	closing sync.Map

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// NewManager builds a Manager. Call Close to stop its background work.
func NewManager(deps Deps, opts Options) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.IdleGrace <= 0 {
		opts.IdleGrace = DefaultIdleGrace
	}
	opts.Scheduler = opts.Scheduler.withDefaults()
	weights := DefaultWeights()
	if opts.Weights != nil {
		weights = *opts.Weights
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		sessions:  deps.Sessions,
		profiles:  deps.Profiles,
		notifier:  deps.Notifier,
		presence:  deps.Presence,
		occupancy: deps.Occupancy,
		selector:  NewSelector(deps.Profiles, NewScorer(weights, opts.Now), opts.CandidateCap, nil),
		opts:      opts,
		now:       opts.Now,
		ctx:       ctx,
		cancel:    cancel,
		timers:    newTimerRegistry(ctx),
	}
}

// Close cancels every session timer and waits for background matchmaking
func (m *Manager) Close() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()

	m.cancel()
	for _, s := range m.timers.releaseAll() {
		s.Stop()
	}
	m.wg.Wait()
}

// track counts background work for Close. It refuses once Close started.
func (m *Manager) track() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return false
	}
	m.wg.Add(1)
	return true
}

// Get returns the stored session
func (m *Manager) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	return m.sessions.FindByKey(ctx, sessionID)
}

// Open creates a session for the creator, advertises it and starts
// matchmaking in the background.
func (m *Manager) Open(ctx context.Context, req OpenRequest) (*models.Session, error) {
	if err := normalize(&req); err != nil {
		return nil, err
	}

	_, err := m.sessions.FindOpenByCreator(ctx, req.CreatorID)
	if err == nil {
		return nil, models.ErrActiveSessionExists
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	sessionID := uuid.NewString()
	log := logging.ForSession(sessionID)

	textID, voiceID, err := m.notifier.CreateSessionChannels(ctx, req.GuildID, channelName(req), req.CreatorID)
	if err != nil {
		return nil, fmt.Errorf("create session channels: %w", err)
	}

	now := m.now()
	session := &models.Session{
		SessionID:        sessionID,
		GuildID:          req.GuildID,
		CreatorID:        req.CreatorID,
		CreatorUsername:  req.CreatorUsername,
		CreatorProfileID: req.CreatorProfileID,
		GameID:           req.GameID,
		GameName:         req.GameName,
		Platform:         req.Platform,
		Description:      req.Description,
		MaxPlayers:       req.MaxPlayers,
		Participants: []models.Participant{{
			DiscordID:       req.CreatorID,
			DiscordUsername: req.CreatorUsername,
			ProfileID:       req.CreatorProfileID,
		}},
		Status:              models.SessionOpen,
		ActiveCreator:       req.CreatorID,
		Posts:               []models.PostRef{},
		TextChannelID:       textID,
		VoiceChannelID:      voiceID,
		PersonalizedInvites: []models.InviteRecord{},
		CreatedAt:           now,
		UpdatedAt:           now,
		LastActivityAt:      now,
	}

	if m.opts.PostChannel != nil {
		if channelID, ok := m.opts.PostChannel(req.Platform); ok {
			ref, err := m.notifier.PostToChannel(ctx, channelID, summarize(session))
			if err != nil {
				log.Warnw("failed to post session advertisement", "channelId", channelID, "error", err)
			} else {
				session.Posts = append(session.Posts, ref)
			}
		}
	}

	if err := m.sessions.Create(ctx, session); err != nil {
		m.releaseResources(context.WithoutCancel(ctx), session, log)
		return nil, err
	}
	log.Infow("session opened", "userId", req.CreatorID, "game", req.GameName, "platform", req.Platform, "maxPlayers", req.MaxPlayers)

	timers := m.timers.ensure(sessionID, voiceID)
	created := session.Clone()
	if m.track() {
		go func() {
			defer m.wg.Done()
			if err := m.startMatchmaking(timers, created); err != nil {
				log.Warnw("matchmaking did not start", "error", err)
			}
		}()
	}

	return session, nil
}

// startMatchmaking ranks the presence snapshot and launches the session's
// invite scheduler
func (m *Manager) startMatchmaking(timers *sessionTimers, session *models.Session) error {
	ctx, cancel := context.WithTimeout(timers.ctx, backgroundCallTimeout)
	defer cancel()
	log := logging.ForSession(session.SessionID)

	host, err := m.profiles.FindByDiscordID(ctx, session.CreatorID)
	if errors.Is(err, models.ErrNotFound) {
		log.Infow("host has no linked profile, skipping personalized invites", "userId", session.CreatorID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load host profile: %w", err)
	}

	eligible, err := m.presence.EligibleCandidates(ctx, session.GuildID)
	if err != nil {
		return fmt.Errorf("list eligible candidates: %w", err)
	}

	invites, waitlist, err := m.selector.Select(ctx, session, host, eligible)
	if err != nil {
		return fmt.Errorf("select candidates: %w", err)
	}
	ranked := append(invites, waitlist...)
	log.Infow("candidates ranked", "eligible", len(eligible), "invites", len(invites), "waitlist", len(waitlist))
	if len(ranked) == 0 {
		return nil
	}

	scheduler := NewInviteScheduler(timers.ctx, session, ranked, m.sessions, m.notifier, m.opts.Scheduler, timers.full)
	if err := timers.attach(scheduler); err != nil {
		return err
	}
	scheduler.Start()
	return nil
}

// Join adds a participant. The session flips to full on the last spot, which
// removes its advertisements and wakes the fullness watcher.
func (m *Manager) Join(ctx context.Context, sessionID string, p models.Participant) (*models.Session, error) {
	becameFull := false
	session, err := mutateSession(ctx, m.sessions, sessionID, func(s *models.Session) error {
		becameFull = false
		switch {
		case !s.Status.Active():
			return models.ErrSessionClosed
		case s.HasParticipant(p.DiscordID):
			return models.ErrAlreadyJoined
		case s.Status == models.SessionFull || len(s.Participants) >= s.MaxPlayers:
			return models.ErrSessionFull
		}
		s.Participants = append(s.Participants, p)
		s.DropInvite(p.DiscordID)
		s.LastActivityAt = m.now()
		if len(s.Participants) >= s.MaxPlayers {
			s.Status = models.SessionFull
			becameFull = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := logging.ForSession(sessionID)
	log.Infow("participant joined", "userId", p.DiscordID, "participants", len(session.Participants), "maxPlayers", session.MaxPlayers)

	channels := channelIDs(session)
	if len(channels) > 0 {
		if err := m.notifier.GrantChannelAccess(ctx, channels, p.DiscordID); err != nil {
			log.Warnw("failed to grant channel access", "userId", p.DiscordID, "error", err)
		}
	}

	if becameFull {
		m.deletePosts(ctx, session, log)
		if timers, ok := m.timers.get(sessionID); ok {
			timers.signalFull()
		}
		log.Infow("session full")
	}
	return session, nil
}

// ActiveByCreator returns the creator's open or full session
func (m *Manager) ActiveByCreator(ctx context.Context, creatorID string) (*models.Session, error) {
	return m.sessions.FindOpenByCreator(ctx, creatorID)
}

// EndByCreator tears down the creator's open or full session
func (m *Manager) EndByCreator(ctx context.Context, creatorID string) (*models.Session, error) {
	session, err := m.sessions.FindOpenByCreator(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if err := m.Teardown(ctx, session.SessionID, TriggerExplicit); err != nil {
		return nil, err
	}
	return session, nil
}

// Teardown closes the session exactly once. The caller that moves the
// session to closing does the cleanup. Everyone else returns nil without
// side effects.
func (m *Manager) Teardown(ctx context.Context, sessionID string, trigger Trigger) error {
	won := false
	session, err := mutateSession(ctx, m.sessions, sessionID, func(s *models.Session) error {
		won = false
		if !s.Status.Active() {
			return errNoChange
		}
		s.Status = models.SessionClosing
		s.ActiveCreator = ""
		won = true
		return nil
	})
	if errors.Is(err, models.ErrNotFound) {
		m.forget(sessionID)
		return nil
	}
	if err != nil {
		return err
	}

	log := logging.ForTrigger(sessionID, string(trigger))
	if !won {
		// a record registered after the winner released its own
		m.forget(sessionID)
		log.Debugw("teardown skipped", "status", session.Status)
		return nil
	}
	return m.finishTeardown(ctx, session, log)
}

// finishTeardown runs the cleanup of a session already in closing. It is
// safe to repeat: every deletion tolerates resources that are already gone.
func (m *Manager) finishTeardown(ctx context.Context, session *models.Session, log *zap.SugaredLogger) error {
	if _, busy := m.closing.LoadOrStore(session.SessionID, struct{}{}); busy {
		log.Debugw("teardown already running")
		return nil
	}
	defer m.closing.Delete(session.SessionID)

	m.forget(session.SessionID)
	m.releaseResources(ctx, session, log)

	committed := false
	closed, err := mutateSession(ctx, m.sessions, session.SessionID, func(s *models.Session) error {
		committed = false
		if s.Status == models.SessionClosed {
			return errNoChange
		}
		committed = true
		now := m.now()
		s.Status = models.SessionClosed
		s.ActiveCreator = ""
		s.ClosedAt = &now
		s.PersonalizedInvites = []models.InviteRecord{}
		return nil
	})
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if !committed {
		return nil
	}
	log.Infow("session closed", "participants", len(closed.Participants))

	m.notifier.BroadcastSummary(ctx, closed.ParticipantIDs(), sessionSummaryText(closed))
	return nil
}

// forget drops the session's timer record and stops its scheduler
func (m *Manager) forget(sessionID string) {
	timers, ok := m.timers.get(sessionID)
	if !ok {
		return
	}
	m.timers.release(sessionID)
	if s := timers.activeScheduler(); s != nil {
		s.Stop()
	}
}

// releaseResources deletes everything the session shows on the platform
func (m *Manager) releaseResources(ctx context.Context, session *models.Session, log *zap.SugaredLogger) {
	m.deletePosts(ctx, session, log)

	for _, inv := range session.PersonalizedInvites {
		err := m.notifier.DeleteMessage(ctx, inv.Message())
		if err != nil && !errors.Is(err, models.ErrAlreadyGone) && !errors.Is(err, models.ErrDeliveryFailed) {
			log.Warnw("failed to revoke invite", "userId", inv.UserID, "messageId", inv.MessageID, "error", err)
		}
	}

	for _, channelID := range channelIDs(session) {
		err := m.notifier.DeleteChannel(ctx, channelID)
		if err != nil && !errors.Is(err, models.ErrAlreadyGone) {
			log.Warnw("failed to delete session channel", "channelId", channelID, "error", err)
		}
	}
}

func (m *Manager) deletePosts(ctx context.Context, session *models.Session, log *zap.SugaredLogger) {
	for _, post := range session.Posts {
		err := m.notifier.DeleteMessage(ctx, post)
		if err != nil && !errors.Is(err, models.ErrAlreadyGone) {
			log.Warnw("failed to delete session post", "channelId", post.ChannelID, "messageId", post.MessageID, "error", err)
		}
	}
}

// VoiceChannelEmpty arms the idle grace timer of the session owning the
// channel. Channels that belong to no live session are ignored.
func (m *Manager) VoiceChannelEmpty(ctx context.Context, channelID string) error {
	timers, ok := m.timers.byVoiceChannel(channelID)
	if !ok {
		session, err := m.sessions.FindByVoiceChannel(ctx, channelID)
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		timers = m.timers.ensure(session.SessionID, session.VoiceChannelID)
	}

	sessionID := timers.sessionID
	if _, err := mutateSession(ctx, m.sessions, sessionID, func(s *models.Session) error {
		if !s.Status.Active() {
			return errNoChange
		}
		s.LastActivityAt = m.now()
		return nil
	}); err != nil && !errors.Is(err, models.ErrNotFound) {
		logging.ForSession(sessionID).Warnw("failed to record voice activity", "error", err)
	}

	timers.armIdle(m.opts.IdleGrace, func() { m.idleExpired(sessionID, channelID) })
	logging.ForSession(sessionID).Debugw("voice channel empty, idle timer armed", "channelId", channelID, "grace", m.opts.IdleGrace)
	return nil
}

// VoiceChannelOccupied cancels a pending idle timer for the channel
func (m *Manager) VoiceChannelOccupied(channelID string) {
	timers, ok := m.timers.byVoiceChannel(channelID)
	if !ok {
		return
	}
	if timers.cancelIdle() {
		logging.ForSession(timers.sessionID).Debugw("voice channel occupied, idle timer cancelled", "channelId", channelID)
	}
}

func (m *Manager) idleExpired(sessionID, channelID string) {
	if !m.track() {
		return
	}
	defer m.wg.Done()
	if m.occupancy != nil {
		if n, ok := m.occupancy.VoiceMembers(channelID); ok && n > 0 {
			return
		}
	}
	ctx, cancel := context.WithTimeout(m.ctx, backgroundCallTimeout)
	defer cancel()
	if err := m.Teardown(ctx, sessionID, TriggerIdle); err != nil {
		logging.ForTrigger(sessionID, string(TriggerIdle)).Errorw("idle teardown failed", "error", err)
	}
}

// Reconcile scans live sessions. Sessions left in closing by an interrupted
// teardown are finished. Sessions whose voice channel is gone, or has been
// empty past the grace period with no idle timer armed, are torn down. It
// returns how many sessions it closed.
func (m *Manager) Reconcile(ctx context.Context) (int, error) {
	sessions, err := m.sessions.FindActive(ctx)
	if err != nil {
		return 0, err
	}

	closed := 0
	for i := range sessions {
		session := &sessions[i]
		log := logging.ForTrigger(session.SessionID, string(TriggerReconcile))

		if session.Status == models.SessionClosing {
			if err := m.finishTeardown(ctx, session, log); err != nil {
				log.Errorw("failed to resume teardown", "error", err)
				continue
			}
			closed++
			continue
		}

		timers := m.timers.ensure(session.SessionID, session.VoiceChannelID)
		if timers.idleArmed() || m.occupancy == nil {
			continue
		}
		members, exists := m.occupancy.VoiceMembers(session.VoiceChannelID)
		if exists && members > 0 {
			continue
		}
		if exists && m.now().Sub(session.LastActivityAt) < m.opts.IdleGrace {
			continue
		}
		if err := m.Teardown(ctx, session.SessionID, TriggerReconcile); err != nil {
			log.Errorw("reconcile teardown failed", "error", err)
			continue
		}
		closed++
	}
	if closed > 0 {
		zap.S().Infow("reconciliation closed sessions", "count", closed)
	}
	return closed, nil
}

func normalize(req *OpenRequest) error {
	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		req.Description = DefaultDescription
	}
	if req.MaxPlayers == 0 {
		req.MaxPlayers = DefaultMaxPlayers
	}
	switch {
	case req.CreatorID == "":
		return fmt.Errorf("%w: creator is required", models.ErrInvalidSession)
	case req.GameID == "" || req.GameName == "":
		return fmt.Errorf("%w: game is required", models.ErrInvalidSession)
	case req.Platform == "":
		return fmt.Errorf("%w: platform is required", models.ErrInvalidSession)
	case req.MaxPlayers < MinPlayers || req.MaxPlayers > MaxPlayers:
		return fmt.Errorf("%w: max players must be between %d and %d", models.ErrInvalidSession, MinPlayers, MaxPlayers)
	case utf8.RuneCountInString(req.Description) > MaxDescriptionLength:
		return fmt.Errorf("%w: description is longer than %d characters", models.ErrInvalidSession, MaxDescriptionLength)
	}
	return nil
}

func channelName(req OpenRequest) string {
	name := req.CreatorUsername
	if name == "" {
		name = req.CreatorID
	}
	return fmt.Sprintf("%s-%s", req.GameName, name)
}

func channelIDs(s *models.Session) []string {
	ids := make([]string, 0, 2)
	if s.TextChannelID != "" {
		ids = append(ids, s.TextChannelID)
	}
	if s.VoiceChannelID != "" {
		ids = append(ids, s.VoiceChannelID)
	}
	return ids
}

func sessionSummaryText(s *models.Session) string {
	mentions := make([]string, 0, len(s.Participants))
	for _, p := range s.Participants {
		mentions = append(mentions, fmt.Sprintf("<@%s>", p.DiscordID))
	}
	var b strings.Builder
	b.WriteString("**Session Summary**\n\n")
	fmt.Fprintf(&b, "**Game:** %s\n", s.GameName)
	fmt.Fprintf(&b, "**Platform:** %s\n", s.Platform)
	fmt.Fprintf(&b, "**Players:** %s\n", strings.Join(mentions, ", "))
	if s.ClosedAt != nil {
		fmt.Fprintf(&b, "**Duration:** %s\n", s.ClosedAt.Sub(s.CreatedAt).Round(time.Minute))
	}
	b.WriteString("\nThanks for playing! Find your next group with /lfg.")
	return b.String()
}
