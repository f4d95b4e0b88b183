package matchmaking

import (
	"context"
	"fmt"
	"sync"

	"github.com/linesmerrill/lfg-matchmaker/models"
)

// memStore is a SessionStore with the same version check as mongo
type memStore struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	updates  int
	findErr  error
}

func newMemStore(sessions ...*models.Session) *memStore {
	st := &memStore{sessions: make(map[string]*models.Session)}
	for _, s := range sessions {
		c := s.Clone()
		if c.Version == 0 {
			c.Version = 1
		}
		st.sessions[c.SessionID] = c
	}
	return st
}

func (m *memStore) Create(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creatorTaken(s) {
		return models.ErrActiveSessionExists
	}
	if s.Version == 0 {
		s.Version = 1
	}
	m.sessions[s.SessionID] = s.Clone()
	return nil
}

func (m *memStore) FindByKey(_ context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return s.Clone(), nil
}

func (m *memStore) FindOpenByCreator(_ context.Context, creatorID string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.CreatorID == creatorID && s.Status.Active() {
			return s.Clone(), nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memStore) FindByVoiceChannel(_ context.Context, channelID string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.VoiceChannelID == channelID && s.Status.Active() {
			return s.Clone(), nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memStore) FindActive(_ context.Context) ([]models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Session
	for _, s := range m.sessions {
		if s.Status.Active() || s.Status == models.SessionClosing {
			out = append(out, *s.Clone())
		}
	}
	return out, nil
}

func (m *memStore) Update(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[s.SessionID]
	if !ok || cur.Version != s.Version {
		return models.ErrVersionConflict
	}
	if m.creatorTaken(s) {
		return models.ErrActiveSessionExists
	}
	s.Version++
	m.sessions[s.SessionID] = s.Clone()
	m.updates++
	return nil
}

// creatorTaken mirrors the sparse unique index on activeCreator
func (m *memStore) creatorTaken(s *models.Session) bool {
	if s.ActiveCreator == "" {
		return false
	}
	for id, other := range m.sessions {
		if id != s.SessionID && other.ActiveCreator == s.ActiveCreator {
			return true
		}
	}
	return false
}

// get returns the stored copy
func (m *memStore) get(id string) *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s.Clone()
	}
	return nil
}

// edit changes the stored session the way another writer would
func (m *memStore) edit(id string, fn func(*models.Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[id]
	fn(s)
	s.Version++
}

func (m *memStore) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

func (m *memStore) setFindErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findErr = err
}

type fakeProfiles struct {
	byID map[string]models.Profile
	err  error
}

func newFakeProfiles(profiles ...models.Profile) *fakeProfiles {
	f := &fakeProfiles{byID: make(map[string]models.Profile)}
	for _, p := range profiles {
		f.byID[p.DiscordID] = p
	}
	return f
}

func (f *fakeProfiles) FindByDiscordID(_ context.Context, id string) (*models.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &p, nil
}

func (f *fakeProfiles) FindByDiscordIDs(_ context.Context, ids []string) ([]models.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Profile
	// reverse lookup order so callers cannot rely on store order
	for i := len(ids) - 1; i >= 0; i-- {
		if p, ok := f.byID[ids[i]]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// recordingNotifier records every platform call
type recordingNotifier struct {
	mu            sync.Mutex
	seq           int
	invites       []string
	inviteRefs    map[string]models.PostRef
	deleted       []models.PostRef
	deletedChans  []string
	posts         []models.PostRef
	created       int
	grants        map[string][]string
	broadcasts    [][]string
	summaries     []string
	sendErr       map[string]error
	deleteErr     error
	deleteChanErr error
	onSend        func(userID string)
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		inviteRefs: make(map[string]models.PostRef),
		grants:     make(map[string][]string),
		sendErr:    make(map[string]error),
	}
}

func (n *recordingNotifier) SendDirectInvite(_ context.Context, userID string, _ SessionSummary) (models.PostRef, error) {
	n.mu.Lock()
	n.invites = append(n.invites, userID)
	err := n.sendErr[userID]
	n.seq++
	ref := models.PostRef{ChannelID: "dm-" + userID, MessageID: fmt.Sprintf("invite-%d", n.seq)}
	if err == nil {
		n.inviteRefs[userID] = ref
	}
	hook := n.onSend
	n.mu.Unlock()
	if hook != nil {
		hook(userID)
	}
	if err != nil {
		return models.PostRef{}, err
	}
	return ref, nil
}

func (n *recordingNotifier) PostToChannel(_ context.Context, channelID string, _ SessionSummary) (models.PostRef, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seq++
	ref := models.PostRef{ChannelID: channelID, MessageID: fmt.Sprintf("post-%d", n.seq)}
	n.posts = append(n.posts, ref)
	return ref, nil
}

func (n *recordingNotifier) DeleteMessage(_ context.Context, ref models.PostRef) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deleted = append(n.deleted, ref)
	return n.deleteErr
}

func (n *recordingNotifier) DeleteChannel(_ context.Context, channelID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deletedChans = append(n.deletedChans, channelID)
	return n.deleteChanErr
}

func (n *recordingNotifier) CreateSessionChannels(_ context.Context, _, _, _ string) (string, string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created++
	return fmt.Sprintf("text-%d", n.created), fmt.Sprintf("voice-%d", n.created), nil
}

func (n *recordingNotifier) GrantChannelAccess(_ context.Context, channelIDs []string, userID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.grants[userID] = append([]string(nil), channelIDs...)
	return nil
}

func (n *recordingNotifier) BroadcastSummary(_ context.Context, userIDs []string, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.broadcasts = append(n.broadcasts, append([]string(nil), userIDs...))
	n.summaries = append(n.summaries, text)
}

func (n *recordingNotifier) sentInvites() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.invites...)
}

func (n *recordingNotifier) deletedMessages() []models.PostRef {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.PostRef(nil), n.deleted...)
}

func (n *recordingNotifier) deletedChannels() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.deletedChans...)
}

func (n *recordingNotifier) broadcastCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.broadcasts)
}

func (n *recordingNotifier) inviteRef(userID string) models.PostRef {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.inviteRefs[userID]
}

type staticPresence []string

func (p staticPresence) EligibleCandidates(context.Context, string) ([]string, error) {
	return p, nil
}

type fakeOccupancy struct {
	mu      sync.Mutex
	members map[string]int
}

func (o *fakeOccupancy) VoiceMembers(channelID string) (int, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	n, ok := o.members[channelID]
	return n, ok
}

func (o *fakeOccupancy) set(channelID string, n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.members == nil {
		o.members = make(map[string]int)
	}
	o.members[channelID] = n
}

// openSession is a stored session hosted by "host"
func openSession(id string, maxPlayers int, extra ...string) *models.Session {
	s := &models.Session{
		SessionID:           id,
		GuildID:             "guild",
		CreatorID:           "host",
		CreatorUsername:     "hostname",
		GameID:              "game-1",
		GameName:            "Rocket League",
		Platform:            "PC",
		MaxPlayers:          maxPlayers,
		Participants:        []models.Participant{{DiscordID: "host", DiscordUsername: "hostname"}},
		Status:              models.SessionOpen,
		Posts:               []models.PostRef{{ChannelID: "lfg-pc", MessageID: "post-" + id}},
		TextChannelID:       "text-" + id,
		VoiceChannelID:      "voice-" + id,
		PersonalizedInvites: []models.InviteRecord{},
	}
	for _, p := range extra {
		s.Participants = append(s.Participants, models.Participant{DiscordID: p, DiscordUsername: p})
	}
	return s
}

// rankedIDs builds candidates already sorted best first
func rankedIDs(ids ...string) []Candidate {
	out := make([]Candidate, 0, len(ids))
	for i, id := range ids {
		out = append(out, Candidate{
			Profile: models.Profile{DiscordID: id, DiscordUsername: id},
			Score:   float64(len(ids) - i),
		})
	}
	return out
}
