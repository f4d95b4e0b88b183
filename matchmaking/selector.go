package matchmaking

import (
	"context"
	"math/rand/v2"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/linesmerrill/lfg-matchmaker/models"
)

// DefaultCandidateCap bounds the pool that gets scored
const DefaultCandidateCap = 100

// Candidate is a scored profile
type Candidate struct {
	Profile models.Profile
	Score   float64
}

// UserID is the platform account the invite goes to
func (c Candidate) UserID() string {
	return c.Profile.DiscordID
}

// Selector turns a presence snapshot into a ranked invite list and waitlist
type Selector struct {
	profiles ProfileStore
	scorer   *Scorer
	cap      int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector returns a Selector. A nil rng seeds one from the runtime.
func NewSelector(profiles ProfileStore, scorer *Scorer, cap int, rng *rand.Rand) *Selector {
	if cap <= 0 {
		cap = DefaultCandidateCap
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Selector{profiles: profiles, scorer: scorer, cap: cap, rng: rng}
}

// Select ranks the eligible users for session. The head of the ranking, at
// most MaxPlayers-1 long, is the initial invite list; the rest is the
// waitlist used for backfill. An empty pool yields two empty lists.
func (s *Selector) Select(ctx context.Context, session *models.Session, host *models.Profile, eligible []string) (invites, waitlist []Candidate, err error) {
	ids := dedupe(eligible)
	if len(ids) == 0 || host == nil {
		return nil, nil, nil
	}

	profiles, err := s.profiles.FindByDiscordIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[string]models.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.DiscordID] = p
	}

	pool := make([]models.Profile, 0, len(profiles))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok || !p.LFGInviteOptIn {
			continue
		}
		if !p.Platforms.Contains(session.Platform) {
			continue
		}
		if !p.GameIDs.Contains(session.GameID) {
			continue
		}
		if p.DiscordID == session.CreatorID || (host.DiscordID != "" && p.DiscordID == host.DiscordID) {
			continue
		}
		pool = append(pool, p)
	}

	if len(pool) > s.cap {
		pool = s.sample(pool)
	}

	ranked := make([]Candidate, 0, len(pool))
	for _, p := range pool {
		if p.DiscordUsername == "" {
			zap.S().Debugw("skipping candidate without a linked account", "userId", p.DiscordID)
			continue
		}
		ranked = append(ranked, Candidate{Profile: p, Score: s.scorer.Score(host, &p)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	split := session.MaxPlayers - 1
	if split < 0 {
		split = 0
	}
	if split > len(ranked) {
		split = len(ranked)
	}
	return ranked[:split:split], ranked[split:], nil
}

// sample keeps a uniform random subset of exactly cap profiles
func (s *Selector) sample(pool []models.Profile) []models.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < s.cap; i++ {
		j := i + s.rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:s.cap]
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
