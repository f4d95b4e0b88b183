package matchmaking

import (
	"math"
	"time"

	"github.com/linesmerrill/lfg-matchmaker/models"
)

const earthRadiusKm = 6371.0

// RecencyTier grants Bonus when the candidate was active within Within
type RecencyTier struct {
	Within time.Duration
	Bonus  float64
}

// Weights tunes MatchScorer
type Weights struct {
	Platform             float64
	AboutMe              float64
	Avatar               float64
	SameCountry          float64
	Recency              []RecencyTier // ordered from the tightest window
	Proximity            float64
	ProximityCapKm       float64
	Personality          float64
	PersonalityQuestions int
}

// DefaultWeights are the production scoring constants
func DefaultWeights() Weights {
	return Weights{
		Platform:    0.5,
		AboutMe:     0.05,
		Avatar:      0.05,
		SameCountry: 0.05,
		Recency: []RecencyTier{
			{Within: time.Hour, Bonus: 0.2},
			{Within: 24 * time.Hour, Bonus: 0.1},
			{Within: 7 * 24 * time.Hour, Bonus: 0.05},
			{Within: 30 * 24 * time.Hour, Bonus: 0.02},
		},
		Proximity:            0.1,
		ProximityCapKm:       500,
		Personality:          0.2,
		PersonalityQuestions: 10,
	}
}

// Scorer measures how well a candidate fits a session hosted by host.
// It is asymmetric: overlap ratios are normalized by the host's set sizes.
type Scorer struct {
	weights Weights
	now     func() time.Time
}

// NewScorer returns a Scorer. now defaults to time.Now.
func NewScorer(w Weights, now func() time.Time) *Scorer {
	if now == nil {
		now = time.Now
	}
	return &Scorer{weights: w, now: now}
}

// Score is criteria × modifier, where criteria is the weighted platform and
// genre overlap and modifier is 1 plus every bonus. It never returns a
// negative value.
func (s *Scorer) Score(host, candidate *models.Profile) float64 {
	if host == nil || candidate == nil {
		return 0
	}
	w := s.weights

	criteria := overlapRatio(host.Platforms, candidate.Platforms)*w.Platform +
		overlapRatio(host.Genres, candidate.Genres)
	if criteria == 0 {
		return 0
	}

	modifier := 1.0
	if candidate.HasAboutMe() {
		modifier += w.AboutMe
	}
	if candidate.HasAvatar() {
		modifier += w.Avatar
	}
	if c := host.Country(); c != "" && c == candidate.Country() {
		modifier += w.SameCountry
	}
	modifier += s.recency(candidate)
	modifier += s.proximity(host, candidate)
	modifier += s.personality(host, candidate)

	return criteria * modifier
}

// overlapRatio is |host ∩ candidate| / max(1, |host|) over distinct values
func overlapRatio(host, candidate models.StringList) float64 {
	hostSet := make(map[string]struct{}, len(host))
	for _, v := range host {
		hostSet[v] = struct{}{}
	}
	if len(hostSet) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(candidate))
	shared := 0
	for _, v := range candidate {
		if _, ok := hostSet[v]; !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		shared++
	}
	return float64(shared) / math.Max(1, float64(len(hostSet)))
}

func (s *Scorer) recency(candidate *models.Profile) float64 {
	if candidate.LastActiveAt.IsZero() {
		return 0
	}
	elapsed := s.now().Sub(candidate.LastActiveAt.Time)
	if elapsed < 0 {
		elapsed = 0
	}
	for _, tier := range s.weights.Recency {
		if elapsed < tier.Within {
			return tier.Bonus
		}
	}
	return 0
}

func (s *Scorer) proximity(host, candidate *models.Profile) float64 {
	w := s.weights
	if w.ProximityCapKm <= 0 {
		return 0
	}
	hLat, hLng, ok := host.LatLng()
	if !ok || !validCoords(hLat, hLng) {
		return 0
	}
	cLat, cLng, ok := candidate.LatLng()
	if !ok || !validCoords(cLat, cLng) {
		return 0
	}
	d := haversineKm(hLat, hLng, cLat, cLng)
	if d >= w.ProximityCapKm {
		return 0
	}
	return w.Proximity * (1 - d/w.ProximityCapKm)
}

// personality rewards answering the same question set as the host. Each
// question answered by both scores 100 − |Δ|; the mean is scaled by the share
// of the set both answered, so a full overlap earns the whole weight.
func (s *Scorer) personality(host, candidate *models.Profile) float64 {
	n := s.weights.PersonalityQuestions
	if n <= 0 || len(host.PersonalityAnswers) != n || len(candidate.PersonalityAnswers) != n {
		return 0
	}
	total, both := 0, 0
	for i := 0; i < n; i++ {
		h, c := host.PersonalityAnswers[i], candidate.PersonalityAnswers[i]
		if h == models.Unanswered || c == models.Unanswered {
			continue
		}
		diff := h - c
		if diff < 0 {
			diff = -diff
		}
		total += 100 - diff
		both++
	}
	if both == 0 {
		return 0
	}
	mean := float64(total) / float64(both) / 100
	return s.weights.Personality * mean * float64(both) / float64(n)
}

func validCoords(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}
