package matchmaking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/linesmerrill/lfg-matchmaker/models"
)

var scoreNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func testScorer() *Scorer {
	return NewScorer(DefaultWeights(), func() time.Time { return scoreNow })
}

func answers(v ...int) models.AnswerList {
	return models.AnswerList(v)
}

func repeat(v, n int) models.AnswerList {
	out := make(models.AnswerList, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestScorePlatformOverlapIsNormalizedByHost(t *testing.T) {
	s := testScorer()
	host := &models.Profile{Platforms: models.StringList{"PC", "PlayStation"}}
	candidate := &models.Profile{Platforms: models.StringList{"PC"}}

	// 1 of the host's 2 platforms, weighted by 0.5
	assert.InDelta(t, 0.25, s.Score(host, candidate), 1e-9)
	// the reverse direction covers the whole host set
	assert.InDelta(t, 0.5, s.Score(candidate, host), 1e-9)
}

func TestScoreIsZeroWithoutSharedAttributes(t *testing.T) {
	s := testScorer()
	host := &models.Profile{
		Platforms:     models.StringList{"PC"},
		Genres:        models.StringList{"Shooter"},
		GameIDs:       models.StringList{"g1"},
		ConnectionIDs: models.StringList{"c1"},
	}
	candidate := &models.Profile{
		Platforms:     models.StringList{"Xbox"},
		Genres:        models.StringList{"Racing"},
		GameIDs:       models.StringList{"g2"},
		ConnectionIDs: models.StringList{"c2"},
	}

	assert.Equal(t, 0.0, s.Score(host, candidate))
	assert.Equal(t, 0.0, s.Score(&models.Profile{}, &models.Profile{}))
	assert.Equal(t, 0.0, s.Score(nil, candidate))
}

func TestScoreIsDeterministicAndNonNegative(t *testing.T) {
	s := testScorer()
	host := &models.Profile{
		Platforms:          models.StringList{"PC", "PC", "Switch"},
		Genres:             models.StringList{"RPG"},
		PersonalityAnswers: repeat(0, 10),
	}
	candidate := &models.Profile{
		Platforms:          models.StringList{"PC", "PC"},
		Genres:             models.StringList{"RPG", "RPG"},
		PersonalityAnswers: repeat(100, 10),
		LastActiveAt:       models.Timestamp{Time: scoreNow.Add(time.Hour)},
	}

	first := s.Score(host, candidate)
	assert.Equal(t, first, s.Score(host, candidate))
	assert.GreaterOrEqual(t, first, 0.0)
	// duplicates count once: 1/2 platforms, 1/1 genres, future activity is the top tier
	assert.InDelta(t, (0.25+1)*1.2, first, 1e-9)
}

func TestScoreProfileBonuses(t *testing.T) {
	s := testScorer()
	host := &models.Profile{
		Platforms: models.StringList{"PC"},
		Genres:    models.StringList{"Shooter"},
		Location:  &models.Location{Country: "US"},
	}
	candidate := &models.Profile{
		Platforms: models.StringList{"PC"},
		Genres:    models.StringList{"Shooter"},
		Details:   &models.ProfileDetails{AboutMe: "hello"},
		Avatar:    &models.Avatar{Secure: "https://cdn/avatar.png"},
		Location:  &models.Location{Country: "US"},
	}
	assert.InDelta(t, 1.5*1.15, s.Score(host, candidate), 1e-9)

	// an unknown country on both sides is not a match
	host.Location.Country = ""
	candidate.Location.Country = ""
	assert.InDelta(t, 1.5*1.10, s.Score(host, candidate), 1e-9)
}

func TestScoreRecencyTiers(t *testing.T) {
	s := testScorer()
	host := &models.Profile{Genres: models.StringList{"RPG"}}

	tests := []struct {
		name string
		ago  time.Duration
		zero bool
		want float64
	}{
		{name: "within the hour", ago: 30 * time.Minute, want: 1.2},
		{name: "within the day", ago: 2 * time.Hour, want: 1.1},
		{name: "within the week", ago: 3 * 24 * time.Hour, want: 1.05},
		{name: "within the month", ago: 10 * 24 * time.Hour, want: 1.02},
		{name: "older", ago: 60 * 24 * time.Hour, want: 1.0},
		{name: "never active", zero: true, want: 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate := &models.Profile{Genres: models.StringList{"RPG"}}
			if !tt.zero {
				candidate.LastActiveAt = models.Timestamp{Time: scoreNow.Add(-tt.ago)}
			}
			assert.InDelta(t, tt.want, s.Score(host, candidate), 1e-9)
		})
	}
}

func TestScoreProximity(t *testing.T) {
	s := testScorer()
	at := func(lng, lat float64) *models.Location {
		return &models.Location{Coordinates: models.FloatList{lng, lat}}
	}
	host := &models.Profile{Genres: models.StringList{"RPG"}, Location: at(-122.4194, 37.7749)}
	candidate := &models.Profile{Genres: models.StringList{"RPG"}}

	candidate.Location = at(-122.4194, 37.7749)
	assert.InDelta(t, 1.1, s.Score(host, candidate), 1e-9)

	// San Jose is roughly 68km away
	candidate.Location = at(-121.8863, 37.3382)
	score := s.Score(host, candidate)
	assert.Greater(t, score, 1.08)
	assert.Less(t, score, 1.09)

	// Los Angeles is beyond the cap
	candidate.Location = at(-118.2437, 34.0522)
	assert.InDelta(t, 1.0, s.Score(host, candidate), 1e-9)

	candidate.Location = &models.Location{Coordinates: models.FloatList{-122.4}}
	assert.InDelta(t, 1.0, s.Score(host, candidate), 1e-9)

	candidate.Location = at(500, 37.7749)
	assert.InDelta(t, 1.0, s.Score(host, candidate), 1e-9)
}

func TestScorePersonality(t *testing.T) {
	s := testScorer()
	u := models.Unanswered

	tests := []struct {
		name      string
		host      models.AnswerList
		candidate models.AnswerList
		want      float64
	}{
		{name: "identical answers", host: repeat(40, 10), candidate: repeat(40, 10), want: 1.2},
		{name: "ten points apart", host: repeat(50, 10), candidate: repeat(60, 10), want: 1.18},
		{name: "half answered by both", host: repeat(70, 10), candidate: answers(70, 70, 70, 70, 70, u, u, u, u, u), want: 1.1},
		{name: "nothing in common answered", host: answers(1, 2, 3, 4, 5, u, u, u, u, u), candidate: answers(u, u, u, u, u, 6, 7, 8, 9, 10), want: 1.0},
		{name: "different question set", host: repeat(40, 10), candidate: repeat(40, 9), want: 1.0},
		{name: "no answers", host: nil, candidate: repeat(40, 10), want: 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := &models.Profile{Genres: models.StringList{"RPG"}, PersonalityAnswers: tt.host}
			candidate := &models.Profile{Genres: models.StringList{"RPG"}, PersonalityAnswers: tt.candidate}
			assert.InDelta(t, tt.want, s.Score(host, candidate), 1e-9)
		})
	}
}
