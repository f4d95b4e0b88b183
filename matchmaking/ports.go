// Package matchmaking runs LFG sessions: it ranks candidates for a host,
// invites them in time-boxed batches with backfill, and tears every session
// down exactly once no matter which trigger ends it.
package matchmaking

import (
	"context"

	"github.com/linesmerrill/lfg-matchmaker/models"
)

// SessionStore is the keyed session document store. Update is a whole
// document replace that fails with models.ErrVersionConflict when the
// document changed since it was read.
type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	FindByKey(ctx context.Context, sessionID string) (*models.Session, error)
	FindOpenByCreator(ctx context.Context, creatorID string) (*models.Session, error)
	FindByVoiceChannel(ctx context.Context, channelID string) (*models.Session, error)
	FindActive(ctx context.Context) ([]models.Session, error)
	Update(ctx context.Context, session *models.Session) error
}

// ProfileStore reads GameTree profiles. It is never written by matchmaking.
type ProfileStore interface {
	FindByDiscordID(ctx context.Context, discordID string) (*models.Profile, error)
	FindByDiscordIDs(ctx context.Context, discordIDs []string) ([]models.Profile, error)
}

// Notifier delivers and removes everything a session shows on the platform.
//
// DeleteMessage and DeleteChannel return models.ErrAlreadyGone when the target
// no longer exists. SendDirectInvite returns models.ErrDeliveryFailed when the
// recipient cannot be reached.
type Notifier interface {
	SendDirectInvite(ctx context.Context, userID string, summary SessionSummary) (models.PostRef, error)
	PostToChannel(ctx context.Context, channelID string, summary SessionSummary) (models.PostRef, error)
	DeleteMessage(ctx context.Context, ref models.PostRef) error
	DeleteChannel(ctx context.Context, channelID string) error
	CreateSessionChannels(ctx context.Context, guildID, name, hostID string) (textID, voiceID string, err error)
	GrantChannelAccess(ctx context.Context, channelIDs []string, userID string) error
	BroadcastSummary(ctx context.Context, userIDs []string, text string)
}

// PresenceSource lists users who could be invited right now. The list is a
// snapshot and may be stale.
type PresenceSource interface {
	EligibleCandidates(ctx context.Context, guildID string) ([]string, error)
}

// Occupancy reports how many members sit in a voice channel. ok is false when
// the channel no longer exists.
type Occupancy interface {
	VoiceMembers(channelID string) (count int, ok bool)
}

// SessionSummary is what invites and posts render
type SessionSummary struct {
	SessionID   string
	GameName    string
	Platform    string
	Description string
	HostID      string
	HostName    string
	MaxPlayers  int
	SpotsLeft   int
}

func summarize(s *models.Session) SessionSummary {
	return SessionSummary{
		SessionID:   s.SessionID,
		GameName:    s.GameName,
		Platform:    s.Platform,
		Description: s.Description,
		HostID:      s.CreatorID,
		HostName:    s.CreatorUsername,
		MaxPlayers:  s.MaxPlayers,
		SpotsLeft:   s.SpotsLeft(),
	}
}
