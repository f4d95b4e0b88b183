package bot

import (
	"context"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"

	"github.com/linesmerrill/lfg-matchmaker/matchmaking"
	"github.com/linesmerrill/lfg-matchmaker/models"
)

type voiceSessions struct {
	mu       sync.Mutex
	empty    []string
	occupied []string
}

func (v *voiceSessions) Open(context.Context, matchmaking.OpenRequest) (*models.Session, error) {
	return nil, nil
}

func (v *voiceSessions) Join(context.Context, string, models.Participant) (*models.Session, error) {
	return nil, nil
}

func (v *voiceSessions) ActiveByCreator(context.Context, string) (*models.Session, error) {
	return nil, models.ErrNotFound
}

func (v *voiceSessions) EndByCreator(context.Context, string) (*models.Session, error) {
	return nil, models.ErrNotFound
}

func (v *voiceSessions) VoiceChannelEmpty(_ context.Context, channelID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.empty = append(v.empty, channelID)
	return nil
}

func (v *voiceSessions) VoiceChannelOccupied(channelID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.occupied = append(v.occupied, channelID)
}

type memberCounts map[string]int

func (m memberCounts) VoiceMembers(channelID string) (int, bool) {
	n, ok := m[channelID]
	return n, ok
}

func voiceUpdate(guildID, before, after string) *discordgo.VoiceStateUpdate {
	u := &discordgo.VoiceStateUpdate{VoiceState: &discordgo.VoiceState{GuildID: guildID, UserID: "u1", ChannelID: after}}
	if before != "" {
		u.BeforeUpdate = &discordgo.VoiceState{GuildID: guildID, UserID: "u1", ChannelID: before}
	}
	return u
}

func TestHandleVoiceState(t *testing.T) {
	sessions := &voiceSessions{}
	b := &Bot{guildID: "g1", sessions: sessions, occupancy: memberCounts{"busy": 2, "empty": 0}}

	b.handleVoiceState(nil, voiceUpdate("g1", "", "busy"))
	b.handleVoiceState(nil, voiceUpdate("g1", "busy", "empty"))
	b.handleVoiceState(nil, voiceUpdate("g1", "empty", ""))
	b.handleVoiceState(nil, voiceUpdate("g1", "deleted", ""))
	b.handleVoiceState(nil, voiceUpdate("other-guild", "empty", ""))
	b.handleVoiceState(nil, voiceUpdate("g1", "busy", "busy"))

	assert.Equal(t, []string{"busy", "empty"}, sessions.occupied)
	// leaving busy keeps it occupied, a vanished channel counts as empty
	assert.Equal(t, []string{"empty", "deleted"}, sessions.empty)
}
