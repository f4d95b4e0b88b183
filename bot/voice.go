package bot

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/linesmerrill/lfg-matchmaker/models"
)

// voiceTransition returns the channel a member left and the one they joined.
// Either is empty when the update did not leave or enter a channel.
func voiceTransition(before, after string) (left, joined string) {
	if before == after {
		return "", ""
	}
	return before, after
}

// handleVoiceState runs after the state cache applied the update, so
// occupancy already reflects it.
func (b *Bot) handleVoiceState(_ *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if vs.VoiceState == nil || vs.GuildID != b.guildID {
		return
	}
	before := ""
	if vs.BeforeUpdate != nil {
		before = vs.BeforeUpdate.ChannelID
	}
	left, joined := voiceTransition(before, vs.ChannelID)

	if joined != "" {
		b.sessions.VoiceChannelOccupied(joined)
	}
	if left == "" {
		return
	}
	if count, ok := b.occupancy.VoiceMembers(left); ok && count > 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	err := b.sessions.VoiceChannelEmpty(ctx, left)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		zap.S().Warnw("failed to arm idle timer", "channelId", left, "error", err)
	}
}
