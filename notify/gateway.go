// Package notify talks to Discord on behalf of the matchmaking engine. It
// renders invites and posts, manages session channels and reads presence and
// voice occupancy from the gateway state cache.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/linesmerrill/lfg-matchmaker/matchmaking"
	"github.com/linesmerrill/lfg-matchmaker/models"
)

const (
	memberAllow = discordgo.PermissionViewChannel |
		discordgo.PermissionSendMessages |
		discordgo.PermissionReadMessageHistory |
		discordgo.PermissionVoiceConnect |
		discordgo.PermissionVoiceSpeak
)

// Gateway implements matchmaking.Notifier over a Discord bot session
type Gateway struct {
	session    *discordgo.Session
	categoryID string
}

// NewGateway creates a Gateway. Session channels are created under categoryID
// when it is set.
func NewGateway(s *discordgo.Session, categoryID string) *Gateway {
	return &Gateway{session: s, categoryID: categoryID}
}

// SendDirectInvite opens a DM with the user and sends the invite
func (g *Gateway) SendDirectInvite(ctx context.Context, userID string, summary matchmaking.SessionSummary) (models.PostRef, error) {
	ch, err := g.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return models.PostRef{}, classify("open dm channel", err)
	}
	msg, err := g.session.ChannelMessageSendComplex(ch.ID, InviteMessage(summary), discordgo.WithContext(ctx))
	if err != nil {
		return models.PostRef{}, classify("send invite", err)
	}
	return models.PostRef{ChannelID: ch.ID, MessageID: msg.ID}, nil
}

// PostToChannel publishes the session advertisement
func (g *Gateway) PostToChannel(ctx context.Context, channelID string, summary matchmaking.SessionSummary) (models.PostRef, error) {
	msg, err := g.session.ChannelMessageSendComplex(channelID, AdvertMessage(summary), discordgo.WithContext(ctx))
	if err != nil {
		return models.PostRef{}, classify("post advertisement", err)
	}
	return models.PostRef{ChannelID: channelID, MessageID: msg.ID}, nil
}

// DeleteMessage removes a posted message
func (g *Gateway) DeleteMessage(ctx context.Context, ref models.PostRef) error {
	return classify("delete message", g.session.ChannelMessageDelete(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx)))
}

// DeleteChannel removes a session channel
func (g *Gateway) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := g.session.ChannelDelete(channelID, discordgo.WithContext(ctx))
	return classify("delete channel", err)
}

// CreateSessionChannels creates the private text and voice channel pair for a
// session. Only the host can see them until others join.
func (g *Gateway) CreateSessionChannels(ctx context.Context, guildID, name, hostID string) (string, string, error) {
	overwrites := []*discordgo.PermissionOverwrite{
		// the @everyone role shares the guild id
		{ID: guildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
		{ID: hostID, Type: discordgo.PermissionOverwriteTypeMember, Allow: memberAllow},
	}
	slug := ChannelName(name)

	text, err := g.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 slug,
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             g.categoryID,
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", "", classify("create text channel", err)
	}

	voice, err := g.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 slug,
		Type:                 discordgo.ChannelTypeGuildVoice,
		ParentID:             g.categoryID,
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx))
	if err != nil {
		if derr := g.DeleteChannel(context.WithoutCancel(ctx), text.ID); derr != nil && !errors.Is(derr, models.ErrAlreadyGone) {
			zap.S().Warnw("failed to remove orphaned text channel", "channelId", text.ID, "error", derr)
		}
		return "", "", classify("create voice channel", err)
	}
	return text.ID, voice.ID, nil
}

// GrantChannelAccess lets a participant see and use the session channels
func (g *Gateway) GrantChannelAccess(ctx context.Context, channelIDs []string, userID string) error {
	for _, id := range channelIDs {
		err := g.session.ChannelPermissionSet(id, userID, discordgo.PermissionOverwriteTypeMember, memberAllow, 0, discordgo.WithContext(ctx))
		if err != nil {
			return classify(fmt.Sprintf("grant access to %s", id), err)
		}
	}
	return nil
}

// BroadcastSummary sends the closing summary to every participant. Failures
// are logged per recipient.
func (g *Gateway) BroadcastSummary(ctx context.Context, userIDs []string, text string) {
	for _, id := range userIDs {
		ch, err := g.session.UserChannelCreate(id, discordgo.WithContext(ctx))
		if err == nil {
			_, err = g.session.ChannelMessageSend(ch.ID, text, discordgo.WithContext(ctx))
		}
		if err != nil {
			zap.S().Warnw("failed to send session summary", "userId", id, "error", classify("send summary", err))
		}
	}
}
