package notify

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/linesmerrill/lfg-matchmaker/matchmaking"
)

const (
	inviteColor = 0x6A5ACD
	advertColor = 0x5865F2

	// JoinButtonPrefix prefixes the custom id of every invite button
	JoinButtonPrefix = "join_lfg_"

	maxChannelName = 100
)

// JoinButtonID is the custom id of the join button for a session
func JoinButtonID(sessionID string) string {
	return JoinButtonPrefix + sessionID
}

// ParseJoinButton extracts the session id from a join button custom id
func ParseJoinButton(customID string) (string, bool) {
	id, ok := strings.CutPrefix(customID, JoinButtonPrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// InviteMessage renders the personalized direct message for a candidate
func InviteMessage(s matchmaking.SessionSummary) *discordgo.MessageSend {
	lines := []string{
		fmt.Sprintf("**Platform:** %s", s.Platform),
		fmt.Sprintf("**With:** <@%s>", s.HostID),
	}
	if s.Description != "" {
		lines = append(lines, fmt.Sprintf("**Note:** %s", s.Description))
	}
	return &discordgo.MessageSend{
		Content: "You've been matched for a game session!",
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "🎮 LFG Match: " + s.GameName,
			Description: strings.Join(lines, "\n"),
			Color:       inviteColor,
			Footer:      &discordgo.MessageEmbedFooter{Text: "Powered by GameTree Matching"},
		}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Join Session",
					Style:    discordgo.SuccessButton,
					CustomID: JoinButtonID(s.SessionID),
				},
			}},
		},
	}
}

// AdvertMessage renders the public post in a platform channel
func AdvertMessage(s matchmaking.SessionSummary) *discordgo.MessageSend {
	host := s.HostName
	if s.HostID != "" {
		host = "<@" + s.HostID + ">"
	}
	return &discordgo.MessageSend{
		Content: "🚀 New LFG post!",
		Embeds: []*discordgo.MessageEmbed{{
			Title: "🎮 Looking For Group!",
			Color: advertColor,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Game", Value: s.GameName, Inline: true},
				{Name: "Platform", Value: s.Platform, Inline: true},
				{Name: "Players Needed", Value: strconv.Itoa(s.SpotsLeft), Inline: true},
				{Name: "Host", Value: host, Inline: true},
				{Name: "Description", Value: s.Description},
			},
		}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Join Session",
					Style:    discordgo.SuccessButton,
					CustomID: JoinButtonID(s.SessionID),
				},
			}},
		},
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}
}

// ChannelName turns a free form name into a valid Discord channel name
func ChannelName(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
		if b.Len() >= maxChannelName {
			break
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if len(out) > maxChannelName {
		out = out[:maxChannelName]
	}
	if out == "" {
		return "lfg-session"
	}
	return out
}
