package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Presence reads candidate availability and voice occupancy from the
// gateway state cache. It needs the presence, member and voice state intents.
type Presence struct {
	state *discordgo.State
}

// NewPresence creates a Presence over a state cache
func NewPresence(state *discordgo.State) *Presence {
	return &Presence{state: state}
}

// EligibleCandidates returns members of the guild who are online, not a bot
// and not already in a voice channel
func (p *Presence) EligibleCandidates(_ context.Context, guildID string) ([]string, error) {
	guild, err := p.state.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("guild %s not in state: %w", guildID, err)
	}

	p.state.RLock()
	inVoice := make(map[string]struct{}, len(guild.VoiceStates))
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != "" {
			inVoice[vs.UserID] = struct{}{}
		}
	}
	var online []string
	for _, pr := range guild.Presences {
		if pr.User == nil || pr.Status != discordgo.StatusOnline {
			continue
		}
		if _, busy := inVoice[pr.User.ID]; busy {
			continue
		}
		online = append(online, pr.User.ID)
	}
	p.state.RUnlock()

	ids := online[:0]
	for _, id := range online {
		if m, err := p.state.Member(guildID, id); err == nil && m.User != nil && m.User.Bot {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// VoiceMembers counts the members connected to a voice channel. ok is false
// when the channel is not in state.
func (p *Presence) VoiceMembers(channelID string) (int, bool) {
	ch, err := p.state.Channel(channelID)
	if err != nil {
		return 0, false
	}
	guild, err := p.state.Guild(ch.GuildID)
	if err != nil {
		return 0, true
	}

	p.state.RLock()
	defer p.state.RUnlock()
	count := 0
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID == channelID {
			count++
		}
	}
	return count, true
}
