// Package bot is the Discord front end of the matchmaker: slash commands,
// invite buttons and voice state events, all forwarded to the session
// manager and the profile store.
package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/linesmerrill/lfg-matchmaker/databases"
	"github.com/linesmerrill/lfg-matchmaker/matchmaking"
	"github.com/linesmerrill/lfg-matchmaker/models"
	"github.com/linesmerrill/lfg-matchmaker/notify"
)

// Intents the bot needs for commands, DMs, presence snapshots and voice tracking
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildPresences |
	discordgo.IntentsGuildVoiceStates |
	discordgo.IntentsDirectMessages

// Sessions is the part of the session manager the bot drives
type Sessions interface {
	Open(ctx context.Context, req matchmaking.OpenRequest) (*models.Session, error)
	Join(ctx context.Context, sessionID string, p models.Participant) (*models.Session, error)
	ActiveByCreator(ctx context.Context, creatorID string) (*models.Session, error)
	EndByCreator(ctx context.Context, creatorID string) (*models.Session, error)
	VoiceChannelEmpty(ctx context.Context, channelID string) error
	VoiceChannelOccupied(channelID string)
}

// Bot routes Discord events to the matchmaker
type Bot struct {
	session   *discordgo.Session
	guildID   string
	sessions  Sessions
	profiles  databases.ProfileDatabase
	games     databases.GameDatabase
	occupancy matchmaking.Occupancy
	confirms  *confirmations
	commands  []*discordgo.ApplicationCommand
	removers  []func()
}

// New creates a Bot on an unopened Discord session
func New(s *discordgo.Session, guildID string, sessions Sessions, profiles databases.ProfileDatabase, games databases.GameDatabase, occupancy matchmaking.Occupancy) *Bot {
	s.Identify.Intents = Intents
	s.State.TrackVoice = true
	s.State.TrackPresences = true
	s.State.TrackMembers = true

	return &Bot{
		session:   s,
		guildID:   guildID,
		sessions:  sessions,
		profiles:  profiles,
		games:     games,
		occupancy: occupancy,
		confirms:  newConfirmations(),
	}
}

// Start registers the event handlers and slash commands. The session must
// already be open.
func (b *Bot) Start() error {
	b.removers = append(b.removers,
		b.session.AddHandler(b.handleInteraction),
		b.session.AddHandler(b.handleVoiceState),
	)

	for _, cmd := range commandDefinitions() {
		registered, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, b.guildID, cmd)
		if err != nil {
			return fmt.Errorf("failed to register command %s: %w", cmd.Name, err)
		}
		b.commands = append(b.commands, registered)
	}
	zap.S().Infow("slash commands registered", "count", len(b.commands), "guildId", b.guildID)
	return nil
}

// Stop detaches the handlers and drops pending confirmations
func (b *Bot) Stop() {
	for _, remove := range b.removers {
		remove()
	}
	b.removers = nil
	b.confirms.clear()
}

func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		zap.S().Debugw("received command", "command", data.Name, "userId", interactionUser(i).ID)
		switch data.Name {
		case "lfg":
			b.handleLFG(s, i)
		case "end":
			b.handleEnd(s, i)
		case "opt":
			b.handleOpt(s, i)
		case "connect":
			b.handleConnect(s, i)
		case "profile":
			b.handleProfile(s, i)
		default:
			zap.S().Warnw("unknown command", "command", data.Name)
		}
	case discordgo.InteractionApplicationCommandAutocomplete:
		if i.ApplicationCommandData().Name == "lfg" {
			b.handleGameAutocomplete(s, i)
		}
	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID
		if sessionID, ok := notify.ParseJoinButton(customID); ok {
			b.handleJoin(s, i, sessionID)
			return
		}
		switch customID {
		case confirmEndID:
			b.handleConfirmEnd(s, i)
		case confirmUpdateID, cancelUpdateID:
			b.handleConfirmLink(s, i, customID == confirmUpdateID)
		}
	}
}

// interactionUser returns the invoking user for guild and DM interactions
func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	if i.User != nil {
		return i.User
	}
	return &discordgo.User{}
}

// displayName prefers the guild nickname, then the global name
func displayName(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.Nick != "" {
		return i.Member.Nick
	}
	u := interactionUser(i)
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}
