package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/linesmerrill/lfg-matchmaker/matchmaking"
	"github.com/linesmerrill/lfg-matchmaker/models"
)

const (
	commandTimeout   = 10 * time.Second
	autocompleteSize = 10
	maxChoiceLength  = 100
)

var platformChoices = []string{"PC", "PlayStation", "Xbox", "Nintendo Switch", "Mobile", "Other"}

func commandDefinitions() []*discordgo.ApplicationCommand {
	minPlayers := float64(matchmaking.MinPlayers)
	platforms := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(platformChoices))
	for _, p := range platformChoices {
		platforms = append(platforms, &discordgo.ApplicationCommandOptionChoice{Name: p, Value: p})
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:        "lfg",
			Description: "Create a Looking For Group (LFG) session",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionString,
					Name:         "game",
					Description:  "Name of the game",
					Required:     true,
					Autocomplete: true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "platform",
					Description: "Platform (e.g. PC, PS5, Xbox, etc)",
					Required:    true,
					Choices:     platforms,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "description",
					Description: fmt.Sprintf("Optional description (max %d chars)", matchmaking.MaxDescriptionLength),
					MaxLength:   matchmaking.MaxDescriptionLength,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "players",
					Description: fmt.Sprintf("Number of players wanted (default %d)", matchmaking.DefaultMaxPlayers),
					MinValue:    &minPlayers,
					MaxValue:    matchmaking.MaxPlayers,
				},
			},
		},
		{
			Name:        "end",
			Description: "End your active LFG session and clean up channels/posts",
		},
		{
			Name:        "opt",
			Description: "Opt in or out of personalized LFG invites",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "status",
					Description: "yes to opt in, no to opt out",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "yes", Value: "yes"},
						{Name: "no", Value: "no"},
					},
				},
			},
		},
		{
			Name:        "connect",
			Description: "Link your Discord account to your GameTree account",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "username",
					Description: "Your GameTree username (case-sensitive)",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "email",
					Description: "Your GameTree email address",
					Required:    true,
				},
			},
		},
		{
			Name:        "profile",
			Description: "Show the GameTree profile for a username",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "username",
					Description: "The GameTree username to look up",
					Required:    true,
				},
			},
		},
	}
}

// optionMap indexes command options by name
func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, opt := range opts {
		m[opt.Name] = opt
	}
	return m
}

// lfgRequest builds the open request from the /lfg options. The game is
// resolved separately.
func lfgRequest(guildID string, user *discordgo.User, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) matchmaking.OpenRequest {
	req := matchmaking.OpenRequest{
		GuildID:         guildID,
		CreatorID:       user.ID,
		CreatorUsername: user.Username,
	}
	if opt, ok := opts["game"]; ok {
		req.GameName = strings.TrimSpace(opt.StringValue())
	}
	if opt, ok := opts["platform"]; ok {
		req.Platform = opt.StringValue()
	}
	if opt, ok := opts["description"]; ok {
		req.Description = opt.StringValue()
	}
	if opt, ok := opts["players"]; ok {
		req.MaxPlayers = int(opt.IntValue())
	}
	return req
}

func (b *Bot) handleLFG(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !deferResponse(s, i, true) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	req := lfgRequest(i.GuildID, interactionUser(i), optionMap(i.ApplicationCommandData().Options))

	games, err := b.games.FindByTitle(ctx, req.GameName)
	if err != nil {
		zap.S().Errorw("game lookup failed", "game", req.GameName, "error", err)
		editResponse(s, i.Interaction, "❌ Could not look up that game. Please try again later.")
		return
	}
	game, ok := resolveGame(games, req.GameName)
	if !ok {
		editResponse(s, i.Interaction, fmt.Sprintf("❌ Could not find `%s` in the GameTree library. Pick one of the suggestions.", req.GameName))
		return
	}
	req.GameID = game.ID.Hex()
	req.GameName = game.Title

	if profile, err := b.profiles.FindByDiscordID(ctx, req.CreatorID); err == nil {
		req.CreatorProfileID = profile.ID.Hex()
	} else if !errors.Is(err, models.ErrNotFound) {
		zap.S().Warnw("host profile lookup failed", "userId", req.CreatorID, "error", err)
	}

	session, err := b.sessions.Open(ctx, req)
	if err != nil {
		zap.S().Infow("lfg session not opened", "userId", req.CreatorID, "error", err)
	}
	editResponse(s, i.Interaction, openReply(session, err))
}

// resolveGame picks the game a title refers to. An exact title match wins
// over a match on an alternative name.
func resolveGame(games []models.Game, input string) (models.Game, bool) {
	for _, g := range games {
		if strings.EqualFold(g.Title, input) {
			return g, true
		}
	}
	if len(games) == 0 {
		return models.Game{}, false
	}
	return games[0], true
}

func openReply(session *models.Session, err error) string {
	switch {
	case err == nil:
		return fmt.Sprintf("✅ Your LFG session for **%s** is live! Head to <#%s> and hop into <#%s> when your group arrives.",
			session.GameName, session.TextChannelID, session.VoiceChannelID)
	case errors.Is(err, models.ErrActiveSessionExists):
		return "❌ You already have an active LFG session. Use `/end` to close it first."
	case errors.Is(err, models.ErrInvalidSession):
		return "❌ " + strings.TrimPrefix(err.Error(), models.ErrInvalidSession.Error()+": ")
	default:
		return "❌ Could not create your LFG session. Please try again later."
	}
}

func (b *Bot) handleGameAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var focused string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Focused {
			focused = opt.StringValue()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	games, err := b.games.Search(ctx, focused, autocompleteSize)
	if err != nil {
		zap.S().Warnw("game autocomplete failed", "query", focused, "error", err)
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: gameChoices(games)},
	})
	if err != nil {
		zap.S().Errorw("failed to answer autocomplete", "error", err)
	}
}

func gameChoices(games []models.Game) []*discordgo.ApplicationCommandOptionChoice {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(games))
	seen := make(map[string]bool, len(games))
	for _, g := range games {
		title := g.Title
		if len(title) > maxChoiceLength {
			title = title[:maxChoiceLength]
		}
		if title == "" || seen[title] {
			continue
		}
		seen[title] = true
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: title, Value: title})
		if len(choices) == autocompleteSize {
			break
		}
	}
	return choices
}

func (b *Bot) handleJoin(s *discordgo.Session, i *discordgo.InteractionCreate, sessionID string) {
	if !deferResponse(s, i, true) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	user := interactionUser(i)
	participant := models.Participant{DiscordID: user.ID, DiscordUsername: user.Username}
	if profile, err := b.profiles.FindByDiscordID(ctx, user.ID); err == nil {
		participant.ProfileID = profile.ID.Hex()
	}

	session, err := b.sessions.Join(ctx, sessionID, participant)
	if err != nil && !isJoinRejection(err) {
		zap.S().Errorw("join failed", "sessionId", sessionID, "userId", user.ID, "error", err)
	}
	editResponse(s, i.Interaction, joinReply(session, err))
}

func isJoinRejection(err error) bool {
	return errors.Is(err, models.ErrNotFound) ||
		errors.Is(err, models.ErrSessionClosed) ||
		errors.Is(err, models.ErrSessionFull) ||
		errors.Is(err, models.ErrAlreadyJoined)
}

func joinReply(session *models.Session, err error) string {
	switch {
	case err == nil:
		return fmt.Sprintf("✅ You joined the **%s** session! Head over to <#%s>.", session.GameName, session.TextChannelID)
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrSessionClosed):
		return "❌ This LFG session no longer exists."
	case errors.Is(err, models.ErrSessionFull):
		return "❌ This LFG session is already full."
	case errors.Is(err, models.ErrAlreadyJoined):
		return "You have already joined this LFG session!"
	default:
		return "❌ Could not join the session. Please try again."
	}
}

func (b *Bot) handleEnd(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !deferResponse(s, i, true) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	user := interactionUser(i)
	if _, err := b.sessions.ActiveByCreator(ctx, user.ID); err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			zap.S().Errorw("active session lookup failed", "userId", user.ID, "error", err)
		}
		editResponse(s, i.Interaction, "❌ You do not have any ongoing gaming sessions right now.")
		return
	}

	content := "⚠️ Are you sure you want to end your LFG session? This will delete the temporary channels and post."
	editResponseWith(s, i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
		Components: &[]discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "End Session", Style: discordgo.DangerButton, CustomID: confirmEndID},
			}},
		},
	})

	original := i.Interaction
	b.confirms.add(user.ID, confirmEnd, endConfirmWindow, nil, func() {
		clearComponents(s, original, "❌ Session end cancelled (no confirmation received).")
	})
}

func (b *Bot) handleConfirmEnd(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := interactionUser(i)
	if _, ok := b.confirms.take(user.ID, confirmEnd); !ok {
		respondWithMessage(s, i, "❌ This confirmation has expired. Run `/end` again.")
		return
	}
	if !deferUpdate(s, i) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if _, err := b.sessions.EndByCreator(ctx, user.ID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			clearComponents(s, i.Interaction, "❌ You do not have any ongoing gaming sessions right now.")
			return
		}
		zap.S().Errorw("failed to end session", "userId", user.ID, "error", err)
		clearComponents(s, i.Interaction, "❌ Could not end your session. Please try again.")
		return
	}
	clearComponents(s, i.Interaction, "✅ Your LFG session has been ended. Temporary channels and posts have been deleted.")
}

func (b *Bot) handleOpt(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !deferResponse(s, i, true) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	user := interactionUser(i)
	optIn := optionMap(i.ApplicationCommandData().Options)["status"].StringValue() == "yes"
	err := b.profiles.SetOptIn(ctx, user.ID, optIn)
	switch {
	case errors.Is(err, models.ErrNotFound):
		editResponse(s, i.Interaction, "User not found in database. Please link your account first with `/connect`.")
	case err != nil:
		zap.S().Errorw("failed to update opt-in", "userId", user.ID, "error", err)
		editResponse(s, i.Interaction, "There was an error updating your preference. Please try again later.")
	default:
		state := "opted out"
		if optIn {
			state = "opted in"
		}
		editResponse(s, i.Interaction, fmt.Sprintf("Your LFG invite preference has been set to: %s.", state))
	}
}

func (b *Bot) handleConnect(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !deferResponse(s, i, true) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	opts := optionMap(i.ApplicationCommandData().Options)
	username := opts["username"].StringValue()
	email := opts["email"].StringValue()
	user := interactionUser(i)

	profile, err := b.profiles.FindByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			zap.S().Errorw("profile lookup failed", "username", username, "error", err)
		}
		editResponse(s, i.Interaction, fmt.Sprintf("❌ Could not find a GameTree account with username `%s`. Please double-check the spelling (it is case-sensitive).", username))
		return
	}
	if !strings.EqualFold(strings.TrimSpace(profile.Email), strings.TrimSpace(email)) {
		editResponse(s, i.Interaction, fmt.Sprintf("❌ The email you provided does not match the GameTree account for `%s`. Please check your email address.", username))
		return
	}

	if profile.DiscordID != "" && profile.DiscordUsername != "" {
		content := fmt.Sprintf("⚠️ This GameTree user is already linked to Discord account <@%s> (username: %s).\n\nDo you want to update the link to your current Discord account?",
			profile.DiscordID, profile.DiscordUsername)
		editResponseWith(s, i.Interaction, &discordgo.WebhookEdit{
			Content: &content,
			Components: &[]discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.Button{Label: "✅ Yes, update", Style: discordgo.SuccessButton, CustomID: confirmUpdateID},
					discordgo.Button{Label: "❌ No, cancel", Style: discordgo.DangerButton, CustomID: cancelUpdateID},
				}},
			},
		})
		original := i.Interaction
		b.confirms.add(user.ID, confirmLink, linkConfirmWindow, profile, func() {
			clearComponents(s, original, "❌ No response received. Update cancelled.")
		})
		return
	}

	if err := b.profiles.LinkDiscord(ctx, profile.ID, user.ID, user.Username, displayName(i), true); err != nil {
		zap.S().Errorw("failed to link discord account", "username", username, "userId", user.ID, "error", err)
		editResponse(s, i.Interaction, "❌ Could not link your account. Please try again later.")
		return
	}
	editResponse(s, i.Interaction, fmt.Sprintf("✅ Success! Your Discord account <@%s> is now linked to GameTree user `%s`. You can now use LFG features and receive invites. To update your opt in/out status for LFG invites, use the `/opt` command.", user.ID, username))
}

func (b *Bot) handleConfirmLink(s *discordgo.Session, i *discordgo.InteractionCreate, confirmed bool) {
	user := interactionUser(i)
	pending, ok := b.confirms.take(user.ID, confirmLink)
	if !ok {
		respondWithMessage(s, i, "❌ This confirmation has expired. Run `/connect` again.")
		return
	}
	if !deferUpdate(s, i) {
		return
	}
	if !confirmed {
		clearComponents(s, i.Interaction, "❌ Update cancelled. Your Discord account was not changed.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	profile := pending.profile
	if err := b.profiles.LinkDiscord(ctx, profile.ID, user.ID, user.Username, displayName(i), profile.LFGInviteOptIn); err != nil {
		zap.S().Errorw("failed to relink discord account", "username", profile.Username, "userId", user.ID, "error", err)
		clearComponents(s, i.Interaction, "❌ Could not update the link. Please try again later.")
		return
	}
	clearComponents(s, i.Interaction, fmt.Sprintf("✅ Updated! Your Discord account <@%s> is now linked to GameTree user `%s`.", user.ID, profile.Username))
}

func (b *Bot) handleProfile(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !deferResponse(s, i, false) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	username := optionMap(i.ApplicationCommandData().Options)["username"].StringValue()
	profile, err := b.profiles.FindByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			zap.S().Errorw("profile lookup failed", "username", username, "error", err)
		}
		editResponse(s, i.Interaction, fmt.Sprintf("❌ No user found with username `%s`.", username))
		return
	}

	editResponseWith(s, i.Interaction, &discordgo.WebhookEdit{
		Embeds: &[]*discordgo.MessageEmbed{profileEmbed(profile)},
	})
}

func profileEmbed(p *models.Profile) *discordgo.MessageEmbed {
	orDash := func(v []string) string {
		if len(v) == 0 {
			return "—"
		}
		return strings.Join(v, ", ")
	}
	var languages []string
	timezone := "—"
	if p.Details != nil {
		languages = p.Details.Language
		if p.Details.Timezone != "" {
			timezone = p.Details.Timezone
		}
	}

	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("GameTree profile: %s", p.Username),
		Color: 0x00AE86,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Platforms", Value: orDash(p.Platforms), Inline: true},
			{Name: "Genres", Value: orDash(p.Genres), Inline: true},
			{Name: "Languages", Value: orDash(languages), Inline: true},
			{Name: "Timezone", Value: timezone, Inline: true},
			{Name: "Games", Value: fmt.Sprintf("%d", len(p.GameIDs)), Inline: true},
		},
	}
}
