package bot

import (
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func respondWithMessage(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		zap.S().Errorw("failed to respond to interaction", "error", err)
	}
}

// deferResponse acknowledges the interaction so slow work can follow
func deferResponse(s *discordgo.Session, i *discordgo.InteractionCreate, ephemeral bool) bool {
	data := &discordgo.InteractionResponseData{}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		zap.S().Errorw("failed to defer interaction", "error", err)
		return false
	}
	return true
}

// deferUpdate acknowledges a button press on the message that carries it
func deferUpdate(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
	if err != nil {
		zap.S().Errorw("failed to acknowledge button", "error", err)
		return false
	}
	return true
}

func editResponse(s *discordgo.Session, i *discordgo.Interaction, content string) {
	editResponseWith(s, i, &discordgo.WebhookEdit{Content: &content})
}

// clearComponents replaces the response text and drops its buttons
func clearComponents(s *discordgo.Session, i *discordgo.Interaction, content string) {
	editResponseWith(s, i, &discordgo.WebhookEdit{
		Content:    &content,
		Components: &[]discordgo.MessageComponent{},
	})
}

func editResponseWith(s *discordgo.Session, i *discordgo.Interaction, edit *discordgo.WebhookEdit) {
	if _, err := s.InteractionResponseEdit(i, edit); err != nil {
		zap.S().Errorw("failed to edit interaction response", "error", err)
	}
}
