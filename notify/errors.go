package notify

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/linesmerrill/lfg-matchmaker/models"
)

// classify maps Discord REST failures onto the sentinel errors matchmaking
// understands. Anything unrecognized is wrapped and returned as is.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeUnknownChannel, discordgo.ErrCodeUnknownMessage:
			return fmt.Errorf("%s: %w", op, models.ErrAlreadyGone)
		case discordgo.ErrCodeCannotSendMessagesToThisUser, discordgo.ErrCodeUnknownUser:
			return fmt.Errorf("%s: %w", op, models.ErrDeliveryFailed)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
