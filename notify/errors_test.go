package notify

import (
	"errors"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"

	"github.com/linesmerrill/lfg-matchmaker/models"
)

func restError(code int) error {
	return &discordgo.RESTError{
		Response: &http.Response{Status: "400 Bad Request", StatusCode: http.StatusBadRequest},
		Message:  &discordgo.APIErrorMessage{Code: code, Message: "boom"},
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "unknown channel", err: restError(discordgo.ErrCodeUnknownChannel), want: models.ErrAlreadyGone},
		{name: "unknown message", err: restError(discordgo.ErrCodeUnknownMessage), want: models.ErrAlreadyGone},
		{name: "dms closed", err: restError(discordgo.ErrCodeCannotSendMessagesToThisUser), want: models.ErrDeliveryFailed},
		{name: "unknown user", err: restError(discordgo.ErrCodeUnknownUser), want: models.ErrDeliveryFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classify("op", tt.err), tt.want)
		})
	}
}

func TestClassifyPassesOtherErrorsThrough(t *testing.T) {
	assert.NoError(t, classify("op", nil))

	cause := errors.New("gateway timeout")
	err := classify("delete message", cause)
	assert.ErrorIs(t, err, cause)
	assert.EqualError(t, err, "delete message: gateway timeout")

	err = classify("op", &discordgo.RESTError{Response: &http.Response{Status: "500 Internal Server Error"}})
	assert.NotErrorIs(t, err, models.ErrAlreadyGone)
	assert.NotErrorIs(t, err, models.ErrDeliveryFailed)
}
