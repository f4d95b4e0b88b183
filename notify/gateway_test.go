package notify

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func jsonResponse(r *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    r,
	}
}

func newTestGateway(t *testing.T, rt roundTripFunc) *Gateway {
	t.Helper()
	s, err := discordgo.New("Bot test-token")
	require.NoError(t, err)
	s.Client = &http.Client{Transport: rt}
	s.MaxRestRetries = 0
	return NewGateway(s, "category")
}

func observeWarnings(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zap.WarnLevel)
	t.Cleanup(zap.ReplaceGlobals(zap.New(core)))
	return logs
}

func TestBroadcastSummaryLogsEachFailedRecipient(t *testing.T) {
	logs := observeWarnings(t)
	g := newTestGateway(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(r, http.StatusForbidden, `{"code": 50007, "message": "Cannot send messages to this user"}`), nil
	})

	g.BroadcastSummary(context.Background(), []string{"u1", "u2"}, "thanks for playing")

	entries := logs.FilterMessage("failed to send session summary").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "u1", entries[0].ContextMap()["userId"])
	assert.Equal(t, "u2", entries[1].ContextMap()["userId"])
}

func TestCreateSessionChannelsRemovesTextChannelWhenVoiceFails(t *testing.T) {
	logs := observeWarnings(t)
	var mu sync.Mutex
	var calls []string
	g := newTestGateway(t, func(r *http.Request) (*http.Response, error) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch {
		case r.Method == http.MethodDelete:
			return jsonResponse(r, http.StatusInternalServerError, `{"code": 0, "message": "internal error"}`), nil
		case len(calls) == 1:
			return jsonResponse(r, http.StatusOK, `{"id": "text-1", "type": 0}`), nil
		default:
			return jsonResponse(r, http.StatusForbidden, `{"code": 50013, "message": "Missing Permissions"}`), nil
		}
	})

	text, voice, err := g.CreateSessionChannels(context.Background(), "guild", "Rocket League", "host")
	assert.Error(t, err)
	assert.Empty(t, text)
	assert.Empty(t, voice)

	mu.Lock()
	require.Len(t, calls, 3)
	assert.True(t, strings.HasSuffix(calls[2], "/channels/text-1"), calls[2])
	mu.Unlock()

	entries := logs.FilterMessage("failed to remove orphaned text channel").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "text-1", entries[0].ContextMap()["channelId"])
}
