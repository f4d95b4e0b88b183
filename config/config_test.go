package config

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	os.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	os.Setenv("DB_NAME", "test")
	conf := New()

	assert.NotEmpty(t, conf)
	assert.Equal(t, "mongodb://127.0.0.1:27017", conf.URL)
	assert.Equal(t, "test", conf.DatabaseName)
}

func TestNewDefaults(t *testing.T) {
	t.Setenv("LFG_RECONCILE_DELAY", "")
	t.Setenv("LFG_WATCH_INTERVAL", "")
	t.Setenv("LFG_CANDIDATE_CAP", "")
	conf := New()

	assert.Equal(t, 60*time.Second, conf.ReconcileDelay)
	assert.Equal(t, 5*time.Second, conf.WatchInterval)
	assert.Equal(t, 60*time.Second, conf.IdleGrace)
	assert.Equal(t, 100, conf.CandidateCap)
	assert.Equal(t, "@every 1m", conf.SweepSpec)
}

func TestNewParsesOverrides(t *testing.T) {
	t.Setenv("LFG_RECONCILE_DELAY", "2s")
	t.Setenv("LFG_IDLE_GRACE", "not-a-duration")
	t.Setenv("LFG_CANDIDATE_CAP", "25")
	t.Setenv("LFG_POST_CHANNELS", "PC=111, Xbox=222,broken,Other=999")
	conf := New()

	assert.Equal(t, 2*time.Second, conf.ReconcileDelay)
	assert.Equal(t, 60*time.Second, conf.IdleGrace)
	assert.Equal(t, 25, conf.CandidateCap)
	assert.Equal(t, map[string]string{"PC": "111", "Xbox": "222", "Other": "999"}, conf.PostChannels)
}

func TestPostChannelFallsBackToOther(t *testing.T) {
	conf := &Config{PostChannels: map[string]string{"PC": "1", "Other": "9"}}

	id, ok := conf.PostChannel("PC")
	assert.True(t, ok)
	assert.Equal(t, "1", id)

	id, ok = conf.PostChannel("Mobile")
	assert.True(t, ok)
	assert.Equal(t, "9", id)

	_, ok = (&Config{}).PostChannel("PC")
	assert.False(t, ok)
}

func TestErrorStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	ErrorStatus("error it borked", http.StatusBadRequest, rec, errors.New("bad request"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "error it borked")
}

func TestSetLoggerSetsDevelopmentLogger(t *testing.T) {
	l, err := setLogger("development")
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(0))
	assert.False(t, l.Core().Enabled(-1))
}

func TestSetLoggerSetsProductionLogger(t *testing.T) {
	l, err := setLogger("production")
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(2))
	assert.False(t, l.Core().Enabled(-1))
}

func TestSetLoggerSetsLocalLogger(t *testing.T) {
	l, err := setLogger("local")
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(-1))
}
