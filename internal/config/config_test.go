package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LOADING_TIMEOUT", "")
	t.Setenv("DB_TYPE", "sqlite")

	cfg := Load()

	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, 5*time.Second, cfg.Review.LoadingTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.Review.SettleDelay)
	assert.Equal(t, "poll", cfg.Feed.Transport)
	assert.False(t, cfg.IsProduction())
}

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "go duration", value: "750ms", want: 750 * time.Millisecond},
		{name: "plain milliseconds", value: "1200", want: 1200 * time.Millisecond},
		{name: "garbage falls back", value: "soon", want: 3 * time.Second},
		{name: "negative falls back", value: "-5s", want: 3 * time.Second},
		{name: "zero is allowed", value: "0s", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SCRY_TEST_DURATION", tt.value)
			assert.Equal(t, tt.want, getEnvAsDuration("SCRY_TEST_DURATION", 3*time.Second))
		})
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("GO_ENV", "production")
	t.Setenv("POLL_INTERVAL", "250ms")
	t.Setenv("FEED_TRANSPORT", "nats")

	cfg := Load()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 250*time.Millisecond, cfg.Feed.PollInterval)
	assert.Equal(t, "nats", cfg.Feed.Transport)
}
