package config

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := process()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "gemini-3-pro-preview", cfg.GeminiModel)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 45*time.Second, cfg.AssessmentTimeout)
	assert.Equal(t, time.Duration(0), cfg.RefreshInterval)
	assert.Equal(t, 96, cfg.StoreMaxHistory)
	assert.Equal(t, 168*time.Hour, cfg.StoreMaxAge)
	assert.Equal(t, TrendStatic, cfg.TrendSource)
	assert.Empty(t, cfg.GeminiAPIKey.Unmask(), "a missing credential is not a startup error")
}

func TestProcess_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("GEMINI_API_KEY", "abc123")
	t.Setenv("REFRESH_INTERVAL", "10m")
	t.Setenv("TREND_SOURCE", "recorded")
	t.Setenv("ASSESSMENT_TIMEOUT", "5s")

	cfg, err := process()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "abc123", cfg.GeminiAPIKey.Unmask())
	assert.Equal(t, 10*time.Minute, cfg.RefreshInterval)
	assert.Equal(t, TrendRecorded, cfg.TrendSource)
	assert.Equal(t, 5*time.Second, cfg.AssessmentTimeout)
}

func TestProcess_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"bad duration":     {"ASSESSMENT_TIMEOUT", "soon"},
		"zero timeout":     {"ASSESSMENT_TIMEOUT", "0s"},
		"unknown trend":    {"TREND_SOURCE", "kafka"},
		"bad history size": {"STORE_MAX_HISTORY", "many"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := process()
			assert.Error(t, err)
		})
	}
}

func TestSecretString_Redacts(t *testing.T) {
	s := SecretString("hunter2")
	assert.Equal(t, "***REDACTED***", s.String())
	assert.Equal(t, "***REDACTED***", fmt.Sprintf("%v", s))

	b, err := json.Marshal(struct {
		Key SecretString `json:"key"`
	}{s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"***REDACTED***"}`, string(b))
	assert.Equal(t, "hunter2", s.Unmask())
}
