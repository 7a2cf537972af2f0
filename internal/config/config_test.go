package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	t.Setenv("CONFIG_FILE", p)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DISCORD_TOKEN", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.Discord.Token)
	assert.Equal(t, 7*time.Second, cfg.OnboardingDelay())
	assert.Equal(t, 10, cfg.RateLimiting.Amount)
	assert.Equal(t, 30*time.Second, cfg.RateLimitInterval())
	assert.Equal(t, "0 0 * * * *", cfg.Jobs.AutoCloseWelcomeThreads.Schedule)
	assert.Equal(t, 120, cfg.Jobs.AutoCloseWelcomeThreads.InitialDelaySecs)
	assert.True(t, cfg.Jobs.AutoCloseWelcomeThreads.Log)
	assert.False(t, cfg.Jobs.AutoCloseWelcomeThreads.RunOnce)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Empty(t, cfg.Teams)
	assert.Nil(t, cfg.WelcomeThreadSettings())
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DISCORD_TOKEN", "")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	writeConfig(t, `
discord:
  token: from-file
welcomeThread:
  channelName: welcome
  maxActiveThreads: 3
  maxTotalThreads: -4
onboarding:
  delaySeconds: 2
teams:
  policy:
    interestRoleName: Policy Interest
  art:
    interestRoleName: ""
webhook:
  url: https://hooks.example.com/greeter
  headers:
    Authorization: Bearer abc
`)
	t.Setenv("WELCOMETHREAD_INACTIVITYDAYS", "9")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Discord.Token)
	assert.Equal(t, 2*time.Second, cfg.OnboardingDelay())
	assert.Equal(t, map[string]string{"policy": "Policy Interest"}, cfg.Teams)
	assert.Equal(t, "https://hooks.example.com/greeter", cfg.Webhook.URL)
	assert.Equal(t, "Bearer abc", cfg.Webhook.Headers["authorization"])

	w := cfg.WelcomeThreadSettings()
	require.NotNil(t, w)
	assert.Equal(t, "welcome", w.ChannelName)
	assert.Equal(t, 3, w.MaxActiveThreads)
	assert.Equal(t, 1, w.MaxTotalThreads)
	assert.Equal(t, 9, w.InactivityDays)
	assert.Equal(t, DefaultWelcomeTeamRoleName, w.WelcomeTeamRoleName)
	assert.Equal(t, DefaultModRoleName, w.ModRoleName)
	assert.Equal(t, DefaultDirectorRoleName, w.DirectorRoleName)
	assert.Equal(t, DefaultWelcomeMessage, w.WelcomeMessage)
}

func TestLoadRejectsBadWebhookURL(t *testing.T) {
	writeConfig(t, "discord:\n  token: x\nwebhook:\n  url: not a url\n")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsZeroDelay(t *testing.T) {
	writeConfig(t, "discord:\n  token: x\nonboarding:\n  delaySeconds: 0\n")
	_, err := Load()
	assert.Error(t, err)
}
