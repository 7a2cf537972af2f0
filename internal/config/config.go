package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/dggpoliticalaction/greeter/internal/domain"
)

const (
	DefaultWelcomeTeamRoleName = "Welcome Team"
	DefaultModRoleName         = "Moderator"
	DefaultDirectorRoleName    = "Director"
	DefaultMaxActiveThreads    = 50
	DefaultMaxTotalThreads     = 500
	DefaultInactivityDays      = 5
	DefaultWelcomeMessage      = "Welcome! Someone from the Welcome Team will introduce themselves and help you get started."
)

type Config struct {
	Discord       DiscordConfig
	WelcomeThread WelcomeThreadConfig
	Onboarding    OnboardingConfig
	RateLimiting  RateLimitConfig
	// Teams maps a team name to its interest role name.
	Teams   map[string]string
	Jobs    JobsConfig
	Redis   RedisConfig
	Server  ServerConfig
	Webhook WebhookConfig
	Metrics MetricsConfig
}

type DiscordConfig struct {
	Token string `validate:"required"`
}

// WelcomeThreadConfig is the raw welcomeThread section; zero values take defaults.
type WelcomeThreadConfig struct {
	ChannelName         string
	WelcomeTeamRoleName string
	ModRoleName         string
	DirectorRoleName    string
	MaxActiveThreads    int
	MaxTotalThreads     int
	InactivityDays      int
	WelcomeMessage      string
}

type OnboardingConfig struct {
	DelaySeconds int `validate:"gte=1"`
}

type RateLimitConfig struct {
	Amount          int `validate:"gte=1"`
	IntervalSeconds int `validate:"gte=1"`
}

type JobsConfig struct {
	AutoCloseWelcomeThreads JobConfig
}

type JobConfig struct {
	Schedule         string `validate:"required"`
	RunOnce          bool
	InitialDelaySecs int `validate:"gte=0"`
	Log              bool
}

type RedisConfig struct {
	URL string
}

type ServerConfig struct {
	Port string `validate:"required"`
}

type WebhookConfig struct {
	URL     string `validate:"omitempty,url"`
	Headers map[string]string
}

type MetricsConfig struct {
	Enabled bool
}

type teamConfig struct {
	InterestRoleName string `mapstructure:"interestRoleName"`
}

// Load reads the file named by CONFIG_FILE (if set), applies environment
// overrides such as WELCOMETHREAD_CHANNELNAME and DISCORD_TOKEN, fills defaults
// and validates the result.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	if p := os.Getenv("CONFIG_FILE"); p != "" {
		v.SetConfigFile(p)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", p, err)
		}
	}
	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("discord.token", "")
	v.SetDefault("welcomeThread.channelName", "")
	v.SetDefault("welcomeThread.welcomeTeamRoleName", "")
	v.SetDefault("welcomeThread.modRoleName", "")
	v.SetDefault("welcomeThread.directorRoleName", "")
	v.SetDefault("welcomeThread.maxActiveThreads", 0)
	v.SetDefault("welcomeThread.maxTotalThreads", 0)
	v.SetDefault("welcomeThread.inactivityDays", 0)
	v.SetDefault("welcomeThread.welcomeMessage", "")
	v.SetDefault("onboarding.delaySeconds", 7)
	v.SetDefault("rateLimiting.amount", 10)
	v.SetDefault("rateLimiting.intervalSeconds", 30)
	v.SetDefault("jobs.autoCloseWelcomeThreads.schedule", "0 0 * * * *")
	v.SetDefault("jobs.autoCloseWelcomeThreads.runOnce", false)
	v.SetDefault("jobs.autoCloseWelcomeThreads.initialDelaySecs", 120)
	v.SetDefault("jobs.autoCloseWelcomeThreads.log", true)
	v.SetDefault("redis.url", "")
	v.SetDefault("server.port", "8080")
	v.SetDefault("webhook.url", "")
	v.SetDefault("metrics.enabled", true)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Discord: DiscordConfig{Token: v.GetString("discord.token")},
		WelcomeThread: WelcomeThreadConfig{
			ChannelName:         v.GetString("welcomeThread.channelName"),
			WelcomeTeamRoleName: v.GetString("welcomeThread.welcomeTeamRoleName"),
			ModRoleName:         v.GetString("welcomeThread.modRoleName"),
			DirectorRoleName:    v.GetString("welcomeThread.directorRoleName"),
			MaxActiveThreads:    v.GetInt("welcomeThread.maxActiveThreads"),
			MaxTotalThreads:     v.GetInt("welcomeThread.maxTotalThreads"),
			InactivityDays:      v.GetInt("welcomeThread.inactivityDays"),
			WelcomeMessage:      v.GetString("welcomeThread.welcomeMessage"),
		},
		Onboarding: OnboardingConfig{DelaySeconds: v.GetInt("onboarding.delaySeconds")},
		RateLimiting: RateLimitConfig{
			Amount:          v.GetInt("rateLimiting.amount"),
			IntervalSeconds: v.GetInt("rateLimiting.intervalSeconds"),
		},
		Jobs: JobsConfig{AutoCloseWelcomeThreads: JobConfig{
			Schedule:         v.GetString("jobs.autoCloseWelcomeThreads.schedule"),
			RunOnce:          v.GetBool("jobs.autoCloseWelcomeThreads.runOnce"),
			InitialDelaySecs: v.GetInt("jobs.autoCloseWelcomeThreads.initialDelaySecs"),
			Log:              v.GetBool("jobs.autoCloseWelcomeThreads.log"),
		}},
		Redis:   RedisConfig{URL: v.GetString("redis.url")},
		Server:  ServerConfig{Port: v.GetString("server.port")},
		Webhook: WebhookConfig{URL: v.GetString("webhook.url"), Headers: v.GetStringMapString("webhook.headers")},
		Metrics: MetricsConfig{Enabled: v.GetBool("metrics.enabled")},
		Teams:   make(map[string]string),
	}

	var teams map[string]teamConfig
	if err := v.UnmarshalKey("teams", &teams); err != nil {
		return nil, fmt.Errorf("parse teams: %w", err)
	}
	for name, t := range teams {
		if t.InterestRoleName != "" {
			cfg.Teams[name] = t.InterestRoleName
		}
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// WelcomeThreadSettings returns the welcome thread settings with defaults applied, or
// nil when no welcome channel is configured.
func (c *Config) WelcomeThreadSettings() *domain.WelcomeThreadConfig {
	w := c.WelcomeThread
	if strings.TrimSpace(w.ChannelName) == "" {
		return nil
	}
	return &domain.WelcomeThreadConfig{
		ChannelName:         w.ChannelName,
		WelcomeTeamRoleName: orDefault(w.WelcomeTeamRoleName, DefaultWelcomeTeamRoleName),
		ModRoleName:         orDefault(w.ModRoleName, DefaultModRoleName),
		DirectorRoleName:    orDefault(w.DirectorRoleName, DefaultDirectorRoleName),
		MaxActiveThreads:    capOrDefault(w.MaxActiveThreads, DefaultMaxActiveThreads),
		MaxTotalThreads:     capOrDefault(w.MaxTotalThreads, DefaultMaxTotalThreads),
		InactivityDays:      capOrDefault(w.InactivityDays, DefaultInactivityDays),
		WelcomeMessage:      orDefault(w.WelcomeMessage, DefaultWelcomeMessage),
	}
}

// OnboardingDelay is how long an interest role must be held before its thread is created.
func (c *Config) OnboardingDelay() time.Duration {
	return time.Duration(c.Onboarding.DelaySeconds) * time.Second
}

// RateLimitInterval is the window of the per-member event limit.
func (c *Config) RateLimitInterval() time.Duration {
	return time.Duration(c.RateLimiting.IntervalSeconds) * time.Second
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// capOrDefault maps an unset (zero) value to def and clamps anything else to at least 1.
func capOrDefault(v, def int) int {
	if v == 0 {
		return def
	}
	if v < 1 {
		return 1
	}
	return v
}
