// Package config provides YAML-based configuration loading for warwatch.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level warwatch configuration, loaded from warwatch.yaml.
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Site        SiteConfig        `yaml:"site"`
	Chat        ChatConfig        `yaml:"chat"`
	Watch       WatchConfig       `yaml:"watch"`
	Motivate    MotivateConfig    `yaml:"motivate"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`
	Log         LogConfig         `yaml:"log"`
	Servers     []ServerConfig    `yaml:"servers"`
}

// DatabaseConfig selects the storage backend. Driver is "sqlite" or "mysql".
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// SiteConfig holds settings for talking to the game site.
type SiteConfig struct {
	Domain            string  `yaml:"domain"`
	UserAgent         string  `yaml:"user_agent"`
	TimeoutSec        int     `yaml:"timeout_sec"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	LoginRetries      int     `yaml:"login_retries"`
}

// ChatConfig selects the chat platform and the command prefix.
type ChatConfig struct {
	Platform string        `yaml:"platform"` // irc, discord, slack
	Prefix   string        `yaml:"prefix"`
	IRC      IRCConfig     `yaml:"irc"`
	Discord  DiscordConfig `yaml:"discord"`
	Slack    SlackConfig   `yaml:"slack"`
}

// IRCConfig holds IRC connection settings.
type IRCConfig struct {
	Server   string   `yaml:"server"`
	Nick     string   `yaml:"nick"`
	User     string   `yaml:"user"`
	Password string   `yaml:"password"`
	TLS      bool     `yaml:"tls"`
	Channels []string `yaml:"channels"`
}

// DiscordConfig holds Discord bot credentials.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// SlackConfig holds Slack Socket Mode credentials.
type SlackConfig struct {
	AppToken  string `yaml:"app_token"`
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// WatchConfig tunes the battle watch scheduler.
type WatchConfig struct {
	BackoffSec     int `yaml:"backoff_sec"`
	HoldPercentage int `yaml:"hold_percentage"`
	// MaxIdlePolls ends a watch after this many backoff polls in a row
	// found no live round.
	MaxIdlePolls   int `yaml:"max_idle_polls"`
}

// MotivateConfig tunes the motivate scan and its rate lock.
type MotivateConfig struct {
	LockWindowSec int `yaml:"lock_window_sec"`
	MaxCitizens   int `yaml:"max_citizens"`
}

// MaintenanceConfig schedules the periodic cleanup sweep.
type MaintenanceConfig struct {
	Cron string `yaml:"cron"`
}

// DashboardConfig enables the read-only status API. Port 0 disables it.
type DashboardConfig struct {
	Port int `yaml:"port"`
}

// LogConfig configures the zerolog logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// ServerConfig seeds a game server row.
type ServerConfig struct {
	Name      string `yaml:"name"`
	Shortname string `yaml:"shortname"`
	Disabled  bool   `yaml:"disabled"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.expandSecrets()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// expandSecrets replaces "$NAME" secrets with the environment value.
func (c *Config) expandSecrets() {
	for _, s := range []*string{
		&c.Database.Password,
		&c.Chat.IRC.Password,
		&c.Chat.Discord.BotToken,
		&c.Chat.Slack.AppToken,
		&c.Chat.Slack.BotToken,
	} {
		if strings.HasPrefix(*s, "$") {
			*s = os.Getenv(strings.TrimPrefix(*s, "$"))
		}
	}
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "warwatch.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.Name == "" {
			c.Database.Name = "warwatch"
		}
	}
	if c.Site.Domain == "" {
		c.Site.Domain = "e-sim.org"
	}
	if c.Site.UserAgent == "" {
		c.Site.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) warwatch"
	}
	if c.Site.TimeoutSec == 0 {
		c.Site.TimeoutSec = 30
	}
	if c.Site.RequestsPerSecond == 0 {
		c.Site.RequestsPerSecond = 2
	}
	if c.Site.LoginRetries == 0 {
		c.Site.LoginRetries = 3
	}
	if c.Chat.Prefix == "" {
		c.Chat.Prefix = "!"
	}
	if c.Chat.IRC.User == "" {
		c.Chat.IRC.User = c.Chat.IRC.Nick
	}
	if c.Watch.BackoffSec == 0 {
		c.Watch.BackoffSec = 30
	}
	if c.Watch.HoldPercentage == 0 {
		c.Watch.HoldPercentage = 52
	}
	if c.Watch.MaxIdlePolls == 0 {
		c.Watch.MaxIdlePolls = 240
	}
	if c.Motivate.LockWindowSec == 0 {
		c.Motivate.LockWindowSec = 120
	}
	if c.Motivate.MaxCitizens == 0 {
		c.Motivate.MaxCitizens = 50
	}
	if c.Maintenance.Cron == "" {
		c.Maintenance.Cron = "*/5 * * * *"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stderr"
	}
	for i := range c.Servers {
		if c.Servers[i].Shortname == "" && len(c.Servers[i].Name) > 0 {
			c.Servers[i].Shortname = c.Servers[i].Name[:1]
		}
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql)", c.Database.Driver))
	}
	switch c.Chat.Platform {
	case "":
		errs = append(errs, "chat.platform is required")
	case "irc":
		if c.Chat.IRC.Server == "" {
			errs = append(errs, "chat.irc.server is required")
		}
		if c.Chat.IRC.Nick == "" {
			errs = append(errs, "chat.irc.nick is required")
		}
	case "discord":
		if c.Chat.Discord.BotToken == "" {
			errs = append(errs, "chat.discord.bot_token is required")
		}
	case "slack":
		if c.Chat.Slack.AppToken == "" || c.Chat.Slack.BotToken == "" {
			errs = append(errs, "chat.slack.app_token and chat.slack.bot_token are required")
		}
	default:
		errs = append(errs, fmt.Sprintf("chat.platform %q is not supported (irc, discord, slack)", c.Chat.Platform))
	}
	if c.Site.LoginRetries < 0 {
		errs = append(errs, "site.login_retries must not be negative")
	}
	if c.Watch.HoldPercentage < 0 || c.Watch.HoldPercentage > 100 {
		errs = append(errs, "watch.hold_percentage must be between 0 and 100")
	}
	if c.Watch.MaxIdlePolls < 0 {
		errs = append(errs, "watch.max_idle_polls must not be negative")
	}
	seen := make(map[string]bool)
	for i, s := range c.Servers {
		if s.Name == "" {
			errs = append(errs, fmt.Sprintf("servers[%d].name is required", i))
			continue
		}
		key := strings.ToLower(s.Name)
		if seen[key] {
			errs = append(errs, fmt.Sprintf("servers[%d].name %q is duplicated", i, s.Name))
		}
		seen[key] = true
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
