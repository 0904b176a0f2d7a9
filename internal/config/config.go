package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port           string `mapstructure:"PORT"`
	BaseURL        string `mapstructure:"BASE_URL"`
	DatabaseDriver string `mapstructure:"DATABASE_DRIVER"`
	DatabasePath   string `mapstructure:"DATABASE_PATH"`
	DatabaseDSN    string `mapstructure:"DATABASE_DSN"`
	JWTSecret      string `mapstructure:"JWT_SECRET"`

	StorageEndpoint  string `mapstructure:"STORAGE_ENDPOINT"`
	StorageProjectID string `mapstructure:"STORAGE_PROJECT_ID"`
	StorageRoot      string `mapstructure:"STORAGE_ROOT"`
	ImageBucket      string `mapstructure:"IMAGE_BUCKET"`

	DiscordClientID               string `mapstructure:"DISCORD_CLIENT_ID"`
	DiscordClientSecret           string `mapstructure:"DISCORD_CLIENT_SECRET"`
	DiscordRedirectURL            string `mapstructure:"DISCORD_REDIRECT_URL"`
	DiscordBotToken               string `mapstructure:"DISCORD_BOT_TOKEN"`
	DiscordNotificationsChannelID string `mapstructure:"DISCORD_NOTIFICATIONS_CHANNEL_ID"`

	AWSRegion   string `mapstructure:"AWS_REGION"`
	SESSender   string `mapstructure:"SES_SENDER"`
	SNSTopicARN string `mapstructure:"SNS_TOPIC_ARN"`

	LogLevel   string `mapstructure:"LOG_LEVEL"`
	LogFormat  string `mapstructure:"LOG_FORMAT"`
	EnableCORS bool   `mapstructure:"ENABLE_CORS"`
}

// DiscordLogin reports whether Discord OAuth is configured.
func (c *Config) DiscordLogin() bool {
	return c.DiscordClientID != "" && c.DiscordClientSecret != ""
}

// LoadConfig reads defaults, an optional .env file and the environment, in
// increasing order of precedence.
func LoadConfig() (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("PORT", "8080")
	v.SetDefault("BASE_URL", "http://127.0.0.1:8080")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_PATH", "workshops.db")
	v.SetDefault("STORAGE_ROOT", "data/storage")
	v.SetDefault("STORAGE_PROJECT_ID", "workshops")
	v.SetDefault("IMAGE_BUCKET", "workshop-images")
	v.SetDefault("DISCORD_REDIRECT_URL", "http://127.0.0.1:8080/auth/discord/callback")
	v.SetDefault("AWS_REGION", "eu-central-1")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	for _, key := range []string{
		"DATABASE_DSN",
		"JWT_SECRET",
		"STORAGE_ENDPOINT",
		"DISCORD_CLIENT_ID",
		"DISCORD_CLIENT_SECRET",
		"DISCORD_BOT_TOKEN",
		"DISCORD_NOTIFICATIONS_CHANNEL_ID",
		"SES_SENDER",
		"SNS_TOPIC_ARN",
		"ENABLE_CORS",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if config.StorageEndpoint == "" {
		config.StorageEndpoint = strings.TrimRight(config.BaseURL, "/")
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	switch c.DatabaseDriver {
	case "sqlite":
	case "postgres":
		if c.DatabaseDSN == "" {
			return fmt.Errorf("DATABASE_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}
