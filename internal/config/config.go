package config

import (
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServerPort   string `mapstructure:"SERVER_PORT"`
	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	ClientOrigin string `mapstructure:"CLIENT_ORIGIN"`
	AppBaseURL   string `mapstructure:"APP_BASE_URL"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RunnerGeoKey  string `mapstructure:"RUNNER_GEO_KEY"`

	JWTSecret        string        `mapstructure:"JWT_SECRET"`
	JWTRefreshSecret string        `mapstructure:"JWT_REFRESH_SECRET"`
	AccessTokenTTL   time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL  time.Duration `mapstructure:"REFRESH_TOKEN_TTL"`

	Currency  string `mapstructure:"CURRENCY"`
	AWSRegion string `mapstructure:"AWS_REGION"`
	EmailFrom string `mapstructure:"EMAIL_FROM"`

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string `mapstructure:"TWILIO_FROM_NUMBER"`
	StripeAPIKey     string
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("RUNNER_GEO_KEY", "runners:geo")
	viper.SetDefault("ACCESS_TOKEN_TTL", "15m")
	viper.SetDefault("REFRESH_TOKEN_TTL", "168h")
	viper.SetDefault("CURRENCY", "ngn")

	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No .env file found.")
		} else {
			return nil, err
		}
	}

	var cfg Config
	err = viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// Secrets come straight from the environment, never from the file.
	cfg.StripeAPIKey = os.Getenv("STRIPE_API_KEY")
	cfg.TwilioAccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	cfg.TwilioAuthToken = os.Getenv("TWILIO_AUTH_TOKEN")

	return &cfg, nil
}
