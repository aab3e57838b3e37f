package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Gateway GatewayConfig
	Push    PushConfig
	Session SessionConfig
	App     AppConfig
}

// GatewayConfig holds the REST gateway settings
type GatewayConfig struct {
	BaseURL string
	Timeout time.Duration
}

// PushConfig holds the push channel settings
type PushConfig struct {
	URL          string
	Event        string
	PingInterval time.Duration
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

// SessionConfig holds the authenticated session settings
type SessionConfig struct {
	AccessToken    string
	UserID         string
	ResyncOnJoin   bool
	ResyncInterval time.Duration
}

// AppConfig holds application configuration
type AppConfig struct {
	Port           int
	Env            string
	LogLevel       string
	AllowedOrigins []string
	// LocalAPISecret enables auth on the local API. Consumers get a token from
	// `notifd --print-local-token` or sign their own HS256 token with claim type=local.
	LocalAPISecret string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	config := &Config{}

	gatewayTimeout, err := getEnvDuration("GATEWAY_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	config.Gateway = GatewayConfig{
		BaseURL: strings.TrimRight(getEnv("GATEWAY_BASE_URL", "http://localhost:8080"), "/"),
		Timeout: gatewayTimeout,
	}

	pingInterval, err := getEnvDuration("PUSH_PING_INTERVAL", "54s")
	if err != nil {
		return nil, err
	}
	reconnectMin, err := getEnvDuration("PUSH_RECONNECT_MIN", "1s")
	if err != nil {
		return nil, err
	}
	reconnectMax, err := getEnvDuration("PUSH_RECONNECT_MAX", "30s")
	if err != nil {
		return nil, err
	}
	config.Push = PushConfig{
		URL:          getEnv("PUSH_URL", "ws://localhost:8080/ws"),
		Event:        getEnv("PUSH_EVENT", "notification"),
		PingInterval: pingInterval,
		ReconnectMin: reconnectMin,
		ReconnectMax: reconnectMax,
	}

	resyncOnJoin, err := strconv.ParseBool(getEnv("SESSION_RESYNC_ON_JOIN", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_RESYNC_ON_JOIN: %w", err)
	}
	resyncInterval, err := getEnvDuration("SESSION_RESYNC_INTERVAL", "0s")
	if err != nil {
		return nil, err
	}
	config.Session = SessionConfig{
		AccessToken:    getEnv("ACCESS_TOKEN", ""),
		UserID:         getEnv("SESSION_USER_ID", ""),
		ResyncOnJoin:   resyncOnJoin,
		ResyncInterval: resyncInterval,
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "7070"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:           appPort,
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		LocalAPISecret: getEnv("LOCAL_API_SECRET", ""),
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Session.AccessToken == "" {
		return fmt.Errorf("ACCESS_TOKEN is required")
	}
	if c.Gateway.BaseURL == "" {
		return fmt.Errorf("GATEWAY_BASE_URL is required")
	}
	if !strings.HasPrefix(c.Push.URL, "ws://") && !strings.HasPrefix(c.Push.URL, "wss://") {
		return fmt.Errorf("PUSH_URL must be a ws:// or wss:// URL")
	}
	if c.Push.Event == "" {
		return fmt.Errorf("PUSH_EVENT is required")
	}
	if c.Push.ReconnectMax < c.Push.ReconnectMin {
		return fmt.Errorf("PUSH_RECONNECT_MAX must not be lower than PUSH_RECONNECT_MIN")
	}
	if c.Session.ResyncInterval < 0 {
		return fmt.Errorf("SESSION_RESYNC_INTERVAL must not be negative")
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("APP_PORT must be between 1 and 65535")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvSlice(env, fallback string) []string {
	value := getEnv(env, fallback)
	if value == "" {
		return []string{}
	}
	var result []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			result = append(result, v)
		}
	}
	return result
}
