package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config carries everything the gateway needs from the environment. All keys
// are read with the TRACKER_ prefix, e.g. TRACKER_BIND_PORT.
type Config struct {
	BindHost string
	BindPort int
	APIPort  int

	MaxConnections int
	MaxFrameBytes  int
	IdleTimeout    time.Duration
	ShutdownGrace  time.Duration
	MalformedLimit int
	SessionTTL     time.Duration

	LogLevel string

	MongoURI      string
	MongoDatabase string
	RedisURL      string

	DefaultPassword string
	JWTSecret       string

	FCMEnabled     bool
	FCMCredentials string
	FCMTopic       string
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TRACKER")
	v.AutomaticEnv()

	v.SetDefault("BIND_HOST", "0.0.0.0")
	v.SetDefault("BIND_PORT", 5023)
	v.SetDefault("API_PORT", 8000)
	v.SetDefault("MAX_CONNECTIONS", 2000)
	v.SetDefault("MAX_FRAME_BYTES", 8192)
	v.SetDefault("IDLE_TIMEOUT", "5m")
	v.SetDefault("SHUTDOWN_GRACE", "15s")
	v.SetDefault("MALFORMED_LIMIT", 5)
	v.SetDefault("SESSION_TTL", "30m")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MONGO_DATABASE", "tracking")
	v.SetDefault("DEFAULT_PASSWORD", "gv50")
	v.SetDefault("FCM_TOPIC", "vehicle_alerts")

	cfg := &Config{
		BindHost:        v.GetString("BIND_HOST"),
		BindPort:        v.GetInt("BIND_PORT"),
		APIPort:         v.GetInt("API_PORT"),
		MaxConnections:  v.GetInt("MAX_CONNECTIONS"),
		MaxFrameBytes:   v.GetInt("MAX_FRAME_BYTES"),
		IdleTimeout:     v.GetDuration("IDLE_TIMEOUT"),
		ShutdownGrace:   v.GetDuration("SHUTDOWN_GRACE"),
		MalformedLimit:  v.GetInt("MALFORMED_LIMIT"),
		SessionTTL:      v.GetDuration("SESSION_TTL"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		MongoURI:        v.GetString("MONGO_URI"),
		MongoDatabase:   v.GetString("MONGO_DATABASE"),
		RedisURL:        v.GetString("REDIS_URL"),
		DefaultPassword: v.GetString("DEFAULT_PASSWORD"),
		JWTSecret:       v.GetString("JWT_SECRET"),
		FCMEnabled:      v.GetBool("FCM_ENABLED"),
		FCMCredentials:  v.GetString("FCM_CREDENTIALS"),
		FCMTopic:        v.GetString("FCM_TOPIC"),
	}

	if cfg.MaxFrameBytes < 64 {
		return nil, fmt.Errorf("max frame size %d is too small to hold a protocol message", cfg.MaxFrameBytes)
	}
	if cfg.MaxConnections < 1 {
		return nil, fmt.Errorf("max connections must be positive, got %d", cfg.MaxConnections)
	}
	return cfg, nil
}
