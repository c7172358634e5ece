package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Realtime RealtimeConfig
	Chat     ChatConfig
}

type AppConfig struct {
	Port                 string
	Environment          string
	LogFilePath          string
	RealtimeLogFilePath  string
	CorsAllowedOrigins   string
	OtelEnabled          bool
	OtelExporterEndpoint string
}

type DatabaseConfig struct {
	Driver     string // "postgres" or "sqlite"
	Connection string
}

type AuthConfig struct {
	JwtSecret string
}

type RealtimeConfig struct {
	Driver     string // "memory", "nats" or "redis"
	NatsURL    string
	RedisURL   string
	BufferSize int
}

type ChatConfig struct {
	OperationTimeout time.Duration
	ConversationTTL  time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:                 getEnv("APP_PORT", "3000"),
			Environment:          getEnv("GO_ENV", "development"),
			LogFilePath:          getEnv("LOG_FILE_PATH", "logs/app.log"),
			RealtimeLogFilePath:  getEnv("REALTIME_LOG_FILE_PATH", "logs/realtime.log"),
			CorsAllowedOrigins:   getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			OtelEnabled:          getEnvAsBool("OTEL_ENABLED", false),
			OtelExporterEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "postgres"),
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Auth: AuthConfig{
			JwtSecret: getEnv("JWT_SECRET", ""),
		},
		Realtime: RealtimeConfig{
			Driver:     getEnv("FANOUT_DRIVER", "memory"),
			NatsURL:    getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:   getEnv("REDIS_URL", "redis://localhost:6379"),
			BufferSize: getEnvAsInt("REALTIME_BUFFER_SIZE", 256),
		},
		Chat: ChatConfig{
			OperationTimeout: getEnvAsDuration("CHAT_OPERATION_TIMEOUT", 10*time.Second),
			ConversationTTL:  getEnvAsDuration("CONVERSATION_CACHE_TTL", 10*time.Minute),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil && value > 0 {
		return value
	}
	return fallback
}
