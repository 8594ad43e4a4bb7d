// Package config loads all application configuration from the
// environment into one structured value.
package config

import "time"

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Engine   EngineConfig
	Gateway  GatewayConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	Environment        string
	BasicAuth          []string
	CorsAllowedOrigins []string
	StoragePath        string
	ServerID           string
}

type DatabaseConfig struct {
	Driver         string // "sqlite" or "postgres"
	DSN            string
	ValkeyEnabled  bool
	ValkeyAddress  string
	ValkeyPassword string
	ValkeyDB       int
}

type EngineConfig struct {
	PoolSize           int
	PoolQueueSize      int
	ClientQueueSize    int
	QRValidity         time.Duration
	HeartbeatInterval  time.Duration
	HistoryPageDefault int
	HistoryPageMax     int
}

type GatewayConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Global provides access to the loaded configuration (set once at
// startup by the cmd layer).
var Global *Config

// LoadConfig reads configuration from environment variables,
// applying defaults suitable for local development.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Version:            "v1.4.0",
			Port:               getEnv("APP_PORT", "3000"),
			Debug:              getEnvBool("APP_DEBUG", false),
			Environment:        getEnv("APP_ENV", "development"),
			BasicAuth:          splitCSV(getEnv("APP_BASIC_AUTH", "")),
			CorsAllowedOrigins: splitCSV(getEnv("APP_CORS_ALLOWED_ORIGINS", "*")),
			StoragePath:        getEnv("APP_STORAGE_PATH", "storages"),
			ServerID:           getEnv("APP_SERVER_ID", ""),
		},
		Database: DatabaseConfig{
			Driver:         getEnv("DB_DRIVER", "sqlite"),
			DSN:            getEnv("DB_DSN", "file:storages/chatsync.db?_foreign_keys=on"),
			ValkeyEnabled:  getEnvBool("VALKEY_ENABLED", false),
			ValkeyAddress:  getEnv("VALKEY_ADDRESS", "localhost:6379"),
			ValkeyPassword: getEnv("VALKEY_PASSWORD", ""),
			ValkeyDB:       getEnvInt("VALKEY_DB", 0),
		},
		Engine: EngineConfig{
			PoolSize:           getEnvInt("ENGINE_POOL_SIZE", 8),
			PoolQueueSize:      getEnvInt("ENGINE_POOL_QUEUE_SIZE", 256),
			ClientQueueSize:    getEnvInt("ENGINE_CLIENT_QUEUE_SIZE", 64),
			QRValidity:         getEnvDuration("ENGINE_QR_VALIDITY", 60*time.Second),
			HeartbeatInterval:  getEnvDuration("ENGINE_HEARTBEAT_INTERVAL", 30*time.Second),
			HistoryPageDefault: getEnvInt("ENGINE_HISTORY_PAGE_DEFAULT", 50),
			HistoryPageMax:     getEnvInt("ENGINE_HISTORY_PAGE_MAX", 200),
		},
		Gateway: GatewayConfig{
			BaseURL: getEnv("GATEWAY_BASE_URL", "http://localhost:8085"),
			Timeout: getEnvDuration("GATEWAY_TIMEOUT", 15*time.Second),
		},
	}

	Global = cfg
	return cfg, nil
}
