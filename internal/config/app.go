package config

import (
	"codegen-app/internal/logger"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// AppConfig holds all application configuration
type AppConfig struct {
	Server   ServerConfig
	Database DatabaseConfig
	LLM      LLMConfig
	Auth     AuthConfig
	Storage  StorageConfig
	Chat     ChatConfig
	Build    *BuildProfile
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port string
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// LLMConfig holds configuration of the OpenAI-compatible generation backend
type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret       []byte
	TokenExpiration time.Duration
}

// StorageConfig holds the on-disk layout for generated and published code
type StorageConfig struct {
	// OutputRoot holds one {type}_{appID} directory per generated application
	OutputRoot string
	// DeployRoot holds one directory per published deploy key
	DeployRoot string
	// PublicHost is the URL prefix published snapshots are reachable under
	PublicHost string
	// SweepSchedule is a cron spec for the deploy root sweeper; empty disables it
	SweepSchedule string
	SweepGrace    time.Duration
}

// ChatConfig holds conversation memory limits
type ChatConfig struct {
	WindowSize  int
	MaxPageSize int
}

// LoadConfig loads and validates application configuration from environment
func LoadConfig() (*AppConfig, error) {
	if err := loadDotEnv(getEnvOrDefault("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	config := &AppConfig{}

	// Load Server config
	config.Server = ServerConfig{
		Port: getEnvOrDefault("SERVER_PORT", "8080"),
	}

	// Load Database config
	config.Database = DatabaseConfig{
		Host:     getEnvOrDefault("DB_HOST", "postgres"),
		Port:     getEnvOrDefault("DB_PORT", "5432"),
		User:     getEnvOrDefault("DB_USER", "postgres"),
		Password: getEnvOrDefault("DB_PASSWORD", "postgres"),
		Name:     getEnvOrDefault("DB_NAME", "codegen"),
		SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
	}

	// Load LLM config
	apiKey := os.Getenv("LLM_API_KEY")
	if apiKey == "" {
		logger.Log.Warn("LLM_API_KEY environment variable not set")
	}

	config.LLM = LLMConfig{
		APIKey:      apiKey,
		BaseURL:     getEnvOrDefault("LLM_BASE_URL", "https://openrouter.ai/api/v1"),
		Model:       getEnvOrDefault("LLM_MODEL", "deepseek/deepseek-chat"),
		Temperature: getEnvAsFloat("LLM_TEMPERATURE", 0.2),
	}

	// Load Auth config
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable must be set")
	}
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters (current length: %d)", len(jwtSecret))
	}

	config.Auth = AuthConfig{
		JWTSecret:       []byte(jwtSecret),
		TokenExpiration: getEnvAsDuration("JWT_TOKEN_EXPIRATION", 24*time.Hour),
	}

	// Load Storage config
	config.Storage = StorageConfig{
		OutputRoot:    getEnvOrDefault("CODE_OUTPUT_ROOT", "tmp/code_output"),
		DeployRoot:    getEnvOrDefault("CODE_DEPLOY_ROOT", "tmp/code_deploy"),
		PublicHost:    getEnvOrDefault("DEPLOY_PUBLIC_HOST", "http://localhost:8080/sites"),
		SweepSchedule: os.Getenv("DEPLOY_SWEEP_SCHEDULE"),
		SweepGrace:    getEnvAsDuration("DEPLOY_SWEEP_GRACE", time.Hour),
	}
	if _, ok := os.LookupEnv("DEPLOY_SWEEP_SCHEDULE"); !ok {
		config.Storage.SweepSchedule = "@hourly"
	}

	// Load Chat config
	config.Chat = ChatConfig{
		WindowSize:  getEnvAsInt("CHAT_WINDOW_SIZE", 20),
		MaxPageSize: getEnvAsInt("CHAT_MAX_PAGE_SIZE", 50),
	}
	if config.Chat.WindowSize <= 0 {
		return nil, fmt.Errorf("CHAT_WINDOW_SIZE must be positive (got %d)", config.Chat.WindowSize)
	}
	if config.Chat.MaxPageSize <= 0 {
		return nil, fmt.Errorf("CHAT_MAX_PAGE_SIZE must be positive (got %d)", config.Chat.MaxPageSize)
	}

	// Load Build profile
	build, err := LoadBuildProfile(os.Getenv("BUILD_PROFILE_PATH"))
	if err != nil {
		return nil, fmt.Errorf("failed to load build profile: %w", err)
	}
	config.Build = build

	return config, nil
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// loadDotEnv loads variables from an env file without overriding ones already set.
// A missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		logger.Log.WithField("path", path).Debug("Loaded environment file")
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("error loading %s: %w", path, err)
}

// Helper functions for environment variable parsing

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid integer value, using default")
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid float value, using default")
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "default": defaultValue}).Warn("Invalid duration value, using default")
		return defaultValue
	}
	return value
}
