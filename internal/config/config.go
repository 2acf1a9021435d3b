// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	Solana      SolanaConfig
	Payments    PaymentsConfig
	Storage     StorageConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type SolanaConfig struct {
	RPCURL       string
	Network      string
	AuthorityKey string // base58-encoded ed25519 seed for the attestation authority
	UseMemory    bool   // wire the in-memory ledger instead of the RPC one
}

type PaymentsConfig struct {
	PlatformWallet  string
	ChallengeWindow int // seconds
	USDCMint        string
	USDCDecimals    int
	MaxReviewLength int
}

type StorageConfig struct {
	UseMemory       bool
	AWSRegion       string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "quarry"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
		},
		Solana: SolanaConfig{
			RPCURL:       getEnv("SOLANA_RPC_URL", "https://api.devnet.solana.com"),
			Network:      getEnv("SOLANA_NETWORK", "devnet"),
			AuthorityKey: getEnv("SAS_AUTHORITY_KEY", ""),
			UseMemory:    getEnvAsBool("SOLANA_USE_MEMORY_LEDGER", false),
		},
		Payments: PaymentsConfig{
			PlatformWallet:  getEnv("PAYMENT_WALLET_ADDRESS", ""),
			ChallengeWindow: getEnvAsInt("PAYMENT_CHALLENGE_WINDOW", 300),
			USDCMint:        getEnv("USDC_MINT", "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"),
			USDCDecimals:    getEnvAsInt("USDC_DECIMALS", 6),
			MaxReviewLength: getEnvAsInt("MAX_REVIEW_LENGTH", 5000),
		},
		Storage: StorageConfig{
			UseMemory:       getEnvAsBool("STORAGE_USE_MEMORY", false),
			AWSRegion:       getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", "quarry-reports"),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.Environment == "production" {
		if c.Solana.AuthorityKey == "" {
			return fmt.Errorf("SAS_AUTHORITY_KEY is required in production")
		}
		if c.Solana.UseMemory {
			return fmt.Errorf("in-memory ledger cannot be used in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database password is required in production")
		}
	}

	if c.Payments.ChallengeWindow <= 0 {
		return fmt.Errorf("payment challenge window must be positive")
	}

	return nil
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
