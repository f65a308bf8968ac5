package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration for our application
type Config struct {
	Port                 string
	Origin               string
	Environment          string
	JWTSecret            string
	JWTExpirationMinutes int
	Database             DatabaseConfig
	// MasterKey is the 32-byte root secret every cryptographic subkey is
	// derived from. It is loaded once at startup from the environment and
	// must never reach the storage backend.
	MasterKey []byte
	// KDFIterations is the PBKDF2 work parameter for new password verifiers.
	KDFIterations int
	// BucketWidthKg controls the weight span of a completeness-chain bucket.
	BucketWidthKg float64
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load database configuration
	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "ehr"),
	}

	// Build DSN (Data Source Name) for MySQL connection
	dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)

	masterKey, err := base64.StdEncoding.DecodeString(os.Getenv("MASTER_KEY"))
	if err != nil {
		return nil, fmt.Errorf("invalid MASTER_KEY: %w", err)
	}
	if len(masterKey) != 32 {
		return nil, fmt.Errorf("MASTER_KEY must decode to 32 bytes, got %d", len(masterKey))
	}

	jwtExpMinutes, err := strconv.Atoi(getEnv("JWT_EXPIRATION_MINUTES", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_MINUTES: %w", err)
	}

	kdfIterations, err := strconv.Atoi(getEnv("KDF_ITERATIONS", "210000"))
	if err != nil {
		return nil, fmt.Errorf("invalid KDF_ITERATIONS: %w", err)
	}

	bucketWidth, err := strconv.ParseFloat(getEnv("BUCKET_WIDTH_KG", "10"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid BUCKET_WIDTH_KG: %w", err)
	}
	if bucketWidth <= 0 {
		return nil, fmt.Errorf("BUCKET_WIDTH_KG must be positive")
	}

	// Return complete configuration
	return &Config{
		Port:                 getEnv("PORT", "3001"),
		Origin:               getEnv("ORIGIN", "http://localhost:4200"),
		Environment:          getEnv("APP_ENV", "development"),
		JWTSecret:            getEnv("JWT_SECRET", "default_jwt_secret"),
		JWTExpirationMinutes: jwtExpMinutes,
		Database:             dbConfig,
		MasterKey:            masterKey,
		KDFIterations:        kdfIterations,
		BucketWidthKg:        bucketWidth,
	}, nil
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
