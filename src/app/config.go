package app

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/ethaccount/walletcore/src/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type AppConfig struct {
	// =========================== REQUIRED ===========================

	// Database configuration (required)
	DSN *string

	// =========================== OPTIONAL ===========================

	// Redis configuration, empty keeps paymaster failures in memory
	RedisAddr *string
	// API secret for validating requests from frontend, empty disables the check
	APISecret *string

	// Environment name, "dev" enables the pprof server
	Environment *string
	// Public host used in the swagger document
	Host *string

	// Logging configuration
	LogLevel *string

	// HTTP server configuration
	Port *string

	// CORS configuration
	AllowOrigins *[]string

	// Network refresh interval in seconds
	NetworkRefreshInterval *int

	// Migration configuration
	MigrationPath *string

	// Relayer signing the hosted paymaster operations, empty disables it
	RelayerURL *string

	// Simulation contracts
	EstimatorBytecode     *[]byte
	EOASimulationBytecode *[]byte

	Contracts *domain.Contracts
}

func NewAppConfig() *AppConfig {
	config := &AppConfig{}

	// Load required configuration
	loadRequiredConfig(config)

	// Load optional configuration with defaults
	loadOptionalConfig(config)

	return config
}

// loadRequiredConfig loads all required configuration values and fails fast if any are missing
func loadRequiredConfig(config *AppConfig) {
	// Database URL (required)
	dsn := os.Getenv("DB_URL")
	if dsn == "" {
		log.Fatalf("REQUIRED: DB_URL not set in environment")
	}
	config.DSN = &dsn
}

// loadOptionalConfig loads all optional configuration values with sensible defaults
func loadOptionalConfig(config *AppConfig) {
	redisAddr := os.Getenv("REDIS_URL")
	config.RedisAddr = &redisAddr

	apiSecret := os.Getenv("API_SECRET")
	config.APISecret = &apiSecret

	environment := getEnvWithDefault("ENVIRONMENT", "dev")
	config.Environment = &environment

	// HTTP server port (default: 8080)
	port := getEnvWithDefault("PORT", "8080")
	config.Port = &port

	host := getEnvWithDefault("HOST", "localhost:"+port)
	config.Host = &host

	// Log level (default: debug)
	// Available levels: "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled"
	logLevel := getEnvWithDefault("LOG_LEVEL", "debug")
	config.LogLevel = &logLevel

	// Network refresh interval in seconds (default: 60)
	refreshInterval := getIntWithDefault("NETWORK_REFRESH_INTERVAL", 60)
	config.NetworkRefreshInterval = &refreshInterval

	// Migration path (default: file://migrations)
	migrationPath := getEnvWithDefault("MIGRATION_PATH", "file://migrations")
	config.MigrationPath = &migrationPath

	relayerURL := os.Getenv("RELAYER_URL")
	config.RelayerURL = &relayerURL

	estimator := getBytes("ESTIMATOR_BYTECODE")
	config.EstimatorBytecode = &estimator

	eoaSimulation := getBytes("EOA_SIMULATION_BYTECODE")
	config.EOASimulationBytecode = &eoaSimulation

	loadCORSConfig(config)
	loadContractsConfig(config)
}

// loadCORSConfig handles CORS origins configuration with environment-specific behavior
func loadCORSConfig(config *AppConfig) {
	allowOriginsStr := os.Getenv("ALLOW_ORIGINS")
	var allowOrigins []string

	if allowOriginsStr != "" {
		// Parse comma-separated origins
		origins := strings.Split(allowOriginsStr, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowOrigins = append(allowOrigins, origin)
			}
		}
	} else {
		// Handle missing ALLOW_ORIGINS based on environment
		environment := *config.Environment
		if environment == "development" || environment == "dev" {
			// Default to localhost in development
			allowOrigins = []string{"http://localhost:5173"}
		} else {
			log.Fatalf("REQUIRED: ALLOW_ORIGINS not set in environment (required in production)")
		}
	}

	config.AllowOrigins = &allowOrigins
}

// loadContractsConfig starts from the canonical deployments and applies overrides
func loadContractsConfig(config *AppConfig) {
	contracts := domain.DefaultContracts()

	overrides := map[string]*common.Address{
		"ENTRY_POINT_ADDRESS":            &contracts.EntryPoint,
		"AMBIRE_PAYMASTER_ADDRESS":       &contracts.AmbirePaymaster,
		"FEE_COLLECTOR_ADDRESS":          &contracts.FeeCollector,
		"ACCOUNT_FACTORY_ADDRESS":        &contracts.AccountFactory,
		"EIP7702_IMPLEMENTATION_ADDRESS": &contracts.Eip7702Implementation,
	}
	for key, target := range overrides {
		value := os.Getenv(key)
		if value == "" {
			continue
		}
		if !common.IsHexAddress(value) {
			log.Fatalf("INVALID: %s is not an address", key)
		}
		*target = common.HexToAddress(value)
	}

	config.Contracts = &contracts
}

// getBytes decodes a hex encoded environment value, empty when unset
func getBytes(key string) []byte {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	if !strings.HasPrefix(value, "0x") {
		value = "0x" + value
	}
	b, err := hexutil.Decode(value)
	if err != nil {
		log.Fatalf("INVALID: %s is not hex: %v", key, err)
	}
	return b
}

// getIntWithDefault parses an integer from environment with default fallback
func getIntWithDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	if parsed, err := strconv.Atoi(valueStr); err == nil {
		return parsed
	}

	log.Printf("Warning: Invalid %s value '%s', using default %d", key, valueStr, defaultValue)
	return defaultValue
}

// getEnvWithDefault returns environment variable value or default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
