package app

import (
	"testing"

	"github.com/ethaccount/walletcore/src/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOptionalConfig_Defaults(t *testing.T) {
	for _, key := range []string{
		"REDIS_URL", "API_SECRET", "ENVIRONMENT", "PORT", "HOST", "LOG_LEVEL",
		"NETWORK_REFRESH_INTERVAL", "MIGRATION_PATH", "RELAYER_URL", "ALLOW_ORIGINS",
		"ESTIMATOR_BYTECODE", "EOA_SIMULATION_BYTECODE", "ENTRY_POINT_ADDRESS",
	} {
		t.Setenv(key, "")
	}

	config := &AppConfig{}
	loadOptionalConfig(config)

	assert.Equal(t, "dev", *config.Environment)
	assert.Equal(t, "8080", *config.Port)
	assert.Equal(t, "localhost:8080", *config.Host)
	assert.Equal(t, "debug", *config.LogLevel)
	assert.Equal(t, 60, *config.NetworkRefreshInterval)
	assert.Equal(t, "file://migrations", *config.MigrationPath)
	assert.Equal(t, []string{"http://localhost:5173"}, *config.AllowOrigins)
	assert.Empty(t, *config.EstimatorBytecode)
	assert.Equal(t, domain.DefaultContracts(), *config.Contracts)
}

func TestLoadOptionalConfig_Overrides(t *testing.T) {
	paymaster := "0x1111111111111111111111111111111111111111"
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOW_ORIGINS", "https://wallet.example, https://app.example ,")
	t.Setenv("NETWORK_REFRESH_INTERVAL", "not-a-number")
	t.Setenv("ESTIMATOR_BYTECODE", "6080")
	t.Setenv("AMBIRE_PAYMASTER_ADDRESS", paymaster)

	config := &AppConfig{}
	loadOptionalConfig(config)

	assert.Equal(t, "9090", *config.Port)
	assert.Equal(t, []string{"https://wallet.example", "https://app.example"}, *config.AllowOrigins)
	assert.Equal(t, 60, *config.NetworkRefreshInterval)
	require.NotNil(t, config.EstimatorBytecode)
	assert.Equal(t, []byte{0x60, 0x80}, *config.EstimatorBytecode)
	assert.Equal(t, common.HexToAddress(paymaster), config.Contracts.AmbirePaymaster)
	assert.Equal(t, domain.DefaultContracts().EntryPoint, config.Contracts.EntryPoint)
}
