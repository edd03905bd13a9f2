package config

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("AA_ENGINE_ADMIN_ADDRESS", "0x00000000000000000000000000000000000000ad")
	t.Setenv("AA_ENGINE_BENEFICIARY_ADDRESS", "0x00000000000000000000000000000000000000fe")
}

func TestGetValuesDefaults(t *testing.T) {
	setRequiredEnv(t)

	v := GetValues()
	assert.Equal(t, 4337, v.Port)
	assert.Equal(t, big.NewInt(1), v.ChainID)
	assert.Equal(t, big.NewInt(1000000000), v.BaseFee)
	assert.Equal(t, common.HexToAddress("0x0000000000000000000000000000000000004337"), v.EngineAddress)
	assert.Equal(t, 10, v.MaxBatchSize)
	assert.Equal(t, 5*time.Second, v.BatchInterval)
	assert.Equal(t, "release", v.GinMode)
	assert.False(t, v.DebugMode)
	assert.Empty(t, v.FactoryAddresses)
}

func TestGetValuesOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("AA_ENGINE_PORT", "8080")
	t.Setenv("AA_ENGINE_CHAIN_ID", "137")
	t.Setenv("AA_ENGINE_BATCH_INTERVAL", "250ms")
	t.Setenv("AA_ENGINE_FACTORY_ADDRESSES",
		"0xfac7000000000000000000000000000000000001, 0xfac7000000000000000000000000000000000002")

	v := GetValues()
	assert.Equal(t, 8080, v.Port)
	assert.Equal(t, big.NewInt(137), v.ChainID)
	assert.Equal(t, 250*time.Millisecond, v.BatchInterval)
	assert.Equal(t, []common.Address{
		common.HexToAddress("0xfac7000000000000000000000000000000000001"),
		common.HexToAddress("0xfac7000000000000000000000000000000000002"),
	}, v.FactoryAddresses)
}

func TestGetValuesPanicsWithoutAdmin(t *testing.T) {
	t.Setenv("AA_ENGINE_ADMIN_ADDRESS", "")
	t.Setenv("AA_ENGINE_BENEFICIARY_ADDRESS", "0x00000000000000000000000000000000000000fe")

	assert.Panics(t, func() { GetValues() })
}

func TestGetValuesPanicsOnPartialOTEL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("AA_ENGINE_OTEL_SERVICE_NAME", "aa-engine")
	t.Setenv("AA_ENGINE_OTEL_COLLECTOR_URL", "")

	assert.Panics(t, func() { GetValues() })
}

func TestEnvKeyValStringToMap(t *testing.T) {
	out := envKeyValStringToMap("a=1&b=2")
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, out)
	assert.Empty(t, envKeyValStringToMap(""))
}
