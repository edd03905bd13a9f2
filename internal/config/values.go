// Package config manages the engine's environment derived configuration.
package config

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Values holds the runtime configuration for the settlement engine and its
// RPC front end.
type Values struct {
	// Documented variables.
	ChainID            *big.Int
	BaseFee            *big.Int
	EngineAddress      common.Address
	AdminAddress       common.Address
	BundlerAddress     common.Address
	BeneficiaryAddress common.Address
	FactoryAddresses   []common.Address
	DataDirectory      string
	MaxBatchSize       int
	BatchInterval      time.Duration
	Port               int

	// Undocumented variables.
	GinMode              string
	DebugMode            bool
	IsOpsPollingDisabled bool

	// Observability variables.
	OTELServiceName       string
	OTELCollectorHeaders  map[string]string
	OTELCollectorEndpoint string
	OTELInsecureMode      bool
}

func envKeyValStringToMap(s string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(s, "&") {
		kv := strings.Split(pair, "=")
		if len(kv) == 2 {
			out[kv[0]] = kv[1]
		}
	}
	return out
}

func envArrayToAddressSlice(s string) []common.Address {
	env := strings.Split(s, ",")
	slc := []common.Address{}
	for _, ep := range env {
		if ep == "" {
			continue
		}
		slc = append(slc, common.HexToAddress(strings.TrimSpace(ep)))
	}
	return slc
}

func variableNotSetOrIsNil(env string) bool {
	return !viper.IsSet(env) || viper.GetString(env) == ""
}

// GetValues returns config for the engine from env vars. Panics if required
// variables are not set.
func GetValues() *Values {
	// Allow .env files during local development.
	_ = godotenv.Load()

	// Default variables.
	viper.SetDefault("aa_engine_port", 4337)
	viper.SetDefault("aa_engine_chain_id", 1)
	viper.SetDefault("aa_engine_base_fee", "1000000000")
	viper.SetDefault("aa_engine_self_address", "0x0000000000000000000000000000000000004337")
	viper.SetDefault("aa_engine_data_directory", "/tmp/aa_engine")
	viper.SetDefault("aa_engine_max_batch_size", 10)
	viper.SetDefault("aa_engine_batch_interval", "5s")
	viper.SetDefault("aa_engine_gin_mode", "release")
	viper.SetDefault("aa_engine_debug_mode", false)
	viper.SetDefault("aa_engine_is_ops_polling_disabled", false)
	viper.SetDefault("aa_engine_otel_insecure_mode", false)

	// Read in from .env file if available.
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(err)
		}
	}

	// Read in from environment variables.
	_ = viper.BindEnv("aa_engine_port")
	_ = viper.BindEnv("aa_engine_chain_id")
	_ = viper.BindEnv("aa_engine_base_fee")
	_ = viper.BindEnv("aa_engine_self_address")
	_ = viper.BindEnv("aa_engine_admin_address")
	_ = viper.BindEnv("aa_engine_bundler_address")
	_ = viper.BindEnv("aa_engine_beneficiary_address")
	_ = viper.BindEnv("aa_engine_factory_addresses")
	_ = viper.BindEnv("aa_engine_data_directory")
	_ = viper.BindEnv("aa_engine_max_batch_size")
	_ = viper.BindEnv("aa_engine_batch_interval")
	_ = viper.BindEnv("aa_engine_gin_mode")
	_ = viper.BindEnv("aa_engine_debug_mode")
	_ = viper.BindEnv("aa_engine_is_ops_polling_disabled")
	_ = viper.BindEnv("aa_engine_otel_service_name")
	_ = viper.BindEnv("aa_engine_otel_collector_headers")
	_ = viper.BindEnv("aa_engine_otel_collector_url")
	_ = viper.BindEnv("aa_engine_otel_insecure_mode")

	// Validate required variables.
	if variableNotSetOrIsNil("aa_engine_admin_address") {
		panic("Fatal config error: aa_engine_admin_address not set")
	}
	if variableNotSetOrIsNil("aa_engine_beneficiary_address") {
		panic("Fatal config error: aa_engine_beneficiary_address not set")
	}

	// Validate O11Y variables.
	if viper.IsSet("aa_engine_otel_service_name") &&
		variableNotSetOrIsNil("aa_engine_otel_collector_url") {
		panic("Fatal config error: aa_engine_otel_service_name is set without a collector url")
	}

	// Return Values.
	return &Values{
		Port:                  viper.GetInt("aa_engine_port"),
		ChainID:               big.NewInt(viper.GetInt64("aa_engine_chain_id")),
		BaseFee:               mustBig(viper.GetString("aa_engine_base_fee")),
		EngineAddress:         common.HexToAddress(viper.GetString("aa_engine_self_address")),
		AdminAddress:          common.HexToAddress(viper.GetString("aa_engine_admin_address")),
		BundlerAddress:        common.HexToAddress(viper.GetString("aa_engine_bundler_address")),
		BeneficiaryAddress:    common.HexToAddress(viper.GetString("aa_engine_beneficiary_address")),
		FactoryAddresses:      envArrayToAddressSlice(viper.GetString("aa_engine_factory_addresses")),
		DataDirectory:         viper.GetString("aa_engine_data_directory"),
		MaxBatchSize:          viper.GetInt("aa_engine_max_batch_size"),
		BatchInterval:         viper.GetDuration("aa_engine_batch_interval"),
		GinMode:               viper.GetString("aa_engine_gin_mode"),
		DebugMode:             viper.GetBool("aa_engine_debug_mode"),
		IsOpsPollingDisabled:  viper.GetBool("aa_engine_is_ops_polling_disabled"),
		OTELServiceName:       viper.GetString("aa_engine_otel_service_name"),
		OTELCollectorHeaders:  envKeyValStringToMap(viper.GetString("aa_engine_otel_collector_headers")),
		OTELCollectorEndpoint: viper.GetString("aa_engine_otel_collector_url"),
		OTELInsecureMode:      viper.GetBool("aa_engine_otel_insecure_mode"),
	}
}

func mustBig(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("Fatal config error: invalid big integer " + s)
	}
	return n
}
