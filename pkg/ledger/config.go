package ledger

import (
	"github.com/code-payments/poc-ledger/pkg/config"
	"github.com/code-payments/poc-ledger/pkg/config/env"
	"github.com/code-payments/poc-ledger/pkg/config/memory"
	"github.com/code-payments/poc-ledger/pkg/config/wrapper"
)

const (
	envConfigPrefix = "LEDGER_"

	LamportsPerByteYearConfigEnvName = envConfigPrefix + "LAMPORTS_PER_BYTE_YEAR"
	defaultLamportsPerByteYear       = DefaultLamportsPerByteYear

	ExemptionThresholdConfigEnvName = envConfigPrefix + "EXEMPTION_THRESHOLD"
	defaultExemptionThreshold       = DefaultExemptionThreshold

	EvictRentPayingConfigEnvName = envConfigPrefix + "EVICT_RENT_PAYING"
	defaultEvictRentPaying       = false

	MaxInvokeDepthConfigEnvName = envConfigPrefix + "MAX_INVOKE_DEPTH"
	defaultMaxInvokeDepth       = 4

	VerifySignaturesConfigEnvName = envConfigPrefix + "VERIFY_SIGNATURES"
	defaultVerifySignatures       = true
)

type conf struct {
	lamportsPerByteYear config.Uint64
	exemptionThreshold  config.Float64
	evictRentPaying     config.Bool
	maxInvokeDepth      config.Uint64
	verifySignatures    config.Bool
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			lamportsPerByteYear: env.NewUint64Config(LamportsPerByteYearConfigEnvName, defaultLamportsPerByteYear),
			exemptionThreshold:  env.NewFloat64Config(ExemptionThresholdConfigEnvName, defaultExemptionThreshold),
			evictRentPaying:     env.NewBoolConfig(EvictRentPayingConfigEnvName, defaultEvictRentPaying),
			maxInvokeDepth:      env.NewUint64Config(MaxInvokeDepthConfigEnvName, defaultMaxInvokeDepth),
			verifySignatures:    env.NewBoolConfig(VerifySignaturesConfigEnvName, defaultVerifySignatures),
		}
	}
}

// Overrides pins config values in memory. Nil fields keep their defaults.
type Overrides struct {
	LamportsPerByteYear *uint64
	ExemptionThreshold  *float64
	EvictRentPaying     *bool
	MaxInvokeDepth      *uint64
	VerifySignatures    *bool
}

// WithOverrides returns configuration backed by in memory values
func WithOverrides(overrides *Overrides) ConfigProvider {
	if overrides == nil {
		overrides = &Overrides{}
	}

	return func() *conf {
		return &conf{
			lamportsPerByteYear: wrapper.NewUint64Config(memory.NewConfig(valueOrNil(overrides.LamportsPerByteYear)), defaultLamportsPerByteYear),
			exemptionThreshold:  wrapper.NewFloat64Config(memory.NewConfig(valueOrNil(overrides.ExemptionThreshold)), defaultExemptionThreshold),
			evictRentPaying:     wrapper.NewBoolConfig(memory.NewConfig(valueOrNil(overrides.EvictRentPaying)), defaultEvictRentPaying),
			maxInvokeDepth:      wrapper.NewUint64Config(memory.NewConfig(valueOrNil(overrides.MaxInvokeDepth)), defaultMaxInvokeDepth),
			verifySignatures:    wrapper.NewBoolConfig(memory.NewConfig(valueOrNil(overrides.VerifySignatures)), defaultVerifySignatures),
		}
	}
}

// valueOrNil unwraps a pointer so that an unset override reads as no value.
func valueOrNil[T any](v *T) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
