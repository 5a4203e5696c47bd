package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/code-payments/poc-ledger/pkg/pointer"
)

func TestWithOverrides_Defaults(t *testing.T) {
	ctx := context.Background()

	for _, overrides := range []*Overrides{nil, {}} {
		conf := WithOverrides(overrides)()
		assert.EqualValues(t, defaultLamportsPerByteYear, conf.lamportsPerByteYear.Get(ctx))
		assert.EqualValues(t, defaultExemptionThreshold, conf.exemptionThreshold.Get(ctx))
		assert.Equal(t, defaultEvictRentPaying, conf.evictRentPaying.Get(ctx))
		assert.EqualValues(t, defaultMaxInvokeDepth, conf.maxInvokeDepth.Get(ctx))
		assert.Equal(t, defaultVerifySignatures, conf.verifySignatures.Get(ctx))
	}
}

func TestWithOverrides_PinnedValues(t *testing.T) {
	ctx := context.Background()

	conf := WithOverrides(&Overrides{
		LamportsPerByteYear: pointer.Uint64(1),
		EvictRentPaying:     pointer.Bool(true),
		VerifySignatures:    pointer.Bool(false),
	})()

	assert.EqualValues(t, 1, conf.lamportsPerByteYear.Get(ctx))
	assert.True(t, conf.evictRentPaying.Get(ctx))
	assert.False(t, conf.verifySignatures.Get(ctx))

	// Unset fields keep their defaults
	assert.EqualValues(t, defaultExemptionThreshold, conf.exemptionThreshold.Get(ctx))
	assert.EqualValues(t, defaultMaxInvokeDepth, conf.maxInvokeDepth.Get(ctx))
}

func TestWithEnvConfigs(t *testing.T) {
	ctx := context.Background()

	t.Setenv(MaxInvokeDepthConfigEnvName, "2")
	t.Setenv(EvictRentPayingConfigEnvName, "true")

	conf := WithEnvConfigs()()
	assert.EqualValues(t, 2, conf.maxInvokeDepth.Get(ctx))
	assert.True(t, conf.evictRentPaying.Get(ctx))
	assert.EqualValues(t, defaultLamportsPerByteYear, conf.lamportsPerByteYear.Get(ctx))
}
