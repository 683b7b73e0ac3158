package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitOTel_Disabled(t *testing.T) {
	providers, err := InitOTel(context.Background(), OTelConfig{Enabled: false}, quietLogger())
	assert.NoError(t, err)
	assert.Nil(t, providers)
}

func TestShutdownOTel_Nil(t *testing.T) {
	assert.NoError(t, ShutdownOTel(context.Background(), nil, quietLogger()))
}

func TestShutdownOTel_EmptyProviders(t *testing.T) {
	assert.NoError(t, ShutdownOTel(context.Background(), &OTelProviders{}, quietLogger()))
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(0).Description(), "root:AlwaysOnSampler")
	assert.Contains(t, sampler(1).Description(), "root:AlwaysOnSampler")
	assert.Contains(t, sampler(0.25).Description(), "root:TraceIDRatioBased{0.25}")
}
