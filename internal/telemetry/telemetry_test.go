package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), "lotscrape", Config{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupWithEndpoint(t *testing.T) {
	cfg := Config{OTLPEndpoint: "http://127.0.0.1:4318/v1/traces"}
	assert.True(t, cfg.Enabled())

	shutdown, err := Setup(context.Background(), "lotscrape", cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// nothing was recorded, so shutdown does not need the collector
	assert.NoError(t, shutdown(context.Background()))
}
