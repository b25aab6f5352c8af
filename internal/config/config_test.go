package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.Nil(t, err)
	assert.EqualValues(t, 100, cfg.DefaultTickSize)
	assert.EqualValues(t, 1000, cfg.DefaultLotSize)
	assert.EqualValues(t, 10, cfg.DefaultMakerFee)
	assert.EqualValues(t, 10, cfg.DefaultTakerFee)
	assert.Equal(t, 1000, cfg.SlabCapacity)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DUSKBOOK_TICK_SIZE", "250")
	t.Setenv("DUSKBOOK_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.Nil(t, err)
	assert.EqualValues(t, 250, cfg.DefaultTickSize)
	assert.Equal(t, "debug", cfg.LogLevel)
}
