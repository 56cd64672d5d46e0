package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	opts, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultStorePath(), opts.StorePath)
	assert.Equal(t, "info", opts.LogLevel)
	assert.Empty(t, opts.MetricsAddr)
	assert.Zero(t, opts.Display)
}

func TestEnvironmentAndFlags(t *testing.T) {
	t.Setenv("COOKIE_IDLE_LOG_LEVEL", "debug")
	t.Setenv("COOKIE_IDLE_METRICS_ADDR", "127.0.0.1:9464")
	t.Setenv("COOKIE_IDLE_STORE", "/tmp/env.yaml")

	opts, err := Load([]string{"--store", "/tmp/flag.db", "-d", "1"})
	require.NoError(t, err)

	assert.Equal(t, "/tmp/flag.db", opts.StorePath, "flag wins over env")
	assert.Equal(t, "debug", opts.LogLevel)
	assert.Equal(t, "127.0.0.1:9464", opts.MetricsAddr)
	assert.Equal(t, 1, opts.Display)
}

func TestInvalidOptions(t *testing.T) {
	for _, args := range [][]string{
		{"--log-level", "loud"},
		{"--display", "-1"},
		{"--metrics-addr", "not an address"},
		{"--store", ""},
		{"--unknown"},
	} {
		_, err := Load(args)
		assert.Error(t, err, "%v", args)
	}
}

func TestHelp(t *testing.T) {
	_, err := Load([]string{"--help"})
	assert.ErrorIs(t, err, ErrHelp)
}
