package replacer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, AlgorithmLRUK, config.Algorithm)
	assert.Equal(t, DefaultCapacity, config.Capacity)
	assert.Equal(t, DefaultK, config.K)
	assert.Equal(t, Duration(0), config.CorrelatedPeriod)
	assert.True(t, config.EnableMetrics)
	assert.Equal(t, "info", config.LogLevel)
	assert.NoError(t, config.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		code   ErrorCode
	}{
		{"unknown algorithm", func(c *Config) { c.Algorithm = "clock" }, ErrCodeUnknownAlgorithm},
		{"zero capacity", func(c *Config) { c.Capacity = 0 }, ErrCodeInvalidConfig},
		{"negative capacity", func(c *Config) { c.Capacity = -1 }, ErrCodeInvalidConfig},
		{"zero k", func(c *Config) { c.K = 0 }, ErrCodeInvalidConfig},
		{"negative period", func(c *Config) { c.CorrelatedPeriod = Duration(-time.Second) }, ErrCodeInvalidConfig},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, ErrCodeInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)

			err := config.Validate()
			require.Error(t, err)
			assert.Equal(t, tt.code, GetErrorCode(err))
		})
	}

	// K is irrelevant for plain LRU
	config := DefaultConfig()
	config.Algorithm = AlgorithmLRU
	config.K = 0
	assert.NoError(t, config.Validate())
}

func TestConfigFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evict.json")

	config := DefaultConfig()
	config.Algorithm = AlgorithmLRU
	config.Capacity = 128
	config.CorrelatedPeriod = Duration(250 * time.Millisecond)
	config.LogLevel = "debug"
	require.NoError(t, config.SaveToFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"correlated_period": "250ms"`)

	loaded, err := LoadConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, config, loaded)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()

	// Missing fields keep their defaults
	path := filepath.Join(dir, "partial.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"capacity": 64, "k": 3, "correlated_period": "1s"}`), 0644))
	config, err := LoadConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, AlgorithmLRUK, config.Algorithm)
	assert.Equal(t, 64, config.Capacity)
	assert.Equal(t, 3, config.K)
	assert.Equal(t, Duration(time.Second), config.CorrelatedPeriod)

	path = filepath.Join(dir, "invalid.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"algorithm": "mru"}`), 0644))
	_, err = LoadConfigFromFile(path)
	require.Error(t, err)
	assert.True(t, IsErrorCode(err, ErrCodeUnknownAlgorithm))

	path = filepath.Join(dir, "period.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"correlated_period": 5}`), 0644))
	_, err = LoadConfigFromFile(path)
	assert.Error(t, err)

	_, err = LoadConfigFromFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("EVICT_ALGORITHM", "lru")
	t.Setenv("EVICT_CAPACITY", "256")
	t.Setenv("EVICT_K", "not-a-number")
	t.Setenv("EVICT_CORRELATED_PERIOD", "30ms")
	t.Setenv("EVICT_ENABLE_METRICS", "false")
	t.Setenv("EVICT_LOG_LEVEL", "warn")

	config := LoadConfigFromEnv()
	assert.Equal(t, AlgorithmLRU, config.Algorithm)
	assert.Equal(t, 256, config.Capacity)
	assert.Equal(t, DefaultK, config.K, "malformed values fall back to defaults")
	assert.Equal(t, Duration(30*time.Millisecond), config.CorrelatedPeriod)
	assert.False(t, config.EnableMetrics)
	assert.Equal(t, "warn", config.LogLevel)
}

func TestConfigClone(t *testing.T) {
	config := DefaultConfig()
	clone := config.Clone()
	clone.Capacity = 1

	assert.Equal(t, DefaultCapacity, config.Capacity)
	assert.Equal(t, 1, clone.Capacity)
}

func TestNewPolicyFromConfig(t *testing.T) {
	config := DefaultConfig()
	config.Algorithm = AlgorithmLRU
	config.EnableMetrics = false

	policy, err := NewPolicyFromConfig[uint32](config, nil)
	require.NoError(t, err)
	assert.IsType(t, &LRUReplacer[uint32]{}, policy)

	config = DefaultConfig()
	config.Capacity = 32
	config.K = 3
	config.CorrelatedPeriod = Duration(time.Millisecond)

	policy, err = NewPolicyFromConfig[uint32](config, discardLogger())
	require.NoError(t, err)
	require.IsType(t, &Instrumented[uint32]{}, policy)

	inner, ok := policy.(*Instrumented[uint32]).Unwrap().(*LRUKReplacer[uint32])
	require.True(t, ok)
	assert.Equal(t, 3, inner.K())
	assert.Equal(t, 32, inner.Capacity())

	config.Capacity = 0
	_, err = NewPolicyFromConfig[uint32](config, nil)
	assert.True(t, IsErrorCode(err, ErrCodeInvalidConfig))
}
