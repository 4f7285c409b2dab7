package replacer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config holds replacer configuration.
// The replacers themselves only take a capacity (and K); Config is what a
// surrounding buffer pool loads to decide which replacer to build.
type Config struct {
	Algorithm        Algorithm `json:"algorithm"`         // Replacement algorithm (lru, lru-k)
	Capacity         int       `json:"capacity"`          // Number of frames the replacer is sized for
	K                int       `json:"k"`                 // LRU-K look-back window
	CorrelatedPeriod Duration  `json:"correlated_period"` // LRU-K correlated reference period
	EnableMetrics    bool      `json:"enable_metrics"`    // Wrap the replacer in Instrumented
	LogLevel         string    `json:"log_level"`         // Log level (debug, info, warn, error)
}

// Duration is a time.Duration that reads and writes JSON as "250ms" style strings
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Algorithm:     AlgorithmLRUK,
		Capacity:      DefaultCapacity,
		K:             DefaultK,
		EnableMetrics: true,
		LogLevel:      "info",
	}
}

// LoadConfigFromFile loads configuration from a JSON file
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	err = json.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadConfigFromEnv loads configuration from environment variables
// Falls back to default values if environment variables are not set or malformed
func LoadConfigFromEnv() *Config {
	config := DefaultConfig()

	if val := os.Getenv("EVICT_ALGORITHM"); val != "" {
		config.Algorithm = Algorithm(val)
	}

	if val := os.Getenv("EVICT_CAPACITY"); val != "" {
		if capacity, err := strconv.Atoi(val); err == nil {
			config.Capacity = capacity
		}
	}

	if val := os.Getenv("EVICT_K"); val != "" {
		if k, err := strconv.Atoi(val); err == nil {
			config.K = k
		}
	}

	if val := os.Getenv("EVICT_CORRELATED_PERIOD"); val != "" {
		if period, err := time.ParseDuration(val); err == nil {
			config.CorrelatedPeriod = Duration(period)
		}
	}

	if val := os.Getenv("EVICT_ENABLE_METRICS"); val != "" {
		config.EnableMetrics = val == "true" || val == "1"
	}

	if val := os.Getenv("EVICT_LOG_LEVEL"); val != "" {
		config.LogLevel = val
	}

	return config
}

// SaveToFile saves the configuration to a JSON file
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	err = os.WriteFile(path, data, 0644)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Validate validates the configuration
func (c *Config) Validate() error {
	const op = "Config.Validate"

	switch c.Algorithm {
	case AlgorithmLRU, AlgorithmLRUK:
	default:
		return ErrUnknownAlgorithm(op, string(c.Algorithm))
	}

	if c.Capacity <= 0 {
		return ErrInvalidConfig(op, "capacity must be greater than 0")
	}

	if c.Algorithm == AlgorithmLRUK && c.K < 1 {
		return ErrInvalidConfig(op, "k must be at least 1")
	}

	if c.CorrelatedPeriod < 0 {
		return ErrInvalidConfig(op, "correlated period cannot be negative")
	}

	if _, ok := logLevels[c.LogLevel]; !ok {
		return ErrInvalidConfig(op, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel))
	}

	return nil
}

// Clone creates a copy of the configuration
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// Logger builds a text logger writing to stderr at the configured level
func (c *Config) Logger() *slog.Logger {
	level, ok := logLevels[c.LogLevel]
	if !ok {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewPolicyFromConfig validates the configuration and builds the replacer it
// describes. With metrics enabled the replacer is wrapped in Instrumented,
// logging to logger (or to one built from the config when nil).
func NewPolicyFromConfig[F FrameID](config *Config, logger *slog.Logger) (Policy[F], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var policy Policy[F]
	switch config.Algorithm {
	case AlgorithmLRU:
		policy = NewLRUReplacer[F](config.Capacity)
	case AlgorithmLRUK:
		policy = NewLRUKReplacerWithConfig[F](LRUKConfig{
			Capacity:         config.Capacity,
			K:                config.K,
			CorrelatedPeriod: time.Duration(config.CorrelatedPeriod),
		})
	}

	if !config.EnableMetrics {
		return policy, nil
	}
	if logger == nil {
		logger = config.Logger()
	}
	return NewInstrumented(policy, NewMetrics(), logger), nil
}
