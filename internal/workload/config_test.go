package workload

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workload.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfig_IsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestConfig_EffectiveQueueCapacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Transactions = 1000
	cfg.Workers = 8
	assert.Equal(t, 1008, cfg.EffectiveQueueCapacity())

	cfg.QueueCapacity = 64
	assert.Equal(t, 64, cfg.EffectiveQueueCapacity())
}

func TestValidate_RejectsOutOfRangeFields(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Config)
		field string
	}{
		{"no workers", func(c *Config) { c.Workers = 0 }, "workers"},
		{"negative transactions", func(c *Config) { c.Transactions = -5 }, "transactions"},
		{"no tables", func(c *Config) { c.Tables = 0 }, "tables"},
		{"too many ops", func(c *Config) { c.MaxOps = 65 }, "max_ops"},
		{"tiny heap", func(c *Config) { c.HeapPerTransaction = 8 }, "heap_per_transaction"},
		{"negative capacity", func(c *Config) { c.QueueCapacity = -1 }, "queue_capacity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.edit(&cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs), "got %T: %v", err, err)
			assert.Contains(t, verrs.Error(), tt.field)
		})
	}
}

func TestValidate_HeapMustHoldOneTransaction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Transactions = 1
	cfg.HeapPerTransaction = 16

	err := cfg.Validate()
	require.Error(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 1)
	assert.Equal(t, "heap_per_transaction", verrs[0].Field)
}

func TestLoadConfig_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
workers: 2
transactions: 500
seed: 42
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	want := DefaultConfig()
	want.Workers = 2
	want.Transactions = 500
	want.Seed = 42
	assert.Equal(t, want, cfg)
}

func TestLoadConfig_EmptyFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_RejectsUnknownFields(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "worker: 3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadConfig_RejectsInvalidValues(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "tables: 0\n"))
	require.Error(t, err)

	var verrs ValidationErrors
	assert.True(t, errors.As(err, &verrs))
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate_SingleWorkerNeedsWholeWorkloadQueued(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 1
	cfg.Transactions = 100
	cfg.QueueCapacity = 50

	err := cfg.Validate()
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "queue_capacity", verrs[0].Field)

	cfg.QueueCapacity = 101
	assert.NoError(t, cfg.Validate())
}
