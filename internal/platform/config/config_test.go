package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"COMPLIANCE_ADDR":       ":9090",
		"TX_TIMEOUT":            "2s",
		"NUMBER_RETRY_ATTEMPTS": "5",
		"KAFKA_BROKERS":         "k1:9092,k2:9092",
		"TRACK_API_URL":         "https://track.example",
	}
	cfg := Defaults()
	err := applyEnv(&cfg, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 2*time.Second, cfg.TxTimeout)
	assert.Equal(t, 5, cfg.NumberRetryAttempts)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "https://track.example", cfg.Registry.BaseURL)
	assert.Equal(t, "COMPLIANCE", cfg.Identity.AppName)
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	err := applyEnv(&cfg, func(k string) (string, bool) {
		if k == "TX_TIMEOUT" {
			return "soon", true
		}
		return "", false
	})
	assert.Error(t, err)

	cfg = Defaults()
	err = applyEnv(&cfg, func(k string) (string, bool) {
		if k == "NUMBER_RETRY_ATTEMPTS" {
			return "0", true
		}
		return "", false
	})
	assert.Error(t, err)
}

func TestFromEnvReadsYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compliance.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":7070\"\nregistry:\n  base_url: https://registry.local\n"), 0o600))
	t.Setenv("COMPLIANCE_CONFIG", path)
	t.Setenv("COMPLIANCE_ADDR", "")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Addr)
	assert.Equal(t, "https://registry.local", cfg.Registry.BaseURL)
	assert.Equal(t, 3, cfg.NumberRetryAttempts)
}
