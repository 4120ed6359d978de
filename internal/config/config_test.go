package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "http://localhost:5000", cfg.DocStore.BaseURL)
	assert.Equal(t, 2.0, cfg.Lifecycle.CancelWindowHours)
	assert.Equal(t, 1.0, cfg.Lifecycle.StageDurationHours)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.False(t, cfg.Outbox.Enabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DOCSTORE_URL", "http://docs:5000/")
	t.Setenv("CANCEL_WINDOW_HOURS", "6")
	t.Setenv("DOCSTORE_OPTIMISTIC_LOCKING", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "http://docs:5000", cfg.DocStore.BaseURL)
	assert.Equal(t, 6.0, cfg.Lifecycle.CancelWindowHours)
	assert.True(t, cfg.DocStore.OptimisticLocking)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("PORT", "eighty")
	t.Setenv("SESSION_TTL", "forever")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid PORT")
	assert.Contains(t, err.Error(), "invalid SESSION_TTL")
}

func TestLoadRejectsNonPositiveWindow(t *testing.T) {
	t.Setenv("CANCEL_WINDOW_HOURS", "0")

	_, err := Load()
	assert.ErrorContains(t, err, "CANCEL_WINDOW_HOURS")
}

func TestDBConnString(t *testing.T) {
	cfg := &Config{DB: DBConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", cfg.GetDBConnString())
}
