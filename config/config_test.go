package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, "localhost", cfg.DB.Host)
	assert.Equal(t, 10*time.Second, cfg.Paystack.Timeout)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_NestedOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("PAYSTACK_SECRET_KEY", "sk_test_123")
	t.Setenv("PAYSTACK_TIMEOUT", "3s")
	t.Setenv("STORE", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.DB.Host)
	assert.Equal(t, "sk_test_123", cfg.Paystack.SecretKey)
	assert.Equal(t, 3*time.Second, cfg.Paystack.Timeout)
	assert.Equal(t, StoreMemory, cfg.Store)
}

func TestLoad_RejectsUnknownNotifier(t *testing.T) {
	t.Setenv("NOTIFIER", "pigeon")

	_, err := Load()
	assert.Error(t, err)
}
