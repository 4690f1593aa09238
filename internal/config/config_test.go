package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestInitConfigDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	InitConfig()

	assert.Equal(t, 100, BatchSize)
	assert.Equal(t, 3, RetryMaxAttempts)
	assert.Equal(t, 3, FetchAttempts)
	assert.Equal(t, 10*time.Second, AdapterTimeout)
	assert.Equal(t, "googlebooks", PrimarySource)
	assert.Equal(t, "./folio.db", WarehouseDBFile)
}

func TestInitConfigOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("worker.batchsize", 5)
	viper.Set("worker.maxretries", 7)
	viper.Set("adapter.timeout", "2s")
	viper.Set("adapter.primarysource", "openlibrary")

	InitConfig()

	assert.Equal(t, 5, BatchSize)
	assert.Equal(t, 7, RetryMaxAttempts)
	assert.Equal(t, 2*time.Second, AdapterTimeout)
	assert.Equal(t, "openlibrary", PrimarySource)
}

func TestSetters(t *testing.T) {
	origBatch := BatchSize
	origRetries := RetryMaxAttempts
	t.Cleanup(func() {
		BatchSize = origBatch
		RetryMaxAttempts = origRetries
	})

	SetBatchSize(42)
	SetRetryMaxAttempts(9)

	assert.Equal(t, 42, BatchSize)
	assert.Equal(t, 9, RetryMaxAttempts)
}
