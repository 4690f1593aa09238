package config

import (
	"time"

	"github.com/spf13/viper"
)

// Global configuration variables
var (
	// BatchSize is the maximum number of jobs claimed per worker cycle
	BatchSize int
	// RetryMaxAttempts is the job-level retry ceiling; a job that has failed
	// this many times is no longer eligible for claiming
	RetryMaxAttempts int
	// FetchAttempts is the per-adapter attempt ceiling for transient failures
	FetchAttempts int
	// AdapterTimeout is the timeout applied to each individual source API call
	AdapterTimeout time.Duration
	// PrimarySource wins conflicting descriptive fields during reconciliation
	PrimarySource string
	// WarehouseDBFile is the path to the SQLite warehouse database
	WarehouseDBFile string
)

// InitConfig initializes the global configuration from viper
func InitConfig() {
	viper.SetDefault("worker.batchsize", 100)
	viper.SetDefault("worker.maxretries", 3)
	viper.SetDefault("adapter.fetchattempts", 3)
	viper.SetDefault("adapter.timeout", "10s")
	viper.SetDefault("adapter.primarysource", "googlebooks")
	viper.SetDefault("warehouse.dbfile", "./folio.db")

	BatchSize = viper.GetInt("worker.batchsize")
	RetryMaxAttempts = viper.GetInt("worker.maxretries")
	FetchAttempts = viper.GetInt("adapter.fetchattempts")
	AdapterTimeout = viper.GetDuration("adapter.timeout")
	PrimarySource = viper.GetString("adapter.primarysource")
	WarehouseDBFile = viper.GetString("warehouse.dbfile")
}

// SetBatchSize sets the claim batch size
func SetBatchSize(n int) {
	BatchSize = n
}

// SetRetryMaxAttempts sets the job-level retry ceiling
func SetRetryMaxAttempts(n int) {
	RetryMaxAttempts = n
}
