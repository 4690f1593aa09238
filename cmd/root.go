package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/folio/cmd/seed"
	"github.com/lepinkainen/folio/cmd/work"
	"github.com/lepinkainen/folio/internal/config"
	"github.com/lepinkainen/folio/internal/warehouse"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"
)

var (
	runSeed = seed.Seed
	runWork = work.Run
)

// CLI represents the complete command structure for the folio application
type CLI struct {
	// Warehouse flags
	WarehouseDB string `help:"Path to SQLite warehouse database file" default:"./folio.db"`

	// Cache flags
	CacheDBFile string `help:"Path to cache SQLite database file" default:"./cache.db"`
	CacheTTL    string `help:"Cache time-to-live duration (e.g., 720h for 30 days)" default:"720h"`

	Seed    SeedCmd    `cmd:"" help:"Load book requests from a CSV file into the job queue"`
	Work    WorkCmd    `cmd:"" help:"Process queued jobs: fetch, reconcile and load into the warehouse"`
	Requeue RequeueCmd `cmd:"" help:"Reset failed jobs back to pending with a fresh retry budget"`
	Status  StatusCmd  `cmd:"" help:"Show job counts per lifecycle state"`
}

// SeedCmd represents the seed command
type SeedCmd struct {
	Input string `short:"f" help:"Path to CSV file with isbn,title,author columns"`
}

// WorkCmd represents the work command
type WorkCmd struct {
	BatchSize  int `help:"Jobs claimed per cycle (0 = use config)"`
	MaxRetries int `help:"Job retry ceiling (0 = use config)"`
}

// RequeueCmd represents the requeue command
type RequeueCmd struct{}

// StatusCmd represents the status command
type StatusCmd struct{}

// Execute runs the Kong-based CLI
func Execute() {
	initLogging()
	initConfig()

	var cli CLI

	ctx := kong.Parse(&cli,
		kong.Name("folio"),
		kong.Description("A pipeline that enriches book identifiers from public APIs into a dimensional warehouse."),
		kong.UsageOnError(),
	)

	updateGlobalConfig(&cli)

	err := ctx.Run()
	if err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func initConfig() {
	// Cache defaults
	viper.SetDefault("cache.dbfile", "./cache.db")
	viper.SetDefault("cache.ttl", "720h") // 30 days

	// Source API endpoints, overridable for self-hosted mirrors
	viper.SetDefault("googlebooks.baseurl", "https://www.googleapis.com/books/v1")
	viper.SetDefault("openlibrary.baseurl", "https://openlibrary.org")

	// Enable environment variable support
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Info("Config file not found, writing default config file...")
			if err := viper.SafeWriteConfig(); err != nil {
				slog.Error("Error writing config file", "error", err)
			}
			os.Exit(0)
		} else {
			slog.Error("Fatal error config file", "error", err)
			os.Exit(1)
		}
	}

	// Initialize global config
	config.InitConfig()
}

func updateGlobalConfig(cli *CLI) {
	viper.Set("warehouse.dbfile", cli.WarehouseDB)
	config.WarehouseDBFile = cli.WarehouseDB

	viper.Set("cache.dbfile", cli.CacheDBFile)
	viper.Set("cache.ttl", cli.CacheTTL)
}

func openWarehouse() (*warehouse.Warehouse, error) {
	wh, err := warehouse.Open(config.WarehouseDBFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse: %w", err)
	}
	return wh, nil
}

// Run methods for each command

func (s *SeedCmd) Run() error {
	// Read from config if value not provided via flag
	input := s.Input
	if input == "" {
		input = viper.GetString("seed.csvfile")
	}

	if input == "" {
		return fmt.Errorf("input CSV file is required (provide via --input flag or seed.csvfile in config)")
	}

	wh, err := openWarehouse()
	if err != nil {
		return err
	}
	defer func() { _ = wh.Close() }()

	_, err = runSeed(context.Background(), wh, input)
	return err
}

func (w *WorkCmd) Run() error {
	if w.BatchSize > 0 {
		config.SetBatchSize(w.BatchSize)
	}
	if w.MaxRetries > 0 {
		config.SetRetryMaxAttempts(w.MaxRetries)
	}

	wh, err := openWarehouse()
	if err != nil {
		return err
	}
	defer func() { _ = wh.Close() }()

	_, err = runWork(wh)
	return err
}

func (r *RequeueCmd) Run() error {
	wh, err := openWarehouse()
	if err != nil {
		return err
	}
	defer func() { _ = wh.Close() }()

	count, err := wh.RequeueFailed(context.Background())
	if err != nil {
		return err
	}
	slog.Info("Requeued failed jobs", "count", count)
	return nil
}

func (s *StatusCmd) Run() error {
	wh, err := openWarehouse()
	if err != nil {
		return err
	}
	defer func() { _ = wh.Close() }()

	counts, err := wh.CountByStatus(context.Background())
	if err != nil {
		return err
	}
	for _, status := range []warehouse.JobStatus{
		warehouse.StatusPending, warehouse.StatusProcessing,
		warehouse.StatusCompleted, warehouse.StatusFailed,
	} {
		fmt.Printf("%-12s %d\n", status, counts[status])
	}
	return nil
}

func initLogging() {
	// Create a human-readable handler for logging
	handler := humanlog.NewHandler(os.Stdout, &humanlog.Options{
		Level: slog.LevelInfo,
	})

	// Set the default logger
	slog.SetDefault(slog.New(handler))
}
