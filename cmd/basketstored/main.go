package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"basketledger/internal/basketstore"
	"basketledger/internal/config"
	"basketledger/internal/logger"
	"basketledger/internal/storage"
)

func main() {
	logger.Init()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main entry point with error handling.
func run() error {
	cfg, err := parseFlags()
	if err != nil {
		return fmt.Errorf("load config:\n%w", err)
	}

	db, err := storage.New(cfg.DataPath)
	if err != nil {
		return fmt.Errorf("open storage:\n%w", err)
	}
	defer db.Close()

	logger.Info("starting basket store",
		"http", cfg.HTTPAddr,
		"data", cfg.DataPath,
	)

	server := basketstore.NewServer(cfg.HTTPAddr, basketstore.New(db))
	if err := server.Start(); err != nil {
		return fmt.Errorf("start server:\n%w", err)
	}

	return waitForShutdown(server)
}

// parseFlags parses command-line flags, loading the TOML file first and
// letting explicit flags override it.
func parseFlags() (config.Store, error) {
	var (
		configPath = flag.String("config", "", "TOML config file path")
		dataPath   = flag.String("data", "", "Data directory path (overrides config)")
		httpAddr   = flag.String("http", "", "Store API address (overrides config)")
	)
	flag.Parse()

	cfg := config.DefaultStore()

	if *configPath != "" {
		loaded, err := config.LoadStore(*configPath)
		if err != nil {
			return config.Store{}, err
		}

		cfg = loaded
	}

	if *dataPath != "" {
		cfg.DataPath = *dataPath
	}

	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}

	return cfg, nil
}

// waitForShutdown blocks until SIGINT or SIGTERM.
func waitForShutdown(server *basketstore.Server) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	return server.Stop()
}
