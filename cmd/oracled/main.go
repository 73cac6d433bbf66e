package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"basketledger/internal/config"
	"basketledger/internal/logger"
	"basketledger/internal/oracle"
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

	key, err := config.LoadOrGenerateKey(cfg.KeyPath)
	if err != nil {
		return fmt.Errorf("load key:\n%w", err)
	}

	logger.Info("starting oracle",
		"signer", hex.EncodeToString(key.PublicKeyBytes()),
		"http", cfg.HTTPAddr,
		"key", cfg.KeyPath,
	)

	server := oracle.NewServer(cfg.HTTPAddr, oracle.NewSigner(key))
	if err := server.Start(); err != nil {
		return fmt.Errorf("start server:\n%w", err)
	}

	return waitForShutdown(server)
}

// parseFlags parses command-line flags, loading the TOML file first and
// letting explicit flags override it.
func parseFlags() (config.Oracle, error) {
	var (
		configPath = flag.String("config", "", "TOML config file path")
		httpAddr   = flag.String("http", "", "Attestation API address (overrides config)")
		keyPath    = flag.String("key", "", "Signing seed path (overrides config)")
	)
	flag.Parse()

	cfg := config.DefaultOracle()

	if *configPath != "" {
		loaded, err := config.LoadOracle(*configPath)
		if err != nil {
			return config.Oracle{}, err
		}

		cfg = loaded
	}

	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}

	if *keyPath != "" {
		cfg.KeyPath = *keyPath
	}

	return cfg, nil
}

// waitForShutdown blocks until SIGINT or SIGTERM.
func waitForShutdown(server *oracle.Server) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	return server.Stop()
}
