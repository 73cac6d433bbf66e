package main

import (
	"flag"
	"strings"

	"basketledger/internal/config"
)

// Config holds the ledger daemon configuration.
type Config struct {
	// Ledger is the loaded ledger configuration.
	Ledger config.Ledger
}

// parseFlags parses command-line flags, loading the TOML file first and
// letting explicit flags override it.
func parseFlags() (Config, error) {
	var (
		configPath = flag.String("config", "", "TOML config file path")
		dataPath   = flag.String("data", "", "Data directory path (overrides config)")
		httpAddr   = flag.String("http", "", "HTTP API address (overrides config)")
		minOracles = flag.Int("min-oracles", 0, "Quorum threshold (overrides config)")
		oracles    = flag.String("oracles", "", "Comma-separated hex oracle keys (overrides config)")
	)
	flag.Parse()

	cfg := config.DefaultLedger()

	if *configPath != "" {
		loaded, err := config.LoadLedger(*configPath)
		if err != nil {
			return Config{}, err
		}

		cfg = loaded
	}

	if *dataPath != "" {
		cfg.DataPath = *dataPath
	}

	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}

	if *minOracles > 0 {
		cfg.MinOracles = *minOracles
	}

	if *oracles != "" {
		cfg.Oracles = strings.Split(*oracles, ",")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return Config{Ledger: cfg}, nil
}
