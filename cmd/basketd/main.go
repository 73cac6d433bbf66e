package main

import (
	"fmt"
	"os"

	"basketledger/internal/logger"
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

	node, err := NewNode(cfg)
	if err != nil {
		return fmt.Errorf("create node:\n%w", err)
	}

	printStartupInfo(cfg)

	return node.Run()
}

// printStartupInfo displays ledger configuration at startup.
func printStartupInfo(cfg Config) {
	logger.Info("starting basket ledger",
		"http", cfg.Ledger.HTTPAddr,
		"data", cfg.Ledger.DataPath,
		"min_oracles", cfg.Ledger.MinOracles,
		"oracles", len(cfg.Ledger.Oracles),
	)
}
