package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"basketledger/internal/api"
	"basketledger/internal/audit"
	"basketledger/internal/ledger"
	"basketledger/internal/logger"
	"basketledger/internal/storage"
)

// Node is a running ledger daemon.
type Node struct {
	cfg     Config
	storage *storage.Storage
	events  *audit.Log
	ledger  *ledger.Ledger
	api     *api.Server
}

// NewNode creates and initializes a ledger node.
func NewNode(cfg Config) (*Node, error) {
	n := &Node{cfg: cfg}

	if err := n.initStorage(); err != nil {
		return nil, err
	}

	if err := n.initLedger(); err != nil {
		n.Close()
		return nil, err
	}

	n.api = api.New(cfg.Ledger.HTTPAddr, n.ledger, n.events)

	return n, nil
}

// initStorage opens the persistent store and the audit log.
func (n *Node) initStorage() error {
	db, err := storage.New(n.cfg.Ledger.DataPath)
	if err != nil {
		return fmt.Errorf("open storage:\n%w", err)
	}

	n.storage = db

	events, err := audit.Open(db)
	if err != nil {
		return fmt.Errorf("open audit log:\n%w", err)
	}

	n.events = events

	return nil
}

// initLedger builds the quorum configuration and the ledger engine.
func (n *Node) initLedger() error {
	keys, err := n.cfg.Ledger.OracleKeys()
	if err != nil {
		return fmt.Errorf("decode oracle keys:\n%w", err)
	}

	quorum, err := ledger.NewQuorumConfig(n.cfg.Ledger.MinOracles, keys)
	if err != nil {
		return fmt.Errorf("build quorum config:\n%w", err)
	}

	n.ledger = ledger.New(n.storage, quorum, n.events)

	return nil
}

// Run starts the API server and blocks until shutdown.
func (n *Node) Run() error {
	if err := n.api.Start(); err != nil {
		return fmt.Errorf("start api:\n%w", err)
	}

	return n.waitForShutdown()
}

// waitForShutdown blocks until SIGINT or SIGTERM.
func (n *Node) waitForShutdown() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	return n.Close()
}

// Close shuts down all node components gracefully.
func (n *Node) Close() error {
	if n.api != nil {
		n.api.Stop()
	}

	if n.storage != nil {
		n.storage.Close()
	}

	return nil
}
