// Package config loads daemon configuration from TOML files, overlaying
// file values on top of built-in defaults.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"basketledger/internal/oracle"
)

// Ledger is the ledger daemon configuration.
type Ledger struct {
	// DataPath is the directory for persistent storage.
	DataPath string `toml:"data_path"`

	// HTTPAddr is the HTTP API listen address.
	HTTPAddr string `toml:"http_addr"`

	// MinOracles is the quorum threshold for reorg attestations.
	MinOracles int `toml:"min_oracles"`

	// Oracles are the configured oracle public keys, hex encoded.
	Oracles []string `toml:"oracles"`
}

// DefaultLedger returns the ledger defaults.
func DefaultLedger() Ledger {
	return Ledger{
		DataPath: "./data",
		HTTPAddr: ":8080",
	}
}

// LoadLedger reads a ledger configuration file over the defaults.
func LoadLedger(path string) (Ledger, error) {
	cfg := DefaultLedger()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Ledger{}, fmt.Errorf("load ledger config %s:\n%w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Ledger{}, err
	}

	return cfg, nil
}

// Validate checks the loaded values.
func (c Ledger) Validate() error {
	if c.MinOracles < 1 {
		return fmt.Errorf("min_oracles must be at least 1, got %d", c.MinOracles)
	}

	if len(c.Oracles) < c.MinOracles {
		return fmt.Errorf("%d oracles configured, quorum needs %d", len(c.Oracles), c.MinOracles)
	}

	if _, err := c.OracleKeys(); err != nil {
		return err
	}

	return nil
}

// OracleKeys decodes the configured oracle public keys.
func (c Ledger) OracleKeys() ([][]byte, error) {
	keys := make([][]byte, len(c.Oracles))

	for i, encoded := range c.Oracles {
		key, err := hex.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("oracle key %d: invalid hex:\n%w", i, err)
		}

		if len(key) != oracle.PublicKeySize {
			return nil, fmt.Errorf("oracle key %d: got %d bytes, want %d", i, len(key), oracle.PublicKeySize)
		}

		keys[i] = key
	}

	return keys, nil
}

// Oracle is the oracle daemon configuration.
type Oracle struct {
	// HTTPAddr is the attestation API listen address.
	HTTPAddr string `toml:"http_addr"`

	// KeyPath is the path to the 32-byte signing seed file.
	KeyPath string `toml:"key_path"`
}

// DefaultOracle returns the oracle defaults.
func DefaultOracle() Oracle {
	return Oracle{
		HTTPAddr: ":8090",
		KeyPath:  "./oracle.seed",
	}
}

// LoadOracle reads an oracle configuration file over the defaults.
func LoadOracle(path string) (Oracle, error) {
	cfg := DefaultOracle()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Oracle{}, fmt.Errorf("load oracle config %s:\n%w", path, err)
	}

	return cfg, nil
}

// Store is the basket store daemon configuration.
type Store struct {
	// DataPath is the directory for persistent storage.
	DataPath string `toml:"data_path"`

	// HTTPAddr is the store API listen address.
	HTTPAddr string `toml:"http_addr"`
}

// DefaultStore returns the store defaults.
func DefaultStore() Store {
	return Store{
		DataPath: "./store-data",
		HTTPAddr: ":8085",
	}
}

// LoadStore reads a store configuration file over the defaults.
func LoadStore(path string) (Store, error) {
	cfg := DefaultStore()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Store{}, fmt.Errorf("load store config %s:\n%w", path, err)
	}

	return cfg, nil
}

// seedSize is the oracle signing seed size in bytes.
const seedSize = 32

// LoadOrGenerateKey loads the oracle signing key from the seed file, or
// generates and saves a fresh seed when the file does not exist.
func LoadOrGenerateKey(path string) (*oracle.KeyPair, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return generateAndSaveKey(path)
	}

	if err != nil {
		return nil, fmt.Errorf("read seed file:\n%w", err)
	}

	if len(data) != seedSize {
		return nil, fmt.Errorf("invalid seed size: got %d, want %d", len(data), seedSize)
	}

	return oracle.GenerateKeyFromSeed(data)
}

// generateAndSaveKey creates a new seed and saves it to the given path.
func generateAndSaveKey(path string) (*oracle.KeyPair, error) {
	seed := make([]byte, seedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("generate seed:\n%w", err)
	}

	if err := os.WriteFile(path, seed, 0600); err != nil {
		return nil, fmt.Errorf("save seed to %s:\n%w", path, err)
	}

	return oracle.GenerateKeyFromSeed(seed)
}
