package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/joho/godotenv"
)

// Config holds all configurable parameters for the wallet core.
type Config struct {
	// Bitcoin network: mainnet, testnet3, regtest or signet
	Network string

	// Wallet kind selected at construction (see wallet.KindByName)
	WalletKind string

	// Mnemonic or extended public key. Never logged.
	WalletSecret string

	// Previous-transaction fetch
	TxFetchBatchSize   int
	TxFetchConcurrency int
	TxFetchTimeout     time.Duration

	// Sequence used for PSBT inputs when the caller has no preference.
	// Defaults to MaxTxInSequenceNum-2, which signals RBF.
	DefaultSequence uint32

	// btcd/bitcoind JSON-RPC endpoint for getrawtransaction
	RPCHost string
	RPCUser string
	RPCPass string
}

// Default returns a Config populated with default values.
func Default() Config {
	return Config{
		Network:    "mainnet",
		WalletKind: "segwit",

		TxFetchBatchSize:   100,
		TxFetchConcurrency: 8,
		TxFetchTimeout:     30 * time.Second,

		DefaultSequence: wire.MaxTxInSequenceNum - 2,

		RPCHost: "localhost:8332",
	}
}

// FromEnv returns a Config populated from environment variables,
// falling back to defaults for unset values.
func FromEnv() Config {
	cfg := Default()

	if v := os.Getenv("BTC_NETWORK"); v != "" {
		cfg.Network = v
	}
	if v := os.Getenv("WALLET_KIND"); v != "" {
		cfg.WalletKind = v
	}
	cfg.WalletSecret = os.Getenv("WALLET_SECRET")

	if v := os.Getenv("TX_FETCH_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TxFetchBatchSize = n
		}
	}
	if v := os.Getenv("TX_FETCH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TxFetchConcurrency = n
		}
	}
	if v := os.Getenv("TX_FETCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.TxFetchTimeout = d
		}
	}
	if v := os.Getenv("DEFAULT_SEQUENCE"); v != "" {
		if n, err := strconv.ParseUint(v, 0, 32); err == nil {
			cfg.DefaultSequence = uint32(n)
		}
	}
	if v := os.Getenv("BTC_RPC_HOST"); v != "" {
		cfg.RPCHost = v
	}
	if v := os.Getenv("BTC_RPC_USER"); v != "" {
		cfg.RPCUser = v
	}
	if v := os.Getenv("BTC_RPC_PASS"); v != "" {
		cfg.RPCPass = v
	}

	return cfg
}

// Load reads the given dotenv files into the process environment, without
// overriding variables that are already set, and then applies FromEnv.
// With no arguments ".env" is read. A missing file is not an error.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(), nil
}

// Params maps the configured network name to its chain parameters.
func (c Config) Params() (*chaincfg.Params, error) {
	switch c.Network {
	case "", "mainnet", "main":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network %q", c.Network)
	}
}
