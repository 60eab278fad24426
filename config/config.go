// Package config handles kit configuration.
//
// Settings come from three layers, lowest precedence first: per-network
// defaults, a key = value .conf file, and command-line flags.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/Klingon-tech/bnbchain-kit/internal/store"
	"github.com/Klingon-tech/bnbchain-kit/internal/wallet"
	"github.com/Klingon-tech/bnbchain-kit/pkg/types"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// HRP returns the address prefix of the network.
func (n NetworkType) HRP() string {
	if n == Testnet {
		return types.TestnetHRP
	}
	return types.MainnetHRP
}

// Endpoint returns the public DEX API of the network.
func (n NetworkType) Endpoint() string {
	if n == Testnet {
		return "https://testnet-dex.binance.org"
	}
	return "https://dex.binance.org"
}

// RPCPort returns the default local JSON-RPC port of the network.
func (n NetworkType) RPCPort() int {
	if n == Testnet {
		return 8576
	}
	return 8575
}

// LinkedPath returns the derivation path of the linked side chain account.
func (n NetworkType) LinkedPath() string {
	if n == Testnet {
		return wallet.LinkedTestnetPath
	}
	return wallet.LinkedMainnetPath
}

// Storage backends.
const (
	BackendBadger = store.BackendBadger
	BackendSQLite = store.BackendSQLite
	BackendMemory = store.BackendMemory
)

// Config holds the kit runtime configuration.
type Config struct {
	// Core
	Network  NetworkType `conf:"network"`
	DataDir  string      `conf:"datadir"`
	WalletID string      `conf:"wallet"`

	// DEX API
	API APIConfig

	// Local mirror
	Storage StorageConfig

	// Sync loops
	Sync SyncConfig

	// Daemon JSON-RPC
	RPC RPCConfig

	// Logging
	Log LogConfig
}

// APIConfig holds DEX API settings.
type APIConfig struct {
	Endpoint string        `conf:"api.endpoint"`
	Timeout  time.Duration `conf:"api.timeout"`
}

// StorageConfig selects the local store.
type StorageConfig struct {
	Backend string `conf:"storage.backend"` // badger, sqlite or memory
}

// SyncConfig tunes confirmation polling and reachability probing.
type SyncConfig struct {
	PollInterval  time.Duration `conf:"sync.pollinterval"`
	PollRetries   int           `conf:"sync.pollretries"`
	ProbeInterval time.Duration `conf:"sync.probeinterval"`
}

// RPCConfig holds the daemon JSON-RPC server settings.
type RPCConfig struct {
	Addr        string   `conf:"rpc.addr"`
	Port        int      `conf:"rpc.port"`
	AllowedIPs  []string `conf:"rpc.allowed"`
	CORSOrigins []string `conf:"rpc.cors"` // Allowed CORS origins ("*" = all).
}

// ListenAddr returns the host:port the server binds.
func (r RPCConfig) ListenAddr() string {
	return net.JoinHostPort(r.Addr, strconv.Itoa(r.Port))
}

// URL returns the endpoint clients post to.
func (r RPCConfig) URL() string {
	host := r.Addr
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(r.Port)) + "/"
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.bnbkit
//	macOS:   ~/Library/Application Support/BNBKit
//	Windows: %APPDATA%\BNBKit
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bnbkit"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "BNBKit")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "BNBKit")
		}
		return filepath.Join(home, "AppData", "Roaming", "BNBKit")
	default:
		return filepath.Join(home, ".bnbkit")
	}
}

// StoresDir returns the directory holding one store per wallet and network.
func (c *Config) StoresDir() string {
	return filepath.Join(c.DataDir, "stores")
}

// StoreName is the directory name of the store of this wallet.
func (c *Config) StoreName() string {
	return fmt.Sprintf("binance-chain-%s-%s", c.WalletID, c.Network)
}

// StoreDir returns the store directory of this wallet.
func (c *Config) StoreDir() string {
	return filepath.Join(c.StoresDir(), c.StoreName())
}

// KeystoreDir returns the keystore directory.
func (c *Config) KeystoreDir() string {
	return filepath.Join(c.DataDir, "keystore")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "bnbkit.conf")
}
