package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFile loads configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct. The
// network key is applied first so that an explicit api.endpoint wins over
// the network default.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	if v, ok := values["network"]; ok {
		cfg.setNetwork(NetworkType(v))
	}
	for key, value := range values {
		if key == "network" {
			continue
		}
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setNetwork switches network and moves the endpoint and RPC port along
// unless they were customized.
func (c *Config) setNetwork(n NetworkType) {
	if c.API.Endpoint == "" || c.API.Endpoint == c.Network.Endpoint() {
		c.API.Endpoint = n.Endpoint()
	}
	if c.RPC.Port == 0 || c.RPC.Port == c.Network.RPCPort() {
		c.RPC.Port = n.RPCPort()
	}
	c.Network = n
}

func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	// Core
	case "datadir":
		cfg.DataDir = value
	case "wallet":
		cfg.WalletID = value

	// API
	case "api.endpoint":
		cfg.API.Endpoint = value
	case "api.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.API.Timeout = d

	// Storage
	case "storage.backend":
		cfg.Storage.Backend = strings.ToLower(value)

	// Sync
	case "sync.pollinterval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Sync.PollInterval = d
	case "sync.pollretries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Sync.PollRetries = n
	case "sync.probeinterval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Sync.ProbeInterval = d

	// RPC
	case "rpc.addr":
		cfg.RPC.Addr = value
	case "rpc.port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid port: %w", err)
		}
		cfg.RPC.Port = port
	case "rpc.allowed":
		cfg.RPC.AllowedIPs = parseStringList(value)
	case "rpc.cors":
		cfg.RPC.CORSOrigins = parseStringList(value)

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored
	}
	return nil
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// parseStringList splits a comma-separated list.
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// WriteDefaultConfig writes a default configuration file.
func WriteDefaultConfig(path string, network NetworkType) error {
	content := `# BNB Chain kit configuration

# Network: mainnet or testnet
network = ` + string(network) + `

# Data directory (default: ~/.bnbkit)
# datadir = ~/.bnbkit

# Wallet id; selects the keystore entry and the local store
wallet = default

# ============================================================================
# DEX API
# ============================================================================

# api.endpoint = ` + network.Endpoint() + `
api.timeout = 30s

# ============================================================================
# Storage
# ============================================================================

# badger, sqlite or memory
storage.backend = badger

# ============================================================================
# Sync
# ============================================================================

# Confirmation polling after a send
sync.pollinterval = 1s
sync.pollretries = 5

# API reachability probe period
sync.probeinterval = 30s

# ============================================================================
# Daemon JSON-RPC (bnbkitd)
# ============================================================================

rpc.addr = 127.0.0.1
rpc.port = ` + strconv.Itoa(network.RPCPort()) + `
rpc.allowed = 127.0.0.1, ::1
# Comma-separated CORS origins, "*" for any
# rpc.cors = http://localhost:3000

# ============================================================================
# Logging
# ============================================================================

log.level = warn
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
