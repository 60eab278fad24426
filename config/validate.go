package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"

	"github.com/Klingon-tech/bnbchain-kit/internal/log"
)

var walletIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Validate checks the config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if !walletIDPattern.MatchString(cfg.WalletID) {
		return fmt.Errorf("wallet must be 1-64 letters, digits, '-' or '_'")
	}

	u, err := url.Parse(cfg.API.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.endpoint must be an http(s) URL")
	}
	if cfg.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}

	switch cfg.Storage.Backend {
	case BackendBadger, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("storage.backend must be %s, %s or %s", BackendBadger, BackendSQLite, BackendMemory)
	}

	if cfg.Sync.PollInterval <= 0 {
		return fmt.Errorf("sync.pollinterval must be positive")
	}
	if cfg.Sync.PollRetries < 1 {
		return fmt.Errorf("sync.pollretries must be at least 1")
	}
	if cfg.Sync.ProbeInterval <= 0 {
		return fmt.Errorf("sync.probeinterval must be positive")
	}

	if cfg.RPC.Port < 0 || cfg.RPC.Port > 65535 {
		return fmt.Errorf("rpc.port must be in range [0, 65535]")
	}
	for _, entry := range cfg.RPC.AllowedIPs {
		if net.ParseIP(entry) == nil {
			if _, _, err := net.ParseCIDR(entry); err != nil {
				return fmt.Errorf("rpc.allowed: %q is not an IP or CIDR", entry)
			}
		}
	}

	if !log.ValidLevel(cfg.Log.Level) {
		return fmt.Errorf("log.level %q is not a known level", cfg.Log.Level)
	}
	return nil
}
