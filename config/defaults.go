package config

import "time"

// DefaultMainnet returns the default configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network:  Mainnet,
		DataDir:  DefaultDataDir(),
		WalletID: "default",
		API: APIConfig{
			Endpoint: Mainnet.Endpoint(),
			Timeout:  30 * time.Second,
		},
		Storage: StorageConfig{
			Backend: BackendBadger,
		},
		Sync: SyncConfig{
			PollInterval:  time.Second,
			PollRetries:   5,
			ProbeInterval: 30 * time.Second,
		},
		RPC: RPCConfig{
			Addr:       "127.0.0.1",
			Port:       Mainnet.RPCPort(),
			AllowedIPs: []string{"127.0.0.1", "::1"},
		},
		Log: LogConfig{
			Level: "warn",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.API.Endpoint = Testnet.Endpoint()
	cfg.RPC.Port = Testnet.RPCPort()
	return cfg
}

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	default:
		return DefaultMainnet()
	}
}
