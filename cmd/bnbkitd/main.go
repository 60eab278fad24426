// Binance Chain kit daemon.
//
// Usage:
//
//	bnbkitd [--testnet --wallet=...]  Unlock a wallet, keep it synced and serve JSON-RPC
//	bnbkitd --help                    Show help
//
// The wallet password is read from the file named by BNBKIT_PASSWORD_FILE
// when set, otherwise it is prompted for on the terminal.
package main

import (
	"bytes"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/Klingon-tech/bnbchain-kit/config"
	"github.com/Klingon-tech/bnbchain-kit/internal/log"
	"github.com/Klingon-tech/bnbchain-kit/internal/rpc"
	"github.com/Klingon-tech/bnbchain-kit/internal/wallet"
	"github.com/Klingon-tech/bnbchain-kit/pkg/kit"
)

const passwordFileEnv = "BNBKIT_PASSWORD_FILE"

func main() {
	flags, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if flags.Help {
		fmt.Fprintln(os.Stderr, "Usage: bnbkitd [global flags]\n\nAccepts the bnbkit global flags plus --rpc-addr, --rpc-port, --rpc-allowed and --rpc-cors.")
		return
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := log.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fmt.Fprintf(os.Stderr, "Error: init logging: %v\n", err)
		os.Exit(1)
	}
	logger := log.WithComponent("daemon")

	k, err := unlock(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	events := k.Subscribe()
	k.Start()

	srv := rpc.New(cfg.RPC.ListenAddr(), k, cfg.RPC)
	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		k.Stop()
		os.Exit(1)
	}
	logger.Info().
		Str("address", k.Address()).
		Str("network", string(cfg.Network)).
		Str("rpc", srv.Addr()).
		Msg("Daemon started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for running := true; running; {
		select {
		case <-sigCh:
			running = false
		case e, ok := <-events:
			if ok {
				logEvent(e)
			} else {
				running = false
			}
		}
	}

	logger.Info().Msg("Shutting down")
	if err := srv.Stop(); err != nil {
		logger.Warn().Err(err).Msg("RPC shutdown")
	}
	k.Stop()
}

// unlock opens the configured wallet and creates its kit.
func unlock(cfg *config.Config) (*kit.Kit, error) {
	ks, err := wallet.NewKeystore(cfg.KeystoreDir())
	if err != nil {
		return nil, fmt.Errorf("open keystore: %w", err)
	}
	e, err := ks.Info(cfg.WalletID)
	if err != nil {
		return nil, fmt.Errorf("wallet %q: %w", cfg.WalletID, err)
	}
	if e.Network != string(cfg.Network) {
		return nil, fmt.Errorf("wallet %q belongs to %s, not %s", cfg.WalletID, e.Network, cfg.Network)
	}

	password, err := readPassword()
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	defer clear(password)

	seed, _, err := ks.Load(cfg.WalletID, password)
	if err != nil {
		return nil, fmt.Errorf("unlock wallet: %w", err)
	}
	defer clear(seed)

	return kit.New(seed, cfg)
}

func readPassword() ([]byte, error) {
	if path := os.Getenv(passwordFileEnv); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return bytes.TrimRight(data, "\r\n"), nil
	}
	fmt.Fprint(os.Stderr, "Enter password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	return password, err
}

func logEvent(e kit.Event) {
	l := log.Kit
	switch ev := e.(type) {
	case kit.SyncStateChanged:
		l.Info().Str("state", ev.State.String()).Msg("Sync state")
	case kit.LastBlockHeightChanged:
		l.Debug().Int64("height", ev.Height).Msg("Block height")
	case kit.BalancesChanged:
		l.Info().Int("assets", len(ev.Balances)).Msg("Balances updated")
	case kit.TransactionsSynced:
		l.Info().Str("symbol", ev.Symbol).Int("count", len(ev.Transactions)).Msg("Transactions synced")
	}
}
