// bnbkit is a command-line wallet for Binance Chain built on the kit.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/term"

	"github.com/Klingon-tech/bnbchain-kit/config"
	"github.com/Klingon-tech/bnbchain-kit/internal/log"
	"github.com/Klingon-tech/bnbchain-kit/internal/rpcclient"
	"github.com/Klingon-tech/bnbchain-kit/internal/wallet"
	"github.com/Klingon-tech/bnbchain-kit/pkg/kit"
	"github.com/Klingon-tech/bnbchain-kit/pkg/types"
)

const version = "0.1.0"

func main() {
	flags, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		usage()
		os.Exit(1)
	}
	if flags.Help {
		usage()
		return
	}
	if flags.Version {
		fmt.Printf("bnbkit version %s\n", version)
		return
	}
	if len(flags.Args) == 0 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fatal("%v", err)
	}
	if err := log.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fatal("init logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := flags.Args[0]
	args := flags.Args[1:]

	switch cmd {
	case "new":
		cmdNew(cfg, args)
	case "import":
		cmdImport(cfg, args)
	case "wallets":
		cmdWallets(cfg)
	case "address":
		cmdAddress(cfg, args)
	case "validate":
		cmdValidate(cfg, args)
	case "balance":
		cmdBalance(ctx, cfg)
	case "sync", "status":
		cmdStatus(ctx, cfg)
	case "history":
		cmdHistory(ctx, cfg, args)
	case "send":
		cmdSend(ctx, cfg, args)
	case "move-to-bsc":
		cmdMoveToBSC(ctx, cfg, args)
	case "clear":
		cmdClear(cfg, args)
	case "watch":
		cmdWatch(ctx, cfg)
	case "call":
		cmdCall(ctx, cfg, args)
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: bnbkit [global flags] <command> [flags]

Global flags:
  --network <net>     mainnet (default) or testnet
  --testnet           Shorthand for --network=testnet
  --datadir <path>    Data directory (default: ~/.bnbkit)
  --config, -c <file> Config file (default: <datadir>/bnbkit.conf)
  --wallet <id>       Wallet id (default: default)
  --api <url>         DEX API endpoint
  --api-timeout <d>   DEX API request timeout
  --storage <name>    Storage backend: badger, sqlite or memory
  --log-level <lvl>   trace, debug, info, warn, error, disabled
  --log-file <path>   Also write JSON logs to a file
  --log-json          Output logs as JSON
  --rpc-addr <host>   bnbkitd RPC address (default: 127.0.0.1)
  --rpc-port <port>   bnbkitd RPC port (mainnet: 8575, testnet: 8576)

Commands:
  new                             Create a wallet with a fresh mnemonic
  import [--mnemonic "..."]       Import a wallet from a mnemonic
  wallets                         List wallets in the keystore
  address [--linked]              Show the wallet address
  validate <address>              Check an address for the network
  balance                         Sync and show balances
  sync | status                   Sync and show sync status
  history [--symbol S] [--filter all|in|out] [--limit N] [--from HASH]
                                  Sync and list transactions, newest first
  send --to <addr> --amount <n> [--symbol BNB] [--memo m] [--wait]
                                  Transfer tokens
  move-to-bsc --amount <n> [--symbol BNB] [--wait]
                                  Transfer tokens to the wallet's side chain account
  watch                           Keep syncing and print events until interrupted
  clear [--keep a,b]              Delete local stores except those matching --keep
  call <method> [json-params]     Call a running bnbkitd over JSON-RPC
                                  (uses --rpc-addr/--rpc-port to locate it)
`)
}

// ── Wallet management ───────────────────────────────────────────────────

func cmdNew(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("new", flag.ExitOnError)
	fs.Parse(args)

	mnemonic, err := wallet.GenerateMnemonic()
	if err != nil {
		fatal("generate mnemonic: %v", err)
	}

	fmt.Println("Mnemonic (write this down!):")
	fmt.Printf("  %s\n\n", mnemonic)

	storeWallet(cfg, mnemonic)
}

func cmdImport(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	mnemonic := fs.String("mnemonic", "", "BIP-39 mnemonic (prompted when omitted)")
	fs.Parse(args)

	m := *mnemonic
	if m == "" {
		b, err := readPassword("Enter mnemonic: ")
		if err != nil {
			fatal("read mnemonic: %v", err)
		}
		m = string(b)
	}
	m = wallet.NormalizeMnemonic(m)
	if err := wallet.ValidateMnemonic(m); err != nil {
		fatal("%v", err)
	}
	storeWallet(cfg, m)
}

func storeWallet(cfg *config.Config, mnemonic string) {
	ks := openKeystore(cfg)
	if ks.Exists(cfg.WalletID) {
		fatal("wallet %q already exists", cfg.WalletID)
	}

	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	if string(password) != string(confirm) {
		fatal("passwords do not match")
	}

	seed, err := wallet.SeedFromMnemonic(mnemonic, "")
	if err != nil {
		fatal("derive seed: %v", err)
	}
	defer clear(seed)

	w, err := wallet.New(seed, types.NewCodec(cfg.Network.HRP()))
	if err != nil {
		fatal("derive wallet: %v", err)
	}
	defer w.Zero()

	if err := ks.Create(cfg.WalletID, string(cfg.Network), w.Address(), seed, password, wallet.DefaultKDFParams()); err != nil {
		fatal("create wallet: %v", err)
	}

	fmt.Printf("\nWallet created: %s\n", cfg.WalletID)
	fmt.Printf("Address: %s\n", w.Address())
}

func cmdWallets(cfg *config.Config) {
	ks := openKeystore(cfg)
	ids, err := ks.List()
	if err != nil {
		fatal("list wallets: %v", err)
	}
	if len(ids) == 0 {
		fmt.Println("No wallets found.")
		return
	}
	for _, id := range ids {
		e, err := ks.Info(id)
		if err != nil {
			fmt.Printf("  %-16s (unreadable: %v)\n", id, err)
			continue
		}
		fmt.Printf("  %-16s %-8s %s\n", id, e.Network, e.Address)
	}
}

func cmdAddress(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("address", flag.ExitOnError)
	linked := fs.Bool("linked", false, "Also show the side chain address (needs the password)")
	fs.Parse(args)

	if !*linked {
		e, err := openKeystore(cfg).Info(cfg.WalletID)
		if err != nil {
			fatal("wallet %q: %v", cfg.WalletID, err)
		}
		fmt.Println(e.Address)
		return
	}

	k := openKit(cfg)
	defer k.Stop()
	addr, err := k.LinkedAddress()
	if err != nil {
		fatal("linked address: %v", err)
	}
	fmt.Printf("Address: %s\n", k.Address())
	fmt.Printf("Linked:  %s\n", addr)
}

func cmdValidate(cfg *config.Config, args []string) {
	if len(args) != 1 {
		fatal("Usage: bnbkit validate <address>")
	}
	if err := types.ValidateAddress(cfg.Network.HRP(), args[0]); err != nil {
		fatal("invalid address: %v", err)
	}
	fmt.Println("valid")
}

func cmdClear(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	keep := fs.String("keep", "", "Comma-separated name fragments of stores to keep")
	fs.Parse(args)

	var except []string
	for _, s := range strings.Split(*keep, ",") {
		if s = strings.TrimSpace(s); s != "" {
			except = append(except, s)
		}
	}
	if err := kit.Clear(cfg.StoresDir(), except); err != nil {
		fatal("clear: %v", err)
	}
	fmt.Println("Local stores cleared.")
}

// ── Sync ────────────────────────────────────────────────────────────────

func cmdBalance(ctx context.Context, cfg *config.Config) {
	k := openKit(cfg)
	defer k.Stop()
	syncKit(ctx, k)

	balances, err := k.Balances()
	if err != nil {
		fatal("read balances: %v", err)
	}
	if len(balances) == 0 {
		fmt.Println("No balances.")
		return
	}
	fmt.Printf("%-16s %20s %20s %20s\n", "SYMBOL", "FREE", "LOCKED", "FROZEN")
	for _, b := range balances {
		fmt.Printf("%-16s %20s %20s %20s\n", b.Symbol, b.Free.StringFixed(8), b.Locked.StringFixed(8), b.Frozen.StringFixed(8))
	}
}

func cmdStatus(ctx context.Context, cfg *config.Config) {
	k := openKit(cfg)
	defer k.Stop()
	syncKit(ctx, k)

	info := k.StatusInfo()
	fmt.Printf("Address:         %s\n", k.Address())
	fmt.Printf("API host:        %s\n", info.APIHost)
	fmt.Printf("Sync state:      %s\n", info.SyncState)
	fmt.Printf("Last block:      %d\n", info.LastBlockHeight)
	fmt.Printf("Synced until:    %s\n", formatTime(info.SyncedUntil))
	fmt.Printf("History until:   %s\n", formatTime(info.HistorySyncedUntil))
}

func cmdHistory(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	symbol := fs.String("symbol", "", "Asset symbol (all when empty)")
	filter := fs.String("filter", "all", "all, in or out")
	limit := fs.Int("limit", 20, "Maximum records (0 for all)")
	from := fs.String("from", "", "Only records older than this hash")
	fs.Parse(args)

	var dir kit.Direction
	switch *filter {
	case "all":
		dir = kit.All
	case "in":
		dir = kit.Incoming
	case "out":
		dir = kit.Outgoing
	default:
		fatal("filter must be all, in or out")
	}

	k := openKit(cfg)
	defer k.Stop()
	syncKit(ctx, k)

	txs, err := k.Transactions(*symbol, dir, *from, *limit)
	if err != nil {
		fatal("read history: %v", err)
	}
	if len(txs) == 0 {
		fmt.Println("No transactions.")
		return
	}
	for _, t := range txs {
		direction := "in "
		if t.From == k.Address() {
			direction = "out"
		}
		fmt.Printf("%s  %s  %s %s %s  %s\n",
			t.Date.Format(time.RFC3339), direction, t.Amount.String(), t.Symbol, t.Hash, t.Memo)
	}
}

// ── Sending ─────────────────────────────────────────────────────────────

func cmdSend(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	to := fs.String("to", "", "Recipient address")
	amountStr := fs.String("amount", "", "Amount to send (e.g. 1.5)")
	symbol := fs.String("symbol", kit.NativeSymbol, "Asset symbol")
	memo := fs.String("memo", "", "Memo")
	wait := fs.Bool("wait", false, "Wait for block inclusion")
	fs.Parse(args)

	if *to == "" || *amountStr == "" {
		fatal("Usage: bnbkit send --to <addr> --amount <amt> [--symbol S] [--memo m]")
	}
	amount := parseAmount(*amountStr)
	if err := types.ValidateAddress(cfg.Network.HRP(), *to); err != nil {
		fatal("invalid recipient address: %v", err)
	}

	k := openKit(cfg)
	defer k.Stop()

	hash, err := k.Send(ctx, *symbol, *to, amount, *memo)
	if err != nil {
		fatal("send: %v", err)
	}
	fmt.Printf("Submitted: %s\n", hash)
	if *wait {
		waitInclusion(ctx, k, hash)
	}
}

func cmdMoveToBSC(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("move-to-bsc", flag.ExitOnError)
	amountStr := fs.String("amount", "", "Amount to move (e.g. 1.5)")
	symbol := fs.String("symbol", kit.NativeSymbol, "Asset symbol")
	wait := fs.Bool("wait", false, "Wait for block inclusion")
	fs.Parse(args)

	if *amountStr == "" {
		fatal("Usage: bnbkit move-to-bsc --amount <amt> [--symbol S]")
	}
	amount := parseAmount(*amountStr)

	k := openKit(cfg)
	defer k.Stop()

	linked, err := k.LinkedAddress()
	if err != nil {
		fatal("linked address: %v", err)
	}
	hash, err := k.MoveToBSC(ctx, *symbol, amount)
	if err != nil {
		fatal("move to bsc: %v", err)
	}
	fmt.Printf("Submitted: %s (to %s)\n", hash, linked)
	if *wait {
		waitInclusion(ctx, k, hash)
	}
}

func waitInclusion(ctx context.Context, k *kit.Kit, hash string) {
	height, err := k.WaitForInclusion(ctx, hash)
	if err != nil {
		fatal("wait: %v", err)
	}
	fmt.Printf("Included at height %d\n", height)
}

// ── Watch ───────────────────────────────────────────────────────────────

func cmdWatch(ctx context.Context, cfg *config.Config) {
	k := openKit(cfg)
	defer k.Stop()

	events := k.Subscribe()
	k.Start()

	ticker := time.NewTicker(cfg.Sync.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			k.Refresh()
		case e, ok := <-events:
			if !ok {
				return
			}
			printEvent(e)
		}
	}
}

func printEvent(e kit.Event) {
	switch ev := e.(type) {
	case kit.SyncStateChanged:
		fmt.Printf("state: %s\n", ev.State)
	case kit.LastBlockHeightChanged:
		fmt.Printf("block: %d\n", ev.Height)
	case kit.BalancesChanged:
		for _, b := range ev.Balances {
			fmt.Printf("balance: %s %s\n", b.Symbol, b.Free.String())
		}
	case kit.TransactionsSynced:
		fmt.Printf("history: %d new %s transactions\n", len(ev.Transactions), ev.Symbol)
	}
}

// ── Daemon RPC ──────────────────────────────────────────────────────────

func cmdCall(ctx context.Context, cfg *config.Config, args []string) {
	if len(args) == 0 || len(args) > 2 {
		fatal("Usage: bnbkit call <method> [json-params]")
	}
	var params interface{}
	if len(args) == 2 {
		if err := json.Unmarshal([]byte(args[1]), &params); err != nil {
			fatal("invalid params: %v", err)
		}
	}

	client := rpcclient.NewWithTimeout(cfg.RPC.URL(), 2*time.Minute)
	var result json.RawMessage
	if err := client.Call(ctx, args[0], params, &result); err != nil {
		fatal("%v", err)
	}

	var out bytes.Buffer
	if err := json.Indent(&out, result, "", "  "); err != nil {
		fmt.Println(string(result))
		return
	}
	fmt.Println(out.String())
}

// ── Helpers ─────────────────────────────────────────────────────────────

func openKeystore(cfg *config.Config) *wallet.Keystore {
	ks, err := wallet.NewKeystore(cfg.KeystoreDir())
	if err != nil {
		fatal("open keystore: %v", err)
	}
	return ks
}

// openKit unlocks the configured wallet and creates a kit for it.
func openKit(cfg *config.Config) *kit.Kit {
	ks := openKeystore(cfg)
	e, err := ks.Info(cfg.WalletID)
	if err != nil {
		fatal("wallet %q: %v", cfg.WalletID, err)
	}
	if e.Network != string(cfg.Network) {
		fatal("wallet %q belongs to %s, not %s", cfg.WalletID, e.Network, cfg.Network)
	}

	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	seed, _, err := ks.Load(cfg.WalletID, password)
	if err != nil {
		fatal("unlock wallet: %v", err)
	}
	defer clear(seed)

	k, err := kit.New(seed, cfg)
	if err != nil {
		fatal("%v", err)
	}
	return k
}

func syncKit(ctx context.Context, k *kit.Kit) {
	if err := k.Sync(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: sync failed, showing stored data: %v\n", err)
	}
}

func parseAmount(s string) decimal.Decimal {
	amount, err := types.ParseAmount(s)
	if err != nil {
		fatal("invalid amount: %v", err)
	}
	return amount
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Format(time.RFC3339)
}

// ── Password helper ─────────────────────────────────────────────────────

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

// ── Error helper ────────────────────────────────────────────────────────

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
