// derive_address.go prints the addresses derived from a mnemonic file.
// Usage: go run scripts/derive_address.go [--testnet] <mnemonicfile>
package main

import (
	"fmt"
	"os"

	"github.com/Klingon-tech/bnbchain-kit/internal/wallet"
	"github.com/Klingon-tech/bnbchain-kit/pkg/types"
)

func main() {
	args := os.Args[1:]
	hrp, linkedPath := types.MainnetHRP, wallet.LinkedMainnetPath
	if len(args) > 0 && args[0] == "--testnet" {
		hrp, linkedPath = types.TestnetHRP, wallet.LinkedTestnetPath
		args = args[1:]
	}
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: derive_address [--testnet] <mnemonicfile>")
		os.Exit(1)
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	w, err := wallet.FromMnemonic(wallet.NormalizeMnemonic(string(data)), "", types.NewCodec(hrp))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer w.Zero()

	linked, err := w.LinkedAddress(linkedPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("pubkey=%x\n", w.PublicKey())
	fmt.Printf("address=%s\n", w.Address())
	fmt.Printf("linked=%s\n", linked)
}
