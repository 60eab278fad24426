package wallet

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func testKeystore(t *testing.T) *Keystore {
	t.Helper()
	ks, err := NewKeystore(filepath.Join(t.TempDir(), "keystore"))
	if err != nil {
		t.Fatalf("NewKeystore() error: %v", err)
	}
	return ks
}

func TestKeystore_CreateAndLoad(t *testing.T) {
	ks := testKeystore(t)
	seed := testSeed(t)
	pw := []byte("password")

	if err := ks.Create("main", "testnet", "tbnb1xyz", seed, pw, fastParams()); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	loaded, entry, err := ks.Load("main", pw)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !bytes.Equal(loaded, seed) {
		t.Error("loaded seed does not match original")
	}
	if entry.Address != "tbnb1xyz" || entry.Network != "testnet" || entry.ID != "main" {
		t.Errorf("entry = %+v", entry)
	}
}

func TestKeystore_CreateDuplicate(t *testing.T) {
	ks := testKeystore(t)
	seed := testSeed(t)
	if err := ks.Create("w", "mainnet", "bnb1a", seed, []byte("pw"), fastParams()); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := ks.Create("w", "mainnet", "bnb1a", seed, []byte("pw"), fastParams()); err == nil {
		t.Error("expected error for duplicate wallet")
	}
}

func TestKeystore_LoadWrongPassword(t *testing.T) {
	ks := testKeystore(t)
	_ = ks.Create("w", "mainnet", "bnb1a", testSeed(t), []byte("right"), fastParams())

	_, _, err := ks.Load("w", []byte("wrong"))
	if !errors.Is(err, ErrWrongPassword) {
		t.Errorf("Load() error = %v, want ErrWrongPassword", err)
	}
}

func TestKeystore_LoadNonexistent(t *testing.T) {
	ks := testKeystore(t)
	_, _, err := ks.Load("missing", []byte("pw"))
	if !errors.Is(err, ErrWalletNotFound) {
		t.Errorf("Load() error = %v, want ErrWalletNotFound", err)
	}
}

func TestKeystore_TamperedAddress(t *testing.T) {
	ks := testKeystore(t)
	_ = ks.Create("w", "mainnet", "bnb1original", testSeed(t), []byte("pw"), fastParams())

	path := ks.walletPath("w")
	data, _ := os.ReadFile(path)
	var kf keystoreFile
	if err := json.Unmarshal(data, &kf); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	kf.Address = "bnb1attacker"
	if err := ks.writeFile(path, &kf); err != nil {
		t.Fatalf("writeFile() error: %v", err)
	}

	if _, _, err := ks.Load("w", []byte("pw")); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("Load() after tampering error = %v, want ErrWrongPassword", err)
	}
}

func TestKeystore_InfoAndList(t *testing.T) {
	ks := testKeystore(t)
	seed := testSeed(t)
	for _, id := range []string{"beta", "alpha"} {
		if err := ks.Create(id, "mainnet", "bnb1"+id, seed, []byte("pw"), fastParams()); err != nil {
			t.Fatalf("Create(%s) error: %v", id, err)
		}
	}

	ids, err := ks.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "alpha" || ids[1] != "beta" {
		t.Errorf("List() = %v, want [alpha beta]", ids)
	}

	info, err := ks.Info("alpha")
	if err != nil {
		t.Fatalf("Info() error: %v", err)
	}
	if info.Address != "bnb1alpha" {
		t.Errorf("Info().Address = %q", info.Address)
	}
	if !ks.Exists("alpha") || ks.Exists("gamma") {
		t.Error("Exists() mismatch")
	}
}

func TestKeystore_Delete(t *testing.T) {
	ks := testKeystore(t)
	_ = ks.Create("w", "mainnet", "bnb1a", testSeed(t), []byte("pw"), fastParams())

	if err := ks.Delete("w"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if ks.Exists("w") {
		t.Error("wallet should be gone after Delete()")
	}
	if err := ks.Delete("w"); !errors.Is(err, ErrWalletNotFound) {
		t.Errorf("second Delete() error = %v, want ErrWalletNotFound", err)
	}
}

func TestKeystore_FilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not enforced on windows")
	}
	ks := testKeystore(t)
	_ = ks.Create("w", "mainnet", "bnb1a", testSeed(t), []byte("pw"), fastParams())

	info, err := os.Stat(ks.walletPath("w"))
	if err != nil {
		t.Fatalf("Stat() error: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permissions = %o, want 0600", perm)
	}
}
