package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const keystoreVersion = 1

// ErrWalletNotFound is returned when no vault exists for a wallet id.
var ErrWalletNotFound = errors.New("wallet not found")

// keystoreFile is the on-disk JSON format of an encrypted wallet.
type keystoreFile struct {
	Version       int       `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	Network       string    `json:"network"`
	Address       string    `json:"address"`
	EncryptedSeed []byte    `json:"encrypted_seed"`
}

// Entry is the public metadata of a stored wallet.
type Entry struct {
	ID        string
	Network   string
	Address   string
	CreatedAt time.Time
}

// Keystore stores one sealed seed per wallet id under a directory.
type Keystore struct {
	path string
}

// NewKeystore creates a keystore rooted at path, creating the directory if
// it does not exist.
func NewKeystore(path string) (*Keystore, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	return &Keystore{path: path}, nil
}

func (ks *Keystore) walletPath(id string) string {
	return filepath.Join(ks.path, id+".wallet")
}

// Create seals seed for the wallet at address. The address is bound to the
// ciphertext so the metadata cannot be swapped between files.
func (ks *Keystore) Create(id, network, address string, seed, password []byte, params KDFParams) error {
	path := ks.walletPath(id)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("wallet %q already exists", id)
	}

	sealed, err := Seal(seed, password, []byte(address), params)
	if err != nil {
		return fmt.Errorf("seal seed: %w", err)
	}

	return ks.writeFile(path, &keystoreFile{
		Version:       keystoreVersion,
		CreatedAt:     time.Now().UTC(),
		Network:       network,
		Address:       address,
		EncryptedSeed: sealed,
	})
}

// Load decrypts the wallet seed.
func (ks *Keystore) Load(id string, password []byte) ([]byte, Entry, error) {
	kf, err := ks.readFile(id)
	if err != nil {
		return nil, Entry{}, err
	}
	seed, err := Open(kf.EncryptedSeed, password, []byte(kf.Address))
	if err != nil {
		return nil, Entry{}, fmt.Errorf("open wallet %q: %w", id, err)
	}
	return seed, kf.entry(id), nil
}

// Info returns the wallet metadata without decrypting it.
func (ks *Keystore) Info(id string) (Entry, error) {
	kf, err := ks.readFile(id)
	if err != nil {
		return Entry{}, err
	}
	return kf.entry(id), nil
}

// Exists reports whether a vault exists for id.
func (ks *Keystore) Exists(id string) bool {
	_, err := os.Stat(ks.walletPath(id))
	return err == nil
}

// List returns the ids of all stored wallets, sorted.
func (ks *Keystore) List() ([]string, error) {
	entries, err := os.ReadDir(ks.path)
	if err != nil {
		return nil, fmt.Errorf("read keystore dir: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if ext := filepath.Ext(name); ext == ".wallet" {
			ids = append(ids, name[:len(name)-len(ext)])
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes a wallet vault.
func (ks *Keystore) Delete(id string) error {
	path := ks.walletPath(id)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("%w: %q", ErrWalletNotFound, id)
	}
	return os.Remove(path)
}

func (kf *keystoreFile) entry(id string) Entry {
	return Entry{ID: id, Network: kf.Network, Address: kf.Address, CreatedAt: kf.CreatedAt}
}

func (ks *Keystore) writeFile(path string, kf *keystoreFile) error {
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal wallet: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write wallet: %w", err)
	}
	return nil
}

func (ks *Keystore) readFile(id string) (*keystoreFile, error) {
	data, err := os.ReadFile(ks.walletPath(id))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %q", ErrWalletNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read wallet: %w", err)
	}
	var kf keystoreFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parse wallet: %w", err)
	}
	if kf.Version != keystoreVersion {
		return nil, fmt.Errorf("unsupported wallet version: %d", kf.Version)
	}
	return &kf, nil
}
