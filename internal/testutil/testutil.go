// Package testutil provides shared helpers for service and library tests: a
// discard logger, an in-memory TTL key-value store and wallet signing
// helpers.
package testutil

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/classchain/classchain/internal/nonce"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeEntry struct {
	value     string
	expiresAt time.Time
}

// FakeKV is an in-memory stand-in for the redis-backed KV.
type FakeKV struct {
	mu      sync.Mutex
	entries map[string]fakeEntry
}

func NewFakeKV() *FakeKV {
	return &FakeKV{entries: make(map[string]fakeEntry)}
}

func (f *FakeKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = fakeEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (f *FakeKV) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		delete(f.entries, key)
		return "", nonce.ErrNotFound
	}
	return e.value, nil
}

func (f *FakeKV) GetDel(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[key]
	delete(f.entries, key)
	if !ok || time.Now().After(e.expiresAt) {
		return "", nonce.ErrNotFound
	}
	return e.value, nil
}

func (f *FakeKV) TTL(_ context.Context, key string) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return 0, nonce.ErrNotFound
	}
	return time.Until(e.expiresAt), nil
}

// Expire force-expires a key, simulating TTL passing.
func (f *FakeKV) Expire(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, key)
}

// NewWallet generates a throwaway secp256k1 key pair and returns it with its
// derived 0x address.
func NewWallet() (*secp256k1.PrivateKey, string) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		panic(err)
	}
	pub := priv.PubKey().SerializeUncompressed()
	hash := keccak256(pub[1:])
	return priv, "0x" + hex.EncodeToString(hash[12:])
}

// SignPersonal produces the r||s||v hex signature a wallet emits for
// personal_sign over message.
func SignPersonal(priv *secp256k1.PrivateKey, message string) string {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	compact := ecdsa.SignCompact(priv, keccak256([]byte(prefixed)), false)

	// SignCompact puts the recovery header first; wallets put it last.
	sig := make([]byte, 65)
	copy(sig, compact[1:])
	sig[64] = compact[0]
	return "0x" + hex.EncodeToString(sig)
}

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}
