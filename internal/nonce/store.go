// Package nonce issues and checks the random tokens that gate sign-in
// challenges and time-limited attendance/poll links.
package nonce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("nonce not found or expired")

// KV is the narrow key-value contract the store needs. Redis satisfies it via
// the adapter in redis.go; tests use an in-memory fake.
type KV interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	GetDel(ctx context.Context, key string) (string, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
}

type Store struct {
	kv  KV
	ttl time.Duration
}

func NewStore(kv KV, ttl time.Duration) *Store {
	return &Store{kv: kv, ttl: ttl}
}

func SignInKey(address string) string {
	return fmt.Sprintf("nonce:%s", address)
}

func AttendanceKey(roomID int64) string {
	return fmt.Sprintf("attendance:%d:nonce", roomID)
}

func PollKey(pollID int64) string {
	return fmt.Sprintf("poll:%d:nonce", pollID)
}

// Issue stores a fresh random token under key and returns it. A previous
// token for the same key is overwritten.
func (s *Store) Issue(ctx context.Context, key string) (string, error) {
	const op = "nonce.Issue"

	token := uuid.NewString()
	if err := s.kv.Set(ctx, key, token, s.ttl); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}

// Validate reports whether candidate matches the stored token. The token
// stays valid until its TTL runs out, so a link can be scanned by many
// clients.
func (s *Store) Validate(ctx context.Context, key, candidate string) (bool, error) {
	const op = "nonce.Validate"

	stored, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return stored == candidate, nil
}

// Redeem validates and deletes in one step. Used for sign-in challenges,
// which are single-use.
func (s *Store) Redeem(ctx context.Context, key, candidate string) (bool, error) {
	const op = "nonce.Redeem"

	stored, err := s.kv.GetDel(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return stored == candidate, nil
}

// RemainingTTL returns how long the token under key stays valid, for
// computing the absolute expiry shown next to a QR code.
func (s *Store) RemainingTTL(ctx context.Context, key string) (time.Duration, error) {
	const op = "nonce.RemainingTTL"

	ttl, err := s.kv.TTL(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return ttl, nil
}
