package nonce_test

import (
	"context"
	"testing"
	"time"

	"github.com/classchain/classchain/internal/nonce"
	"github.com/classchain/classchain/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_IssueValidate(t *testing.T) {
	ctx := context.Background()
	store := nonce.NewStore(testutil.NewFakeKV(), 5*time.Minute)

	key := nonce.AttendanceKey(1)
	token, err := store.Issue(ctx, key)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	ok, err := store.Validate(ctx, key, token)
	require.NoError(t, err)
	assert.True(t, ok)

	// A link nonce stays valid after a check, many clients share it.
	ok, err = store.Validate(ctx, key, token)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_Validate_WrongToken(t *testing.T) {
	ctx := context.Background()
	store := nonce.NewStore(testutil.NewFakeKV(), 5*time.Minute)

	key := nonce.PollKey(3)
	_, err := store.Issue(ctx, key)
	require.NoError(t, err)

	ok, err := store.Validate(ctx, key, "not-the-token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Validate_Expired(t *testing.T) {
	ctx := context.Background()
	kv := testutil.NewFakeKV()
	store := nonce.NewStore(kv, 5*time.Minute)

	key := nonce.AttendanceKey(2)
	token, err := store.Issue(ctx, key)
	require.NoError(t, err)

	kv.Expire(key)

	ok, err := store.Validate(ctx, key, token)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Issue_Overwrites(t *testing.T) {
	ctx := context.Background()
	store := nonce.NewStore(testutil.NewFakeKV(), 5*time.Minute)

	key := nonce.AttendanceKey(4)
	old, err := store.Issue(ctx, key)
	require.NoError(t, err)
	fresh, err := store.Issue(ctx, key)
	require.NoError(t, err)
	require.NotEqual(t, old, fresh)

	ok, err := store.Validate(ctx, key, old)
	require.NoError(t, err)
	assert.False(t, ok, "regenerating a link must invalidate the old one")

	ok, err = store.Validate(ctx, key, fresh)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_Redeem_SingleUse(t *testing.T) {
	ctx := context.Background()
	store := nonce.NewStore(testutil.NewFakeKV(), 5*time.Minute)

	key := nonce.SignInKey("0xabc")
	token, err := store.Issue(ctx, key)
	require.NoError(t, err)

	ok, err := store.Redeem(ctx, key, token)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Redeem(ctx, key, token)
	require.NoError(t, err)
	assert.False(t, ok, "a sign-in nonce must not be redeemable twice")
}

func TestStore_Redeem_WrongTokenConsumes(t *testing.T) {
	ctx := context.Background()
	store := nonce.NewStore(testutil.NewFakeKV(), 5*time.Minute)

	key := nonce.SignInKey("0xabc")
	token, err := store.Issue(ctx, key)
	require.NoError(t, err)

	ok, err := store.Redeem(ctx, key, "guess")
	require.NoError(t, err)
	assert.False(t, ok)

	// A failed redeem burns the nonce, the caller must request a new
	// challenge.
	ok, err = store.Redeem(ctx, key, token)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_RemainingTTL(t *testing.T) {
	ctx := context.Background()
	store := nonce.NewStore(testutil.NewFakeKV(), 10*time.Minute)

	key := nonce.AttendanceKey(5)
	_, err := store.Issue(ctx, key)
	require.NoError(t, err)

	ttl, err := store.RemainingTTL(ctx, key)
	require.NoError(t, err)
	assert.Greater(t, ttl, 9*time.Minute)
	assert.LessOrEqual(t, ttl, 10*time.Minute)
}
