// Package auth implements nonce-challenged wallet sign-in for administrators.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/classchain/classchain/internal/entity"
	"github.com/classchain/classchain/internal/lib/session"
	"github.com/classchain/classchain/internal/lib/sigverify"
	"github.com/classchain/classchain/internal/nonce"
	"github.com/classchain/classchain/internal/storage"
)

// signInPrompt is the fixed message an admin wallet signs; the nonce makes
// each challenge unique.
const signInPrompt = "Sign in to classchain with your wallet.\nNonce: %s"

var (
	ErrInvalidNonce     = errors.New("invalid or expired nonce")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrUnauthorized     = errors.New("unauthorized")
)

type AdminProvider interface {
	AdminByWallet(ctx context.Context, address string) (entity.Admin, error)
}

type Auth struct {
	log        *slog.Logger
	admins     AdminProvider
	nonces     *nonce.Store
	sessions   *session.Codec
	sessionTTL time.Duration
}

func New(log *slog.Logger, admins AdminProvider, nonces *nonce.Store, sessions *session.Codec, sessionTTL time.Duration) *Auth {
	return &Auth{
		log:        log,
		admins:     admins,
		nonces:     nonces,
		sessions:   sessions,
		sessionTTL: sessionTTL,
	}
}

// Challenge issues a fresh nonce for the address and returns the message the
// wallet must sign.
func (a *Auth) Challenge(ctx context.Context, address string) (string, error) {
	const op = "auth.Challenge"

	token, err := a.nonces.Issue(ctx, nonce.SignInKey(address))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return fmt.Sprintf(signInPrompt, token), nil
}

// SignIn redeems the nonce (single use), verifies the signature over the
// challenge message, checks the admin allow-list and returns a signed admin
// session token.
func (a *Auth) SignIn(ctx context.Context, address, nonceToken, signature string) (string, entity.Admin, error) {
	const op = "auth.SignIn"

	log := a.log.With(slog.String("op", op), slog.String("address", address))

	ok, err := a.nonces.Redeem(ctx, nonce.SignInKey(address), nonceToken)
	if err != nil {
		return "", entity.Admin{}, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		log.Warn("nonce mismatch or expired")
		return "", entity.Admin{}, fmt.Errorf("%s: %w", op, ErrInvalidNonce)
	}

	message := fmt.Sprintf(signInPrompt, nonceToken)
	valid, err := sigverify.Verify(message, signature, address)
	if err != nil || !valid {
		log.Warn("signature verification failed")
		return "", entity.Admin{}, fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}

	admin, err := a.admins.AdminByWallet(ctx, address)
	if err != nil {
		if errors.Is(err, storage.ErrAdminNotFound) {
			log.Warn("address not on admin allow-list")
			return "", entity.Admin{}, fmt.Errorf("%s: %w", op, ErrUnauthorized)
		}
		return "", entity.Admin{}, fmt.Errorf("%s: %w", op, err)
	}

	token, err := a.sessions.Issue(session.Session{
		WalletAddress: admin.WalletAddress,
		SubjectID:     admin.ID,
		Role:          admin.Role,
		Scope:         session.ScopeAdmin,
	}, a.sessionTTL)
	if err != nil {
		return "", entity.Admin{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("admin signed in")

	return token, admin, nil
}
