// Package auth verifies the bearer credentials accepted by the manual
// trigger endpoint.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"pantrynotify/internal/types"
)

// bcryptCost is used by HashAdminKey when provisioning ADMIN_API_KEY_HASH.
const bcryptCost = 12

// PasswordHasher abstracts bcrypt so tests can stub the slow comparison.
type PasswordHasher interface {
	CompareHashAndPassword(hashedPassword, password string) error
}

type bcryptHasher struct{}

func (bcryptHasher) CompareHashAndPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// HashAdminKey produces the value to store in ADMIN_API_KEY_HASH.
func HashAdminKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// AdminKeyVerifierConfig holds the accepted credentials. Either may be empty;
// an empty credential never matches.
type AdminKeyVerifierConfig struct {
	ServiceRoleKey  types.SecretString
	AdminAPIKeyHash types.SecretString
	Hasher          PasswordHasher
	Logger          *slog.Logger
}

// AdminKeyVerifier resolves a bearer token to an Actor. The service role key
// is what scheduled callers present; the bcrypt-hashed admin key is for
// operators.
type AdminKeyVerifier struct {
	serviceRoleKey []byte
	adminKeyHash   string
	hasher         PasswordHasher
	logger         *slog.Logger
}

// NewAdminKeyVerifier builds a verifier from cfg.
func NewAdminKeyVerifier(cfg AdminKeyVerifierConfig) *AdminKeyVerifier {
	if cfg.Hasher == nil {
		cfg.Hasher = bcryptHasher{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &AdminKeyVerifier{
		serviceRoleKey: []byte(cfg.ServiceRoleKey.Unmask()),
		adminKeyHash:   cfg.AdminAPIKeyHash.Unmask(),
		hasher:         cfg.Hasher,
		logger:         cfg.Logger,
	}
}

// ResolveToken returns the actor for token or auth_token_invalid.
func (v *AdminKeyVerifier) ResolveToken(ctx context.Context, token string) (*types.Actor, error) {
	if token == "" {
		return nil, types.NewAppError(types.ErrCodeAuthTokenMissing, "bearer token is required", nil)
	}

	if len(v.serviceRoleKey) > 0 && subtle.ConstantTimeCompare([]byte(token), v.serviceRoleKey) == 1 {
		return &types.Actor{ID: "service", Type: types.ActorServiceRole}, nil
	}

	if v.adminKeyHash != "" {
		err := v.hasher.CompareHashAndPassword(v.adminKeyHash, token)
		if err == nil {
			return &types.Actor{ID: "operator", Type: types.ActorAdminKey}, nil
		}
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			v.logger.WarnContext(ctx, "admin key hash comparison failed", "error", err)
		}
	}

	return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid authentication token", nil)
}
