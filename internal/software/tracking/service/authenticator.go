package service

import (
	"context"

	"haultrack/internal/general/jwt"
	"haultrack/internal/general/logger"
	"haultrack/internal/ports"
)

// tokenAuthenticator resolves handshake tokens against the JWT manager and
// the users table.
type tokenAuthenticator struct {
	logger *logger.Logger
	jwt    *jwt.Manager
	uow    ports.UnitOfWork
	users  ports.UserRepository
}

// NewTokenAuthenticator constructs the handshake authenticator.
func NewTokenAuthenticator(
	logger *logger.Logger,
	jwtManager *jwt.Manager,
	uow ports.UnitOfWork,
	users ports.UserRepository,
) ports.TokenAuthenticator {
	return &tokenAuthenticator{
		logger: logger,
		jwt:    jwtManager,
		uow:    uow,
		users:  users,
	}
}

// Resolve maps a raw token to an identity. Every failure mode collapses to
// nil (anonymous): missing token, bad signature, expired claims, unknown
// subject, or a user that is no longer ACTIVE. The gate only needs to know
// whether a real account stands behind the connection.
func (auth *tokenAuthenticator) Resolve(ctx context.Context, token string) *ports.Identity {
	if token == "" {
		return nil
	}

	_, claims, err := auth.jwt.ParseAndValidate(token)
	if err != nil {
		auth.logger.Debug(ctx, "token_rejected", "Handshake token failed validation", map[string]any{
			"reason": err.Error(),
		})
		return nil
	}

	var identity *ports.Identity
	err = auth.uow.WithinTx(ctx, func(ctx context.Context) error {
		u, err := auth.users.GetByID(ctx, claims.Subject)
		if err != nil {
			return err
		}
		if !u.IsActive() {
			auth.logger.Info(ctx, "token_rejected_inactive", "Token subject is not an active user", map[string]any{
				"user_id": u.ID,
				"status":  u.Status.String(),
			})
			return nil
		}
		identity = &ports.Identity{
			UserID: u.ID,
			Email:  u.Email,
			Role:   u.Role,
		}
		return nil
	})
	if err != nil {
		auth.logger.Error(ctx, "identity_lookup_failed", "Failed to resolve token subject", err, map[string]any{
			"user_id": claims.Subject,
		})
		return nil
	}

	return identity
}
