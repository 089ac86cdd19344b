package postgres

import (
	"context"

	"haultrack/internal/domain/user"
	"haultrack/internal/ports"
)

// UserRepo reads users using pgx and plain SQL. The tracking backend never
// creates or mutates accounts; that belongs to the identity service.
type UserRepo struct{}

// NewUserRepo constructs a new UserRepo.
func NewUserRepo() ports.UserRepository {
	return &UserRepo{}
}

// GetByID returns one user by id.
func (repo *UserRepo) GetByID(ctx context.Context, id string) (*user.User, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var (
		out        user.User
		roleText   string
		statusText string
	)

	err = tx.QueryRow(ctx, `
		SELECT
			id, created_at, updated_at,
			email, role, status
		FROM users
		WHERE id = $1
	`, id).Scan(
		&out.ID, &out.CreatedAt, &out.UpdatedAt,
		&out.Email, &roleText, &statusText,
	)
	if err != nil {
		return nil, err
	}

	out.Role = user.Role(roleText)
	out.Status = user.Status(statusText)

	return &out, nil
}
