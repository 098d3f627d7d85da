package db

import (
	"context"

	"pantrynotify/internal/types"
)

// UserDirectory resolves notification-enabled users through the
// get_users_with_expiring_ingredients RPC. Preference filtering happens
// inside the function.
type UserDirectory struct {
	db DBTX
}

func NewUserDirectory(db DBTX) *UserDirectory {
	return &UserDirectory{db: db}
}

// UsersWithExpiringIngredients returns (user_id, user_email) for users with
// email notifications enabled and at least one ingredient expiring within
// daysAhead days.
func (d *UserDirectory) UsersWithExpiringIngredients(ctx context.Context, daysAhead int) ([]types.UserContact, error) {
	rows, err := d.db.Query(ctx,
		`SELECT user_id::text, user_email FROM get_users_with_expiring_ingredients($1)`,
		daysAhead,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUserResolution, "failed to resolve users with expiring ingredients", err)
	}
	defer rows.Close()

	var users []types.UserContact
	for rows.Next() {
		var u types.UserContact
		if err := rows.Scan(&u.UserID, &u.Email); err != nil {
			return nil, types.NewAppError(types.ErrCodeUserResolution, "failed to scan user row", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeUserResolution, "error iterating users", err)
	}
	return users, nil
}
