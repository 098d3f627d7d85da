package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pantrynotify/internal/types"
)

const defaultIngredientPageSize = 500

// IngredientRepository reads the ingredients table. It never writes.
type IngredientRepository struct {
	db       DBTX
	pageSize int
}

// NewIngredientRepository creates a repository that pages through results
// pageSize rows at a time. A non-positive pageSize uses the default.
func NewIngredientRepository(db DBTX, pageSize int) *IngredientRepository {
	if pageSize <= 0 {
		pageSize = defaultIngredientPageSize
	}
	return &IngredientRepository{db: db, pageSize: pageSize}
}

// ListExpiring returns every ingredient with a non-null expiry_date in
// [q.From, q.To], ordered by (expiry_date, id). Rows are fetched in keyset
// pages so no single query returns an unbounded result.
func (r *IngredientRepository) ListExpiring(ctx context.Context, q types.ExpiringQuery) ([]types.StoredIngredient, error) {
	var (
		out        []types.StoredIngredient
		lastExpiry *time.Time
		lastID     string
	)
	for {
		page, err := r.fetchPage(ctx, q, lastExpiry, lastID)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < r.pageSize {
			return out, nil
		}
		tail := page[len(page)-1]
		lastExpiry, lastID = tail.ExpiryDate, tail.ID
	}
}

func (r *IngredientRepository) fetchPage(ctx context.Context, q types.ExpiringQuery, afterExpiry *time.Time, afterID string) ([]types.StoredIngredient, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id::text, user_id::text, name, expiry_date, created_at, updated_at
		 FROM ingredients
		 WHERE expiry_date IS NOT NULL AND expiry_date BETWEEN $1 AND $2`)
	args := []any{q.From.Format(types.DateLayout), q.To.Format(types.DateLayout)}

	if q.OwnerID != "" {
		args = append(args, q.OwnerID)
		fmt.Fprintf(&sb, " AND user_id::text = $%d", len(args))
	}
	if afterExpiry != nil {
		args = append(args, afterExpiry.Format(types.DateLayout), afterID)
		fmt.Fprintf(&sb, " AND (expiry_date, id::text) > ($%d::date, $%d)", len(args)-1, len(args))
	}
	args = append(args, r.pageSize)
	fmt.Fprintf(&sb, " ORDER BY expiry_date, id::text LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeStoreQuery, "failed to query expiring ingredients", err)
	}
	defer rows.Close()

	page := make([]types.StoredIngredient, 0, r.pageSize)
	for rows.Next() {
		var ing types.StoredIngredient
		if err := rows.Scan(
			&ing.ID,
			&ing.OwnerID,
			&ing.Name,
			&ing.ExpiryDate,
			&ing.CreatedAt,
			&ing.UpdatedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeStoreQuery, "failed to scan ingredient", err)
		}
		page = append(page, ing)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeStoreQuery, "error iterating ingredients", err)
	}
	return page, nil
}
