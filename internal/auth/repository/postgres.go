package repository

import (
	"context"
	"database/sql"

	"github.com/fekuna/evaluation-portal/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// PGAllowList reads admin_users(user_id); at most one row per user.
type PGAllowList struct {
	DB *sqlx.DB
}

func NewPGAllowList(db *sqlx.DB) *PGAllowList {
	return &PGAllowList{DB: db}
}

func (r *PGAllowList) IsAdmin(ctx context.Context, userID string) (bool, error) {
	if !model.ValidID(userID) {
		return false, nil
	}
	var id string
	err := r.DB.GetContext(ctx, &id, `SELECT id FROM admin_users WHERE user_id = $1 LIMIT 1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "select admin user")
	}
	return true, nil
}
