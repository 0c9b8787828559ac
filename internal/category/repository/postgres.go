package repository

import (
	"context"
	"database/sql"

	"github.com/fekuna/evaluation-portal/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

const columns = `id, name, name_ar, description, image_url, created_at, updated_at`

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Create(ctx context.Context, c *model.Category) error {
	query := `
        INSERT INTO categories (id, name, name_ar, description, image_url, created_at, updated_at)
        VALUES (:id, :name, :name_ar, :description, :image_url, :created_at, :updated_at)
    `
	_, err := r.DB.NamedExecContext(ctx, query, c)
	return errors.Wrap(err, "insert category")
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.Category, error) {
	var category model.Category
	query := `SELECT ` + columns + ` FROM categories WHERE id = $1 LIMIT 1`
	err := r.DB.GetContext(ctx, &category, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "select category")
	}
	return &category, nil
}

// FindAll returns categories in insertion order; they carry no sort key.
func (r *PGRepository) FindAll(ctx context.Context) ([]model.Category, error) {
	categories := []model.Category{}
	query := `SELECT ` + columns + ` FROM categories ORDER BY created_at ASC, id ASC`
	if err := r.DB.SelectContext(ctx, &categories, query); err != nil {
		return nil, errors.Wrap(err, "select categories")
	}
	return categories, nil
}

func (r *PGRepository) Update(ctx context.Context, c *model.Category) (bool, error) {
	query := `
        UPDATE categories
        SET name = :name,
            name_ar = :name_ar,
            description = :description,
            image_url = :image_url,
            updated_at = :updated_at
        WHERE id = :id
    `
	res, err := r.DB.NamedExecContext(ctx, query, c)
	if err != nil {
		return false, errors.Wrap(err, "update category")
	}
	return affected(res)
}

// Delete leaves subcategories in place; they stop surfacing because the
// subcategory queries join their parent.
func (r *PGRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM categories WHERE id = $1", id)
	if err != nil {
		return false, errors.Wrap(err, "delete category")
	}
	return affected(res)
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n > 0, nil
}
