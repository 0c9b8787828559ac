package repository

import (
	"context"
	"database/sql"

	"github.com/fekuna/evaluation-portal/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

const columns = `s.id, s.category_id, s.name, s.name_ar, s.description, s.image_url, s.sort_order, s.created_at, s.updated_at`

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Create(ctx context.Context, s *model.Subcategory) error {
	query := `
        INSERT INTO subcategories (id, category_id, name, name_ar, description, image_url, sort_order, created_at, updated_at)
        VALUES (:id, :category_id, :name, :name_ar, :description, :image_url, :sort_order, :created_at, :updated_at)
    `
	_, err := r.DB.NamedExecContext(ctx, query, s)
	return errors.Wrap(err, "insert subcategory")
}

type joinedRow struct {
	model.Subcategory
	CatID     string `db:"cat_id"`
	CatName   string `db:"cat_name"`
	CatNameAr string `db:"cat_name_ar"`
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.Subcategory, error) {
	var row joinedRow
	query := `
        SELECT ` + columns + `, c.id AS cat_id, c.name AS cat_name, c.name_ar AS cat_name_ar
        FROM subcategories s
        JOIN categories c ON c.id = s.category_id
        WHERE s.id = $1
        LIMIT 1
    `
	err := r.DB.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "select subcategory")
	}

	sub := row.Subcategory
	sub.Category = &model.CategoryRef{ID: row.CatID, Name: row.CatName, NameAr: row.CatNameAr}
	return &sub, nil
}

func (r *PGRepository) FindByCategory(ctx context.Context, categoryID string) ([]model.Subcategory, error) {
	subs := []model.Subcategory{}
	query := `
        SELECT ` + columns + `
        FROM subcategories s
        JOIN categories c ON c.id = s.category_id
        WHERE s.category_id = $1
        ORDER BY s.sort_order ASC, s.created_at ASC
    `
	if err := r.DB.SelectContext(ctx, &subs, query, categoryID); err != nil {
		return nil, errors.Wrap(err, "select subcategories")
	}
	return subs, nil
}

// SubcategoryIDs ignores the parent join on purpose: it is used to find
// orphans-to-be right before their category is deleted.
func (r *PGRepository) SubcategoryIDs(ctx context.Context, categoryID string) ([]string, error) {
	var ids []string
	err := r.DB.SelectContext(ctx, &ids, `SELECT id FROM subcategories WHERE category_id = $1`, categoryID)
	return ids, errors.Wrap(err, "select subcategory ids")
}

func (r *PGRepository) Update(ctx context.Context, s *model.Subcategory) (bool, error) {
	query := `
        UPDATE subcategories
        SET category_id = :category_id,
            name = :name,
            name_ar = :name_ar,
            description = :description,
            image_url = :image_url,
            sort_order = :sort_order,
            updated_at = :updated_at
        WHERE id = :id
    `
	res, err := r.DB.NamedExecContext(ctx, query, s)
	if err != nil {
		return false, errors.Wrap(err, "update subcategory")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n > 0, nil
}

func (r *PGRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM subcategories WHERE id = $1", id)
	if err != nil {
		return false, errors.Wrap(err, "delete subcategory")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n > 0, nil
}
