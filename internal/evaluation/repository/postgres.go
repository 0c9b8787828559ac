package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/fekuna/evaluation-portal/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

const columns = `e.id, e.subcategory_id, e.title, e.title_ar, e.description, e.image_url, e.download_url, e.sort_order, e.created_at, e.updated_at`

// visible restricts evaluations to those whose whole parent chain still exists.
const visible = `
        FROM evaluations e
        JOIN subcategories s ON s.id = e.subcategory_id
        JOIN categories c ON c.id = s.category_id
`

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Create(ctx context.Context, e *model.Evaluation) error {
	query := `
        INSERT INTO evaluations (id, subcategory_id, title, title_ar, description, image_url, download_url, sort_order, created_at, updated_at)
        VALUES (:id, :subcategory_id, :title, :title_ar, :description, :image_url, :download_url, :sort_order, :created_at, :updated_at)
    `
	_, err := r.DB.NamedExecContext(ctx, query, e)
	return errors.Wrap(err, "insert evaluation")
}

type joinedRow struct {
	model.Evaluation
	SubID         string `db:"sub_id"`
	SubCategoryID string `db:"sub_category_id"`
	SubName       string `db:"sub_name"`
	SubNameAr     string `db:"sub_name_ar"`
}

func (row joinedRow) evaluation() model.Evaluation {
	e := row.Evaluation
	e.Subcategory = &model.SubcategoryRef{
		ID:         row.SubID,
		CategoryID: row.SubCategoryID,
		Name:       row.SubName,
		NameAr:     row.SubNameAr,
	}
	return e
}

const joinedColumns = columns + `, s.id AS sub_id, s.category_id AS sub_category_id, s.name AS sub_name, s.name_ar AS sub_name_ar`

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.Evaluation, error) {
	var row joinedRow
	query := `SELECT ` + joinedColumns + visible + `
        WHERE e.id = $1
        LIMIT 1
    `
	err := r.DB.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "select evaluation")
	}

	e := row.evaluation()
	return &e, nil
}

// FindVisible returns the evaluations among ids whose parent chain still
// exists, in no particular order.
func (r *PGRepository) FindVisible(ctx context.Context, ids []string) ([]model.Evaluation, error) {
	evals := []model.Evaluation{}
	if len(ids) == 0 {
		return evals, nil
	}
	query, args, err := sqlx.In(`SELECT `+joinedColumns+visible+`
        WHERE e.id IN (?)
    `, ids)
	if err != nil {
		return nil, errors.Wrap(err, "build visibility query")
	}

	var rows []joinedRow
	if err := r.DB.SelectContext(ctx, &rows, r.DB.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "select visible evaluations")
	}
	for _, row := range rows {
		evals = append(evals, row.evaluation())
	}
	return evals, nil
}

func (r *PGRepository) FindBySubcategory(ctx context.Context, subcategoryID string) ([]model.Evaluation, error) {
	evals := []model.Evaluation{}
	query := `SELECT ` + columns + visible + `
        WHERE e.subcategory_id = $1
        ORDER BY e.sort_order ASC, e.created_at ASC
    `
	if err := r.DB.SelectContext(ctx, &evals, query, subcategoryID); err != nil {
		return nil, errors.Wrap(err, "select evaluations")
	}
	return evals, nil
}

func (r *PGRepository) Search(ctx context.Context, q string, limit int) ([]model.Evaluation, error) {
	evals := []model.Evaluation{}
	pattern := "%" + escapeLike(q) + "%"
	query := `SELECT ` + columns + visible + `
        WHERE e.title ILIKE $1 OR e.title_ar ILIKE $1
        ORDER BY e.sort_order ASC, e.created_at ASC
        LIMIT $2
    `
	if err := r.DB.SelectContext(ctx, &evals, query, pattern, limit); err != nil {
		return nil, errors.Wrap(err, "search evaluations")
	}
	return evals, nil
}

func (r *PGRepository) Update(ctx context.Context, e *model.Evaluation) (bool, error) {
	query := `
        UPDATE evaluations
        SET subcategory_id = :subcategory_id,
            title = :title,
            title_ar = :title_ar,
            description = :description,
            image_url = :image_url,
            download_url = :download_url,
            sort_order = :sort_order,
            updated_at = :updated_at
        WHERE id = :id
    `
	res, err := r.DB.NamedExecContext(ctx, query, e)
	if err != nil {
		return false, errors.Wrap(err, "update evaluation")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n > 0, nil
}

func (r *PGRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM evaluations WHERE id = $1", id)
	if err != nil {
		return false, errors.Wrap(err, "delete evaluation")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n > 0, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
