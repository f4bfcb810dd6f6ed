package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/ConsultBookBack/internal/models"
)

type CategoryInput struct {
	Name        string
	Slug        string
	Description *string
	SortOrder   int
}

type CategoryRepository struct {
	db DBTX
}

func NewCategoryRepository(db DBTX) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) Create(ctx context.Context, input CategoryInput) (*models.Category, error) {
	query := `
		INSERT INTO categories (name, slug, description, sort_order)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, slug, description, sort_order, created_at, updated_at
	`
	var category models.Category
	err := r.db.QueryRow(ctx, query, input.Name, input.Slug, input.Description, input.SortOrder).Scan(
		&category.ID,
		&category.Name,
		&category.Slug,
		&category.Description,
		&category.SortOrder,
		&category.CreatedAt,
		&category.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *CategoryRepository) Update(ctx context.Context, id int64, input CategoryInput) (*models.Category, error) {
	query := `
		UPDATE categories
		SET name = $2, slug = $3, description = $4, sort_order = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, slug, description, sort_order, created_at, updated_at
	`
	var category models.Category
	err := r.db.QueryRow(ctx, query, id, input.Name, input.Slug, input.Description, input.SortOrder).Scan(
		&category.ID,
		&category.Name,
		&category.Slug,
		&category.Description,
		&category.SortOrder,
		&category.CreatedAt,
		&category.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *CategoryRepository) List(ctx context.Context) ([]models.Category, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, slug, description, sort_order, created_at, updated_at
		FROM categories
		ORDER BY sort_order ASC, name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]models.Category, 0)
	for rows.Next() {
		var category models.Category
		if err := rows.Scan(
			&category.ID,
			&category.Name,
			&category.Slug,
			&category.Description,
			&category.SortOrder,
			&category.CreatedAt,
			&category.UpdatedAt,
		); err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *CategoryRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM categories WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
