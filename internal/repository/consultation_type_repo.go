package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/ConsultBookBack/internal/models"
)

const consultationTypeColumns = `
	id, category_id, name, slug, description, duration_min, price::float8,
	buffer_before, buffer_after, status, created_at, updated_at`

type ConsultationTypeInput struct {
	CategoryID      *int64
	Name            string
	Slug            string
	Description     *string
	DurationMinutes int
	Price           float64
	BufferBefore    int
	BufferAfter     int
	Status          string
}

type ConsultationTypeFilter struct {
	Status     string
	CategoryID int64
}

type ConsultationTypeRepository struct {
	db DBTX
}

func NewConsultationTypeRepository(db DBTX) *ConsultationTypeRepository {
	return &ConsultationTypeRepository{db: db}
}

func scanConsultationType(row scanner) (*models.ConsultationType, error) {
	var item models.ConsultationType
	err := row.Scan(
		&item.ID,
		&item.CategoryID,
		&item.Name,
		&item.Slug,
		&item.Description,
		&item.DurationMinutes,
		&item.Price,
		&item.BufferBefore,
		&item.BufferAfter,
		&item.Status,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *ConsultationTypeRepository) Create(ctx context.Context, input ConsultationTypeInput) (*models.ConsultationType, error) {
	query := `
		INSERT INTO consultation_types (
			category_id, name, slug, description, duration_min, price, buffer_before, buffer_after, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING` + consultationTypeColumns
	return scanConsultationType(r.db.QueryRow(
		ctx,
		query,
		input.CategoryID,
		input.Name,
		input.Slug,
		input.Description,
		input.DurationMinutes,
		input.Price,
		input.BufferBefore,
		input.BufferAfter,
		input.Status,
	))
}

func (r *ConsultationTypeRepository) Update(ctx context.Context, id int64, input ConsultationTypeInput) (*models.ConsultationType, error) {
	query := `
		UPDATE consultation_types
		SET category_id = $2, name = $3, slug = $4, description = $5, duration_min = $6,
		    price = $7, buffer_before = $8, buffer_after = $9, status = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING` + consultationTypeColumns
	return scanConsultationType(r.db.QueryRow(
		ctx,
		query,
		id,
		input.CategoryID,
		input.Name,
		input.Slug,
		input.Description,
		input.DurationMinutes,
		input.Price,
		input.BufferBefore,
		input.BufferAfter,
		input.Status,
	))
}

func (r *ConsultationTypeRepository) GetByID(ctx context.Context, id int64) (*models.ConsultationType, error) {
	query := `SELECT` + consultationTypeColumns + ` FROM consultation_types WHERE id = $1`
	return scanConsultationType(r.db.QueryRow(ctx, query, id))
}

func (r *ConsultationTypeRepository) GetBySlug(ctx context.Context, slug string) (*models.ConsultationType, error) {
	query := `SELECT` + consultationTypeColumns + ` FROM consultation_types WHERE slug = $1`
	return scanConsultationType(r.db.QueryRow(ctx, query, slug))
}

func (r *ConsultationTypeRepository) List(ctx context.Context, filter ConsultationTypeFilter) ([]models.ConsultationType, error) {
	args := []any{}
	whereParts := []string{"1 = 1"}
	if status := strings.TrimSpace(filter.Status); status != "" {
		args = append(args, status)
		whereParts = append(whereParts, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.CategoryID > 0 {
		args = append(args, filter.CategoryID)
		whereParts = append(whereParts, fmt.Sprintf("category_id = $%d", len(args)))
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM consultation_types
		WHERE %s
		ORDER BY name ASC, id ASC
	`, consultationTypeColumns, strings.Join(whereParts, " AND "))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]models.ConsultationType, 0)
	for rows.Next() {
		item, err := scanConsultationType(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *ConsultationTypeRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM consultation_types WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
