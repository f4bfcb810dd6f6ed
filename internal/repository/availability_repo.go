package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/ConsultBookBack/internal/models"
)

const availabilityRuleColumns = `
	id, rule_type, day_of_week, specific_date::text, to_char(start_time, 'HH24:MI'),
	CASE WHEN end_time = '24:00'::time THEN '24:00' ELSE to_char(end_time, 'HH24:MI') END,
	is_available, consultation_type_id, created_at, updated_at`

type AvailabilityRuleInput struct {
	RuleType           string
	DayOfWeek          *int
	SpecificDate       *string
	StartTime          string
	EndTime            string
	IsAvailable        bool
	ConsultationTypeID *int64
}

type AvailabilityRepository struct {
	db DBTX
}

func NewAvailabilityRepository(db DBTX) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

func scanAvailabilityRule(row scanner) (*models.AvailabilityRule, error) {
	var rule models.AvailabilityRule
	err := row.Scan(
		&rule.ID,
		&rule.RuleType,
		&rule.DayOfWeek,
		&rule.SpecificDate,
		&rule.StartTime,
		&rule.EndTime,
		&rule.IsAvailable,
		&rule.ConsultationTypeID,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *AvailabilityRepository) Create(ctx context.Context, input AvailabilityRuleInput) (*models.AvailabilityRule, error) {
	query := `
		INSERT INTO availability_rules (
			rule_type, day_of_week, specific_date, start_time, end_time, is_available, consultation_type_id
		)
		VALUES ($1, $2, $3::date, $4::time, $5::time, $6, $7)
		RETURNING` + availabilityRuleColumns
	return scanAvailabilityRule(r.db.QueryRow(
		ctx,
		query,
		input.RuleType,
		input.DayOfWeek,
		input.SpecificDate,
		input.StartTime,
		input.EndTime,
		input.IsAvailable,
		input.ConsultationTypeID,
	))
}

func (r *AvailabilityRepository) Update(ctx context.Context, id int64, input AvailabilityRuleInput) (*models.AvailabilityRule, error) {
	query := `
		UPDATE availability_rules
		SET rule_type = $2, day_of_week = $3, specific_date = $4::date, start_time = $5::time,
		    end_time = $6::time, is_available = $7, consultation_type_id = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING` + availabilityRuleColumns
	return scanAvailabilityRule(r.db.QueryRow(
		ctx,
		query,
		id,
		input.RuleType,
		input.DayOfWeek,
		input.SpecificDate,
		input.StartTime,
		input.EndTime,
		input.IsAvailable,
		input.ConsultationTypeID,
	))
}

func (r *AvailabilityRepository) GetByID(ctx context.Context, id int64) (*models.AvailabilityRule, error) {
	query := `SELECT` + availabilityRuleColumns + ` FROM availability_rules WHERE id = $1`
	return scanAvailabilityRule(r.db.QueryRow(ctx, query, id))
}

func (r *AvailabilityRepository) List(ctx context.Context) ([]models.AvailabilityRule, error) {
	query := `
		SELECT` + availabilityRuleColumns + `
		FROM availability_rules
		ORDER BY rule_type ASC, day_of_week ASC NULLS LAST, specific_date ASC NULLS LAST, start_time ASC
	`
	return r.list(ctx, query)
}

// ListForDate returns the rules that can govern the given day: weekly rules
// and recurring blocks for the weekday plus anything pinned to the date.
func (r *AvailabilityRepository) ListForDate(ctx context.Context, date string, weekday int) ([]models.AvailabilityRule, error) {
	query := `
		SELECT` + availabilityRuleColumns + `
		FROM availability_rules
		WHERE specific_date = $1::date
		   OR (specific_date IS NULL AND day_of_week = $2)
		ORDER BY start_time ASC
	`
	return r.list(ctx, query, date, weekday)
}

// ListForRange returns every recurring rule plus the rules pinned to a day
// between from and to inclusive.
func (r *AvailabilityRepository) ListForRange(ctx context.Context, from, to string) ([]models.AvailabilityRule, error) {
	query := `
		SELECT` + availabilityRuleColumns + `
		FROM availability_rules
		WHERE specific_date IS NULL
		   OR specific_date BETWEEN $1::date AND $2::date
		ORDER BY start_time ASC
	`
	return r.list(ctx, query, from, to)
}

func (r *AvailabilityRepository) list(ctx context.Context, query string, args ...any) ([]models.AvailabilityRule, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]models.AvailabilityRule, 0)
	for rows.Next() {
		rule, err := scanAvailabilityRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *AvailabilityRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM availability_rules WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
