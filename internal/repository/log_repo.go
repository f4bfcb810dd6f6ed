package repository

import (
	"context"

	"github.com/saeid-a/ConsultBookBack/internal/models"
)

type CreateEmailLogInput struct {
	BookingID    *int64
	Recipient    string
	Subject      string
	Template     string
	Status       string
	ErrorMessage *string
}

type CreateErrorLogInput struct {
	Level   string
	Source  string
	Message string
	Context map[string]any
}

type LogRepository struct {
	db DBTX
}

func NewLogRepository(db DBTX) *LogRepository {
	return &LogRepository{db: db}
}

func (r *LogRepository) CreateEmailLog(ctx context.Context, input CreateEmailLogInput) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO email_logs (booking_id, recipient, subject, template, status, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, input.BookingID, input.Recipient, input.Subject, input.Template, input.Status, input.ErrorMessage)
	return err
}

func (r *LogRepository) CreateErrorLog(ctx context.Context, input CreateErrorLogInput) error {
	contextValue := input.Context
	if contextValue == nil {
		contextValue = map[string]any{}
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO error_logs (level, source, message, context)
		VALUES ($1, $2, $3, $4)
	`, input.Level, input.Source, input.Message, contextValue)
	return err
}

func (r *LogRepository) ListEmailLogs(ctx context.Context, limit, offset int) ([]models.EmailLog, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM email_logs").Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, booking_id, recipient, subject, template, status, error_message, created_at
		FROM email_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	logs := make([]models.EmailLog, 0)
	for rows.Next() {
		var entry models.EmailLog
		if err := rows.Scan(
			&entry.ID,
			&entry.BookingID,
			&entry.Recipient,
			&entry.Subject,
			&entry.Template,
			&entry.Status,
			&entry.ErrorMessage,
			&entry.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

func (r *LogRepository) ListErrorLogs(ctx context.Context, level string, limit, offset int) ([]models.ErrorLog, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM error_logs WHERE ($1 = '' OR level = $1)", level).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, level, source, message, context, created_at
		FROM error_logs
		WHERE ($1 = '' OR level = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, level, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	logs := make([]models.ErrorLog, 0)
	for rows.Next() {
		var entry models.ErrorLog
		if err := rows.Scan(
			&entry.ID,
			&entry.Level,
			&entry.Source,
			&entry.Message,
			&entry.Context,
			&entry.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
