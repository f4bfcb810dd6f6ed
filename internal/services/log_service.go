package services

import (
	"context"
	"math"

	"github.com/saeid-a/ConsultBookBack/internal/models"
)

type logReader interface {
	ListEmailLogs(ctx context.Context, limit, offset int) ([]models.EmailLog, int, error)
	ListErrorLogs(ctx context.Context, level string, limit, offset int) ([]models.ErrorLog, int, error)
}

type LogService struct {
	logs logReader
}

func NewLogService(logs logReader) *LogService {
	return &LogService{logs: logs}
}

func (s *LogService) EmailLogs(ctx context.Context, page, limit int) ([]models.EmailLog, models.PaginationMeta, error) {
	entries, total, err := s.logs.ListEmailLogs(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, models.PaginationMeta{}, err
	}
	return entries, paginationMeta(page, limit, total), nil
}

func (s *LogService) ErrorLogs(ctx context.Context, level string, page, limit int) ([]models.ErrorLog, models.PaginationMeta, error) {
	if level != "" && level != LogLevelError && level != LogLevelWarning {
		return nil, models.PaginationMeta{}, &ValidationError{Fields: map[string]string{"level": "must be error or warning"}}
	}
	entries, total, err := s.logs.ListErrorLogs(ctx, level, limit, (page-1)*limit)
	if err != nil {
		return nil, models.PaginationMeta{}, err
	}
	return entries, paginationMeta(page, limit, total), nil
}

func paginationMeta(page, limit, total int) models.PaginationMeta {
	totalPages := 0
	if limit > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return models.PaginationMeta{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}
