package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/magabrotheeeer/faceit-stats-bot/internal/models"
)

// InsertMetric добавляет строку метрики. Таблица append-only.
func (s *Storage) InsertMetric(ctx context.Context, m models.Metric) error {
	const op = "storage.InsertMetric"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO analytics (metric_name, value, metric_type, tags, period)
			  VALUES ($1, $2, $3, $4, $5)`
	tags := []byte(m.Tags)
	if tags == nil {
		tags = []byte("{}")
	}
	if _, err := s.DB.ExecContext(ctx, query,
		m.MetricName, m.Value, m.MetricType, tags, m.Period); err != nil {
		return wrapErr(op, err)
	}
	return nil
}

// PruneMetrics удаляет метрики старше порога и возвращает количество удаленных.
func (s *Storage) PruneMetrics(ctx context.Context, olderThan time.Time) (int64, error) {
	const op = "storage.PruneMetrics"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM analytics WHERE timestamp < $1`, olderThan)
	if err != nil {
		return 0, wrapErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapErr(op, err)
	}
	return n, nil
}
