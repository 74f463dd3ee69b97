package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/faceit-stats-bot/internal/models"
)

const analysisColumns = `id, user_id, match_id, status, teams_data, prediction_data,
			      cached_data_used, processing_time_ms, created_at, updated_at`

func scanAnalysis(row interface{ Scan(...any) error }) (*models.MatchAnalysis, error) {
	a := &models.MatchAnalysis{}
	var status string
	if err := row.Scan(&a.ID, &a.UserID, &a.MatchID, &status, &a.TeamsData,
		&a.PredictionData, &a.CachedDataUsed, &a.ProcessingTimeMs,
		&a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Status = models.MatchStatus(status)
	return a, nil
}

// CreateMatchAnalysis сохраняет разбор матча и возвращает его UUID.
func (s *Storage) CreateMatchAnalysis(ctx context.Context, a models.MatchAnalysis) (string, error) {
	const op = "storage.CreateMatchAnalysis"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newID string
	query := `INSERT INTO match_analyses (user_id, match_id, status, teams_data,
			      prediction_data, cached_data_used, processing_time_ms)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING id`
	if err := s.DB.QueryRowContext(ctx, query,
		a.UserID, a.MatchID, string(a.Status), []byte(a.TeamsData),
		[]byte(a.PredictionData), a.CachedDataUsed, a.ProcessingTimeMs).Scan(&newID); err != nil {
		return "", wrapErr(op, err)
	}
	return newID, nil
}

// UpdateMatchAnalysisStatus обновляет статус разбора при изменении статуса матча.
func (s *Storage) UpdateMatchAnalysisStatus(ctx context.Context, id string, status models.MatchStatus) error {
	const op = "storage.UpdateMatchAnalysisStatus"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE match_analyses
			  SET status = $1, updated_at = now()
			  WHERE id = $2`
	if _, err := s.DB.ExecContext(ctx, query, string(status), id); err != nil {
		return wrapErr(op, err)
	}
	return nil
}

// ListMatchAnalyses возвращает разборы пользователя по предикатам фильтра.
func (s *Storage) ListMatchAnalyses(ctx context.Context, userID string, opts models.ListOptions) ([]*models.MatchAnalysis, error) {
	const op = "storage.ListMatchAnalyses"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	allowed := map[string]bool{
		"match_id": true, "status": true, "cached_data_used": true,
		"created_at": true, "user_id": true,
	}
	opts.Filters = append(opts.Filters, models.Filter{Field: "user_id", Op: models.OpEq, Value: userID})

	query, args, err := buildListQuery(`SELECT `+analysisColumns+` FROM match_analyses`, opts, allowed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.MatchAnalysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, wrapErr(op, err)
		}
		result = append(result, a)
	}
	if err = rows.Err(); err != nil {
		return nil, wrapErr(op, err)
	}
	return result, nil
}
