package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/magabrotheeeer/faceit-stats-bot/internal/models"
)

// UpsertPlayerStats создает либо обновляет строку кеша статистики игрока.
func (s *Storage) UpsertPlayerStats(ctx context.Context, entry models.PlayerStatsEntry) error {
	const op = "storage.UpsertPlayerStats"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO player_stats_cache (player_id, nickname, game, data, expires_at)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (player_id, game) DO UPDATE
			  SET nickname = EXCLUDED.nickname, data = EXCLUDED.data,
			      expires_at = EXCLUDED.expires_at, updated_at = now()`
	if _, err := s.DB.ExecContext(ctx, query,
		entry.PlayerID, entry.Nickname, entry.Game, []byte(entry.Data), entry.ExpiresAt); err != nil {
		return wrapErr(op, err)
	}
	return nil
}

// GetPlayerStats возвращает непротухшую строку кеша по нику и игре,
// попутно увеличивая счетчик обращений.
func (s *Storage) GetPlayerStats(ctx context.Context, nickname, game string, now time.Time) (*models.PlayerStatsEntry, error) {
	const op = "storage.GetPlayerStats"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE player_stats_cache
			  SET access_count = access_count + 1
			  WHERE nickname = $1 AND game = $2 AND expires_at > $3
			  RETURNING id, player_id, nickname, game, data, access_count,
			      expires_at, created_at, updated_at`
	entry := &models.PlayerStatsEntry{}
	var data []byte
	if err := s.DB.QueryRowContext(ctx, query, nickname, game, now).Scan(
		&entry.ID, &entry.PlayerID, &entry.Nickname, &entry.Game, &data,
		&entry.AccessCount, &entry.ExpiresAt, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return nil, wrapErr(op, err)
	}
	entry.Data = json.RawMessage(data)
	return entry, nil
}

// UpsertMatch создает либо обновляет строку кеша матча.
func (s *Storage) UpsertMatch(ctx context.Context, entry models.MatchEntry) error {
	const op = "storage.UpsertMatch"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO match_cache (match_id, data, expires_at)
			  VALUES ($1, $2, $3)
			  ON CONFLICT (match_id) DO UPDATE
			  SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at`
	if _, err := s.DB.ExecContext(ctx, query,
		entry.MatchID, []byte(entry.Data), entry.ExpiresAt); err != nil {
		return wrapErr(op, err)
	}
	return nil
}

// GetMatch возвращает непротухшую строку кеша матча, увеличивая счетчик обращений.
func (s *Storage) GetMatch(ctx context.Context, matchID string, now time.Time) (*models.MatchEntry, error) {
	const op = "storage.GetMatch"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE match_cache
			  SET access_count = access_count + 1
			  WHERE match_id = $1 AND expires_at > $2
			  RETURNING id, match_id, data, access_count, expires_at, created_at`
	entry := &models.MatchEntry{}
	var data []byte
	if err := s.DB.QueryRowContext(ctx, query, matchID, now).Scan(
		&entry.ID, &entry.MatchID, &data, &entry.AccessCount,
		&entry.ExpiresAt, &entry.CreatedAt); err != nil {
		return nil, wrapErr(op, err)
	}
	entry.Data = json.RawMessage(data)
	return entry, nil
}

// PurgeExpiredStats удаляет протухшие строки обоих кешей
// и возвращает количество удаленных.
func (s *Storage) PurgeExpiredStats(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.PurgeExpiredStats"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var total int64
	for _, table := range []string{"player_stats_cache", "match_cache"} {
		res, err := s.DB.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE expires_at < $1`, table), now)
		if err != nil {
			return total, wrapErr(op, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, wrapErr(op, err)
		}
		total += n
	}
	return total, nil
}
