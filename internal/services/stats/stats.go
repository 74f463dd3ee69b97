// Package stats содержит бизнес-логику статистики: сквозное чтение
// данных FACEIT через кеш в базе, разборы матчей и внутреннюю аналитику.
package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/faceit-stats-bot/internal/faceit"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/lib/errs"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/lib/sl"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/models"
)

// Время жизни строк кеша. Статистика игрока меняется медленно,
// данные матча быстро.
const (
	playerStatsTTL = time.Hour
	matchTTL       = 10 * time.Minute
)

const defaultGame = "cs2"

// Repository методы хранилища, нужные сервису статистики.
type Repository interface {
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)

	GetPlayerStats(ctx context.Context, nickname, game string, now time.Time) (*models.PlayerStatsEntry, error)
	UpsertPlayerStats(ctx context.Context, entry models.PlayerStatsEntry) error
	GetMatch(ctx context.Context, matchID string, now time.Time) (*models.MatchEntry, error)
	UpsertMatch(ctx context.Context, entry models.MatchEntry) error
	PurgeExpiredStats(ctx context.Context, now time.Time) (int64, error)

	CreateMatchAnalysis(ctx context.Context, a models.MatchAnalysis) (string, error)
	ListMatchAnalyses(ctx context.Context, userID string, opts models.ListOptions) ([]*models.MatchAnalysis, error)

	InsertMetric(ctx context.Context, m models.Metric) error
	PruneMetrics(ctx context.Context, olderThan time.Time) (int64, error)
}

// FaceitClient методы FACEIT Data API, нужные сервису статистики.
type FaceitClient interface {
	GetPlayerByNickname(ctx context.Context, nickname string) (*faceit.Player, error)
	GetMatch(ctx context.Context, matchID string) (*faceit.Match, error)
}

// Service реализует операции со статистикой.
type Service struct {
	repo   Repository
	faceit FaceitClient
	log    *slog.Logger
}

// New создает сервис статистики.
func New(repo Repository, faceitClient FaceitClient, log *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		faceit: faceitClient,
		log:    log,
	}
}

// PlayerStats статистика игрока с признаком источника.
type PlayerStats struct {
	PlayerID  string          `json:"player_id"`
	Nickname  string          `json:"nickname"`
	Game      string          `json:"game"`
	Data      json.RawMessage `json:"data"`
	FromCache bool            `json:"from_cache"`
}

// GetPlayerStats возвращает статистику игрока, сначала из кеша в базе,
// при промахе или протухании из FACEIT Data API с записью в кеш.
func (s *Service) GetPlayerStats(ctx context.Context, nickname, game string) (*PlayerStats, error) {
	if game == "" {
		game = defaultGame
	}

	entry, err := s.repo.GetPlayerStats(ctx, nickname, game, time.Now())
	if err == nil {
		s.recordMetric(ctx, "stats_cache_hit", `{"source":"player_stats"}`)
		return &PlayerStats{
			PlayerID:  entry.PlayerID,
			Nickname:  entry.Nickname,
			Game:      entry.Game,
			Data:      entry.Data,
			FromCache: true,
		}, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	player, err := s.faceit.GetPlayerByNickname(ctx, nickname)
	if err != nil {
		if errors.Is(err, faceit.ErrPlayerNotFound) {
			return nil, errs.NewValidation("nickname", "faceit player not found")
		}
		return nil, err
	}

	if err := s.repo.UpsertPlayerStats(ctx, models.PlayerStatsEntry{
		PlayerID:  player.PlayerID,
		Nickname:  player.Nickname,
		Game:      game,
		Data:      player.Raw,
		ExpiresAt: time.Now().Add(playerStatsTTL),
	}); err != nil {
		s.log.Warn("failed to cache player stats",
			slog.String("nickname", player.Nickname), sl.Err(err))
	}
	s.recordMetric(ctx, "stats_cache_miss", `{"source":"player_stats"}`)

	return &PlayerStats{
		PlayerID: player.PlayerID,
		Nickname: player.Nickname,
		Game:     game,
		Data:     player.Raw,
	}, nil
}

// getMatchData возвращает данные матча через кеш в базе.
func (s *Service) getMatchData(ctx context.Context, matchID string) (json.RawMessage, models.MatchStatus, bool, error) {
	entry, err := s.repo.GetMatch(ctx, matchID, time.Now())
	if err == nil {
		var match faceit.Match
		if uErr := json.Unmarshal(entry.Data, &match); uErr != nil {
			return nil, "", false, fmt.Errorf("malformed cached match %s: %w", matchID, uErr)
		}
		return entry.Data, matchStatus(match.Status), true, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return nil, "", false, err
	}

	match, err := s.faceit.GetMatch(ctx, matchID)
	if err != nil {
		return nil, "", false, err
	}
	if err := s.repo.UpsertMatch(ctx, models.MatchEntry{
		MatchID:   matchID,
		Data:      match.Raw,
		ExpiresAt: time.Now().Add(matchTTL),
	}); err != nil {
		s.log.Warn("failed to cache match", slog.String("match_id", matchID), sl.Err(err))
	}
	return match.Raw, matchStatus(match.Status), false, nil
}

func matchStatus(raw string) models.MatchStatus {
	switch status := models.MatchStatus(strings.ToLower(raw)); status {
	case models.MatchScheduled, models.MatchConfiguring, models.MatchReady,
		models.MatchOngoing, models.MatchFinished, models.MatchCancelled:
		return status
	}
	return models.MatchScheduled
}

// AnalyzeMatch строит разбор матча для пользователя и сохраняет его.
func (s *Service) AnalyzeMatch(ctx context.Context, telegramID int64, matchID string) (*models.MatchAnalysis, error) {
	user, err := s.repo.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrUserNotFound
		}
		return nil, err
	}

	started := time.Now()
	data, status, cached, err := s.getMatchData(ctx, matchID)
	if err != nil {
		if errors.Is(err, faceit.ErrMatchNotFound) {
			return nil, errs.NewValidation("match_id", "faceit match not found")
		}
		return nil, err
	}

	analysis := models.MatchAnalysis{
		UserID:           user.ID,
		MatchID:          matchID,
		Status:           status,
		TeamsData:        data,
		CachedDataUsed:   cached,
		ProcessingTimeMs: time.Since(started).Milliseconds(),
	}
	id, err := s.repo.CreateMatchAnalysis(ctx, analysis)
	if err != nil {
		return nil, err
	}
	analysis.ID = id

	s.recordMetric(ctx, "match_analysis", `{"source":"api"}`)
	s.log.Info("match analyzed",
		slog.Int64("telegram_id", telegramID),
		slog.String("match_id", matchID),
		slog.Bool("cached", cached))
	return &analysis, nil
}

// ListAnalyses возвращает разборы пользователя по предикатам фильтра.
func (s *Service) ListAnalyses(ctx context.Context, telegramID int64, opts models.ListOptions) ([]*models.MatchAnalysis, error) {
	user, err := s.repo.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrUserNotFound
		}
		return nil, err
	}
	return s.repo.ListMatchAnalyses(ctx, user.ID, opts)
}

// PurgeExpired удаляет протухшие строки кешей статистики.
// Возвращает количество удаленных строк.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.PurgeExpiredStats(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("expired stats purged", slog.Int64("count", n))
	}
	return n, nil
}

// PruneAnalytics удаляет метрики старше порога.
func (s *Service) PruneAnalytics(ctx context.Context, olderThan time.Time) (int64, error) {
	return s.repo.PruneMetrics(ctx, olderThan)
}

// recordMetric пишет счетчик во внутреннюю аналитику. Ошибка записи
// не прерывает запрос пользователя.
func (s *Service) recordMetric(ctx context.Context, name, tags string) {
	err := s.repo.InsertMetric(ctx, models.Metric{
		MetricName: name,
		Value:      1,
		MetricType: "counter",
		Tags:       json.RawMessage(tags),
		Period:     "hour",
	})
	if err != nil {
		s.log.Warn("failed to record metric", slog.String("metric", name), sl.Err(err))
	}
}
