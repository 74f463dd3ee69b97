package models

import (
	"encoding/json"
	"time"
)

// MatchStatus статус матча по данным FACEIT.
type MatchStatus string

// Статусы матча.
const (
	MatchScheduled   MatchStatus = "scheduled"
	MatchConfiguring MatchStatus = "configuring"
	MatchReady       MatchStatus = "ready"
	MatchOngoing     MatchStatus = "ongoing"
	MatchFinished    MatchStatus = "finished"
	MatchCancelled   MatchStatus = "cancelled"
)

// DummyAnalyzeMatch используется для приёма запроса на разбор матча.
type DummyAnalyzeMatch struct {
	MatchID string `json:"match_id" validate:"required,min=1,max=128"` // Идентификатор матча FACEIT
}

// MatchAnalysis представляет один разбор матча, запрошенный пользователем.
// Данные команд и прогноз хранятся как JSON, так как их структура
// задается внешним API и не участвует в бизнес-логике.
type MatchAnalysis struct {
	ID               string          // Внутренний UUID
	UserID           string          // UUID пользователя, запросившего разбор
	MatchID          string          // Идентификатор матча FACEIT
	Status           MatchStatus     // Статус матча на момент разбора
	TeamsData        json.RawMessage // Составы команд
	PredictionData   json.RawMessage // Данные прогноза
	CachedDataUsed   bool            // Использовались ли кешированные данные игроков
	ProcessingTimeMs int64           // Время построения разбора
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
