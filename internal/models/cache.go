package models

import (
	"encoding/json"
	"time"
)

// PlayerStatsEntry строка кеша статистики игрока с ограниченным временем жизни.
// Протухшие строки (ExpiresAt < now) удаляются фоновым воркером и
// игнорируются при чтении.
type PlayerStatsEntry struct {
	ID          string          // Внутренний UUID
	PlayerID    string          // Идентификатор игрока FACEIT
	Nickname    string          // Ник игрока на момент кеширования
	Game        string          // Игра (cs2, csgo, ...)
	Data        json.RawMessage // Ответ API как есть
	AccessCount int             // Сколько раз строка отдавалась из кеша
	ExpiresAt   time.Time       // Момент протухания
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MatchEntry строка кеша данных матча, жизненный цикл тот же,
// что и у PlayerStatsEntry.
type MatchEntry struct {
	ID          string          // Внутренний UUID
	MatchID     string          // Идентификатор матча FACEIT
	Data        json.RawMessage // Ответ API как есть
	AccessCount int             // Сколько раз строка отдавалась из кеша
	ExpiresAt   time.Time       // Момент протухания
	CreatedAt   time.Time
}
