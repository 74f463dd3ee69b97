// Package faceit содержит тонкий клиент FACEIT Data API.
// Сервисам нужен только поиск игрока по нику и данные матча,
// остальной API не используется.
package faceit

import "encoding/json"

// Player профиль игрока с игровыми рейтингами.
type Player struct {
	PlayerID string          `json:"player_id"`
	Nickname string          `json:"nickname"`
	Country  string          `json:"country"`
	Games    map[string]Game `json:"games"`
	Raw      json.RawMessage `json:"-"` // Ответ API как есть, для кеша
}

// Game рейтинговые поля игрока в конкретной игре.
type Game struct {
	SkillLevel   int    `json:"skill_level"`
	FaceitElo    int    `json:"faceit_elo"`
	Region       string `json:"region"`
	GamePlayerID string `json:"game_player_id"`
}

// Match данные матча.
type Match struct {
	MatchID string          `json:"match_id"`
	Status  string          `json:"status"`
	Game    string          `json:"game"`
	Raw     json.RawMessage `json:"-"`
}
