// Package models содержит доменные структуры бота статистики FACEIT,
// а также вспомогательные типы для приёма данных из JSON-запросов.
package models

import "time"

// User представляет пользователя телеграм-бота.
// Идентификатор телеграма уникален во всей системе, привязка аккаунта
// FACEIT опциональна (поля nil до выполнения /link).
type User struct {
	ID                   string     // Внутренний UUID
	TelegramID           int64      // Внешний идентификатор чата/аккаунта
	FaceitPlayerID       *string    // ID игрока FACEIT (nil, если не привязан)
	FaceitNickname       *string    // Ник игрока FACEIT (nil, если не привязан)
	Language             string     // Язык интерфейса, по умолчанию "en"
	NotificationsEnabled bool       // Разрешены ли уведомления
	TotalRequests        int64      // Счетчик запросов за все время, только растет
	CreatedAt            time.Time  // Дата регистрации
	UpdatedAt            time.Time  // Дата последнего изменения профиля
	LastActiveAt         *time.Time // Дата последней активности
}

// DummyRegisterUser используется для приёма данных регистрации из JSON-запроса.
type DummyRegisterUser struct {
	TelegramID int64  `json:"telegram_id" validate:"required"`          // Идентификатор телеграма
	Language   string `json:"language,omitempty" validate:"omitempty"`  // Язык интерфейса (опционально)
}

// DummyLinkAccount используется для приёма данных привязки аккаунта FACEIT.
type DummyLinkAccount struct {
	Nickname string `json:"nickname" validate:"required,min=1,max=64"` // Ник игрока FACEIT
}

// DummyUpdateSettings используется для приёма настроек пользователя из JSON-запроса.
type DummyUpdateSettings struct {
	Language             string `json:"language,omitempty" validate:"omitempty,min=2,max=8"` // Язык интерфейса
	NotificationsEnabled bool   `json:"notifications_enabled"`                               // Разрешены ли уведомления
}

// Profile агрегирует пользователя с его подпиской для выдачи фронтенду.
type Profile struct {
	User         *User         `json:"user"`
	Subscription *Subscription `json:"subscription"`
}
