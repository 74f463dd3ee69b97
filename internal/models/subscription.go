package models

import "time"

// Tier уровень подписки.
type Tier string

// Уровни подписки.
const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
	TierPro     Tier = "pro"
)

// Valid сообщает, является ли значение известным уровнем подписки.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPremium, TierPro:
		return true
	}
	return false
}

// Subscription представляет подписку пользователя, ровно одна на пользователя.
// ExpiresAt == nil или дата в прошлом означает, что платный период истёк.
type Subscription struct {
	ID               string     // Внутренний UUID
	UserID           string     // UUID пользователя-владельца
	Tier             Tier       // Уровень подписки
	ExpiresAt        *time.Time // Дата окончания платного периода (nil для free)
	AutoRenew        bool       // Автопродление
	DailyRequests    int        // Счетчик запросов за текущие сутки
	LastResetDate    time.Time  // Дата последнего сброса счетчика (только дата)
	ReferralCode     *string    // Собственный реферальный код (уникальный)
	ReferralsCount   int        // Сколько пользователей пришло по коду
	ReferredByUserID *int64     // Telegram id пригласившего (не более одного за всю жизнь)
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// QuotaInfo результат проверки дневной квоты.
type QuotaInfo struct {
	Tier          Tier `json:"tier"`
	Limit         int  `json:"limit"`     // -1 означает безлимит
	Remaining     int  `json:"remaining"` // -1 означает безлимит
	RetryAfterSec int  `json:"retry_after_sec,omitempty"`
}

// ExpiredSubscription идентификаторы подписки, переведенной на free
// очисткой истекших. Используется для уведомления пользователя.
type ExpiredSubscription struct {
	SubscriptionID string `json:"subscription_id"`
	UserID         string `json:"user_id"`
	TelegramID     int64  `json:"telegram_id"`
	Tier           Tier   `json:"tier"`
}

// DummyApplyReferral используется для приёма реферального кода из JSON-запроса.
type DummyApplyReferral struct {
	Code string `json:"code" validate:"required,min=4,max=32"` // Реферальный код
}
