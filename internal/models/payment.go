package models

import "time"

// PaymentStatus статус платежа.
type PaymentStatus string

// Статусы платежа. Из pending платеж переходит ровно в один
// терминальный статус: completed либо failed.
const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Duration длительность оплачиваемого периода.
type Duration string

// Допустимые длительности.
const (
	DurationMonthly Duration = "monthly"
	DurationYearly  Duration = "yearly"
)

// Valid сообщает, является ли значение известной длительностью.
func (d Duration) Valid() bool {
	return d == DurationMonthly || d == DurationYearly
}

// Payment представляет платеж пользователя за подписку.
// PaymentPayload кодирует tier, длительность и telegram id плательщика
// в виде "{tier}_{duration}_{telegram_id}" и проверяется при подтверждении.
type Payment struct {
	ID                   string        // Внутренний UUID
	UserID               string        // UUID пользователя-плательщика
	Amount               int           // Сумма в минимальных единицах валюты, > 0
	Status               PaymentStatus // Текущий статус
	SubscriptionTier     Tier          // Оплачиваемый уровень
	SubscriptionDuration Duration      // monthly или yearly
	DurationDays         int           // Количество дней периода
	TelegramChargeID     *string       // Идентификатор списания в телеграме
	ProviderChargeID     *string       // Идентификатор списания у провайдера
	PaymentPayload       string        // Закодированное намерение платежа
	CreatedAt            time.Time
	CompletedAt          *time.Time // Момент перехода в терминальный статус
}

// DummyInvoice используется для приёма данных создания счета из JSON-запроса.
type DummyInvoice struct {
	Tier     string `json:"tier" validate:"required,oneof=premium pro"`        // Оплачиваемый уровень
	Duration string `json:"duration" validate:"required,oneof=monthly yearly"` // Длительность периода
}

// DummyWebhook используется для приёма подтверждения платежа от провайдера.
type DummyWebhook struct {
	TelegramID       int64  `json:"telegram_id" validate:"required"`                  // Телеграм id плательщика
	Payload          string `json:"payload" validate:"required"`                      // payment_payload из счета
	ProviderChargeID string `json:"provider_charge_id" validate:"required"`           // Идентификатор списания
	TelegramChargeID string `json:"telegram_charge_id,omitempty"`                     // Идентификатор в телеграме
	Status           string `json:"status" validate:"required,oneof=success failure"` // Результат оплаты
}

// Invoice результат создания счета, отдается фронтенду для выставления.
type Invoice struct {
	PaymentID    string   `json:"payment_id"`
	Amount       int      `json:"amount"`
	Tier         Tier     `json:"tier"`
	Duration     Duration `json:"duration"`
	DurationDays int      `json:"duration_days"`
	Payload      string   `json:"payload"`
}
