// Package migration реализует одноразовый перенос пользовательских
// данных из JSON-снимка в PostgreSQL: загрузку и валидацию источника,
// резервную копию, пакетный перенос с ограниченной конкурентностью,
// проверку целостности и откат.
package migration

import (
	"encoding/json"
	"fmt"
	"os"
)

// SourceSubscription подписка пользователя в JSON-снимке.
type SourceSubscription struct {
	Tier           string  `json:"tier"`
	ExpiresAt      *string `json:"expires_at"`
	DailyRequests  int     `json:"daily_requests"`
	ReferralCode   *string `json:"referral_code"`
	ReferredBy     *int64  `json:"referred_by"`
	ReferralsCount int     `json:"referrals_count"`
	AutoRenew      bool    `json:"auto_renew"`
}

// SourceUser пользователь в JSON-снимке. Обязателен только user_id,
// остальные поля опциональны.
type SourceUser struct {
	UserID         int64               `json:"user_id"`
	FaceitPlayerID *string             `json:"faceit_player_id"`
	FaceitNickname *string             `json:"faceit_nickname"`
	Language       string              `json:"language"`
	CreatedAt      *string             `json:"created_at"`
	LastActiveAt   *string             `json:"last_active_at"`
	Subscription   *SourceSubscription `json:"subscription"`
}

// SourceFile корневой объект JSON-снимка.
type SourceFile struct {
	Users []SourceUser `json:"users"`
}

// Load читает и разбирает JSON-снимок. Структурно некорректный файл
// является фатальной ошибкой запуска.
func Load(path string) (*SourceFile, error) {
	const op = "migration.Load"

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var src SourceFile
	if err := json.Unmarshal(data, &src); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if src.Users == nil {
		return nil, fmt.Errorf("%s: source file has no \"users\" key", op)
	}
	return &src, nil
}

// Report результат структурной валидации источника. Errors относятся
// к конкретным записям и приводят к их пропуску, Warnings только логируются.
type Report struct {
	Errors   []string
	Warnings []string
	// BadRecords индексы записей, которые нельзя переносить.
	BadRecords map[int]bool
}

// Validate проверяет все записи источника, не останавливаясь
// на первой проблеме.
func Validate(src *SourceFile) *Report {
	report := &Report{BadRecords: make(map[int]bool)}
	seen := make(map[int64]int, len(src.Users))

	for i, rec := range src.Users {
		if rec.UserID == 0 {
			report.fail(i, fmt.Sprintf("record %d: missing or zero user_id", i))
			continue
		}
		if first, ok := seen[rec.UserID]; ok {
			report.fail(i, fmt.Sprintf("record %d: duplicate user_id %d (first at record %d)", i, rec.UserID, first))
			continue
		}
		seen[rec.UserID] = i

		if rec.Subscription != nil && rec.Subscription.Tier != "" {
			if _, err := coerceTier(rec.Subscription.Tier); err != nil {
				report.fail(i, fmt.Sprintf("record %d: %v", i, err))
				continue
			}
		}
		if rec.CreatedAt != nil {
			if _, err := coerceTime(*rec.CreatedAt); err != nil {
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("record %d: unparsable created_at %q, registration date will default", i, *rec.CreatedAt))
			}
		}
		if (rec.FaceitPlayerID == nil) != (rec.FaceitNickname == nil) {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("record %d: partial faceit link, both fields will be dropped", i))
		}
	}
	return report
}

func (r *Report) fail(index int, message string) {
	r.Errors = append(r.Errors, message)
	r.BadRecords[index] = true
}
