package migration

import (
	"fmt"
	"time"

	"github.com/magabrotheeeer/faceit-stats-bot/internal/models"
)

// Форматы дат, встречающиеся в снимках разных версий.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func coerceTime(value string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", value)
}

func coerceTier(value string) (models.Tier, error) {
	tier := models.Tier(value)
	if !tier.Valid() {
		return "", fmt.Errorf("unknown tier %q", value)
	}
	return tier, nil
}

// MapRecord переводит запись снимка в пару пользователь+подписка.
// Отсутствующие опциональные поля получают значения по умолчанию,
// неразбираемые даты отбрасываются.
func MapRecord(rec SourceUser, now time.Time) (models.User, models.Subscription, error) {
	if rec.UserID == 0 {
		return models.User{}, models.Subscription{}, fmt.Errorf("missing or zero user_id")
	}

	user := models.User{
		TelegramID:           rec.UserID,
		Language:             rec.Language,
		NotificationsEnabled: true,
	}
	if user.Language == "" {
		user.Language = "en"
	}
	// Частичная привязка FACEIT бесполезна, переносится только полная пара.
	if rec.FaceitPlayerID != nil && rec.FaceitNickname != nil {
		user.FaceitPlayerID = rec.FaceitPlayerID
		user.FaceitNickname = rec.FaceitNickname
	}
	if rec.CreatedAt != nil {
		if t, err := coerceTime(*rec.CreatedAt); err == nil {
			user.CreatedAt = t
		}
	}
	if rec.LastActiveAt != nil {
		if t, err := coerceTime(*rec.LastActiveAt); err == nil {
			user.LastActiveAt = &t
		}
	}

	y, m, d := now.UTC().Date()
	sub := models.Subscription{
		Tier:          models.TierFree,
		LastResetDate: time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
	}
	if rec.Subscription != nil {
		src := rec.Subscription
		if src.Tier != "" {
			tier, err := coerceTier(src.Tier)
			if err != nil {
				return models.User{}, models.Subscription{}, err
			}
			sub.Tier = tier
		}
		if src.ExpiresAt != nil {
			if t, err := coerceTime(*src.ExpiresAt); err == nil {
				sub.ExpiresAt = &t
			}
		}
		sub.DailyRequests = src.DailyRequests
		sub.ReferralCode = src.ReferralCode
		sub.ReferredByUserID = src.ReferredBy
		sub.ReferralsCount = src.ReferralsCount
		sub.AutoRenew = src.AutoRenew
	}
	return user, sub, nil
}
