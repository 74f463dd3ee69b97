package migration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/faceit-stats-bot/internal/models"
)

func strPtr(s string) *string { return &s }

func TestMapRecord(t *testing.T) {
	now := time.Date(2025, 6, 15, 13, 45, 0, 0, time.UTC)

	t.Run("full record round trips", func(t *testing.T) {
		expires := "2025-07-01T00:00:00Z"
		code := "REFABC123456"
		referredBy := int64(555)
		rec := SourceUser{
			UserID:         100,
			FaceitPlayerID: strPtr("fp-1"),
			FaceitNickname: strPtr("s1mple"),
			Language:       "ru",
			CreatedAt:      strPtr("2024-01-02T10:00:00Z"),
			Subscription: &SourceSubscription{
				Tier:           "premium",
				ExpiresAt:      &expires,
				DailyRequests:  42,
				ReferralCode:   &code,
				ReferredBy:     &referredBy,
				ReferralsCount: 3,
				AutoRenew:      true,
			},
		}

		user, sub, err := MapRecord(rec, now)

		require.NoError(t, err)
		assert.Equal(t, int64(100), user.TelegramID)
		assert.Equal(t, "fp-1", *user.FaceitPlayerID)
		assert.Equal(t, "s1mple", *user.FaceitNickname)
		assert.Equal(t, "ru", user.Language)
		assert.Equal(t, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), user.CreatedAt)
		assert.Equal(t, models.TierPremium, sub.Tier)
		assert.Equal(t, 42, sub.DailyRequests)
		assert.Equal(t, code, *sub.ReferralCode)
		assert.Equal(t, int64(555), *sub.ReferredByUserID)
		assert.True(t, sub.AutoRenew)
		require.NotNil(t, sub.ExpiresAt)
		assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), *sub.ExpiresAt)
	})

	t.Run("minimal record gets defaults", func(t *testing.T) {
		user, sub, err := MapRecord(SourceUser{UserID: 7}, now)

		require.NoError(t, err)
		assert.Equal(t, "en", user.Language)
		assert.True(t, user.NotificationsEnabled)
		assert.Nil(t, user.FaceitPlayerID)
		assert.Equal(t, models.TierFree, sub.Tier)
		assert.Zero(t, sub.DailyRequests)
		assert.Nil(t, sub.ExpiresAt)
		assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), sub.LastResetDate)
	})

	t.Run("partial faceit link dropped", func(t *testing.T) {
		user, _, err := MapRecord(SourceUser{UserID: 7, FaceitNickname: strPtr("solo")}, now)

		require.NoError(t, err)
		assert.Nil(t, user.FaceitPlayerID)
		assert.Nil(t, user.FaceitNickname)
	})

	t.Run("missing user id rejected", func(t *testing.T) {
		_, _, err := MapRecord(SourceUser{}, now)
		assert.Error(t, err)
	})

	t.Run("unknown tier rejected", func(t *testing.T) {
		_, _, err := MapRecord(SourceUser{
			UserID:       7,
			Subscription: &SourceSubscription{Tier: "gold"},
		}, now)
		assert.Error(t, err)
	})

	t.Run("unparsable dates dropped", func(t *testing.T) {
		user, _, err := MapRecord(SourceUser{
			UserID:    7,
			CreatedAt: strPtr("yesterday"),
		}, now)

		require.NoError(t, err)
		assert.True(t, user.CreatedAt.IsZero())
	})
}

func TestCoerceTime(t *testing.T) {
	for _, value := range []string{
		"2024-01-02T10:00:00Z",
		"2024-01-02T10:00:00",
		"2024-01-02 10:00:00",
		"2024-01-02",
	} {
		got, err := coerceTime(value)
		require.NoError(t, err, value)
		assert.Equal(t, 2024, got.Year(), value)
	}

	_, err := coerceTime("02.01.2024")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	src := &SourceFile{Users: []SourceUser{
		{UserID: 1},
		{},           // без user_id
		{UserID: 1},  // дубликат
		{UserID: 2, Subscription: &SourceSubscription{Tier: "gold"}},
		{UserID: 3, FaceitNickname: strPtr("half")},
	}}

	report := Validate(src)

	assert.Len(t, report.Errors, 3)
	assert.Equal(t, map[int]bool{1: true, 2: true, 3: true}, report.BadRecords)
	assert.Len(t, report.Warnings, 1)
}
