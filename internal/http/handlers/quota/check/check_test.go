package check

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/faceit-stats-bot/internal/lib/errs"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/models"
)

// Мок сервиса с методом CanMakeRequest
type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) CanMakeRequest(ctx context.Context, telegramID int64) (bool, *models.QuotaInfo, error) {
	args := m.Called(ctx, telegramID)
	var info *models.QuotaInfo
	if args.Get(1) != nil {
		info = args.Get(1).(*models.QuotaInfo)
	}
	return args.Bool(0), info, args.Error(2)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestCheckHandler_ServeHTTP(t *testing.T) {
	serviceMock := new(ServiceMock)
	logger := newNoopLogger()

	handler := New(logger, serviceMock)

	tests := []struct {
		name           string
		telegramID     string
		mockAllowed    bool
		mockInfo       *models.QuotaInfo
		mockErr        error
		skipMock       bool
		wantStatusCode int
		wantRemaining  float64
		wantError      string
	}{
		{
			name:           "quota available",
			telegramID:     "100500",
			mockAllowed:    true,
			mockInfo:       &models.QuotaInfo{Tier: models.TierFree, Limit: 10, Remaining: 7},
			wantStatusCode: http.StatusOK,
			wantRemaining:  7,
		},
		{
			name:        "quota exhausted",
			telegramID:  "100500",
			mockAllowed: false,
			mockInfo: &models.QuotaInfo{
				Tier: models.TierFree, Limit: 10, Remaining: 0, RetryAfterSec: 3600,
			},
			wantStatusCode: http.StatusTooManyRequests,
			wantRemaining:  0,
		},
		{
			name:           "unlimited tier",
			telegramID:     "100500",
			mockAllowed:    true,
			mockInfo:       &models.QuotaInfo{Tier: models.TierPro, Limit: -1, Remaining: -1},
			wantStatusCode: http.StatusOK,
			wantRemaining:  -1,
		},
		{
			name:           "user not found",
			telegramID:     "100500",
			mockErr:        errs.ErrUserNotFound,
			wantStatusCode: http.StatusNotFound,
			wantError:      "user not found",
		},
		{
			name:           "invalid telegram id",
			telegramID:     "abc",
			skipMock:       true,
			wantStatusCode: http.StatusBadRequest,
			wantError:      "invalid telegram id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			serviceMock.ExpectedCalls = nil
			serviceMock.Calls = nil

			if !tt.skipMock {
				serviceMock.On("CanMakeRequest", mock.Anything, int64(100500)).
					Return(tt.mockAllowed, tt.mockInfo, tt.mockErr).Once()
			}

			req := httptest.NewRequest(http.MethodGet, "/quota/"+tt.telegramID, nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("telegram_id", tt.telegramID)
			ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
			ctx = context.WithValue(ctx, middleware.RequestIDKey, "reqid123")
			req = req.WithContext(ctx)

			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)

			var got map[string]any
			err := json.NewDecoder(rec.Body).Decode(&got)
			assert.NoError(t, err)

			if tt.wantError != "" {
				assert.Equal(t, "Error", got["status"])
				assert.Equal(t, tt.wantError, got["error"])
			} else {
				assert.Equal(t, "OK", got["status"])
				data, ok := got["data"].(map[string]any)
				assert.True(t, ok)
				assert.Equal(t, tt.wantRemaining, data["remaining"])
			}

			serviceMock.AssertExpectations(t)
		})
	}
}
