// Package middlewarectx содержит HTTP middleware: проверку сервисного
// JWT токена фронтенда бота и ограничение частоты запросов.
//
// Бэкенд обслуживает только доверенный фронтенд: токен подтверждает
// сервис-клиент, идентификатор пользователя телеграма приходит в запросе.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/faceit-stats-bot/internal/http/response"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/lib/jwt"
	"github.com/magabrotheeeer/faceit-stats-bot/internal/lib/sl"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// ServiceName — ключ для имени сервиса-клиента в контексте.
const ServiceName Key = "service"

// Maker описывает интерфейс проверки сервисного токена.
type Maker interface {
	ParseToken(tokenStr string) (*jwt.CustomClaims, error)
}

// JWTMiddleware возвращает HTTP middleware, который проверяет сервисный
// JWT в заголовке Authorization.
//
// Если токен валиден, добавляет имя сервиса-клиента в контекст запроса,
// иначе возвращает ошибку с HTTP статусом 401 Unauthorized.
func JWTMiddleware(maker Maker, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Error("missing or invalid authorization header")
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}

			claims, err := maker.ParseToken(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				log.Error("invalid service token", sl.Err(err))
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid token"))
				return
			}

			ctx := context.WithValue(r.Context(), ServiceName, claims.Service)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
