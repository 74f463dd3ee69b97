// Package cache предоставляет кеш поверх Redis и его no-op замену.
// Кеш является только оптимизацией: промах или отключенный кеш всегда
// приводят к чтению из хранилища, согласованность не гарантируется.
package cache

import "time"

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(key string) error
	// InvalidatePrefix удаляет все ключи с данным префиксом.
	InvalidatePrefix(prefix string) error
}
