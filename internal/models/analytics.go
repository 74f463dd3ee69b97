package models

import (
	"encoding/json"
	"time"
)

// Metric обобщенная метрика для внутренней аналитики.
// Таблица append-only, старые строки удаляются по возрасту.
type Metric struct {
	ID         string          // Внутренний UUID
	MetricName string          // Имя метрики
	Value      float64         // Значение
	MetricType string          // counter, gauge и т.п.
	Tags       json.RawMessage // Произвольные метки
	Timestamp  time.Time       // Момент измерения
	Period     string          // Период агрегации (hour, day, ...)
}
