package cache

import "time"

// Noop реализация Cache для работы без Redis: каждый Get промахивается,
// записи и инвалидации ничего не делают. Выбирается конфигом,
// а не обнаруживается по ошибкам в рантайме.
type Noop struct{}

// NewNoop создает no-op кеш.
func NewNoop() *Noop {
	return &Noop{}
}

// Get всегда возвращает промах.
func (n *Noop) Get(_ string, _ any) (bool, error) {
	return false, nil
}

// Set ничего не делает.
func (n *Noop) Set(_ string, _ any, _ time.Duration) error {
	return nil
}

// Invalidate ничего не делает.
func (n *Noop) Invalidate(_ string) error {
	return nil
}

// InvalidatePrefix ничего не делает.
func (n *Noop) InvalidatePrefix(_ string) error {
	return nil
}
