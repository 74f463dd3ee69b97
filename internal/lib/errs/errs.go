// Package errs определяет общие типы и сентинел-ошибки доменного слоя.
//
// Сервисы возвращают эти ошибки вместо "сырых" ошибок драйвера БД,
// чтобы HTTP-слой мог выбрать корректный ответ пользователю,
// не зная деталей хранилища.
package errs

import (
	"errors"
	"fmt"
	"time"
)

// Ошибки уровня хранилища. Репозиторий переводит ошибки драйвера
// в одну из них, текст исходной ошибки остается только в логах.
var (
	// ErrNotFound запись не найдена.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists нарушение уникального ограничения.
	ErrAlreadyExists = errors.New("already exists")
	// ErrOperation любая другая ошибка операции с хранилищем.
	ErrOperation = errors.New("storage operation failed")
)

// Бизнес-ошибки. Текст подходит для показа пользователю.
var (
	// ErrUserNotFound пользователь не зарегистрирован.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserAlreadyExists пользователь с таким telegram id уже есть.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrAccountAlreadyLinked ник FACEIT уже привязан к другому аккаунту.
	ErrAccountAlreadyLinked = errors.New("already linked to another account")
	// ErrSelfReferral попытка применить собственный реферальный код.
	ErrSelfReferral = errors.New("cannot apply your own referral code")
	// ErrReferralAlreadyApplied реферальный код уже применялся этим пользователем.
	ErrReferralAlreadyApplied = errors.New("referral code already applied")
	// ErrReferralCodeUnknown код не принадлежит ни одной подписке.
	ErrReferralCodeUnknown = errors.New("unknown referral code")
	// ErrPaymentNotFound нет подходящего платежа в статусе pending.
	ErrPaymentNotFound = errors.New("pending payment not found")
	// ErrPaymentUserMismatch id пользователя в payload не совпадает с плательщиком.
	ErrPaymentUserMismatch = errors.New("payment payload does not match user")
	// ErrPaymentAlreadySettled платеж уже в терминальном статусе.
	ErrPaymentAlreadySettled = errors.New("payment already settled")
)

// ValidationError ошибка валидации входных данных с указанием поля.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %s: %s", e.Field, e.Reason)
}

// NewValidation создает ValidationError для поля field.
func NewValidation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// RateLimitError превышение дневной квоты, содержит время до сброса.
type RateLimitError struct {
	Tier       string
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("daily limit %d reached for tier %s, retry after %s",
		e.Limit, e.Tier, e.RetryAfter)
}

// IsBusiness сообщает, относится ли ошибка к нарушению бизнес-правила,
// текст которого можно показать пользователю как есть.
func IsBusiness(err error) bool {
	for _, target := range []error{
		ErrUserNotFound, ErrUserAlreadyExists, ErrAccountAlreadyLinked,
		ErrSelfReferral, ErrReferralAlreadyApplied, ErrReferralCodeUnknown,
		ErrPaymentNotFound, ErrPaymentUserMismatch, ErrPaymentAlreadySettled,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
