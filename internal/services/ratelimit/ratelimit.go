// Package ratelimit реализует лимитер попыток аутентификации
// по схеме fixed window поверх атомарного счетчика в Redis.
//
// Лимит считается независимо по двум осям: по идентификатору пользователя
// и по email. Это не дает обойти блокировку аккаунта перебором email
// и наоборот.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Scope — ось, по которой считаются попытки.
type Scope string

const (
	// ScopeUser — лимит по идентификатору пользователя.
	ScopeUser Scope = "user"
	// ScopeEmail — лимит по адресу электронной почты.
	ScopeEmail Scope = "email"
)

// LimitExceededError возвращается при превышении числа попыток в окне.
// Ось, по которой сработал лимит, лежит в поле Scope: это одно условие
// с параметром, а не отдельный тип на каждую ось.
type LimitExceededError struct {
	Scope Scope
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for scope %s", e.Scope)
}

// Counter описывает контракт атомарного счетчика с TTL.
type Counter interface {
	// Incr увеличивает счетчик и возвращает новое значение. TTL
	// выставляется при создании ключа и не продлевается.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Limiter отслеживает попытки аутентификации по subject и scope.
type Limiter struct {
	counter     Counter
	log         *slog.Logger
	maxAttempts int64
	window      time.Duration
}

// New создает новый экземпляр Limiter с порогом maxAttempts попыток
// в окне window.
func New(counter Counter, log *slog.Logger, maxAttempts int, window time.Duration) *Limiter {
	return &Limiter{
		counter:     counter,
		log:         log,
		maxAttempts: int64(maxAttempts),
		window:      window,
	}
}

func key(subject string, scope Scope) string {
	return "ratelimit:" + string(scope) + ":" + subject
}

// CheckAndIncrement атомарно увеличивает счетчик попыток для пары
// (subject, scope) и сравнивает его с порогом. Сброс окна выполняет
// сам Redis по TTL ключа, отдельной очистки нет.
func (l *Limiter) CheckAndIncrement(ctx context.Context, subject string, scope Scope) error {
	const op = "ratelimit.CheckAndIncrement"

	count, err := l.counter.Incr(ctx, key(subject, scope), l.window)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if count > l.maxAttempts {
		l.log.Warn("rate limit exceeded",
			slog.String("scope", string(scope)),
			slog.Int64("attempts", count))
		return fmt.Errorf("%s: %w", op, &LimitExceededError{Scope: scope})
	}
	return nil
}
