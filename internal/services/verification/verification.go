// Package verification управляет короткоживущими кодами подтверждения
// email: выпуск с cooldown, чтение, проверка и удаление.
//
// Коды хранятся только в ephemeral-хранилище и исчезают либо по TTL,
// либо после успешной проверки.
package verification

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/magabrotheeeer/auth-service/internal/lib/sl"
	"github.com/magabrotheeeer/auth-service/internal/models"
)

var (
	// ErrSetVerificationKey — сбой хранилища при сохранении кода.
	ErrSetVerificationKey = errors.New("failed to set verification key")
	// ErrGetVerificationKey — сбой хранилища при чтении кода.
	ErrGetVerificationKey = errors.New("failed to get verification key")
	// ErrValidateVerificationKey — сбой хранилища при проверке кода.
	ErrValidateVerificationKey = errors.New("failed to validate verification key")
	// ErrDeleteVerificationKey — сбой хранилища при удалении кода.
	ErrDeleteVerificationKey = errors.New("failed to delete verification key")
	// ErrNextCodeAttempt — повторный запрос кода раньше, чем истек cooldown.
	ErrNextCodeAttempt = errors.New("next code attempt not passed yet")
)

const codeLength = 6

// Store описывает контракт ephemeral-хранилища кодов.
type Store interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Get(ctx context.Context, key string, result any) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Manager выпускает и проверяет коды подтверждения.
type Manager struct {
	store    Store
	log      *slog.Logger
	ttl      time.Duration
	cooldown time.Duration
}

// New создает новый экземпляр Manager. ttl задает время жизни кода,
// cooldown — минимальный интервал между выпусками для одного subject.
func New(store Store, log *slog.Logger, ttl, cooldown time.Duration) *Manager {
	return &Manager{
		store:    store,
		log:      log,
		ttl:      ttl,
		cooldown: cooldown,
	}
}

func key(subject string) string {
	return "verification:" + subject
}

// Issue генерирует и сохраняет новый код для subject.
//
// Перед перезаписью читается issued_at предыдущего кода: если с момента
// его выпуска прошло меньше cooldown, возвращается ErrNextCodeAttempt,
// а старый код остается действующим.
func (m *Manager) Issue(ctx context.Context, subject string) (string, error) {
	const op = "verification.Issue"

	var prev models.VerificationKey
	found, err := m.store.Get(ctx, key(subject), &prev)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, ErrSetVerificationKey, err)
	}
	now := time.Now().UTC()
	if found && now.Sub(prev.IssuedAt) < m.cooldown {
		return "", fmt.Errorf("%s: %w", op, ErrNextCodeAttempt)
	}

	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	record := models.VerificationKey{
		Code:     code,
		IssuedAt: now,
	}
	if err := m.store.Set(ctx, key(subject), record, m.ttl); err != nil {
		m.log.Error("failed to store verification key", sl.Err(err))
		return "", fmt.Errorf("%s: %w: %w", op, ErrSetVerificationKey, err)
	}

	m.log.Info("verification code issued", sl.Secret("subject", subject))
	return code, nil
}

// Read возвращает текущий код subject. Отсутствие кода — нормальный
// исход (found=false), а не ошибка.
func (m *Manager) Read(ctx context.Context, subject string) (string, bool, error) {
	const op = "verification.Read"

	var record models.VerificationKey
	found, err := m.store.Get(ctx, key(subject), &record)
	if err != nil {
		return "", false, fmt.Errorf("%s: %w: %w", op, ErrGetVerificationKey, err)
	}
	if !found {
		return "", false, nil
	}
	return record.Code, true, nil
}

// Validate сравнивает кандидата с сохраненным кодом.
func (m *Manager) Validate(ctx context.Context, subject, candidate string) (bool, error) {
	const op = "verification.Validate"

	var record models.VerificationKey
	found, err := m.store.Get(ctx, key(subject), &record)
	if err != nil {
		return false, fmt.Errorf("%s: %w: %w", op, ErrValidateVerificationKey, err)
	}
	if !found {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(record.Code), []byte(candidate)) == 1, nil
}

// Delete удаляет сохраненный код после успешной проверки.
func (m *Manager) Delete(ctx context.Context, subject string) error {
	const op = "verification.Delete"

	if err := m.store.Delete(ctx, key(subject)); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrDeleteVerificationKey, err)
	}
	return nil
}

// Confirm проверяет кандидата и при успехе удаляет код: каждый код
// можно использовать не более одного раза.
func (m *Manager) Confirm(ctx context.Context, subject, candidate string) (bool, error) {
	const op = "verification.Confirm"

	ok, err := m.Validate(ctx, subject, candidate)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return false, nil
	}
	if err := m.Delete(ctx, subject); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

func generateCode() (string, error) {
	const digits = "0123456789"
	buf := make([]byte, codeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		buf[i] = digits[n.Int64()]
	}
	return string(buf), nil
}
