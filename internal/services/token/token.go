// Package token содержит логику бизнес-уровня для работы с refresh-токенами:
// выпуск, ротацию, проверку и отзыв.
//
// Жизненный цикл токена: Active -> Blocked (необратимо, при явном отзыве или
// ротации) и Active -> Expired (вычисляется лениво из expire_at, в базу не
// записывается).
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/auth-service/internal/lib/sl"
	"github.com/magabrotheeeer/auth-service/internal/models"
	"github.com/magabrotheeeer/auth-service/internal/storage"
)

var (
	// ErrTokenAbsent — refresh-токен с таким идентификатором не найден.
	ErrTokenAbsent = errors.New("refresh token absent")

	// ErrTokenExpired — срок действия токена истек.
	ErrTokenExpired = errors.New("refresh token expired")

	// ErrTokenBlacklisted — токен уже отозван: явным revoke либо проигранной
	// гонкой ротации. Повторное предъявление отозванного токена — сигнал
	// возможной кражи, логируется как security-событие.
	ErrTokenBlacklisted = errors.New("refresh token blacklisted")

	// ErrInvalidTokenData — отпечаток клиента не совпал с тем, для которого
	// выпускался токен.
	ErrInvalidTokenData = errors.New("invalid refresh token data")

	// ErrRefreshTokenCreation — транзакция ротации не была применена.
	ErrRefreshTokenCreation = errors.New("refresh token was not created")

	// ErrUserDoesNotExist — выпуск токена для несуществующего пользователя.
	ErrUserDoesNotExist = errors.New("user does not exist")
)

// Repository описывает контракт хранилища, необходимый сервису токенов.
type Repository interface {
	GetUserByUID(ctx context.Context, uid string) (*models.User, error)
	CreateRefreshToken(ctx context.Context, token models.RefreshToken) error
	GetRefreshToken(ctx context.Context, tokenID string) (*models.RefreshToken, error)
	GetActiveTokenByFingerprint(ctx context.Context, userUID, fingerprint string) (*models.RefreshToken, error)
	BlockRefreshTokenIfActive(ctx context.Context, tokenID string) (bool, error)
	RotateRefreshToken(ctx context.Context, oldTokenID string, next models.RefreshToken) error
}

// Authority отвечает за жизненный цикл refresh-токенов.
type Authority struct {
	repo      Repository
	log       *slog.Logger
	tokenTTL  time.Duration
	enforceIP bool
}

// New создает новый экземпляр Authority.
//
// enforceIP управляет политикой проверки IP при валидации: по умолчанию
// несовпадение только логируется, с enforceIP=true оно становится ошибкой.
func New(repo Repository, log *slog.Logger, tokenTTL time.Duration, enforceIP bool) *Authority {
	return &Authority{
		repo:      repo,
		log:       log,
		tokenTTL:  tokenTTL,
		enforceIP: enforceIP,
	}
}

// Issue выпускает новый активный токен для пары (пользователь, отпечаток).
//
// Прежний активный токен этой пары, если он есть, отзывается: в каждый
// момент времени у пары есть не более одного активного токена. Инвариант
// подкреплен частичным уникальным индексом в базе, поэтому проигравший
// конкурентную выдачу получает ErrAlreadyExists на вставке, отзывает
// токен победителя и повторяет попытку.
func (a *Authority) Issue(ctx context.Context, userUID, fingerprint string, ip *string) (*models.RefreshToken, error) {
	const op = "token.Issue"

	if _, err := a.repo.GetUserByUID(ctx, userUID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserDoesNotExist)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		prev, err := a.repo.GetActiveTokenByFingerprint(ctx, userUID, fingerprint)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if prev != nil {
			if _, err := a.repo.BlockRefreshTokenIfActive(ctx, prev.ID); err != nil &&
				!errors.Is(err, storage.ErrNotFound) {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		}

		now := time.Now().UTC()
		next := models.RefreshToken{
			ID:          uuid.NewString(),
			UserUID:     userUID,
			Fingerprint: fingerprint,
			IP:          ip,
			IsBlocked:   false,
			ExpireAt:    now.Add(a.tokenTTL),
			CreatedAt:   now,
		}
		if err := a.repo.CreateRefreshToken(ctx, next); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				a.log.Warn("lost issue race, retrying with winner revoked",
					slog.String("user_uid", userUID))
				continue
			}
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		a.log.Info("refresh token issued",
			slog.String("user_uid", userUID),
			slog.String("token_id", next.ID))
		return &next, nil
	}

	return nil, fmt.Errorf("%s: %w", op, ErrRefreshTokenCreation)
}

// Rotate отзывает токен и атомарно создает его преемника для той же пары
// (пользователь, отпечаток). Обе мутации применяются в одной транзакции.
//
// Повторная ротация уже отозванного токена возвращает ErrTokenBlacklisted —
// это и есть сигнал replay-атаки, он фиксируется в журнале безопасности.
func (a *Authority) Rotate(ctx context.Context, tokenID string) (*models.RefreshToken, error) {
	const op = "token.Rotate"

	old, err := a.repo.GetRefreshToken(ctx, tokenID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrTokenAbsent)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if old.IsBlocked {
		a.log.Warn("rotation of blacklisted token, possible replay",
			slog.String("user_uid", old.UserUID),
			slog.String("token_id", old.ID))
		return nil, fmt.Errorf("%s: %w", op, ErrTokenBlacklisted)
	}

	now := time.Now().UTC()
	next := models.RefreshToken{
		ID:          uuid.NewString(),
		UserUID:     old.UserUID,
		Fingerprint: old.Fingerprint,
		IP:          old.IP,
		IsBlocked:   false,
		ExpireAt:    now.Add(a.tokenTTL),
		CreatedAt:   now,
	}
	if err := a.repo.RotateRefreshToken(ctx, old.ID, next); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			// Проигранная гонка: кто-то успел отозвать токен первым.
			a.log.Warn("lost rotation race, token already blacklisted",
				slog.String("user_uid", old.UserUID),
				slog.String("token_id", old.ID))
			return nil, fmt.Errorf("%s: %w", op, ErrTokenBlacklisted)
		}
		a.log.Error("rotation transaction failed", sl.Err(err),
			slog.String("token_id", old.ID))
		return nil, fmt.Errorf("%s: %w", op, ErrRefreshTokenCreation)
	}

	a.log.Info("refresh token rotated",
		slog.String("user_uid", old.UserUID),
		slog.String("old_token_id", old.ID),
		slog.String("new_token_id", next.ID))
	return &next, nil
}

// Validate проверяет токен и возвращает UID владельца.
//
// Порядок проверок: существование -> истечение -> отзыв -> отпечаток.
// Истечение имеет приоритет над отзывом: просроченный токен всегда дает
// ErrTokenExpired независимо от флага is_blocked. Несовпадение IP по
// умолчанию только логируется (см. enforceIP).
func (a *Authority) Validate(ctx context.Context, tokenID, fingerprint string, ip *string) (string, error) {
	const op = "token.Validate"

	t, err := a.repo.GetRefreshToken(ctx, tokenID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", fmt.Errorf("%s: %w", op, ErrTokenAbsent)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if t.IsExpired(time.Now().UTC()) {
		return "", fmt.Errorf("%s: %w", op, ErrTokenExpired)
	}
	if t.IsBlocked {
		a.log.Warn("blacklisted token presented",
			slog.String("user_uid", t.UserUID),
			slog.String("token_id", t.ID))
		return "", fmt.Errorf("%s: %w", op, ErrTokenBlacklisted)
	}
	if t.Fingerprint != fingerprint {
		a.log.Warn("token fingerprint mismatch",
			slog.String("user_uid", t.UserUID),
			slog.String("token_id", t.ID))
		return "", fmt.Errorf("%s: %w", op, ErrInvalidTokenData)
	}
	if t.IP != nil && ip != nil && *t.IP != *ip {
		a.log.Warn("token ip mismatch",
			slog.String("user_uid", t.UserUID),
			slog.String("token_id", t.ID),
			sl.Secret("issued_ip", *t.IP),
			sl.Secret("presented_ip", *ip))
		if a.enforceIP {
			return "", fmt.Errorf("%s: %w", op, ErrInvalidTokenData)
		}
	}

	return t.UserUID, nil
}

// Revoke отзывает токен (logout или административное действие).
// Операция идемпотентна: повторный отзыв уже отозванного токена — no-op.
func (a *Authority) Revoke(ctx context.Context, tokenID string) error {
	const op = "token.Revoke"

	blocked, err := a.repo.BlockRefreshTokenIfActive(ctx, tokenID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrTokenAbsent)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if blocked {
		a.log.Info("refresh token revoked", slog.String("token_id", tokenID))
	}
	return nil
}
