// Package auth содержит логику бизнес-уровня для работы с пользователями
// и аутентификацией: регистрацию, вход, обновление сессии и подтверждение
// email.
//
// Каждая попытка входа сначала проходит лимитер попыток, затем проверку
// учетных данных. Клиенту возвращаются нарочито общие ошибки
// (ErrInvalidCredentials), точная причина остается в журнале аудита.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/auth-service/internal/lib/jwt"
	"github.com/magabrotheeeer/auth-service/internal/lib/password"
	"github.com/magabrotheeeer/auth-service/internal/lib/sl"
	"github.com/magabrotheeeer/auth-service/internal/models"
	"github.com/magabrotheeeer/auth-service/internal/services/ratelimit"
	"github.com/magabrotheeeer/auth-service/internal/storage"
)

var (
	// ErrInvalidCredentials — пара логин/пароль неверна или пользователь
	// не найден. Нарочито общая ошибка: клиент не должен узнать, какая
	// именно проверка не прошла.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserAlreadyExists — пользователь с таким логином или email уже есть.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrEmailAbsent — у пользователя нет email, подтверждать нечего.
	ErrEmailAbsent = errors.New("user has no email")
)

// Роль по умолчанию добавляется сидом при старте сервиса.
const defaultRoleID = 1

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	CreateUser(ctx context.Context, user models.User) (string, error)
	GetUserByUID(ctx context.Context, uid string) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	MarkUserRegistered(ctx context.Context, uid string) error
	GetRole(ctx context.Context, roleID int) (*models.Role, error)
}

// TokenAuthority описывает контракт сервиса refresh-токенов.
type TokenAuthority interface {
	Issue(ctx context.Context, userUID, fingerprint string, ip *string) (*models.RefreshToken, error)
	Rotate(ctx context.Context, tokenID string) (*models.RefreshToken, error)
	Validate(ctx context.Context, tokenID, fingerprint string, ip *string) (string, error)
	Revoke(ctx context.Context, tokenID string) error
}

// RateLimiter описывает контракт лимитера попыток.
type RateLimiter interface {
	CheckAndIncrement(ctx context.Context, subject string, scope ratelimit.Scope) error
}

// CodeManager описывает контракт менеджера кодов подтверждения.
type CodeManager interface {
	Issue(ctx context.Context, subject string) (string, error)
	Confirm(ctx context.Context, subject, candidate string) (bool, error)
}

// CodePublisher публикует событие отправки кода в очередь почтового воркера.
type CodePublisher interface {
	PublishCodeIssued(msg models.CodeMessage) error
}

// Service отвечает за регистрацию, вход, обновление сессии и подтверждение email.
type Service struct {
	users     UserRepository
	tokens    TokenAuthority
	limiter   RateLimiter
	codes     CodeManager
	publisher CodePublisher
	jwtMaker  jwt.Maker
	log       *slog.Logger
}

// New создает новый экземпляр Service.
func New(users UserRepository, tokens TokenAuthority, limiter RateLimiter,
	codes CodeManager, publisher CodePublisher, jwtMaker jwt.Maker, log *slog.Logger) *Service {
	return &Service{
		users:     users,
		tokens:    tokens,
		limiter:   limiter,
		codes:     codes,
		publisher: publisher,
		jwtMaker:  jwtMaker,
		log:       log,
	}
}

// Register создает нового пользователя с хэшированием пароля и ролью по умолчанию.
func (s *Service) Register(ctx context.Context, login string, email *string, rawPassword string) (string, error) {
	const op = "auth.Register"

	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	user := models.User{
		Login:        login,
		Email:        email,
		PasswordHash: hashed,
		RoleID:       defaultRoleID,
		IsRegistered: false,
	}
	uid, err := s.users.CreateUser(ctx, user)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return "", fmt.Errorf("%s: %w", op, ErrUserAlreadyExists)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user registered", slog.String("user_uid", uid))
	return uid, nil
}

// Login проверяет пароль пользователя и выдает пару токенов.
//
// Перед проверкой учетных данных попытка проходит лимитер по обеим осям:
// по логину и, если у пользователя есть email, по email.
func (s *Service) Login(ctx context.Context, login, rawPassword, fingerprint string, ip *string) (*models.TokenPair, error) {
	const op = "auth.Login"

	if err := s.limiter.CheckAndIncrement(ctx, login, ratelimit.ScopeUser); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.users.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.log.Warn("login attempt for unknown user", sl.Secret("login", login))
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if user.Email != nil {
		if err := s.limiter.CheckAndIncrement(ctx, *user.Email, ratelimit.ScopeEmail); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		s.log.Warn("wrong password", slog.String("user_uid", user.UID))
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	return s.issuePair(ctx, user, fingerprint, ip, op)
}

// Refresh проверяет refresh-токен, ротирует его и выдает новую пару токенов.
func (s *Service) Refresh(ctx context.Context, refreshTokenID, fingerprint string, ip *string) (*models.TokenPair, error) {
	const op = "auth.Refresh"

	userUID, err := s.tokens.Validate(ctx, refreshTokenID, fingerprint, ip)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user, err := s.users.GetUserByUID(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	next, err := s.tokens.Rotate(ctx, refreshTokenID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	role, err := s.users.GetRole(ctx, user.RoleID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	access, err := s.jwtMaker.GenerateToken(user.Login, role.Name, user.UID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.TokenPair{
		AccessToken:  access,
		RefreshToken: next.ID,
		ExpiresAt:    next.ExpireAt,
	}, nil
}

// Logout отзывает refresh-токен сессии. Операция идемпотентна.
func (s *Service) Logout(ctx context.Context, refreshTokenID string) error {
	const op = "auth.Logout"

	if err := s.tokens.Revoke(ctx, refreshTokenID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RequestEmailCode выпускает код подтверждения email и публикует событие
// отправки письма в очередь почтового воркера.
func (s *Service) RequestEmailCode(ctx context.Context, login string) error {
	const op = "auth.RequestEmailCode"

	user, err := s.users.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if user.Email == nil {
		return fmt.Errorf("%s: %w", op, ErrEmailAbsent)
	}

	if err := s.limiter.CheckAndIncrement(ctx, *user.Email, ratelimit.ScopeEmail); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	code, err := s.codes.Issue(ctx, *user.Email)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.publisher.PublishCodeIssued(models.CodeMessage{
		Email: *user.Email,
		Login: user.Login,
		Code:  code,
	}); err != nil {
		s.log.Error("failed to publish verification code message", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("verification code requested", slog.String("user_uid", user.UID))
	return nil
}

// ConfirmEmail проверяет код подтверждения и помечает пользователя
// зарегистрированным. Возвращает false, если код не совпал.
func (s *Service) ConfirmEmail(ctx context.Context, login, code string) (bool, error) {
	const op = "auth.ConfirmEmail"

	user, err := s.users.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if user.Email == nil {
		return false, fmt.Errorf("%s: %w", op, ErrEmailAbsent)
	}

	if err := s.limiter.CheckAndIncrement(ctx, *user.Email, ratelimit.ScopeEmail); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	ok, err := s.codes.Confirm(ctx, *user.Email, code)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		s.log.Warn("wrong verification code", slog.String("user_uid", user.UID))
		return false, nil
	}

	if err := s.users.MarkUserRegistered(ctx, user.UID); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("email confirmed", slog.String("user_uid", user.UID))
	return true, nil
}

func (s *Service) issuePair(ctx context.Context, user *models.User, fingerprint string, ip *string, op string) (*models.TokenPair, error) {
	refresh, err := s.tokens.Issue(ctx, user.UID, fingerprint, ip)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	role, err := s.users.GetRole(ctx, user.RoleID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	access, err := s.jwtMaker.GenerateToken(user.Login, role.Name, user.UID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh.ID,
		ExpiresAt:    refresh.ExpireAt,
	}, nil
}
