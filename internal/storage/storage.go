// Package storage задает контракты реляционного хранилища сервиса
// аутентификации и общие для всех реализаций ошибки.
//
// Бизнес-логика зависит только от интерфейсов этого пакета; конкретная
// реализация на PostgreSQL находится в подпакете repository.
package storage

import (
	"context"
	"errors"

	"github.com/magabrotheeeer/auth-service/internal/models"
)

var (
	// ErrNotFound — запись не найдена (пользователь/токен/профиль).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (login/email/id токена).
	ErrAlreadyExists = errors.New("already exists")
)

// UserRepository выполняет операции над пользователями.
type UserRepository interface {
	// CreateUser сохраняет нового пользователя и возвращает его UID.
	CreateUser(ctx context.Context, user models.User) (string, error)
	// GetUserByUID возвращает пользователя по его UID.
	GetUserByUID(ctx context.Context, uid string) (*models.User, error)
	// GetUserByLogin возвращает пользователя по логину.
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	// MarkUserRegistered выставляет признак подтвержденной регистрации.
	MarkUserRegistered(ctx context.Context, uid string) error
	// DeleteUser удаляет пользователя вместе с его refresh-токенами
	// и профилем в одной транзакции.
	DeleteUser(ctx context.Context, uid string) error
}

// RoleRepository выполняет операции над ролями.
type RoleRepository interface {
	// GetRole возвращает роль по идентификатору.
	GetRole(ctx context.Context, roleID int) (*models.Role, error)
}

// MdUserRepository выполняет операции над профилями пользователей.
type MdUserRepository interface {
	// UpsertMdUser создает или обновляет профиль пользователя.
	UpsertMdUser(ctx context.Context, md models.MdUser) error
	// GetMdUser возвращает профиль по UID владельца.
	GetMdUser(ctx context.Context, userUID string) (*models.MdUser, error)
}

// TokenRepository выполняет операции над refresh-токенами.
type TokenRepository interface {
	// CreateRefreshToken сохраняет новый refresh-токен.
	CreateRefreshToken(ctx context.Context, token models.RefreshToken) error
	// GetRefreshToken возвращает токен по идентификатору.
	GetRefreshToken(ctx context.Context, tokenID string) (*models.RefreshToken, error)
	// GetActiveTokenByFingerprint возвращает активный токен
	// пары (пользователь, отпечаток), если такой есть.
	GetActiveTokenByFingerprint(ctx context.Context, userUID, fingerprint string) (*models.RefreshToken, error)
	// BlockRefreshTokenIfActive помечает токен отозванным, если он еще
	// не был отозван. Возвращает true, если переход выполнен именно
	// этим вызовом.
	BlockRefreshTokenIfActive(ctx context.Context, tokenID string) (bool, error)
	// RotateRefreshToken в одной транзакции отзывает старый токен
	// и сохраняет его преемника. Либо применяются обе мутации, либо
	// ни одной.
	RotateRefreshToken(ctx context.Context, oldTokenID string, next models.RefreshToken) error
}

// Storage объединяет все контракты реляционного хранилища.
type Storage interface {
	UserRepository
	RoleRepository
	MdUserRepository
	TokenRepository
}
