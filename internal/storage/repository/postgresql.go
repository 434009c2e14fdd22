// Package repository реализует хранилище данных на основе PostgreSQL
// для сервиса аутентификации. Предоставляет методы работы с пользователями,
// ролями, профилями и refresh-токенами, включая транзакционную ротацию
// токена и каскадное удаление пользователя.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/magabrotheeeer/auth-service/internal/storage"
)

// Storage инкапсулирует соединение с базой данных PostgreSQL.
type Storage struct {
	DB *sql.DB
}

// Проверка на соответствие интерфейсу storage.Storage.
var _ storage.Storage = (*Storage)(nil)

// New создаёт подключение к PostgreSQL.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// CheckDatabaseReady проверяет готовность базы данных.
func CheckDatabaseReady(storage *Storage) error {
	var exists bool
	err := storage.DB.QueryRow(`SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'refresh_tokens'
    )`).Scan(&exists)
	if err != nil || !exists {
		return fmt.Errorf("required table refresh_tokens missing or query error: %w", err)
	}
	return nil
}
