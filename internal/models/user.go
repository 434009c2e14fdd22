// Package models содержит доменные модели сервиса аутентификации:
// пользователей, их профили, роли и refresh-токены.
// Структуры используются в бизнес‑логике и при работе с хранилищем.
package models

import "time"

// User представляет зарегистрированного пользователя системы.
type User struct {
	UID          string    // Уникальный идентификатор пользователя
	Login        string    // Логин пользователя (уникальный, непустой)
	Email        *string   // Электронная почта (опционально, минимум 3 символа)
	PasswordHash string    // Хэш пароля пользователя
	RoleID       int       // Ссылка на роль пользователя
	IsRegistered bool      // Признак подтвержденной регистрации
	CreatedAt    time.Time // Время создания записи
}

// Role представляет роль пользователя в системе.
//
// Запись с RoleID = 1 и именем "lead" добавляется идемпотентным
// сидом при старте сервиса.
type Role struct {
	RoleID int    // Идентификатор роли
	Name   string // Имя роли (уникальное, непустое)
}
