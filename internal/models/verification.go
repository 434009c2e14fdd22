package models

import "time"

// VerificationKey представляет короткоживущий код подтверждения email.
//
// Запись хранится только в ephemeral-хранилище (Redis) и удаляется
// после успешной проверки кода или по истечении TTL.
type VerificationKey struct {
	Code     string    `json:"code"`      // Значение кода
	IssuedAt time.Time `json:"issued_at"` // Момент выпуска, используется для cooldown
}

// CodeMessage — событие отправки кода подтверждения, публикуемое
// в очередь для почтового воркера.
type CodeMessage struct {
	Email string `json:"email"`
	Login string `json:"login"`
	Code  string `json:"code"`
}
