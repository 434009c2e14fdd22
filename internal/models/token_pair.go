package models

import "time"

// TokenPair - пара токенов, выдаваемая при входе и обновлении сессии.
type TokenPair struct {
	AccessToken  string    // Короткоживущий JWT для доступа к API
	RefreshToken string    // Идентификатор refresh-токена сессии
	ExpiresAt    time.Time // Момент истечения refresh-токена
}
