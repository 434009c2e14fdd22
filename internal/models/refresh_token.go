package models

import "time"

// RefreshToken представляет refresh-токен пользовательской сессии.
//
// Токен привязан к отпечатку клиента (Fingerprint) и живет до ExpireAt.
// Поле IsBlocked меняется только в одну сторону: false -> true,
// при явном отзыве или при ротации.
type RefreshToken struct {
	ID          string    // Уникальный идентификатор токена
	UserUID     string    // Идентификатор владельца
	Fingerprint string    // Отпечаток клиента, выпустившего токен
	IP          *string   // IP на момент выпуска (опционально)
	IsBlocked   bool      // Признак отзыва токена
	ExpireAt    time.Time // Момент истечения, фиксируется при выпуске
	CreatedAt   time.Time // Время создания записи
}

// IsExpired сообщает, истек ли токен на момент now.
// Истечение вычисляется лениво и никогда не записывается обратно в БД.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpireAt)
}
