package models

// MdUser представляет дополнительный профиль пользователя (1:1 с User).
//
// Все поля опциональны, но если поле задано — оно должно быть непустым.
type MdUser struct {
	UserUID     string  // Идентификатор владельца профиля
	FirstName   *string // Имя
	LastName    *string // Фамилия
	PictureLink *string // Ссылка на аватар
	Description *string // Описание профиля
}
