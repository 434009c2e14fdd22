package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/auth-service/internal/models"
	"github.com/magabrotheeeer/auth-service/internal/storage"
)

// UpsertMdUser создает или обновляет профиль пользователя.
func (s *Storage) UpsertMdUser(ctx context.Context, md models.MdUser) error {
	const op = "storage.UpsertMdUser"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO md_users (user_uid, first_name, last_name, picture_link, description)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (user_uid) DO UPDATE
			  SET first_name = EXCLUDED.first_name,
			      last_name = EXCLUDED.last_name,
			      picture_link = EXCLUDED.picture_link,
			      description = EXCLUDED.description;`
	if _, err := s.DB.ExecContext(ctx, query,
		md.UserUID, md.FirstName, md.LastName, md.PictureLink, md.Description); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetMdUser возвращает профиль по UID владельца.
func (s *Storage) GetMdUser(ctx context.Context, userUID string) (*models.MdUser, error) {
	const op = "storage.GetMdUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_uid, first_name, last_name, picture_link, description
			  FROM md_users
			  WHERE user_uid = $1`
	md := &models.MdUser{}
	var firstName, lastName, pictureLink, description sql.NullString
	if err := s.DB.QueryRowContext(ctx, query, userUID).Scan(
		&md.UserUID, &firstName, &lastName, &pictureLink, &description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if firstName.Valid {
		md.FirstName = &firstName.String
	}
	if lastName.Valid {
		md.LastName = &lastName.String
	}
	if pictureLink.Valid {
		md.PictureLink = &pictureLink.String
	}
	if description.Valid {
		md.Description = &description.String
	}
	return md, nil
}
