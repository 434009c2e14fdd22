package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/auth-service/internal/models"
	"github.com/magabrotheeeer/auth-service/internal/storage"
)

// GetRole возвращает роль по идентификатору.
func (s *Storage) GetRole(ctx context.Context, roleID int) (*models.Role, error) {
	const op = "storage.GetRole"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT role_id, name FROM role WHERE role_id = $1`
	r := &models.Role{}
	if err := s.DB.QueryRowContext(ctx, query, roleID).Scan(&r.RoleID, &r.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r, nil
}
