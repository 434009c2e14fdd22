package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/magabrotheeeer/auth-service/internal/models"
	"github.com/magabrotheeeer/auth-service/internal/storage"
)

// CreateRefreshToken сохраняет новый refresh-токен.
func (s *Storage) CreateRefreshToken(ctx context.Context, token models.RefreshToken) error {
	const op = "storage.CreateRefreshToken"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO refresh_tokens (id, user_uid, fingerprint, ip, is_blocked, expire_at)
			  VALUES ($1, $2, $3, $4, $5, $6);`
	if _, err := s.DB.ExecContext(ctx, query,
		token.ID, token.UserUID, token.Fingerprint, token.IP,
		token.IsBlocked, token.ExpireAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetRefreshToken возвращает токен по идентификатору.
func (s *Storage) GetRefreshToken(ctx context.Context, tokenID string) (*models.RefreshToken, error) {
	const op = "storage.GetRefreshToken"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, fingerprint, ip, is_blocked, expire_at, created_at
			  FROM refresh_tokens
			  WHERE id = $1`
	return s.scanToken(s.DB.QueryRowContext(ctx, query, tokenID), op)
}

// GetActiveTokenByFingerprint возвращает активный токен пары
// (пользователь, отпечаток), если такой есть.
func (s *Storage) GetActiveTokenByFingerprint(ctx context.Context, userUID, fingerprint string) (*models.RefreshToken, error) {
	const op = "storage.GetActiveTokenByFingerprint"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, fingerprint, ip, is_blocked, expire_at, created_at
			  FROM refresh_tokens
			  WHERE user_uid = $1 AND fingerprint = $2 AND is_blocked = FALSE
			  ORDER BY created_at DESC
			  LIMIT 1`
	return s.scanToken(s.DB.QueryRowContext(ctx, query, userUID, fingerprint), op)
}

func (s *Storage) scanToken(row *sql.Row, op string) (*models.RefreshToken, error) {
	t := &models.RefreshToken{}
	var ip sql.NullString
	if err := row.Scan(&t.ID, &t.UserUID, &t.Fingerprint, &ip,
		&t.IsBlocked, &t.ExpireAt, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if ip.Valid {
		t.IP = &ip.String
	}
	return t, nil
}

// BlockRefreshTokenIfActive помечает токен отозванным, если он еще не был
// отозван. Условие is_blocked = FALSE в запросе делает переход безопасным
// при конкурентных вызовах: из двух гонщиков выиграет ровно один.
//
// Возвращает:
//
//	(true, nil)  — токен был активен и отозван этим вызовом;
//	(false, nil) — токен существует, но уже был отозван;
//	(false, ErrNotFound) — токен не найден.
func (s *Storage) BlockRefreshTokenIfActive(ctx context.Context, tokenID string) (bool, error) {
	const op = "storage.BlockRefreshTokenIfActive"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE refresh_tokens
			  SET is_blocked = TRUE
			  WHERE id = $1 AND is_blocked = FALSE
			  RETURNING user_uid`
	var userUID string
	err := s.DB.QueryRowContext(ctx, query, tokenID).Scan(&userUID)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	var exists bool
	if err := s.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM refresh_tokens WHERE id = $1)`,
		tokenID).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return false, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return false, nil
}

// RotateRefreshToken в одной транзакции отзывает старый токен и сохраняет
// его преемника. Условный UPDATE гарантирует, что из двух конкурентных
// ротаций одного токена успешной будет только одна; проигравшая получит
// ErrAlreadyExists на шаге отзыва. Частичный уникальный индекс по паре
// (user_uid, fingerprint) страхует шаг вставки: второй активный токен
// пары база не примет.
func (s *Storage) RotateRefreshToken(ctx context.Context, oldTokenID string, next models.RefreshToken) error {
	const op = "storage.RotateRefreshToken"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE refresh_tokens
		 SET is_blocked = TRUE
		 WHERE id = $1 AND is_blocked = FALSE`, oldTokenID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		// Токен отсутствует или уже отозван: ротация невозможна.
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, user_uid, fingerprint, ip, is_blocked, expire_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		next.ID, next.UserUID, next.Fingerprint, next.IP,
		next.IsBlocked, next.ExpireAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
