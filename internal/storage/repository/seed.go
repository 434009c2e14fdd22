package repository

import (
	"context"
	"fmt"
)

// Statement представляет один шаг первоначального наполнения базы.
type Statement struct {
	Description string
	Query       string
	Args        []any
}

// BaseStatements — упорядоченный список идемпотентных upsert-запросов,
// применяемых один раз при старте сервиса. Конфликт по первичному ключу
// означает, что строка уже есть, и запрос превращается в no-op, поэтому
// повторный прогон сида безопасен.
var BaseStatements = []Statement{
	{
		Description: "Add role 'lead'",
		Query: `INSERT INTO role (role_id, name) VALUES ($1, $2)
			    ON CONFLICT (role_id) DO NOTHING;`,
		Args: []any{1, "lead"},
	},
}

// ApplySeed применяет список сид-запросов по порядку.
func (s *Storage) ApplySeed(ctx context.Context, statements []Statement) error {
	const op = "storage.ApplySeed"
	for _, stmt := range statements {
		if _, err := s.DB.ExecContext(ctx, stmt.Query, stmt.Args...); err != nil {
			return fmt.Errorf("%s: %s: %w", op, stmt.Description, err)
		}
	}
	return nil
}
