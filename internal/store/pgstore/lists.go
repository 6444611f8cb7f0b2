package pgstore

import (
	"context"

	"github.com/aliuyar1234/cartshare/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const listColumns = `id, name, category, description, created_by, created_at, updated_at`

func scanList(row pgx.Row) (models.List, error) {
	var l models.List
	err := row.Scan(&l.ID, &l.Name, &l.Category, &l.Description, &l.CreatedBy, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

func (s *Store) InsertList(ctx context.Context, list models.List) (models.List, error) {
	var out models.List
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		out, err = scanList(tx.QueryRow(ctx, `
			INSERT INTO lists (name, category, description, created_by)
			VALUES ($1, $2, $3, $4)
			RETURNING `+listColumns,
			list.Name, list.Category, list.Description, list.CreatedBy))
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO list_members (list_id, user_id, role, joined_at)
			VALUES ($1, $2, 'owner', $3)
		`, out.ID, out.CreatedBy, out.CreatedAt)
		return err
	})
	if err != nil {
		return models.List{}, mapErr("insert list", err)
	}
	return out, nil
}

func (s *Store) GetList(ctx context.Context, id uuid.UUID) (models.List, error) {
	l, err := scanList(s.pool.QueryRow(ctx, `SELECT `+listColumns+` FROM lists WHERE id = $1`, id))
	if err != nil {
		return models.List{}, mapErr("get list", err)
	}
	return l, nil
}

func (s *Store) ListsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.List, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+listColumns+`
		FROM lists
		WHERE id = ANY($1)
		ORDER BY updated_at DESC
	`, ids)
	if err != nil {
		return nil, mapErr("list lists", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.List, error) {
		return scanList(row)
	})
	if err != nil {
		return nil, mapErr("scan lists", err)
	}
	return out, nil
}

func (s *Store) DeleteList(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM lists WHERE id = $1`, id)
	return requireAffected("delete list", tag, err)
}
