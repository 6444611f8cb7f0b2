package pgstore

import (
	"context"

	"github.com/aliuyar1234/cartshare/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const itemColumns = `id, list_id, name, notes, quantity, status, store_name, created_by, updated_by, created_at, updated_at`

func scanItem(row pgx.Row) (models.Item, error) {
	var it models.Item
	err := row.Scan(
		&it.ID,
		&it.ListID,
		&it.Name,
		&it.Notes,
		&it.Quantity,
		&it.Status,
		&it.StoreName,
		&it.CreatedBy,
		&it.UpdatedBy,
		&it.CreatedAt,
		&it.UpdatedAt,
	)
	return it, err
}

func (s *Store) queryItems(ctx context.Context, op, query string, args ...any) ([]models.Item, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(op, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Item, error) {
		return scanItem(row)
	})
	if err != nil {
		return nil, mapErr(op, err)
	}
	return out, nil
}

func (s *Store) ItemsByList(ctx context.Context, listID uuid.UUID) ([]models.Item, error) {
	return s.queryItems(ctx, "list items", `
		SELECT `+itemColumns+`
		FROM items
		WHERE list_id = $1
		ORDER BY created_at DESC
	`, listID)
}

func (s *Store) GetItem(ctx context.Context, id uuid.UUID) (models.Item, error) {
	it, err := scanItem(s.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
	if err != nil {
		return models.Item{}, mapErr("get item", err)
	}
	return it, nil
}

func (s *Store) ItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Item, error) {
	return s.queryItems(ctx, "list items by id", `
		SELECT `+itemColumns+`
		FROM items
		WHERE id = ANY($1)
		ORDER BY created_at DESC
	`, ids)
}

func (s *Store) CountItems(ctx context.Context, listIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT list_id, COUNT(*)
		FROM items
		WHERE list_id = ANY($1)
		GROUP BY list_id
	`, listIDs)
	if err != nil {
		return nil, mapErr("count items", err)
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int, len(listIDs))
	for rows.Next() {
		var listID uuid.UUID
		var n int
		if err := rows.Scan(&listID, &n); err != nil {
			return nil, mapErr("count items", err)
		}
		counts[listID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("count items", err)
	}
	return counts, nil
}

func (s *Store) InsertItem(ctx context.Context, item models.Item) (models.Item, error) {
	status := item.Status
	if status == "" {
		status = models.StatusNeeded
	}
	quantity := item.Quantity
	if quantity < 1 {
		quantity = 1
	}

	out, err := scanItem(s.pool.QueryRow(ctx, `
		INSERT INTO items (list_id, name, notes, quantity, status, store_name, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+itemColumns,
		item.ListID, item.Name, item.Notes, quantity, string(status), item.StoreName, item.CreatedBy))
	if err != nil {
		return models.Item{}, mapErr("insert item", err)
	}
	return out, nil
}

// UpdateItem applies the non-nil patch fields. An empty notes or store name
// clears the column.
func (s *Store) UpdateItem(ctx context.Context, id uuid.UUID, patch models.ItemPatch) (models.Item, error) {
	var status *string
	if patch.Status != nil {
		v := string(*patch.Status)
		status = &v
	}
	var updatedBy *uuid.UUID
	if patch.UpdatedBy != uuid.Nil {
		updatedBy = &patch.UpdatedBy
	}

	out, err := scanItem(s.pool.QueryRow(ctx, `
		UPDATE items
		SET name = COALESCE($2, name),
		    notes = CASE WHEN $3::text IS NULL THEN notes ELSE NULLIF($3, '') END,
		    quantity = COALESCE($4, quantity),
		    store_name = CASE WHEN $5::text IS NULL THEN store_name ELSE NULLIF($5, '') END,
		    status = COALESCE($6, status),
		    updated_by = COALESCE($7, updated_by),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+itemColumns,
		id, patch.Name, patch.Notes, patch.Quantity, patch.StoreName, status, updatedBy))
	if err != nil {
		return models.Item{}, mapErr("update item", err)
	}
	return out, nil
}

func (s *Store) DeleteItem(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	return requireAffected("delete item", tag, err)
}
