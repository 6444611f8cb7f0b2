package pgstore

import (
	"context"
	"time"

	"github.com/aliuyar1234/cartshare/internal/models"
	"github.com/aliuyar1234/cartshare/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const requestColumns = `id, item_id, original_item_name, suggested_replacement, requested_by, responded_by, status, created_at, updated_at`

func scanRequest(row pgx.Row) (models.ReplacementRequest, error) {
	var r models.ReplacementRequest
	err := row.Scan(
		&r.ID,
		&r.ItemID,
		&r.OriginalItemName,
		&r.SuggestedReplacement,
		&r.RequestedBy,
		&r.RespondedBy,
		&r.Status,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}

func collectRequests(op string, rows pgx.Rows, err error) ([]models.ReplacementRequest, error) {
	if err != nil {
		return nil, mapErr(op, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ReplacementRequest, error) {
		return scanRequest(row)
	})
	if err != nil {
		return nil, mapErr(op, err)
	}
	return out, nil
}

// InsertRequests writes every row in a single statement, so either all
// suggestions are stored or none.
func (s *Store) InsertRequests(ctx context.Context, reqs []models.ReplacementRequest) ([]models.ReplacementRequest, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	itemIDs := make([]uuid.UUID, len(reqs))
	names := make([]string, len(reqs))
	suggestions := make([]string, len(reqs))
	requesters := make([]uuid.UUID, len(reqs))
	for i, r := range reqs {
		itemIDs[i] = r.ItemID
		names[i] = r.OriginalItemName
		suggestions[i] = r.SuggestedReplacement
		requesters[i] = r.RequestedBy
	}

	rows, err := s.pool.Query(ctx, `
		INSERT INTO replacement_requests (item_id, original_item_name, suggested_replacement, requested_by)
		SELECT * FROM unnest($1::uuid[], $2::text[], $3::text[], $4::uuid[])
		RETURNING `+requestColumns,
		itemIDs, names, suggestions, requesters)
	return collectRequests("insert replacement requests", rows, err)
}

func (s *Store) GetRequest(ctx context.Context, id uuid.UUID) (models.ReplacementRequest, error) {
	r, err := scanRequest(s.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM replacement_requests WHERE id = $1`, id))
	if err != nil {
		return models.ReplacementRequest{}, mapErr("get replacement request", err)
	}
	return r, nil
}

func (s *Store) PendingRequests(ctx context.Context, listIDs []uuid.UUID) ([]models.ReplacementRequest, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.id, r.item_id, r.original_item_name, r.suggested_replacement, r.requested_by,
		       r.responded_by, r.status, r.created_at, r.updated_at
		FROM replacement_requests r
		WHERE r.status = 'pending'
		  AND r.list_id = ANY($1)
		ORDER BY r.created_at DESC
	`, listIDs)
	return collectRequests("list pending replacement requests", rows, err)
}

func (s *Store) RespondRequest(ctx context.Context, id uuid.UUID, status models.RequestStatus, respondedBy uuid.UUID, at time.Time) (models.ReplacementRequest, error) {
	const op = "respond replacement request"

	r, err := scanRequest(s.pool.QueryRow(ctx, `
		UPDATE replacement_requests
		SET status = $2, responded_by = $3, updated_at = $4
		WHERE id = $1 AND status = 'pending'
		RETURNING `+requestColumns,
		id, string(status), respondedBy, at))
	if err == nil {
		return r, nil
	}
	if !store.IsCode(mapErr(op, err), store.CodeNotFound) {
		return models.ReplacementRequest{}, mapErr(op, err)
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM replacement_requests WHERE id = $1)`, id).Scan(&exists); err != nil {
		return models.ReplacementRequest{}, mapErr(op, err)
	}
	if exists {
		return models.ReplacementRequest{}, store.NewError(op, store.CodeStateConflict, nil)
	}
	return models.ReplacementRequest{}, store.NewError(op, store.CodeNotFound, nil)
}
