package pgstore

import (
	"context"

	"github.com/aliuyar1234/cartshare/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const memberColumns = `id, list_id, user_id, role, joined_at`

func scanMembership(row pgx.Row) (models.Membership, error) {
	var m models.Membership
	err := row.Scan(&m.ID, &m.ListID, &m.UserID, &m.Role, &m.JoinedAt)
	return m, err
}

func (s *Store) queryMemberships(ctx context.Context, op, query string, args ...any) ([]models.Membership, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(op, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Membership, error) {
		return scanMembership(row)
	})
	if err != nil {
		return nil, mapErr(op, err)
	}
	return out, nil
}

func (s *Store) MembersByList(ctx context.Context, listID uuid.UUID) ([]models.Membership, error) {
	return s.queryMemberships(ctx, "list members", `
		SELECT `+memberColumns+`
		FROM list_members
		WHERE list_id = $1
		ORDER BY joined_at ASC
	`, listID)
}

func (s *Store) MembershipsByUser(ctx context.Context, userID uuid.UUID) ([]models.Membership, error) {
	return s.queryMemberships(ctx, "list memberships", `
		SELECT `+memberColumns+`
		FROM list_members
		WHERE user_id = $1
		ORDER BY joined_at ASC
	`, userID)
}

func (s *Store) GetMembership(ctx context.Context, id uuid.UUID) (models.Membership, error) {
	m, err := scanMembership(s.pool.QueryRow(ctx, `SELECT `+memberColumns+` FROM list_members WHERE id = $1`, id))
	if err != nil {
		return models.Membership{}, mapErr("get membership", err)
	}
	return m, nil
}

func (s *Store) FindMembership(ctx context.Context, listID, userID uuid.UUID) (models.Membership, error) {
	m, err := scanMembership(s.pool.QueryRow(ctx, `
		SELECT `+memberColumns+`
		FROM list_members
		WHERE list_id = $1 AND user_id = $2
	`, listID, userID))
	if err != nil {
		return models.Membership{}, mapErr("find membership", err)
	}
	return m, nil
}

func (s *Store) CountMembers(ctx context.Context, listID uuid.UUID) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM list_members WHERE list_id = $1`, listID).Scan(&n); err != nil {
		return 0, mapErr("count members", err)
	}
	return n, nil
}

func (s *Store) UpdateMemberRole(ctx context.Context, id uuid.UUID, role models.Role) error {
	tag, err := s.pool.Exec(ctx, `UPDATE list_members SET role = $2 WHERE id = $1`, id, string(role))
	return requireAffected("update member role", tag, err)
}

func (s *Store) DeleteMembership(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM list_members WHERE id = $1`, id)
	return requireAffected("delete membership", tag, err)
}
