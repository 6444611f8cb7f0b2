package pgstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aliuyar1234/cartshare/internal/models"
	"github.com/aliuyar1234/cartshare/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const invitationColumns = `id, list_id, invited_by, invited_email, invited_user_id, role, status, message, created_at, expires_at, responded_at`

func scanInvitation(row pgx.Row) (models.Invitation, error) {
	var inv models.Invitation
	err := row.Scan(
		&inv.ID,
		&inv.ListID,
		&inv.InvitedBy,
		&inv.InvitedEmail,
		&inv.InvitedUserID,
		&inv.Role,
		&inv.Status,
		&inv.Message,
		&inv.CreatedAt,
		&inv.ExpiresAt,
		&inv.RespondedAt,
	)
	return inv, err
}

func collectInvitations(op string, rows pgx.Rows, err error) ([]models.Invitation, error) {
	if err != nil {
		return nil, mapErr(op, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Invitation, error) {
		return scanInvitation(row)
	})
	if err != nil {
		return nil, mapErr(op, err)
	}
	return out, nil
}

func (s *Store) InsertInvitation(ctx context.Context, inv models.Invitation) (models.Invitation, error) {
	email := strings.ToLower(inv.InvitedEmail)

	var out models.Invitation
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		// A pending row past its expiry must not block a fresh invitation.
		if _, err := tx.Exec(ctx, `
			UPDATE invitations
			SET status = 'expired'
			WHERE list_id = $1
			  AND lower(invited_email) = $2
			  AND status = 'pending'
			  AND expires_at <= NOW()
		`, inv.ListID, email); err != nil {
			return err
		}

		var err error
		out, err = scanInvitation(tx.QueryRow(ctx, `
			INSERT INTO invitations (list_id, invited_by, invited_email, invited_user_id, role, message, expires_at)
			VALUES ($1, $2, $3, (SELECT id FROM profiles WHERE lower(email) = $3 LIMIT 1), $4, $5, $6)
			RETURNING `+invitationColumns,
			inv.ListID, inv.InvitedBy, email, string(inv.Role), inv.Message, inv.ExpiresAt))
		return err
	})
	if err != nil {
		return models.Invitation{}, mapErr("insert invitation", err)
	}
	return out, nil
}

func (s *Store) GetInvitation(ctx context.Context, id uuid.UUID) (models.Invitation, error) {
	inv, err := scanInvitation(s.pool.QueryRow(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE id = $1`, id))
	if err != nil {
		return models.Invitation{}, mapErr("get invitation", err)
	}
	return inv, nil
}

func (s *Store) ReceivedInvitations(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.Invitation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+invitationColumns+`
		FROM invitations
		WHERE invited_user_id = $1
		  AND status = 'pending'
		  AND expires_at > $2
		ORDER BY created_at DESC
	`, userID, now)
	return collectInvitations("list received invitations", rows, err)
}

func (s *Store) SentInvitations(ctx context.Context, invitedBy uuid.UUID, listID *uuid.UUID) ([]models.Invitation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+invitationColumns+`
		FROM invitations
		WHERE invited_by = $1
		  AND ($2::uuid IS NULL OR list_id = $2)
		ORDER BY created_at DESC
	`, invitedBy, listID)
	return collectInvitations("list sent invitations", rows, err)
}

// lockRespondable loads the invitation FOR UPDATE and checks the user may
// still answer it.
func lockRespondable(ctx context.Context, tx pgx.Tx, op string, id, userID uuid.UUID, now time.Time) (models.Invitation, error) {
	inv, err := scanInvitation(tx.QueryRow(ctx, `
		SELECT `+invitationColumns+`
		FROM invitations
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		return models.Invitation{}, mapErr(op, err)
	}
	if inv.InvitedUserID == nil || *inv.InvitedUserID != userID {
		return models.Invitation{}, store.NewError(op, store.CodeNotFound, nil)
	}
	if inv.Status != models.InvitationPending {
		return models.Invitation{}, store.NewError(op, store.CodeStateConflict, nil)
	}
	if inv.IsExpired(now) {
		return models.Invitation{}, store.NewError(op, store.CodeExpired, nil)
	}
	return inv, nil
}

func (s *Store) AcceptInvitation(ctx context.Context, id, userID uuid.UUID, now time.Time) (models.Membership, error) {
	const op = "accept invitation"

	var m models.Membership
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		inv, err := lockRespondable(ctx, tx, op, id, userID, now)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO list_members (list_id, user_id, role)
			VALUES ($1, $2, $3)
			ON CONFLICT (list_id, user_id) DO NOTHING
		`, inv.ListID, userID, string(inv.Role)); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			UPDATE invitations
			SET status = 'accepted', responded_at = $2
			WHERE id = $1
		`, id, now); err != nil {
			return err
		}

		m, err = scanMembership(tx.QueryRow(ctx, `
			SELECT `+memberColumns+`
			FROM list_members
			WHERE list_id = $1 AND user_id = $2
		`, inv.ListID, userID))
		return err
	})
	if err != nil {
		var storeErr *store.Error
		if errors.As(err, &storeErr) {
			return models.Membership{}, err
		}
		return models.Membership{}, mapErr(op, err)
	}
	return m, nil
}

func (s *Store) DeclineInvitation(ctx context.Context, id, userID uuid.UUID, now time.Time) error {
	const op = "decline invitation"

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := lockRespondable(ctx, tx, op, id, userID, now); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			UPDATE invitations
			SET status = 'declined', responded_at = $2
			WHERE id = $1
		`, id, now)
		return err
	})
	if err != nil {
		var storeErr *store.Error
		if errors.As(err, &storeErr) {
			return err
		}
		return mapErr(op, err)
	}
	return nil
}

func (s *Store) DeleteInvitation(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM invitations WHERE id = $1`, id)
	return requireAffected("delete invitation", tag, err)
}

func (s *Store) ExpireInvitations(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE invitations
		SET status = 'expired'
		WHERE status = 'pending'
		  AND expires_at <= $1
	`, now)
	if err != nil {
		return 0, mapErr("expire invitations", err)
	}
	return tag.RowsAffected(), nil
}
