package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aliuyar1234/cartshare/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (s *Store) ProfilesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Profile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, email, push_token
		FROM profiles
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, mapErr("load profiles", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]models.Profile, len(ids))
	for rows.Next() {
		var p models.Profile
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.PushToken); err != nil {
			return nil, mapErr("load profiles", err)
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("load profiles", err)
	}
	return out, nil
}

// UpsertProfile stores name and email and links pending invitations that
// were sent to the email before the account existed.
func (s *Store) UpsertProfile(ctx context.Context, p models.Profile) error {
	email := strings.ToLower(strings.TrimSpace(p.Email))

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO profiles (id, name, email)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, email = EXCLUDED.email, updated_at = NOW()
			WHERE profiles.name IS DISTINCT FROM EXCLUDED.name
			   OR profiles.email IS DISTINCT FROM EXCLUDED.email
		`, p.ID, p.Name, email); err != nil {
			return err
		}
		if email == "" {
			return nil
		}
		_, err := tx.Exec(ctx, `
			UPDATE invitations
			SET invited_user_id = $1
			WHERE invited_user_id IS NULL
			  AND status = 'pending'
			  AND lower(invited_email) = $2
		`, p.ID, email)
		return err
	})
	return mapErr("upsert profile", err)
}

func (s *Store) SetPushToken(ctx context.Context, userID uuid.UUID, token *string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE profiles SET push_token = $2, updated_at = NOW() WHERE id = $1`, userID, token)
	return requireAffected("set push token", tag, err)
}

func (s *Store) InsertAuditEvent(ctx context.Context, e models.AuditEvent) error {
	meta := []byte("{}")
	if e.Meta != nil {
		b, err := json.Marshal(e.Meta)
		if err != nil {
			return fmt.Errorf("failed to marshal audit meta: %w", err)
		}
		meta = b
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_log (list_id, actor_user_id, action, meta)
		VALUES ($1, $2, $3, $4)
	`, e.ListID, e.ActorUserID, e.Action, meta)
	return mapErr("insert audit event", err)
}

func (s *Store) AuditEvents(ctx context.Context, listID uuid.UUID, limit int) ([]models.AuditEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, list_id, actor_user_id, action, meta, created_at
		FROM audit_log
		WHERE list_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, listID, limit)
	if err != nil {
		return nil, mapErr("list audit events", err)
	}
	defer rows.Close()

	var out []models.AuditEvent
	for rows.Next() {
		var e models.AuditEvent
		var meta []byte
		if err := rows.Scan(&e.ID, &e.ListID, &e.ActorUserID, &e.Action, &meta, &e.CreatedAt); err != nil {
			return nil, mapErr("list audit events", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Meta); err != nil {
				return nil, fmt.Errorf("failed to parse audit meta: %w", err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list audit events", err)
	}
	return out, nil
}
