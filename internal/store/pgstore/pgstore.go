// Package pgstore implements store.Store on PostgreSQL. Row changes are
// published by database triggers over NOTIFY and fanned out through a
// store.Feed by a dedicated listener connection.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aliuyar1234/cartshare/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the PostgreSQL Data Store Client.
type Store struct {
	pool     *pgxpool.Pool
	feed     *store.Feed
	listener *listener
}

var _ store.Store = (*Store)(nil)

// New returns a store backed by pool and starts the change-feed listener.
// The pool is owned by the caller; Close only stops the listener.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	feed := store.NewFeed()
	l, err := startListener(ctx, pool, feed)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, feed: feed, listener: l}, nil
}

func (s *Store) Subscribe(table store.Table, filter store.Filter, fn func(store.Change)) (store.SubscriptionID, error) {
	return s.feed.Subscribe(table, filter, fn)
}

func (s *Store) Unsubscribe(id store.SubscriptionID) {
	s.feed.Unsubscribe(id)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	s.listener.stop()
	s.feed.Close()
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// mapErr converts driver errors into store errors.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.NewError(op, store.CodeNotFound, nil)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return store.NewError(op, store.CodeUniqueViolation, err)
		case pgForeignKeyViolation:
			return store.NewError(op, store.CodeForeignKey, err)
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func requireAffected(op string, tag pgconn.CommandTag, err error) error {
	if err != nil {
		return mapErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return store.NewError(op, store.CodeNotFound, nil)
	}
	return nil
}
