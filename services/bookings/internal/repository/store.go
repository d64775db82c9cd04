package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diagnosis/hotel-bookings/services/bookings/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const queryTimeout = 3 * time.Second

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store groups the repositories over one connection or transaction.
type Store interface {
	Users() UserRepository
	Rooms() RoomRepository
	Bookings() BookingRepository
	History() HistoryRepository
	Reviews() ReviewRepository
	// InTx runs fn against a transactional Store. fn's error rolls back.
	InTx(ctx context.Context, fn func(tx Store) error) error
}

type pgStore struct {
	pool *pgxpool.Pool
	q    Querier
	inTx bool
}

func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool, q: pool}
}

func (s *pgStore) Users() UserRepository       { return &userRepository{q: s.q} }
func (s *pgStore) Rooms() RoomRepository       { return &roomRepository{q: s.q} }
func (s *pgStore) Bookings() BookingRepository { return &bookingRepository{q: s.q} }
func (s *pgStore) History() HistoryRepository  { return &historyRepository{q: s.q} }
func (s *pgStore) Reviews() ReviewRepository   { return &reviewRepository{q: s.q} }

func (s *pgStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := fn(&pgStore{pool: s.pool, q: tx, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return translate(fmt.Errorf("commit tx: %w", err), nil)
	}
	committed = true
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

const (
	pgUniqueViolation     = "23505"
	pgExclusionViolation  = "23P01"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// translate maps integrity violations to domain errors. conflict overrides
// the error used for unique and exclusion violations.
func translate(err error, conflict error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation, pgExclusionViolation:
		if conflict == nil {
			conflict = domain.ErrConflict
		}
		return fmt.Errorf("%w (%s)", conflict, pgErr.ConstraintName)
	case pgForeignKeyViolation:
		return fmt.Errorf("%w: referenced row (%s)", domain.ErrNotFound, pgErr.ConstraintName)
	case pgCheckViolation:
		return domain.NewValidationError(pgErr.ColumnName, "violates constraint "+pgErr.ConstraintName)
	}
	return err
}

func normLimit(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
