package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/hourwatch/slot-reservation/internal/model"
)

// ReservationRepo provides transactional access to the reservations table.
// Every mutating method runs inside a single transaction with a
// SELECT ... FOR UPDATE locking read, so concurrent operations on the same
// slot key or the same secret are serialized by the database.  All timestamps
// are stored and compared in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the underlying pool for integration tests and migrations.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

const reservationCols = `id, slot_start, slot_end, name, email, title, is_public, secret, created_at, confirmed_at`

// scanReservation reads one reservation row from any row scanner.
func scanReservation(row interface{ Scan(...any) error }) (*model.Reservation, error) {
	var (
		res         model.Reservation
		isPublic    bool
		confirmedAt sql.NullTime
	)
	if err := row.Scan(
		&res.ID, &res.SlotStart, &res.SlotEnd, &res.Name, &res.Email,
		&res.Title, &isPublic, &res.Secret, &res.CreatedAt, &confirmedAt,
	); err != nil {
		return nil, err
	}
	res.IsPublic = isPublic
	if confirmedAt.Valid {
		t := confirmedAt.Time.UTC()
		res.ConfirmedAt = &t
	}
	res.SlotStart = res.SlotStart.UTC()
	res.SlotEnd = res.SlotEnd.UTC()
	res.CreatedAt = res.CreatedAt.UTC()
	return &res, nil
}

// Create inserts a new pending reservation for the given slot.  It is a
// test-and-set on the slot key: within one transaction it takes a locking
// read on (slot_start, slot_end) and inserts only when no row exists.  Two
// concurrent calls for the same slot are linearized by the row lock; exactly
// one commits, the others observe the inserted row (or trip the unique
// constraint under a gap-lock race) and get ErrSlotTaken.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var existing uint64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM reservations WHERE slot_start = ? AND slot_end = ? FOR UPDATE`,
		res.SlotStart.UTC(), res.SlotEnd.UTC(),
	).Scan(&existing)
	switch {
	case err == nil:
		return ErrSlotTaken
	case errors.Is(err, sql.ErrNoRows):
		// slot free, fall through to insert
	default:
		return err
	}

	res.CreatedAt = time.Now().UTC().Truncate(time.Second)
	result, err := tx.ExecContext(ctx,
		`INSERT INTO reservations (slot_start, slot_end, name, email, title, is_public, secret, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		res.SlotStart.UTC(), res.SlotEnd.UTC(), res.Name, res.Email, res.Title, res.IsPublic, res.Secret, res.CreatedAt,
	)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			return ErrSlotTaken
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// FindBySecret returns the reservation identified by the given secret without
// taking any lock.  Used by the GET landing pages, where nothing mutates.
func (r *ReservationRepo) FindBySecret(ctx context.Context, secret string) (*model.Reservation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+reservationCols+` FROM reservations WHERE secret = ? LIMIT 1`, secret)
	res, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return res, err
}

// ConfirmBySecret marks the reservation confirmed.  The row is locked first;
// if confirmed_at is already set the call is an idempotent no-op and returns
// firstTime=false with the original timestamp.  Notifications must key off
// firstTime so they fire at most once per reservation.
func (r *ReservationRepo) ConfirmBySecret(ctx context.Context, secret string) (*model.Reservation, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx,
		`SELECT `+reservationCols+` FROM reservations WHERE secret = ? LIMIT 1 FOR UPDATE`, secret)
	res, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, ErrNotFound
	}
	if err != nil {
		return nil, false, err
	}

	if res.ConfirmedAt != nil {
		// Already confirmed: commit the (empty) transaction to release the
		// lock and report the existing timestamp.
		if err := tx.Commit(); err != nil {
			return nil, false, err
		}
		committed = true
		return res, false, nil
	}

	now := time.Now().UTC().Truncate(time.Second)
	if _, err := tx.ExecContext(ctx,
		`UPDATE reservations SET confirmed_at = ? WHERE id = ?`, now, res.ID,
	); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	committed = true
	res.ConfirmedAt = &now
	return res, true, nil
}

// CancelBySecret deletes the reservation and returns its prior contents for
// use in the cancellation notification.  Cancellation is terminal: any later
// confirm or cancel on the same secret gets ErrNotFound.
func (r *ReservationRepo) CancelBySecret(ctx context.Context, secret string) (*model.Reservation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx,
		`SELECT `+reservationCols+` FROM reservations WHERE secret = ? LIMIT 1 FOR UPDATE`, secret)
	res, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM reservations WHERE id = ? AND secret = ?`, res.ID, secret,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return res, nil
}

// ListAll returns every live reservation ordered by slot start.  Used to
// render the availability table; no locks are taken.
func (r *ReservationRepo) ListAll(ctx context.Context) ([]*model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reservationCols+` FROM reservations ORDER BY slot_start`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
