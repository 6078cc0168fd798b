package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hourwatch/slot-reservation/internal/model"
)

const (
	lockSlotQ   = `SELECT id FROM reservations WHERE slot_start = ? AND slot_end = ? FOR UPDATE`
	insertQ     = `INSERT INTO reservations (slot_start, slot_end, name, email, title, is_public, secret, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	lockSecretQ = `SELECT id, slot_start, slot_end, name, email, title, is_public, secret, created_at, confirmed_at FROM reservations WHERE secret = ? LIMIT 1 FOR UPDATE`
	findQ       = `SELECT id, slot_start, slot_end, name, email, title, is_public, secret, created_at, confirmed_at FROM reservations WHERE secret = ? LIMIT 1`
)

func newMockRepo(t *testing.T) (*ReservationRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewReservationRepo(db), mock
}

func testReservation() *model.Reservation {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return &model.Reservation{
		SlotStart: start,
		SlotEnd:   start.Add(time.Hour),
		Name:      "Ada Lovelace",
		Email:     "ada@example.org",
		Title:     "morning hour",
		IsPublic:  true,
		Secret:    "aabbccddeeff00112233445566778899",
	}
}

func reservationRow(res *model.Reservation, confirmedAt any) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "slot_start", "slot_end", "name", "email", "title", "is_public", "secret", "created_at", "confirmed_at",
	}).AddRow(7, res.SlotStart, res.SlotEnd, res.Name, res.Email, res.Title, res.IsPublic, res.Secret, res.SlotStart.Add(-time.Hour), confirmedAt)
}

func TestCreateInsertsWhenSlotFree(t *testing.T) {
	repo, mock := newMockRepo(t)
	res := testReservation()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockSlotQ)).
		WithArgs(res.SlotStart, res.SlotEnd).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta(insertQ)).
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), res))
	assert.Equal(t, uint64(7), res.ID)
	assert.False(t, res.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReturnsSlotTakenOnExistingRow(t *testing.T) {
	repo, mock := newMockRepo(t)
	res := testReservation()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockSlotQ)).
		WithArgs(res.SlotStart, res.SlotEnd).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), res)
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMapsDuplicateKeyToSlotTaken(t *testing.T) {
	repo, mock := newMockRepo(t)
	res := testReservation()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockSlotQ)).
		WithArgs(res.SlotStart, res.SlotEnd).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta(insertQ)).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), res)
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindBySecretNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(findQ)).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindBySecret(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmBySecretFirstTime(t *testing.T) {
	repo, mock := newMockRepo(t)
	res := testReservation()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockSecretQ)).
		WithArgs(res.Secret).
		WillReturnRows(reservationRow(res, nil))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE reservations SET confirmed_at = ? WHERE id = ?`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, firstTime, err := repo.ConfirmBySecret(context.Background(), res.Secret)
	require.NoError(t, err)
	assert.True(t, firstTime)
	require.NotNil(t, got.ConfirmedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmBySecretIdempotent(t *testing.T) {
	repo, mock := newMockRepo(t)
	res := testReservation()
	confirmed := time.Date(2024, 2, 28, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockSecretQ)).
		WithArgs(res.Secret).
		WillReturnRows(reservationRow(res, confirmed))
	mock.ExpectCommit() // no UPDATE issued

	got, firstTime, err := repo.ConfirmBySecret(context.Background(), res.Secret)
	require.NoError(t, err)
	assert.False(t, firstTime)
	require.NotNil(t, got.ConfirmedAt)
	assert.True(t, got.ConfirmedAt.Equal(confirmed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmBySecretNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockSecretQ)).
		WithArgs("gone").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, _, err := repo.ConfirmBySecret(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelBySecretDeletesAndReturnsRow(t *testing.T) {
	repo, mock := newMockRepo(t)
	res := testReservation()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockSecretQ)).
		WithArgs(res.Secret).
		WillReturnRows(reservationRow(res, nil))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM reservations WHERE id = ? AND secret = ?`)).
		WithArgs(uint64(7), res.Secret).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := repo.CancelBySecret(context.Background(), res.Secret)
	require.NoError(t, err)
	assert.Equal(t, res.Name, got.Name)
	assert.Equal(t, res.Email, got.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelBySecretNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockSecretQ)).
		WithArgs("gone").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.CancelBySecret(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAll(t *testing.T) {
	repo, mock := newMockRepo(t)
	res := testReservation()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, slot_start, slot_end, name, email, title, is_public, secret, created_at, confirmed_at FROM reservations ORDER BY slot_start`)).
		WillReturnRows(reservationRow(res, nil))

	out, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, res.Secret, out[0].Secret)
	assert.Nil(t, out[0].ConfirmedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
