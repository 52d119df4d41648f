package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/library-management/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

var errDuplicate = &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
var errNoParent = &mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"}

func TestAuthorRepo_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAuthorRepo(db)

	mock.ExpectExec(`INSERT INTO authors \(name, biography, birth_date\) VALUES`).
		WithArgs("Leo Tolstoy", "Russian novelist", "1828-09-09").
		WillReturnResult(sqlmock.NewResult(11, 1))

	bd, _ := model.ParseDate("1828-09-09")
	a := &model.Author{Name: "Leo Tolstoy", Biography: "Russian novelist", BirthDate: bd}
	require.NoError(t, repo.Create(context.Background(), a))
	assert.Equal(t, uint64(11), a.ID)
}

func TestAuthorRepo_CreateDuplicateIsConflict(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAuthorRepo(db)

	mock.ExpectExec(`INSERT INTO authors`).WillReturnError(errDuplicate)

	bd, _ := model.ParseDate("1900-01-01")
	err := repo.Create(context.Background(), &model.Author{Name: "X", BirthDate: bd})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestAuthorRepo_GetByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAuthorRepo(db)

	mock.ExpectQuery(`SELECT id, name, biography, birth_date FROM authors WHERE id = \?`).
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "biography", "birth_date"}))

	_, err := repo.GetByID(context.Background(), 5)
	assert.ErrorIs(t, err, ErrAuthorNotFound)
}

func TestAuthorRepo_UpdateMissingRow(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAuthorRepo(db)

	mock.ExpectExec(`UPDATE authors SET`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &model.Author{ID: 9, Name: "n"})
	assert.ErrorIs(t, err, ErrAuthorNotFound)
}

func TestAuthorRepo_Delete(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAuthorRepo(db)

	mock.ExpectExec(`DELETE FROM authors WHERE id = \?`).WithArgs(uint64(3)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM authors WHERE id = \?`).WithArgs(uint64(4)).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), 3))
	assert.ErrorIs(t, repo.Delete(context.Background(), 4), ErrAuthorNotFound)
}

func TestBookRepo_CreateUnknownAuthor(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookRepo(db)

	mock.ExpectExec(`INSERT INTO books`).WillReturnError(errNoParent)

	err := repo.Create(context.Background(), &model.Book{Title: "t", AuthorID: 99})
	assert.ErrorIs(t, err, ErrAuthorNotFound)
}

func TestBookRepo_CreateDuplicateTitle(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookRepo(db)

	mock.ExpectExec(`INSERT INTO books`).WillReturnError(errDuplicate)

	err := repo.Create(context.Background(), &model.Book{Title: "t", AuthorID: 1})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestBookRepo_TakeCopy(t *testing.T) {
	const takeSQL = `UPDATE books SET available = available - 1 WHERE id = \? AND available > 0`
	const existsSQL = `SELECT EXISTS\(SELECT 1 FROM books WHERE id = \?\)`

	t.Run("decrements", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(takeSQL).WithArgs(uint64(1)).WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, NewBookRepo(db).TakeCopy(context.Background(), 1))
	})

	t.Run("no copies left", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(takeSQL).WithArgs(uint64(1)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(existsSQL).WithArgs(uint64(1)).WillReturnRows(sqlmock.NewRows([]string{"e"}).AddRow(true))

		assert.ErrorIs(t, NewBookRepo(db).TakeCopy(context.Background(), 1), ErrNoCopiesAvailable)
	})

	t.Run("missing book", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(takeSQL).WithArgs(uint64(2)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(existsSQL).WithArgs(uint64(2)).WillReturnRows(sqlmock.NewRows([]string{"e"}).AddRow(false))

		assert.ErrorIs(t, NewBookRepo(db).TakeCopy(context.Background(), 2), ErrBookNotFound)
	})
}

func TestBookRepo_ReturnCopy(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`UPDATE books SET available = available \+ 1 WHERE id = \?`).
		WithArgs(uint64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewBookRepo(db).ReturnCopy(context.Background(), 8))
}

func TestBorrowRepo_CreateAndCount(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBorrowRepo(db)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO borrows \(book_id, reader_id, borrow_date\)`).
		WithArgs(uint64(3), uint64(4), at).
		WillReturnResult(sqlmock.NewResult(21, 1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM borrows WHERE reader_id = \? AND return_date IS NULL`).
		WithArgs(uint64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))

	b, err := repo.Create(context.Background(), 3, 4, at)
	require.NoError(t, err)
	assert.Equal(t, uint64(21), b.ID)
	assert.True(t, b.IsOpen())

	n, err := repo.CountOpenByReader(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBorrowRepo_CreateIntegrityFailureIsConflict(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO borrows`).WillReturnError(errNoParent)

	_, err := NewBorrowRepo(db).Create(context.Background(), 3, 4, time.Now())
	assert.ErrorIs(t, err, ErrConflict)
}

func TestBorrowRepo_GetByIDScansReturnDate(t *testing.T) {
	db, mock := newMock(t)
	borrowed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	returned := borrowed.Add(48 * time.Hour)

	mock.ExpectQuery(`SELECT id, book_id, reader_id, borrow_date, return_date FROM borrows WHERE id = \?`).
		WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "book_id", "reader_id", "borrow_date", "return_date"}).
			AddRow(uint64(1), uint64(2), uint64(3), borrowed, returned))

	b, err := NewBorrowRepo(db).GetByID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, b.ReturnDate)
	assert.True(t, returned.Equal(*b.ReturnDate))
	assert.False(t, b.IsOpen())
}

func TestBorrowRepo_CloseAlreadyReturned(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`UPDATE borrows SET return_date = \? WHERE id = \? AND return_date IS NULL`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewBorrowRepo(db).Close(context.Background(), 1, time.Now())
	assert.ErrorIs(t, err, ErrAlreadyReturned)
}

func TestUserRepo_CreateDuplicate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO users \(username, hashed_password, role\)`).
		WithArgs("alice", "hash", "reader").
		WillReturnError(errDuplicate)

	_, err := NewUserRepo(db).Create(context.Background(), " alice ", "hash", "reader")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUserRepo_LockByIDMissing(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`SELECT id FROM users WHERE id=\? FOR UPDATE`).
		WithArgs(uint64(77)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	assert.ErrorIs(t, NewUserRepo(db).LockByID(context.Background(), 77), ErrUserNotFound)
}

func TestUserRepo_UpdateUsernameTaken(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`UPDATE users SET username=\? WHERE id=\?`).WillReturnError(errDuplicate)

	assert.ErrorIs(t, NewUserRepo(db).UpdateUsername(context.Background(), 1, "bob"), ErrConflict)
}

func TestIsDuplicate_UnwrapsWrappedErrors(t *testing.T) {
	wrapped := errors.Join(errors.New("exec"), errDuplicate)
	assert.True(t, isDuplicate(wrapped))
	assert.False(t, isDuplicate(errors.New("plain")))
	assert.True(t, isMissingParent(errNoParent))
}
