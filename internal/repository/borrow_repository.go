package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/library-management/internal/dbx"
	"github.com/iliyamo/library-management/internal/model"
)

// BorrowRepo encapsulates queries on the borrows table.
type BorrowRepo struct {
	db dbx.DBTX
}

func NewBorrowRepo(db dbx.DBTX) *BorrowRepo {
	return &BorrowRepo{db: db}
}

const borrowColumns = "id, book_id, reader_id, borrow_date, return_date"

func scanBorrow(row *sql.Row) (*model.Borrow, error) {
	var (
		b        model.Borrow
		returned sql.NullTime
	)
	if err := row.Scan(&b.ID, &b.BookID, &b.ReaderID, &b.BorrowDate, &returned); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBorrowNotFound
		}
		return nil, err
	}
	if returned.Valid {
		t := returned.Time
		b.ReturnDate = &t
	}
	return &b, nil
}

// Create inserts an open borrow.  Integrity failures (missing book or
// reader) are reported as ErrConflict so the caller's transaction rolls back.
func (r *BorrowRepo) Create(ctx context.Context, bookID, readerID uint64, at time.Time) (*model.Borrow, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO borrows (book_id, reader_id, borrow_date) VALUES (?, ?, ?)",
		bookID, readerID, at)
	if err != nil {
		if isDuplicate(err) || isMissingParent(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &model.Borrow{ID: uint64(id), BookID: bookID, ReaderID: readerID, BorrowDate: at}, nil
}

// GetByID returns ErrBorrowNotFound when no row matches.
func (r *BorrowRepo) GetByID(ctx context.Context, id uint64) (*model.Borrow, error) {
	return scanBorrow(r.db.QueryRowContext(ctx, "SELECT "+borrowColumns+" FROM borrows WHERE id = ?", id))
}

// GetByIDForUpdate locks the borrow row for the rest of the transaction.
func (r *BorrowRepo) GetByIDForUpdate(ctx context.Context, id uint64) (*model.Borrow, error) {
	return scanBorrow(r.db.QueryRowContext(ctx, "SELECT "+borrowColumns+" FROM borrows WHERE id = ? FOR UPDATE", id))
}

// CountOpenByReader counts borrows of the reader that are not returned yet.
func (r *BorrowRepo) CountOpenByReader(ctx context.Context, readerID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM borrows WHERE reader_id = ? AND return_date IS NULL", readerID).Scan(&n)
	return n, err
}

// Close stamps return_date on an open borrow.  A borrow that is already
// closed (or missing) is left untouched and ErrAlreadyReturned is returned.
func (r *BorrowRepo) Close(ctx context.Context, id uint64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE borrows SET return_date = ? WHERE id = ? AND return_date IS NULL", at, id)
	return affectedOrNotFound(res, err, ErrAlreadyReturned)
}
