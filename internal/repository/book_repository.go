package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/library-management/internal/dbx"
	"github.com/iliyamo/library-management/internal/model"
)

// BookRepo encapsulates queries on the books table, including the stock
// counter used by the borrow workflow.
type BookRepo struct {
	db dbx.DBTX
}

func NewBookRepo(db dbx.DBTX) *BookRepo {
	return &BookRepo{db: db}
}

const bookColumns = "id, title, description, genres, publication_date, author_id, available"

func scanBook(row *sql.Row) (*model.Book, error) {
	var b model.Book
	if err := row.Scan(&b.ID, &b.Title, &b.Description, &b.Genres, &b.PublicationDate, &b.AuthorID, &b.Available); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	return &b, nil
}

// Create inserts the book.  An unknown author_id is ErrAuthorNotFound, a
// duplicate (title, author_id) is ErrConflict.
func (r *BookRepo) Create(ctx context.Context, b *model.Book) error {
	const q = `INSERT INTO books (title, description, genres, publication_date, author_id, available)
	           VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, b.Title, b.Description, b.Genres, b.PublicationDate, b.AuthorID, b.Available)
	if err != nil {
		switch {
		case isDuplicate(err):
			return ErrConflict
		case isMissingParent(err):
			return ErrAuthorNotFound
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// GetByID returns ErrBookNotFound when no row matches.
func (r *BookRepo) GetByID(ctx context.Context, id uint64) (*model.Book, error) {
	return scanBook(r.db.QueryRowContext(ctx, "SELECT "+bookColumns+" FROM books WHERE id = ?", id))
}

// GetByIDForUpdate is GetByID with a row lock; only meaningful inside a transaction.
func (r *BookRepo) GetByIDForUpdate(ctx context.Context, id uint64) (*model.Book, error) {
	return scanBook(r.db.QueryRowContext(ctx, "SELECT "+bookColumns+" FROM books WHERE id = ? FOR UPDATE", id))
}

// Exists reports whether a book with id is present.
func (r *BookRepo) Exists(ctx context.Context, id uint64) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM books WHERE id = ?)", id).Scan(&ok)
	return ok, err
}

// Update overwrites every column of the book identified by b.ID.
func (r *BookRepo) Update(ctx context.Context, b *model.Book) error {
	const q = `UPDATE books SET title = ?, description = ?, genres = ?, publication_date = ?, author_id = ?, available = ?
	           WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, b.Title, b.Description, b.Genres, b.PublicationDate, b.AuthorID, b.Available, b.ID)
	if err != nil {
		switch {
		case isDuplicate(err):
			return ErrConflict
		case isMissingParent(err):
			return ErrAuthorNotFound
		}
	}
	return affectedOrNotFound(res, err, ErrBookNotFound)
}

// Delete removes the book and, through the foreign key, its borrows.
func (r *BookRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM books WHERE id = ?", id)
	return affectedOrNotFound(res, err, ErrBookNotFound)
}

// TakeCopy decrements available by one.  The WHERE clause is the guard:
// two concurrent callers for the last copy cannot both match the row.
// Returns ErrBookNotFound or ErrNoCopiesAvailable when nothing was updated.
func (r *BookRepo) TakeCopy(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "UPDATE books SET available = available - 1 WHERE id = ? AND available > 0", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	ok, err := r.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrBookNotFound
	}
	return ErrNoCopiesAvailable
}

// ReturnCopy increments available by one.
func (r *BookRepo) ReturnCopy(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "UPDATE books SET available = available + 1 WHERE id = ?", id)
	return affectedOrNotFound(res, err, ErrBookNotFound)
}
