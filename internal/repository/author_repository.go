package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/library-management/internal/dbx"
	"github.com/iliyamo/library-management/internal/model"
)

// AuthorRepo encapsulates queries on the authors table.
type AuthorRepo struct {
	db dbx.DBTX
}

func NewAuthorRepo(db dbx.DBTX) *AuthorRepo {
	return &AuthorRepo{db: db}
}

// Create inserts a new author and fills in its ID.  A second author with the
// same name and birth date is ErrConflict.
func (r *AuthorRepo) Create(ctx context.Context, a *model.Author) error {
	const q = "INSERT INTO authors (name, biography, birth_date) VALUES (?, ?, ?)"
	res, err := r.db.ExecContext(ctx, q, a.Name, a.Biography, a.BirthDate)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	return nil
}

// GetByID returns ErrAuthorNotFound when no row matches.
func (r *AuthorRepo) GetByID(ctx context.Context, id uint64) (*model.Author, error) {
	const q = "SELECT id, name, biography, birth_date FROM authors WHERE id = ?"
	var a model.Author
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&a.ID, &a.Name, &a.Biography, &a.BirthDate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAuthorNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Exists reports whether an author with id is present.
func (r *AuthorRepo) Exists(ctx context.Context, id uint64) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM authors WHERE id = ?)", id).Scan(&ok)
	return ok, err
}

// Update overwrites every column of the author identified by a.ID.
func (r *AuthorRepo) Update(ctx context.Context, a *model.Author) error {
	const q = "UPDATE authors SET name = ?, biography = ?, birth_date = ? WHERE id = ?"
	res, err := r.db.ExecContext(ctx, q, a.Name, a.Biography, a.BirthDate, a.ID)
	if err != nil && isDuplicate(err) {
		return ErrConflict
	}
	return affectedOrNotFound(res, err, ErrAuthorNotFound)
}

// Delete removes the author.  Books and their borrows go with it through
// the ON DELETE CASCADE foreign keys, in the same statement.
func (r *AuthorRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM authors WHERE id = ?", id)
	return affectedOrNotFound(res, err, ErrAuthorNotFound)
}
