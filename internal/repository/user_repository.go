package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/library-management/internal/dbx"
	"github.com/iliyamo/library-management/internal/model"
)

type UserRepo struct{ db dbx.DBTX }

func NewUserRepo(db dbx.DBTX) *UserRepo { return &UserRepo{db: db} }

const userColumns = "id, username, hashed_password, role"

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Create inserts a user with an already hashed password.  A taken username
// yields ErrConflict.
func (r *UserRepo) Create(ctx context.Context, username, passwordHash, role string) (*model.User, error) {
	username = strings.TrimSpace(username)
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (username, hashed_password, role) VALUES (?,?,?)",
		username, passwordHash, role)
	if err != nil {
		if isDuplicate(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &model.User{ID: uint64(id), Username: username, PasswordHash: passwordHash, Role: role}, nil
}

// GetByUsername fetches a user by exact username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username=? LIMIT 1", strings.TrimSpace(username)))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// LockByID takes a row lock on the user for the rest of the transaction.
// The borrow workflow uses it to serialize a reader's concurrent requests.
func (r *UserRepo) LockByID(ctx context.Context, id uint64) error {
	var got uint64
	err := r.db.QueryRowContext(ctx, "SELECT id FROM users WHERE id=? FOR UPDATE", id).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	return err
}

// UpdatePassword stores a new password hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE users SET hashed_password=? WHERE id=?", passwordHash, id)
	return affectedOrNotFound(res, err, ErrUserNotFound)
}

// UpdateUsername renames a user; ErrConflict when the name is taken.
func (r *UserRepo) UpdateUsername(ctx context.Context, id uint64, username string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE users SET username=? WHERE id=?", strings.TrimSpace(username), id)
	if err != nil && isDuplicate(err) {
		return ErrConflict
	}
	return affectedOrNotFound(res, err, ErrUserNotFound)
}

// SetRole changes the role of the named user.
func (r *UserRepo) SetRole(ctx context.Context, username, role string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE users SET role=? WHERE username=?", role, strings.TrimSpace(username))
	return affectedOrNotFound(res, err, ErrUserNotFound)
}

// affectedOrNotFound turns a zero-row UPDATE/DELETE into notFound.  The DSN
// sets clientFoundRows, so unchanged-but-matched rows still count.
func affectedOrNotFound(res sql.Result, err error, notFound error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
