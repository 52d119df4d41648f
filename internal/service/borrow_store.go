package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/library-management/internal/dbx"
	"github.com/iliyamo/library-management/internal/model"
	"github.com/iliyamo/library-management/internal/repository"
)

// BorrowTx is the set of operations the borrow workflow runs inside one
// transaction.
type BorrowTx interface {
	LockReader(ctx context.Context, readerID uint64) error
	CountOpenBorrows(ctx context.Context, readerID uint64) (int, error)
	TakeCopy(ctx context.Context, bookID uint64) error
	ReturnCopy(ctx context.Context, bookID uint64) error
	InsertBorrow(ctx context.Context, bookID, readerID uint64, at time.Time) (*model.Borrow, error)
	LockBorrow(ctx context.Context, id uint64) (*model.Borrow, error)
	LockBook(ctx context.Context, id uint64) (*model.Book, error)
	CloseBorrow(ctx context.Context, id uint64, at time.Time) error
}

// BorrowStore runs fn atomically: every BorrowTx call made by fn commits
// together or not at all.
type BorrowStore interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx BorrowTx) error) error
	GetBorrow(ctx context.Context, id uint64) (*model.Borrow, error)
}

// SQLBorrowStore implements BorrowStore on MySQL.
type SQLBorrowStore struct {
	db *sql.DB
}

func NewSQLBorrowStore(db *sql.DB) *SQLBorrowStore {
	return &SQLBorrowStore{db: db}
}

func (s *SQLBorrowStore) InTx(ctx context.Context, fn func(ctx context.Context, tx BorrowTx) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, sqlBorrowTx{
			users:   repository.NewUserRepo(tx),
			books:   repository.NewBookRepo(tx),
			borrows: repository.NewBorrowRepo(tx),
		})
	})
}

func (s *SQLBorrowStore) GetBorrow(ctx context.Context, id uint64) (*model.Borrow, error) {
	return repository.NewBorrowRepo(s.db).GetByID(ctx, id)
}

type sqlBorrowTx struct {
	users   *repository.UserRepo
	books   *repository.BookRepo
	borrows *repository.BorrowRepo
}

func (t sqlBorrowTx) LockReader(ctx context.Context, readerID uint64) error {
	return t.users.LockByID(ctx, readerID)
}

func (t sqlBorrowTx) CountOpenBorrows(ctx context.Context, readerID uint64) (int, error) {
	return t.borrows.CountOpenByReader(ctx, readerID)
}

func (t sqlBorrowTx) TakeCopy(ctx context.Context, bookID uint64) error {
	return t.books.TakeCopy(ctx, bookID)
}

func (t sqlBorrowTx) ReturnCopy(ctx context.Context, bookID uint64) error {
	return t.books.ReturnCopy(ctx, bookID)
}

func (t sqlBorrowTx) InsertBorrow(ctx context.Context, bookID, readerID uint64, at time.Time) (*model.Borrow, error) {
	return t.borrows.Create(ctx, bookID, readerID, at)
}

func (t sqlBorrowTx) LockBorrow(ctx context.Context, id uint64) (*model.Borrow, error) {
	return t.borrows.GetByIDForUpdate(ctx, id)
}

func (t sqlBorrowTx) LockBook(ctx context.Context, id uint64) (*model.Book, error) {
	return t.books.GetByIDForUpdate(ctx, id)
}

func (t sqlBorrowTx) CloseBorrow(ctx context.Context, id uint64, at time.Time) error {
	return t.borrows.Close(ctx, id, at)
}
