package model

import "time"

// MaxOpenBorrows is how many books a reader may hold at the same time.
const MaxOpenBorrows = 5

// Borrow records a single lending of a book to a reader.  A nil ReturnDate
// means the borrow is still open; once set the record never changes again.
type Borrow struct {
	ID         uint64     `json:"id" db:"id"`
	BookID     uint64     `json:"book_id" db:"book_id"`
	ReaderID   uint64     `json:"reader_id" db:"reader_id"`
	BorrowDate time.Time  `json:"borrow_date" db:"borrow_date"`
	ReturnDate *time.Time `json:"return_date,omitempty" db:"return_date"`
}

// IsOpen reports whether the book has not been returned yet.
func (b Borrow) IsOpen() bool { return b.ReturnDate == nil }
