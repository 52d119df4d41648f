// Package repository defines the data access layer and the sentinel errors
// that higher layers use to tell failure scenarios apart.  Handlers map
// these values to HTTP status codes in one place.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrForbidden is returned when the caller acts on a record owned by
// someone else.  Handlers translate it into 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict signals a uniqueness or integrity violation, such as a second
// author with the same name and birth date.  Handlers translate it into 409.
var ErrConflict = errors.New("resource already exists")

var (
	ErrAuthorNotFound = errors.New("author not found")
	ErrBookNotFound   = errors.New("book not found")
	ErrBorrowNotFound = errors.New("borrow not found")
	ErrUserNotFound   = errors.New("user not found")
)

// ErrNoCopiesAvailable is returned when a book's available count is zero.
var ErrNoCopiesAvailable = errors.New("there are no copies of the book available")

// ErrAlreadyReturned is returned when closing a borrow that is already closed.
var ErrAlreadyReturned = errors.New("the book has already been returned")

// ErrSessionNotFound means no refresh session is stored for the user.
var ErrSessionNotFound = errors.New("refresh session not found")

// MySQL server error numbers the repositories react to.
const (
	mysqlDuplicateEntry  = 1062
	mysqlNoReferencedRow = 1452
)

func mysqlErrNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// isDuplicate reports a unique key violation.
func isDuplicate(err error) bool { return mysqlErrNumber(err) == mysqlDuplicateEntry }

// isMissingParent reports an insert/update whose foreign key points nowhere.
func isMissingParent(err error) bool { return mysqlErrNumber(err) == mysqlNoReferencedRow }
