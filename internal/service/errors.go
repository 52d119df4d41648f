// Package service holds the business workflows: the borrow lifecycle and
// account/token management.  Handlers call services; services call
// repositories and never see HTTP types.
package service

import "errors"

var (
	// ErrBorrowLimitExceeded is returned when a reader already holds
	// model.MaxOpenBorrows open borrows.
	ErrBorrowLimitExceeded = errors.New("you can't borrow more than 5 books at the same time")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("token is missing or invalid")
	ErrPasswordMismatch   = errors.New("the two password fields didn't match")
)
