package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-management/internal/config"
	"github.com/iliyamo/library-management/internal/logging"
	"github.com/iliyamo/library-management/internal/middleware"
	"github.com/iliyamo/library-management/internal/model"
	"github.com/iliyamo/library-management/internal/repository"
	"github.com/iliyamo/library-management/internal/service"
)

// BorrowHandler serves /borrows.  Writes go through the borrow service so
// that stock and borrow rows change together.
type BorrowHandler struct {
	Borrows *service.BorrowService
	Fetcher *repository.Fetcher
	Paging  config.PaginationConfig
	Log     logging.Logger
}

func NewBorrowHandler(borrows *service.BorrowService, fetcher *repository.Fetcher, paging config.PaginationConfig, log logging.Logger) *BorrowHandler {
	return &BorrowHandler{Borrows: borrows, Fetcher: fetcher, Paging: paging, Log: log}
}

// Create: POST /borrows?book_id=N lends one copy to the caller.
func (h *BorrowHandler) Create(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return respond(c, h.Log, service.ErrInvalidToken)
	}
	bookID, err := strconv.ParseUint(c.QueryParam("book_id"), 10, 64)
	if err != nil || bookID == 0 {
		return respond(c, h.Log, &repository.ValidationError{Field: "book_id", Msg: "must be a positive integer"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	b, err := h.Borrows.Create(ctx, bookID, u.ID)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// List: GET /borrows (admin) lists every borrow.
func (h *BorrowHandler) List(c echo.Context) error {
	page, filter, err := listParams(c, h.Paging, repository.BorrowTable)
	if err != nil {
		return respond(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	out, err := repository.Paginate[model.Borrow](ctx, h.Fetcher, repository.BorrowTable, page, filter)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ListMine: GET /borrows/user-borrows lists the caller's borrows only; a
// reader_id filter can narrow but never widen that scope.
func (h *BorrowHandler) ListMine(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return respond(c, h.Log, service.ErrInvalidToken)
	}
	page, filter, err := listParams(c, h.Paging, repository.BorrowTable)
	if err != nil {
		return respond(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	out, err := repository.PaginateByOwner[model.Borrow](ctx, h.Fetcher, repository.BorrowTable, "reader_id", u.ID, page, filter)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Get: GET /borrows/:id (admin)
func (h *BorrowHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respond(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	b, err := h.Borrows.Get(ctx, id)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Return: PATCH /borrows/:id/return closes the borrow.  Readers may only
// return their own.
func (h *BorrowHandler) Return(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return respond(c, h.Log, service.ErrInvalidToken)
	}
	id, err := parseID(c, "id")
	if err != nil {
		return respond(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	b, err := h.Borrows.Close(ctx, id, *u)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}
