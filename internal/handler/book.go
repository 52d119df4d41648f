package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-management/internal/config"
	"github.com/iliyamo/library-management/internal/logging"
	"github.com/iliyamo/library-management/internal/model"
	"github.com/iliyamo/library-management/internal/repository"
)

// BookHandler serves /books.
type BookHandler struct {
	Books   *repository.BookRepo
	Fetcher *repository.Fetcher
	Paging  config.PaginationConfig
	Log     logging.Logger
}

func NewBookHandler(books *repository.BookRepo, fetcher *repository.Fetcher, paging config.PaginationConfig, log logging.Logger) *BookHandler {
	return &BookHandler{Books: books, Fetcher: fetcher, Paging: paging, Log: log}
}

type bookReq struct {
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Genres          string     `json:"genres"`
	PublicationDate model.Date `json:"publication_date"`
	AuthorID        uint64     `json:"author_id"`
	Available       int        `json:"available"`
}

func (r bookReq) validate() error {
	switch {
	case strings.TrimSpace(r.Title) == "":
		return &repository.ValidationError{Field: "title", Msg: "must not be empty"}
	case r.PublicationDate.IsZero():
		return &repository.ValidationError{Field: "publication_date", Msg: "required (YYYY-MM-DD)"}
	case r.AuthorID == 0:
		return &repository.ValidationError{Field: "author_id", Msg: "required"}
	case r.Available < 0:
		return &repository.ValidationError{Field: "available", Msg: "must be >= 0"}
	}
	return nil
}

func (r bookReq) model(id uint64) *model.Book {
	return &model.Book{
		ID:              id,
		Title:           strings.TrimSpace(r.Title),
		Description:     r.Description,
		Genres:          r.Genres,
		PublicationDate: r.PublicationDate,
		AuthorID:        r.AuthorID,
		Available:       r.Available,
	}
}

// Create: POST /books.  The author must exist (404 otherwise).
func (h *BookHandler) Create(c echo.Context) error {
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := req.validate(); err != nil {
		return respond(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	b := req.model(0)
	if err := h.Books.Create(ctx, b); err != nil {
		return respond(c, h.Log, err)
	}
	h.Log.Info(ctx, "book created", "actor_id", actorID(c), "book_id", b.ID)
	return c.JSON(http.StatusCreated, b)
}

// List: GET /books?offset=&limit=&field=&value=
func (h *BookHandler) List(c echo.Context) error {
	page, filter, err := listParams(c, h.Paging, repository.BookTable)
	if err != nil {
		return respond(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	out, err := repository.Paginate[model.Book](ctx, h.Fetcher, repository.BookTable, page, filter)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Get: GET /books/:id
func (h *BookHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respond(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	b, err := h.Books.GetByID(ctx, id)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Update: PUT /books/:id replaces every field, stock included.
func (h *BookHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respond(c, h.Log, err)
	}
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := req.validate(); err != nil {
		return respond(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	b := req.model(id)
	if err := h.Books.Update(ctx, b); err != nil {
		return respond(c, h.Log, err)
	}
	h.Log.Info(ctx, "book updated", "actor_id", actorID(c), "book_id", b.ID)
	return c.JSON(http.StatusOK, b)
}

// Delete: DELETE /books/:id removes the book with its borrows.
func (h *BookHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respond(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Books.Delete(ctx, id); err != nil {
		return respond(c, h.Log, err)
	}
	h.Log.Info(ctx, "book deleted", "actor_id", actorID(c), "book_id", id)
	return c.NoContent(http.StatusNoContent)
}
