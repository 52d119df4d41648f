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

// AuthorHandler serves /authors.
type AuthorHandler struct {
	Authors *repository.AuthorRepo
	Fetcher *repository.Fetcher
	Paging  config.PaginationConfig
	Log     logging.Logger
}

func NewAuthorHandler(authors *repository.AuthorRepo, fetcher *repository.Fetcher, paging config.PaginationConfig, log logging.Logger) *AuthorHandler {
	return &AuthorHandler{Authors: authors, Fetcher: fetcher, Paging: paging, Log: log}
}

type authorReq struct {
	Name      string     `json:"name"`
	Biography string     `json:"biography"`
	BirthDate model.Date `json:"birth_date"`
}

func (r authorReq) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return &repository.ValidationError{Field: "name", Msg: "must not be empty"}
	}
	if r.BirthDate.IsZero() {
		return &repository.ValidationError{Field: "birth_date", Msg: "required (YYYY-MM-DD)"}
	}
	return nil
}

func (r authorReq) model(id uint64) *model.Author {
	return &model.Author{ID: id, Name: strings.TrimSpace(r.Name), Biography: r.Biography, BirthDate: r.BirthDate}
}

// Create: POST /authors
func (h *AuthorHandler) Create(c echo.Context) error {
	var req authorReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := req.validate(); err != nil {
		return respond(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	a := req.model(0)
	if err := h.Authors.Create(ctx, a); err != nil {
		return respond(c, h.Log, err)
	}
	h.Log.Info(ctx, "author created", "actor_id", actorID(c), "author_id", a.ID)
	return c.JSON(http.StatusCreated, a)
}

// List: GET /authors?offset=&limit=&field=&value=
func (h *AuthorHandler) List(c echo.Context) error {
	page, filter, err := listParams(c, h.Paging, repository.AuthorTable)
	if err != nil {
		return respond(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	out, err := repository.Paginate[model.Author](ctx, h.Fetcher, repository.AuthorTable, page, filter)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Get: GET /authors/:id
func (h *AuthorHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respond(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	a, err := h.Authors.GetByID(ctx, id)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, a)
}

// Update: PUT /authors/:id replaces every field.
func (h *AuthorHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respond(c, h.Log, err)
	}
	var req authorReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := req.validate(); err != nil {
		return respond(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	a := req.model(id)
	if err := h.Authors.Update(ctx, a); err != nil {
		return respond(c, h.Log, err)
	}
	h.Log.Info(ctx, "author updated", "actor_id", actorID(c), "author_id", a.ID)
	return c.JSON(http.StatusOK, a)
}

// Delete: DELETE /authors/:id removes the author with its books and borrows.
func (h *AuthorHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respond(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Authors.Delete(ctx, id); err != nil {
		return respond(c, h.Log, err)
	}
	h.Log.Info(ctx, "author deleted", "actor_id", actorID(c), "author_id", id)
	return c.NoContent(http.StatusNoContent)
}
