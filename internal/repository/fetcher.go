package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliyamo/library-management/internal/model"
)

// PageRequest is an offset/limit window.  Both values are non-negative.
type PageRequest struct {
	Offset int
	Limit  int
}

// NewPageRequest rejects negative values and caps limit at maxLimit when
// maxLimit is positive.
func NewPageRequest(offset, limit, maxLimit int) (PageRequest, error) {
	if offset < 0 {
		return PageRequest{}, &ValidationError{Field: "offset", Msg: "must be >= 0"}
	}
	if limit < 0 {
		return PageRequest{}, &ValidationError{Field: "limit", Msg: "must be >= 0"}
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return PageRequest{Offset: offset, Limit: limit}, nil
}

// Fetcher runs filtered, paginated reads against any Table.  SQL is built
// with goqu's MySQL dialect and rows are scanned by sqlx using db tags.
type Fetcher struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
	tracer  trace.Tracer
}

// NewFetcher wraps an open *sql.DB.
func NewFetcher(db *sql.DB) *Fetcher {
	return &Fetcher{
		db:      sqlx.NewDb(db, "mysql"),
		dialect: goqu.Dialect("mysql"),
		tracer:  otel.Tracer("library-management/repository"),
	}
}

// Paginate counts the rows of t matching every filter, then loads the
// requested window ordered by id.  Filters are ANDed, so an owner filter
// combined with a caller-supplied one can only narrow the result.
func Paginate[T any](ctx context.Context, f *Fetcher, t Table, page PageRequest, filters ...Filter) (model.Page[T], error) {
	ctx, span := f.tracer.Start(ctx, "repository.paginate",
		trace.WithAttributes(
			attribute.String("db.table", t.Name),
			attribute.Int("page.offset", page.Offset),
			attribute.Int("page.limit", page.Limit),
			attribute.StringSlice("filter.columns", activeColumns(filters)),
		),
	)
	defer span.End()

	out := model.Page[T]{Offset: page.Offset, Limit: page.Limit, Data: []T{}}
	where := conditions(filters)

	countSQL, countArgs, err := f.dialect.From(t.Name).Prepared(true).
		Select(goqu.COUNT(goqu.Star())).
		Where(where...).
		ToSQL()
	if err != nil {
		return out, fmt.Errorf("build count query: %w", err)
	}
	if err := f.db.GetContext(ctx, &out.TotalCount, countSQL, countArgs...); err != nil {
		span.RecordError(err)
		return out, fmt.Errorf("count %s: %w", t.Name, err)
	}
	span.SetAttributes(attribute.Int("page.total", out.TotalCount))

	if page.Limit == 0 || page.Offset >= out.TotalCount {
		return out, nil
	}

	cols := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = c
	}
	dataSQL, dataArgs, err := f.dialect.From(t.Name).Prepared(true).
		Select(cols...).
		Where(where...).
		Order(goqu.I("id").Asc()).
		Limit(uint(page.Limit)).
		Offset(uint(page.Offset)).
		ToSQL()
	if err != nil {
		return out, fmt.Errorf("build select query: %w", err)
	}
	if err := f.db.SelectContext(ctx, &out.Data, dataSQL, dataArgs...); err != nil {
		span.RecordError(err)
		return out, fmt.Errorf("select %s: %w", t.Name, err)
	}
	return out, nil
}

// PaginateByOwner scopes Paginate to rows whose ownerColumn equals ownerID.
func PaginateByOwner[T any](ctx context.Context, f *Fetcher, t Table, ownerColumn string, ownerID uint64, page PageRequest, filter Filter) (model.Page[T], error) {
	return Paginate[T](ctx, f, t, page, Filter{Column: ownerColumn, Value: ownerID}, filter)
}

func conditions(filters []Filter) []exp.Expression {
	out := make([]exp.Expression, 0, len(filters))
	for _, fl := range filters {
		if fl.Empty() {
			continue
		}
		if fl.IsNull {
			out = append(out, goqu.C(fl.Column).IsNull())
			continue
		}
		out = append(out, goqu.C(fl.Column).Eq(fl.Value))
	}
	return out
}

func activeColumns(filters []Filter) []string {
	var cols []string
	for _, fl := range filters {
		if !fl.Empty() {
			cols = append(cols, fl.Column)
		}
	}
	return cols
}
