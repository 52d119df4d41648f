package repository

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/library-management/internal/model"
)

// ValidationError reports unusable list parameters.  Handlers answer 400.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

// FieldSpec describes one filterable column: where it lives and how to turn
// the raw query-string value into a typed SQL argument.
type FieldSpec struct {
	Column   string
	Nullable bool
	Kind     string // human readable type used in error messages
	Parse    func(raw string) (any, error)
}

// Table is what the pagination engine needs to know about an entity.
type Table struct {
	Name    string
	Columns []string
	Fields  map[string]FieldSpec
}

// Filter is a single-column equality (or IS NULL) condition.  The zero value
// matches every row.
type Filter struct {
	Column string
	Value  any
	IsNull bool
}

// Empty reports whether the filter has no condition.
func (f Filter) Empty() bool { return f.Column == "" }

// ParseFilter builds a Filter from the field/value query parameters.  Both
// empty means no filter.  Unknown fields, a field without a value (or the
// reverse) and values that do not parse as the column type are rejected.
// The literal "null" matches rows where a nullable column is NULL.
func ParseFilter(t Table, field, raw string) (Filter, error) {
	field = strings.TrimSpace(field)
	if field == "" && raw == "" {
		return Filter{}, nil
	}
	if field == "" {
		return Filter{}, &ValidationError{Field: "field", Msg: "required when value is set"}
	}
	spec, ok := t.Fields[field]
	if !ok {
		return Filter{}, &ValidationError{Field: "field", Msg: fmt.Sprintf("unknown field %q, allowed: %s", field, strings.Join(t.FieldNames(), ", "))}
	}
	if raw == "" {
		return Filter{}, &ValidationError{Field: "value", Msg: "required when field is set"}
	}
	if spec.Nullable && strings.EqualFold(raw, "null") {
		return Filter{Column: spec.Column, IsNull: true}, nil
	}
	v, err := spec.Parse(raw)
	if err != nil {
		return Filter{}, &ValidationError{Field: "value", Msg: fmt.Sprintf("%q is not a valid %s for %s", raw, spec.Kind, field)}
	}
	return Filter{Column: spec.Column, Value: v}, nil
}

// FieldNames returns the filterable field names in column order.
func (t Table) FieldNames() []string {
	out := make([]string, 0, len(t.Fields))
	for _, c := range t.Columns {
		for name, spec := range t.Fields {
			if spec.Column == c {
				out = append(out, name)
			}
		}
	}
	return out
}

func uintField(col string) FieldSpec {
	return FieldSpec{Column: col, Kind: "unsigned integer", Parse: func(raw string) (any, error) {
		return strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	}}
}

func intField(col string) FieldSpec {
	return FieldSpec{Column: col, Kind: "integer", Parse: func(raw string) (any, error) {
		return strconv.Atoi(strings.TrimSpace(raw))
	}}
}

func stringField(col string) FieldSpec {
	return FieldSpec{Column: col, Kind: "string", Parse: func(raw string) (any, error) { return raw, nil }}
}

func dateField(col string) FieldSpec {
	return FieldSpec{Column: col, Kind: "date (YYYY-MM-DD)", Parse: func(raw string) (any, error) {
		d, err := model.ParseDate(raw)
		if err != nil {
			return nil, err
		}
		return d.Format(model.DateLayout), nil
	}}
}

func timeField(col string, nullable bool) FieldSpec {
	return FieldSpec{Column: col, Nullable: nullable, Kind: "timestamp (RFC 3339)", Parse: func(raw string) (any, error) {
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
		if err != nil {
			return nil, err
		}
		return t.UTC(), nil
	}}
}

func roleField(col string) FieldSpec {
	return FieldSpec{Column: col, Kind: "role (reader|admin)", Parse: func(raw string) (any, error) {
		r := strings.ToLower(strings.TrimSpace(raw))
		if !model.ValidRole(r) {
			return nil, fmt.Errorf("unknown role %q", raw)
		}
		return r, nil
	}}
}

// AuthorTable lists the filterable author fields.
var AuthorTable = Table{
	Name:    "authors",
	Columns: []string{"id", "name", "biography", "birth_date"},
	Fields: map[string]FieldSpec{
		"id":         uintField("id"),
		"name":       stringField("name"),
		"biography":  stringField("biography"),
		"birth_date": dateField("birth_date"),
	},
}

// BookTable lists the filterable book fields.
var BookTable = Table{
	Name:    "books",
	Columns: []string{"id", "title", "description", "genres", "publication_date", "author_id", "available"},
	Fields: map[string]FieldSpec{
		"id":               uintField("id"),
		"title":            stringField("title"),
		"description":      stringField("description"),
		"genres":           stringField("genres"),
		"publication_date": dateField("publication_date"),
		"author_id":        uintField("author_id"),
		"available":        intField("available"),
	},
}

// BorrowTable lists the filterable borrow fields.  return_date=null selects
// open borrows.
var BorrowTable = Table{
	Name:    "borrows",
	Columns: []string{"id", "book_id", "reader_id", "borrow_date", "return_date"},
	Fields: map[string]FieldSpec{
		"id":          uintField("id"),
		"book_id":     uintField("book_id"),
		"reader_id":   uintField("reader_id"),
		"borrow_date": timeField("borrow_date", false),
		"return_date": timeField("return_date", true),
	},
}

// UserTable exposes users without their password hash.
var UserTable = Table{
	Name:    "users",
	Columns: []string{"id", "username", "role"},
	Fields: map[string]FieldSpec{
		"id":       uintField("id"),
		"username": stringField("username"),
		"role":     roleField("role"),
	},
}
