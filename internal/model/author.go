package model

// Author is a row of the `authors` table.  The pair (name, birth_date) is
// unique; deleting an author removes its books and their borrows.
type Author struct {
	ID        uint64 `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	Biography string `json:"biography" db:"biography"`
	BirthDate Date   `json:"birth_date" db:"birth_date"`
}
