package model

// Book is a row of the `books` table.  Available is the number of copies
// that can currently be lent; the schema keeps it non-negative.
//
// Fields:
//
//	ID              – primary key.
//	Title           – unique together with AuthorID.
//	Description     – free text.
//	Genres          – comma separated genre tags.
//	PublicationDate – calendar date of publication.
//	AuthorID        – owning author (cascade delete).
//	Available       – free lendable copies.
type Book struct {
	ID              uint64 `json:"id" db:"id"`
	Title           string `json:"title" db:"title"`
	Description     string `json:"description" db:"description"`
	Genres          string `json:"genres" db:"genres"`
	PublicationDate Date   `json:"publication_date" db:"publication_date"`
	AuthorID        uint64 `json:"author_id" db:"author_id"`
	Available       int    `json:"available" db:"available"`
}
