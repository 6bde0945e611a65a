package catalog

import (
	"context"
	"errors"
)

// DefaultRelatedLimit is the number of related books shown beside a book.
const DefaultRelatedLimit = 4

// ErrNotFound is returned when a requested book does not exist.
var ErrNotFound = errors.New("book not found")

// Source provides read access to the library catalog.
type Source interface {
	// GetBook returns a single book or ErrNotFound.
	GetBook(ctx context.Context, id string) (*Book, error)

	// ListBooks returns one page of books matching f, ordered by title.
	ListBooks(ctx context.Context, f Filter) ([]Book, error)

	// ListAll returns every book matching f, ordered by title.
	// f.Limit and f.Offset are ignored.
	ListAll(ctx context.Context, f Filter) ([]Book, error)

	// RelatedBooks returns up to limit books sharing book's category,
	// excluding book itself, ordered by title.
	RelatedBooks(ctx context.Context, book *Book, limit int) ([]Book, error)

	// ListLanguages returns all languages ordered by name.
	ListLanguages(ctx context.Context) ([]Language, error)

	// ListCategories returns all categories ordered by name.
	ListCategories(ctx context.Context) ([]Category, error)

	// SubmitReport validates r and stores it. Invalid reports fail with
	// ErrInvalidReport before anything is sent.
	SubmitReport(ctx context.Context, r Report) error
}

// relatedFilter builds the listing filter behind RelatedBooks.
func relatedFilter(book *Book, limit int) Filter {
	if limit <= 0 {
		limit = DefaultRelatedLimit
	}
	return Filter{
		Category:  book.Category,
		ExcludeID: book.ID,
		Limit:     limit,
	}
}
