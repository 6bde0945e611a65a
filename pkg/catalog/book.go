// Package catalog reads books, languages and categories from the hosted
// library backend.
//
// Two sources implement the same contract:
//
//   - RESTSource talks to the backend's PostgREST-compatible HTTP surface
//     with retries and exponential backoff.
//   - PostgresSource queries the backing Postgres database through pgxpool.
package catalog

import "time"

// Book is a full library book record.
type Book struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	ShortDescription string    `json:"short_description,omitempty"`
	ImageURL         string    `json:"image_url,omitempty"`
	PDFDriveLink     string    `json:"pdf_drive_link,omitempty"`
	Language         string    `json:"language"`
	Category         string    `json:"category"`
	Tags             []string  `json:"tags,omitempty"`
	Author           string    `json:"author,omitempty"`
	Publisher        string    `json:"publisher,omitempty"`
	PublicationYear  int       `json:"publication_year,omitempty"`
	ISBN             string    `json:"isbn,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Language is a book language.
type Language struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

// Category is a book category.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Filter narrows a book listing. Zero values mean "no constraint".
type Filter struct {
	Language  string
	Category  string
	Search    string // case-insensitive match on title or author
	ExcludeID string
	Limit     int
	Offset    int
}

// IDs returns the book ids in order.
func IDs(books []Book) []string {
	ids := make([]string, len(books))
	for i, b := range books {
		ids[i] = b.ID
	}
	return ids
}
