package bookcache

import (
	"time"

	"github.com/Sternrassler/granth-library/pkg/catalog"
)

// Summary is the cached projection of a book: just enough to draw a tile.
type Summary struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	ImageURL         string    `json:"image_url,omitempty"`
	Category         string    `json:"category"`
	ShortDescription string    `json:"short_description,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Project reduces a full book to its Summary.
// Missing timestamps are stamped with now.
func Project(b catalog.Book, now time.Time) Summary {
	s := Summary{
		ID:               b.ID,
		Title:            b.Title,
		ImageURL:         b.ImageURL,
		Category:         b.Category,
		ShortDescription: b.ShortDescription,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = now
	}
	return s
}
