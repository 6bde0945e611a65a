package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/Sternrassler/granth-library/pkg/bookcache"
	"github.com/Sternrassler/granth-library/pkg/catalog"
	"github.com/Sternrassler/granth-library/pkg/related"
	"github.com/Sternrassler/granth-library/pkg/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const schema = `
CREATE TABLE languages (
	id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	name text NOT NULL,
	code text,
	created_at timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE categories (
	id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	name text NOT NULL,
	description text,
	created_at timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE books (
	id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	title text NOT NULL,
	description text,
	short_description text,
	image_url text,
	pdf_drive_link text,
	language text,
	category text,
	tags text[],
	author text,
	publisher text,
	publication_year int,
	isbn text,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE reports (
	id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	report_type text NOT NULL CHECK (report_type IN ('book_issue', 'copyright_complaint', 'inappropriate_content', 'broken_link', 'other')),
	description text NOT NULL,
	reporter_name text,
	reporter_email text,
	book_id uuid REFERENCES books (id),
	created_at timestamptz NOT NULL DEFAULT now()
);
INSERT INTO languages (name, code) VALUES ('Sanskrit', 'sa'), ('Hindi', 'hi');
INSERT INTO categories (name) VALUES ('Epics'), ('Scriptures');
INSERT INTO books (id, title, category, language, author, tags) VALUES
	('00000000-0000-0000-0000-000000000001', 'Bhagavad Gita', 'Scriptures', 'Sanskrit', 'Vyasa', '{gita}'),
	('00000000-0000-0000-0000-000000000002', 'Ramayana', 'Epics', 'Sanskrit', 'Valmiki', NULL),
	('00000000-0000-0000-0000-000000000003', 'Mahabharata', 'Epics', 'Sanskrit', 'Vyasa', NULL),
	('00000000-0000-0000-0000-000000000004', 'Ramcharitmanas', 'Epics', 'Hindi', 'Tulsidas', NULL);
`

func setupCatalog(t *testing.T) (*catalog.PostgresSource, string) {
	t.Helper()
	url, cleanup := setupPostgres(t)
	t.Cleanup(cleanup)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		t.Fatalf("Failed to load schema: %v", err)
	}
	pool.Close()

	src, err := catalog.OpenPostgres(ctx, url)
	if err != nil {
		t.Fatalf("OpenPostgres failed: %v", err)
	}
	t.Cleanup(src.Close)
	return src, url
}

func TestPostgresCatalog(t *testing.T) {
	src, _ := setupCatalog(t)
	ctx := context.Background()

	t.Run("get_book", func(t *testing.T) {
		b, err := src.GetBook(ctx, "00000000-0000-0000-0000-000000000001")
		if err != nil {
			t.Fatalf("GetBook failed: %v", err)
		}
		if b.Title != "Bhagavad Gita" || len(b.Tags) != 1 || b.ImageURL != "" {
			t.Errorf("book = %+v", b)
		}
	})

	t.Run("get_book_not_found", func(t *testing.T) {
		_, err := src.GetBook(ctx, "00000000-0000-0000-0000-000000000099")
		if !errors.Is(err, catalog.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("related_books", func(t *testing.T) {
		b, _ := src.GetBook(ctx, "00000000-0000-0000-0000-000000000002")
		rel, err := src.RelatedBooks(ctx, b, 0)
		if err != nil {
			t.Fatalf("RelatedBooks failed: %v", err)
		}
		if len(rel) != 2 || rel[0].Title != "Mahabharata" || rel[1].Title != "Ramcharitmanas" {
			t.Errorf("related = %+v", rel)
		}
	})

	t.Run("search", func(t *testing.T) {
		books, err := src.ListBooks(ctx, catalog.Filter{Search: "vyasa"})
		if err != nil {
			t.Fatalf("ListBooks failed: %v", err)
		}
		if len(books) != 2 {
			t.Errorf("len(books) = %d, want 2", len(books))
		}
	})

	t.Run("list_all", func(t *testing.T) {
		books, err := src.ListAll(ctx, catalog.Filter{Category: "Epics", Limit: 1, Offset: 2})
		if err != nil {
			t.Fatalf("ListAll failed: %v", err)
		}
		if len(books) != 3 || books[0].Title != "Mahabharata" {
			t.Errorf("books = %+v", books)
		}
	})

	t.Run("languages_and_categories", func(t *testing.T) {
		langs, err := src.ListLanguages(ctx)
		if err != nil || len(langs) != 2 || langs[0].Name != "Hindi" {
			t.Errorf("languages = %+v, err = %v", langs, err)
		}
		cats, err := src.ListCategories(ctx)
		if err != nil || len(cats) != 2 || cats[0].Name != "Epics" {
			t.Errorf("categories = %+v, err = %v", cats, err)
		}
	})
}

func TestPostgresCatalog_SubmitReport(t *testing.T) {
	src, url := setupCatalog(t)
	ctx := context.Background()

	err := src.SubmitReport(ctx, catalog.Report{
		Type:        catalog.ReportBrokenLink,
		Description: "PDF link is dead",
		BookID:      "00000000-0000-0000-0000-000000000002",
	})
	if err != nil {
		t.Fatalf("SubmitReport failed: %v", err)
	}

	err = src.SubmitReport(ctx, catalog.Report{Type: "spam", Description: "x"})
	if !errors.Is(err, catalog.ErrInvalidReport) {
		t.Errorf("err = %v, want ErrInvalidReport", err)
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	var (
		count               int
		reportType, bookID  string
		reporterName, email *string
	)
	row := pool.QueryRow(ctx, `SELECT count(*) OVER (), report_type, book_id::text, reporter_name, reporter_email FROM reports`)
	if err := row.Scan(&count, &reportType, &bookID, &reporterName, &email); err != nil {
		t.Fatalf("read reports: %v", err)
	}
	if count != 1 || reportType != "broken_link" || bookID != "00000000-0000-0000-0000-000000000002" {
		t.Errorf("report = %d %s %s", count, reportType, bookID)
	}
	if reporterName != nil || email != nil {
		t.Errorf("empty reporter fields should be NULL, got %v %v", reporterName, email)
	}
}

// TestRelatedView_Postgres runs the related view against Postgres with a
// Redis-backed cache.
func TestRelatedView_Postgres(t *testing.T) {
	src, _ := setupCatalog(t)
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	cache := bookcache.NewManager(
		storage.NewRedisStore(redisClient, storage.DefaultRedisOptions()),
		bookcache.DefaultConfig(),
		zerolog.Nop(),
	)
	svc := related.NewService(src, cache, 0, zerolog.Nop())

	bookID := "00000000-0000-0000-0000-000000000003"
	view, err := svc.View(ctx, bookID, nil)
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
	if view.FromCache || len(view.Books) != 2 {
		t.Errorf("view = %+v", view)
	}

	res := cache.LoadFor(ctx, bookID)
	if !res.OK() || len(res.Snapshot.Entries) != 2 {
		t.Errorf("cache not written through: %+v", res)
	}
}
