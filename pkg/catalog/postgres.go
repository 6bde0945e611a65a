package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bookColumns = `id::text, title, COALESCE(description, ''), COALESCE(short_description, ''),
	COALESCE(image_url, ''), COALESCE(pdf_drive_link, ''), COALESCE(language, ''), COALESCE(category, ''),
	COALESCE(tags, '{}'), COALESCE(author, ''), COALESCE(publisher, ''), COALESCE(publication_year, 0),
	COALESCE(isbn, ''), created_at, updated_at`

// PostgresSource reads the catalog straight from the backing database.
type PostgresSource struct {
	db *pgxpool.Pool
}

// NewPostgresSource creates a source over an existing pool.
func NewPostgresSource(db *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{db: db}
}

// OpenPostgres connects a pool for databaseURL and pings it.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresSource, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresSource(pool), nil
}

// Close releases the pool.
func (s *PostgresSource) Close() {
	s.db.Close()
}

// GetBook implements Source.
func (s *PostgresSource) GetBook(ctx context.Context, id string) (*Book, error) {
	row := s.db.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE id::text = $1`, id)
	b, err := scanBook(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return b, nil
}

// ListBooks implements Source.
func (s *PostgresSource) ListBooks(ctx context.Context, f Filter) ([]Book, error) {
	query, args := buildBookQuery(f)
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var books []Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}
	return books, nil
}

// ListAll implements Source with a single unbounded query.
func (s *PostgresSource) ListAll(ctx context.Context, f Filter) ([]Book, error) {
	f.Limit, f.Offset = 0, 0
	return s.ListBooks(ctx, f)
}

// RelatedBooks implements Source.
func (s *PostgresSource) RelatedBooks(ctx context.Context, book *Book, limit int) ([]Book, error) {
	if book == nil {
		return nil, fmt.Errorf("book cannot be nil")
	}
	return s.ListBooks(ctx, relatedFilter(book, limit))
}

// ListLanguages implements Source.
func (s *PostgresSource) ListLanguages(ctx context.Context) ([]Language, error) {
	rows, err := s.db.Query(ctx, `SELECT id::text, name, COALESCE(code, ''), created_at FROM languages ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list languages: %w", err)
	}
	defer rows.Close()

	var out []Language
	for rows.Next() {
		var l Language
		if err := rows.Scan(&l.ID, &l.Name, &l.Code, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan language: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ListCategories implements Source.
func (s *PostgresSource) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.db.Query(ctx, `SELECT id::text, name, COALESCE(description, ''), created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const insertReport = `INSERT INTO reports (report_type, description, reporter_name, reporter_email, book_id)
	VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, '')::uuid)`

// SubmitReport implements Source.
func (s *PostgresSource) SubmitReport(ctx context.Context, r Report) error {
	if err := r.Validate(); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx, insertReport,
		string(r.Type), r.Description,
		strings.TrimSpace(r.ReporterName), strings.TrimSpace(r.ReporterEmail), strings.TrimSpace(r.BookID))
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func scanBook(row pgx.Row) (*Book, error) {
	var b Book
	err := row.Scan(
		&b.ID, &b.Title, &b.Description, &b.ShortDescription,
		&b.ImageURL, &b.PDFDriveLink, &b.Language, &b.Category,
		&b.Tags, &b.Author, &b.Publisher, &b.PublicationYear,
		&b.ISBN, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// buildBookQuery renders f as a parameterized SELECT.
func buildBookQuery(f Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.Language != "" {
		where = append(where, "language = "+arg(f.Language))
	}
	if f.Category != "" {
		where = append(where, "category = "+arg(f.Category))
	}
	if f.ExcludeID != "" {
		where = append(where, "id::text <> "+arg(f.ExcludeID))
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		p := arg("%" + term + "%")
		where = append(where, "(title ILIKE "+p+" OR author ILIKE "+p+")")
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + bookColumns + " FROM books")
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY title")
	if f.Limit > 0 {
		sb.WriteString(" LIMIT " + arg(f.Limit))
	}
	if f.Offset > 0 {
		sb.WriteString(" OFFSET " + arg(f.Offset))
	}
	return sb.String(), args
}
