// Package marketplace provides the PostgreSQL-backed template catalog:
// listing with filters, slug lookup, and download counting.
package marketplace

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/blockdeck/blockdeck/internal/logging"
	"github.com/blockdeck/blockdeck/internal/metrics"
)

// Template represents a row in the templates table.
type Template struct {
	ID          int       `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Author      string    `json:"author"`
	PriceCents  int       `json:"price_cents"`
	PreviewURL  string    `json:"preview_url"`
	Downloads   int       `json:"downloads"`
	Featured    bool      `json:"featured"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Filter narrows and paginates a template listing. Zero values mean
// "no constraint"; Page is 1-based.
type Filter struct {
	Category string
	Query    string
	Page     int
	PerPage  int
}

// DefaultPerPage is the page size used when Filter.PerPage is zero.
const DefaultPerPage = 24

// MaxPerPage caps client-supplied page sizes.
const MaxPerPage = 100

// Store is a PostgreSQL template store.
type Store struct {
	db *sql.DB
}

// New opens a connection pool to the given database and verifies it.
func New(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection, for tests.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

const schema = `
CREATE TABLE IF NOT EXISTS templates (
	id          SERIAL PRIMARY KEY,
	slug        TEXT NOT NULL UNIQUE,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category    TEXT NOT NULL DEFAULT '',
	author      TEXT NOT NULL DEFAULT '',
	price_cents INTEGER NOT NULL DEFAULT 0,
	preview_url TEXT NOT NULL DEFAULT '',
	downloads   INTEGER NOT NULL DEFAULT 0,
	featured    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_templates_category ON templates (category);
`

// Migrate creates the templates schema if it does not exist.
func (s *Store) Migrate() error {
	logging.Info("running marketplace migration")
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("exec migration: %w", err)
	}
	return nil
}

// ─── Listing ────────────────────────────────────────────────────────────────

// List returns templates matching the filter plus the total match count
// before pagination. Featured templates sort first, then newest.
func (s *Store) List(ctx context.Context, f Filter) ([]Template, int, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_templates", time.Since(start)) }()

	var conds []string
	var args []interface{}

	if f.Category != "" {
		args = append(args, f.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", n, n))
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM templates "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count templates: %w", err)
	}

	perPage := f.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	page := f.Page
	if page < 1 {
		page = 1
	}

	args = append(args, perPage, (page-1)*perPage)
	query := fmt.Sprintf(`
		SELECT id, slug, title, description, category, author,
			price_cents, preview_url, downloads, featured, created_at, updated_at
		FROM templates %s
		ORDER BY featured DESC, created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	var out []Template
	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.ID, &t.Slug, &t.Title, &t.Description, &t.Category,
			&t.Author, &t.PriceCents, &t.PreviewURL, &t.Downloads, &t.Featured,
			&t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

// Categories returns the distinct template categories in use.
func (s *Store) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT category FROM templates WHERE category <> '' ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// ─── Lookup ─────────────────────────────────────────────────────────────────

const templateColumns = `id, slug, title, description, category, author,
	price_cents, preview_url, downloads, featured, created_at, updated_at`

func scanTemplate(row *sql.Row) (*Template, error) {
	var t Template
	err := row.Scan(&t.ID, &t.Slug, &t.Title, &t.Description, &t.Category,
		&t.Author, &t.PriceCents, &t.PreviewURL, &t.Downloads, &t.Featured,
		&t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Get retrieves a template by ID, or nil if absent.
func (s *Store) Get(ctx context.Context, id int) (*Template, error) {
	return scanTemplate(s.db.QueryRowContext(ctx,
		"SELECT "+templateColumns+" FROM templates WHERE id = $1", id))
}

// BySlug retrieves a template by slug, or nil if absent.
func (s *Store) BySlug(ctx context.Context, slug string) (*Template, error) {
	return scanTemplate(s.db.QueryRowContext(ctx,
		"SELECT "+templateColumns+" FROM templates WHERE slug = $1", slug))
}

// ─── Mutations ──────────────────────────────────────────────────────────────

// Create inserts a template and fills in its generated fields.
func (s *Store) Create(ctx context.Context, t *Template) (*Template, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO templates (slug, title, description, category, author,
			price_cents, preview_url, featured)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, downloads, created_at, updated_at`,
		t.Slug, t.Title, t.Description, t.Category, t.Author,
		t.PriceCents, t.PreviewURL, t.Featured,
	).Scan(&t.ID, &t.Downloads, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// RecordDownload atomically increments a template's download count.
// Returns false when the slug does not exist.
func (s *Store) RecordDownload(ctx context.Context, slug string) (bool, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("record_download", time.Since(start)) }()

	res, err := s.db.ExecContext(ctx,
		`UPDATE templates SET downloads = downloads + 1, updated_at = NOW() WHERE slug = $1`, slug)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		metrics.RecordTemplateDownload()
	}
	return n > 0, nil
}
