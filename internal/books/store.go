package books

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"bindery/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current books schema version. Bump on schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("books schema version mismatch")

// Store provides read access to book data backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the books database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.DataDir, "books.db"))
}

// OpenPath connects to a books database at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return tx.Commit()
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d", ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

// GetBook fetches a book by identifier. Returns nil when absent.
func (s *Store) GetBook(ctx context.Context, id string) (*Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, cover_title, cover_subtitle, cover_author_line,
		        cover_hero_image, cover_theme, cover_dedication, created_at, updated_at
		 FROM books WHERE id = ?`, id)
	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

// ListBooks returns all books ordered by creation time.
func (s *Store) ListBooks(ctx context.Context) ([]*Book, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, cover_title, cover_subtitle, cover_author_line,
		        cover_hero_image, cover_theme, cover_dedication, created_at, updated_at
		 FROM books ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var result []*Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, book)
	}
	return result, rows.Err()
}

// ContentPages returns a book's pages in ordinal order, images attached,
// after validating that ordinals are unique and contiguous.
func (s *Store) ContentPages(ctx context.Context, bookID string) ([]ContentPage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, book_id, ordinal, title, caption
		 FROM content_pages WHERE book_id = ? ORDER BY ordinal`, bookID)
	if err != nil {
		return nil, fmt.Errorf("query content pages: %w", err)
	}
	defer rows.Close()

	var pages []ContentPage
	byID := map[string]int{}
	for rows.Next() {
		var (
			page    ContentPage
			title   sql.NullString
			caption sql.NullString
		)
		if err := rows.Scan(&page.ID, &page.BookID, &page.Ordinal, &title, &caption); err != nil {
			return nil, fmt.Errorf("scan content page: %w", err)
		}
		page.Title = title.String
		page.Caption = caption.String
		byID[page.ID] = len(pages)
		pages = append(pages, page)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := ValidateOrdinals(pages); err != nil {
		return nil, fmt.Errorf("book %s: %w", bookID, err)
	}

	imgRows, err := s.db.QueryContext(ctx,
		`SELECT i.id, i.page_id, i.position, i.source_path, i.processed_path, i.width_px, i.height_px
		 FROM page_images i
		 JOIN content_pages p ON p.id = i.page_id
		 WHERE p.book_id = ? ORDER BY i.page_id, i.position`, bookID)
	if err != nil {
		return nil, fmt.Errorf("query page images: %w", err)
	}
	defer imgRows.Close()

	for imgRows.Next() {
		var (
			img       PageImage
			processed sql.NullString
		)
		if err := imgRows.Scan(&img.ID, &img.PageID, &img.Position, &img.SourcePath, &processed, &img.WidthPx, &img.HeightPx); err != nil {
			return nil, fmt.Errorf("scan page image: %w", err)
		}
		img.ProcessedPath = processed.String
		if idx, ok := byID[img.PageID]; ok {
			pages[idx].Images = append(pages[idx].Images, img)
		}
	}
	return pages, imgRows.Err()
}

// CreateBook inserts a book. Seeding helper for tests and CLI fixtures;
// the editing subsystem owns this data in production.
func (s *Store) CreateBook(ctx context.Context, title string, cover CoverDesign) (*Book, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("book title required")
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	id := uuid.NewString()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO books (
		    id, title, cover_title, cover_subtitle, cover_author_line,
		    cover_hero_image, cover_theme, cover_dedication, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, title,
		nullableString(cover.Title),
		nullableString(cover.Subtitle),
		nullableString(cover.AuthorLine),
		nullableString(cover.HeroImage),
		nullableString(cover.Theme),
		nullableString(cover.Dedication),
		timestamp, timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}
	return s.GetBook(ctx, id)
}

// AddPage appends a content page at the next ordinal. Seeding helper.
func (s *Store) AddPage(ctx context.Context, bookID, title, caption string) (*ContentPage, error) {
	var next int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(ordinal), 0) + 1 FROM content_pages WHERE book_id = ?`, bookID,
	).Scan(&next); err != nil {
		return nil, fmt.Errorf("next ordinal: %w", err)
	}

	page := ContentPage{
		ID:      uuid.NewString(),
		BookID:  bookID,
		Ordinal: next,
		Title:   strings.TrimSpace(title),
		Caption: strings.TrimSpace(caption),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO content_pages (id, book_id, ordinal, title, caption) VALUES (?, ?, ?, ?, ?)`,
		page.ID, page.BookID, page.Ordinal, nullableString(page.Title), nullableString(page.Caption),
	)
	if err != nil {
		return nil, fmt.Errorf("insert content page: %w", err)
	}
	return &page, nil
}

// AddImage attaches a raster to a page. Seeding helper.
func (s *Store) AddImage(ctx context.Context, pageID, sourcePath, processedPath string, widthPx, heightPx int) (*PageImage, error) {
	var next int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), 0) + 1 FROM page_images WHERE page_id = ?`, pageID,
	).Scan(&next); err != nil {
		return nil, fmt.Errorf("next position: %w", err)
	}

	img := PageImage{
		ID:            uuid.NewString(),
		PageID:        pageID,
		Position:      next,
		SourcePath:    sourcePath,
		ProcessedPath: processedPath,
		WidthPx:       widthPx,
		HeightPx:      heightPx,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO page_images (id, page_id, position, source_path, processed_path, width_px, height_px)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		img.ID, img.PageID, img.Position, img.SourcePath, nullableString(img.ProcessedPath), img.WidthPx, img.HeightPx,
	)
	if err != nil {
		return nil, fmt.Errorf("insert page image: %w", err)
	}
	return &img, nil
}

func scanBook(scanner interface{ Scan(dest ...any) error }) (*Book, error) {
	var (
		book       Book
		coverTitle sql.NullString
		subtitle   sql.NullString
		authorLine sql.NullString
		heroImage  sql.NullString
		theme      sql.NullString
		dedication sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(
		&book.ID, &book.Title, &coverTitle, &subtitle, &authorLine,
		&heroImage, &theme, &dedication, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}
	book.Cover = CoverDesign{
		Title:      coverTitle.String,
		Subtitle:   subtitle.String,
		AuthorLine: authorLine.String,
		HeroImage:  heroImage.String,
		Theme:      theme.String,
		Dedication: dedication.String,
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		book.CreatedAt = created
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		book.UpdatedAt = updated
	}
	return &book, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
