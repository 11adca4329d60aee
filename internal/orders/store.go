package orders

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"bindery/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes.
const schemaVersion = 1

var (
	// ErrSchemaMismatch indicates the database schema version doesn't match
	// the expected version.
	ErrSchemaMismatch = errors.New("orders schema version mismatch")
	// ErrStaleStatus is returned when a compare-and-set transition finds
	// the order no longer at the expected status. Another writer won.
	ErrStaleStatus = errors.New("order status changed concurrently")
	// ErrInvalidTransition is returned for transitions the lifecycle does
	// not permit.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrJobIDImmutable is returned when a vendor job id would be
	// overwritten. Once set, it never changes.
	ErrJobIDImmutable = errors.New("vendor job id already set")
)

// Store manages order persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the orders database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.OrdersDBPath())
}

// OpenPath connects to an orders database at an explicit path.
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

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
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

// NewOrder inserts an order in pending_payment for a book.
func (s *Store) NewOrder(ctx context.Context, bookID, contactEmail string, shipping Address, priceCents int64, currency string) (*Order, error) {
	bookID = strings.TrimSpace(bookID)
	if bookID == "" {
		return nil, errors.New("book id required")
	}
	if strings.TrimSpace(currency) == "" {
		currency = "USD"
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	id := uuid.NewString()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (
		    id, book_id, status, contact_email,
		    ship_name, ship_street1, ship_street2, ship_city,
		    ship_state_code, ship_postal_code, ship_country_code, ship_phone,
		    price_cents, currency, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, bookID, StatusPendingPayment,
		nullableString(contactEmail),
		nullableString(shipping.Name),
		nullableString(shipping.Street1),
		nullableString(shipping.Street2),
		nullableString(shipping.City),
		nullableString(shipping.StateCode),
		nullableString(shipping.PostalCode),
		nullableString(shipping.CountryCode),
		nullableString(shipping.Phone),
		priceCents, currency, timestamp, timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches an order by identifier. Returns nil when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

// List returns orders filtered by status set (or all orders when no status
// is provided), ordered by creation time.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Order, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + orderColumns + ` FROM orders`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var result []*Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, order)
	}
	return result, rows.Err()
}

// Reconcilable returns orders eligible for the reconciliation sweep,
// oldest first. Orders mid-generation or mid-submission are excluded.
func (s *Store) Reconcilable(ctx context.Context) ([]*Order, error) {
	return s.List(ctx, StatusSubmitted, StatusInProduction, StatusShipped)
}

// Transition moves an order from one status to another with a
// compare-and-set on the current status. ErrInvalidTransition is returned
// for edges the lifecycle forbids; ErrStaleStatus when another writer moved
// the order first.
func (s *Store) Transition(ctx context.Context, id string, from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, now(), id, from,
	)
	if err != nil {
		return fmt.Errorf("transition order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: order %s expected %s", ErrStaleStatus, id, from)
	}
	return nil
}

// MarkFailed moves an order to failed with a human-readable reason. The
// reason is preserved verbatim for support diagnosis. Delivered orders are
// never touched.
func (s *Store) MarkFailed(ctx context.Context, id, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, failure_reason = ?, updated_at = ?
		 WHERE id = ? AND status NOT IN (?, ?)`,
		StatusFailed, reason, now(), id, StatusDelivered, StatusFailed,
	)
	if err != nil {
		return fmt.Errorf("mark order failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: order %s not failable", ErrStaleStatus, id)
	}
	return nil
}

// SetArtifactRefs records the current interior and cover references on the
// order and appends write-once artifact rows. Always both together; a
// half-updated pair would leave the order unprintable.
func (s *Store) SetArtifactRefs(ctx context.Context, id string, interior, cover Artifact) error {
	if strings.TrimSpace(interior.Ref) == "" || strings.TrimSpace(cover.Ref) == "" {
		return errors.New("both artifact refs required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin artifacts tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	timestamp := now()
	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET interior_ref = ?, cover_ref = ?, updated_at = ? WHERE id = ?`,
		interior.Ref, cover.Ref, timestamp, id,
	)
	if err != nil {
		return fmt.Errorf("update artifact refs: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if affected == 0 {
		return fmt.Errorf("order %s not found", id)
	}

	for _, artifact := range []Artifact{interior, cover} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO artifacts (order_id, kind, ref, content_type, size, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id, artifact.Kind, artifact.Ref, artifact.ContentType, artifact.Size, timestamp,
		); err != nil {
			return fmt.Errorf("insert %s artifact: %w", artifact.Kind, err)
		}
	}
	return tx.Commit()
}

// Artifacts returns the stored artifact history for an order, oldest first.
func (s *Store) Artifacts(ctx context.Context, orderID string) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, order_id, kind, ref, content_type, size, created_at
		 FROM artifacts WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	var result []Artifact
	for rows.Next() {
		var (
			artifact   Artifact
			createdRaw string
		)
		if err := rows.Scan(&artifact.ID, &artifact.OrderID, &artifact.Kind, &artifact.Ref, &artifact.ContentType, &artifact.Size, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
			artifact.CreatedAt = created
		}
		result = append(result, artifact)
	}
	return result, rows.Err()
}

// SetVendorJob records the vendor-assigned job identifier. The id is
// immutable once set; a second write with a different value fails.
func (s *Store) SetVendorJob(ctx context.Context, id, jobID string) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return errors.New("vendor job id required")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET vendor_job_id = ?, updated_at = ?
		 WHERE id = ? AND (vendor_job_id IS NULL OR vendor_job_id = ?)`,
		jobID, now(), id, jobID,
	)
	if err != nil {
		return fmt.Errorf("set vendor job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: order %s", ErrJobIDImmutable, id)
	}
	return nil
}

// SetVendorStatus records the raw vendor status string for diagnostics.
func (s *Store) SetVendorStatus(ctx context.Context, id, vendorStatus string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE orders SET vendor_status = ?, updated_at = ? WHERE id = ?`,
		nullableString(vendorStatus), now(), id,
	)
	if err != nil {
		return fmt.Errorf("set vendor status: %w", err)
	}
	return nil
}

// SetTracking records shipment tracking data.
func (s *Store) SetTracking(ctx context.Context, id, trackingNumber, trackingURL string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE orders SET tracking_number = ?, tracking_url = ?, updated_at = ? WHERE id = ?`,
		nullableString(trackingNumber), nullableString(trackingURL), now(), id,
	)
	if err != nil {
		return fmt.Errorf("set tracking: %w", err)
	}
	return nil
}

// ClearFailure wipes the failure reason ahead of a manual retry.
func (s *Store) ClearFailure(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE orders SET failure_reason = NULL, updated_at = ? WHERE id = ?`,
		now(), id,
	)
	if err != nil {
		return fmt.Errorf("clear failure: %w", err)
	}
	return nil
}

// Stats returns a count of orders grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM orders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("order stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates order state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPendingPayment:
			health.Pending += count
		case StatusShipped:
			health.Shipped += count
		case StatusDelivered:
			health.Delivered += count
		case StatusFailed:
			health.Failed += count
		default:
			health.InFlight += count
		}
	}
	return health, nil
}

const orderColumns = "id, book_id, status, interior_ref, cover_ref, vendor_job_id, vendor_status, contact_email, ship_name, ship_street1, ship_street2, ship_city, ship_state_code, ship_postal_code, ship_country_code, ship_phone, tracking_number, tracking_url, price_cents, currency, failure_reason, created_at, updated_at"

func scanOrder(scanner interface{ Scan(dest ...any) error }) (*Order, error) {
	var (
		order         Order
		interiorRef   sql.NullString
		coverRef      sql.NullString
		vendorJobID   sql.NullString
		vendorStatus  sql.NullString
		contactEmail  sql.NullString
		shipName      sql.NullString
		shipStreet1   sql.NullString
		shipStreet2   sql.NullString
		shipCity      sql.NullString
		shipState     sql.NullString
		shipPostal    sql.NullString
		shipCountry   sql.NullString
		shipPhone     sql.NullString
		trackingNum   sql.NullString
		trackingURL   sql.NullString
		failureReason sql.NullString
		statusStr     string
		createdRaw    string
		updatedRaw    string
	)

	if err := scanner.Scan(
		&order.ID,
		&order.BookID,
		&statusStr,
		&interiorRef,
		&coverRef,
		&vendorJobID,
		&vendorStatus,
		&contactEmail,
		&shipName,
		&shipStreet1,
		&shipStreet2,
		&shipCity,
		&shipState,
		&shipPostal,
		&shipCountry,
		&shipPhone,
		&trackingNum,
		&trackingURL,
		&order.PriceCents,
		&order.Currency,
		&failureReason,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	order.Status = Status(statusStr)
	order.InteriorRef = interiorRef.String
	order.CoverRef = coverRef.String
	order.VendorJobID = vendorJobID.String
	order.VendorStatus = vendorStatus.String
	order.ContactEmail = contactEmail.String
	order.Shipping = Address{
		Name:        shipName.String,
		Street1:     shipStreet1.String,
		Street2:     shipStreet2.String,
		City:        shipCity.String,
		StateCode:   shipState.String,
		PostalCode:  shipPostal.String,
		CountryCode: shipCountry.String,
		Phone:       shipPhone.String,
	}
	order.TrackingNum = trackingNum.String
	order.TrackingURL = trackingURL.String
	order.FailureReason = failureReason.String

	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		order.CreatedAt = created
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		order.UpdatedAt = updated
	}
	return &order, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
