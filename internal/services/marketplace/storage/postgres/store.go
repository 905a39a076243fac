// Package postgres provides a Postgres-backed marketplace storage
// implementation over pgx with goose-managed migrations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Kingl1tz/shoppal/internal/services/marketplace/storage"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/storage/postgres/migrations"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Options tunes the connection pool.
type Options struct {
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
	MaxConnLifetime time.Duration
}

// Store persists listings and the interest ledger in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open connects to dsn, applies embedded migrations and returns the store.
func Open(ctx context.Context, dsn string, opts Options) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	if err := migrate(ctx, dsn); err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg parse config: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		cfg.MinConns = opts.MinConns
	}
	if opts.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = opts.MaxConnIdleTime
	}
	if opts.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = opts.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pg connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

func migrate(ctx context.Context, dsn string) error {
	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return fmt.Errorf("goose open db: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.pool == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

const listingColumns = `id, owner_id, title, description, price_cents, mode, image_url,
        tags, is_borrowed, created_at, updated_at`

// CreateListing inserts one listing record.
func (s *Store) CreateListing(ctx context.Context, listing storage.ListingRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	normalized, err := storage.NormalizeListing(listing)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO listings (
  id, owner_id, title, description, price_cents, mode, image_url,
  tags, is_borrowed, search_text, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		normalized.ID,
		normalized.OwnerID,
		normalized.Title,
		normalized.Description,
		normalized.PriceCents,
		normalized.Mode,
		normalized.ImageURL,
		normalized.Tags,
		normalized.IsBorrowed,
		storage.SearchText(normalized.Title, normalized.Description),
		toMillis(normalized.CreatedAt),
		toMillis(normalized.UpdatedAt),
	)
	if err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create listing: %w", err)
	}
	return nil
}

// GetListing returns one listing by id.
func (s *Store) GetListing(ctx context.Context, listingID string) (storage.ListingRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.ListingRecord{}, err
	}
	listingID = strings.TrimSpace(listingID)
	if listingID == "" {
		return storage.ListingRecord{}, fmt.Errorf("listing id is required")
	}
	row := s.pool.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, listingID)
	listing, err := scanListing(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.ListingRecord{}, storage.ErrNotFound
		}
		return storage.ListingRecord{}, fmt.Errorf("get listing: %w", err)
	}
	return listing, nil
}

// UpdateListing replaces the mutable fields of one listing.
func (s *Store) UpdateListing(ctx context.Context, listing storage.ListingRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	normalized, err := storage.NormalizeListing(listing)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
UPDATE listings
   SET title = $1, description = $2, price_cents = $3, mode = $4, image_url = $5,
       tags = $6, is_borrowed = $7, search_text = $8, updated_at = $9
 WHERE id = $10 AND owner_id = $11`,
		normalized.Title,
		normalized.Description,
		normalized.PriceCents,
		normalized.Mode,
		normalized.ImageURL,
		normalized.Tags,
		normalized.IsBorrowed,
		storage.SearchText(normalized.Title, normalized.Description),
		toMillis(normalized.UpdatedAt),
		normalized.ID,
		normalized.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteListing removes one listing and every interest that references it.
func (s *Store) DeleteListing(ctx context.Context, listingID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	listingID = strings.TrimSpace(listingID)
	if listingID == "" {
		return fmt.Errorf("listing id is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin listing delete: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM interests WHERE listing_id = $1`, listingID); err != nil {
		return fmt.Errorf("delete interests: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM listings WHERE id = $1`, listingID)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit listing delete: %w", err)
	}
	return nil
}

// ListListings returns one page of listings newest first.
func (s *Store) ListListings(ctx context.Context, query storage.ListingQuery) (storage.ListingPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.ListingPage{}, err
	}
	if query.PageSize <= 0 {
		return storage.ListingPage{}, fmt.Errorf("page size must be greater than zero")
	}

	var (
		where []string
		args  []any
	)
	next := func() string { return fmt.Sprintf("$%d", len(args)) }
	if text := strings.TrimSpace(query.Text); text != "" {
		args = append(args, storage.LikePattern(text))
		where = append(where, `search_text LIKE `+next()+` ESCAPE '\'`)
	}
	if !query.Filter.Empty() {
		where = append(where, query.Filter.Numbered(len(args)+1))
		args = append(args, query.Filter.Params...)
	}
	if token := strings.TrimSpace(query.PageToken); token != "" {
		createdAt, lastID, err := storage.DecodePageToken(token)
		if err != nil {
			return storage.ListingPage{}, err
		}
		args = append(args, createdAt)
		createdParam := next()
		args = append(args, lastID)
		where = append(where, fmt.Sprintf(`(created_at < %s OR (created_at = %s AND id < %s))`, createdParam, createdParam, next()))
	}

	statement := `SELECT ` + listingColumns + ` FROM listings`
	if len(where) > 0 {
		statement += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, query.PageSize+1)
	statement += ` ORDER BY created_at DESC, id DESC LIMIT ` + next()

	rows, err := s.pool.Query(ctx, statement, args...)
	if err != nil {
		return storage.ListingPage{}, fmt.Errorf("list listings: %w", err)
	}
	listings, err := collectListings(rows)
	if err != nil {
		return storage.ListingPage{}, err
	}
	page := storage.ListingPage{Listings: listings}
	if len(page.Listings) > query.PageSize {
		last := page.Listings[query.PageSize-1]
		page.NextPageToken = storage.EncodePageToken(last.CreatedAt, last.ID)
		page.Listings = page.Listings[:query.PageSize]
	}
	return page, nil
}

// ListListingsByOwner returns every listing of one owner newest first.
func (s *Store) ListListingsByOwner(ctx context.Context, ownerID string) ([]storage.ListingRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, fmt.Errorf("owner id is required")
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list owner listings: %w", err)
	}
	return collectListings(rows)
}

// ListListingIDsByOwner returns the ids of every listing of one owner.
func (s *Store) ListListingIDsByOwner(ctx context.Context, ownerID string) ([]string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, fmt.Errorf("owner id is required")
	}
	rows, err := s.pool.Query(ctx, `SELECT id FROM listings WHERE owner_id = $1 ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list owner listing ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect listing ids: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func scanListing(row pgx.Row) (storage.ListingRecord, error) {
	var listing storage.ListingRecord
	var createdAt int64
	var updatedAt int64
	if err := row.Scan(
		&listing.ID,
		&listing.OwnerID,
		&listing.Title,
		&listing.Description,
		&listing.PriceCents,
		&listing.Mode,
		&listing.ImageURL,
		&listing.Tags,
		&listing.IsBorrowed,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.ListingRecord{}, err
	}
	if listing.Tags == nil {
		listing.Tags = []string{}
	}
	listing.CreatedAt = fromMillis(createdAt)
	listing.UpdatedAt = fromMillis(updatedAt)
	return listing, nil
}

func collectListings(rows pgx.Rows) ([]storage.ListingRecord, error) {
	defer rows.Close()
	listings := make([]storage.ListingRecord, 0)
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing row: %w", err)
		}
		listings = append(listings, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listing rows: %w", err)
	}
	return listings, nil
}

const interestWithListingColumns = `i.id, i.listing_id, i.borrower_id, i.contact_name, i.contact_email,
       i.contact_phone, i.message, i.borrow_start_date, i.borrow_end_date, i.created_at,
       l.id, l.owner_id, l.title, l.image_url, l.price_cents, l.mode, l.is_borrowed`

// InsertInterest records one interest. The unique (listing_id, borrower_id)
// constraint and the listing foreign key decide conflicts atomically.
func (s *Store) InsertInterest(ctx context.Context, interest storage.InterestRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	normalized, err := storage.NormalizeInterest(interest)
	if err != nil {
		return err
	}
	startDate, err := toDate(normalized.BorrowStartDate)
	if err != nil {
		return err
	}
	endDate, err := toDate(normalized.BorrowEndDate)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
INSERT INTO interests (
  id, listing_id, borrower_id, contact_name, contact_email, contact_phone,
  message, borrow_start_date, borrow_end_date, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		normalized.ID,
		normalized.ListingID,
		normalized.BorrowerID,
		normalized.ContactName,
		normalized.ContactEmail,
		normalized.ContactPhone,
		normalized.Message,
		startDate,
		endDate,
		toMillis(normalized.CreatedAt),
	)
	if err != nil {
		switch pgErrorCode(err) {
		case pgUniqueViolation:
			return storage.ErrAlreadyExists
		case pgForeignKeyViolation:
			return storage.ErrNotFound
		}
		return fmt.Errorf("insert interest: %w", err)
	}
	return nil
}

// ListInterestsByListingIDs returns interests on any of the given listings
// newest first. An empty id set returns without querying.
func (s *Store) ListInterestsByListingIDs(ctx context.Context, listingIDs []string) ([]storage.InterestWithListing, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(listingIDs))
	for _, listingID := range listingIDs {
		if trimmed := strings.TrimSpace(listingID); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	if len(ids) == 0 {
		return []storage.InterestWithListing{}, nil
	}
	rows, err := s.pool.Query(ctx, `
SELECT `+interestWithListingColumns+`
FROM interests i
JOIN listings l ON l.id = i.listing_id
WHERE i.listing_id = ANY($1)
ORDER BY i.created_at DESC, i.id DESC`, ids)
	if err != nil {
		return nil, fmt.Errorf("list interests by listing: %w", err)
	}
	return collectInterests(rows)
}

// ListInterestsByBorrower returns one borrower's interests newest first.
func (s *Store) ListInterestsByBorrower(ctx context.Context, borrowerID string) ([]storage.InterestWithListing, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	borrowerID = strings.TrimSpace(borrowerID)
	if borrowerID == "" {
		return nil, fmt.Errorf("borrower id is required")
	}
	rows, err := s.pool.Query(ctx, `
SELECT `+interestWithListingColumns+`
FROM interests i
JOIN listings l ON l.id = i.listing_id
WHERE i.borrower_id = $1
ORDER BY i.created_at DESC, i.id DESC`, borrowerID)
	if err != nil {
		return nil, fmt.Errorf("list interests by borrower: %w", err)
	}
	return collectInterests(rows)
}

// DeleteInterestsByListingID removes every interest on one listing.
func (s *Store) DeleteInterestsByListingID(ctx context.Context, listingID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	listingID = strings.TrimSpace(listingID)
	if listingID == "" {
		return fmt.Errorf("listing id is required")
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM interests WHERE listing_id = $1`, listingID); err != nil {
		return fmt.Errorf("delete interests: %w", err)
	}
	return nil
}

func toDate(value string) (pgtype.Date, error) {
	if value == "" {
		return pgtype.Date{}, nil
	}
	parsed, err := time.Parse(storage.DateLayout, value)
	if err != nil {
		return pgtype.Date{}, fmt.Errorf("parse borrow date %q: %w", value, err)
	}
	return pgtype.Date{Time: parsed, Valid: true}, nil
}

func fromDate(value pgtype.Date) string {
	if !value.Valid {
		return ""
	}
	return value.Time.Format(storage.DateLayout)
}

func collectInterests(rows pgx.Rows) ([]storage.InterestWithListing, error) {
	defer rows.Close()
	out := make([]storage.InterestWithListing, 0)
	for rows.Next() {
		var entry storage.InterestWithListing
		var startDate pgtype.Date
		var endDate pgtype.Date
		var createdAt int64
		if err := rows.Scan(
			&entry.Interest.ID,
			&entry.Interest.ListingID,
			&entry.Interest.BorrowerID,
			&entry.Interest.ContactName,
			&entry.Interest.ContactEmail,
			&entry.Interest.ContactPhone,
			&entry.Interest.Message,
			&startDate,
			&endDate,
			&createdAt,
			&entry.Listing.ID,
			&entry.Listing.OwnerID,
			&entry.Listing.Title,
			&entry.Listing.ImageURL,
			&entry.Listing.PriceCents,
			&entry.Listing.Mode,
			&entry.Listing.IsBorrowed,
		); err != nil {
			return nil, fmt.Errorf("scan interest row: %w", err)
		}
		entry.Interest.BorrowStartDate = fromDate(startDate)
		entry.Interest.BorrowEndDate = fromDate(endDate)
		entry.Interest.CreatedAt = fromMillis(createdAt)
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interest rows: %w", err)
	}
	return out, nil
}

var _ storage.Store = (*Store)(nil)
