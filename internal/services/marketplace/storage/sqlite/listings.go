package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Kingl1tz/shoppal/internal/services/marketplace/storage"
)

const listingColumns = `id, owner_id, title, description, price_cents, mode, image_url,
        tags_json, is_borrowed, created_at, updated_at`

// CreateListing inserts one listing record.
func (s *Store) CreateListing(ctx context.Context, listing storage.ListingRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	normalized, err := storage.NormalizeListing(listing)
	if err != nil {
		return err
	}
	tagsJSON, err := json.Marshal(normalized.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO listings (
		   id, owner_id, title, description, price_cents, mode, image_url,
		   tags_json, is_borrowed, search_text, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		normalized.ID,
		normalized.OwnerID,
		normalized.Title,
		normalized.Description,
		normalized.PriceCents,
		normalized.Mode,
		normalized.ImageURL,
		string(tagsJSON),
		normalized.IsBorrowed,
		storage.SearchText(normalized.Title, normalized.Description),
		toMillis(normalized.CreatedAt),
		toMillis(normalized.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
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

	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = ?`, listingID)
	listing, err := scanListing(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
	tagsJSON, err := json.Marshal(normalized.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE listings
		    SET title = ?, description = ?, price_cents = ?, mode = ?, image_url = ?,
		        tags_json = ?, is_borrowed = ?, search_text = ?, updated_at = ?
		  WHERE id = ? AND owner_id = ?`,
		normalized.Title,
		normalized.Description,
		normalized.PriceCents,
		normalized.Mode,
		normalized.ImageURL,
		string(tagsJSON),
		normalized.IsBorrowed,
		storage.SearchText(normalized.Title, normalized.Description),
		toMillis(normalized.UpdatedAt),
		normalized.ID,
		normalized.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update listing rows affected: %w", err)
	}
	if affected == 0 {
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

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin listing delete: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback listing delete: %v", cause, rollbackErr)
		}
		return cause
	}

	if err := deleteInterestsExec(ctx, tx, listingID); err != nil {
		return rollbackWith(err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM listings WHERE id = ?`, listingID)
	if err != nil {
		return rollbackWith(fmt.Errorf("delete listing: %w", err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return rollbackWith(fmt.Errorf("delete listing rows affected: %w", err))
	}
	if affected == 0 {
		return rollbackWith(storage.ErrNotFound)
	}
	if err := tx.Commit(); err != nil {
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
	if text := strings.TrimSpace(query.Text); text != "" {
		where = append(where, `search_text LIKE ? ESCAPE '\'`)
		args = append(args, storage.LikePattern(text))
	}
	if !query.Filter.Empty() {
		where = append(where, query.Filter.Clause)
		args = append(args, query.Filter.Params...)
	}
	if token := strings.TrimSpace(query.PageToken); token != "" {
		createdAt, lastID, err := storage.DecodePageToken(token)
		if err != nil {
			return storage.ListingPage{}, err
		}
		where = append(where, `(created_at < ? OR (created_at = ? AND id < ?))`)
		args = append(args, createdAt, createdAt, lastID)
	}

	statement := `SELECT ` + listingColumns + ` FROM listings`
	if len(where) > 0 {
		statement += ` WHERE ` + strings.Join(where, " AND ")
	}
	statement += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, query.PageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, statement, args...)
	if err != nil {
		return storage.ListingPage{}, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

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
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE owner_id = ? ORDER BY created_at DESC, id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list owner listings: %w", err)
	}
	defer rows.Close()
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
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id FROM listings WHERE owner_id = ? ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list owner listing ids: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var listingID string
		if err := rows.Scan(&listingID); err != nil {
			return nil, fmt.Errorf("scan listing id: %w", err)
		}
		ids = append(ids, listingID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listing ids: %w", err)
	}
	return ids, nil
}

func scanListing(scan scanner) (storage.ListingRecord, error) {
	var listing storage.ListingRecord
	var tagsJSON string
	var createdAt int64
	var updatedAt int64
	if err := scan(
		&listing.ID,
		&listing.OwnerID,
		&listing.Title,
		&listing.Description,
		&listing.PriceCents,
		&listing.Mode,
		&listing.ImageURL,
		&tagsJSON,
		&listing.IsBorrowed,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.ListingRecord{}, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &listing.Tags); err != nil {
		return storage.ListingRecord{}, fmt.Errorf("decode tags: %w", err)
	}
	if listing.Tags == nil {
		listing.Tags = []string{}
	}
	listing.CreatedAt = fromMillis(createdAt)
	listing.UpdatedAt = fromMillis(updatedAt)
	return listing, nil
}

func collectListings(rows *sql.Rows) ([]storage.ListingRecord, error) {
	listings := make([]storage.ListingRecord, 0)
	for rows.Next() {
		listing, err := scanListing(rows.Scan)
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
