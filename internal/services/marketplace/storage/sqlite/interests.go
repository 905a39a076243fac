package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Kingl1tz/shoppal/internal/services/marketplace/storage"
)

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

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO interests (
		   id, listing_id, borrower_id, contact_name, contact_email, contact_phone,
		   message, borrow_start_date, borrow_end_date, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		normalized.ID,
		normalized.ListingID,
		normalized.BorrowerID,
		normalized.ContactName,
		normalized.ContactEmail,
		normalized.ContactPhone,
		normalized.Message,
		nullableDate(normalized.BorrowStartDate),
		nullableDate(normalized.BorrowEndDate),
		toMillis(normalized.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrAlreadyExists
		}
		if isForeignKeyConstraintError(err) {
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
	ids := make([]any, 0, len(listingIDs))
	for _, listingID := range listingIDs {
		if trimmed := strings.TrimSpace(listingID); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	if len(ids) == 0 {
		return []storage.InterestWithListing{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+interestWithListingColumns+`
FROM interests i
JOIN listings l ON l.id = i.listing_id
WHERE i.listing_id IN (`+placeholders+`)
ORDER BY i.created_at DESC, i.id DESC
`, ids...)
	if err != nil {
		return nil, fmt.Errorf("list interests by listing: %w", err)
	}
	defer rows.Close()
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
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+interestWithListingColumns+`
FROM interests i
JOIN listings l ON l.id = i.listing_id
WHERE i.borrower_id = ?
ORDER BY i.created_at DESC, i.id DESC
`, borrowerID)
	if err != nil {
		return nil, fmt.Errorf("list interests by borrower: %w", err)
	}
	defer rows.Close()
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
	return deleteInterestsExec(ctx, s.sqlDB, listingID)
}

func deleteInterestsExec(ctx context.Context, execer sqlExecer, listingID string) error {
	if _, err := execer.ExecContext(ctx, `DELETE FROM interests WHERE listing_id = ?`, listingID); err != nil {
		return fmt.Errorf("delete interests: %w", err)
	}
	return nil
}

func nullableDate(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func collectInterests(rows *sql.Rows) ([]storage.InterestWithListing, error) {
	out := make([]storage.InterestWithListing, 0)
	for rows.Next() {
		var entry storage.InterestWithListing
		var startDate sql.NullString
		var endDate sql.NullString
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
		entry.Interest.BorrowStartDate = startDate.String
		entry.Interest.BorrowEndDate = endDate.String
		entry.Interest.CreatedAt = fromMillis(createdAt)
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interest rows: %w", err)
	}
	return out, nil
}
