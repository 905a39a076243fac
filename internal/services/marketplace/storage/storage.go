// Package storage defines persistence contracts for marketplace listings and
// the interest ledger.
package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Kingl1tz/shoppal/internal/services/marketplace/storage/filter"
	"golang.org/x/text/cases"
)

var (
	// ErrNotFound indicates a requested record is missing, or that an insert
	// referenced a listing that no longer exists.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrInvalidPageToken indicates a page token could not be decoded.
	ErrInvalidPageToken = errors.New("invalid page token")
)

// DateLayout is the calendar date form used for borrow dates.
const DateLayout = "2006-01-02"

// ListingRecord stores one listing row.
type ListingRecord struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	PriceCents  int64
	Mode        string
	ImageURL    string
	Tags        []string
	IsBorrowed  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ListingQuery filters and pages listing reads.
type ListingQuery struct {
	// Text is a case-insensitive substring matched against title or description.
	Text string
	// Filter is a translated AIP-160 condition over listing columns.
	Filter    filter.SQLCondition
	PageSize  int
	PageToken string
}

// ListingPage stores one page of listing records.
type ListingPage struct {
	Listings      []ListingRecord
	NextPageToken string
}

// InterestRecord stores one ledger row. Borrow dates use DateLayout or are empty.
type InterestRecord struct {
	ID              string
	ListingID       string
	BorrowerID      string
	ContactName     string
	ContactEmail    string
	ContactPhone    string
	Message         string
	BorrowStartDate string
	BorrowEndDate   string
	CreatedAt       time.Time
}

// ListingSnapshot is the listing projection joined onto interest reads.
type ListingSnapshot struct {
	ID         string
	OwnerID    string
	Title      string
	ImageURL   string
	PriceCents int64
	Mode       string
	IsBorrowed bool
}

// InterestWithListing pairs one interest with the listing it references.
type InterestWithListing struct {
	Interest InterestRecord
	Listing  ListingSnapshot
}

// ListingStore persists listing records.
type ListingStore interface {
	CreateListing(ctx context.Context, listing ListingRecord) error
	GetListing(ctx context.Context, listingID string) (ListingRecord, error)
	UpdateListing(ctx context.Context, listing ListingRecord) error
	// DeleteListing removes the listing and every interest referencing it in
	// one transaction.
	DeleteListing(ctx context.Context, listingID string) error
	ListListings(ctx context.Context, query ListingQuery) (ListingPage, error)
	ListListingsByOwner(ctx context.Context, ownerID string) ([]ListingRecord, error)
	ListListingIDsByOwner(ctx context.Context, ownerID string) ([]string, error)
}

// InterestStore persists the interest ledger.
type InterestStore interface {
	// InsertInterest returns ErrAlreadyExists when the borrower already has an
	// interest on the listing and ErrNotFound when the listing is gone.
	InsertInterest(ctx context.Context, interest InterestRecord) error
	ListInterestsByListingIDs(ctx context.Context, listingIDs []string) ([]InterestWithListing, error)
	ListInterestsByBorrower(ctx context.Context, borrowerID string) ([]InterestWithListing, error)
	DeleteInterestsByListingID(ctx context.Context, listingID string) error
}

// Store is the full marketplace persistence surface.
type Store interface {
	ListingStore
	InterestStore
	Close() error
}

// SearchText returns the folded text indexed for substring search.
func SearchText(title, description string) string {
	return Fold(title + "\n" + description)
}

// Fold applies Unicode case folding for case-insensitive matching.
func Fold(value string) string {
	return cases.Fold().String(value)
}

// LikePattern returns a LIKE pattern matching the folded text anywhere,
// escaping wildcards with a backslash.
func LikePattern(text string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(Fold(strings.TrimSpace(text))) + "%"
}

// EncodePageToken builds the keyset cursor following the given listing.
func EncodePageToken(createdAt time.Time, listingID string) string {
	raw := strconv.FormatInt(createdAt.UTC().UnixMilli(), 10) + ":" + listingID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodePageToken returns the creation time in milliseconds and listing id
// encoded in token.
func DecodePageToken(token string) (int64, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	millisText, listingID, ok := strings.Cut(string(raw), ":")
	if !ok || listingID == "" {
		return 0, "", ErrInvalidPageToken
	}
	millis, err := strconv.ParseInt(millisText, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	return millis, listingID, nil
}

// NormalizeListing trims text fields and fills timestamps for a write.
func NormalizeListing(listing ListingRecord) (ListingRecord, error) {
	listing.ID = strings.TrimSpace(listing.ID)
	listing.OwnerID = strings.TrimSpace(listing.OwnerID)
	listing.Title = strings.TrimSpace(listing.Title)
	listing.Description = strings.TrimSpace(listing.Description)
	listing.Mode = strings.TrimSpace(listing.Mode)
	listing.ImageURL = strings.TrimSpace(listing.ImageURL)
	if listing.ID == "" {
		return ListingRecord{}, fmt.Errorf("listing id is required")
	}
	if listing.OwnerID == "" {
		return ListingRecord{}, fmt.Errorf("owner id is required")
	}
	if listing.Title == "" {
		return ListingRecord{}, fmt.Errorf("title is required")
	}
	if listing.PriceCents <= 0 {
		return ListingRecord{}, fmt.Errorf("price must be greater than zero")
	}
	if listing.Mode == "" {
		return ListingRecord{}, fmt.Errorf("mode is required")
	}
	if listing.Tags == nil {
		listing.Tags = []string{}
	}
	createdAt := listing.CreatedAt.UTC()
	updatedAt := listing.UpdatedAt.UTC()
	if createdAt.IsZero() && updatedAt.IsZero() {
		createdAt = time.Now().UTC()
		updatedAt = createdAt
	} else {
		if createdAt.IsZero() {
			createdAt = updatedAt
		}
		if updatedAt.IsZero() {
			updatedAt = createdAt
		}
	}
	listing.CreatedAt = createdAt
	listing.UpdatedAt = updatedAt
	return listing, nil
}

// NormalizeInterest trims text fields and checks required identifiers.
func NormalizeInterest(interest InterestRecord) (InterestRecord, error) {
	interest.ID = strings.TrimSpace(interest.ID)
	interest.ListingID = strings.TrimSpace(interest.ListingID)
	interest.BorrowerID = strings.TrimSpace(interest.BorrowerID)
	interest.ContactName = strings.TrimSpace(interest.ContactName)
	interest.ContactEmail = strings.TrimSpace(interest.ContactEmail)
	interest.ContactPhone = strings.TrimSpace(interest.ContactPhone)
	interest.Message = strings.TrimSpace(interest.Message)
	interest.BorrowStartDate = strings.TrimSpace(interest.BorrowStartDate)
	interest.BorrowEndDate = strings.TrimSpace(interest.BorrowEndDate)
	if interest.ID == "" {
		return InterestRecord{}, fmt.Errorf("interest id is required")
	}
	if interest.ListingID == "" {
		return InterestRecord{}, fmt.Errorf("listing id is required")
	}
	if interest.BorrowerID == "" {
		return InterestRecord{}, fmt.Errorf("borrower id is required")
	}
	if interest.CreatedAt.IsZero() {
		interest.CreatedAt = time.Now()
	}
	interest.CreatedAt = interest.CreatedAt.UTC()
	return interest, nil
}
