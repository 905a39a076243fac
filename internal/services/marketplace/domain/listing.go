// Package domain implements the marketplace operations: listing management,
// interest submission and the identity-scoped dashboards.
package domain

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Kingl1tz/shoppal/internal/services/marketplace/storage"
)

// Mode decides how a listing changes hands.
type Mode string

const (
	ModeSale Mode = "sale"
	ModeLoan Mode = "loan"
)

// ParseMode reads a mode, defaulting blank input to ModeSale.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ModeSale:
		return ModeSale, nil
	case ModeLoan:
		return ModeLoan, nil
	default:
		return "", fmt.Errorf("unknown mode %q", value)
	}
}

// RequiresDateRange reports whether interests must carry a borrow window.
func (m Mode) RequiresDateRange() bool {
	return m == ModeLoan
}

// Listing is an item offered by its owner.
type Listing struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	PriceCents  int64
	Mode        Mode
	ImageURL    string
	Tags        []string
	IsBorrowed  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Price returns the decimal form of the listing price.
func (l Listing) Price() string {
	return FormatPrice(l.PriceCents)
}

// maxPriceDigits keeps cents within int64.
const maxPriceDigits = 15

// ParsePrice converts a positive decimal with at most two fractional digits
// into cents.
func ParsePrice(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("price is required")
	}
	whole, frac, hasFrac := strings.Cut(value, ".")
	if whole == "" {
		whole = "0"
	}
	if hasFrac && (frac == "" || len(frac) > 2) {
		return 0, fmt.Errorf("price %q must have one or two decimal places", value)
	}
	if len(whole) > maxPriceDigits || !allDigits(whole) || !allDigits(frac) {
		return 0, fmt.Errorf("price %q is not a decimal number", value)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	cents, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", value, err)
	}
	if cents <= 0 {
		return 0, fmt.Errorf("price must be greater than zero")
	}
	return cents, nil
}

func allDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FormatPrice renders cents as a decimal string with two places.
func FormatPrice(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// NormalizeTags splits comma separated values, trims them, drops empties and
// removes duplicates keeping the first occurrence.
func NormalizeTags(values ...string) []string {
	tags := []string{}
	seen := make(map[string]struct{})
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			tag := strings.TrimSpace(part)
			if tag == "" {
				continue
			}
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		}
	}
	return tags
}

func validImageURL(raw string) bool {
	if raw == "" {
		return true
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

func listingFromRecord(record storage.ListingRecord) Listing {
	tags := record.Tags
	if tags == nil {
		tags = []string{}
	}
	return Listing{
		ID:          record.ID,
		OwnerID:     record.OwnerID,
		Title:       record.Title,
		Description: record.Description,
		PriceCents:  record.PriceCents,
		Mode:        Mode(record.Mode),
		ImageURL:    record.ImageURL,
		Tags:        tags,
		IsBorrowed:  record.IsBorrowed,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
}

func (l Listing) record() storage.ListingRecord {
	return storage.ListingRecord{
		ID:          l.ID,
		OwnerID:     l.OwnerID,
		Title:       l.Title,
		Description: l.Description,
		PriceCents:  l.PriceCents,
		Mode:        string(l.Mode),
		ImageURL:    l.ImageURL,
		Tags:        l.Tags,
		IsBorrowed:  l.IsBorrowed,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

// ListingSummary is the listing view carried by dashboard entries.
type ListingSummary struct {
	ID         string
	OwnerID    string
	Title      string
	ImageURL   string
	PriceCents int64
	Mode       Mode
	IsBorrowed bool
}

// Contact is how a borrower asks to be reached.
type Contact struct {
	Name  string
	Email string
	Phone string
}

// Interest is one borrower's registered interest in a listing.
type Interest struct {
	ID              string
	ListingID       string
	BorrowerID      string
	Contact         Contact
	Message         string
	BorrowStartDate string
	BorrowEndDate   string
	CreatedAt       time.Time
}

// HasDateRange reports whether a borrow window was supplied.
func (i Interest) HasDateRange() bool {
	return i.BorrowStartDate != "" && i.BorrowEndDate != ""
}

// InterestEntry is one dashboard row: an interest and its listing.
type InterestEntry struct {
	Interest Interest
	Listing  ListingSummary
}

func interestFromRecord(record storage.InterestRecord) Interest {
	return Interest{
		ID:         record.ID,
		ListingID:  record.ListingID,
		BorrowerID: record.BorrowerID,
		Contact: Contact{
			Name:  record.ContactName,
			Email: record.ContactEmail,
			Phone: record.ContactPhone,
		},
		Message:         record.Message,
		BorrowStartDate: record.BorrowStartDate,
		BorrowEndDate:   record.BorrowEndDate,
		CreatedAt:       record.CreatedAt,
	}
}

func entryFromRecord(record storage.InterestWithListing) InterestEntry {
	return InterestEntry{
		Interest: interestFromRecord(record.Interest),
		Listing: ListingSummary{
			ID:         record.Listing.ID,
			OwnerID:    record.Listing.OwnerID,
			Title:      record.Listing.Title,
			ImageURL:   record.Listing.ImageURL,
			PriceCents: record.Listing.PriceCents,
			Mode:       Mode(record.Listing.Mode),
			IsBorrowed: record.Listing.IsBorrowed,
		},
	}
}
