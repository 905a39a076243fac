package domain

import (
	"cmp"
	"context"
	"slices"

	apperrors "github.com/Kingl1tz/shoppal/internal/platform/errors"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/identity"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/storage"
)

// DashboardService projects the ledger through the viewer's own relations.
type DashboardService struct {
	listings storage.ListingStore
	ledger   storage.InterestStore
	opts     Options
}

// NewDashboardService returns a dashboard service.
func NewDashboardService(listings storage.ListingStore, ledger storage.InterestStore, opts Options) *DashboardService {
	return &DashboardService{listings: listings, ledger: ledger, opts: opts.withDefaults()}
}

func (s *DashboardService) ready() error {
	if s == nil || s.listings == nil || s.ledger == nil {
		return apperrors.New(apperrors.CodeStoreFailure, "dashboard stores are not configured")
	}
	return nil
}

// Received returns interests other users registered on the viewer's
// listings, newest first.
func (s *DashboardService) Received(ctx context.Context, viewer identity.Identity) (_ []InterestEntry, err error) {
	ctx, span := startSpan(ctx, "DashboardService.Received")
	defer func() { endSpan(span, err) }()

	if err := requireIdentity(viewer); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	listingIDs, err := s.listings.ListListingIDsByOwner(ctx, viewer.ID)
	if err != nil {
		return nil, storeError("list owned listing ids", err)
	}
	if len(listingIDs) == 0 {
		return []InterestEntry{}, nil
	}
	records, err := s.ledger.ListInterestsByListingIDs(ctx, listingIDs)
	if err != nil {
		return nil, storeError("list received interests", err)
	}
	return toEntries(records), nil
}

// Mine returns the interests the viewer registered, newest first.
func (s *DashboardService) Mine(ctx context.Context, viewer identity.Identity) (_ []InterestEntry, err error) {
	ctx, span := startSpan(ctx, "DashboardService.Mine")
	defer func() { endSpan(span, err) }()

	if err := requireIdentity(viewer); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	records, err := s.ledger.ListInterestsByBorrower(ctx, viewer.ID)
	if err != nil {
		return nil, storeError("list my interests", err)
	}
	return toEntries(records), nil
}

func toEntries(records []storage.InterestWithListing) []InterestEntry {
	entries := make([]InterestEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, entryFromRecord(record))
	}
	slices.SortStableFunc(entries, func(a, b InterestEntry) int {
		if c := b.Interest.CreatedAt.Compare(a.Interest.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.Interest.ID, a.Interest.ID)
	})
	return entries
}
