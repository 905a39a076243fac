package domain

import (
	"cmp"
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/Kingl1tz/shoppal/internal/services/marketplace/events"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/identity"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/storage"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/storage/sqlite"
)

var testNow = time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)

var (
	alice = identity.Identity{ID: "alice", Email: "alice@example.com", DisplayName: "Alice"}
	bob   = identity.Identity{ID: "bob", Email: "bob@example.com", DisplayName: "Bob"}
	carol = identity.Identity{ID: "carol", Email: "carol@example.com", DisplayName: "Carol"}
)

type sequence struct {
	mu     sync.Mutex
	prefix string
	next   int
}

func (s *sequence) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return fmt.Sprintf("%s-%03d", s.prefix, s.next), nil
}

type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

// Now advances one second per call so creation order is observable.
func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func testOptions() Options {
	clock := &steppingClock{now: testNow}
	ids := &sequence{prefix: "id"}
	return Options{Clock: clock.Now, NewID: ids.NewID}
}

// memStore is an in-memory storage.Store that enforces the ledger
// constraints and counts calls.
type memStore struct {
	mu        sync.Mutex
	listings  map[string]storage.ListingRecord
	interests []storage.InterestRecord
	calls     map[string]int
	failWith  error
}

func newMemStore() *memStore {
	return &memStore{listings: map[string]storage.ListingRecord{}, calls: map[string]int{}}
}

func (m *memStore) record(name string) error {
	m.calls[name]++
	return m.failWith
}

func (m *memStore) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *memStore) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

func (m *memStore) CreateListing(_ context.Context, listing storage.ListingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("CreateListing"); err != nil {
		return err
	}
	if _, ok := m.listings[listing.ID]; ok {
		return storage.ErrAlreadyExists
	}
	m.listings[listing.ID] = listing
	return nil
}

func (m *memStore) GetListing(_ context.Context, listingID string) (storage.ListingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetListing"); err != nil {
		return storage.ListingRecord{}, err
	}
	listing, ok := m.listings[listingID]
	if !ok {
		return storage.ListingRecord{}, storage.ErrNotFound
	}
	return listing, nil
}

func (m *memStore) UpdateListing(_ context.Context, listing storage.ListingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("UpdateListing"); err != nil {
		return err
	}
	current, ok := m.listings[listing.ID]
	if !ok || current.OwnerID != listing.OwnerID {
		return storage.ErrNotFound
	}
	listing.CreatedAt = current.CreatedAt
	m.listings[listing.ID] = listing
	return nil
}

func (m *memStore) DeleteListing(_ context.Context, listingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("DeleteListing"); err != nil {
		return err
	}
	if _, ok := m.listings[listingID]; !ok {
		return storage.ErrNotFound
	}
	delete(m.listings, listingID)
	m.interests = slices.DeleteFunc(m.interests, func(i storage.InterestRecord) bool { return i.ListingID == listingID })
	return nil
}

func (m *memStore) sortedListings() []storage.ListingRecord {
	out := make([]storage.ListingRecord, 0, len(m.listings))
	for _, listing := range m.listings {
		out = append(out, listing)
	}
	slices.SortFunc(out, func(a, b storage.ListingRecord) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out
}

func (m *memStore) ListListings(_ context.Context, query storage.ListingQuery) (storage.ListingPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ListListings"); err != nil {
		return storage.ListingPage{}, err
	}
	all := m.sortedListings()
	start := 0
	if query.PageToken != "" {
		_, afterID, err := storage.DecodePageToken(query.PageToken)
		if err != nil {
			return storage.ListingPage{}, err
		}
		for i, listing := range all {
			if listing.ID == afterID {
				start = i + 1
			}
		}
	}
	all = all[start:]
	page := storage.ListingPage{}
	if len(all) > query.PageSize {
		last := all[query.PageSize-1]
		page.NextPageToken = storage.EncodePageToken(last.CreatedAt, last.ID)
		all = all[:query.PageSize]
	}
	page.Listings = all
	return page, nil
}

func (m *memStore) ListListingsByOwner(_ context.Context, ownerID string) ([]storage.ListingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ListListingsByOwner"); err != nil {
		return nil, err
	}
	return slices.DeleteFunc(m.sortedListings(), func(l storage.ListingRecord) bool { return l.OwnerID != ownerID }), nil
}

func (m *memStore) ListListingIDsByOwner(_ context.Context, ownerID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ListListingIDsByOwner"); err != nil {
		return nil, err
	}
	ids := []string{}
	for _, listing := range m.listings {
		if listing.OwnerID == ownerID {
			ids = append(ids, listing.ID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (m *memStore) InsertInterest(_ context.Context, interest storage.InterestRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("InsertInterest"); err != nil {
		return err
	}
	if _, ok := m.listings[interest.ListingID]; !ok {
		return storage.ErrNotFound
	}
	for _, existing := range m.interests {
		if existing.ListingID == interest.ListingID && existing.BorrowerID == interest.BorrowerID {
			return storage.ErrAlreadyExists
		}
	}
	m.interests = append(m.interests, interest)
	return nil
}

func (m *memStore) joined(keep func(storage.InterestRecord) bool) []storage.InterestWithListing {
	out := []storage.InterestWithListing{}
	for _, interest := range m.interests {
		if !keep(interest) {
			continue
		}
		listing := m.listings[interest.ListingID]
		out = append(out, storage.InterestWithListing{
			Interest: interest,
			Listing: storage.ListingSnapshot{
				ID:         listing.ID,
				OwnerID:    listing.OwnerID,
				Title:      listing.Title,
				ImageURL:   listing.ImageURL,
				PriceCents: listing.PriceCents,
				Mode:       listing.Mode,
				IsBorrowed: listing.IsBorrowed,
			},
		})
	}
	return out
}

func (m *memStore) ListInterestsByListingIDs(_ context.Context, listingIDs []string) ([]storage.InterestWithListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ListInterestsByListingIDs"); err != nil {
		return nil, err
	}
	return m.joined(func(i storage.InterestRecord) bool { return slices.Contains(listingIDs, i.ListingID) }), nil
}

func (m *memStore) ListInterestsByBorrower(_ context.Context, borrowerID string) ([]storage.InterestWithListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ListInterestsByBorrower"); err != nil {
		return nil, err
	}
	return m.joined(func(i storage.InterestRecord) bool { return i.BorrowerID == borrowerID }), nil
}

func (m *memStore) DeleteInterestsByListingID(_ context.Context, listingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("DeleteInterestsByListingID"); err != nil {
		return err
	}
	m.interests = slices.DeleteFunc(m.interests, func(i storage.InterestRecord) bool { return i.ListingID == listingID })
	return nil
}

func (m *memStore) Close() error { return nil }

var _ storage.Store = (*memStore)(nil)

func openSQLiteStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "marketplace.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type services struct {
	listings  *ListingService
	interests *InterestService
	dashboard *DashboardService
}

func newServices(store storage.Store, publisher events.Publisher) services {
	opts := testOptions()
	return services{
		listings:  NewListingService(store, nil, opts),
		interests: NewInterestService(store, store, publisher, opts),
		dashboard: NewDashboardService(store, store, opts),
	}
}

func mustCreate(t *testing.T, svc *ListingService, owner identity.Identity, title, mode string) Listing {
	t.Helper()
	listing, err := svc.Create(context.Background(), owner, ListingInput{Title: title, Price: "25.00", Mode: mode})
	if err != nil {
		t.Fatalf("create listing %q: %v", title, err)
	}
	return listing
}
