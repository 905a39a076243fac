package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Kingl1tz/shoppal/internal/services/marketplace/storage"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/storage/filter"
)

var baseTime = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestOpenCreatesParentDirAndEnablesForeignKeys(t *testing.T) {
	t.Parallel()

	store, err := Open(filepath.Join(t.TempDir(), "nested", "data", "marketplace.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	if err := ensureForeignKeysEnabled(store.sqlDB); err != nil {
		t.Fatalf("foreign keys: %v", err)
	}
}

func TestCreateGetListingRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	input := listingRecord("lst-1", "owner-1", "Drill", 0)
	input.Description = "Cordless, two batteries"
	input.Tags = []string{"tools", "power"}
	input.ImageURL = "http://localhost/blobs/owner-1/a.png"
	if err := store.CreateListing(context.Background(), input); err != nil {
		t.Fatalf("create listing: %v", err)
	}

	got, err := store.GetListing(context.Background(), "lst-1")
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if got.Title != "Drill" || got.Description != input.Description {
		t.Fatalf("listing = %+v", got)
	}
	if got.PriceCents != 2500 {
		t.Fatalf("price_cents = %d, want 2500", got.PriceCents)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "tools" || got.Tags[1] != "power" {
		t.Fatalf("tags = %v, want [tools power]", got.Tags)
	}
	if !got.CreatedAt.Equal(baseTime) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, baseTime)
	}
	if got.IsBorrowed {
		t.Fatal("expected is_borrowed false by default")
	}
}

func TestCreateListingReturnsAlreadyExistsOnDuplicate(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	input := listingRecord("lst-dup", "owner-1", "Ladder", 0)
	if err := store.CreateListing(context.Background(), input); err != nil {
		t.Fatalf("create initial listing: %v", err)
	}
	err := store.CreateListing(context.Background(), input)
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate create error = %v, want %v", err, storage.ErrAlreadyExists)
	}
}

func TestGetListingNotFound(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	if _, err := store.GetListing(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get missing error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestUpdateListing(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	input := listingRecord("lst-1", "owner-1", "Drill", 0)
	if err := store.CreateListing(context.Background(), input); err != nil {
		t.Fatalf("create listing: %v", err)
	}

	input.Title = "Hammer Drill"
	input.IsBorrowed = true
	input.UpdatedAt = baseTime.Add(time.Hour)
	if err := store.UpdateListing(context.Background(), input); err != nil {
		t.Fatalf("update listing: %v", err)
	}
	got, err := store.GetListing(context.Background(), "lst-1")
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if got.Title != "Hammer Drill" || !got.IsBorrowed {
		t.Fatalf("listing = %+v", got)
	}
	if !got.UpdatedAt.Equal(baseTime.Add(time.Hour)) {
		t.Fatalf("updated_at = %v", got.UpdatedAt)
	}

	input.OwnerID = "owner-2"
	if err := store.UpdateListing(context.Background(), input); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("update with other owner error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestListListingsPaginatesNewestFirst(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	for idx, id := range []string{"lst-1", "lst-2", "lst-3"} {
		mustCreateListing(t, store, listingRecord(id, "owner-1", "Title "+id, time.Duration(idx)*time.Minute))
	}

	pageOne, err := store.ListListings(context.Background(), storage.ListingQuery{PageSize: 2})
	if err != nil {
		t.Fatalf("list page one: %v", err)
	}
	if len(pageOne.Listings) != 2 {
		t.Fatalf("page one len = %d, want 2", len(pageOne.Listings))
	}
	if pageOne.Listings[0].ID != "lst-3" || pageOne.Listings[1].ID != "lst-2" {
		t.Fatalf("page one order = %s, %s", pageOne.Listings[0].ID, pageOne.Listings[1].ID)
	}
	if pageOne.NextPageToken == "" {
		t.Fatal("expected page one next token")
	}

	pageTwo, err := store.ListListings(context.Background(), storage.ListingQuery{PageSize: 2, PageToken: pageOne.NextPageToken})
	if err != nil {
		t.Fatalf("list page two: %v", err)
	}
	if len(pageTwo.Listings) != 1 || pageTwo.Listings[0].ID != "lst-1" {
		t.Fatalf("page two = %+v", pageTwo.Listings)
	}
	if pageTwo.NextPageToken != "" {
		t.Fatalf("page two next token = %q, want empty", pageTwo.NextPageToken)
	}

	if _, err := store.ListListings(context.Background(), storage.ListingQuery{PageSize: 2, PageToken: "%%%"}); !errors.Is(err, storage.ErrInvalidPageToken) {
		t.Fatalf("bad token error = %v, want %v", err, storage.ErrInvalidPageToken)
	}
	if _, err := store.ListListings(context.Background(), storage.ListingQuery{}); err == nil {
		t.Fatal("expected page size error")
	}
}

func TestListListingsTextSearchIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	drill := listingRecord("lst-1", "owner-1", "Cordless DRILL", 0)
	tent := listingRecord("lst-2", "owner-1", "Tent", time.Minute)
	tent.Description = "Fits a drill bit case too"
	ladder := listingRecord("lst-3", "owner-1", "Ladder", 2*time.Minute)
	for _, listing := range []storage.ListingRecord{drill, tent, ladder} {
		mustCreateListing(t, store, listing)
	}

	page, err := store.ListListings(context.Background(), storage.ListingQuery{Text: "drill", PageSize: 10})
	if err != nil {
		t.Fatalf("list listings: %v", err)
	}
	if len(page.Listings) != 2 {
		t.Fatalf("matches = %d, want 2", len(page.Listings))
	}
	if page.Listings[0].ID != "lst-2" || page.Listings[1].ID != "lst-1" {
		t.Fatalf("order = %s, %s", page.Listings[0].ID, page.Listings[1].ID)
	}

	page, err = store.ListListings(context.Background(), storage.ListingQuery{Text: "100%", PageSize: 10})
	if err != nil {
		t.Fatalf("list listings: %v", err)
	}
	if len(page.Listings) != 0 {
		t.Fatalf("wildcard matches = %d, want 0", len(page.Listings))
	}
}

func TestListListingsAppliesFilter(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	sale := listingRecord("lst-1", "owner-1", "Drill", 0)
	loan := listingRecord("lst-2", "owner-2", "Tent", time.Minute)
	loan.Mode = "loan"
	loan.PriceCents = 900
	mustCreateListing(t, store, sale)
	mustCreateListing(t, store, loan)

	cond, err := filter.ParseListingFilter(`mode = "loan" AND owner_id = "owner-2"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	page, err := store.ListListings(context.Background(), storage.ListingQuery{Filter: cond, PageSize: 10})
	if err != nil {
		t.Fatalf("list listings: %v", err)
	}
	if len(page.Listings) != 1 || page.Listings[0].ID != "lst-2" {
		t.Fatalf("filtered = %+v", page.Listings)
	}

	cond, err = filter.ParseListingFilter(`price < 10.0`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	page, err = store.ListListings(context.Background(), storage.ListingQuery{Filter: cond, PageSize: 10})
	if err != nil {
		t.Fatalf("list listings: %v", err)
	}
	if len(page.Listings) != 1 || page.Listings[0].ID != "lst-2" {
		t.Fatalf("price filtered = %+v", page.Listings)
	}
}

func TestListListingsByOwner(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	mustCreateListing(t, store, listingRecord("lst-1", "owner-1", "Drill", 0))
	mustCreateListing(t, store, listingRecord("lst-2", "owner-2", "Tent", time.Minute))
	mustCreateListing(t, store, listingRecord("lst-3", "owner-1", "Ladder", 2*time.Minute))

	owned, err := store.ListListingsByOwner(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("list owner listings: %v", err)
	}
	if len(owned) != 2 || owned[0].ID != "lst-3" || owned[1].ID != "lst-1" {
		t.Fatalf("owned = %+v", owned)
	}

	ids, err := store.ListListingIDsByOwner(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("list owner ids: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("ids = %v, want 2 entries", ids)
	}

	ids, err = store.ListListingIDsByOwner(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("list owner ids: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("ids = %v, want empty", ids)
	}
}

func TestInsertInterestRejectsDuplicateBorrower(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	mustCreateListing(t, store, listingRecord("lst-1", "owner-1", "Drill", 0))

	if err := store.InsertInterest(context.Background(), interestRecord("int-1", "lst-1", "alice")); err != nil {
		t.Fatalf("insert interest: %v", err)
	}
	err := store.InsertInterest(context.Background(), interestRecord("int-2", "lst-1", "alice"))
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate insert error = %v, want %v", err, storage.ErrAlreadyExists)
	}

	received, err := store.ListInterestsByListingIDs(context.Background(), []string{"lst-1"})
	if err != nil {
		t.Fatalf("list interests: %v", err)
	}
	if len(received) != 1 {
		t.Fatalf("interests = %d, want 1", len(received))
	}
}

func TestInsertInterestUnknownListingIsNotFound(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	err := store.InsertInterest(context.Background(), interestRecord("int-1", "missing", "alice"))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("insert error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestInterestsSchemaRejectsHalfDateRange(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	mustCreateListing(t, store, listingRecord("lst-1", "owner-1", "Drill", 0))
	interest := interestRecord("int-1", "lst-1", "alice")
	interest.BorrowStartDate = "2026-03-10"
	if err := store.InsertInterest(context.Background(), interest); err == nil {
		t.Fatal("expected schema constraint error")
	} else if isUniqueConstraintError(err) {
		t.Fatalf("check constraint error classified as unique violation: %v", err)
	}
}

func TestConcurrentDuplicateInterestsYieldOneRow(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	mustCreateListing(t, store, listingRecord("lst-1", "owner-1", "Drill", 0))

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for idx := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.InsertInterest(context.Background(), interestRecord(fmt.Sprintf("int-%d", idx), "lst-1", "alice"))
		}()
	}
	wg.Wait()
	close(errs)

	successes := 0
	for err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, storage.ErrAlreadyExists):
		default:
			t.Fatalf("unexpected insert error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("successes = %d, want 1", successes)
	}
}

func TestDeleteListingCascadesInterests(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	mustCreateListing(t, store, listingRecord("lst-1", "owner-1", "Drill", 0))
	mustCreateListing(t, store, listingRecord("lst-2", "owner-1", "Tent", time.Minute))
	for idx, borrower := range []string{"alice", "bob", "carol"} {
		if err := store.InsertInterest(context.Background(), interestRecord(fmt.Sprintf("int-%d", idx), "lst-1", borrower)); err != nil {
			t.Fatalf("insert interest: %v", err)
		}
	}
	if err := store.InsertInterest(context.Background(), interestRecord("int-keep", "lst-2", "alice")); err != nil {
		t.Fatalf("insert interest: %v", err)
	}

	if err := store.DeleteListing(context.Background(), "lst-1"); err != nil {
		t.Fatalf("delete listing: %v", err)
	}
	if _, err := store.GetListing(context.Background(), "lst-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get deleted listing error = %v, want %v", err, storage.ErrNotFound)
	}
	var remaining int
	if err := store.sqlDB.QueryRow(`SELECT COUNT(*) FROM interests WHERE listing_id = ?`, "lst-1").Scan(&remaining); err != nil {
		t.Fatalf("count interests: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("remaining interests = %d, want 0", remaining)
	}

	mine, err := store.ListInterestsByBorrower(context.Background(), "alice")
	if err != nil {
		t.Fatalf("list mine: %v", err)
	}
	if len(mine) != 1 || mine[0].Interest.ID != "int-keep" {
		t.Fatalf("alice interests = %+v", mine)
	}

	if err := store.DeleteListing(context.Background(), "lst-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second delete error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestDeleteInterestsByListingID(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	mustCreateListing(t, store, listingRecord("lst-1", "owner-1", "Drill", 0))
	if err := store.InsertInterest(context.Background(), interestRecord("int-1", "lst-1", "alice")); err != nil {
		t.Fatalf("insert interest: %v", err)
	}
	if err := store.DeleteInterestsByListingID(context.Background(), "lst-1"); err != nil {
		t.Fatalf("delete interests: %v", err)
	}
	got, err := store.ListInterestsByListingIDs(context.Background(), []string{"lst-1"})
	if err != nil {
		t.Fatalf("list interests: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("interests = %d, want 0", len(got))
	}
	if _, err := store.GetListing(context.Background(), "lst-1"); err != nil {
		t.Fatalf("listing should survive: %v", err)
	}
}

func TestListInterestsByListingIDsEmptySet(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	got, err := store.ListInterestsByListingIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("list interests: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("interests = %v, want empty non-nil", got)
	}
}

func TestDrillInterestScenario(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	drill := listingRecord("lst-drill", "owner-1", "Drill", 0)
	drill.Mode = "loan"
	mustCreateListing(t, store, drill)

	interest := interestRecord("int-1", "lst-drill", "alice")
	interest.ContactName = "Alice"
	interest.ContactEmail = "a@x.io"
	interest.BorrowStartDate = "2026-03-10"
	interest.BorrowEndDate = "2026-03-12"
	if err := store.InsertInterest(context.Background(), interest); err != nil {
		t.Fatalf("insert interest: %v", err)
	}

	ids, err := store.ListListingIDsByOwner(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("list owner ids: %v", err)
	}
	received, err := store.ListInterestsByListingIDs(context.Background(), ids)
	if err != nil {
		t.Fatalf("list received: %v", err)
	}
	if len(received) != 1 {
		t.Fatalf("received = %d, want 1", len(received))
	}
	entry := received[0]
	if entry.Listing.Title != "Drill" {
		t.Fatalf("listing title = %q, want Drill", entry.Listing.Title)
	}
	if entry.Interest.ContactName != "Alice" || entry.Interest.ContactEmail != "a@x.io" {
		t.Fatalf("contact = %q <%s>", entry.Interest.ContactName, entry.Interest.ContactEmail)
	}
	if entry.Interest.BorrowStartDate != "2026-03-10" || entry.Interest.BorrowEndDate != "2026-03-12" {
		t.Fatalf("dates = %s..%s", entry.Interest.BorrowStartDate, entry.Interest.BorrowEndDate)
	}

	mine, err := store.ListInterestsByBorrower(context.Background(), "alice")
	if err != nil {
		t.Fatalf("list mine: %v", err)
	}
	if len(mine) != 1 || mine[0].Listing.ID != "lst-drill" {
		t.Fatalf("mine = %+v", mine)
	}
	if other, err := store.ListInterestsByBorrower(context.Background(), "owner-1"); err != nil || len(other) != 0 {
		t.Fatalf("owner mine = %v, %v", other, err)
	}
}

func listingRecord(id, ownerID, title string, offset time.Duration) storage.ListingRecord {
	createdAt := baseTime.Add(offset)
	return storage.ListingRecord{
		ID:         id,
		OwnerID:    ownerID,
		Title:      title,
		PriceCents: 2500,
		Mode:       "sale",
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}

func interestRecord(id, listingID, borrowerID string) storage.InterestRecord {
	return storage.InterestRecord{
		ID:           id,
		ListingID:    listingID,
		BorrowerID:   borrowerID,
		ContactName:  "Contact " + borrowerID,
		ContactEmail: borrowerID + "@example.com",
		CreatedAt:    baseTime,
	}
}

func mustCreateListing(t *testing.T, store *Store, listing storage.ListingRecord) {
	t.Helper()

	if err := store.CreateListing(context.Background(), listing); err != nil {
		t.Fatalf("create listing %s: %v", listing.ID, err)
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "marketplace.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}
