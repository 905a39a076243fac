package domain

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/Kingl1tz/shoppal/internal/platform/errors"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/blob"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/identity"
)

func assertCode(t *testing.T, err error, want apperrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("error = nil, want %s", want)
	}
	if got := apperrors.CodeOf(err); got != want {
		t.Fatalf("code = %s, want %s (err: %v)", got, want, err)
	}
}

func TestCreateListing(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	svc := NewListingService(store, nil, testOptions())
	listing, err := svc.Create(context.Background(), alice, ListingInput{
		Title:       "  Drill ",
		Description: "Cordless",
		Price:       "25.00",
		Tags:        []string{"tools, power", "tools"},
		ImageURL:    "https://cdn.example.com/drill.png",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if listing.ID != "id-001" || listing.OwnerID != "alice" || listing.Title != "Drill" {
		t.Fatalf("listing = %+v", listing)
	}
	if listing.Mode != ModeSale || listing.PriceCents != 2500 || listing.Price() != "25.00" {
		t.Fatalf("mode/price = %q/%d", listing.Mode, listing.PriceCents)
	}
	if listing.IsBorrowed {
		t.Fatal("new listings are not borrowed")
	}
	if len(listing.Tags) != 2 || listing.Tags[0] != "tools" || listing.Tags[1] != "power" {
		t.Fatalf("tags = %v", listing.Tags)
	}
	if !listing.CreatedAt.After(testNow) || !listing.CreatedAt.Equal(listing.UpdatedAt) {
		t.Fatalf("timestamps = %v / %v", listing.CreatedAt, listing.UpdatedAt)
	}
	if _, err := store.GetListing(context.Background(), listing.ID); err != nil {
		t.Fatalf("stored listing: %v", err)
	}
}

func TestCreateListingValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		viewer identity.Identity
		in     ListingInput
		want   apperrors.Code
	}{
		{name: "anonymous", in: ListingInput{Title: "x", Price: "1"}, want: apperrors.CodeUnauthenticated},
		{name: "title", viewer: alice, in: ListingInput{Title: " ", Price: "1"}, want: apperrors.CodeListingTitleEmpty},
		{name: "price zero", viewer: alice, in: ListingInput{Title: "x", Price: "0"}, want: apperrors.CodeListingPriceInvalid},
		{name: "price text", viewer: alice, in: ListingInput{Title: "x", Price: "cheap"}, want: apperrors.CodeListingPriceInvalid},
		{name: "mode", viewer: alice, in: ListingInput{Title: "x", Price: "1", Mode: "rent"}, want: apperrors.CodeListingModeInvalid},
		{name: "image url", viewer: alice, in: ListingInput{Title: "x", Price: "1", ImageURL: "ftp://x"}, want: apperrors.CodeListingImageURLInvalid},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemStore()
			svc := NewListingService(store, nil, testOptions())
			_, err := svc.Create(context.Background(), tc.viewer, tc.in)
			assertCode(t, err, tc.want)
			if store.TotalCalls() != 0 {
				t.Fatalf("store calls = %d, want 0", store.TotalCalls())
			}
		})
	}
}

func TestAuthenticationKind(t *testing.T) {
	t.Parallel()

	svc := NewListingService(newMemStore(), nil, testOptions())
	_, err := svc.Create(context.Background(), identity.Identity{}, ListingInput{Title: "x", Price: "1"})
	if !apperrors.IsKind(err, apperrors.KindAuthentication) {
		t.Fatalf("kind = %s, want %s", apperrors.KindOf(err), apperrors.KindAuthentication)
	}
}

func TestUpdateListingAppliesOnlyPatchedFields(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	svc := NewListingService(store, nil, testOptions())
	created, err := svc.Create(context.Background(), alice, ListingInput{Title: "Drill", Description: "Cordless", Price: "25", Tags: []string{"tools"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	title := "Hammer drill"
	borrowed := true
	updated, err := svc.Update(context.Background(), alice, created.ID, ListingPatch{Title: &title, IsBorrowed: &borrowed})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Hammer drill" || !updated.IsBorrowed {
		t.Fatalf("updated = %+v", updated)
	}
	if updated.Description != "Cordless" || updated.PriceCents != 2500 || len(updated.Tags) != 1 {
		t.Fatalf("unpatched fields changed: %+v", updated)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Fatalf("updated_at = %v, want after %v", updated.UpdatedAt, created.UpdatedAt)
	}

	borrowed = false
	toggled, err := svc.Update(context.Background(), alice, created.ID, ListingPatch{IsBorrowed: &borrowed})
	if err != nil || toggled.IsBorrowed {
		t.Fatalf("toggle back = %+v, %v", toggled, err)
	}

	badPrice := "-1"
	_, err = svc.Update(context.Background(), alice, created.ID, ListingPatch{Price: &badPrice})
	assertCode(t, err, apperrors.CodeListingPriceInvalid)
}

func TestUpdateAndDeleteRequireOwner(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	svc := NewListingService(store, nil, testOptions())
	created := mustCreate(t, svc, alice, "Drill", "sale")

	title := "Mine now"
	_, err := svc.Update(context.Background(), bob, created.ID, ListingPatch{Title: &title})
	assertCode(t, err, apperrors.CodeListingNotOwner)
	if !apperrors.IsKind(err, apperrors.KindAuthorization) {
		t.Fatalf("kind = %s, want AUTHORIZATION", apperrors.KindOf(err))
	}
	assertCode(t, svc.Delete(context.Background(), bob, created.ID), apperrors.CodeListingNotOwner)
	assertCode(t, svc.Delete(context.Background(), identity.Identity{}, created.ID), apperrors.CodeUnauthenticated)
	if store.Calls("UpdateListing") != 0 || store.Calls("DeleteListing") != 0 {
		t.Fatal("store mutated by non-owner")
	}
	assertCode(t, svc.Delete(context.Background(), alice, "missing"), apperrors.CodeListingNotFound)
}

func TestGetListing(t *testing.T) {
	t.Parallel()

	svc := NewListingService(newMemStore(), nil, testOptions())
	created := mustCreate(t, svc, alice, "Drill", "loan")
	got, err := svc.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != created.ID || got.Mode != ModeLoan {
		t.Fatalf("got = %+v", got)
	}
	_, err = svc.Get(context.Background(), "nope")
	assertCode(t, err, apperrors.CodeListingNotFound)
	_, err = svc.Get(context.Background(), " ")
	assertCode(t, err, apperrors.CodeListingIDRequired)
}

func TestStoreFailuresSurfaceAsStoreErrors(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.failWith = errors.New("disk on fire")
	svc := NewListingService(store, nil, testOptions())
	_, err := svc.Get(context.Background(), "x")
	assertCode(t, err, apperrors.CodeStoreFailure)
	if !errors.Is(err, store.failWith) {
		t.Fatalf("cause lost: %v", err)
	}
}

func TestListListingsWithSQLite(t *testing.T) {
	t.Parallel()

	store := openSQLiteStore(t)
	svc := NewListingService(store, nil, testOptions())
	for _, title := range []string{"Drill", "Ladder", "Tent", "Kayak", "Drill bits"} {
		mustCreate(t, svc, alice, title, "sale")
	}
	mustCreate(t, svc, bob, "Bike", "loan")

	page, err := svc.List(context.Background(), ListQuery{Text: "DRILL"})
	if err != nil {
		t.Fatalf("list text: %v", err)
	}
	if len(page.Listings) != 2 || page.Listings[0].Title != "Drill bits" {
		t.Fatalf("text search = %+v", page.Listings)
	}

	page, err = svc.List(context.Background(), ListQuery{Filter: `mode = "loan"`})
	if err != nil {
		t.Fatalf("list filter: %v", err)
	}
	if len(page.Listings) != 1 || page.Listings[0].OwnerID != "bob" {
		t.Fatalf("filter = %+v", page.Listings)
	}

	_, err = svc.List(context.Background(), ListQuery{Filter: "color = 3"})
	assertCode(t, err, apperrors.CodeListingFilterInvalid)
	_, err = svc.List(context.Background(), ListQuery{PageToken: "%%%"})
	assertCode(t, err, apperrors.CodeListingPageTokenInvalid)

	var titles []string
	for listing, err := range svc.All(context.Background(), ListQuery{PageSize: 2}) {
		if err != nil {
			t.Fatalf("all: %v", err)
		}
		titles = append(titles, listing.Title)
	}
	if len(titles) != 6 || titles[0] != "Bike" || titles[5] != "Drill" {
		t.Fatalf("all titles = %v", titles)
	}

	seq := svc.All(context.Background(), ListQuery{PageSize: 4})
	for range 2 {
		count := 0
		for _, err := range seq {
			if err != nil {
				t.Fatalf("range: %v", err)
			}
			count++
		}
		if count != 6 {
			t.Fatalf("restarted range count = %d, want 6", count)
		}
	}
}

func TestAllStopsOnError(t *testing.T) {
	t.Parallel()

	svc := NewListingService(newMemStore(), nil, testOptions())
	var errs int
	for _, err := range svc.All(context.Background(), ListQuery{Filter: "(("}) {
		if err == nil {
			t.Fatal("expected error")
		}
		errs++
	}
	if errs != 1 {
		t.Fatalf("errors yielded = %d, want 1", errs)
	}
}

func TestListOwned(t *testing.T) {
	t.Parallel()

	svc := NewListingService(newMemStore(), nil, testOptions())
	mustCreate(t, svc, alice, "Drill", "sale")
	mustCreate(t, svc, bob, "Bike", "sale")
	mustCreate(t, svc, alice, "Ladder", "loan")

	owned, err := svc.ListOwned(context.Background(), alice)
	if err != nil {
		t.Fatalf("list owned: %v", err)
	}
	if len(owned) != 2 || owned[0].Title != "Ladder" || owned[1].Title != "Drill" {
		t.Fatalf("owned = %+v", owned)
	}
	_, err = svc.ListOwned(context.Background(), identity.Identity{})
	assertCode(t, err, apperrors.CodeUnauthenticated)
}

func TestUploadImage(t *testing.T) {
	t.Parallel()

	blobs, err := blob.NewFSStore(filepath.Join(t.TempDir(), "blobs"), "http://localhost:8080")
	if err != nil {
		t.Fatalf("new fs store: %v", err)
	}
	svc := NewListingService(newMemStore(), blobs, testOptions())

	png := "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"
	url, err := svc.UploadImage(context.Background(), alice, "drill.png", "image/png", strings.NewReader(png))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.HasPrefix(url, "http://localhost:8080/blobs/alice/") || !strings.HasSuffix(url, ".png") {
		t.Fatalf("url = %q", url)
	}

	_, err = svc.UploadImage(context.Background(), alice, "notes.txt", "text/plain", strings.NewReader("hi"))
	assertCode(t, err, apperrors.CodeUploadUnsupportedType)

	disguised := strings.NewReader("<html><script>alert(1)</script></html>")
	_, err = svc.UploadImage(context.Background(), alice, "x.png", "image/png", disguised)
	assertCode(t, err, apperrors.CodeUploadUnsupportedType)

	_, err = svc.UploadImage(context.Background(), alice, "drill.jpg", "image/jpeg", strings.NewReader(png))
	assertCode(t, err, apperrors.CodeUploadUnsupportedType)

	jpeg := make([]byte, blob.MaxImageBytes+1)
	copy(jpeg, "\xff\xd8\xff\xe0")
	big := bytes.NewReader(jpeg)
	_, err = svc.UploadImage(context.Background(), alice, "big.jpg", "image/jpeg", big)
	assertCode(t, err, apperrors.CodeUploadTooLarge)
	if !apperrors.IsKind(err, apperrors.KindUpload) {
		t.Fatalf("kind = %s, want UPLOAD", apperrors.KindOf(err))
	}

	_, err = svc.UploadImage(context.Background(), identity.Identity{}, "a.png", "image/png", strings.NewReader("x"))
	assertCode(t, err, apperrors.CodeUnauthenticated)

	disabled := NewListingService(newMemStore(), nil, testOptions())
	_, err = disabled.UploadImage(context.Background(), alice, "a.png", "image/png", strings.NewReader("x"))
	assertCode(t, err, apperrors.CodeUploadFailed)
}
