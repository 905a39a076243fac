package domain

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"

	apperrors "github.com/Kingl1tz/shoppal/internal/platform/errors"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/blob"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/identity"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/storage"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/storage/filter"
)

const (
	// DefaultPageSize applies when a list query leaves the page size unset.
	DefaultPageSize = 20
	// MaxPageSize caps one page of listings.
	MaxPageSize = 100
)

// ListingInput holds the fields of a new listing.
type ListingInput struct {
	Title       string
	Description string
	Price       string
	Mode        string
	Tags        []string
	ImageURL    string
}

// ListingPatch holds the fields an owner changes; nil fields stay as stored.
type ListingPatch struct {
	Title       *string
	Description *string
	Price       *string
	Mode        *string
	Tags        *[]string
	ImageURL    *string
	IsBorrowed  *bool
}

// ListQuery selects a page of listings.
type ListQuery struct {
	Text      string
	Filter    string
	PageSize  int
	PageToken string
}

// ListPage is one page of listings, newest first.
type ListPage struct {
	Listings      []Listing
	NextPageToken string
}

// ListingService manages listings on behalf of their owners.
type ListingService struct {
	store storage.ListingStore
	blobs blob.Store
	opts  Options
}

// NewListingService returns a listing service over store. blobs may be nil
// when image uploads are disabled.
func NewListingService(store storage.ListingStore, blobs blob.Store, opts Options) *ListingService {
	return &ListingService{store: store, blobs: blobs, opts: opts.withDefaults()}
}

func (s *ListingService) ready() error {
	if s == nil || s.store == nil {
		return apperrors.New(apperrors.CodeStoreFailure, "listing store is not configured")
	}
	return nil
}

// Create publishes a new listing owned by viewer.
func (s *ListingService) Create(ctx context.Context, viewer identity.Identity, in ListingInput) (_ Listing, err error) {
	ctx, span := startSpan(ctx, "ListingService.Create")
	defer func() { endSpan(span, err) }()

	if err := requireIdentity(viewer); err != nil {
		return Listing{}, err
	}
	if err := s.ready(); err != nil {
		return Listing{}, err
	}
	listing := Listing{
		OwnerID:     viewer.ID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		ImageURL:    strings.TrimSpace(in.ImageURL),
		Tags:        NormalizeTags(in.Tags...),
	}
	if listing.Title == "" {
		return Listing{}, apperrors.New(apperrors.CodeListingTitleEmpty, "title is required")
	}
	price, err := ParsePrice(in.Price)
	if err != nil {
		return Listing{}, apperrors.Wrap(apperrors.CodeListingPriceInvalid, "invalid price", err)
	}
	listing.PriceCents = price
	mode, err := ParseMode(in.Mode)
	if err != nil {
		return Listing{}, apperrors.Wrap(apperrors.CodeListingModeInvalid, "invalid mode", err)
	}
	listing.Mode = mode
	if !validImageURL(listing.ImageURL) {
		return Listing{}, apperrors.New(apperrors.CodeListingImageURLInvalid, "image url must be an absolute http url")
	}

	listingID, err := s.opts.NewID()
	if err != nil {
		return Listing{}, apperrors.Wrap(apperrors.CodeUnknown, "generate listing id", err)
	}
	now := s.opts.now()
	listing.ID = listingID
	listing.CreatedAt = now
	listing.UpdatedAt = now
	if err := s.store.CreateListing(ctx, listing.record()); err != nil {
		return Listing{}, storeError("create listing", err)
	}
	s.opts.Logger.InfoContext(ctx, "listing created", "listing_id", listing.ID, "owner_id", listing.OwnerID, "mode", listing.Mode)
	return listing, nil
}

// Get returns one listing.
func (s *ListingService) Get(ctx context.Context, listingID string) (_ Listing, err error) {
	ctx, span := startSpan(ctx, "ListingService.Get")
	defer func() { endSpan(span, err) }()

	if err := s.ready(); err != nil {
		return Listing{}, err
	}
	listingID = strings.TrimSpace(listingID)
	if listingID == "" {
		return Listing{}, apperrors.New(apperrors.CodeListingIDRequired, "listing id is required")
	}
	record, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return Listing{}, listingLookupError("get listing", err)
	}
	return listingFromRecord(record), nil
}

// owned loads the listing and checks that viewer owns it.
func (s *ListingService) owned(ctx context.Context, viewer identity.Identity, listingID string) (Listing, error) {
	if err := requireIdentity(viewer); err != nil {
		return Listing{}, err
	}
	listing, err := s.Get(ctx, listingID)
	if err != nil {
		return Listing{}, err
	}
	if listing.OwnerID != viewer.ID {
		return Listing{}, apperrors.New(apperrors.CodeListingNotOwner, "only the owner can change this listing")
	}
	return listing, nil
}

// Update applies patch to a listing owned by viewer.
func (s *ListingService) Update(ctx context.Context, viewer identity.Identity, listingID string, patch ListingPatch) (_ Listing, err error) {
	ctx, span := startSpan(ctx, "ListingService.Update")
	defer func() { endSpan(span, err) }()

	listing, err := s.owned(ctx, viewer, listingID)
	if err != nil {
		return Listing{}, err
	}
	if patch.Title != nil {
		listing.Title = strings.TrimSpace(*patch.Title)
		if listing.Title == "" {
			return Listing{}, apperrors.New(apperrors.CodeListingTitleEmpty, "title is required")
		}
	}
	if patch.Description != nil {
		listing.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Price != nil {
		price, err := ParsePrice(*patch.Price)
		if err != nil {
			return Listing{}, apperrors.Wrap(apperrors.CodeListingPriceInvalid, "invalid price", err)
		}
		listing.PriceCents = price
	}
	if patch.Mode != nil {
		mode, err := ParseMode(*patch.Mode)
		if err != nil {
			return Listing{}, apperrors.Wrap(apperrors.CodeListingModeInvalid, "invalid mode", err)
		}
		listing.Mode = mode
	}
	if patch.Tags != nil {
		listing.Tags = NormalizeTags(*patch.Tags...)
	}
	if patch.ImageURL != nil {
		listing.ImageURL = strings.TrimSpace(*patch.ImageURL)
		if !validImageURL(listing.ImageURL) {
			return Listing{}, apperrors.New(apperrors.CodeListingImageURLInvalid, "image url must be an absolute http url")
		}
	}
	if patch.IsBorrowed != nil {
		listing.IsBorrowed = *patch.IsBorrowed
	}
	listing.UpdatedAt = s.opts.now()
	if err := s.store.UpdateListing(ctx, listing.record()); err != nil {
		return Listing{}, listingLookupError("update listing", err)
	}
	return listing, nil
}

// Delete removes a listing owned by viewer together with its interests.
func (s *ListingService) Delete(ctx context.Context, viewer identity.Identity, listingID string) (err error) {
	ctx, span := startSpan(ctx, "ListingService.Delete")
	defer func() { endSpan(span, err) }()

	listing, err := s.owned(ctx, viewer, listingID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteListing(ctx, listing.ID); err != nil {
		return listingLookupError("delete listing", err)
	}
	s.opts.Logger.InfoContext(ctx, "listing deleted", "listing_id", listing.ID, "owner_id", listing.OwnerID)
	return nil
}

// List returns one page of listings matching query.
func (s *ListingService) List(ctx context.Context, query ListQuery) (_ ListPage, err error) {
	ctx, span := startSpan(ctx, "ListingService.List")
	defer func() { endSpan(span, err) }()

	if err := s.ready(); err != nil {
		return ListPage{}, err
	}
	storeQuery, err := buildListingQuery(query)
	if err != nil {
		return ListPage{}, err
	}
	page, err := s.store.ListListings(ctx, storeQuery)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidPageToken) {
			return ListPage{}, apperrors.Wrap(apperrors.CodeListingPageTokenInvalid, "invalid page token", err)
		}
		return ListPage{}, storeError("list listings", err)
	}
	out := ListPage{Listings: make([]Listing, 0, len(page.Listings)), NextPageToken: page.NextPageToken}
	for _, record := range page.Listings {
		out.Listings = append(out.Listings, listingFromRecord(record))
	}
	return out, nil
}

func buildListingQuery(query ListQuery) (storage.ListingQuery, error) {
	pageSize := query.PageSize
	switch {
	case pageSize <= 0:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	token := strings.TrimSpace(query.PageToken)
	if token != "" {
		if _, _, err := storage.DecodePageToken(token); err != nil {
			return storage.ListingQuery{}, apperrors.Wrap(apperrors.CodeListingPageTokenInvalid, "invalid page token", err)
		}
	}
	condition, err := filter.ParseListingFilter(query.Filter)
	if err != nil {
		return storage.ListingQuery{}, apperrors.WithMetadata(apperrors.CodeListingFilterInvalid, err.Error(), map[string]string{"Filter": query.Filter})
	}
	return storage.ListingQuery{
		Text:      strings.TrimSpace(query.Text),
		Filter:    condition,
		PageSize:  pageSize,
		PageToken: token,
	}, nil
}

// All walks every page of query lazily. Each range starts again from the
// first page and stops at the first error.
func (s *ListingService) All(ctx context.Context, query ListQuery) iter.Seq2[Listing, error] {
	return func(yield func(Listing, error) bool) {
		next := query
		next.PageToken = ""
		for {
			page, err := s.List(ctx, next)
			if err != nil {
				yield(Listing{}, err)
				return
			}
			for _, listing := range page.Listings {
				if !yield(listing, nil) {
					return
				}
			}
			if page.NextPageToken == "" {
				return
			}
			next.PageToken = page.NextPageToken
		}
	}
}

// ListOwned returns the viewer's own listings, newest first.
func (s *ListingService) ListOwned(ctx context.Context, viewer identity.Identity) (_ []Listing, err error) {
	ctx, span := startSpan(ctx, "ListingService.ListOwned")
	defer func() { endSpan(span, err) }()

	if err := requireIdentity(viewer); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	records, err := s.store.ListListingsByOwner(ctx, viewer.ID)
	if err != nil {
		return nil, storeError("list owned listings", err)
	}
	listings := make([]Listing, 0, len(records))
	for _, record := range records {
		listings = append(listings, listingFromRecord(record))
	}
	return listings, nil
}

// UploadImage stores an image under the viewer's prefix and returns its URL.
func (s *ListingService) UploadImage(ctx context.Context, viewer identity.Identity, filename, contentType string, body io.Reader) (_ string, err error) {
	ctx, span := startSpan(ctx, "ListingService.UploadImage")
	defer func() { endSpan(span, err) }()

	if err := requireIdentity(viewer); err != nil {
		return "", err
	}
	if s == nil || s.blobs == nil {
		return "", apperrors.New(apperrors.CodeUploadFailed, "image uploads are not configured")
	}
	if body == nil {
		return "", apperrors.New(apperrors.CodeUploadFailed, "image body is required")
	}
	imageType, err := blob.ImageContentType(contentType, filename)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeUploadUnsupportedType, "unsupported image type", err)
	}
	body, err = blob.SniffImage(body, imageType)
	if err != nil {
		if errors.Is(err, blob.ErrUnsupportedType) {
			return "", apperrors.Wrap(apperrors.CodeUploadUnsupportedType, "image content does not match its type", err)
		}
		return "", apperrors.Wrap(apperrors.CodeUploadFailed, "read image", err)
	}
	objectPath, err := blob.ImagePath(viewer.ID, imageType)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeUploadFailed, "build image path", err)
	}
	imageURL, err := s.blobs.Put(ctx, objectPath, imageType, blob.LimitBody(body, blob.MaxImageBytes))
	if err != nil {
		if errors.Is(err, blob.ErrTooLarge) {
			return "", &apperrors.Error{
				Code:     apperrors.CodeUploadTooLarge,
				Message:  "image is too large",
				Metadata: map[string]string{"Limit": "5 MB"},
				Cause:    err,
			}
		}
		return "", apperrors.Wrap(apperrors.CodeUploadFailed, "store image", err)
	}
	s.opts.Logger.InfoContext(ctx, "image uploaded", "owner_id", viewer.ID, "path", objectPath, "content_type", imageType)
	return imageURL, nil
}
