package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "github.com/Kingl1tz/shoppal/internal/platform/errors"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/events"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/identity"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/storage"
)

// SubmitInput is one interest submission. Borrow dates use the yyyy-MM-dd
// form and are either both set or both empty.
type SubmitInput struct {
	ListingID       string
	Contact         Contact
	Message         string
	BorrowStartDate string
	BorrowEndDate   string
}

// InterestService records interests in listings.
type InterestService struct {
	listings  storage.ListingStore
	ledger    storage.InterestStore
	publisher events.Publisher
	opts      Options
}

// NewInterestService returns a submission service. A nil publisher drops
// events.
func NewInterestService(listings storage.ListingStore, ledger storage.InterestStore, publisher events.Publisher, opts Options) *InterestService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &InterestService{listings: listings, ledger: ledger, publisher: publisher, opts: opts.withDefaults()}
}

// Submit validates in and stores it as viewer's interest. Validation fails
// before any store call. Duplicates and vanished listings come back from
// the ledger insert itself.
func (s *InterestService) Submit(ctx context.Context, viewer identity.Identity, in SubmitInput) (_ Interest, err error) {
	ctx, span := startSpan(ctx, "InterestService.Submit")
	defer func() { endSpan(span, err) }()

	if err := requireIdentity(viewer); err != nil {
		return Interest{}, err
	}
	if s == nil || s.listings == nil || s.ledger == nil {
		return Interest{}, apperrors.New(apperrors.CodeStoreFailure, "interest ledger is not configured")
	}
	interest, err := s.validate(viewer, in)
	if err != nil {
		return Interest{}, err
	}

	record, err := s.listings.GetListing(ctx, interest.ListingID)
	if err != nil {
		return Interest{}, listingLookupError("get listing", err)
	}
	listing := listingFromRecord(record)
	if listing.Mode.RequiresDateRange() && !interest.HasDateRange() {
		return Interest{}, apperrors.New(apperrors.CodeInterestDateRangeRequired, "loan listings need a borrow window")
	}
	if listing.OwnerID == viewer.ID {
		return Interest{}, apperrors.New(apperrors.CodeInterestOwnListing, "owners cannot show interest in their own listing")
	}

	interestID, err := s.opts.NewID()
	if err != nil {
		return Interest{}, apperrors.Wrap(apperrors.CodeUnknown, "generate interest id", err)
	}
	interest.ID = interestID
	interest.CreatedAt = s.opts.now()
	if err := s.ledger.InsertInterest(ctx, interestRecord(interest)); err != nil {
		switch {
		case errors.Is(err, storage.ErrAlreadyExists):
			return Interest{}, apperrors.Wrap(apperrors.CodeInterestDuplicate, "interest already registered", err)
		case errors.Is(err, storage.ErrNotFound):
			return Interest{}, apperrors.Wrap(apperrors.CodeListingNotFound, "listing not found", err)
		default:
			return Interest{}, storeError("insert interest", err)
		}
	}
	s.opts.Logger.InfoContext(ctx, "interest submitted",
		"interest_id", interest.ID,
		"listing_id", interest.ListingID,
		"borrower_id", interest.BorrowerID,
	)
	s.publishCreated(ctx, listing, interest)
	return interest, nil
}

func (s *InterestService) validate(viewer identity.Identity, in SubmitInput) (Interest, error) {
	interest := Interest{
		ListingID:  strings.TrimSpace(in.ListingID),
		BorrowerID: viewer.ID,
		Contact: Contact{
			Name:  strings.TrimSpace(in.Contact.Name),
			Email: strings.TrimSpace(in.Contact.Email),
			Phone: strings.TrimSpace(in.Contact.Phone),
		},
		Message: strings.TrimSpace(in.Message),
	}
	if interest.ListingID == "" {
		return Interest{}, apperrors.New(apperrors.CodeListingIDRequired, "listing id is required")
	}
	if interest.Contact.Name == "" {
		return Interest{}, apperrors.New(apperrors.CodeInterestNameEmpty, "contact name is required")
	}
	if interest.Contact.Email == "" {
		return Interest{}, apperrors.New(apperrors.CodeInterestEmailEmpty, "contact email is required")
	}
	if !validEmail(interest.Contact.Email) {
		return Interest{}, apperrors.New(apperrors.CodeInterestEmailInvalid, "contact email is invalid")
	}

	start, end, err := s.dateRange(in.BorrowStartDate, in.BorrowEndDate)
	if err != nil {
		return Interest{}, err
	}
	interest.BorrowStartDate = start
	interest.BorrowEndDate = end
	return interest, nil
}

// dateRange checks the optional borrow window against today in the
// configured location and returns it in canonical form.
func (s *InterestService) dateRange(startValue, endValue string) (string, string, error) {
	startValue = strings.TrimSpace(startValue)
	endValue = strings.TrimSpace(endValue)
	if startValue == "" && endValue == "" {
		return "", "", nil
	}
	if startValue == "" || endValue == "" {
		return "", "", apperrors.New(apperrors.CodeInterestDateRangeIncomplete, "both borrow dates are required")
	}
	start, err := parseDate(startValue)
	if err != nil {
		return "", "", err
	}
	end, err := parseDate(endValue)
	if err != nil {
		return "", "", err
	}
	if start.Before(s.today()) {
		return "", "", apperrors.WithMetadata(apperrors.CodeInterestStartInPast, "borrow start is in the past", map[string]string{"Start": startValue})
	}
	if end.Before(start) {
		return "", "", apperrors.New(apperrors.CodeInterestEndBeforeStart, "borrow end is before start")
	}
	return start.Format(storage.DateLayout), end.Format(storage.DateLayout), nil
}

func (s *InterestService) today() time.Time {
	local := s.opts.Clock().In(s.opts.Location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

func parseDate(value string) (time.Time, error) {
	parsed, err := time.Parse(storage.DateLayout, value)
	if err != nil {
		return time.Time{}, apperrors.Wrap(apperrors.CodeInterestDateInvalid, "invalid borrow date", err)
	}
	return parsed, nil
}

func validEmail(value string) bool {
	if strings.ContainsAny(value, " \t\r\n") {
		return false
	}
	local, domain, ok := strings.Cut(value, "@")
	if !ok || local == "" || domain == "" {
		return false
	}
	return !strings.Contains(domain, "@")
}

func (s *InterestService) publishCreated(ctx context.Context, listing Listing, interest Interest) {
	eventID, err := s.opts.NewID()
	if err != nil {
		s.opts.Logger.WarnContext(ctx, "interest event id failed", "interest_id", interest.ID, "error", err)
		return
	}
	event, err := events.NewInterestCreated(eventID, interest.CreatedAt, events.InterestCreated{
		InterestID:      interest.ID,
		ListingID:       interest.ListingID,
		OwnerID:         listing.OwnerID,
		BorrowerID:      interest.BorrowerID,
		BorrowStartDate: interest.BorrowStartDate,
		BorrowEndDate:   interest.BorrowEndDate,
	})
	if err == nil {
		err = s.publisher.Publish(ctx, event)
	}
	if err != nil {
		s.opts.Logger.WarnContext(ctx, "interest event publish failed", "interest_id", interest.ID, "error", err)
	}
}

func interestRecord(interest Interest) storage.InterestRecord {
	return storage.InterestRecord{
		ID:              interest.ID,
		ListingID:       interest.ListingID,
		BorrowerID:      interest.BorrowerID,
		ContactName:     interest.Contact.Name,
		ContactEmail:    interest.Contact.Email,
		ContactPhone:    interest.Contact.Phone,
		Message:         interest.Message,
		BorrowStartDate: interest.BorrowStartDate,
		BorrowEndDate:   interest.BorrowEndDate,
		CreatedAt:       interest.CreatedAt,
	}
}
