package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Kingl1tz/shoppal/internal/services/marketplace/domain"
)

// tagList accepts either a JSON array of tags or one comma separated string.
type tagList []string

func (t *tagList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var joined string
		if err := json.Unmarshal(data, &joined); err != nil {
			return err
		}
		*t = tagList{joined}
		return nil
	}
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return fmt.Errorf("tags must be a string or an array of strings")
	}
	*t = tags
	return nil
}

// priceValue accepts "25.00" or 25.00 and keeps the literal text.
type priceValue string

func (p *priceValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*p = priceValue(text)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return fmt.Errorf("price must be a decimal string or number")
	}
	*p = priceValue(number.String())
	return nil
}

type createListingRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Price       priceValue `json:"price"`
	Mode        string     `json:"mode"`
	Tags        tagList    `json:"tags"`
	ImageURL    string     `json:"image_url"`
}

func (r createListingRequest) input() domain.ListingInput {
	return domain.ListingInput{
		Title:       r.Title,
		Description: r.Description,
		Price:       string(r.Price),
		Mode:        r.Mode,
		Tags:        r.Tags,
		ImageURL:    r.ImageURL,
	}
}

// clearableString tells an absent field apart from an explicit null, which
// clears the value.
type clearableString struct {
	set   bool
	value string
}

func (c *clearableString) UnmarshalJSON(data []byte) error {
	c.set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		c.value = ""
		return nil
	}
	return json.Unmarshal(data, &c.value)
}

func (c clearableString) pointer() *string {
	if !c.set {
		return nil
	}
	value := c.value
	return &value
}

type updateListingRequest struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Price       *priceValue     `json:"price"`
	Mode        *string         `json:"mode"`
	Tags        *tagList        `json:"tags"`
	ImageURL    clearableString `json:"image_url"`
	IsBorrowed  *bool           `json:"is_borrowed"`
}

func (r updateListingRequest) patch() domain.ListingPatch {
	patch := domain.ListingPatch{
		Title:       r.Title,
		Description: r.Description,
		Mode:        r.Mode,
		ImageURL:    r.ImageURL.pointer(),
		IsBorrowed:  r.IsBorrowed,
	}
	if r.Price != nil {
		price := string(*r.Price)
		patch.Price = &price
	}
	if r.Tags != nil {
		tags := []string(*r.Tags)
		patch.Tags = &tags
	}
	return patch
}

type submitInterestRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Message         string `json:"message"`
	BorrowStartDate string `json:"borrow_start_date"`
	BorrowEndDate   string `json:"borrow_end_date"`
}

func (r submitInterestRequest) input(listingID string) domain.SubmitInput {
	return domain.SubmitInput{
		ListingID:       listingID,
		Contact:         domain.Contact{Name: r.Name, Email: r.Email, Phone: r.Phone},
		Message:         r.Message,
		BorrowStartDate: r.BorrowStartDate,
		BorrowEndDate:   r.BorrowEndDate,
	}
}

type listingResponse struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       string    `json:"price"`
	PriceCents  int64     `json:"price_cents"`
	Mode        string    `json:"mode"`
	ImageURL    *string   `json:"image_url"`
	Tags        []string  `json:"tags"`
	IsBorrowed  bool      `json:"is_borrowed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func toListingResponse(listing domain.Listing) listingResponse {
	tags := listing.Tags
	if tags == nil {
		tags = []string{}
	}
	return listingResponse{
		ID:          listing.ID,
		OwnerID:     listing.OwnerID,
		Title:       listing.Title,
		Description: listing.Description,
		Price:       listing.Price(),
		PriceCents:  listing.PriceCents,
		Mode:        string(listing.Mode),
		ImageURL:    nullable(listing.ImageURL),
		Tags:        tags,
		IsBorrowed:  listing.IsBorrowed,
		CreatedAt:   listing.CreatedAt,
		UpdatedAt:   listing.UpdatedAt,
	}
}

func toListingResponses(listings []domain.Listing) []listingResponse {
	out := make([]listingResponse, 0, len(listings))
	for _, listing := range listings {
		out = append(out, toListingResponse(listing))
	}
	return out
}

type listListingsResponse struct {
	Listings      []listingResponse `json:"listings"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

type interestResponse struct {
	ID              string    `json:"id"`
	ListingID       string    `json:"listing_id"`
	BorrowerID      string    `json:"borrower_id"`
	ContactName     string    `json:"contact_name"`
	ContactEmail    string    `json:"contact_email"`
	ContactPhone    *string   `json:"contact_phone"`
	Message         *string   `json:"message"`
	BorrowStartDate *string   `json:"borrow_start_date"`
	BorrowEndDate   *string   `json:"borrow_end_date"`
	CreatedAt       time.Time `json:"created_at"`
}

func toInterestResponse(interest domain.Interest) interestResponse {
	return interestResponse{
		ID:              interest.ID,
		ListingID:       interest.ListingID,
		BorrowerID:      interest.BorrowerID,
		ContactName:     interest.Contact.Name,
		ContactEmail:    interest.Contact.Email,
		ContactPhone:    nullable(interest.Contact.Phone),
		Message:         nullable(interest.Message),
		BorrowStartDate: nullable(interest.BorrowStartDate),
		BorrowEndDate:   nullable(interest.BorrowEndDate),
		CreatedAt:       interest.CreatedAt,
	}
}

type listingSummaryResponse struct {
	ID         string  `json:"id"`
	OwnerID    string  `json:"owner_id"`
	Title      string  `json:"title"`
	ImageURL   *string `json:"image_url"`
	Price      string  `json:"price"`
	Mode       string  `json:"mode"`
	IsBorrowed bool    `json:"is_borrowed"`
}

type interestEntryResponse struct {
	interestResponse
	Listing listingSummaryResponse `json:"listing"`
}

type interestEntriesResponse struct {
	Interests []interestEntryResponse `json:"interests"`
}

func toEntriesResponse(entries []domain.InterestEntry) interestEntriesResponse {
	out := make([]interestEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, interestEntryResponse{
			interestResponse: toInterestResponse(entry.Interest),
			Listing: listingSummaryResponse{
				ID:         entry.Listing.ID,
				OwnerID:    entry.Listing.OwnerID,
				Title:      entry.Listing.Title,
				ImageURL:   nullable(entry.Listing.ImageURL),
				Price:      domain.FormatPrice(entry.Listing.PriceCents),
				Mode:       string(entry.Listing.Mode),
				IsBorrowed: entry.Listing.IsBorrowed,
			},
		})
	}
	return interestEntriesResponse{Interests: out}
}

type identityResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

type sessionResponse struct {
	Identity  *identityResponse `json:"identity"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
}

type uploadResponse struct {
	URL string `json:"url"`
}
