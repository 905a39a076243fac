// Package mcpapi exposes the marketplace as MCP tools acting as the identity
// held by an identity.Session.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/Kingl1tz/shoppal/internal/platform/errors"
	i18n "github.com/Kingl1tz/shoppal/internal/platform/errors/i18n"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/domain"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/identity"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName    = "shoppal-marketplace"
	serverVersion = "0.1.0"
)

// Config wires the tools to the domain services.
type Config struct {
	Listings  *domain.ListingService
	Interests *domain.InterestService
	Dashboard *domain.DashboardService
	Session   *identity.Session
	Logger    *slog.Logger
}

type tools struct {
	listings  *domain.ListingService
	interests *domain.InterestService
	dashboard *domain.DashboardService
	session   *identity.Session
	logger    *slog.Logger
}

// NewServer returns an MCP server with every marketplace tool registered.
func NewServer(cfg Config) (*mcp.Server, error) {
	if cfg.Listings == nil || cfg.Interests == nil || cfg.Dashboard == nil {
		return nil, errors.New("listing, interest and dashboard services are required")
	}
	if cfg.Session == nil {
		return nil, errors.New("identity session is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	t := &tools{
		listings:  cfg.Listings,
		interests: cfg.Interests,
		dashboard: cfg.Dashboard,
		session:   cfg.Session,
		logger:    logger,
	}
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "listing_search",
		Description: "Searches listings newest first. Supports a free-text query, an AIP-160 filter over owner_id, mode, is_borrowed, price and create_time, and page tokens.",
	}, t.listingSearch)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "listing_get",
		Description: "Returns one listing by id.",
	}, t.listingGet)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "interest_submit",
		Description: "Registers the signed-in user's interest in a listing. Loan listings need a borrow date range.",
	}, t.interestSubmit)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "dashboard_received",
		Description: "Lists interests other users registered on the signed-in user's listings.",
	}, t.dashboardReceived)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "dashboard_mine",
		Description: "Lists the interests the signed-in user registered.",
	}, t.dashboardMine)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "session_current",
		Description: "Returns the identity the tools act as, if any.",
	}, t.sessionCurrent)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "session_sign_out",
		Description: "Signs the session out and revokes its token.",
	}, t.sessionSignOut)
	return server, nil
}

func (t *tools) viewer(ctx context.Context) identity.Identity {
	current, _ := t.session.CurrentContext(ctx)
	return current
}

// toolError renders err with its code and base-locale message.
func toolError(err error) error {
	code := apperrors.CodeOf(err)
	if code == apperrors.CodeUnknown {
		return err
	}
	var metadata map[string]string
	if appErr, ok := apperrors.As(err); ok {
		metadata = appErr.Metadata
	}
	return fmt.Errorf("%s: %s", code, i18n.Message(i18n.BaseLocale, string(code), metadata))
}

// EmptyInput is the input of tools that take no arguments.
type EmptyInput struct{}

// ListingResult is one listing.
type ListingResult struct {
	ID          string   `json:"id" jsonschema:"listing identifier"`
	OwnerID     string   `json:"owner_id" jsonschema:"owner user identifier"`
	Title       string   `json:"title" jsonschema:"listing title"`
	Description string   `json:"description" jsonschema:"listing description"`
	Price       string   `json:"price" jsonschema:"decimal price, for example 25.00"`
	Mode        string   `json:"mode" jsonschema:"sale or loan"`
	ImageURL    string   `json:"image_url,omitempty" jsonschema:"public image URL"`
	Tags        []string `json:"tags" jsonschema:"listing tags"`
	IsBorrowed  bool     `json:"is_borrowed" jsonschema:"whether the item is currently lent out"`
	CreatedAt   string   `json:"created_at" jsonschema:"RFC3339 creation timestamp"`
	UpdatedAt   string   `json:"updated_at" jsonschema:"RFC3339 update timestamp"`
}

func listingResult(listing domain.Listing) ListingResult {
	tags := listing.Tags
	if tags == nil {
		tags = []string{}
	}
	return ListingResult{
		ID:          listing.ID,
		OwnerID:     listing.OwnerID,
		Title:       listing.Title,
		Description: listing.Description,
		Price:       listing.Price(),
		Mode:        string(listing.Mode),
		ImageURL:    listing.ImageURL,
		Tags:        tags,
		IsBorrowed:  listing.IsBorrowed,
		CreatedAt:   listing.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   listing.UpdatedAt.Format(time.RFC3339),
	}
}

// ListingSearchInput is the listing_search input.
type ListingSearchInput struct {
	Query     string `json:"query,omitempty" jsonschema:"case-insensitive text matched against title or description"`
	Filter    string `json:"filter,omitempty" jsonschema:"AIP-160 filter, for example mode = \"loan\" AND price < 30"`
	PageSize  int    `json:"page_size,omitempty" jsonschema:"maximum listings to return"`
	PageToken string `json:"page_token,omitempty" jsonschema:"token from a previous page"`
}

// ListingSearchResult is the listing_search output.
type ListingSearchResult struct {
	Listings      []ListingResult `json:"listings" jsonschema:"matching listings"`
	NextPageToken string          `json:"next_page_token,omitempty" jsonschema:"token for the next page"`
}

func (t *tools) listingSearch(ctx context.Context, _ *mcp.CallToolRequest, input ListingSearchInput) (*mcp.CallToolResult, ListingSearchResult, error) {
	page, err := t.listings.List(ctx, domain.ListQuery{
		Text:      input.Query,
		Filter:    input.Filter,
		PageSize:  input.PageSize,
		PageToken: input.PageToken,
	})
	if err != nil {
		return nil, ListingSearchResult{}, toolError(err)
	}
	result := ListingSearchResult{Listings: make([]ListingResult, 0, len(page.Listings)), NextPageToken: page.NextPageToken}
	for _, listing := range page.Listings {
		result.Listings = append(result.Listings, listingResult(listing))
	}
	return nil, result, nil
}

// ListingGetInput is the listing_get input.
type ListingGetInput struct {
	ListingID string `json:"listing_id" jsonschema:"listing identifier"`
}

func (t *tools) listingGet(ctx context.Context, _ *mcp.CallToolRequest, input ListingGetInput) (*mcp.CallToolResult, ListingResult, error) {
	listing, err := t.listings.Get(ctx, input.ListingID)
	if err != nil {
		return nil, ListingResult{}, toolError(err)
	}
	return nil, listingResult(listing), nil
}

// InterestSubmitInput is the interest_submit input.
type InterestSubmitInput struct {
	ListingID       string `json:"listing_id" jsonschema:"listing identifier"`
	Name            string `json:"name" jsonschema:"contact name"`
	Email           string `json:"email" jsonschema:"contact email"`
	Phone           string `json:"phone,omitempty" jsonschema:"optional contact phone"`
	Message         string `json:"message,omitempty" jsonschema:"optional message to the owner"`
	BorrowStartDate string `json:"borrow_start_date,omitempty" jsonschema:"borrow start, YYYY-MM-DD"`
	BorrowEndDate   string `json:"borrow_end_date,omitempty" jsonschema:"borrow end, YYYY-MM-DD"`
}

// InterestResult is one interest.
type InterestResult struct {
	ID              string `json:"id" jsonschema:"interest identifier"`
	ListingID       string `json:"listing_id" jsonschema:"listing identifier"`
	BorrowerID      string `json:"borrower_id" jsonschema:"borrower user identifier"`
	ContactName     string `json:"contact_name" jsonschema:"contact name"`
	ContactEmail    string `json:"contact_email" jsonschema:"contact email"`
	ContactPhone    string `json:"contact_phone,omitempty" jsonschema:"contact phone"`
	Message         string `json:"message,omitempty" jsonschema:"message to the owner"`
	BorrowStartDate string `json:"borrow_start_date,omitempty" jsonschema:"borrow start date"`
	BorrowEndDate   string `json:"borrow_end_date,omitempty" jsonschema:"borrow end date"`
	CreatedAt       string `json:"created_at" jsonschema:"RFC3339 creation timestamp"`
}

func interestResult(interest domain.Interest) InterestResult {
	return InterestResult{
		ID:              interest.ID,
		ListingID:       interest.ListingID,
		BorrowerID:      interest.BorrowerID,
		ContactName:     interest.Contact.Name,
		ContactEmail:    interest.Contact.Email,
		ContactPhone:    interest.Contact.Phone,
		Message:         interest.Message,
		BorrowStartDate: interest.BorrowStartDate,
		BorrowEndDate:   interest.BorrowEndDate,
		CreatedAt:       interest.CreatedAt.Format(time.RFC3339),
	}
}

func (t *tools) interestSubmit(ctx context.Context, _ *mcp.CallToolRequest, input InterestSubmitInput) (*mcp.CallToolResult, InterestResult, error) {
	interest, err := t.interests.Submit(ctx, t.viewer(ctx), domain.SubmitInput{
		ListingID:       input.ListingID,
		Contact:         domain.Contact{Name: input.Name, Email: input.Email, Phone: input.Phone},
		Message:         input.Message,
		BorrowStartDate: input.BorrowStartDate,
		BorrowEndDate:   input.BorrowEndDate,
	})
	if err != nil {
		return nil, InterestResult{}, toolError(err)
	}
	return nil, interestResult(interest), nil
}

// DashboardEntry is one interest with the listing it references.
type DashboardEntry struct {
	Interest     InterestResult `json:"interest" jsonschema:"the interest"`
	ListingTitle string         `json:"listing_title" jsonschema:"listing title"`
	ListingImage string         `json:"listing_image_url,omitempty" jsonschema:"listing image URL"`
	ListingOwner string         `json:"listing_owner_id" jsonschema:"listing owner identifier"`
	ListingMode  string         `json:"listing_mode" jsonschema:"sale or loan"`
}

// DashboardResult lists dashboard entries newest first.
type DashboardResult struct {
	Interests []DashboardEntry `json:"interests" jsonschema:"dashboard entries"`
}

func dashboardResult(entries []domain.InterestEntry) DashboardResult {
	result := DashboardResult{Interests: make([]DashboardEntry, 0, len(entries))}
	for _, entry := range entries {
		result.Interests = append(result.Interests, DashboardEntry{
			Interest:     interestResult(entry.Interest),
			ListingTitle: entry.Listing.Title,
			ListingImage: entry.Listing.ImageURL,
			ListingOwner: entry.Listing.OwnerID,
			ListingMode:  string(entry.Listing.Mode),
		})
	}
	return result
}

func (t *tools) dashboardReceived(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, DashboardResult, error) {
	entries, err := t.dashboard.Received(ctx, t.viewer(ctx))
	if err != nil {
		return nil, DashboardResult{}, toolError(err)
	}
	return nil, dashboardResult(entries), nil
}

func (t *tools) dashboardMine(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, DashboardResult, error) {
	entries, err := t.dashboard.Mine(ctx, t.viewer(ctx))
	if err != nil {
		return nil, DashboardResult{}, toolError(err)
	}
	return nil, dashboardResult(entries), nil
}

// SessionResult describes the session identity.
type SessionResult struct {
	SignedIn    bool   `json:"signed_in" jsonschema:"whether an identity is held"`
	UserID      string `json:"user_id,omitempty" jsonschema:"user identifier"`
	Email       string `json:"email,omitempty" jsonschema:"user email"`
	DisplayName string `json:"display_name,omitempty" jsonschema:"user display name"`
}

func sessionResult(current identity.Identity, signedIn bool) SessionResult {
	if !signedIn {
		return SessionResult{}
	}
	return SessionResult{SignedIn: true, UserID: current.ID, Email: current.Email, DisplayName: current.DisplayName}
}

func (t *tools) sessionCurrent(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, SessionResult, error) {
	current, ok := t.session.CurrentContext(ctx)
	return nil, sessionResult(current, ok), nil
}

func (t *tools) sessionSignOut(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, SessionResult, error) {
	previous, _ := t.session.Current()
	if err := t.session.SignOut(ctx); err != nil {
		return nil, SessionResult{}, toolError(err)
	}
	if !previous.IsZero() {
		t.logger.InfoContext(ctx, "mcp session signed out", "user_id", previous.ID)
	}
	return nil, SessionResult{}, nil
}
