package mcpapi

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Kingl1tz/shoppal/internal/services/marketplace/domain"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/identity"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/storage/sqlite"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testNow = time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)

type fixture struct {
	listings *domain.ListingService
	session  *identity.Session
	issuer   *identity.Issuer
	verifier *identity.Verifier
	client   *mcp.ClientSession
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "marketplace.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	now := func() time.Time { return testNow }
	tokenCfg := identity.TokenConfig{
		Issuer:   "shoppal",
		Audience: "shoppal-marketplace",
		Key:      []byte("0123456789abcdef0123456789abcdef"),
		Now:      now,
	}
	verifier, err := identity.NewVerifier(tokenCfg, identity.NewMemoryRevocations(now))
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	issuer, err := identity.NewIssuer(tokenCfg)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}

	opts := domain.Options{Clock: now}
	f := &fixture{
		listings: domain.NewListingService(store, nil, opts),
		session:  identity.NewSession(verifier),
		issuer:   issuer,
		verifier: verifier,
	}
	server, err := NewServer(Config{
		Listings:  f.listings,
		Interests: domain.NewInterestService(store, store, nil, opts),
		Dashboard: domain.NewDashboardService(store, store, opts),
		Session:   f.session,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	ctx := context.Background()
	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("connect server: %v", err)
	}
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	f.client, err = client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("connect client: %v", err)
	}
	t.Cleanup(func() { _ = f.client.Close() })
	return f
}

func (f *fixture) signIn(t *testing.T, userID string) string {
	t.Helper()
	who := identity.Identity{ID: userID, Email: userID + "@example.com", DisplayName: userID}
	token, err := f.issuer.Issue(who, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := f.session.SignIn(context.Background(), token); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	return token
}

func (f *fixture) call(t *testing.T, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	if args == nil {
		args = map[string]any{}
	}
	result, err := f.client.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	return result
}

func decodeStructuredContent[T any](t *testing.T, value any) T {
	t.Helper()
	var output T
	data, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal structured content: %v", err)
	}
	if err := json.Unmarshal(data, &output); err != nil {
		t.Fatalf("unmarshal structured content: %v", err)
	}
	return output
}

func resultText(result *mcp.CallToolResult) string {
	var parts []string
	for _, content := range result.Content {
		if text, ok := content.(*mcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func TestNewServerRequiresServices(t *testing.T) {
	if _, err := NewServer(Config{}); err == nil {
		t.Fatal("expected error without services")
	}
}

func TestListTools(t *testing.T) {
	f := newFixture(t)
	result, err := f.client.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	got := map[string]bool{}
	for _, tool := range result.Tools {
		got[tool.Name] = true
	}
	for _, name := range []string{
		"listing_search", "listing_get", "interest_submit",
		"dashboard_received", "dashboard_mine", "session_current", "session_sign_out",
	} {
		if !got[name] {
			t.Errorf("tool %q not registered", name)
		}
	}
}

func TestSessionCurrent(t *testing.T) {
	f := newFixture(t)

	out := decodeStructuredContent[SessionResult](t, f.call(t, "session_current", nil).StructuredContent)
	if out.SignedIn {
		t.Fatalf("expected signed out session, got %+v", out)
	}

	f.signIn(t, "user-alice")
	out = decodeStructuredContent[SessionResult](t, f.call(t, "session_current", nil).StructuredContent)
	if !out.SignedIn || out.UserID != "user-alice" {
		t.Fatalf("session = %+v, want user-alice", out)
	}

	if result := f.call(t, "session_sign_out", nil); result.IsError {
		t.Fatalf("sign out failed: %s", resultText(result))
	}
	if _, ok := f.session.Current(); ok {
		t.Fatal("session still holds an identity after sign out")
	}
}

func TestSearchAndGetListing(t *testing.T) {
	f := newFixture(t)
	alice := identity.Identity{ID: "user-alice", Email: "alice@example.com"}
	ctx := context.Background()
	drill, err := f.listings.Create(ctx, alice, domain.ListingInput{Title: "Cordless drill", Price: "25", Mode: "loan"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.listings.Create(ctx, alice, domain.ListingInput{Title: "Lamp", Price: "10"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	search := decodeStructuredContent[ListingSearchResult](t, f.call(t, "listing_search", map[string]any{"query": "DRILL"}).StructuredContent)
	if len(search.Listings) != 1 || search.Listings[0].ID != drill.ID {
		t.Fatalf("search = %+v, want the drill", search)
	}
	if search.Listings[0].Price != "25.00" || search.Listings[0].Mode != "loan" {
		t.Fatalf("listing = %+v", search.Listings[0])
	}

	got := decodeStructuredContent[ListingResult](t, f.call(t, "listing_get", map[string]any{"listing_id": drill.ID}).StructuredContent)
	if got.Title != "Cordless drill" {
		t.Fatalf("title = %q", got.Title)
	}

	missing := f.call(t, "listing_get", map[string]any{"listing_id": "nope"})
	if !missing.IsError || !strings.Contains(resultText(missing), "LISTING_NOT_FOUND") {
		t.Fatalf("expected LISTING_NOT_FOUND error, got %s", resultText(missing))
	}

	bad := f.call(t, "listing_search", map[string]any{"filter": "color = \"red\""})
	if !bad.IsError || !strings.Contains(resultText(bad), "LISTING_FILTER_INVALID") {
		t.Fatalf("expected LISTING_FILTER_INVALID error, got %s", resultText(bad))
	}
}

func TestInterestSubmitAndDashboards(t *testing.T) {
	f := newFixture(t)
	alice := identity.Identity{ID: "user-alice", Email: "alice@example.com"}
	drill, err := f.listings.Create(context.Background(), alice, domain.ListingInput{Title: "Cordless drill", Price: "25", Mode: "loan"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	unauthenticated := f.call(t, "interest_submit", map[string]any{"listing_id": drill.ID, "name": "Bob", "email": "bob@example.com"})
	if !unauthenticated.IsError || !strings.Contains(resultText(unauthenticated), "UNAUTHENTICATED") {
		t.Fatalf("expected UNAUTHENTICATED, got %s", resultText(unauthenticated))
	}

	f.signIn(t, "user-bob")
	args := map[string]any{
		"listing_id":        drill.ID,
		"name":              "Bob",
		"email":             "bob@example.com",
		"borrow_start_date": "2026-03-10",
		"borrow_end_date":   "2026-03-12",
	}
	result := f.call(t, "interest_submit", args)
	if result.IsError {
		t.Fatalf("submit failed: %s", resultText(result))
	}
	interest := decodeStructuredContent[InterestResult](t, result.StructuredContent)
	if interest.BorrowerID != "user-bob" || interest.BorrowStartDate != "2026-03-10" {
		t.Fatalf("interest = %+v", interest)
	}

	dup := f.call(t, "interest_submit", args)
	if !dup.IsError {
		t.Fatal("expected duplicate error")
	}
	if text := resultText(dup); !strings.Contains(text, "INTEREST_DUPLICATE") || !strings.Contains(text, "already shown interest") {
		t.Fatalf("duplicate text = %q", text)
	}

	mine := decodeStructuredContent[DashboardResult](t, f.call(t, "dashboard_mine", nil).StructuredContent)
	if len(mine.Interests) != 1 || mine.Interests[0].ListingTitle != "Cordless drill" {
		t.Fatalf("mine = %+v", mine)
	}
	received := decodeStructuredContent[DashboardResult](t, f.call(t, "dashboard_received", nil).StructuredContent)
	if len(received.Interests) != 0 {
		t.Fatalf("bob received = %+v, want none", received)
	}

	f.signIn(t, "user-alice")
	received = decodeStructuredContent[DashboardResult](t, f.call(t, "dashboard_received", nil).StructuredContent)
	if len(received.Interests) != 1 || received.Interests[0].Interest.ContactName != "Bob" {
		t.Fatalf("alice received = %+v", received)
	}
}

func TestToolsStopActingAfterTokenRevocation(t *testing.T) {
	f := newFixture(t)
	token := f.signIn(t, "user-bob")
	if result := f.call(t, "dashboard_mine", nil); result.IsError {
		t.Fatalf("dashboard_mine failed: %s", resultText(result))
	}

	claims, err := f.verifier.VerifyClaims(context.Background(), token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := f.verifier.Revoke(context.Background(), claims); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	result := f.call(t, "dashboard_mine", nil)
	if !result.IsError || !strings.Contains(resultText(result), "UNAUTHENTICATED") {
		t.Fatalf("expected UNAUTHENTICATED after revocation, got %s", resultText(result))
	}
	out := decodeStructuredContent[SessionResult](t, f.call(t, "session_current", nil).StructuredContent)
	if out.SignedIn {
		t.Fatalf("session = %+v, want signed out", out)
	}
}
