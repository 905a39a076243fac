// Package httpapi serves the marketplace JSON API.
package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	i18n "github.com/Kingl1tz/shoppal/internal/platform/errors/i18n"
	"github.com/Kingl1tz/shoppal/internal/platform/httpx"
	"github.com/Kingl1tz/shoppal/internal/platform/requestctx"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/blob"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/domain"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/identity"
	"github.com/go-chi/cors"
)

// Config wires the handler to the domain services.
type Config struct {
	Listings  *domain.ListingService
	Interests *domain.InterestService
	Dashboard *domain.DashboardService
	// Blobs serves uploaded images; nil disables GET /blobs.
	Blobs    blob.Store
	Verifier *identity.Verifier
	Logger   *slog.Logger
	// AllowedOrigins enables browser CORS for the listed origins.
	AllowedOrigins []string
	// RequestTimeout bounds each request context.
	RequestTimeout time.Duration
}

// Handler hosts the marketplace HTTP routes.
type Handler struct {
	listings  *domain.ListingService
	interests *domain.InterestService
	dashboard *domain.DashboardService
	blobs     blob.Store
	verifier  *identity.Verifier
	logger    *slog.Logger
	origins   []string
	timeout   time.Duration
}

// New validates cfg and returns a handler.
func New(cfg Config) (*Handler, error) {
	if cfg.Listings == nil || cfg.Interests == nil || cfg.Dashboard == nil {
		return nil, errors.New("listing, interest and dashboard services are required")
	}
	if cfg.Verifier == nil {
		return nil, errors.New("identity verifier is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		listings:  cfg.Listings,
		interests: cfg.Interests,
		dashboard: cfg.Dashboard,
		blobs:     cfg.Blobs,
		verifier:  cfg.Verifier,
		logger:    logger,
		origins:   cfg.AllowedOrigins,
		timeout:   cfg.RequestTimeout,
	}, nil
}

// RegisterRoutes registers every API route on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("GET /v1/listings", h.handleListListings)
	mux.HandleFunc("POST /v1/listings", h.handleCreateListing)
	mux.HandleFunc("GET /v1/listings/{id}", h.handleGetListing)
	mux.HandleFunc("PATCH /v1/listings/{id}", h.handleUpdateListing)
	mux.HandleFunc("DELETE /v1/listings/{id}", h.handleDeleteListing)
	mux.HandleFunc("POST /v1/listings/{id}/interests", h.handleSubmitInterest)
	mux.HandleFunc("GET /v1/me/listings", h.handleOwnedListings)
	mux.HandleFunc("GET /v1/me/interests/received", h.handleReceived)
	mux.HandleFunc("GET /v1/me/interests/mine", h.handleMine)
	mux.HandleFunc("POST /v1/images", h.handleUploadImage)
	mux.HandleFunc("GET /v1/session", h.handleGetSession)
	mux.HandleFunc("DELETE /v1/session", h.handleDeleteSession)
	mux.HandleFunc("GET /blobs/{path...}", h.handleBlob)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_ = httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// Routes returns the full middleware stack around the API mux.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return httpx.Chain(mux,
		httpx.RecoverPanic(h.logger),
		httpx.RequestID(),
		httpx.AccessLog(h.logger),
		h.corsMiddleware(),
		httpx.Timeout(h.timeout),
		negotiateLocale,
		identity.Middleware(h.verifier, h.writeError),
	)
}

func (h *Handler) corsMiddleware() httpx.Middleware {
	if len(h.origins) == 0 {
		return nil
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   h.origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Authorization", "Content-Type", httpx.RequestIDHeader},
		ExposedHeaders:   []string{httpx.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})
}

func negotiateLocale(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		locale := i18n.Negotiate(r.Header.Get("Accept-Language"))
		w.Header().Set("Content-Language", locale)
		next.ServeHTTP(w, r.WithContext(requestctx.WithLocale(r.Context(), locale)))
	})
}
