package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/Kingl1tz/shoppal/internal/platform/errors"
	"github.com/Kingl1tz/shoppal/internal/platform/httpx"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/blob"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/domain"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/identity"
)

// multipartMemory is how much of an upload form is buffered in memory.
const multipartMemory = 1 << 20

func (h *Handler) handleListListings(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	pageSize := 0
	if raw := strings.TrimSpace(query.Get("page_size")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeRequestError(w, r, errors.New("page_size must be a non-negative integer"))
			return
		}
		pageSize = parsed
	}
	page, err := h.listings.List(r.Context(), domain.ListQuery{
		Text:      query.Get("q"),
		Filter:    query.Get("filter"),
		PageSize:  pageSize,
		PageToken: query.Get("page_token"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, listListingsResponse{
		Listings:      toListingResponses(page.Listings),
		NextPageToken: page.NextPageToken,
	})
}

func (h *Handler) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	var body createListingRequest
	if err := httpx.DecodeJSON(r, &body, httpx.DefaultMaxBodyBytes); err != nil {
		h.writeRequestError(w, r, err)
		return
	}
	listing, err := h.listings.Create(r.Context(), identity.FromContext(r.Context()), body.input())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/listings/"+listing.ID)
	_ = httpx.WriteJSON(w, http.StatusCreated, toListingResponse(listing))
}

func (h *Handler) handleGetListing(w http.ResponseWriter, r *http.Request) {
	listing, err := h.listings.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, toListingResponse(listing))
}

func (h *Handler) handleUpdateListing(w http.ResponseWriter, r *http.Request) {
	var body updateListingRequest
	if err := httpx.DecodeJSON(r, &body, httpx.DefaultMaxBodyBytes); err != nil {
		h.writeRequestError(w, r, err)
		return
	}
	listing, err := h.listings.Update(r.Context(), identity.FromContext(r.Context()), r.PathValue("id"), body.patch())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, toListingResponse(listing))
}

func (h *Handler) handleDeleteListing(w http.ResponseWriter, r *http.Request) {
	if err := h.listings.Delete(r.Context(), identity.FromContext(r.Context()), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSubmitInterest(w http.ResponseWriter, r *http.Request) {
	viewer := identity.FromContext(r.Context())
	if viewer.IsZero() {
		h.writeError(w, r, apperrors.New(apperrors.CodeUnauthenticated, "sign in required"))
		return
	}
	var body submitInterestRequest
	if err := httpx.DecodeJSON(r, &body, httpx.DefaultMaxBodyBytes); err != nil {
		h.writeRequestError(w, r, err)
		return
	}
	interest, err := h.interests.Submit(r.Context(), viewer, body.input(r.PathValue("id")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusCreated, toInterestResponse(interest))
}

func (h *Handler) handleOwnedListings(w http.ResponseWriter, r *http.Request) {
	listings, err := h.listings.ListOwned(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, listListingsResponse{Listings: toListingResponses(listings)})
}

func (h *Handler) handleReceived(w http.ResponseWriter, r *http.Request) {
	entries, err := h.dashboard.Received(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, toEntriesResponse(entries))
}

func (h *Handler) handleMine(w http.ResponseWriter, r *http.Request) {
	entries, err := h.dashboard.Mine(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, toEntriesResponse(entries))
}

func (h *Handler) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	viewer := identity.FromContext(r.Context())
	if viewer.IsZero() {
		h.writeError(w, r, apperrors.New(apperrors.CodeUnauthenticated, "sign in required"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, blob.MaxImageBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, r, &apperrors.Error{
				Code:     apperrors.CodeUploadTooLarge,
				Message:  "upload form is too large",
				Metadata: map[string]string{"Limit": "5 MB"},
				Cause:    err,
			})
			return
		}
		h.writeRequestError(w, r, err)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeRequestError(w, r, err)
		return
	}
	defer file.Close()

	url, err := h.listings.UploadImage(r.Context(), viewer, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusCreated, uploadResponse{URL: url})
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	viewer := identity.FromContext(r.Context())
	if viewer.IsZero() {
		_ = httpx.WriteJSON(w, http.StatusOK, sessionResponse{})
		return
	}
	response := sessionResponse{Identity: &identityResponse{
		ID:          viewer.ID,
		Email:       viewer.Email,
		DisplayName: viewer.DisplayName,
	}}
	if claims, ok := identity.ClaimsFromContext(r.Context()); ok && !claims.ExpiresAt.IsZero() {
		expires := claims.ExpiresAt
		response.ExpiresAt = &expires
	}
	_ = httpx.WriteJSON(w, http.StatusOK, response)
}

// handleDeleteSession revokes the presented token. Signing out without a
// token is a no-op.
func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := identity.ClaimsFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.verifier.Revoke(r.Context(), claims); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "signed out", "user_id", claims.Identity.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleBlob(w http.ResponseWriter, r *http.Request) {
	if h.blobs == nil {
		h.writeError(w, r, apperrors.New(apperrors.CodeBlobNotFound, "blob serving is disabled"))
		return
	}
	object, err := h.blobs.Open(r.Context(), r.PathValue("path"))
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) || errors.Is(err, blob.ErrInvalidPath) {
			h.writeError(w, r, apperrors.Wrap(apperrors.CodeBlobNotFound, "blob not found", err))
			return
		}
		h.writeError(w, r, apperrors.Wrap(apperrors.CodeStoreFailure, "open blob", err))
		return
	}
	defer object.Close()
	w.Header().Set("Content-Type", object.ContentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if object.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(object.Size, 10))
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, object); err != nil {
		h.logger.WarnContext(r.Context(), "blob copy failed", "path", r.PathValue("path"), "error", err)
	}
}
