// Package errors provides structured, coded errors for the marketplace.
package errors

import "net/http"

// Kind is the coarse failure category surfaced to callers.
type Kind string

const (
	KindUnknown        Kind = "UNKNOWN"
	KindAuthentication Kind = "AUTHENTICATION"
	KindAuthorization  Kind = "AUTHORIZATION"
	KindValidation     Kind = "VALIDATION"
	KindDuplicate      Kind = "DUPLICATE"
	KindNotFound       Kind = "NOT_FOUND"
	KindStore          Kind = "STORE"
	KindUpload         Kind = "UPLOAD"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Identity errors
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeTokenInvalid    Code = "IDENTITY_TOKEN_INVALID"
	CodeTokenExpired    Code = "IDENTITY_TOKEN_EXPIRED"
	CodeTokenRevoked    Code = "IDENTITY_TOKEN_REVOKED"

	// Request errors
	CodeRequestInvalid Code = "REQUEST_INVALID"

	// Listing errors
	CodeListingNotOwner         Code = "LISTING_NOT_OWNER"
	CodeListingIDRequired       Code = "LISTING_ID_REQUIRED"
	CodeListingTitleEmpty       Code = "LISTING_TITLE_EMPTY"
	CodeListingPriceInvalid     Code = "LISTING_PRICE_INVALID"
	CodeListingModeInvalid      Code = "LISTING_MODE_INVALID"
	CodeListingImageURLInvalid  Code = "LISTING_IMAGE_URL_INVALID"
	CodeListingFilterInvalid    Code = "LISTING_FILTER_INVALID"
	CodeListingPageTokenInvalid Code = "LISTING_PAGE_TOKEN_INVALID"
	CodeListingNotFound         Code = "LISTING_NOT_FOUND"

	// Interest errors
	CodeInterestNameEmpty           Code = "INTEREST_NAME_EMPTY"
	CodeInterestEmailEmpty          Code = "INTEREST_EMAIL_EMPTY"
	CodeInterestEmailInvalid        Code = "INTEREST_EMAIL_INVALID"
	CodeInterestDateInvalid         Code = "INTEREST_DATE_INVALID"
	CodeInterestDateRangeIncomplete Code = "INTEREST_DATE_RANGE_INCOMPLETE"
	CodeInterestDateRangeRequired   Code = "INTEREST_DATE_RANGE_REQUIRED"
	CodeInterestStartInPast         Code = "INTEREST_START_IN_PAST"
	CodeInterestEndBeforeStart      Code = "INTEREST_END_BEFORE_START"
	CodeInterestOwnListing          Code = "INTEREST_OWN_LISTING"
	CodeInterestDuplicate           Code = "INTEREST_DUPLICATE"

	// Blob errors
	CodeUploadFailed          Code = "UPLOAD_FAILED"
	CodeUploadUnsupportedType Code = "UPLOAD_UNSUPPORTED_TYPE"
	CodeUploadTooLarge        Code = "UPLOAD_TOO_LARGE"
	CodeBlobNotFound          Code = "BLOB_NOT_FOUND"

	// Storage errors
	CodeStoreFailure Code = "STORE_FAILURE"
)

// Kind maps the code to its failure category.
func (c Code) Kind() Kind {
	switch c {
	case CodeUnauthenticated,
		CodeTokenInvalid,
		CodeTokenExpired,
		CodeTokenRevoked:
		return KindAuthentication

	case CodeListingNotOwner:
		return KindAuthorization

	case CodeRequestInvalid,
		CodeListingIDRequired,
		CodeListingTitleEmpty,
		CodeListingPriceInvalid,
		CodeListingModeInvalid,
		CodeListingImageURLInvalid,
		CodeListingFilterInvalid,
		CodeListingPageTokenInvalid,
		CodeInterestNameEmpty,
		CodeInterestEmailEmpty,
		CodeInterestEmailInvalid,
		CodeInterestDateInvalid,
		CodeInterestDateRangeIncomplete,
		CodeInterestDateRangeRequired,
		CodeInterestStartInPast,
		CodeInterestEndBeforeStart,
		CodeInterestOwnListing:
		return KindValidation

	case CodeInterestDuplicate:
		return KindDuplicate

	case CodeListingNotFound,
		CodeBlobNotFound:
		return KindNotFound

	case CodeUploadFailed,
		CodeUploadUnsupportedType,
		CodeUploadTooLarge:
		return KindUpload

	case CodeStoreFailure:
		return KindStore

	default:
		return KindUnknown
	}
}

// HTTPStatus maps the kind to a response status.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindDuplicate:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindUpload:
		return http.StatusUnprocessableEntity
	case KindStore:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
