package domain

import (
	"context"
	"errors"
	"log/slog"
	"time"

	apperrors "github.com/Kingl1tz/shoppal/internal/platform/errors"
	"github.com/Kingl1tz/shoppal/internal/platform/id"
	"github.com/Kingl1tz/shoppal/internal/platform/otel"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/identity"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/storage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Kingl1tz/shoppal/internal/services/marketplace/domain"

// Options carries the collaborators shared by every service. Zero fields
// fall back to the wall clock, random ids, a discard logger and UTC.
type Options struct {
	Clock    func() time.Time
	NewID    func() (string, error)
	Logger   *slog.Logger
	Location *time.Location
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.NewID == nil {
		o.NewID = id.NewID
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	return o
}

func (o Options) now() time.Time {
	return o.Clock().UTC()
}

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.CodeOf(err)))
	}
	span.End()
}

func requireIdentity(viewer identity.Identity) error {
	if viewer.IsZero() {
		return apperrors.New(apperrors.CodeUnauthenticated, "sign in required")
	}
	return nil
}

func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return apperrors.Wrap(apperrors.CodeStoreFailure, op, err)
}

func listingLookupError(op string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.Wrap(apperrors.CodeListingNotFound, "listing not found", err)
	}
	return storeError(op, err)
}
