// Package events defines the marketplace domain events and their publishers.
package events

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// TypeInterestCreated is emitted once per stored interest.
const TypeInterestCreated = "interest.created"

// Event is the wire payload of a domain event.
type Event struct {
	EventID         string    `json:"event_id"`
	Type            string    `json:"type"`
	OccurredAt      time.Time `json:"occurred_at"`
	InterestID      string    `json:"interest_id"`
	ListingID       string    `json:"listing_id"`
	OwnerID         string    `json:"owner_id"`
	BorrowerID      string    `json:"borrower_id"`
	BorrowStartDate string    `json:"borrow_start_date,omitempty"`
	BorrowEndDate   string    `json:"borrow_end_date,omitempty"`
}

// InterestCreated describes the stored interest an event is built from.
type InterestCreated struct {
	InterestID      string
	ListingID       string
	OwnerID         string
	BorrowerID      string
	BorrowStartDate string
	BorrowEndDate   string
}

// NewInterestCreated builds an interest.created event.
func NewInterestCreated(eventID string, occurredAt time.Time, in InterestCreated) (Event, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return Event{}, errors.New("event id is required")
	}
	if strings.TrimSpace(in.InterestID) == "" || strings.TrimSpace(in.ListingID) == "" {
		return Event{}, errors.New("interest and listing ids are required")
	}
	return Event{
		EventID:         eventID,
		Type:            TypeInterestCreated,
		OccurredAt:      occurredAt.UTC(),
		InterestID:      in.InterestID,
		ListingID:       in.ListingID,
		OwnerID:         in.OwnerID,
		BorrowerID:      in.BorrowerID,
		BorrowStartDate: in.BorrowStartDate,
		BorrowEndDate:   in.BorrowEndDate,
	}, nil
}

// Publisher delivers domain events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Noop discards every event.
type Noop struct{}

// Publish implements Publisher.
func (Noop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory. It backs tests and local runs.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	// Err, when set, is returned from every Publish after recording.
	Err error
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.Err
}

// Events returns a copy of the recorded events in publish order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
