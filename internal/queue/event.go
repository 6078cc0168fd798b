// Package queue defines the reservation events exchanged over the message
// broker and the publisher/consumer pair that moves them.  Notification
// dispatch rides on these events: the lifecycle publishes after a transaction
// commits, the consumer turns events into mails.  A lost event never affects
// the committed state transition.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/hourwatch/slot-reservation/internal/model"
)

// Event kinds carried in ReservationEvent.Kind.
const (
	KindBookingCreated   = "booking.created"
	KindBookingConfirmed = "booking.confirmed"
	KindBookingCancelled = "booking.cancelled"
)

// EventsQueue is the durable queue all reservation events flow through.
const EventsQueue = "reservation.events"

// ReservationEvent is the broker payload for every lifecycle transition.  It
// carries the full reservation snapshot so the consumer can compose mails and
// calendar artifacts without querying the database.  Timestamps are RFC3339
// strings in UTC.
type ReservationEvent struct {
	ID          string `json:"id"`   // unique event id for logging/dedup
	Kind        string `json:"kind"` // one of the Kind* constants
	Secret      string `json:"secret"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Title       string `json:"title,omitempty"`
	IsPublic    bool   `json:"is_public"`
	SlotStart   string `json:"slot_start"`
	SlotEnd     string `json:"slot_end"`
	ConfirmedAt string `json:"confirmed_at,omitempty"`
	OccurredAt  string `json:"occurred_at"`
}

// NewReservationEvent builds an event of the given kind from a reservation
// snapshot.
func NewReservationEvent(kind string, res *model.Reservation) ReservationEvent {
	ev := ReservationEvent{
		ID:         uuid.NewString(),
		Kind:       kind,
		Secret:     res.Secret,
		Name:       res.Name,
		Email:      res.Email,
		Title:      res.Title,
		IsPublic:   res.IsPublic,
		SlotStart:  res.SlotStart.UTC().Format(time.RFC3339),
		SlotEnd:    res.SlotEnd.UTC().Format(time.RFC3339),
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
	if res.ConfirmedAt != nil {
		ev.ConfirmedAt = res.ConfirmedAt.UTC().Format(time.RFC3339)
	}
	return ev
}

// Slot parses the event's interval back into time values.  It tolerates only
// RFC3339; events are always produced by NewReservationEvent.
func (e ReservationEvent) Slot() (start, end time.Time, err error) {
	start, err = time.Parse(time.RFC3339, e.SlotStart)
	if err != nil {
		return
	}
	end, err = time.Parse(time.RFC3339, e.SlotEnd)
	return
}
