// Package service orchestrates the reservation lifecycle: it validates
// booking input, mints and verifies tokens, drives the store through its
// state machine and publishes notification events after commits.  It is the
// only component that talks to both the token codec and the reservation
// store.
package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/hourwatch/slot-reservation/internal/model"
	"github.com/hourwatch/slot-reservation/internal/queue"
	"github.com/hourwatch/slot-reservation/internal/slot"
	"github.com/hourwatch/slot-reservation/internal/token"
)

// ValidationError reports bad input shape on the booking form.  Reason is a
// stable machine-readable label the boundary can map to a user-facing
// message.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation failed: " + e.Reason }

// Validation reasons.
const (
	ReasonMissingFields = "missing-fields"
	ReasonInvalidEmail  = "invalid-email"
	ReasonDateRange     = "date-range"
	ReasonTooLong       = "too-long"
)

// Field length limits, matching the reservations table columns.
const (
	maxNameLen  = 55
	maxEmailLen = 70
	maxTitleLen = 120
)

// ReservationStore is the transactional repository the lifecycle drives.
// Implemented by repository.ReservationRepo.
type ReservationStore interface {
	Create(ctx context.Context, res *model.Reservation) error
	FindBySecret(ctx context.Context, secret string) (*model.Reservation, error)
	ConfirmBySecret(ctx context.Context, secret string) (*model.Reservation, bool, error)
	CancelBySecret(ctx context.Context, secret string) (*model.Reservation, error)
	ListAll(ctx context.Context) ([]*model.Reservation, error)
}

// EventPublisher receives lifecycle events for notification dispatch.
// Publishing happens after the transaction committed; failures are logged and
// never surface to the caller.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

// BookingService implements the reservation lifecycle.
type BookingService struct {
	store     ReservationStore
	codec     *token.Codec
	window    slot.Window
	publisher EventPublisher
	logger    *log.Logger
}

// NewBookingService wires the lifecycle with its collaborators.  All
// dependencies must be non-nil.
func NewBookingService(store ReservationStore, codec *token.Codec, window slot.Window, publisher EventPublisher, logger *log.Logger) *BookingService {
	if store == nil || codec == nil || publisher == nil {
		panic("nil dependency passed to NewBookingService")
	}
	if logger == nil {
		logger = log.New("booking")
	}
	return &BookingService{store: store, codec: codec, window: window, publisher: publisher, logger: logger}
}

// Window exposes the configured booking window.
func (s *BookingService) Window() slot.Window { return s.window }

// NewFormToken mints a fresh anti-forgery token for the booking form.
func (s *BookingService) NewFormToken() (string, error) {
	return s.codec.EncodeForm(time.Now())
}

// SubmitInput carries a booking request from the boundary.
type SubmitInput struct {
	SlotStart time.Time
	Name      string
	Email     string
	Title     string
	IsPublic  bool
	FormToken string
}

// Submit validates a booking request and creates the pending reservation.
// Outcomes: the created reservation, token.ErrInvalidToken (stale or forged
// form token), *ValidationError, repository.ErrSlotTaken, or a storage error.
// On success a booking.created event is published best-effort.
func (s *BookingService) Submit(ctx context.Context, in SubmitInput) (*model.Reservation, error) {
	if err := s.codec.VerifyForm(in.FormToken, time.Now()); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	title := strings.TrimSpace(in.Title)
	if name == "" || email == "" || in.SlotStart.IsZero() {
		return nil, &ValidationError{Reason: ReasonMissingFields}
	}
	if len(name) > maxNameLen || len(email) > maxEmailLen || len(title) > maxTitleLen {
		return nil, &ValidationError{Reason: ReasonTooLong}
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, &ValidationError{Reason: ReasonInvalidEmail}
	}
	// Hard precondition: the requested interval must be a slot of the window.
	if !s.window.Contains(in.SlotStart) {
		return nil, &ValidationError{Reason: ReasonDateRange}
	}

	secret, err := token.NewReservationSecret()
	if err != nil {
		return nil, fmt.Errorf("mint reservation secret: %w", err)
	}

	res := &model.Reservation{
		SlotStart: in.SlotStart,
		SlotEnd:   slot.SlotEnd(in.SlotStart),
		Name:      name,
		Email:     email,
		Title:     title,
		IsPublic:  in.IsPublic,
		Secret:    secret,
	}
	if err := s.store.Create(ctx, res); err != nil {
		return nil, err
	}

	s.publish(ctx, queue.NewReservationEvent(queue.KindBookingCreated, res))
	return res, nil
}

// LandingPage is the snapshot rendered by the GET confirm/cancel pages.  The
// PostToken is the POST-scoped action token the page's form must submit; the
// GET token itself cannot be replayed against the POST endpoint.
type LandingPage struct {
	Reservation *model.Reservation
	PostToken   string
}

// ConfirmPage resolves a GET confirm link.  It never mutates.  Outcomes:
// token.ErrInvalidToken, repository.ErrNotFound, or the landing snapshot.
func (s *BookingService) ConfirmPage(ctx context.Context, actionToken string) (*LandingPage, error) {
	return s.landingPage(ctx, actionToken, token.ActionConfirm)
}

// CancelPage resolves a GET cancel link.  It never mutates.
func (s *BookingService) CancelPage(ctx context.Context, actionToken string) (*LandingPage, error) {
	return s.landingPage(ctx, actionToken, token.ActionCancel)
}

func (s *BookingService) landingPage(ctx context.Context, actionToken string, action token.Action) (*LandingPage, error) {
	secret, err := s.codec.DecodeAction(actionToken, action, token.MethodGet)
	if err != nil {
		return nil, err
	}
	res, err := s.store.FindBySecret(ctx, secret)
	if err != nil {
		return nil, err
	}
	post, err := s.codec.EncodeAction(res.Secret, action, token.MethodPost)
	if err != nil {
		return nil, fmt.Errorf("mint post token: %w", err)
	}
	return &LandingPage{Reservation: res, PostToken: post}, nil
}

// Confirm applies the confirm transition via a POST-scoped action token.
// Re-confirming is an idempotent success: firstTime is false and the original
// confirmation time is returned.  The booking.confirmed event fires only on
// the first transition.
func (s *BookingService) Confirm(ctx context.Context, actionToken string) (*model.Reservation, bool, error) {
	secret, err := s.codec.DecodeAction(actionToken, token.ActionConfirm, token.MethodPost)
	if err != nil {
		return nil, false, err
	}
	res, firstTime, err := s.store.ConfirmBySecret(ctx, secret)
	if err != nil {
		return nil, false, err
	}
	if firstTime {
		s.publish(ctx, queue.NewReservationEvent(queue.KindBookingConfirmed, res))
	}
	return res, firstTime, nil
}

// Cancel applies the cancel transition via a POST-scoped action token.
// Cancellation is terminal; the deleted snapshot is returned for the
// cancellation notice.
func (s *BookingService) Cancel(ctx context.Context, actionToken string) (*model.Reservation, error) {
	secret, err := s.codec.DecodeAction(actionToken, token.ActionCancel, token.MethodPost)
	if err != nil {
		return nil, err
	}
	res, err := s.store.CancelBySecret(ctx, secret)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, queue.NewReservationEvent(queue.KindBookingCancelled, res))
	return res, nil
}

// Slot availability states reported by Availability.
const (
	SlotFree     = "free"     // no reservation
	SlotReserved = "reserved" // pending reservation, not yet confirmed
	SlotBooked   = "booked"   // confirmed
)

// SlotStatus is one row of the availability listing.  Title is only populated
// for confirmed public reservations.
type SlotStatus struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Status string    `json:"status"`
	Title  string    `json:"title,omitempty"`
}

// Availability enumerates every slot of the window with its current state.
// Reservation secrets never leave this listing; only public confirmed slots
// expose their title.
func (s *BookingService) Availability(ctx context.Context) ([]SlotStatus, error) {
	all, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	byStart := make(map[time.Time]*model.Reservation, len(all))
	for _, res := range all {
		byStart[res.SlotStart.UTC()] = res
	}

	out := make([]SlotStatus, 0, s.window.Count())
	for start := range s.window.Slots() {
		st := SlotStatus{Start: start, End: slot.SlotEnd(start), Status: SlotFree}
		if res, ok := byStart[start.UTC()]; ok {
			if !res.Confirmed() {
				st.Status = SlotReserved
			} else {
				st.Status = SlotBooked
				if res.IsPublic {
					st.Title = res.Title
				}
			}
		}
		out = append(out, st)
	}
	return out, nil
}

// publish sends a lifecycle event and logs failures.  The state transition
// already committed; notification loss must never propagate to the caller.
func (s *BookingService) publish(ctx context.Context, ev queue.ReservationEvent) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Errorf("publish %s event %s: %v", ev.Kind, ev.ID, err)
	}
}
