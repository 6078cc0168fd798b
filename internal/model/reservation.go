package model

import "time"

// Reservation is the sole persistent entity: one booked hour slot inside the
// configured window.  A reservation is pending until ConfirmedAt is set and
// ceases to exist when cancelled; there is no stored "cancelled" state.
//
// Fields:
//  ID          – primary key identifier, assigned by the database.
//  SlotStart   – inclusive start of the booked interval.
//  SlotEnd     – exclusive end; always SlotStart plus the fixed slot length.
//  Name        – registrant display name.
//  Email       – registrant email address.
//  Title       – optional public label for the slot.
//  IsPublic    – whether others may join the slot (title shown publicly).
//  Secret      – 16 random bytes, hex encoded, minted once at creation.  The
//                only value an action token may reference; never exposed in
//                plaintext outside signed tokens.
//  CreatedAt   – creation timestamp.
//  ConfirmedAt – set exactly once on first confirmation; nil while pending.
type Reservation struct {
	ID          uint64     // reservations.id
	SlotStart   time.Time  // reservations.slot_start
	SlotEnd     time.Time  // reservations.slot_end
	Name        string     // reservations.name
	Email       string     // reservations.email
	Title       string     // reservations.title
	IsPublic    bool       // reservations.is_public
	Secret      string     // reservations.secret
	CreatedAt   time.Time  // reservations.created_at
	ConfirmedAt *time.Time // reservations.confirmed_at (nullable)
}

// Confirmed reports whether the reservation has been confirmed by the team.
func (r *Reservation) Confirmed() bool { return r.ConfirmedAt != nil }
