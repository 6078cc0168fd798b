// Package repository is the only layer with direct access to the shared
// relational store.  It defines sentinel errors that let the service layer
// distinguish expected outcomes from storage failures without inspecting
// driver errors.
package repository

import "errors"

// ErrSlotTaken is returned when a reservation targets a (slot_start, slot_end)
// pair that already has a live reservation.  It is an expected concurrent-use
// outcome, not a failure; handlers translate it into an HTTP 409.
var ErrSlotTaken = errors.New("slot already taken")

// ErrNotFound is returned when a reservation secret no longer resolves to a
// row, either because it never existed or because the reservation was
// cancelled.  Handlers translate it into an HTTP 404.
var ErrNotFound = errors.New("reservation not found")
