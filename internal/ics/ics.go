// Package ics builds the iCalendar artifacts attached to notification mails.
// Calendar clients track an event across its life through the UID plus a
// monotonic SEQUENCE: the initial request ships sequence 0, the confirmation
// 1 and the cancellation 2, with METHOD REQUEST/REQUEST/CANCEL respectively.
package ics

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"
)

// Status selects which lifecycle artifact to build.
type Status int

const (
	StatusRequest Status = iota
	StatusConfirmed
	StatusCancel
)

// Event describes one calendar entry.  UID must stay stable across the
// reservation's lifecycle so clients update instead of duplicating.
type Event struct {
	UID           string
	Start         time.Time
	End           time.Time
	Summary       string
	Description   string
	AttendeeName  string
	AttendeeEmail string
}

// Builder carries the static organizer identity stamped on every artifact.
type Builder struct {
	Domain         string // appended to UIDs and used in the product id
	OrganizerName  string
	OrganizerEmail string
	Location       string
}

// Build renders the calendar blob for the given event and lifecycle status.
func (b Builder) Build(e Event, status Status) []byte {
	cal := ical.NewCalendar()
	cal.SetProductId(fmt.Sprintf("-//%s//reservation//EN", b.Domain))
	cal.SetCalscale("GREGORIAN")

	switch status {
	case StatusCancel:
		cal.SetMethod(ical.MethodCancel)
	default:
		cal.SetMethod(ical.MethodRequest)
	}

	ev := cal.AddEvent(fmt.Sprintf("%s@%s", e.UID, b.Domain))
	ev.SetDtStampTime(time.Now().UTC())
	ev.SetStartAt(e.Start.UTC())
	ev.SetEndAt(e.End.UTC())
	ev.SetSummary(e.Summary)
	ev.SetDescription(e.Description)
	ev.SetLocation(b.Location)
	ev.SetOrganizer("mailto:"+b.OrganizerEmail, ical.WithCN(b.OrganizerName))
	ev.AddAttendee(e.AttendeeEmail,
		ical.CalendarUserTypeIndividual,
		ical.ParticipationStatusNeedsAction,
		ical.ParticipationRoleReqParticipant,
		ical.WithRSVP(true),
		ical.WithCN(e.AttendeeName),
	)

	switch status {
	case StatusRequest:
		ev.SetSequence(0)
		ev.SetStatus(ical.ObjectStatusConfirmed)
	case StatusConfirmed:
		ev.SetSequence(1)
		ev.SetStatus(ical.ObjectStatusConfirmed)
	case StatusCancel:
		ev.SetSequence(2)
		ev.SetStatus(ical.ObjectStatusCancelled)
	}

	return []byte(cal.Serialize())
}
