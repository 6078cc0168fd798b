package notify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hourwatch/slot-reservation/internal/ics"
	"github.com/hourwatch/slot-reservation/internal/model"
	"github.com/hourwatch/slot-reservation/internal/queue"
	"github.com/hourwatch/slot-reservation/internal/token"
)

type captureSender struct {
	sent []Mail
	err  error
}

func (s *captureSender) Send(_ context.Context, m Mail) error {
	s.sent = append(s.sent, m)
	return s.err
}

func testComposer(t *testing.T) (*Composer, *captureSender, *token.Codec) {
	t.Helper()
	codec := token.NewCodec([]byte("composer-test-key"))
	sender := &captureSender{}
	builder := ics.Builder{
		Domain:         "reserve.example.com",
		OrganizerName:  "Front Desk",
		OrganizerEmail: "desk@example.com",
		Location:       "Main Hall",
	}
	cfg := ComposerConfig{
		BaseURL:   "https://reserve.example.com/",
		EventName: "Open Studio Day",
		TeamEmail: "team@example.com",
		TeamName:  "Front Desk",
		Location:  time.UTC,
	}
	return NewComposer(cfg, codec, builder, sender, nil), sender, codec
}

func testEvent(kind string) queue.ReservationEvent {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	res := &model.Reservation{
		SlotStart: start,
		SlotEnd:   start.Add(time.Hour),
		Name:      "Ada Lovelace",
		Email:     "ada@example.com",
		Title:     "Engine demo",
		IsPublic:  true,
		Secret:    strings.Repeat("ab", 16),
	}
	return queue.NewReservationEvent(kind, res)
}

func TestBookingCreatedSendsGuestAndTeamMail(t *testing.T) {
	composer, sender, codec := testComposer(t)

	err := composer.Handle(context.Background(), testEvent(queue.KindBookingCreated))
	require.NoError(t, err)
	require.Len(t, sender.sent, 2)

	guest := sender.sent[0]
	assert.Equal(t, "ada@example.com", guest.ToEmail)
	assert.Equal(t, "Ada Lovelace", guest.ToName)
	assert.Contains(t, guest.Subject, "Open Studio Day")
	assert.Contains(t, guest.HTMLBody, "Friday, 1 March 2024 10:00")
	assert.Contains(t, guest.HTMLBody, "/v1/cancel?s=")
	assert.NotContains(t, guest.HTMLBody, "/v1/confirm")
	assert.Contains(t, string(guest.Attachment), "METHOD:REQUEST")

	team := sender.sent[1]
	assert.Equal(t, "team@example.com", team.ToEmail)
	assert.Contains(t, team.HTMLBody, "ada@example.com")
	assert.Contains(t, team.HTMLBody, "/v1/confirm?s=")
	assert.Contains(t, team.HTMLBody, "/v1/cancel?s=")
	assert.Empty(t, team.Attachment)

	// The embedded confirm link must carry a token the codec accepts for a
	// browser-initiated confirm.
	link := team.HTMLBody[strings.Index(team.HTMLBody, "/v1/confirm?s="):]
	tok := link[len("/v1/confirm?s=") : strings.IndexByte(link, '"')]
	secret, err := codec.DecodeAction(tok, token.ActionConfirm, token.MethodGet)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("ab", 16), secret)
}

func TestBookingConfirmedMailsGuestWithConfirmedCalendar(t *testing.T) {
	composer, sender, _ := testComposer(t)

	err := composer.Handle(context.Background(), testEvent(queue.KindBookingConfirmed))
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	m := sender.sent[0]
	assert.Equal(t, "ada@example.com", m.ToEmail)
	assert.Contains(t, m.Subject, "Confirmed")
	assert.Contains(t, m.HTMLBody, "/v1/cancel?s=")
	body := string(m.Attachment)
	assert.Contains(t, body, "STATUS:CONFIRMED")
	assert.Contains(t, body, "SEQUENCE:1")
}

func TestBookingCancelledMailsGuestWithCancelCalendar(t *testing.T) {
	composer, sender, _ := testComposer(t)

	err := composer.Handle(context.Background(), testEvent(queue.KindBookingCancelled))
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	m := sender.sent[0]
	assert.Contains(t, m.Subject, "Cancelled")
	assert.NotContains(t, m.HTMLBody, "/v1/")
	body := string(m.Attachment)
	assert.Contains(t, body, "METHOD:CANCEL")
	assert.Contains(t, body, "SEQUENCE:2")
}

func TestUnknownEventKindIsIgnored(t *testing.T) {
	composer, sender, _ := testComposer(t)

	ev := testEvent(queue.KindBookingCreated)
	ev.Kind = "booking.shuffled"
	require.NoError(t, composer.Handle(context.Background(), ev))
	assert.Empty(t, sender.sent)
}

func TestBadSlotInEventIsRejected(t *testing.T) {
	composer, _, _ := testComposer(t)

	ev := testEvent(queue.KindBookingCreated)
	ev.SlotStart = "not-a-timestamp"
	assert.Error(t, composer.Handle(context.Background(), ev))
}
