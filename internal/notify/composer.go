package notify

import (
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/hourwatch/slot-reservation/internal/ics"
	"github.com/hourwatch/slot-reservation/internal/queue"
	"github.com/hourwatch/slot-reservation/internal/token"
)

// ComposerConfig carries everything the mail composer needs beyond its
// collaborators: where links point, who the team mails go to, and how slot
// times are rendered for humans.
type ComposerConfig struct {
	BaseURL   string // external origin of the HTTP API, no trailing slash
	EventName string // rendered as the calendar summary and mail subjects
	TeamEmail string // receives a copy of every new booking
	TeamName  string
	Location  *time.Location // display timezone for mail bodies
}

// Composer turns reservation events into mails.  Created bookings fan out to
// the guest and the team, confirm and cancel notify the guest only.  Every
// guest mail carries a calendar attachment whose method and sequence track
// the lifecycle, so mail clients update the same event in place.
type Composer struct {
	cfg    ComposerConfig
	codec  *token.Codec
	ics    ics.Builder
	sender Sender
	logger *log.Logger
}

// NewComposer wires a Composer.  All collaborators are required.
func NewComposer(cfg ComposerConfig, codec *token.Codec, builder ics.Builder, sender Sender, logger *log.Logger) *Composer {
	if codec == nil || sender == nil {
		panic("notify: composer requires codec and sender")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if logger == nil {
		logger = log.New("notify")
	}
	return &Composer{cfg: cfg, codec: codec, ics: builder, sender: sender, logger: logger}
}

// Handle dispatches one event to the mails it implies.  A send failure on the
// team copy does not suppress the guest copy; the first error is returned so
// the consumer can log it.
func (c *Composer) Handle(ctx context.Context, ev queue.ReservationEvent) error {
	start, end, err := ev.Slot()
	if err != nil {
		return fmt.Errorf("notify: bad slot in event %s: %w", ev.ID, err)
	}

	switch ev.Kind {
	case queue.KindBookingCreated:
		return c.bookingCreated(ctx, ev, start, end)
	case queue.KindBookingConfirmed:
		return c.guestMail(ctx, ev, start, end, ics.StatusConfirmed,
			fmt.Sprintf("Confirmed: %s", c.cfg.EventName), confirmedTmpl)
	case queue.KindBookingCancelled:
		return c.guestMail(ctx, ev, start, end, ics.StatusCancel,
			fmt.Sprintf("Cancelled: %s", c.cfg.EventName), cancelledTmpl)
	default:
		c.logger.Warnf("ignoring event %s with unknown kind %q", ev.ID, ev.Kind)
		return nil
	}
}

func (c *Composer) bookingCreated(ctx context.Context, ev queue.ReservationEvent, start, end time.Time) error {
	cancelLink, err := c.actionLink(ev.Secret, token.ActionCancel)
	if err != nil {
		return err
	}
	guest := Mail{
		ToEmail: ev.Email,
		ToName:  ev.Name,
		Subject: fmt.Sprintf("Your reservation: %s", c.cfg.EventName),
		HTMLBody: c.render(createdGuestTmpl, mailData{
			Name:       ev.Name,
			Event:      c.cfg.EventName,
			Slot:       c.formatSlot(start, end),
			Title:      ev.Title,
			CancelLink: cancelLink,
		}),
		Attachment:     c.calendar(ev, start, end, ics.StatusRequest),
		AttachmentName: "reservation.ics",
	}
	if err := c.sender.Send(ctx, guest); err != nil {
		return err
	}

	confirmLink, err := c.actionLink(ev.Secret, token.ActionConfirm)
	if err != nil {
		return err
	}
	team := Mail{
		ToEmail: c.cfg.TeamEmail,
		ToName:  c.cfg.TeamName,
		Subject: fmt.Sprintf("New reservation: %s", c.formatSlot(start, end)),
		HTMLBody: c.render(createdTeamTmpl, mailData{
			Name:        ev.Name,
			Email:       ev.Email,
			Event:       c.cfg.EventName,
			Slot:        c.formatSlot(start, end),
			Title:       ev.Title,
			IsPublic:    ev.IsPublic,
			ConfirmLink: confirmLink,
			CancelLink:  cancelLink,
		}),
	}
	return c.sender.Send(ctx, team)
}

func (c *Composer) guestMail(ctx context.Context, ev queue.ReservationEvent, start, end time.Time, status ics.Status, subject string, tmpl *template.Template) error {
	data := mailData{
		Name:  ev.Name,
		Event: c.cfg.EventName,
		Slot:  c.formatSlot(start, end),
		Title: ev.Title,
	}
	if status == ics.StatusConfirmed {
		link, err := c.actionLink(ev.Secret, token.ActionCancel)
		if err != nil {
			return err
		}
		data.CancelLink = link
	}
	return c.sender.Send(ctx, Mail{
		ToEmail:        ev.Email,
		ToName:         ev.Name,
		Subject:        subject,
		HTMLBody:       c.render(tmpl, data),
		Attachment:     c.calendar(ev, start, end, status),
		AttachmentName: "reservation.ics",
	})
}

// actionLink mints a GET-scoped token and embeds it in the landing page URL.
func (c *Composer) actionLink(secret string, action token.Action) (string, error) {
	tok, err := c.codec.EncodeAction(secret, action, token.MethodGet)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/v1/%s?s=%s", c.cfg.BaseURL, action, url.QueryEscape(tok)), nil
}

func (c *Composer) calendar(ev queue.ReservationEvent, start, end time.Time, status ics.Status) []byte {
	summary := c.cfg.EventName
	if ev.Title != "" {
		summary = fmt.Sprintf("%s: %s", c.cfg.EventName, ev.Title)
	}
	return c.ics.Build(ics.Event{
		UID:           ev.Secret,
		Start:         start,
		End:           end,
		Summary:       summary,
		Description:   fmt.Sprintf("Reservation for %s", ev.Name),
		AttendeeName:  ev.Name,
		AttendeeEmail: ev.Email,
	}, status)
}

func (c *Composer) formatSlot(start, end time.Time) string {
	s := start.In(c.cfg.Location)
	e := end.In(c.cfg.Location)
	return fmt.Sprintf("%s – %s", s.Format("Monday, 2 January 2006 15:04"), e.Format("15:04"))
}

func (c *Composer) render(tmpl *template.Template, data mailData) string {
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		// Templates are static and data is plain strings; this cannot fire
		// outside a programming error.
		c.logger.Errorf("render %s: %v", tmpl.Name(), err)
	}
	return b.String()
}

type mailData struct {
	Name        string
	Email       string
	Event       string
	Slot        string
	Title       string
	IsPublic    bool
	ConfirmLink string
	CancelLink  string
}

var (
	createdGuestTmpl = template.Must(template.New("created_guest").Parse(`<p>Hi {{.Name}},</p>
<p>we received your reservation for <strong>{{.Event}}</strong>.</p>
<p>Slot: <strong>{{.Slot}}</strong>{{if .Title}}<br>Title: {{.Title}}{{end}}</p>
<p>We will confirm it shortly. If your plans change, you can
<a href="{{.CancelLink}}">cancel the reservation</a> at any time.</p>`))

	createdTeamTmpl = template.Must(template.New("created_team").Parse(`<p>New reservation for {{.Event}}.</p>
<p>Slot: <strong>{{.Slot}}</strong><br>
Name: {{.Name}}<br>
Email: {{.Email}}{{if .Title}}<br>
Title: {{.Title}} ({{if .IsPublic}}public{{else}}private{{end}}){{end}}</p>
<p><a href="{{.ConfirmLink}}">Confirm</a> &middot; <a href="{{.CancelLink}}">Cancel</a></p>`))

	confirmedTmpl = template.Must(template.New("confirmed").Parse(`<p>Hi {{.Name}},</p>
<p>your reservation for <strong>{{.Event}}</strong> is confirmed.</p>
<p>Slot: <strong>{{.Slot}}</strong>{{if .Title}}<br>Title: {{.Title}}{{end}}</p>
<p>The attached calendar update marks the event as confirmed. If your plans
change, you can <a href="{{.CancelLink}}">cancel the reservation</a>.</p>`))

	cancelledTmpl = template.Must(template.New("cancelled").Parse(`<p>Hi {{.Name}},</p>
<p>your reservation for <strong>{{.Event}}</strong> on <strong>{{.Slot}}</strong>
has been cancelled. The slot is free again.</p>
<p>The attached calendar update removes the event from your calendar.</p>`))
)
