package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hourwatch/slot-reservation/internal/model"
	"github.com/hourwatch/slot-reservation/internal/repository"
	"github.com/hourwatch/slot-reservation/internal/service"
	"github.com/hourwatch/slot-reservation/internal/slot"
	"github.com/hourwatch/slot-reservation/internal/token"
)

// BookingHandler exposes the booking form, submission and slot listing
// endpoints.  Validation and state transitions live in the service; the
// handler binds requests and maps outcomes to HTTP statuses.
type BookingHandler struct {
	svc *service.BookingService
}

// NewBookingHandler constructs a BookingHandler.  The service must be non-nil.
func NewBookingHandler(svc *service.BookingService) *BookingHandler {
	if svc == nil {
		panic("nil service passed to NewBookingHandler")
	}
	return &BookingHandler{svc: svc}
}

// Form handles GET /v1/booking-form.  It mints a fresh form token and
// describes the bookable window so a client can render the form.
func (h *BookingHandler) Form(c echo.Context) error {
	tok, err := h.svc.NewFormToken()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	w := h.svc.Window()
	return c.JSON(http.StatusOK, echo.Map{
		"form_token":   tok,
		"window_start": w.Start,
		"window_end":   w.End,
		"slot_seconds": int(slot.Length.Seconds()),
	})
}

type bookingRequest struct {
	SlotStart time.Time `json:"slot_start" form:"slot_start"`
	Name      string    `json:"name" form:"name"`
	Email     string    `json:"email" form:"email"`
	Title     string    `json:"title" form:"title"`
	IsPublic  bool      `json:"is_public" form:"is_public"`
	FormToken string    `json:"form_token" form:"form_token"`
}

// Create handles POST /v1/bookings.  A valid submission creates a pending
// reservation and answers 201; the guest is notified by mail.  The
// reservation secret never appears in the response, links reach the guest
// only through mail.
func (h *BookingHandler) Create(c echo.Context) error {
	var body bookingRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	res, err := h.svc.Submit(c.Request().Context(), service.SubmitInput{
		SlotStart: body.SlotStart,
		Name:      body.Name,
		Email:     body.Email,
		Title:     body.Title,
		IsPublic:  body.IsPublic,
		FormToken: body.FormToken,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, reservationJSON(res))
}

// Slots handles GET /v1/slots: every slot of the window with its state.
func (h *BookingHandler) Slots(c echo.Context) error {
	slots, err := h.svc.Availability(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"slots": slots})
}

// reservationJSON renders a reservation for API responses.  The secret is
// deliberately absent.
func reservationJSON(res *model.Reservation) echo.Map {
	status := "pending"
	if res.Confirmed() {
		status = "confirmed"
	}
	m := echo.Map{
		"slot_start": res.SlotStart,
		"slot_end":   res.SlotEnd,
		"name":       res.Name,
		"email":      res.Email,
		"title":      res.Title,
		"is_public":  res.IsPublic,
		"status":     status,
	}
	if res.ConfirmedAt != nil {
		m["confirmed_at"] = res.ConfirmedAt
	}
	return m
}

// writeServiceError maps service outcomes onto the API's status contract.
// Token failures are reported uniformly so responses reveal nothing about
// why a token was rejected.
func writeServiceError(c echo.Context, err error) error {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": ve.Reason})
	case errors.Is(err, token.ErrInvalidToken):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired link"})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	case errors.Is(err, repository.ErrSlotTaken):
		return c.JSON(http.StatusConflict, echo.Map{"error": "slot already taken"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
