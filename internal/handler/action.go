package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hourwatch/slot-reservation/internal/service"
)

// ActionHandler serves the confirm and cancel endpoints.  Each action has a
// GET landing page resolved by the mailed link and a POST that applies the
// transition.  The GET token cannot drive the POST; the landing page mints a
// separate POST-scoped token, so a prefetching mail client never mutates
// anything.
type ActionHandler struct {
	svc *service.BookingService
}

// NewActionHandler constructs an ActionHandler.  The service must be non-nil.
func NewActionHandler(svc *service.BookingService) *ActionHandler {
	if svc == nil {
		panic("nil service passed to NewActionHandler")
	}
	return &ActionHandler{svc: svc}
}

type actionRequest struct {
	Token string `json:"token" form:"token"`
}

// ConfirmPage handles GET /v1/confirm?s=<token>.
func (h *ActionHandler) ConfirmPage(c echo.Context) error {
	page, err := h.svc.ConfirmPage(c.Request().Context(), c.QueryParam("s"))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"reservation": reservationJSON(page.Reservation),
		"post_token":  page.PostToken,
	})
}

// Confirm handles POST /v1/confirm.  Re-confirming an already confirmed
// reservation succeeds without sending another mail.
func (h *ActionHandler) Confirm(c echo.Context) error {
	var body actionRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	res, firstTime, err := h.svc.Confirm(c.Request().Context(), body.Token)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"reservation":       reservationJSON(res),
		"already_confirmed": !firstTime,
	})
}

// CancelPage handles GET /v1/cancel?s=<token>.
func (h *ActionHandler) CancelPage(c echo.Context) error {
	page, err := h.svc.CancelPage(c.Request().Context(), c.QueryParam("s"))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"reservation": reservationJSON(page.Reservation),
		"post_token":  page.PostToken,
	})
}

// Cancel handles POST /v1/cancel.  Cancellation frees the slot; the token
// dies with the reservation, so a repeat is answered with 404.
func (h *ActionHandler) Cancel(c echo.Context) error {
	var body actionRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	res, err := h.svc.Cancel(c.Request().Context(), body.Token)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"reservation": reservationJSON(res),
		"cancelled":   true,
	})
}
