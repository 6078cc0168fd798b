package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/hourwatch/slot-reservation/internal/config"
	"github.com/hourwatch/slot-reservation/internal/handler"
	"github.com/hourwatch/slot-reservation/internal/middleware"
)

// Register mounts every route of the reservation API on the provided Echo
// instance.  The booking submission sits behind the Redis token bucket, the
// slot listing behind the response cache; rdb may be nil, in which case both
// run unguarded.
func Register(e *echo.Echo, booking *handler.BookingHandler, action *handler.ActionHandler, rdb *redis.Client) {
	// Health check for load balancers and monitoring.
	e.GET("/healthz", handler.Health)

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	v1 := e.Group("/v1")

	// Availability listing, read-heavy, cached briefly.
	v1.GET("/slots", booking.Slots, cache)

	// Booking form and submission.  Only the submission is rate limited;
	// fetching the form is harmless.
	v1.GET("/booking-form", booking.Form)
	v1.POST("/bookings", booking.Create, limiter)

	// Mailed action links land on the GET pages; the pages' forms drive the
	// POST transitions with a separately scoped token.
	v1.GET("/confirm", action.ConfirmPage)
	v1.POST("/confirm", action.Confirm)
	v1.GET("/cancel", action.CancelPage)
	v1.POST("/cancel", action.Cancel)
}
