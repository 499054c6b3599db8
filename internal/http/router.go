// README: HTTP route registration.
package http

import (
	"github.com/gin-gonic/gin"

	"swiftcab/internal/http/handlers"
	"swiftcab/internal/http/middleware"
	"swiftcab/internal/modules/assignment"
	"swiftcab/internal/modules/booking"
	"swiftcab/internal/modules/dispatch"
	"swiftcab/internal/modules/location"
	"swiftcab/internal/realtime"
)

type RouterDeps struct {
	Booking     *booking.Service
	Matcher     *assignment.Service
	Coordinator *dispatch.Coordinator
	Location    *location.Service
	Realtime    *realtime.Server
	JWT         *middleware.JWTManager
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Logging(), middleware.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.String(200, "OK")
	})

	r.GET("/ws/user", deps.Realtime.HandleUser)
	r.GET("/ws/driver", deps.Realtime.HandleDriver)
	r.GET("/ws/admin", deps.Realtime.HandleAdmin)

	bookingHandler := handlers.NewBookingHandler(deps.Booking, deps.Coordinator)
	dispatchHandler := handlers.NewDispatchHandler(deps.Matcher, deps.Coordinator, deps.Booking, deps.Location)

	api := r.Group("/api", middleware.Auth(deps.JWT))

	api.POST("/bookings", middleware.RequireRole("user"), bookingHandler.Create)
	api.GET("/bookings/:id", bookingHandler.Get)
	api.GET("/bookings/track/:code", bookingHandler.GetByTrackingCode)
	api.GET("/bookings/:id/eligibility", bookingHandler.Eligibility)
	api.POST("/bookings/:id/confirm", bookingHandler.Confirm)
	api.POST("/bookings/:id/payment", middleware.RequireRole("admin"), bookingHandler.PaymentReceived)
	api.POST("/bookings/:id/cancel", middleware.RequireRole("user"), bookingHandler.Cancel)
	api.POST("/bookings/:id/rating", middleware.RequireRole("user", "driver"), bookingHandler.SubmitRating)
	api.POST("/bookings/:id/refund", middleware.RequireRole("admin"), bookingHandler.ResolveRefund)
	api.POST("/bookings/:id/override", middleware.RequireRole("admin"), bookingHandler.Override)

	api.GET("/bookings/:id/candidates", middleware.RequireRole("admin"), dispatchHandler.Candidates)
	api.POST("/bookings/:id/assign", middleware.RequireRole("admin"), dispatchHandler.Assign)
	api.POST("/bookings/:id/remove-driver", middleware.RequireRole("admin"), dispatchHandler.RemoveDriver)
	api.POST("/bookings/:id/start", middleware.RequireRole("driver"), dispatchHandler.Start)
	api.POST("/bookings/:id/complete", middleware.RequireRole("driver"), dispatchHandler.Complete)

	api.PUT("/drivers/:id/location", middleware.RequireRole("driver"), dispatchHandler.UpdateLocation)

	return r
}
