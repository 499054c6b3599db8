// README: Dispatch handlers: candidates, assign, remove, start, complete, location.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"swiftcab/internal/http/middleware"
	"swiftcab/internal/modules/assignment"
	"swiftcab/internal/modules/booking"
	"swiftcab/internal/modules/dispatch"
	"swiftcab/internal/modules/location"
	"swiftcab/internal/types"
)

type DispatchHandler struct {
	matcher     *assignment.Service
	coordinator *dispatch.Coordinator
	booking     *booking.Service
	location    *location.Service
}

func NewDispatchHandler(
	matcher *assignment.Service,
	coordinator *dispatch.Coordinator,
	bookingSvc *booking.Service,
	locationSvc *location.Service,
) *DispatchHandler {
	return &DispatchHandler{
		matcher:     matcher,
		coordinator: coordinator,
		booking:     bookingSvc,
		location:    locationSvc,
	}
}

func (h *DispatchHandler) Candidates(c *gin.Context) {
	drivers, err := h.matcher.Candidates(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeBookingError(c, err)
		return
	}
	out := make([]map[string]any, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, map[string]any{
			"driver_id":     d.ID,
			"name":          d.Name,
			"vehicle_model": d.VehicleModel,
			"vehicle_reg":   d.VehicleReg,
		})
	}
	writeJSON(c, http.StatusOK, map[string]any{"candidates": out})
}

type assignReq struct {
	DriverID string `json:"driver_id"`
}

func (h *DispatchHandler) Assign(c *gin.Context) {
	var req assignReq
	if err := c.ShouldBindJSON(&req); err != nil || req.DriverID == "" {
		writeError(c, http.StatusBadRequest, "missing driver_id")
		return
	}
	res, err := h.coordinator.AssignDriver(c.Request.Context(), types.ID(c.Param("id")), types.ID(req.DriverID))
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{
		"success":   true,
		"confirmed": res.Confirmed,
		"booking":   bookingView(res.Booking, !res.Confirmed),
	})
}

func (h *DispatchHandler) RemoveDriver(c *gin.Context) {
	res, err := h.coordinator.RemoveDriver(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{
		"success": true,
		"booking": bookingView(res.Booking, !res.Confirmed),
	})
}

func (h *DispatchHandler) Start(c *gin.Context) {
	err := h.booking.Start(c.Request.Context(), booking.StartCommand{
		BookingID: types.ID(c.Param("id")),
		DriverID:  middleware.Subject(c),
	})
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"status": booking.StatusInProgress})
}

func (h *DispatchHandler) Complete(c *gin.Context) {
	err := h.booking.Complete(c.Request.Context(), booking.CompleteCommand{
		BookingID: types.ID(c.Param("id")),
		DriverID:  middleware.Subject(c),
	})
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"status": booking.StatusCompleted})
}

type locationReq struct {
	BookingID string  `json:"booking_id"`
	UserID    string  `json:"user_id"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
}

func (h *DispatchHandler) UpdateLocation(c *gin.Context) {
	var req locationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.location.Apply(c.Request.Context(), location.Update{
		DriverID:  types.ID(c.Param("id")),
		BookingID: types.ID(req.BookingID),
		UserID:    types.ID(req.UserID),
		Lat:       req.Lat,
		Lng:       req.Lng,
	})
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"ok": true})
}
