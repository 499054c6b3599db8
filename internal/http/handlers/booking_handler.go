// README: Booking lifecycle handlers: create/get/confirm/payment/cancel/rating/refund.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"swiftcab/internal/http/middleware"
	"swiftcab/internal/modules/booking"
	"swiftcab/internal/modules/dispatch"
	"swiftcab/internal/types"
)

type BookingHandler struct {
	booking     *booking.Service
	coordinator *dispatch.Coordinator
}

func NewBookingHandler(svc *booking.Service, coord *dispatch.Coordinator) *BookingHandler {
	return &BookingHandler{booking: svc, coordinator: coord}
}

type createBookingReq struct {
	PickupLoc   string `json:"pickup_loc"`
	DropLoc     string `json:"drop_loc"`
	CabTypeID   string `json:"cab_type_id"`
	CabTypeName string `json:"cab_type_name"`
	PickupTime  string `json:"pickup_time"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
}

func (h *BookingHandler) Create(c *gin.Context) {
	var req createBookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	pickupTime, err := time.Parse(time.RFC3339, req.PickupTime)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid pickup_time")
		return
	}
	id, err := h.booking.Create(c.Request.Context(), booking.CreateCommand{
		UserID:      middleware.Subject(c),
		PickupLoc:   req.PickupLoc,
		DropLoc:     req.DropLoc,
		CabTypeID:   types.ID(req.CabTypeID),
		CabTypeName: req.CabTypeName,
		PickupTime:  pickupTime,
		TotalAmount: types.Money{Amount: req.Amount, Currency: req.Currency},
	})
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, map[string]any{"booking_id": id, "status": booking.StatusPending})
}

func (h *BookingHandler) Get(c *gin.Context) {
	b, provisional, err := h.coordinator.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, bookingView(b, provisional))
}

func (h *BookingHandler) GetByTrackingCode(c *gin.Context) {
	b, err := h.booking.GetByTrackingCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, bookingView(b, false))
}

// authorizeActor rejects callers acting on bookings that are not theirs: a
// user must own the booking, a driver must be the bound driver. Admin passes.
func (h *BookingHandler) authorizeActor(c *gin.Context) bool {
	role := c.GetString(middleware.ContextRole)
	if role == "admin" {
		return true
	}
	b, err := h.booking.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeBookingError(c, err)
		return false
	}
	subject := middleware.Subject(c)
	switch role {
	case "user":
		if b.UserID == subject {
			return true
		}
	case "driver":
		if b.DriverID != nil && *b.DriverID == subject {
			return true
		}
	}
	writeError(c, http.StatusForbidden, "forbidden")
	return false
}

func (h *BookingHandler) Confirm(c *gin.Context) {
	if !h.authorizeActor(c) {
		return
	}
	err := h.booking.Confirm(c.Request.Context(), booking.ConfirmCommand{
		BookingID:     types.ID(c.Param("id")),
		AdminOverride: c.GetString(middleware.ContextRole) == "admin",
	})
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"status": booking.StatusConfirmed})
}

func (h *BookingHandler) PaymentReceived(c *gin.Context) {
	err := h.booking.MarkPaymentReceived(c.Request.Context(), booking.PaymentReceivedCommand{
		BookingID: types.ID(c.Param("id")),
	})
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"payment_status": booking.PaymentCompleted})
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	if !h.authorizeActor(c) {
		return
	}
	var req cancelReq
	_ = c.ShouldBindJSON(&req)
	actor := booking.RoleUser
	if c.GetString(middleware.ContextRole) == "admin" {
		actor = booking.RoleAdmin
	}
	err := h.booking.Cancel(c.Request.Context(), booking.CancelCommand{
		BookingID: types.ID(c.Param("id")),
		Actor:     actor,
		Reason:    req.Reason,
	})
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"status": booking.StatusCancelled})
}

func (h *BookingHandler) Eligibility(c *gin.Context) {
	b, err := h.booking.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeBookingError(c, err)
		return
	}
	refund := booking.RefundEligibility(*b)
	userRating := booking.RatingEligibility(*b, booking.RoleUser, time.Now())
	driverRating := booking.RatingEligibility(*b, booking.RoleDriver, time.Now())
	writeJSON(c, http.StatusOK, map[string]any{
		"refund": map[string]any{
			"eligible":             refund.Eligible,
			"full_refund":          refund.FullRefund,
			"cancellation_allowed": refund.CancellationAllowed,
			"reason":               refund.Reason,
		},
		"user_rating":   map[string]any{"needed": userRating.Needed, "reason": userRating.Reason},
		"driver_rating": map[string]any{"needed": driverRating.Needed, "reason": driverRating.Reason},
	})
}

type ratingReq struct {
	TargetID string `json:"target_id"`
	Score    int    `json:"score"`
	Comment  string `json:"comment"`
}

func (h *BookingHandler) SubmitRating(c *gin.Context) {
	if !h.authorizeActor(c) {
		return
	}
	var req ratingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	rater := booking.RoleUser
	if c.GetString(middleware.ContextRole) == "driver" {
		rater = booking.RoleDriver
	}
	err := h.booking.SubmitRating(c.Request.Context(), booking.RatingCommand{
		BookingID: types.ID(c.Param("id")),
		Rater:     rater,
		TargetID:  types.ID(req.TargetID),
		Score:     req.Score,
		Comment:   req.Comment,
	})
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"submitted": true})
}

type refundResultReq struct {
	Succeeded bool `json:"succeeded"`
}

func (h *BookingHandler) ResolveRefund(c *gin.Context) {
	var req refundResultReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.booking.ResolveRefund(c.Request.Context(), booking.RefundResultCommand{
		BookingID: types.ID(c.Param("id")),
		Succeeded: req.Succeeded,
	})
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"resolved": true})
}

type overrideReq struct {
	Status string `json:"status"`
}

func (h *BookingHandler) Override(c *gin.Context) {
	var req overrideReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.booking.Override(c.Request.Context(), booking.OverrideCommand{
		BookingID: types.ID(c.Param("id")),
		To:        booking.Status(req.Status),
	})
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"status": req.Status})
}
