// README: End-to-end API flow tests over the full router with in-memory stores.
package http

import (
	"bytes"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"swiftcab/internal/http/middleware"
	"swiftcab/internal/modules/assignment"
	"swiftcab/internal/modules/booking"
	"swiftcab/internal/modules/dispatch"
	"swiftcab/internal/modules/driver"
	"swiftcab/internal/modules/events"
	"swiftcab/internal/modules/location"
	"swiftcab/internal/realtime"
	"swiftcab/internal/types"
)

type apiFixture struct {
	router      *gin.Engine
	jwt         *middleware.JWTManager
	drivers     *driver.MemStore
	userToken   string
	driverToken string
	adminToken  string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	bus := events.NewBus(nil)
	bookingStore := booking.NewMemStore()
	driverStore := driver.NewMemStore()

	matcher := assignment.NewService(bookingStore, driverStore, bus, assignment.NewStore(nil))
	bookingSvc := booking.NewService(bookingStore, bus, matcher)
	coordinator := dispatch.NewCoordinator(matcher, bookingStore, dispatch.Policy{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		CallTimeout: time.Second,
	})
	locationSvc := location.NewService(location.NewStore(nil), bus)

	jwt := middleware.NewJWTManager("test-secret")
	rt := realtime.NewServer(bus, jwt)

	driverStore.PutCabType(driver.CabType{ID: "ct_suv", Name: "SUV", Capacity: 6})
	typeID := types.ID("ct_suv")
	driverStore.Put(driver.Driver{
		ID:            "d1",
		Name:          "Asha",
		Status:        driver.StatusAvailable,
		VehicleTypeID: &typeID,
		VehicleModel:  "XUV700",
		VehicleReg:    "KA-01-1234",
	})

	userToken, _ := jwt.Generate("u1", "user", time.Hour)
	driverToken, _ := jwt.Generate("d1", "driver", time.Hour)
	adminToken, _ := jwt.Generate("a1", "admin", time.Hour)

	return &apiFixture{
		router: NewRouter(RouterDeps{
			Booking:     bookingSvc,
			Matcher:     matcher,
			Coordinator: coordinator,
			Location:    locationSvc,
			Realtime:    rt,
			JWT:         jwt,
		}),
		jwt:         jwt,
		drivers:     driverStore,
		userToken:   userToken,
		driverToken: driverToken,
		adminToken:  adminToken,
	}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func (f *apiFixture) createBooking(t *testing.T) string {
	t.Helper()
	w := f.do(t, stdhttp.MethodPost, "/api/bookings", f.userToken, map[string]any{
		"pickup_loc":  "Airport T1",
		"drop_loc":    "Downtown",
		"cab_type_id": "ct_suv",
		"pickup_time": time.Now().Add(time.Hour).Format(time.RFC3339),
		"amount":      45000,
		"currency":    "INR",
	})
	if w.Code != stdhttp.StatusCreated {
		t.Fatalf("create booking: %d %s", w.Code, w.Body.String())
	}
	return decode(t, w)["booking_id"].(string)
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(t, stdhttp.MethodGet, "/health", "", nil)
	if w.Code != stdhttp.StatusOK {
		t.Fatalf("health: %d", w.Code)
	}
}

func TestAPIRequiresAuth(t *testing.T) {
	f := newAPIFixture(t)
	if w := f.do(t, stdhttp.MethodPost, "/api/bookings", "", nil); w.Code != stdhttp.StatusUnauthorized {
		t.Fatalf("unauthenticated create: %d", w.Code)
	}
	if w := f.do(t, stdhttp.MethodPost, "/api/bookings", f.driverToken, nil); w.Code != stdhttp.StatusForbidden {
		t.Fatalf("driver creating booking: %d", w.Code)
	}
}

func TestFullRideFlow(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createBooking(t)

	// Confirm before payment is rejected for a plain user.
	if w := f.do(t, stdhttp.MethodPost, "/api/bookings/"+id+"/confirm", f.userToken, nil); w.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("confirm unpaid: %d %s", w.Code, w.Body.String())
	}

	if w := f.do(t, stdhttp.MethodPost, "/api/bookings/"+id+"/payment", f.adminToken, nil); w.Code != stdhttp.StatusOK {
		t.Fatalf("payment: %d %s", w.Code, w.Body.String())
	}
	if w := f.do(t, stdhttp.MethodPost, "/api/bookings/"+id+"/confirm", f.userToken, nil); w.Code != stdhttp.StatusOK {
		t.Fatalf("confirm: %d %s", w.Code, w.Body.String())
	}

	w := f.do(t, stdhttp.MethodGet, "/api/bookings/"+id+"/candidates", f.adminToken, nil)
	if w.Code != stdhttp.StatusOK {
		t.Fatalf("candidates: %d %s", w.Code, w.Body.String())
	}
	cands := decode(t, w)["candidates"].([]any)
	if len(cands) != 1 {
		t.Fatalf("candidates = %v", cands)
	}

	w = f.do(t, stdhttp.MethodPost, "/api/bookings/"+id+"/assign", f.adminToken, map[string]any{"driver_id": "d1"})
	if w.Code != stdhttp.StatusOK {
		t.Fatalf("assign: %d %s", w.Code, w.Body.String())
	}
	res := decode(t, w)
	if res["confirmed"] != true {
		t.Fatalf("assign not confirmed: %v", res)
	}

	// Repeat assignment is idempotent.
	if w := f.do(t, stdhttp.MethodPost, "/api/bookings/"+id+"/assign", f.adminToken, map[string]any{"driver_id": "d1"}); w.Code != stdhttp.StatusOK {
		t.Fatalf("repeat assign: %d %s", w.Code, w.Body.String())
	}

	if w := f.do(t, stdhttp.MethodPost, "/api/bookings/"+id+"/start", f.driverToken, nil); w.Code != stdhttp.StatusOK {
		t.Fatalf("start: %d %s", w.Code, w.Body.String())
	}
	if w := f.do(t, stdhttp.MethodPut, "/api/drivers/d1/location", f.driverToken, map[string]any{
		"booking_id": id, "user_id": "u1", "lat": 12.97, "lng": 77.59,
	}); w.Code != stdhttp.StatusOK {
		t.Fatalf("location: %d %s", w.Code, w.Body.String())
	}
	if w := f.do(t, stdhttp.MethodPost, "/api/bookings/"+id+"/complete", f.driverToken, nil); w.Code != stdhttp.StatusOK {
		t.Fatalf("complete: %d %s", w.Code, w.Body.String())
	}

	w = f.do(t, stdhttp.MethodGet, "/api/bookings/"+id, f.userToken, nil)
	view := decode(t, w)
	if view["status"] != string(booking.StatusCompleted) {
		t.Fatalf("final view: %v", view)
	}
	if _, ok := view["completed_at"]; !ok {
		t.Fatalf("completed_at missing: %v", view)
	}

	if w := f.do(t, stdhttp.MethodPost, "/api/bookings/"+id+"/rating", f.userToken, map[string]any{
		"score": 5, "comment": "great ride",
	}); w.Code != stdhttp.StatusOK {
		t.Fatalf("rating: %d %s", w.Code, w.Body.String())
	}

	// Tracking-code lookup mirrors the id view.
	code := view["tracking_code"].(string)
	w = f.do(t, stdhttp.MethodGet, "/api/bookings/track/"+code, f.userToken, nil)
	if w.Code != stdhttp.StatusOK || decode(t, w)["booking_id"] != id {
		t.Fatalf("tracking lookup: %d %s", w.Code, w.Body.String())
	}
}

func TestCancelAndRefundFlow(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createBooking(t)

	if w := f.do(t, stdhttp.MethodPost, "/api/bookings/"+id+"/payment", f.adminToken, nil); w.Code != stdhttp.StatusOK {
		t.Fatalf("payment: %d", w.Code)
	}

	w := f.do(t, stdhttp.MethodGet, "/api/bookings/"+id+"/eligibility", f.userToken, nil)
	if w.Code != stdhttp.StatusOK {
		t.Fatalf("eligibility: %d %s", w.Code, w.Body.String())
	}
	refund := decode(t, w)["refund"].(map[string]any)
	if refund["eligible"] != true || refund["full_refund"] != true {
		t.Fatalf("eligibility view: %v", refund)
	}

	if w := f.do(t, stdhttp.MethodPost, "/api/bookings/"+id+"/cancel", f.userToken, map[string]any{"reason": "plans changed"}); w.Code != stdhttp.StatusOK {
		t.Fatalf("cancel: %d %s", w.Code, w.Body.String())
	}
	w = f.do(t, stdhttp.MethodGet, "/api/bookings/"+id, f.userToken, nil)
	if decode(t, w)["refund_status"] != string(booking.RefundInitiated) {
		t.Fatalf("refund not initiated: %s", w.Body.String())
	}

	if w := f.do(t, stdhttp.MethodPost, "/api/bookings/"+id+"/refund", f.adminToken, map[string]any{"succeeded": true}); w.Code != stdhttp.StatusOK {
		t.Fatalf("resolve refund: %d %s", w.Code, w.Body.String())
	}
	w = f.do(t, stdhttp.MethodGet, "/api/bookings/"+id, f.userToken, nil)
	if decode(t, w)["refund_status"] != string(booking.RefundProcessed) {
		t.Fatalf("refund not processed: %s", w.Body.String())
	}

	// Cancelling again is rejected by the eligibility engine.
	if w := f.do(t, stdhttp.MethodPost, "/api/bookings/"+id+"/cancel", f.userToken, map[string]any{"reason": "again"}); w.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("second cancel: %d %s", w.Code, w.Body.String())
	}
}

func TestOwnershipGuards(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createBooking(t)

	otherUser, _ := f.jwt.Generate("u2", "user", time.Hour)
	otherDriver, _ := f.jwt.Generate("d2", "driver", time.Hour)

	if w := f.do(t, stdhttp.MethodPost, "/api/bookings/"+id+"/payment", f.adminToken, nil); w.Code != stdhttp.StatusOK {
		t.Fatalf("payment: %d", w.Code)
	}

	if w := f.do(t, stdhttp.MethodPost, "/api/bookings/"+id+"/confirm", otherUser, nil); w.Code != stdhttp.StatusForbidden {
		t.Fatalf("foreign confirm: %d %s", w.Code, w.Body.String())
	}
	if w := f.do(t, stdhttp.MethodPost, "/api/bookings/"+id+"/cancel", otherUser, map[string]any{"reason": "hijack"}); w.Code != stdhttp.StatusForbidden {
		t.Fatalf("foreign cancel: %d %s", w.Code, w.Body.String())
	}
	if w := f.do(t, stdhttp.MethodPost, "/api/bookings/"+id+"/rating", otherUser, map[string]any{"score": 1}); w.Code != stdhttp.StatusForbidden {
		t.Fatalf("foreign rating: %d %s", w.Code, w.Body.String())
	}
	// A driver not bound to the booking is rejected before any domain check.
	if w := f.do(t, stdhttp.MethodPost, "/api/bookings/"+id+"/rating", otherDriver, map[string]any{"score": 1}); w.Code != stdhttp.StatusForbidden {
		t.Fatalf("unbound driver rating: %d %s", w.Code, w.Body.String())
	}

	// The owner proceeds normally.
	if w := f.do(t, stdhttp.MethodPost, "/api/bookings/"+id+"/confirm", f.userToken, nil); w.Code != stdhttp.StatusOK {
		t.Fatalf("owner confirm: %d %s", w.Code, w.Body.String())
	}
	if w := f.do(t, stdhttp.MethodPost, "/api/bookings/"+id+"/cancel", f.userToken, map[string]any{"reason": "mine"}); w.Code != stdhttp.StatusOK {
		t.Fatalf("owner cancel: %d %s", w.Code, w.Body.String())
	}
}

func TestErrorMapping(t *testing.T) {
	f := newAPIFixture(t)

	if w := f.do(t, stdhttp.MethodGet, "/api/bookings/nope", f.userToken, nil); w.Code != stdhttp.StatusNotFound {
		t.Fatalf("unknown booking: %d", w.Code)
	}

	id := f.createBooking(t)
	// Assigning a pending booking is an invalid trigger.
	if w := f.do(t, stdhttp.MethodPost, "/api/bookings/"+id+"/assign", f.adminToken, map[string]any{"driver_id": "d1"}); w.Code != stdhttp.StatusConflict {
		t.Fatalf("assign pending: %d %s", w.Code, w.Body.String())
	}
	if w := f.do(t, stdhttp.MethodPost, "/api/bookings/"+id+"/assign", f.adminToken, map[string]any{}); w.Code != stdhttp.StatusBadRequest {
		t.Fatalf("assign missing driver_id: %d", w.Code)
	}
	if w := f.do(t, stdhttp.MethodPost, "/api/bookings/"+id+"/override", f.userToken, map[string]any{"status": "confirmed"}); w.Code != stdhttp.StatusForbidden {
		t.Fatalf("user override: %d", w.Code)
	}
	if w := f.do(t, stdhttp.MethodPost, "/api/bookings/"+id+"/override", f.adminToken, map[string]any{"status": "bogus"}); w.Code != stdhttp.StatusBadRequest {
		t.Fatalf("bogus override: %d %s", w.Code, w.Body.String())
	}
}
