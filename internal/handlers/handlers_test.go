package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketd/internal/apperr"
)

func TestRespondErrorStatusCodes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err    error
		status int
	}{
		{apperr.Validation("ticket quantity must be at least 1"), http.StatusBadRequest},
		{apperr.ErrEventNotFound, http.StatusNotFound},
		{apperr.ErrBookingNotFound, http.StatusNotFound},
		{apperr.ErrForbidden, http.StatusForbidden},
		{apperr.ErrUnauthorized, http.StatusForbidden},
		{apperr.ErrInsufficientTickets, http.StatusConflict},
		{apperr.ErrRateLimited, http.StatusTooManyRequests},
		{apperr.ErrLockNotAcquired, http.StatusServiceUnavailable},
		{apperr.ErrTimeout, http.StatusGatewayTimeout},
		{fmt.Errorf("wrapped: %w", apperr.ErrInsufficientTickets), http.StatusConflict},
		{errors.New("pq: connection refused"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		respondError(c, tc.err)

		assert.Equal(t, tc.status, w.Code, "error %v", tc.err)

		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, tc.err.Error(), body["error"])
	}
}

// bookingRouter wires only the booking endpoints, without auth middleware,
// so binding and auth-context failures can be exercised in isolation.
func bookingRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/bookings", h.CreateBooking)
	r.PATCH("/api/bookings/cancel", h.CancelBooking)
	r.PATCH("/api/bookings/confirmPayment", h.ConfirmPayment)
	r.POST("/api/bookings/validate", h.ValidateBooking)
	return r
}

func TestCreateBookingRejectsMalformedBody(t *testing.T) {
	r := bookingRouter(&Handlers{})

	req, _ := http.NewRequest("POST", "/api/bookings", bytes.NewBufferString(`{"event_id": "seven"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateBookingRejectsMissingFields(t *testing.T) {
	r := bookingRouter(&Handlers{})

	// ticket_quantity is required.
	req, _ := http.NewRequest("POST", "/api/bookings", bytes.NewBufferString(`{"event_id": 1}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateBookingAcceptsZeroAmount(t *testing.T) {
	r := bookingRouter(&Handlers{})

	// A free event books with a zero total. The body binds, so the request
	// reaches the auth check instead of failing validation.
	body := `{"event_id": 1, "ticket_quantity": 2, "total_amount_cents": 0}`
	req, _ := http.NewRequest("POST", "/api/bookings", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateBookingRejectsNegativeAmount(t *testing.T) {
	r := bookingRouter(&Handlers{})

	body := `{"event_id": 1, "ticket_quantity": 2, "total_amount_cents": -100}`
	req, _ := http.NewRequest("POST", "/api/bookings", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateBookingRequiresAuthenticatedUser(t *testing.T) {
	r := bookingRouter(&Handlers{})

	body := `{"event_id": 1, "ticket_quantity": 2, "total_amount_cents": 5000}`
	req, _ := http.NewRequest("POST", "/api/bookings", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// Valid body but no user in the request context.
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCancelBookingRejectsMissingBookingID(t *testing.T) {
	r := bookingRouter(&Handlers{})

	req, _ := http.NewRequest("PATCH", "/api/bookings/cancel", bytes.NewBufferString(`{"reason": "no id"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConfirmPaymentRejectsMissingTransaction(t *testing.T) {
	r := bookingRouter(&Handlers{})

	req, _ := http.NewRequest("PATCH", "/api/bookings/confirmPayment", bytes.NewBufferString(`{"booking_id": 1}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidateBookingRejectsMissingEventID(t *testing.T) {
	r := bookingRouter(&Handlers{})

	req, _ := http.NewRequest("POST", "/api/bookings/validate", bytes.NewBufferString(`{"booking_id": 1}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateEventRejectsInvalidCapacity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := &Handlers{}
	r.POST("/api/events", h.CreateEvent)

	body := `{"title": "Bad Event", "capacity": 0, "price_cents": 1000, "starts_at": "2026-12-01T19:00:00Z"}`
	req, _ := http.NewRequest("POST", "/api/events", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
