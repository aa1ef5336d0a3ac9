package handlers

import (
	"errors"
	"net/http"

	"ticketd/internal/apperr"
	"ticketd/internal/booking"
	"ticketd/internal/repository"
	"ticketd/internal/search"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	bookings *booking.Service
	repos    *repository.Repositories
	search   *search.Client
}

func NewHandlers(bookings *booking.Service, repos *repository.Repositories, searchClient *search.Client) *Handlers {
	return &Handlers{
		bookings: bookings,
		repos:    repos,
		search:   searchClient,
	}
}

// respondError maps the error taxonomy onto HTTP status codes. This is the
// only place domain errors become status codes.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case apperr.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrEventNotFound), errors.Is(err, apperr.ErrBookingNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrForbidden), errors.Is(err, apperr.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, apperr.ErrInsufficientTickets):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, apperr.ErrLockNotAcquired):
		status = http.StatusServiceUnavailable
	case errors.Is(err, apperr.ErrTimeout):
		status = http.StatusGatewayTimeout
	}

	c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}
