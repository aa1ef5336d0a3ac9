package handlers

import (
	"net/http"
	"strconv"

	"ticketd/internal/logger"
	"ticketd/internal/models"

	"github.com/gin-gonic/gin"
)

// CreateEvent handles POST /api/events.
func (h *Handlers) CreateEvent(c *gin.Context) {
	var req models.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event := &models.Event{
		Title:            req.Title,
		Description:      req.Description,
		Capacity:         req.Capacity,
		AvailableTickets: req.Capacity,
		PriceCents:       req.PriceCents,
		IsActive:         true,
		StartsAt:         req.StartsAt,
	}

	if err := h.repos.Events.Create(c.Request.Context(), event); err != nil {
		respondError(c, err)
		return
	}

	if h.search != nil {
		if err := h.search.IndexEvent(c.Request.Context(), event); err != nil {
			logger.WithContext(c.Request.Context()).Warn("Failed to index event",
				"event_id", event.ID, "error", err)
		}
	}

	c.JSON(http.StatusCreated, models.CreateEventResponse{ID: event.ID})
}

// ListEvents handles GET /api/events. With a ?q= parameter the listing goes
// through Elasticsearch, otherwise straight from Postgres.
func (h *Handlers) ListEvents(c *gin.Context) {
	if query := c.Query("q"); query != "" && h.search != nil {
		events, err := h.search.SearchEvents(c.Request.Context(), query)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, events)
		return
	}

	events, err := h.repos.Events.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, events)
}

// GetEvent handles GET /api/events/:id.
func (h *Handlers) GetEvent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event ID"})
		return
	}

	event, err := h.repos.Events.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if event == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		return
	}

	c.JSON(http.StatusOK, event)
}

// UpdateCapacity handles PATCH /api/events/:id/capacity.
func (h *Handlers) UpdateCapacity(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event ID"})
		return
	}

	var req models.UpdateCapacityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.repos.Events.UpdateCapacity(c.Request.Context(), id, req.Capacity); err != nil {
		respondError(c, err)
		return
	}

	event, err := h.repos.Events.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}
