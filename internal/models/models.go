package models

import "time"

// HTTP request/response shapes. RPC payloads live in messages.go.

type CreateEventRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description *string   `json:"description,omitempty"`
	Capacity    int       `json:"capacity" binding:"required,min=1"`
	PriceCents  int64     `json:"price_cents" binding:"required,min=0"`
	StartsAt    time.Time `json:"starts_at" binding:"required"`
}

type CreateEventResponse struct {
	ID int64 `json:"id"`
}

// UpdateCapacityRequest raises or lowers an event's capacity. Capacity may
// not drop below the number of tickets already sold.
type UpdateCapacityRequest struct {
	Capacity int `json:"capacity" binding:"required,min=1"`
}

type SearchEventsRequest struct {
	Query string `form:"q" binding:"required"`
}
