package repository

import (
	"ticketd/internal/database"
)

// Repositories bundles all data access for dependency injection.
type Repositories struct {
	Events   *EventRepository
	Bookings *BookingRepository
	Ledger   *LedgerRepository
	Users    *UserRepository
}

func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Events:   NewEventRepository(db),
		Bookings: NewBookingRepository(db),
		Ledger:   NewLedgerRepository(db),
		Users:    NewUserRepository(db),
	}
}
