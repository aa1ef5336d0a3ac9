// Package keys builds every Redis key scope used across the codebase.
// All lock scopes and rate-limit keys go through here so call sites cannot
// drift apart on formatting.
package keys

import "fmt"

// Event returns the lock scope guarding an event's capacity.
func Event(eventID int64) string {
	return fmt.Sprintf("event:%d", eventID)
}

// Booking returns the lock scope guarding a single booking's lifecycle.
func Booking(bookingID int64) string {
	return fmt.Sprintf("booking:%d", bookingID)
}

// RateBook returns the rate-limit key for a user's booking attempts.
func RateBook(userID int64) string {
	return fmt.Sprintf("user:%d:book", userID)
}

// Reconcile returns the lock scope serializing the capacity reconciliation
// sweep across replicas.
func Reconcile() string {
	return "reconcile:capacity"
}

// RateCancel returns the rate-limit key for a user's cancellation attempts.
func RateCancel(userID int64) string {
	return fmt.Sprintf("user:%d:cancel", userID)
}
