package domain

import "time"

// Reservation statuses. A reservation is a soft, reversible hold on stock
// made during checkout; it is distinct from a decrement, which consumes
// stock irreversibly at order confirmation.
const (
	ReservationStatusActive   = "active"
	ReservationStatusReleased = "released"
	ReservationStatusConsumed = "consumed"
	ReservationStatusExpired  = "expired"
)

// StockReservation records one held size bucket quantity for a checkout
// session. Active reservations past ExpiresAt are swept back into stock by a
// background job.
type StockReservation struct {
	ID         string    `json:"id"`
	ProductID  string    `json:"product_id"`
	Size       string    `json:"size"`
	Quantity   int       `json:"quantity"`
	CheckoutID string    `json:"checkout_id"`
	Status     string    `json:"status"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}
