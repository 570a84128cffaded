// Package delivery tracks delivery-channel orders and driver capacity.
package delivery

import "time"

// Status enumerates delivery tracking states.
type Status string

const (
	StatusPreparing      Status = "preparando"
	StatusOutForDelivery Status = "saiu_entrega"
	StatusDelivered      Status = "entregue"
	StatusCancelled      Status = "cancelado"
)

// Order is the tracking record mirroring one delivery-channel order. It is
// keyed by the order id, so dispatching the same order twice is a natural
// no-op.
type Order struct {
	OrderID       string    `json:"order_id"`
	OrderSeq      int64     `json:"order_seq"`
	Customer      string    `json:"customer"`
	Address       string    `json:"address"`
	Phone         string    `json:"phone,omitempty"`
	DriverID      string    `json:"driver_id,omitempty"`
	Status        Status    `json:"status"`
	EstimatedTime string    `json:"estimated_time"`
	DistanceKM    float64   `json:"distance_km"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Driver is a delivery driver with a single capacity slot.
type Driver struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	Vehicle       string    `json:"vehicle"`
	Available     bool      `json:"available"`
	CurrentOrders int       `json:"current_orders"`
	CreatedAt     time.Time `json:"created_at"`
}

// CreateDriverRequest registers a driver.
type CreateDriverRequest struct {
	Name    string `json:"name" validate:"required,max=120"`
	Phone   string `json:"phone" validate:"required,max=30"`
	Vehicle string `json:"vehicle" validate:"required,max=60"`
}

// AssignRequest assigns a driver to a delivery.
type AssignRequest struct {
	DriverID string `json:"driver_id" validate:"required"`
}
