// Package events implements the in-process event bus with Redis fan-out to
// other running instances.
package events

import (
	"encoding/json"
	"time"
)

// Event names published on the bus.
const (
	OrderCreated       = "order.created"
	OrderStatusChanged = "order.status_changed"
	PaymentProcessed   = "payment.processed"
	InventoryAdjusted  = "inventory.adjusted"
	DeliveryAssigned   = "delivery.assigned"
	DeliveryCompleted  = "delivery.completed"
	WebOrderAccepted   = "weborder.accepted"
)

// Event is a single bus message. Data carries the typed payload as JSON so
// events survive the trip through Redis unchanged.
type Event struct {
	Name   string          `json:"name"`
	Source string          `json:"source"`
	At     time.Time       `json:"at"`
	Data   json.RawMessage `json:"data"`
}

// Decode unmarshals the event payload into dest.
func (e Event) Decode(dest any) error {
	return json.Unmarshal(e.Data, dest)
}

// OrderCreatedData is the payload of OrderCreated.
type OrderCreatedData struct {
	OrderID string `json:"order_id"`
	Seq     int64  `json:"seq"`
	Channel string `json:"channel"`
}

// StatusChangedData is the payload of OrderStatusChanged.
type StatusChangedData struct {
	OrderID string `json:"order_id"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// PaymentProcessedData is the payload of PaymentProcessed.
type PaymentProcessedData struct {
	OrderID   string  `json:"order_id"`
	PaymentID string  `json:"payment_id"`
	Amount    float64 `json:"amount"`
	Method    string  `json:"method"`
}

// InventoryAdjustedData is the payload of InventoryAdjusted.
type InventoryAdjustedData struct {
	ItemID string  `json:"item_id"`
	Delta  float64 `json:"delta"`
	Band   string  `json:"band"`
}

// DeliveryAssignedData is the payload of DeliveryAssigned.
type DeliveryAssignedData struct {
	OrderID  string `json:"order_id"`
	DriverID string `json:"driver_id"`
}

// DeliveryCompletedData is the payload of DeliveryCompleted.
type DeliveryCompletedData struct {
	OrderID string `json:"order_id"`
}

// WebOrderAcceptedData is the payload of WebOrderAccepted.
type WebOrderAcceptedData struct {
	WebOrderID string `json:"weborder_id"`
	OrderSeq   int64  `json:"order_seq"`
}
