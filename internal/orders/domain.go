// Package orders holds the order lifecycle: records, sequence numbers and
// the status state machine every side-effect module hangs off.
package orders

import (
	"errors"
	"time"
)

// Channel enumerates order entry channels.
type Channel string

const (
	// ChannelLocal is an in-person table order.
	ChannelLocal Channel = "local"
	// ChannelDelivery is a delivery order.
	ChannelDelivery Channel = "delivery"
	// ChannelPickup is a counter-pickup order.
	ChannelPickup Channel = "retirada"
)

// Status enumerates order lifecycle states.
type Status string

const (
	StatusPending   Status = "pendente"
	StatusAccepted  Status = "aceito"
	StatusPreparing Status = "preparando"
	StatusReady     Status = "pronto"
	StatusDelivered Status = "entregue"
	StatusPickedUp  Status = "retirado"
	StatusCancelled Status = "cancelado"
)

// statusRank orders the forward lifecycle. Both terminals share the top
// rank so neither can follow the other.
var statusRank = map[Status]int{
	StatusPending:   1,
	StatusAccepted:  2,
	StatusPreparing: 3,
	StatusReady:     4,
	StatusDelivered: 5,
	StatusPickedUp:  5,
}

// ErrBadTransition rejects a move into an earlier or mismatched state.
var ErrBadTransition = errors.New("invalid status transition")

// IsTerminal reports whether s ends the lifecycle.
func IsTerminal(s Status) bool {
	return s == StatusDelivered || s == StatusPickedUp || s == StatusCancelled
}

// Settled reports whether s is the delivered/picked-up terminal that
// triggers financial synchronization.
func Settled(s Status) bool {
	return s == StatusDelivered || s == StatusPickedUp
}

// TerminalFor returns the settling terminal for the channel.
func TerminalFor(ch Channel) Status {
	if ch == ChannelDelivery {
		return StatusDelivered
	}
	return StatusPickedUp
}

// CanTransition validates a status move. The lifecycle only advances
// forward; cancellation is reachable from any non-terminal state.
func CanTransition(ch Channel, from, to Status) bool {
	if from == to {
		return false
	}
	if to == StatusCancelled {
		return !IsTerminal(from)
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	fromRank, ok := statusRank[from]
	if !ok || IsTerminal(from) {
		return false
	}
	if toRank <= fromRank {
		return false
	}
	// each channel has exactly one settling terminal
	if (to == StatusDelivered || to == StatusPickedUp) && to != TerminalFor(ch) {
		return false
	}
	return true
}

// OrderItem is a priced line on an order.
type OrderItem struct {
	Product   string  `json:"product"`
	Qty       int     `json:"qty"`
	UnitPrice float64 `json:"unit_price"`
	Subtotal  float64 `json:"subtotal"`
}

// Order is a customer request tracked from creation to settlement.
type Order struct {
	ID          string      `json:"id"`
	Seq         int64       `json:"seq"`
	Channel     Channel     `json:"channel"`
	Status      Status      `json:"status"`
	Customer    string      `json:"customer"`
	Phone       string      `json:"phone,omitempty"`
	Address     string      `json:"address,omitempty"`
	Table       string      `json:"table,omitempty"`
	Items       []OrderItem `json:"items"`
	Total       float64     `json:"total"`
	PayMethod   string      `json:"payment_method,omitempty"`
	Notes       string      `json:"notes,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// Valid reports whether a stored order record is usable. Malformed records
// are dropped on read rather than propagated.
func (o *Order) Valid() bool {
	if o.ID == "" || o.Customer == "" || len(o.Items) == 0 {
		return false
	}
	switch o.Channel {
	case ChannelLocal, ChannelDelivery, ChannelPickup:
	default:
		return false
	}
	for _, it := range o.Items {
		if it.Product == "" || it.Qty <= 0 || it.UnitPrice < 0 {
			return false
		}
	}
	return true
}

// Recalculate recomputes line subtotals and the order total.
func (o *Order) Recalculate() {
	var total float64
	for i := range o.Items {
		o.Items[i].Subtotal = float64(o.Items[i].Qty) * o.Items[i].UnitPrice
		total += o.Items[i].Subtotal
	}
	o.Total = total
}
