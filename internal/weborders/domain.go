// Package weborders ingests orders submitted through the customer-facing
// channel and promotes accepted ones into internal orders at most once.
package weborders

import "time"

// Status enumerates web-order queue states.
type Status string

const (
	StatusPending  Status = "web-pendente"
	StatusAccepted Status = "aceito"
	StatusRejected Status = "rejeitado"
)

// Item is one requested line in the submitted payload.
type Item struct {
	Product   string  `json:"product"`
	Qty       int     `json:"qty"`
	UnitPrice float64 `json:"unit_price"`
}

// WebOrder sits in the pending queue until staff accepts or rejects it.
// AcceptedSeq is the durable cross-reference to the minted internal order;
// once set, further accepts are no-ops.
type WebOrder struct {
	ID          string     `json:"id"`
	Customer    string     `json:"customer"`
	Phone       string     `json:"phone"`
	Address     string     `json:"address"`
	Notes       string     `json:"notes,omitempty"`
	Items       []Item     `json:"items"`
	Status      Status     `json:"status"`
	AcceptedSeq int64      `json:"accepted_order_seq,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
}

// SubmitRequest is the external intake payload.
type SubmitRequest struct {
	Customer string          `json:"customer" validate:"required,max=120"`
	Phone    string          `json:"phone" validate:"required,max=30"`
	Address  string          `json:"address" validate:"required,max=240"`
	Notes    string          `json:"notes,omitempty" validate:"max=500"`
	Items    []SubmitItemReq `json:"items" validate:"required,min=1,dive"`
}

// SubmitItemReq is one submitted line item.
type SubmitItemReq struct {
	Product   string  `json:"product" validate:"required,max=120"`
	Qty       int     `json:"qty" validate:"required,gt=0"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
}
