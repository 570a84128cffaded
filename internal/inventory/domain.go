// Package inventory tracks stock levels and their derived status bands.
package inventory

import "time"

// Band classifies a stock level against its thresholds.
type Band string

const (
	BandCritical Band = "critical"
	BandLow      Band = "low"
	BandNormal   Band = "normal"
	BandExcess   Band = "excess"
)

// BandFor computes the status band. It is a pure function of the inputs;
// the stored band is always recomputed on mutation, never trusted.
func BandFor(current, min, max float64) Band {
	switch {
	case current <= min*0.5:
		return BandCritical
	case current <= min:
		return BandLow
	case current > max:
		return BandExcess
	default:
		return BandNormal
	}
}

// Item is a tracked inventory product.
type Item struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Current   float64   `json:"current"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	Unit      string    `json:"unit"`
	CostPrice float64   `json:"cost_price"`
	Band      Band      `json:"band"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpsertItemRequest creates or replaces an inventory item.
type UpsertItemRequest struct {
	Name      string  `json:"name" validate:"required,max=120"`
	Current   float64 `json:"current"`
	Min       float64 `json:"min" validate:"gte=0"`
	Max       float64 `json:"max" validate:"gtefield=Min"`
	Unit      string  `json:"unit" validate:"required,max=20"`
	CostPrice float64 `json:"cost_price" validate:"gte=0"`
}

// RestockRequest adds stock to an item.
type RestockRequest struct {
	Qty float64 `json:"qty" validate:"required,gt=0"`
}
