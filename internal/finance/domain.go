// Package finance converts settled orders into ledger entries exactly once
// per order.
package finance

import "time"

// Method enumerates payment methods and their fee schedule.
type Method string

const (
	MethodCash    Method = "dinheiro"
	MethodDebit   Method = "debito"
	MethodCredit  Method = "credito"
	MethodPix     Method = "pix"
	MethodVoucher Method = "vale"
)

// feeRates is the fixed per-method acquirer fee schedule.
var feeRates = map[Method]float64{
	MethodCash:    0,
	MethodPix:     0.01,
	MethodDebit:   0.025,
	MethodCredit:  0.035,
	MethodVoucher: 0,
}

// FeeRate returns the fee rate for a method; unknown methods pay no fee.
func FeeRate(m Method) float64 {
	return feeRates[m]
}

// Payment statuses.
const (
	PaymentCompleted = "concluido"
	PaymentRefunded  = "estornado"
)

// Payment is the settlement of one order. At most one exists per order,
// enforced by a unique index on order_id.
type Payment struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	OrderSeq  int64     `json:"order_seq"`
	Amount    float64   `json:"amount"`
	Method    Method    `json:"method"`
	Fee       float64   `json:"fee"`
	NetAmount float64   `json:"net_amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Record kinds.
const (
	KindIncome  = "income"
	KindExpense = "expense"
)

// FinancialRecord is one immutable ledger line. Settlement writes one
// income line and, when the fee is positive, one paired expense line.
type FinancialRecord struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Category    string    `json:"category"`
	Amount      float64   `json:"amount"`
	OrderID     string    `json:"order_id,omitempty"`
	PaymentID   string    `json:"payment_id,omitempty"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// SalesSample mirrors one order line into the analytics stream.
type SalesSample struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	Product   string    `json:"product"`
	Qty       int       `json:"qty"`
	UnitPrice float64   `json:"unit_price"`
	Subtotal  float64   `json:"subtotal"`
	SoldAt    time.Time `json:"sold_at"`
}
