package orders

// CreateOrderRequest is the intake payload for a new order.
type CreateOrderRequest struct {
	Channel  Channel `json:"channel" validate:"required,oneof=local delivery retirada"`
	Customer string  `json:"customer" validate:"required,max=120"`
	Phone    string  `json:"phone,omitempty" validate:"max=30"`
	Address  string  `json:"address,omitempty" validate:"max=240,required_if=Channel delivery"`
	Table    string  `json:"table,omitempty" validate:"max=20"`
	Notes    string  `json:"notes,omitempty" validate:"max=500"`
	// PayMethod is recorded up front and read at settlement time.
	PayMethod string               `json:"payment_method,omitempty" validate:"omitempty,oneof=dinheiro debito credito pix vale"`
	Items     []CreateOrderItemReq `json:"items" validate:"required,min=1,dive"`
}

// CreateOrderItemReq is one requested line item.
type CreateOrderItemReq struct {
	Product   string  `json:"product" validate:"required,max=120"`
	Qty       int     `json:"qty" validate:"required,gt=0"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
}

// UpdateStatusRequest moves an order through the lifecycle.
type UpdateStatusRequest struct {
	Status Status `json:"status" validate:"required,oneof=pendente aceito preparando pronto entregue retirado cancelado"`
}

// UpdateItemsRequest replaces the line items of a not-yet-advanced order.
type UpdateItemsRequest struct {
	Items []CreateOrderItemReq `json:"items" validate:"required,min=1,dive"`
}
