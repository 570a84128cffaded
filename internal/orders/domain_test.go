package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForwardTransitionsAllowed(t *testing.T) {
	cases := []struct {
		channel Channel
		from    Status
		to      Status
	}{
		{ChannelDelivery, StatusPending, StatusAccepted},
		{ChannelDelivery, StatusAccepted, StatusPreparing},
		{ChannelDelivery, StatusPreparing, StatusReady},
		{ChannelDelivery, StatusReady, StatusDelivered},
		{ChannelLocal, StatusReady, StatusPickedUp},
		{ChannelPickup, StatusPending, StatusPreparing}, // skipping forward is fine
	}
	for _, tc := range cases {
		assert.True(t, CanTransition(tc.channel, tc.from, tc.to),
			"%s: %s -> %s", tc.channel, tc.from, tc.to)
	}
}

func TestBackwardTransitionsRejected(t *testing.T) {
	cases := []struct {
		channel Channel
		from    Status
		to      Status
	}{
		{ChannelDelivery, StatusAccepted, StatusPending},
		{ChannelDelivery, StatusReady, StatusPreparing},
		{ChannelDelivery, StatusDelivered, StatusReady},
		{ChannelLocal, StatusPickedUp, StatusPending},
		{ChannelDelivery, StatusPreparing, StatusPreparing},
	}
	for _, tc := range cases {
		assert.False(t, CanTransition(tc.channel, tc.from, tc.to),
			"%s: %s -> %s", tc.channel, tc.from, tc.to)
	}
}

func TestCancelReachableFromAnyNonTerminal(t *testing.T) {
	for _, from := range []Status{StatusPending, StatusAccepted, StatusPreparing, StatusReady} {
		assert.True(t, CanTransition(ChannelDelivery, from, StatusCancelled), "from %s", from)
	}
	for _, from := range []Status{StatusDelivered, StatusPickedUp, StatusCancelled} {
		assert.False(t, CanTransition(ChannelDelivery, from, StatusCancelled), "from %s", from)
	}
}

func TestTerminalMatchesChannel(t *testing.T) {
	assert.False(t, CanTransition(ChannelLocal, StatusReady, StatusDelivered))
	assert.False(t, CanTransition(ChannelDelivery, StatusReady, StatusPickedUp))
	assert.Equal(t, StatusDelivered, TerminalFor(ChannelDelivery))
	assert.Equal(t, StatusPickedUp, TerminalFor(ChannelPickup))
}

func TestRecalculate(t *testing.T) {
	o := Order{Items: []OrderItem{
		{Product: "pizza", Qty: 2, UnitPrice: 30},
		{Product: "refrigerante", Qty: 3, UnitPrice: 5.5},
	}}
	o.Recalculate()
	assert.Equal(t, 60.0, o.Items[0].Subtotal)
	assert.Equal(t, 16.5, o.Items[1].Subtotal)
	assert.Equal(t, 76.5, o.Total)
}

func TestValidRejectsMalformedRecords(t *testing.T) {
	good := Order{ID: "o1", Channel: ChannelLocal, Customer: "Ana",
		Items: []OrderItem{{Product: "suco", Qty: 1, UnitPrice: 8}}}
	assert.True(t, good.Valid())

	noCustomer := good
	noCustomer.Customer = ""
	assert.False(t, noCustomer.Valid())

	badQty := good
	badQty.Items = []OrderItem{{Product: "suco", Qty: 0, UnitPrice: 8}}
	assert.False(t, badQty.Valid())

	negativePrice := good
	negativePrice.Items = []OrderItem{{Product: "suco", Qty: 1, UnitPrice: -1}}
	assert.False(t, negativePrice.Valid())

	badChannel := good
	badChannel.Channel = "drone"
	assert.False(t, badChannel.Valid())
}
