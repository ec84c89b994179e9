package common

import "fmt"

// Order is the full order record of spec §3. It generalizes the
// teacher's internal/common.Order (which only covered limit/market) with
// the iceberg/hidden/stop/peg fields the matching core needs.
type Order struct {
	Id             OrderId
	ClientUUID     string // client-facing token, supplied by the client in the NewOrder frame
	Instrument     InstrumentId
	Participant    ParticipantId
	Side           Side
	Type           OrderType
	Price          int64 // ticks; meaningless for Market orders
	OriginalQty    int64
	RemainingQty   int64
	DisplayQty     int64 // iceberg's configured tranche size
	CurrentDisplay int64 // iceberg's currently visible tranche
	Hidden         bool
	TimeInForce    TimeInForce
	StopPrice      int64 // ticks; meaningless unless Type is Stop/StopLimit
	PegAnchor      PegAnchor
	Status         OrderStatus
	AcceptTime     Nanos
	LastUpdate     Nanos
}

// Invariants enforces the structural invariants of spec §3. It is used by
// tests and by the matching core's internal consistency checks; it never
// runs on every hot-path mutation (that would defeat the O(1) budget).
func (o *Order) Invariants() error {
	if o.RemainingQty < 0 || o.RemainingQty > o.OriginalQty {
		return fmt.Errorf("order %d: remaining %d out of [0,%d]", o.Id, o.RemainingQty, o.OriginalQty)
	}
	if o.Type == IcebergOrder {
		max := o.DisplayQty
		if o.RemainingQty < max {
			max = o.RemainingQty
		}
		if o.CurrentDisplay < 0 || o.CurrentDisplay > max {
			return fmt.Errorf("order %d: current_display %d out of [0,%d]", o.Id, o.CurrentDisplay, max)
		}
	}
	if o.Hidden && o.CurrentDisplay != 0 {
		return fmt.Errorf("order %d: hidden order has nonzero current_display", o.Id)
	}
	if o.RemainingQty == 0 && o.Status != StatusFilled && o.Status != StatusCancelled {
		return fmt.Errorf("order %d: remaining 0 but status %s", o.Id, o.Status)
	}
	return nil
}

// VisibleQty is the portion of the order that counts toward a level's
// visible_quantity: zero for hidden orders, current_display for icebergs,
// remaining otherwise.
func (o *Order) VisibleQty() int64 {
	if o.Hidden {
		return 0
	}
	if o.Type == IcebergOrder {
		return o.CurrentDisplay
	}
	return o.RemainingQty
}

func (o Order) String() string {
	return fmt.Sprintf(
		"Order{id=%d client=%s instrument=%d side=%s type=%s price=%d remaining=%d/%d status=%s}",
		o.Id, o.ClientUUID, o.Instrument, o.Side, o.Type, o.Price, o.RemainingQty, o.OriginalQty, o.Status,
	)
}
