package common

import "fmt"

// Trade is the fill record of spec §3. It generalizes the teacher's
// common.Trade (Party/CounterParty/float64 price) to the maker/taker,
// integer-tick vocabulary the matching core works in.
type Trade struct {
	Id              int64
	Instrument      InstrumentId
	AggressorSide   Side
	MakerOrderId    OrderId
	TakerOrderId    OrderId
	MakerParticipant ParticipantId
	TakerParticipant ParticipantId
	Price           int64
	Quantity        int64
	Timestamp       Nanos
	IsAuctionUncross bool
}

func (t Trade) String() string {
	return fmt.Sprintf(
		"Trade{id=%d instrument=%d maker=%d taker=%d price=%d qty=%d auction=%t}",
		t.Id, t.Instrument, t.MakerOrderId, t.TakerOrderId, t.Price, t.Quantity, t.IsAuctionUncross,
	)
}
