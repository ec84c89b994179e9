package phase

import (
	"github.com/vantage-exchange/vantage/internal/book"
	"github.com/vantage-exchange/vantage/internal/common"
)

// uncrossResult is the outcome of a single-price auction uncross.
type uncrossResult struct {
	ClearingPrice int64
	MatchedQty    int64
	ImbalanceSide common.ImbalanceSide
	ImbalanceQty  int64
	Trades        []common.Trade
}

// candidatePrices collects every distinct resting price on either side —
// the only prices that can possibly maximize executable volume, since
// exec(p) is piecewise constant between them.
func candidatePrices(bids, asks []*book.PriceLevel) []int64 {
	seen := make(map[int64]struct{}, len(bids)+len(asks))
	var out []int64
	for _, l := range bids {
		if _, ok := seen[l.Price]; !ok {
			seen[l.Price] = struct{}{}
			out = append(out, l.Price)
		}
	}
	for _, l := range asks {
		if _, ok := seen[l.Price]; !ok {
			seen[l.Price] = struct{}{}
			out = append(out, l.Price)
		}
	}
	return out
}

func bidQtyAtOrAbove(bids []*book.PriceLevel, p int64) int64 {
	var total int64
	for _, l := range bids {
		if l.Price >= p {
			total += l.TotalQuantity
		}
	}
	return total
}

func askQtyAtOrBelow(asks []*book.PriceLevel, p int64) int64 {
	var total int64
	for _, l := range asks {
		if l.Price <= p {
			total += l.TotalQuantity
		}
	}
	return total
}

func absI64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// findClearingPrice runs spec §4.3's uncross objective: maximize the
// executable volume min(bidQty(p), askQty(p)); tie-break by minimizing the
// residual imbalance, then by distance to referencePrice, then by the
// lower price. referencePrice is the previous session close, or 0 if
// there isn't one yet (first session).
func findClearingPrice(bids, asks []*book.PriceLevel, referencePrice int64) (price int64, matched int64, ok bool) {
	candidates := candidatePrices(bids, asks)
	if len(candidates) == 0 {
		return 0, 0, false
	}

	bestIdx := -1
	var bestExec, bestImbalance, bestDistance int64
	for i, p := range candidates {
		bidQ := bidQtyAtOrAbove(bids, p)
		askQ := askQtyAtOrBelow(asks, p)
		exec := bidQ
		if askQ < exec {
			exec = askQ
		}
		if exec == 0 {
			continue
		}
		imbalance := absI64(bidQ - askQ)
		distance := absI64(p - referencePrice)

		better := bestIdx < 0
		if !better {
			switch {
			case exec != bestExec:
				better = exec > bestExec
			case imbalance != bestImbalance:
				better = imbalance < bestImbalance
			case distance != bestDistance:
				better = distance < bestDistance
			default:
				better = p < candidates[bestIdx]
			}
		}
		if better {
			bestIdx = i
			bestExec = exec
			bestImbalance = imbalance
			bestDistance = distance
		}
	}
	if bestIdx < 0 {
		return 0, 0, false
	}
	return candidates[bestIdx], bestExec, true
}

// fillAlloc is one order's share of an auction's matched quantity.
type fillAlloc struct {
	orderId     common.OrderId
	participant common.ParticipantId
	qty         int64
}

// allocate walks levels best-first (the caller passes them pre-sorted and
// pre-filtered to the qualifying side of the clearing price) filling
// orders in full until the marginal level is reached, then pro-rates that
// level by resting size — spec §4.3's "pro-rata matching at the clearing
// tier, retaining time priority for [fully filled] levels".
func allocate(b *book.OrderBook, levels []*book.PriceLevel, target int64) []fillAlloc {
	var out []fillAlloc
	remaining := target
	for _, level := range levels {
		if remaining <= 0 {
			break
		}
		ids := make([]common.OrderId, 0, len(level.Displayed)+len(level.Hidden))
		ids = append(ids, level.Displayed...)
		ids = append(ids, level.Hidden...)

		if remaining >= level.TotalQuantity {
			for _, id := range ids {
				o, ok := b.Get(id)
				if !ok || o.RemainingQty == 0 {
					continue
				}
				out = append(out, fillAlloc{id, o.Participant, o.RemainingQty})
			}
			remaining -= level.TotalQuantity
			continue
		}

		type marginal struct {
			id          common.OrderId
			participant common.ParticipantId
			alloc       int64
		}
		var ms []marginal
		var sumAlloc int64
		for _, id := range ids {
			o, ok := b.Get(id)
			if !ok || o.RemainingQty == 0 {
				continue
			}
			alloc := o.RemainingQty * remaining / level.TotalQuantity
			ms = append(ms, marginal{id, o.Participant, alloc})
			sumAlloc += alloc
		}
		leftover := remaining - sumAlloc
		for i := 0; leftover > 0 && i < len(ms); i++ {
			ms[i].alloc++
			leftover--
		}
		for _, m := range ms {
			if m.alloc > 0 {
				out = append(out, fillAlloc{m.id, m.participant, m.alloc})
			}
		}
		remaining = 0
	}
	return out
}

// pairTrades merges the two allocation queues into Trade records, all at
// the single clearing price. Both sides arrived resting, so "aggressor"
// carries no real meaning here; by convention the buy side is recorded as
// taker (documented simplification, see DESIGN.md).
func pairTrades(ids *common.IdSequence, instrument common.InstrumentId, price int64, ts common.Nanos, bidAllocs, askAllocs []fillAlloc) []common.Trade {
	var trades []common.Trade
	bi, ai := 0, 0
	var bRem, aRem int64
	if len(bidAllocs) > 0 {
		bRem = bidAllocs[0].qty
	}
	if len(askAllocs) > 0 {
		aRem = askAllocs[0].qty
	}
	for bi < len(bidAllocs) && ai < len(askAllocs) {
		qty := bRem
		if aRem < qty {
			qty = aRem
		}
		if qty <= 0 {
			break
		}
		trades = append(trades, common.Trade{
			Id:               ids.NextTradeId(),
			Instrument:       instrument,
			AggressorSide:    common.Buy,
			MakerOrderId:     askAllocs[ai].orderId,
			TakerOrderId:     bidAllocs[bi].orderId,
			MakerParticipant: askAllocs[ai].participant,
			TakerParticipant: bidAllocs[bi].participant,
			Price:            price,
			Quantity:         qty,
			Timestamp:        ts,
			IsAuctionUncross: true,
		})
		bRem -= qty
		aRem -= qty
		if bRem == 0 {
			bi++
			if bi < len(bidAllocs) {
				bRem = bidAllocs[bi].qty
			}
		}
		if aRem == 0 {
			ai++
			if ai < len(askAllocs) {
				aRem = askAllocs[ai].qty
			}
		}
	}
	return trades
}

// runUncross computes the clearing price, allocates fills, applies them to
// the book via Reduce (reusing the same reload-aware mutation the
// continuous sweep uses), and returns the auction result.
func runUncross(b *book.OrderBook, ids *common.IdSequence, instrument common.InstrumentId, referencePrice int64, ts common.Nanos) *uncrossResult {
	bids := b.BidLevels()
	asks := b.AskLevels()

	price, matched, ok := findClearingPrice(bids, asks, referencePrice)
	if !ok || matched == 0 {
		return &uncrossResult{}
	}

	var qualifyingBids []*book.PriceLevel
	for _, l := range bids {
		if l.Price >= price {
			qualifyingBids = append(qualifyingBids, l)
		}
	}
	var qualifyingAsks []*book.PriceLevel
	for _, l := range asks {
		if l.Price <= price {
			qualifyingAsks = append(qualifyingAsks, l)
		}
	}

	bidAllocs := allocate(b, qualifyingBids, matched)
	askAllocs := allocate(b, qualifyingAsks, matched)
	trades := pairTrades(ids, instrument, price, ts, bidAllocs, askAllocs)

	for _, a := range bidAllocs {
		b.Reduce(a.orderId, a.qty, ts)
	}
	for _, a := range askAllocs {
		b.Reduce(a.orderId, a.qty, ts)
	}
	b.RecordTrade(price, matched)
	b.RefreshBBO()

	bidQ := bidQtyAtOrAbove(bids, price)
	askQ := askQtyAtOrBelow(asks, price)
	imbSide := common.ImbalanceNone
	imbQty := int64(0)
	switch {
	case bidQ > askQ:
		imbSide = common.ImbalanceBuy
		imbQty = bidQ - askQ
	case askQ > bidQ:
		imbSide = common.ImbalanceSell
		imbQty = askQ - bidQ
	}

	return &uncrossResult{
		ClearingPrice: price,
		MatchedQty:    matched,
		ImbalanceSide: imbSide,
		ImbalanceQty:  imbQty,
		Trades:        trades,
	}
}
