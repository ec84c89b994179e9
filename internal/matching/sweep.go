package matching

import (
	"math"

	"github.com/vantage-exchange/vantage/internal/book"
	"github.com/vantage-exchange/vantage/internal/common"
	"github.com/vantage-exchange/vantage/internal/events"
)

// validateOrder enforces spec §4.2's entry-validation table: bad tick,
// bad lot, missing price, missing stop-trigger price are all rejected at
// entry (spec §7's "Validation" category), never surfaced as a fatal
// error.
func validateOrder(cfg Config, o *common.Order) error {
	if o.OriginalQty <= 0 || o.OriginalQty%cfg.LotSize != 0 {
		return common.ErrBadLot
	}
	switch o.Type {
	case common.LimitOrder, common.IcebergOrder, common.HiddenOrder:
		if o.Price <= 0 {
			return common.ErrMissingPrice
		}
		if o.Price%cfg.TickSize != 0 {
			return common.ErrBadTick
		}
	case common.StopOrder:
		if o.StopPrice <= 0 {
			return common.ErrMissingStopPrice
		}
	case common.StopLimitOrder:
		if o.StopPrice <= 0 {
			return common.ErrMissingStopPrice
		}
		if o.Price <= 0 {
			return common.ErrMissingPrice
		}
		if o.Price%cfg.TickSize != 0 {
			return common.ErrBadTick
		}
	case common.MarketOrder, common.PegOrder:
		// Market carries no price; peg's price is computed at submit time.
	}
	if o.Type == common.IcebergOrder && (o.DisplayQty <= 0 || o.DisplayQty > o.OriginalQty) {
		return common.ErrInvalidDisplayQty
	}
	return nil
}

// resolvePegPrice computes a peg order's price from its configured
// anchor (spec §4.2: "price computed at insert from configured anchor;
// not recomputed on BBO moves"). Returns an error if the anchor side of
// the book has no reference price to peg to.
func resolvePegPrice(b *book.OrderBook, o *common.Order) (int64, error) {
	bid, hasBid := b.BestBid()
	ask, hasAsk := b.BestAsk()
	switch o.PegAnchor {
	case common.PegBestBid:
		if !hasBid {
			return 0, common.ErrPegNoReference
		}
		return bid, nil
	case common.PegBestAsk:
		if !hasAsk {
			return 0, common.ErrPegNoReference
		}
		return ask, nil
	default: // PegMid
		if !hasBid || !hasAsk {
			return 0, common.ErrPegNoReference
		}
		return (bid + ask) / 2, nil
	}
}

// priceLimitFor returns the sweep's price boundary: nil for a Market
// order (sweep at any price), the order's own price otherwise.
func priceLimitFor(o *common.Order) *int64 {
	if o.Type == common.MarketOrder {
		return nil
	}
	p := o.Price
	return &p
}

// fokAvailability is the priceLimit passed to book.AvailableLiquidity
// when pre-checking a fill-or-kill order: the order's own limit, or an
// unbounded extreme for a market order.
func fokAvailability(b *book.OrderBook, o *common.Order) int64 {
	if o.Type != common.MarketOrder {
		return o.Price
	}
	if o.Side == common.Buy {
		return math.MaxInt64
	}
	return math.MinInt64
}

// doSubmit runs one order through validation, sweep, and resting/
// cancellation — the single normal entry path both fresh submissions and
// activated stop orders go through (spec §4.2's stop-activation note:
// "re-enter through the normal entry path").
func (e *Engine) doSubmit(o *common.Order) (SubmitResult, error) {
	if err := validateOrder(e.cfg, o); err != nil {
		o.Status = common.StatusRejected
		e.publish(events.Event{Kind: events.KindOrderRejected, Order: o, RejectReason: err, Timestamp: o.AcceptTime})
		return SubmitResult{Order: o, Rejected: true, Reason: err}, nil
	}

	if o.Type == common.PegOrder {
		price, err := resolvePegPrice(e.book, o)
		if err != nil {
			o.Status = common.StatusRejected
			e.publish(events.Event{Kind: events.KindOrderRejected, Order: o, RejectReason: err, Timestamp: o.AcceptTime})
			return SubmitResult{Order: o, Rejected: true, Reason: err}, nil
		}
		o.Price = price
	}

	if o.Type == common.StopOrder || o.Type == common.StopLimitOrder {
		e.stops.add(o)
		e.publish(events.Event{Kind: events.KindOrderAccepted, Order: o, Timestamp: o.AcceptTime})
		return SubmitResult{Order: o}, nil
	}

	if o.TimeInForce == common.FOK {
		limit := fokAvailability(e.book, o)
		if e.book.AvailableLiquidity(o.Side, limit) < o.RemainingQty {
			o.Status = common.StatusRejected
			e.publish(events.Event{Kind: events.KindOrderRejected, Order: o, RejectReason: common.ErrFOKUnfillable, Timestamp: o.AcceptTime})
			return SubmitResult{Order: o, Rejected: true, Reason: common.ErrFOKUnfillable}, nil
		}
	}

	e.publish(events.Event{Kind: events.KindOrderAccepted, Order: o, Timestamp: o.AcceptTime})

	sr := e.sweep(o, priceLimitFor(o))
	for _, t := range sr.trades {
		e.publish(events.Event{Kind: events.KindTradeExecuted, Trade: &t, Timestamp: t.Timestamp})
	}
	for _, cancelled := range sr.selfTradeCancelledMakers {
		e.publish(events.Event{
			Kind:             events.KindOrderCancelled,
			CancelledOrderId: cancelled.Id,
			CancelReason:     "self_trade_prevention",
			Timestamp:        o.AcceptTime,
			Order:            cancelled,
		})
	}

	result := SubmitResult{Order: o, Trades: sr.trades}

	if o.RemainingQty == 0 {
		o.Status = common.StatusFilled
		return result, nil
	}

	switch o.Type {
	case common.MarketOrder:
		o.Status = common.StatusCancelled
		e.publish(events.Event{Kind: events.KindOrderCancelled, CancelledOrderId: o.Id, CancelReason: "no_liquidity", Timestamp: o.AcceptTime, Order: o})
		return result, nil
	}

	if o.TimeInForce == common.IOC || o.TimeInForce == common.FOK {
		o.Status = common.StatusCancelled
		e.publish(events.Event{Kind: events.KindOrderCancelled, CancelledOrderId: o.Id, CancelReason: "ioc_remainder", Timestamp: o.AcceptTime, Order: o})
		return result, nil
	}

	if len(sr.trades) > 0 {
		o.Status = common.StatusPartiallyFilled
	} else {
		o.Status = common.StatusNew
	}
	if o.Type == common.IcebergOrder {
		o.CurrentDisplay = minI64(o.DisplayQty, o.RemainingQty)
	} else if !o.Hidden {
		o.CurrentDisplay = o.RemainingQty
	}
	e.book.Insert(o)
	return result, nil
}

// sweepResult accumulates a single sweep's trades and the self-trade
// prevention side effects applied along the way.
type sweepResult struct {
	trades                   []common.Trade
	selfTradeCancelledMakers []*common.Order
}

// sweep walks the opposing side best-first, displayed orders before
// hidden ones within a level (spec §4.2/§9), consuming the taker's
// remaining quantity. Maker = the resting order, taker = o. Stops when o
// is exhausted, the next level no longer satisfies priceLimit, or a
// self-trade-prevention policy blocks further matching.
func (e *Engine) sweep(o *common.Order, priceLimit *int64) sweepResult {
	var res sweepResult

	var levels []*book.PriceLevel
	if o.Side == common.Buy {
		levels = e.book.AskLevels()
	} else {
		levels = e.book.BidLevels()
	}

	for _, level := range levels {
		if o.RemainingQty == 0 {
			break
		}
		if priceLimit != nil {
			if o.Side == common.Buy && level.Price > *priceLimit {
				break
			}
			if o.Side == common.Sell && level.Price < *priceLimit {
				break
			}
		}

		ids := make([]common.OrderId, 0, len(level.Displayed)+len(level.Hidden))
		ids = append(ids, level.Displayed...)
		ids = append(ids, level.Hidden...)

		blocked := false
		for _, makerId := range ids {
			if o.RemainingQty == 0 {
				break
			}
			maker, ok := e.book.Get(makerId)
			if !ok || maker.RemainingQty == 0 {
				continue
			}

			if maker.Participant == o.Participant && e.cfg.SelfTradePrevention != common.STPNone {
				stop := e.applySelfTradePrevention(o, maker, &res)
				if stop {
					blocked = true
					break
				}
				continue
			}

			matchQty := minI64(maker.RemainingQty, o.RemainingQty)
			if matchQty <= 0 {
				continue
			}
			price := maker.Price
			ts := o.AcceptTime

			// An iceberg's currently displayed tranche caps each reported
			// trade: a taker that outsizes the visible quantity is reported
			// as one trade per tranche (the hidden reserve reloading in
			// between), even though the book mutation below applies the
			// full matched quantity in a single Reduce call (spec §8 S3).
			if maker.Type == common.IcebergOrder && !maker.Hidden && maker.CurrentDisplay > 0 && matchQty > maker.CurrentDisplay {
				remaining := matchQty
				chunk := maker.CurrentDisplay
				for remaining > 0 {
					res.trades = append(res.trades, common.Trade{
						Id:               e.ids.NextTradeId(),
						Instrument:       e.cfg.Instrument,
						AggressorSide:    o.Side,
						MakerOrderId:     maker.Id,
						TakerOrderId:     o.Id,
						MakerParticipant: maker.Participant,
						TakerParticipant: o.Participant,
						Price:            price,
						Quantity:         chunk,
						Timestamp:        ts,
					})
					remaining -= chunk
					chunk = minI64(maker.DisplayQty, remaining)
				}
			} else {
				res.trades = append(res.trades, common.Trade{
					Id:               e.ids.NextTradeId(),
					Instrument:       e.cfg.Instrument,
					AggressorSide:    o.Side,
					MakerOrderId:     maker.Id,
					TakerOrderId:     o.Id,
					MakerParticipant: maker.Participant,
					TakerParticipant: o.Participant,
					Price:            price,
					Quantity:         matchQty,
					Timestamp:        ts,
				})
			}

			e.book.Reduce(maker.Id, matchQty, ts)
			o.RemainingQty -= matchQty
			o.LastUpdate = ts
			e.book.RecordTrade(price, matchQty)
		}
		if blocked {
			break
		}
	}
	e.book.RefreshBBO()
	return res
}

// applySelfTradePrevention enforces the configured policy for a maker
// that shares the taker's participant id. Returns true if the sweep
// should stop entirely (the taker itself is cancelled by the policy).
//
// These exact mechanics (which side is treated as "oldest"/"newest", and
// the decrement-then-cancel bookkeeping) are not specified by the
// original source; spec §9 leaves the policy semantics as an explicit
// Open Question. The choices here follow common venue conventions.
func (e *Engine) applySelfTradePrevention(taker, maker *common.Order, res *sweepResult) (stopSweep bool) {
	switch e.cfg.SelfTradePrevention {
	case common.STPCancelOldest:
		e.book.Cancel(maker.Id)
		res.selfTradeCancelledMakers = append(res.selfTradeCancelledMakers, maker)
		return false
	case common.STPCancelNewest:
		return true
	case common.STPCancelBoth:
		e.book.Cancel(maker.Id)
		res.selfTradeCancelledMakers = append(res.selfTradeCancelledMakers, maker)
		return true
	case common.STPDecrementAndCancel:
		dec := minI64(maker.RemainingQty, taker.RemainingQty)
		if dec == maker.RemainingQty {
			e.book.Cancel(maker.Id)
			res.selfTradeCancelledMakers = append(res.selfTradeCancelledMakers, maker)
		} else {
			e.book.Reduce(maker.Id, dec, taker.AcceptTime)
		}
		taker.RemainingQty -= dec
		return taker.RemainingQty == 0
	default:
		return false
	}
}
