package analytics

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/vantage-exchange/vantage/internal/common"
)

// participantKey scopes participant metrics to one instrument: position
// and P&L are only meaningful per instrument, a participant trading five
// instruments has five independent positions.
type participantKey struct {
	Participant common.ParticipantId
	Instrument  common.InstrumentId
}

// participantState is the live per-participant-per-instrument accumulator.
// P&L uses the average-cost method (spec §9's decimal-math note): the
// full FIFO lot ledger the original source's tax-lot accounting would use
// is out of scope here, same as spec.md's broker-adapter Non-goals.
type participantState struct {
	position int64 // signed; positive long, negative short
	avgCost  decimal.Decimal

	realizedPnL decimal.Decimal
	peakPnL     decimal.Decimal
	maxDrawdown decimal.Decimal

	orderCount  int64
	tradeCount  int64
	cancelCount int64

	makerFillQty int64
	takerFillQty int64
	makerRebate  decimal.Decimal
	takerFee     decimal.Decimal

	positionAbsSum int64
	positionSamples int64
	maxPositionAbs  int64

	pnlHistory []decimal.Decimal // bounded window of realized P&L deltas, for the Sharpe-like ratio
}

// ParticipantSnapshot is a copied, point-in-time view of one participant's
// metrics for one instrument.
type ParticipantSnapshot struct {
	Participant common.ParticipantId
	Instrument  common.InstrumentId

	Position      int64
	AvgEntryPrice decimal.Decimal
	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
	PeakPnL       decimal.Decimal
	MaxDrawdown   decimal.Decimal

	OrderCount  int64
	TradeCount  int64
	CancelCount int64

	OrderToTradeRatio float64
	FillRate          float64

	MakerRebate decimal.Decimal
	TakerFee    decimal.Decimal

	AvgPosition float64
	MaxPosition int64

	SharpeLikeRatio float64
}

func newParticipantState() *participantState {
	return &participantState{}
}

func absI64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func minI64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// applyFill updates position and average cost, realizing P&L on the
// closed portion whenever the fill reduces or flips the existing
// position, per the average-cost method.
func (s *participantState) applyFill(side common.Side, price, qty int64) {
	priceDec := decimal.NewFromInt(price)
	qtyDec := decimal.NewFromInt(qty)
	signedQty := qty
	if side == common.Sell {
		signedQty = -qty
	}

	sameDirection := s.position == 0 || (s.position > 0) == (signedQty > 0)
	if sameDirection {
		posAbs := absI64(s.position)
		newPosAbs := posAbs + qty
		totalCost := s.avgCost.Mul(decimal.NewFromInt(posAbs)).Add(priceDec.Mul(qtyDec))
		if newPosAbs > 0 {
			s.avgCost = totalCost.Div(decimal.NewFromInt(newPosAbs))
		}
		s.position += signedQty
	} else {
		closingQty := minI64(absI64(s.position), qty)
		var pnlPerUnit decimal.Decimal
		if s.position > 0 {
			pnlPerUnit = priceDec.Sub(s.avgCost)
		} else {
			pnlPerUnit = s.avgCost.Sub(priceDec)
		}
		realized := pnlPerUnit.Mul(decimal.NewFromInt(closingQty))
		s.realizedPnL = s.realizedPnL.Add(realized)
		s.pushPnLHistory(realized)

		s.position += signedQty
		remainder := qty - closingQty
		if remainder > 0 {
			// Flipped through flat: the remainder opens a fresh position
			// at this fill's price.
			s.avgCost = priceDec
		} else if s.position == 0 {
			s.avgCost = decimal.Zero
		}
	}

	if s.realizedPnL.GreaterThan(s.peakPnL) {
		s.peakPnL = s.realizedPnL
	}
	drawdown := s.peakPnL.Sub(s.realizedPnL)
	if drawdown.GreaterThan(s.maxDrawdown) {
		s.maxDrawdown = drawdown
	}

	posAbs := absI64(s.position)
	s.positionAbsSum += posAbs
	s.positionSamples++
	if posAbs > s.maxPositionAbs {
		s.maxPositionAbs = posAbs
	}
}

func (s *participantState) pushPnLHistory(delta decimal.Decimal) {
	const window = 200
	s.pnlHistory = append(s.pnlHistory, delta)
	if len(s.pnlHistory) > window {
		s.pnlHistory = s.pnlHistory[len(s.pnlHistory)-window:]
	}
}

// sharpeLikeRatio is mean(realized P&L deltas) / stdev(realized P&L
// deltas) over the bounded history — "Sharpe-like" because it has no
// risk-free rate term and is computed over trade-indexed, not
// time-indexed, returns (spec §4.4).
func (s *participantState) sharpeLikeRatio() float64 {
	n := len(s.pnlHistory)
	if n < 2 {
		return 0
	}
	var mean float64
	for _, d := range s.pnlHistory {
		mean += d.InexactFloat64()
	}
	mean /= float64(n)

	var variance float64
	for _, d := range s.pnlHistory {
		diff := d.InexactFloat64() - mean
		variance += diff * diff
	}
	variance /= float64(n - 1)
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance)
}

func (s *participantState) snapshot(key participantKey, markPrice int64) ParticipantSnapshot {
	snap := ParticipantSnapshot{
		Participant:     key.Participant,
		Instrument:      key.Instrument,
		Position:        s.position,
		AvgEntryPrice:   s.avgCost,
		RealizedPnL:     s.realizedPnL,
		PeakPnL:         s.peakPnL,
		MaxDrawdown:     s.maxDrawdown,
		OrderCount:      s.orderCount,
		TradeCount:      s.tradeCount,
		CancelCount:     s.cancelCount,
		MakerRebate:     s.makerRebate,
		TakerFee:        s.takerFee,
		MaxPosition:     s.maxPositionAbs,
		SharpeLikeRatio: s.sharpeLikeRatio(),
	}
	if s.orderCount > 0 {
		snap.OrderToTradeRatio = float64(s.orderCount) / float64(s.tradeCount+1)
		snap.FillRate = float64(s.tradeCount) / float64(s.orderCount)
	}
	if s.positionSamples > 0 {
		snap.AvgPosition = float64(s.positionAbsSum) / float64(s.positionSamples)
	}
	if markPrice > 0 && s.position != 0 {
		mark := decimal.NewFromInt(markPrice)
		if s.position > 0 {
			snap.UnrealizedPnL = mark.Sub(s.avgCost).Mul(decimal.NewFromInt(s.position))
		} else {
			snap.UnrealizedPnL = s.avgCost.Sub(mark).Mul(decimal.NewFromInt(-s.position))
		}
	}
	return snap
}
