// Package book implements the per-instrument order book: sorted price
// levels with FIFO time priority and a market-data cache. No matching
// logic lives here (spec §4.1) — that is internal/matching's job.
package book

import "github.com/vantage-exchange/vantage/internal/common"

// PriceLevel is a single price tier, with two FIFOs: displayed orders
// walked first, hidden orders walked after (spec §9's modeling note for
// hidden-order queueing at a shared price).
type PriceLevel struct {
	Price           int64
	TotalQuantity   int64
	VisibleQuantity int64
	OrderCount      int
	Displayed       []common.OrderId
	Hidden          []common.OrderId
}

func newPriceLevel(price int64) *PriceLevel {
	return &PriceLevel{Price: price}
}

func (l *PriceLevel) isEmpty() bool {
	return len(l.Displayed) == 0 && len(l.Hidden) == 0
}

func (l *PriceLevel) addOrder(id common.OrderId, totalQty, visibleQty int64, hidden bool) {
	if hidden {
		l.Hidden = append(l.Hidden, id)
	} else {
		l.Displayed = append(l.Displayed, id)
	}
	l.TotalQuantity += totalQty
	l.VisibleQuantity += visibleQty
	l.OrderCount++
}

// removeOrder removes id from whichever FIFO it occupies. Returns false
// if id was not found at this level.
func (l *PriceLevel) removeOrder(id common.OrderId, totalQty, visibleQty int64) bool {
	if idx := indexOf(l.Displayed, id); idx >= 0 {
		l.Displayed = append(l.Displayed[:idx], l.Displayed[idx+1:]...)
	} else if idx := indexOf(l.Hidden, id); idx >= 0 {
		l.Hidden = append(l.Hidden[:idx], l.Hidden[idx+1:]...)
	} else {
		return false
	}
	l.TotalQuantity -= totalQty
	l.VisibleQuantity -= visibleQty
	l.OrderCount--
	return true
}

// walk iterates the level's FIFO in match priority order: displayed
// orders first, hidden orders after, per spec §4.2's sweep algorithm.
func (l *PriceLevel) walk(fn func(common.OrderId) bool) {
	for _, id := range l.Displayed {
		if !fn(id) {
			return
		}
	}
	for _, id := range l.Hidden {
		if !fn(id) {
			return
		}
	}
}

func indexOf(ids []common.OrderId, id common.OrderId) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
