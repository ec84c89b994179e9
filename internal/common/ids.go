package common

import "sync/atomic"

// OrderId, ParticipantId and InstrumentId are opaque, monotonically
// assigned 64-bit integers. Zero is never a valid assigned id; it is
// reserved for "unset".
type OrderId int64
type ParticipantId int64
type InstrumentId int64

// IdSequence mints monotonically increasing ids, generalizing the
// teacher's single uuid.New() minting site (internal/net/messages.go) to
// an integer sequence per spec's data model (§3: identifiers are opaque
// 64-bit integers, monotonically assigned).
type IdSequence struct {
	next int64
}

// NewIdSequence returns a sequence whose first Next() is 1.
func NewIdSequence() *IdSequence {
	return &IdSequence{next: 0}
}

func (s *IdSequence) Next() int64 {
	return atomic.AddInt64(&s.next, 1)
}

func (s *IdSequence) NextOrderId() OrderId {
	return OrderId(s.Next())
}

func (s *IdSequence) NextInstrumentId() InstrumentId {
	return InstrumentId(s.Next())
}

func (s *IdSequence) NextParticipantId() ParticipantId {
	return ParticipantId(s.Next())
}

func (s *IdSequence) NextTradeId() int64 {
	return s.Next()
}
