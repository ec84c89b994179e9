// Package wire implements the order-entry protocol of spec §4.8. It is
// adapted from the teacher's internal/net: the same binary
// header-plus-payload framing and MessageType byte, generalized from
// the teacher's two order kinds (market/limit, one asset type) to the
// full order-type/TIF/iceberg/stop vocabulary of spec §3.
package wire

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/vantage-exchange/vantage/internal/common"
)

var (
	ErrInvalidMessageType = errors.New("wire: invalid message type")
	ErrMessageTooShort     = errors.New("wire: message too short")
)

type MessageType uint16

const (
	Heartbeat MessageType = iota
	NewOrder
	CancelOrder
)

type Message interface {
	GetType() MessageType
}

const (
	baseMessageHeaderLen = 2
	// instrument(8) + side(1) + type(1) + tif(1) + pegAnchor(1) + hidden(1)
	// + price(8) + stopPrice(8) + qty(8) + displayQty(8) + clientUUIDLen(2)
	newOrderFixedLen = 8 + 1 + 1 + 1 + 1 + 1 + 8 + 8 + 8 + 8 + 2
	// orderId(8)
	cancelOrderFixedLen = 8
)

type BaseMessage struct {
	TypeOf MessageType
}

func (m BaseMessage) GetType() MessageType { return m.TypeOf }

// ParseMessage decodes one framed wire message: a 2-byte MessageType
// header followed by a type-specific payload.
func ParseMessage(buf []byte) (Message, error) {
	if len(buf) < baseMessageHeaderLen {
		return nil, ErrMessageTooShort
	}
	typeOf := MessageType(binary.BigEndian.Uint16(buf[0:2]))
	body := buf[2:]
	switch typeOf {
	case NewOrder:
		return parseNewOrder(body)
	case CancelOrder:
		return parseCancelOrder(body)
	case Heartbeat:
		return BaseMessage{TypeOf: Heartbeat}, nil
	default:
		return nil, ErrInvalidMessageType
	}
}

// NewOrderMessage is the wire form of a new-order request — the
// teacher's NewOrderMessage expanded with order type, TIF, iceberg
// display quantity, hidden flag, stop-trigger price, and peg anchor,
// none of which the teacher's market/limit-only protocol carried.
type NewOrderMessage struct {
	BaseMessage
	Instrument  common.InstrumentId
	Side        common.Side
	Type        common.OrderType
	TimeInForce common.TimeInForce
	PegAnchor   common.PegAnchor
	Hidden      bool
	Price       int64
	StopPrice   int64
	Quantity    int64
	DisplayQty  int64
	ClientUUID  string
}

// Order builds a common.Order from the wire message. Participant and Id
// are assigned by the caller (the session's participant id and the
// exchange's id sequence respectively) — the wire format never carries
// them. ClientUUID is copied exactly as the client sent it.
func (m *NewOrderMessage) Order(participant common.ParticipantId) *common.Order {
	return &common.Order{
		ClientUUID:  m.ClientUUID,
		Instrument:  m.Instrument,
		Participant: participant,
		Side:        m.Side,
		Type:        m.Type,
		Price:       m.Price,
		OriginalQty: m.Quantity,
		RemainingQty: m.Quantity,
		DisplayQty:  m.DisplayQty,
		Hidden:      m.Hidden,
		TimeInForce: m.TimeInForce,
		StopPrice:   m.StopPrice,
		PegAnchor:   m.PegAnchor,
		Status:      common.StatusNew,
	}
}

func parseNewOrder(buf []byte) (*NewOrderMessage, error) {
	if len(buf) < newOrderFixedLen {
		return nil, ErrMessageTooShort
	}
	m := &NewOrderMessage{BaseMessage: BaseMessage{TypeOf: NewOrder}}
	off := 0
	m.Instrument = common.InstrumentId(binary.BigEndian.Uint64(buf[off : off+8]))
	off += 8
	m.Side = common.Side(buf[off])
	off++
	m.Type = common.OrderType(buf[off])
	off++
	m.TimeInForce = common.TimeInForce(buf[off])
	off++
	m.PegAnchor = common.PegAnchor(buf[off])
	off++
	m.Hidden = buf[off] != 0
	off++
	m.Price = int64(binary.BigEndian.Uint64(buf[off : off+8]))
	off += 8
	m.StopPrice = int64(binary.BigEndian.Uint64(buf[off : off+8]))
	off += 8
	m.Quantity = int64(binary.BigEndian.Uint64(buf[off : off+8]))
	off += 8
	m.DisplayQty = int64(binary.BigEndian.Uint64(buf[off : off+8]))
	off += 8
	uuidLen := int(binary.BigEndian.Uint16(buf[off : off+2]))
	off += 2
	if len(buf) < off+uuidLen {
		return nil, ErrMessageTooShort
	}
	m.ClientUUID = string(buf[off : off+uuidLen])
	return m, nil
}

// Encode serializes a NewOrderMessage for a client-side sender (spec
// §4.8's client entry point).
func (m *NewOrderMessage) Encode() []byte {
	uuidBytes := []byte(m.ClientUUID)
	buf := make([]byte, baseMessageHeaderLen+newOrderFixedLen+len(uuidBytes))
	binary.BigEndian.PutUint16(buf[0:2], uint16(NewOrder))
	off := baseMessageHeaderLen
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(m.Instrument))
	off += 8
	buf[off] = byte(m.Side)
	off++
	buf[off] = byte(m.Type)
	off++
	buf[off] = byte(m.TimeInForce)
	off++
	buf[off] = byte(m.PegAnchor)
	off++
	if m.Hidden {
		buf[off] = 1
	}
	off++
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(m.Price))
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(m.StopPrice))
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(m.Quantity))
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(m.DisplayQty))
	off += 8
	binary.BigEndian.PutUint16(buf[off:off+2], uint16(len(uuidBytes)))
	off += 2
	copy(buf[off:], uuidBytes)
	return buf
}

// CancelOrderMessage is the wire form of a cancel request.
type CancelOrderMessage struct {
	BaseMessage
	OrderId common.OrderId
}

func parseCancelOrder(buf []byte) (*CancelOrderMessage, error) {
	if len(buf) < cancelOrderFixedLen {
		return nil, ErrMessageTooShort
	}
	return &CancelOrderMessage{
		BaseMessage: BaseMessage{TypeOf: CancelOrder},
		OrderId:     common.OrderId(binary.BigEndian.Uint64(buf[0:8])),
	}, nil
}

func (m *CancelOrderMessage) Encode() []byte {
	buf := make([]byte, baseMessageHeaderLen+cancelOrderFixedLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(CancelOrder))
	binary.BigEndian.PutUint64(buf[2:10], uint64(m.OrderId))
	return buf
}

// ReportMessageType tags an outbound session report.
type ReportMessageType uint8

const (
	ExecutionReport ReportMessageType = iota
	RejectReport
	ErrorReport
)

// Report is the outbound execution/reject/error notice sent back to a
// session, adapted from the teacher's Report to carry an order id
// instead of a fixed 4-byte ticker and ASCII owner name.
type Report struct {
	MessageType ReportMessageType
	OrderId     common.OrderId
	Instrument  common.InstrumentId
	Side        common.Side
	Price       int64
	Quantity    int64
	TimestampNs int64
	Err         string
}

const reportFixedLen = 1 + 8 + 8 + 1 + 8 + 8 + 8 + 4

// Serialize encodes a Report for the wire.
func (r *Report) Serialize() []byte {
	errBytes := []byte(r.Err)
	buf := make([]byte, reportFixedLen+len(errBytes))
	buf[0] = byte(r.MessageType)
	off := 1
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(r.OrderId))
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(r.Instrument))
	off += 8
	buf[off] = byte(r.Side)
	off++
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(r.Price))
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(r.Quantity))
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], math.Float64bits(float64(r.TimestampNs)))
	off += 8
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(len(errBytes)))
	off += 4
	copy(buf[off:], errBytes)
	return buf
}
