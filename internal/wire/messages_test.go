package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantage-exchange/vantage/internal/common"
)

func TestNewOrderMessage_RoundTrip(t *testing.T) {
	m := &NewOrderMessage{
		BaseMessage: BaseMessage{TypeOf: NewOrder},
		Instrument:  7,
		Side:        common.Sell,
		Type:        common.IcebergOrder,
		TimeInForce: common.GTC,
		Hidden:      false,
		Price:       10_050,
		StopPrice:   0,
		Quantity:    500,
		DisplayQty:  100,
		ClientUUID:  "order-abc-123",
	}

	encoded := m.Encode()
	decoded, err := ParseMessage(encoded)
	require.NoError(t, err)

	got, ok := decoded.(*NewOrderMessage)
	require.True(t, ok)
	assert.Equal(t, m.Instrument, got.Instrument)
	assert.Equal(t, m.Side, got.Side)
	assert.Equal(t, m.Type, got.Type)
	assert.Equal(t, m.TimeInForce, got.TimeInForce)
	assert.Equal(t, m.Price, got.Price)
	assert.Equal(t, m.Quantity, got.Quantity)
	assert.Equal(t, m.DisplayQty, got.DisplayQty)
	assert.Equal(t, m.ClientUUID, got.ClientUUID)
}

func TestNewOrderMessage_Order(t *testing.T) {
	m := &NewOrderMessage{
		Instrument: 3,
		Side:       common.Buy,
		Type:       common.LimitOrder,
		Price:      100,
		Quantity:   10,
		ClientUUID: "abc",
	}
	order := m.Order(42)
	assert.Equal(t, common.ParticipantId(42), order.Participant)
	assert.Equal(t, int64(10), order.RemainingQty)
	assert.Equal(t, common.StatusNew, order.Status)
}

func TestCancelOrderMessage_RoundTrip(t *testing.T) {
	m := &CancelOrderMessage{OrderId: 99}
	encoded := m.Encode()
	decoded, err := ParseMessage(encoded)
	require.NoError(t, err)

	got, ok := decoded.(*CancelOrderMessage)
	require.True(t, ok)
	assert.Equal(t, common.OrderId(99), got.OrderId)
}

func TestParseMessage_TooShort(t *testing.T) {
	_, err := ParseMessage([]byte{0})
	assert.ErrorIs(t, err, ErrMessageTooShort)
}

func TestParseMessage_InvalidType(t *testing.T) {
	_, err := ParseMessage([]byte{0xFF, 0xFF})
	assert.ErrorIs(t, err, ErrInvalidMessageType)
}

func TestReport_Serialize(t *testing.T) {
	r := Report{MessageType: ExecutionReport, OrderId: 1, Instrument: 2, Side: common.Buy, Price: 100, Quantity: 10, Err: "x"}
	buf := r.Serialize()
	assert.Greater(t, len(buf), reportFixedLen)
}
