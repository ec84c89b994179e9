// Command client is a minimal order-entry sender for the wire protocol
// of internal/wire — adapted from the teacher's cmd/client, which spoke
// the fixed market/limit/equities protocol of the teacher's internal/net.
// This version speaks the full order-type/TIF/iceberg/stop vocabulary of
// spec §3 and prints the Report stream as it arrives.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vantage-exchange/vantage/internal/common"
	"github.com/vantage-exchange/vantage/internal/wire"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9001", "address of the exchange order-entry server")
	action := flag.String("action", "place", "action to perform: ['place', 'cancel']")

	instrument := flag.Int64("instrument", 1, "instrument id")
	sideStr := flag.String("side", "buy", "order side: 'buy' or 'sell'")
	typeStr := flag.String("type", "limit", "order type: limit, market, stop, stop_limit, iceberg, peg, hidden")
	tifStr := flag.String("tif", "day", "time in force: day, ioc, fok, gtc")
	price := flag.Int64("price", 0, "limit/stop-limit price in ticks")
	stopPrice := flag.Int64("stop-price", 0, "stop trigger price in ticks")
	displayQty := flag.Int64("display-qty", 0, "iceberg visible tranche")
	hidden := flag.Bool("hidden", false, "mark the order hidden")
	qtyStr := flag.String("qty", "10", "quantity, or comma-separated list (e.g. 10,20,50)")
	clientUUID := flag.String("uuid", "", "client-assigned order identifier")

	orderID := flag.Int64("order-id", 0, "order id to cancel")

	flag.Parse()

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("connected to %s\n", *serverAddr)

	go readReports(conn)

	switch strings.ToLower(*action) {
	case "place":
		msg := wire.NewOrderMessage{
			BaseMessage: wire.BaseMessage{TypeOf: wire.NewOrder},
			Instrument:  common.InstrumentId(*instrument),
			Side:        parseSide(*sideStr),
			Type:        parseType(*typeStr),
			TimeInForce: parseTIF(*tifStr),
			PegAnchor:   common.PegMid,
			Hidden:      *hidden,
			Price:       *price,
			StopPrice:   *stopPrice,
			DisplayQty:  *displayQty,
			ClientUUID:  *clientUUID,
		}
		for _, q := range parseQuantities(*qtyStr) {
			msg.Quantity = q
			if _, err := conn.Write(msg.Encode()); err != nil {
				log.Printf("failed to place order (qty %d): %v", q, err)
				continue
			}
			fmt.Printf("-> sent %s %s %d @ %d\n", msg.Side, msg.Type, q, msg.Price)
			time.Sleep(5 * time.Millisecond)
		}

	case "cancel":
		if *orderID == 0 {
			log.Fatal("-order-id is required for cancel")
		}
		cancel := wire.CancelOrderMessage{
			BaseMessage: wire.BaseMessage{TypeOf: wire.CancelOrder},
			OrderId:     common.OrderId(*orderID),
		}
		if _, err := conn.Write(cancel.Encode()); err != nil {
			log.Printf("failed to send cancel: %v", err)
		} else {
			fmt.Printf("-> sent cancel for order %d\n", *orderID)
		}

	default:
		log.Fatalf("unknown action: %s", *action)
	}

	fmt.Println("\nlistening for reports... (ctrl+c to exit)")
	select {}
}

func parseSide(s string) common.Side {
	if strings.EqualFold(s, "sell") {
		return common.Sell
	}
	return common.Buy
}

func parseType(s string) common.OrderType {
	switch strings.ToLower(s) {
	case "market":
		return common.MarketOrder
	case "stop":
		return common.StopOrder
	case "stop_limit":
		return common.StopLimitOrder
	case "iceberg":
		return common.IcebergOrder
	case "peg":
		return common.PegOrder
	case "hidden":
		return common.HiddenOrder
	default:
		return common.LimitOrder
	}
}

func parseTIF(s string) common.TimeInForce {
	switch strings.ToLower(s) {
	case "ioc":
		return common.IOC
	case "fok":
		return common.FOK
	case "gtc":
		return common.GTC
	default:
		return common.Day
	}
}

func parseQuantities(input string) []int64 {
	var result []int64
	for _, p := range strings.Split(input, ",") {
		p = strings.TrimSpace(p)
		if val, err := strconv.ParseInt(p, 10, 64); err == nil {
			result = append(result, val)
		} else {
			log.Printf("warning: invalid quantity %q, skipping", p)
		}
	}
	return result
}

// readReports continuously reads and prints Report messages from the
// server, mirroring the fixed-header-plus-variable-tail framing of
// wire.Report.Serialize.
func readReports(conn net.Conn) {
	const fixedLen = 1 + 8 + 8 + 1 + 8 + 8 + 8 + 4
	for {
		header := make([]byte, fixedLen)
		if _, err := io.ReadFull(conn, header); err != nil {
			if err != io.EOF {
				log.Printf("connection lost: %v", err)
			}
			os.Exit(0)
		}

		msgType := wire.ReportMessageType(header[0])
		off := 1
		orderID := common.OrderId(binary.BigEndian.Uint64(header[off : off+8]))
		off += 8
		instrument := common.InstrumentId(binary.BigEndian.Uint64(header[off : off+8]))
		off += 8
		side := common.Side(header[off])
		off++
		price := int64(binary.BigEndian.Uint64(header[off : off+8]))
		off += 8
		qty := int64(binary.BigEndian.Uint64(header[off : off+8]))
		off += 8
		ts := int64(math.Float64frombits(binary.BigEndian.Uint64(header[off : off+8])))
		off += 8
		errLen := binary.BigEndian.Uint32(header[off : off+4])

		errStr := ""
		if errLen > 0 {
			errBuf := make([]byte, errLen)
			if _, err := io.ReadFull(conn, errBuf); err != nil {
				log.Printf("error reading report tail: %v", err)
				return
			}
			errStr = string(errBuf)
		}

		switch msgType {
		case wire.ErrorReport:
			fmt.Printf("\n[ERROR] %s\n", errStr)
		case wire.RejectReport:
			fmt.Printf("\n[REJECTED] order=%d instrument=%d side=%s reason=%s\n", orderID, instrument, side, errStr)
		default:
			fmt.Printf("\n[EXECUTION] order=%d instrument=%d side=%s qty=%d price=%d ts=%d\n", orderID, instrument, side, qty, price, ts)
		}
	}
}
