package wire

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"github.com/vantage-exchange/vantage/internal/common"
	"github.com/vantage-exchange/vantage/internal/matching"
	"github.com/vantage-exchange/vantage/internal/phase"
)

const (
	maxRecvSize        = 4 * 1024
	defaultNWorkers     = 10
	defaultConnTimeout  = time.Second
)

var (
	ErrImproperConversion = errors.New("wire: improper task conversion")
	ErrClientDoesNotExist = errors.New("wire: client does not exist")
	ErrUnknownInstrument  = errors.New("wire: unknown instrument")
)

// clientSession is the teacher's ClientSession, plus the participant id
// the server assigns on first contact — the teacher's protocol
// authenticated by username string, this one doesn't authenticate at
// all (session wiring is a Non-goal; see DESIGN.md) and just mints an
// id per TCP connection.
type clientSession struct {
	conn        net.Conn
	participant common.ParticipantId
}

type clientMessage struct {
	clientAddress string
	message       Message
}

// Server is the order-entry server of spec §4.8, generalized from the
// teacher's net.Server from one Engine to one phase.Machine per
// instrument, and from the teacher's two order kinds to the full wire
// vocabulary of messages.go.
type Server struct {
	address string
	port    int

	machines map[common.InstrumentId]*phase.Machine
	ids      *common.IdSequence

	pool   workerPool
	cancel context.CancelFunc

	sessionsMu sync.Mutex
	sessions   map[string]*clientSession

	inbox chan clientMessage
}

// New constructs an order-entry Server over the given per-instrument
// phase machines.
func New(address string, port int, machines map[common.InstrumentId]*phase.Machine, ids *common.IdSequence) *Server {
	return &Server{
		address:  address,
		port:     port,
		machines: machines,
		ids:      ids,
		pool:     newWorkerPool(defaultNWorkers),
		sessions: make(map[string]*clientSession),
		inbox:    make(chan clientMessage, 1),
	}
}

func (s *Server) Shutdown() {
	log.Info().Msg("order entry server shutting down")
	if s.cancel != nil {
		s.cancel()
	}
}

// Run accepts TCP connections and dispatches their messages until ctx is
// cancelled, mirroring the teacher's net.Server.Run structure exactly
// (listener loop + worker pool + session handler, all tomb-supervised).
func (s *Server) Run(ctx context.Context) {
	defer s.Shutdown()
	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("order entry server unable to start listener")
		return
	}
	defer listener.Close()

	t.Go(func() error {
		s.pool.setup(t, s.handleConnection)
		return nil
	})
	t.Go(func() error { return s.sessionHandler(t) })

	log.Info().Str("address", s.address).Int("port", s.port).Msg("order entry server running")

	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := listener.Accept()
			if err != nil {
				log.Error().Err(err).Msg("order entry server accept error")
				continue
			}
			s.addSession(conn)
			s.pool.addTask(conn)
		}
	}
}

func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case msg := <-s.inbox:
			if err := s.handleMessage(msg); err != nil {
				log.Error().Err(err).Str("address", msg.clientAddress).Msg("order entry error handling message")
				s.reportError(msg.clientAddress, err)
			}
		}
	}
}

func (s *Server) handleMessage(msg clientMessage) error {
	switch m := msg.message.(type) {
	case *NewOrderMessage:
		session, ok := s.session(msg.clientAddress)
		if !ok {
			return ErrClientDoesNotExist
		}
		machine, ok := s.machines[m.Instrument]
		if !ok {
			return ErrUnknownInstrument
		}
		order := m.Order(session.participant)
		result, err := machine.Submit(order)
		if err != nil {
			return err
		}
		if result.Rejected {
			return s.reportReject(msg.clientAddress, result.Order, result.Reason)
		}
		return s.reportExecutions(msg.clientAddress, result)

	case *CancelOrderMessage:
		machine := s.anyMachine()
		if machine == nil {
			return ErrUnknownInstrument
		}
		_, err := machine.Cancel(m.OrderId, "client_request")
		return err

	case BaseMessage:
		return nil

	default:
		return ErrInvalidMessageType
	}
}

func (s *Server) anyMachine() *phase.Machine {
	for _, m := range s.machines {
		return m
	}
	return nil
}

// reportExecutions writes one ExecutionReport per trade the submission
// produced, addressed only to this session. The session that owns the
// resting counterparty order receives no report for these fills.
func (s *Server) reportExecutions(address string, result matching.SubmitResult) error {
	session, ok := s.session(address)
	if !ok {
		return ErrClientDoesNotExist
	}
	for _, t := range result.Trades {
		report := Report{
			MessageType: ExecutionReport,
			OrderId:     result.Order.Id,
			Instrument:  t.Instrument,
			Side:        result.Order.Side,
			Price:       t.Price,
			Quantity:    t.Quantity,
			TimestampNs: int64(t.Timestamp),
		}
		if _, err := session.conn.Write(report.Serialize()); err != nil {
			return err
		}
	}
	return nil
}

// handleConnection reads exactly one message off conn, hands it to the
// session handler, then re-queues the connection — the same
// read-one-then-requeue shape as the teacher's handleConnection, which
// keeps a fixed worker count servicing an unbounded number of idle
// connections.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}

	select {
	case <-t.Dying():
		_ = conn.Close()
		return nil
	default:
	}

	_ = conn.SetDeadline(time.Now().Add(defaultConnTimeout))
	buf := make([]byte, maxRecvSize)
	n, err := conn.Read(buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			s.pool.addTask(conn)
			return nil
		}
		s.removeSession(conn.RemoteAddr().String())
		_ = conn.Close()
		return nil
	}

	message, err := ParseMessage(buf[:n])
	if err != nil {
		log.Error().Err(err).Str("address", conn.RemoteAddr().String()).Msg("order entry parse error")
		s.removeSession(conn.RemoteAddr().String())
		_ = conn.Close()
		return nil
	}

	s.inbox <- clientMessage{clientAddress: conn.RemoteAddr().String(), message: message}
	s.pool.addTask(conn)
	return nil
}

func (s *Server) addSession(conn net.Conn) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	s.sessions[conn.RemoteAddr().String()] = &clientSession{
		conn:        conn,
		participant: s.ids.NextParticipantId(),
	}
}

func (s *Server) removeSession(address string) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	delete(s.sessions, address)
}

func (s *Server) session(address string) (*clientSession, bool) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	sess, ok := s.sessions[address]
	return sess, ok
}

func (s *Server) reportReject(address string, order *common.Order, reason error) error {
	session, ok := s.session(address)
	if !ok {
		return ErrClientDoesNotExist
	}
	errStr := ""
	if reason != nil {
		errStr = reason.Error()
	}
	report := Report{MessageType: RejectReport, OrderId: order.Id, Instrument: order.Instrument, Side: order.Side, Err: errStr, TimestampNs: int64(order.AcceptTime)}
	_, err := session.conn.Write(report.Serialize())
	return err
}

func (s *Server) reportError(address string, reportErr error) error {
	session, ok := s.session(address)
	if !ok {
		return ErrClientDoesNotExist
	}
	report := Report{MessageType: ErrorReport, Err: reportErr.Error()}
	_, err := session.conn.Write(report.Serialize())
	return err
}
