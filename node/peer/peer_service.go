// Package peer implements PeerService: TCP connection management,
// NUL-framed JSON message I/O, and session bookkeeping. It is grounded
// on the original node's peer_service.rs for the protocol contract and
// on the teacher's node/cn peer-broadcast queues for the per-session
// writer/backpressure shape.
package peer

import (
	"bufio"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rcrowley/go-metrics"

	"github.com/babencoin/babencoin/config"
	"github.com/babencoin/babencoin/data"
	"github.com/babencoin/babencoin/log"
)

// MaxFrameSize is the largest frame, including the terminating NUL
// byte, PeerService will accept before disconnecting the session.
const MaxFrameSize = 65536

// ReconnectLimit bounds the number of dial retries per configured
// address before babencoin gives up on it for this run.
const ReconnectLimit = 3

// outboxSize bounds the per-session write queue. A session whose
// queue is persistently full is a pathologically slow peer; babencoin
// drops the new send and logs a warning rather than let one
// slow peer stall delivery to every other session, the same tradeoff
// the teacher's peer broadcast queues (maxQueuedTxs, maxQueuedProps)
// make explicit.
const outboxSize = 4096

var logger = log.NewModuleLogger(log.PeerService)

var (
	metricMessagesSent     = metrics.NewRegisteredCounter("peer/messages/sent", nil)
	metricMessagesReceived = metrics.NewRegisteredCounter("peer/messages/received", nil)
	metricMessagesDropped  = metrics.NewRegisteredCounter("peer/messages/dropped", nil)
	metricSessionsActive   = metrics.NewRegisteredGauge("peer/sessions/active", nil)
)

type session struct {
	id     SessionID
	conn   net.Conn
	outbox chan data.VerifiedPeerMessage
	done   chan struct{}
	once   sync.Once
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// Service owns every socket the node holds, dials its configured
// peers, optionally accepts inbound connections, and bridges between
// the wire and the Event/Command channels GossipService consumes.
type Service struct {
	config config.PeerServiceConfig

	events   chan Event
	commands chan Command

	tableMu  sync.Mutex
	sessions map[SessionID]*session
}

// New constructs a Service. Events and Commands are the channels this
// service and GossipService use to talk to each other; the caller
// (node wiring) creates them so their buffering is a single, visible
// decision.
func New(cfg config.PeerServiceConfig, events chan Event, commands chan Command) *Service {
	return &Service{
		config:   cfg,
		events:   events,
		commands: commands,
		sessions: make(map[SessionID]*session),
	}
}

// Events returns the channel PeerEvents are published on.
func (s *Service) Events() <-chan Event { return s.events }

// Commands returns the channel PeerCommands are consumed from.
func (s *Service) Commands() chan<- Command { return s.commands }

// Run dials every configured address (serially, with a bounded
// reconnect budget), then — if a listen address is configured —
// accepts inbound connections forever. It also starts the single
// command-dispatch loop that routes outgoing PeerCommands to the
// right session's writer. With a listen address Run blocks in the
// accept loop; without one it returns once dialing is done.
func (s *Service) Run() {
	go s.dispatchCommands()

	for _, addr := range s.config.DialAddresses {
		s.dialWithRetries(addr)
	}

	if s.config.ListenAddress == "" {
		return
	}
	listener, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		logger.Error("failed to listen", "address", s.config.ListenAddress, "err", err)
		return
	}
	logger.Info("listening", "address", s.config.ListenAddress)
	for {
		conn, err := listener.Accept()
		if err != nil {
			logger.Error("accept failed", "err", err)
			continue
		}
		s.adopt(conn)
	}
}

func (s *Service) dialWithRetries(addr string) {
	for attempt := 0; attempt <= ReconnectLimit; attempt++ {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			logger.Info("dialed peer", "address", addr)
			s.adopt(conn)
			return
		}
		if attempt == ReconnectLimit {
			logger.Warn("giving up dialing peer", "address", addr, "attempts", attempt+1)
			return
		}
		logger.Debug("dial failed, retrying", "address", addr, "attempt", attempt+1, "err", err)
		time.Sleep(s.config.DialCooldown.Duration)
	}
}

// adopt registers a freshly connected socket, starts its reader and
// writer, and emits the Connected event.
func (s *Service) adopt(conn net.Conn) {
	id := newSessionID()
	sess := &session{
		id:     id,
		conn:   conn,
		outbox: make(chan data.VerifiedPeerMessage, outboxSize),
		done:   make(chan struct{}),
	}

	s.tableMu.Lock()
	s.sessions[id] = sess
	s.tableMu.Unlock()
	metricSessionsActive.Inc(1)

	go s.writeLoop(sess)
	go s.readLoop(sess)

	s.events <- Event{SessionID: id, Kind: EventConnected}
}

func newSessionID() SessionID {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing means the OS entropy source is broken;
		// there is nothing sensible left to do but pick something and
		// keep going rather than take the whole node down for it.
		logger.Error("failed to generate session id", "err", err)
	}
	return SessionID(binary.BigEndian.Uint64(b[:]))
}

// readLoop decodes NUL-framed JSON messages until the socket errors,
// reaches EOF, or a frame is malformed/oversize/unverifiable — any of
// which disconnects the session.
func (s *Service) readLoop(sess *session) {
	reader := bufio.NewReaderSize(sess.conn, MaxFrameSize)
	for {
		frame, err := readFrame(reader)
		if err != nil {
			reason := "io error"
			if err == io.EOF {
				reason = "eof"
			} else if err == errOversizeFrame {
				reason = "oversize frame"
			}
			s.disconnect(sess, reason)
			return
		}

		var msg data.PeerMessage
		if err := json.Unmarshal(frame, &msg); err != nil {
			logger.Warn("malformed message", "session", sess.id, "err", err)
			s.disconnect(sess, "malformed json")
			return
		}
		verified, err := msg.Verified()
		if err != nil {
			logger.Warn("message failed verification", "session", sess.id, "err", err)
			s.disconnect(sess, "verification failed")
			return
		}

		metricMessagesReceived.Inc(1)
		s.events <- Event{SessionID: sess.id, Kind: EventNewMessage, Message: verified}
	}
}

var errOversizeFrame = fmt.Errorf("frame exceeds %d bytes", MaxFrameSize)

// readFrame reads bytes up to and including a NUL terminator. A frame
// whose length, NUL included, reaches MaxFrameSize is rejected — so a
// frame of exactly MaxFrameSize bytes (NUL included) is oversize, not
// merely a frame that exceeds it.
func readFrame(r *bufio.Reader) ([]byte, error) {
	var buf []byte
	for n := 0; ; n++ {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if n+1 >= MaxFrameSize {
			return nil, errOversizeFrame
		}
		if b == 0x00 {
			return buf, nil
		}
		buf = append(buf, b)
	}
}

// writeLoop serializes every frame sent to one session; the mutex
// discipline required by the spec collapses here to "one goroutine
// per session", which needs no explicit lock at all.
func (s *Service) writeLoop(sess *session) {
	writer := bufio.NewWriterSize(sess.conn, MaxFrameSize)
	for {
		select {
		case msg := <-sess.outbox:
			wire := msg.Unverified()
			encoded, err := json.Marshal(wire)
			if err != nil {
				logger.Error("failed to encode outgoing message", "session", sess.id, "err", err)
				continue
			}
			if _, err := writer.Write(encoded); err == nil {
				_, err = writer.Write([]byte{0x00})
			}
			if err == nil {
				err = writer.Flush()
			}
			if err != nil {
				s.disconnect(sess, "io error")
				return
			}
			metricMessagesSent.Inc(1)
		case <-sess.done:
			return
		}
	}
}

// dispatchCommands is the single loop translating PeerCommands from
// GossipService into per-session writes or drops.
func (s *Service) dispatchCommands() {
	for cmd := range s.commands {
		s.tableMu.Lock()
		sess, ok := s.sessions[cmd.SessionID]
		s.tableMu.Unlock()
		if !ok {
			continue
		}
		switch cmd.Kind {
		case CommandSendMessage:
			select {
			case sess.outbox <- cmd.Message:
			default:
				metricMessagesDropped.Inc(1)
				logger.Warn("dropping message, session outbox full", "session", sess.id)
			}
		case CommandDrop:
			s.drop(sess)
		}
	}
}

// disconnect tears the session down and reports it, used by the
// reader/writer loops on I/O failure.
func (s *Service) disconnect(sess *session, reason string) {
	s.drop(sess)
	s.events <- Event{SessionID: sess.id, Kind: EventDisconnected, Reason: reason}
}

// drop removes the session from the table and closes its socket. It
// is idempotent: a session already closed by the reader side is a
// harmless no-op when GossipService's Drop command arrives afterward.
func (s *Service) drop(sess *session) {
	s.tableMu.Lock()
	_, existed := s.sessions[sess.id]
	delete(s.sessions, sess.id)
	s.tableMu.Unlock()
	if existed {
		metricSessionsActive.Dec(1)
	}
	sess.close()
}
