// Package session runs one WebSocket connection: a read loop that decodes commands for the hub
// and a write loop that drains the outbound queue and keeps the connection alive with pings.
package session

import (
	"encoding/json"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"

	"github.com/shubham-shewale/market-analytics/cmd/gateway/internal/hub"
	"github.com/shubham-shewale/market-analytics/cmd/gateway/internal/protocol"
)

const (
	MaxMessageSize = 64 * 1024
	sendQueue      = 256
)

// Commander is the part of the hub a session talks to.
type Commander interface {
	HandleCommand(s hub.Subscriber, req protocol.WSRequest)
	Unregister(s hub.Subscriber)
}

type Options struct {
	WriteWait  time.Duration
	PongWait   time.Duration
	PingPeriod time.Duration
}

func DefaultOptions() Options {
	return Options{
		WriteWait:  5 * time.Second,
		PongWait:   60 * time.Second,
		PingPeriod: 50 * time.Second,
	}
}

type Session struct {
	conn   net.Conn
	hub    Commander
	logger *zap.Logger
	opts   Options

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func New(conn net.Conn, h Commander, logger *zap.Logger, opts Options) *Session {
	return &Session{
		conn:   conn,
		hub:    h,
		logger: logger,
		opts:   opts,
		send:   make(chan []byte, sendQueue),
		done:   make(chan struct{}),
	}
}

func (s *Session) Start() {
	go s.writeLoop()
	go s.readLoop()
}

func (s *Session) ID() string { return s.conn.RemoteAddr().String() }

// Close stops the write loop, which closes the connection. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Session) SendJSON(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("JSON Marshal Error", zap.Error(err))
		return
	}
	s.SendBytes(b)
}

// SendBytes queues b without blocking. Messages are dropped when the queue is full or the session is closed.
func (s *Session) SendBytes(b []byte) {
	select {
	case <-s.done:
	case s.send <- b:
	default:
		s.logger.Debug("Dropping message for slow client", zap.String("client", s.ID()))
	}
}

func (s *Session) readLoop() {
	defer func() {
		s.hub.Unregister(s)
		s.conn.Close()
	}()

	s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))

	for {
		op, payload, err := s.readFrame()
		if err != nil {
			if err != io.EOF {
				s.logger.Debug("Closing session", zap.String("client", s.ID()), zap.Error(err))
			}
			return
		}

		switch op {
		case ws.OpClose:
			return
		case ws.OpPong, ws.OpPing:
			s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
		case ws.OpText:
			var req protocol.WSRequest
			if err := json.Unmarshal(payload, &req); err != nil {
				s.SendJSON(protocol.WSResponse{Type: protocol.TypeError, Status: "error", Message: "Invalid JSON"})
				continue
			}
			s.hub.HandleCommand(s, req)
		}
	}
}

type frameError string

func (e frameError) Error() string { return string(e) }

const (
	errTooLarge   frameError = "frame exceeds maximum message size"
	errFragmented frameError = "fragmented frames are not supported"
)

func (s *Session) readFrame() (ws.OpCode, []byte, error) {
	header, err := ws.ReadHeader(s.conn)
	if err != nil {
		return 0, nil, err
	}
	if header.Length > MaxMessageSize {
		return 0, nil, errTooLarge
	}
	if !header.Fin {
		return 0, nil, errFragmented
	}

	payload := make([]byte, header.Length)
	if _, err := io.ReadFull(s.conn, payload); err != nil {
		return 0, nil, err
	}
	if header.Masked {
		ws.Cipher(payload, header.Mask, 0)
	}
	return header.OpCode, payload, nil
}

func (s *Session) writeLoop() {
	ping := time.NewTicker(s.opts.PingPeriod)
	defer func() {
		ping.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
			s.conn.Write(ws.CompiledClose)
			return

		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
			if err := wsutil.WriteServerText(s.conn, msg); err != nil {
				return
			}

		case <-ping.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
			if err := wsutil.WriteServerMessage(s.conn, ws.OpPing, nil); err != nil {
				return
			}
		}
	}
}
