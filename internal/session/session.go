// Package session implements one client connection's state machine
// (spec §4.F): outbound delivery from the Message Bus, an independent
// 5-second heartbeat, and inbound event dispatch.
package session

import (
	"log"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/PrecursorApp/reloadsrv/internal/bus"
	"github.com/PrecursorApp/reloadsrv/internal/callbackreg"
	"github.com/PrecursorApp/reloadsrv/internal/fileopen"
	"github.com/PrecursorApp/reloadsrv/internal/wire"
)

// State is the Session's lifecycle state (spec §4.F).
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

const (
	heartbeatInterval = 5 * time.Second
	writeWait         = 10 * time.Second
)

// Session owns one upgraded websocket connection.
type Session struct {
	conn            *websocket.Conn
	b               *bus.Bus
	sub             *bus.Subscription
	callbacks       *callbackreg.Registry
	projectID       string
	openFileCommand string
	onClose         func()

	state atomic.Int32
}

// New constructs a Session in StateConnecting. Call Run to drive it.
// onClose is invoked exactly once, when the Session transitions to
// StateClosed, so the caller can decrement its connection counter
// (spec §4.F: "On CLOSED: decrement the connection counter").
func New(conn *websocket.Conn, b *bus.Bus, callbacks *callbackreg.Registry, projectID, openFileCommand string, onClose func()) *Session {
	s := &Session{
		conn:            conn,
		b:               b,
		callbacks:       callbacks,
		projectID:       projectID,
		openFileCommand: openFileCommand,
		onClose:         onClose,
	}
	s.state.Store(int32(StateConnecting))
	return s
}

// State returns the Session's current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Run drives the Session until the connection closes or errors. It
// blocks the calling goroutine; the HTTP handler that performed the
// websocket upgrade is expected to call it directly.
func (s *Session) Run() {
	s.sub = s.b.Subscribe()
	s.state.Store(int32(StateOpen))

	readerDone := make(chan struct{})
	go s.readLoop(readerDone)

	s.writeLoop(readerDone)
	s.close()
}

func (s *Session) close() {
	s.state.Store(int32(StateClosed))
	if s.sub != nil {
		s.sub.Close()
	}
	_ = s.conn.Close()
	if s.onClose != nil {
		s.onClose()
	}
}

// writeLoop is the Session's single writer: bus deliveries and
// heartbeat pings are serialized through it because a single
// websocket connection is not safe for concurrent writes. It returns
// when the connection can no longer be written to, or when readerDone
// fires (the read loop observed a peer close or transport error).
func (s *Session) writeLoop(readerDone <-chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-readerDone:
			return
		case msg := <-s.sub.C():
			if !s.send(msg) {
				return
			}
		case <-ticker.C:
			if !s.send(wire.NewPing(s.projectID)) {
				return
			}
		}
	}
}

func (s *Session) send(msg wire.Message) bool {
	b, err := wire.Encode(msg)
	if err != nil {
		log.Printf("session: failed to encode %s: %v", msg.MsgName, err)
		return true // not a transport failure; keep the session open
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return false
	}
	return true
}

// readLoop parses inbound frames and dispatches them (spec §4.F). It
// closes readerDone when the connection can no longer be read from.
func (s *Session) readLoop(readerDone chan<- struct{}) {
	defer close(readerDone)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		ev, err := wire.DecodeInbound(data)
		if err != nil {
			log.Printf("session: dropping malformed inbound frame: %v", err)
			continue
		}
		if ev.FigwheelEvent == "" {
			log.Printf("session: dropping frame with no figwheel-event")
			continue
		}
		s.dispatch(ev)
	}
}

func (s *Session) dispatch(ev wire.InboundEvent) {
	switch ev.FigwheelEvent {
	case wire.EventCallback:
		if s.callbacks != nil {
			s.callbacks.Invoke(ev.CallbackName, ev.Content)
		}
	case wire.EventFileSelected:
		if s.openFileCommand != "" {
			fileopen.Open(s.openFileCommand, ev.FileName, ev.FileLine)
		}
	default:
		log.Printf("session: dropping unknown figwheel-event %q", ev.FigwheelEvent)
	}
}
