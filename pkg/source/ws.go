package source

import (
	"errors"
	"io"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket adapts a websocket connection. Messages are consumed whole and
// carried across calls when a message is larger than the requested region;
// empty messages are skipped so a 0 return always means end of input. A
// normal or going-away closure maps to 0, everything else to -1. When
// timeout is positive, a read deadline of now+timeout is set before every
// message read.
func WebSocket(ws *websocket.Conn, timeout time.Duration) Source {
	return &wsSource{ws: ws, timeout: timeout}
}

type wsSource struct {
	ws      *websocket.Conn
	timeout time.Duration
	carry   []byte // unread remainder of the current message
	err     error
	state   int
}

var _ Source = (*wsSource)(nil)

func (s *wsSource) Load(p []byte) int {
	switch s.state {
	case stateEOF:
		return 0
	case stateFailed:
		return -1
	}
	if len(s.carry) > 0 {
		n := copy(p, s.carry)
		s.carry = s.carry[n:]
		return n
	}
	if len(p) == 0 {
		return 0
	}
	for {
		if s.timeout > 0 {
			if err := s.ws.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
				s.state = stateFailed
				s.err = err
				return -1
			}
		}
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || errors.Is(err, io.EOF) {
				s.state = stateEOF
				return 0
			}
			s.state = stateFailed
			s.err = err
			return -1
		}
		if len(data) == 0 {
			continue
		}
		n := copy(p, data)
		if n < len(data) {
			s.carry = data[n:]
		}
		return n
	}
}

func (s *wsSource) Err() error { return s.err }
