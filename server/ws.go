package server

import (
	"context"
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Websocket message types.
const (
	wsTypeChat       = "chat"
	wsTypeStop       = "stop"
	wsTypeInvocation = "invocation"
	wsTypeUpdate     = "update"
	wsTypeResult     = "result"
	wsTypeError      = "error"
)

// wsInbound is a client message. Chat messages carry SessionID and Input,
// stop messages carry InvocationID.
type wsInbound struct {
	Type         string `json:"type"`
	SessionID    string `json:"session_id,omitempty"`
	Input        string `json:"input,omitempty"`
	InvocationID string `json:"invocation_id,omitempty"`
}

// wsOutbound is a server message.
type wsOutbound struct {
	Type         string `json:"type"`
	SessionID    string `json:"session_id,omitempty"`
	InvocationID string `json:"invocation_id,omitempty"`
	Update       any    `json:"update,omitempty"`
	Value        any    `json:"value,omitempty"`
	Message      string `json:"message,omitempty"`
}

// wsHandler serves one websocket connection. Chat turns run one at a time in
// arrival order; stop messages are handled immediately.
func (s *Server) wsHandler(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("ws.upgrade.error", "error", err.Error())
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	out := make(chan wsOutbound, 16)
	chats := make(chan ChatRequest, 8)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.wsWrite(conn, out)
	}()
	go func() {
		defer close(out)
		s.wsChats(ctx, chats, out)
	}()

	s.wsRead(ctx, conn, chats, out)

	cancel()
	close(chats)
	<-writerDone
}

func (s *Server) wsRead(ctx context.Context, conn *websocket.Conn, chats chan<- ChatRequest, out chan<- wsOutbound) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("ws.read.error", "error", err.Error())
			}
			return
		}

		var msg wsInbound
		if err := json.Unmarshal(data, &msg); err != nil {
			s.wsSend(ctx, out, wsOutbound{Type: wsTypeError, Message: "invalid message: " + err.Error()})
			continue
		}

		switch msg.Type {
		case wsTypeChat:
			req := ChatRequest{SessionID: msg.SessionID, Input: msg.Input}
			req.normalize()
			select {
			case chats <- req:
			case <-ctx.Done():
				return
			}
		case wsTypeStop:
			if err := s.engine.StopInvocation(msg.InvocationID); err != nil {
				s.wsSend(ctx, out, wsOutbound{Type: wsTypeError, InvocationID: msg.InvocationID, Message: err.Error()})
			}
		default:
			s.wsSend(ctx, out, wsOutbound{Type: wsTypeError, Message: "unknown message type: " + msg.Type})
		}
	}
}

func (s *Server) wsChats(ctx context.Context, chats <-chan ChatRequest, out chan<- wsOutbound) {
	for req := range chats {
		inv, err := s.engine.Invoke(ctx, req.SessionID, req.Input)
		if err != nil {
			s.wsSend(ctx, out, wsOutbound{Type: wsTypeError, SessionID: req.SessionID, Message: err.Error()})
			continue
		}

		s.wsSend(ctx, out, wsOutbound{Type: wsTypeInvocation, SessionID: req.SessionID, InvocationID: inv.ID})
		for u := range inv.Sink.Updates(ctx) {
			s.wsSend(ctx, out, wsOutbound{Type: wsTypeUpdate, InvocationID: inv.ID, Update: u})
		}

		<-inv.Result.Done()
		value, err := inv.Result.Value()
		if err != nil {
			s.wsSend(ctx, out, wsOutbound{Type: wsTypeError, SessionID: req.SessionID, InvocationID: inv.ID, Message: err.Error()})
			continue
		}
		s.wsSend(ctx, out, wsOutbound{Type: wsTypeResult, SessionID: req.SessionID, InvocationID: inv.ID, Value: value})
	}
}

// wsWrite is the only writer on conn. After a write error it keeps draining
// out so producers never block.
func (s *Server) wsWrite(conn *websocket.Conn, out <-chan wsOutbound) {
	broken := false
	for msg := range out {
		if broken {
			continue
		}
		if err := conn.WriteJSON(msg); err != nil {
			s.logger.Warn("ws.write.error", "error", err.Error())
			broken = true
		}
	}
}

func (s *Server) wsSend(ctx context.Context, out chan<- wsOutbound, msg wsOutbound) {
	select {
	case out <- msg:
	case <-ctx.Done():
	}
}
