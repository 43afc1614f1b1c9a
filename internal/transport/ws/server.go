package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"hexstride.io/internal/protocol"
	"hexstride.io/internal/room"
)

// Router picks the room a new connection joins.
type Router interface {
	Route(preference string) (*room.Room, error)
}

type Server struct {
	rooms     Router
	claims    ClaimsProvider
	validator *protocol.Validator
	log       *log.Logger

	upgrader websocket.Upgrader
	outQueue int
}

func NewServer(rooms Router, claims ClaimsProvider, validator *protocol.Validator, logger *log.Logger) *Server {
	return &Server{
		rooms:     rooms,
		claims:    claims,
		validator: validator,
		log:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		outQueue: 64,
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		rm, sessionID, out := s.handshake(ctx, conn)
		if rm == nil {
			return
		}
		defer rm.Leave(sessionID)

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				return
			}
			base, err := s.validator.Inbound(msg)
			if err != nil {
				s.reply(out, protocol.ErrorMsg(protocol.ErrInvalidPayload, err.Error()))
				continue
			}
			switch base.Type {
			case protocol.TypeMove:
				var m protocol.MoveMsg
				if err := json.Unmarshal(msg, &m); err != nil {
					s.reply(out, protocol.ErrorMsg(protocol.ErrInvalidPayload, "bad move"))
					continue
				}
				if err := rm.Move(sessionID, m.HexID); err != nil {
					s.reply(out, protocol.ErrorMsg(protocol.ErrDenied, err.Error()))
				}
			case protocol.TypeSnapshotRequest:
				if err := rm.RequestSnapshot(sessionID); err != nil {
					s.reply(out, protocol.ErrorMsg(protocol.ErrDenied, err.Error()))
				}
			default:
				s.reply(out, protocol.ErrorMsg(protocol.ErrInvalidPayload, "unexpected "+base.Type))
			}
		}
	}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (*room.Room, string, chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, "", nil
	}

	base, err := s.validator.Inbound(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, websocket.ClosePolicyViolation, "expected HELLO")
		return nil, "", nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil, "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, websocket.ClosePolicyViolation, "bad protocol_version")
		return nil, "", nil
	}

	token := ""
	if hello.Auth != nil {
		token = strings.TrimSpace(hello.Auth.Token)
	}
	playerID, err := s.claims.PlayerID(token)
	if err != nil {
		closeWith(conn, websocket.ClosePolicyViolation, "unauthorized")
		return nil, "", nil
	}

	rm, err := s.rooms.Route(hello.RoomPreference)
	if err != nil {
		closeWith(conn, websocket.ClosePolicyViolation, "unknown room")
		return nil, "", nil
	}

	out := make(chan []byte, s.outQueue)
	joinCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	welcome, err := rm.Join(joinCtx, playerID, out)
	if err != nil {
		reason := "join failed"
		if errors.Is(err, room.ErrRoomFull) {
			reason = "room full"
		}
		if s.log != nil {
			s.log.Printf("join rejected player=%s room=%s err=%v", playerID, rm.ID(), err)
		}
		closeWith(conn, websocket.CloseTryAgainLater, reason)
		return nil, "", nil
	}

	if err := writeJSON(conn, welcome); err != nil {
		rm.Leave(welcome.SessionID)
		return nil, "", nil
	}
	return rm, welcome.SessionID, out
}

// reply queues a transport-level error without blocking the reader.
func (s *Server) reply(out chan []byte, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
