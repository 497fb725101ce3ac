package gateway

import (
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"carbid/internal/admission"
	"carbid/internal/bids/service"
	"carbid/internal/rooms"
	"carbid/pkg/config"
	"carbid/pkg/model"
)

const (
	errMsgInvalidMessage    = "Invalid message format"
	errMsgRateLimitExceeded = "Rate limit exceeded"
)

// Server terminates real-time client connections, decodes inbound envelopes
// into typed commands and routes them through admission control into the bid
// service. It holds no auction state of its own.
type Server struct {
	upgrader websocket.Upgrader
	gate     *admission.ConnectionGate
	limiter  *admission.MessageLimiter
	bids     service.BidService
	rooms    *rooms.Registry
	cfg      *config.Config
}

func NewServer(
	gate *admission.ConnectionGate,
	limiter *admission.MessageLimiter,
	bids service.BidService,
	registry *rooms.Registry,
	cfg *config.Config,
) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		gate:    gate,
		limiter: limiter,
		bids:    bids,
		rooms:   registry,
		cfg:     cfg,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWS)
	return mux
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	origin := originOf(r)

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.cfg.Log.Warn("Websocket upgrade failed", "origin", origin, "error", err)
		return
	}

	if !s.gate.TryAcquire(origin) {
		closeMsg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "connection limit exceeded")
		_ = ws.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait))
		_ = ws.Close()
		return
	}

	conn := newConn(ws, origin, s.cfg.ConnSendBufferSize, s.cfg.Log)
	s.cfg.Log.Info("Client connected", "conn_id", conn.ID(), "origin", origin)

	go conn.writeLoop()
	s.readLoop(conn)
}

func (s *Server) readLoop(conn *Conn) {
	defer func() {
		conn.shutdown()
		s.rooms.LeaveAll(conn)
		s.gate.Release(conn.Origin())
		s.cfg.Log.Info("Client disconnected", "conn_id", conn.ID(), "origin", conn.Origin())
	}()

	conn.ws.SetReadLimit(s.cfg.MaxInboundMsgBytes)

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			return
		}

		if !s.limiter.Allow(conn.Origin()) {
			s.cfg.Log.Warn("Message rate limit exceeded", "conn_id", conn.ID(), "origin", conn.Origin())
			conn.Send(model.ServerMessage{Error: errMsgRateLimitExceeded})
			continue
		}

		env, err := DecodeEnvelope(data)
		if err != nil {
			s.cfg.Log.Warn("Malformed inbound message", "conn_id", conn.ID(), "error", err)
			conn.Send(model.ServerMessage{Error: errMsgInvalidMessage})
			continue
		}

		s.dispatch(conn, env)
	}
}

func (s *Server) dispatch(conn *Conn, env Envelope) {
	switch env.Action {
	case ActionJoinAuction:
		var req model.JoinAuctionRequest
		if err := env.DecodePayload(&req); err != nil {
			conn.Send(model.ServerMessage{Error: errMsgInvalidMessage})
			return
		}
		s.bids.JoinAuction(conn, req)

	case ActionPlaceBid:
		var req model.PlaceBidRequest
		if err := env.DecodePayload(&req); err != nil {
			conn.Send(model.ServerMessage{Error: errMsgInvalidMessage})
			return
		}
		s.bids.PlaceBid(conn, req)

	case ActionAuctionEnd:
		var req model.AuctionEndRequest
		if err := env.DecodePayload(&req); err != nil {
			conn.Send(model.ServerMessage{Error: errMsgInvalidMessage})
			return
		}
		s.bids.EndAuction(conn, req)

	default:
		s.cfg.Log.Debug("Ignoring unknown action", "conn_id", conn.ID(), "action", env.Action)
	}
}

func originOf(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
