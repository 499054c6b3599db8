// README: WebSocket endpoints; first-message auth, room join, event write pump.
package realtime

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"swiftcab/internal/modules/events"
	"swiftcab/internal/types"
)

const (
	authTimeout  = 5 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

// TokenValidator checks the first-message auth token and yields the caller's
// identity and role.
type TokenValidator interface {
	Validate(token string) (subject types.ID, role string, err error)
}

type Server struct {
	bus      *events.Bus
	validate TokenValidator
	upgrader websocket.Upgrader
}

func NewServer(bus *events.Bus, validate TokenValidator) *Server {
	return &Server{
		bus:      bus,
		validate: validate,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

type authMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// HandleUser upgrades the connection and joins the caller's user room.
func (s *Server) HandleUser(c *gin.Context) { s.serve(c, "user") }

// HandleDriver upgrades the connection and joins the caller's driver room.
func (s *Server) HandleDriver(c *gin.Context) { s.serve(c, "driver") }

// HandleAdmin upgrades the connection and joins the admin broadcast room.
func (s *Server) HandleAdmin(c *gin.Context) { s.serve(c, "admin") }

func (s *Server) serve(c *gin.Context, wantRole string) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	subject, ok := s.authenticate(conn, wantRole)
	if !ok {
		return
	}

	sub := events.NewSubscriber()
	switch wantRole {
	case "user":
		s.bus.JoinUserRoom(subject, sub)
	case "driver":
		s.bus.JoinDriverRoom(subject, sub)
	case "admin":
		s.bus.JoinAdminRoom(sub)
	}
	defer s.bus.Leave(sub)

	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"status":"authenticated"}`))

	closed := make(chan struct{})
	go s.readLoop(conn, closed)
	s.writeLoop(conn, sub, closed)
}

func (s *Server) authenticate(conn *websocket.Conn, wantRole string) (types.ID, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(authTimeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"auth_timeout"}`))
		return "", false
	}

	var msg authMessage
	_ = json.Unmarshal(raw, &msg)
	if msg.Type != "auth" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid_auth_message"}`))
		return "", false
	}

	subject, role, err := s.validate.Validate(msg.Token)
	if err != nil || (role != wantRole && role != "admin") {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid_token"}`))
		return "", false
	}
	return subject, true
}

// readLoop drains client frames to keep pong handling alive and detect close.
func (s *Server) readLoop(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writeLoop(conn *websocket.Conn, sub *events.Subscriber, closed <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev := <-sub.Events():
			if err := conn.WriteJSON(ev); err != nil {
				log.Printf("ws write failed: %v", err)
				return
			}
		}
	}
}
