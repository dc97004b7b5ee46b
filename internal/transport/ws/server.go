// Package ws is the chat transport: one websocket per client, a login
// handshake that binds the socket to a user object, and a registry that
// fans script-generated events back out to live connections.
package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"scriptmud.dev/internal/engine"
	"scriptmud.dev/internal/protocol"
	"scriptmud.dev/internal/world"
)

type Server struct {
	actor *engine.Actor
	log   *log.Logger

	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[world.Id]map[*client]struct{}
}

type client struct {
	userID world.Id
	out    chan []byte
}

func NewServer(actor *engine.Actor, logger *log.Logger) *Server {
	return &Server{
		actor: actor,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		conns: map[world.Id]map[*client]struct{}{},
	}
}

// Notify marshals a client event and hands it to every connection attached
// to target. Events for offline objects are logged and dropped.
func (s *Server) Notify(target world.Id, event any) {
	b, err := json.Marshal(event)
	if err != nil {
		s.log.Printf("event marshal for %s failed: %v", target, err)
		return
	}
	s.mu.Lock()
	set := s.conns[target]
	clients := make([]*client, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	if len(clients) == 0 {
		s.log.Printf("dropping event for %s: no connection", target)
		return
	}
	for _, c := range clients {
		select {
		case c.out <- b:
		default:
			// Slow client; drop rather than stall the actor's caller.
			s.log.Printf("dropping event for %s: send queue full", target)
		}
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		c := s.handshake(conn)
		if c == nil {
			return
		}
		defer s.detach(c)

		done := make(chan struct{})
		defer close(done)

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-done:
					return
				case b := <-c.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.route(c, msg)
		}
	}
}

// handshake reads the LOGIN message, resolves the user object through the
// actor, replies with WELCOME and registers the connection.
func (s *Server) handshake(conn *websocket.Conn) *client {
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}
	_ = conn.SetReadDeadline(time.Time{})

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeLogin {
		closeWith(conn, "expected LOGIN")
		return nil
	}
	var login protocol.LoginMsg
	if err := json.Unmarshal(msg, &login); err != nil {
		return nil
	}
	if login.ProtocolVersion != protocol.Version {
		closeWith(conn, "bad protocol_version")
		return nil
	}
	username := strings.TrimSpace(login.Username)
	if username == "" {
		closeWith(conn, "empty username")
		return nil
	}

	respCh := make(chan engine.JoinResponse, 1)
	s.actor.Join() <- engine.JoinRequest{Username: username, Resp: respCh}
	resp := <-respCh

	c := &client{userID: resp.UserID, out: make(chan []byte, 64)}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		UserID:          resp.UserID.String(),
		Username:        username,
	}
	b, _ := json.Marshal(welcome)
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return nil
	}

	s.mu.Lock()
	set := s.conns[c.userID]
	if set == nil {
		set = map[*client]struct{}{}
		s.conns[c.userID] = set
	}
	set[c] = struct{}{}
	s.mu.Unlock()

	s.log.Printf("user %s connected as %s", username, c.userID)
	return c
}

// route translates one client JSON message into actor work.
func (s *Server) route(c *client, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return
	}
	switch base.Type {
	case protocol.TypeCommand:
		var cmd protocol.CommandMsg
		if err := json.Unmarshal(msg, &cmd); err != nil {
			return
		}
		id := c.userID
		s.actor.Inbox() <- world.Message{
			Target:          id,
			ImmediateSender: id,
			OriginalUser:    &id,
			Name:            "command",
			Payload:         world.DictOf(map[string]world.Value{"message": world.Str(cmd.Text)}),
		}

	case protocol.TypeSaveFile:
		var save protocol.SaveFileMsg
		if err := json.Unmarshal(msg, &save); err != nil {
			return
		}
		// Handled by the actor itself so a user's first package can be
		// installed before any of their code exists.
		s.actor.SaveFiles() <- engine.SaveFileRequest{
			UserID:  c.userID,
			Name:    save.Name,
			Content: save.Content,
		}

	case protocol.TypeReloadCode:
		s.actor.Control() <- engine.ReloadCode
	}
}

func (s *Server) detach(c *client) {
	s.mu.Lock()
	if set := s.conns[c.userID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(s.conns, c.userID)
		}
	}
	s.mu.Unlock()
	s.log.Printf("connection for %s closed", c.userID)
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(time.Second))
}
