package realtime

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lalith-99/tribechat/internal/chat"
	"github.com/lalith-99/tribechat/internal/events"
	"go.uber.org/zap"
)

// Gateway owns the shared state every websocket session needs.
type Gateway struct {
	registry  *Registry
	hub       *Hub
	bus       chat.Broadcaster
	direct    *chat.MessageService
	tribe     *chat.MessageService
	queueSize int
	logger    *zap.Logger
}

type GatewayConfig struct {
	Registry  *Registry
	Hub       *Hub
	Bus       chat.Broadcaster
	Direct    *chat.MessageService
	Tribe     *chat.MessageService
	QueueSize int
	Logger    *zap.Logger
}

func NewGateway(cfg GatewayConfig) *Gateway {
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 256
	}
	return &Gateway{
		registry:  cfg.Registry,
		hub:       cfg.Hub,
		bus:       cfg.Bus,
		direct:    cfg.Direct,
		tribe:     cfg.Tribe,
		queueSize: cfg.QueueSize,
		logger:    cfg.Logger.Named("gateway"),
	}
}

// Serve runs one connection until it closes. user is the authenticated
// user, or uuid.Nil for an anonymous connection.
func (g *Gateway) Serve(ctx context.Context, conn *websocket.Conn, user uuid.UUID) {
	client := NewClient(conn, g.queueSize, g.logger)
	s := &session{
		gateway: g,
		client:  client,
		user:    user,
		ctx:     context.WithoutCancel(ctx),
		logger:  client.logger,
	}

	g.hub.Register(client)
	s.logger.Debug("connected", zap.String("user_id", user.String()))
	defer s.disconnect()

	go client.writePump()
	client.readPump(s.handle)
}

// session handles the commands of one connection, one at a time.
type session struct {
	gateway *Gateway
	client  *Client
	user    uuid.UUID
	ctx     context.Context
	logger  *zap.Logger
}

func (s *session) disconnect() {
	g := s.gateway
	g.hub.Unregister(s.client.ID())
	if entry, ok := g.registry.Leave(s.client.ID()); ok {
		s.broadcastRoster(entry.Room)
	}
	s.logger.Debug("disconnected")
}

func (s *session) handle(raw []byte) {
	ack, cmd, err := events.DecodeCommand(raw)
	if err != nil {
		s.reply(ack, fmt.Errorf("%w: %w", chat.ErrValidation, err))
		return
	}
	s.reply(ack, s.dispatch(cmd))
}

func (s *session) dispatch(cmd events.Command) error {
	g := s.gateway
	switch c := cmd.(type) {
	case *events.Join:
		return s.join(c)
	case *events.CreateMessage:
		return s.send(g.direct, c.Text)
	case *events.TribeCreateMessage:
		return s.send(g.tribe, c.Text)
	case *events.MessageSeen:
		if _, err := s.joined(); err != nil {
			return err
		}
		_, err := g.direct.MarkSeen(s.ctx, c.MessageID)
		return err
	case *events.DeleteMessage:
		return s.delete(g.direct, c.MessageID, c.DeleteType)
	case *events.DeleteTribeMessage:
		return s.delete(g.tribe, c.MessageID, c.DeleteType)
	}
	return fmt.Errorf("%w: unsupported command %s", chat.ErrValidation, cmd.CommandName())
}

func (s *session) join(c *events.Join) error {
	if s.user != uuid.Nil && c.UserID != s.user.String() {
		return fmt.Errorf("%w: userId does not match the authenticated user", chat.ErrInvalidSender)
	}
	if s.user != uuid.Nil {
		if err := s.gateway.authorizeRoom(s.ctx, c.Room, s.user); err != nil {
			return err
		}
	}

	previous, err := s.gateway.registry.Join(s.client.ID(), c.UserID, c.Name, c.Room)
	if err != nil {
		return err
	}
	s.broadcastRoster(c.Room)
	if previous != "" && previous != c.Room {
		s.broadcastRoster(previous)
	}
	s.logger.Debug("joined", zap.String("room", c.Room), zap.String("previous", previous))
	return nil
}

// authorizeRoom checks that user takes part in the direct, group or tribe
// lobby named by room.
func (g *Gateway) authorizeRoom(ctx context.Context, room string, user uuid.UUID) error {
	for _, messages := range []*chat.MessageService{g.direct, g.tribe} {
		participants, err := messages.Participants(ctx, room)
		if errors.Is(err, chat.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if !slices.Contains(participants, user) {
			return fmt.Errorf("%w: user is not a participant of %s", chat.ErrValidation, room)
		}
		return nil
	}
	return fmt.Errorf("%w: room %s", chat.ErrNotFound, room)
}

func (s *session) joined() (Entry, error) {
	entry, ok := s.gateway.registry.Get(s.client.ID())
	if !ok {
		return Entry{}, fmt.Errorf("%w: join a room first", chat.ErrValidation)
	}
	return entry, nil
}

func (s *session) send(messages *chat.MessageService, text string) error {
	entry, err := s.joined()
	if err != nil {
		return err
	}
	_, err = messages.Send(s.ctx, chat.SendRequest{
		LobbyID:  entry.Room,
		SenderID: entry.UserID,
		Text:     text,
	})
	return err
}

func (s *session) delete(messages *chat.MessageService, messageID int64, scope string) error {
	entry, err := s.joined()
	if err != nil {
		return err
	}
	actor, err := uuid.Parse(entry.UserID)
	if err != nil {
		return fmt.Errorf("%w: %q is not a user id", chat.ErrInvalidSender, entry.UserID)
	}
	_, err = messages.Delete(s.ctx, chat.DeleteRequest{
		MessageID: messageID,
		ActorID:   actor,
		Scope:     chat.DeleteScope(scope),
	})
	return err
}

func (s *session) broadcastRoster(room string) {
	g := s.gateway
	err := g.bus.Broadcast(s.ctx, room, events.UpdateUserList{Users: g.registry.RosterOf(room)})
	if err != nil {
		s.logger.Error("roster broadcast failed", zap.String("room", room), zap.Error(err))
	}
}

// reply acknowledges a command. Commands without an ack id only get a
// reply when they fail.
func (s *session) reply(ack string, err error) {
	if ack == "" && err == nil {
		return
	}

	var code, text string
	if err != nil {
		code = chat.Code(err)
		text = err.Error()
		if code == "persistence" {
			s.logger.Error("command failed", zap.String("ack", ack), zap.Error(err))
			text = "internal error"
		} else {
			s.logger.Debug("command rejected", zap.String("ack", ack), zap.Error(err))
		}
	}

	frame, encErr := events.Ack(ack, code, text)
	if encErr != nil {
		s.logger.Error("encode ack", zap.Error(encErr))
		return
	}
	s.gateway.hub.SendTo(s.client.ID(), frame)
}
