package chat

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/tribechat/internal/blob"
	"github.com/lalith-99/tribechat/internal/events"
	"github.com/lalith-99/tribechat/internal/models"
	"github.com/lalith-99/tribechat/internal/repository"
	"go.uber.org/zap"
)

// DeletionWindow is how long after sending a message may still be deleted
// for everyone.
const DeletionWindow = 7 * time.Minute

type DeleteScope string

const (
	ScopeForMe       DeleteScope = "forMe"
	ScopeForEveryone DeleteScope = "forEveryone"
)

// Broadcaster pushes an event to everyone currently in a room. Rooms are
// named by lobby id.
type Broadcaster interface {
	Broadcast(ctx context.Context, room string, e events.Event) error
}

// Conversations is the lobby side of a message stream: who takes part,
// and how the lobby's hidden set changes.
type Conversations interface {
	Participants(ctx context.Context, lobbyID string) ([]uuid.UUID, error)
	ClearHidden(ctx context.Context, lobbyID string) error
	HideForUser(ctx context.Context, lobbyID string, user uuid.UUID) error
}

// MessageService runs the message lifecycle for one kind of lobby:
// Active, then HiddenForSome as participants delete it for themselves,
// then Purged once everyone has or a participant deletes it for everyone.
type MessageService struct {
	lobbies  Conversations
	messages repository.MessageRepository
	users    repository.UserDirectory
	blobs    repository.BlobStore
	bus      Broadcaster
	fanout   *Fanout
	logger   *zap.Logger

	created func(events.MessagePayload) events.Event
	now     func() time.Time
}

type Option func(*MessageService)

// WithClock replaces time.Now when checking the deletion window.
func WithClock(now func() time.Time) Option {
	return func(s *MessageService) { s.now = now }
}

// WithBlobStore enables file cleanup on purge.
func WithBlobStore(blobs repository.BlobStore) Option {
	return func(s *MessageService) { s.blobs = blobs }
}

type Deps struct {
	Messages repository.MessageRepository
	Users    repository.UserDirectory
	Bus      Broadcaster
	Fanout   *Fanout
	Logger   *zap.Logger
}

// NewDirectMessages serves direct and group lobbies. New messages go out
// as newMessage.
func NewDirectMessages(lobbies *LobbyService, deps Deps, opts ...Option) *MessageService {
	return newMessageService(lobbies, deps, "messages", func(p events.MessagePayload) events.Event {
		return events.NewMessage{MessagePayload: p}
	}, opts)
}

// NewTribeMessages serves tribe lobbies. New messages go out as
// newTribeMessage.
func NewTribeMessages(lobbies *TribeLobbyService, deps Deps, opts ...Option) *MessageService {
	return newMessageService(lobbies, deps, "tribe_messages", func(p events.MessagePayload) events.Event {
		return events.NewTribeMessage{MessagePayload: p}
	}, opts)
}

func newMessageService(lobbies Conversations, deps Deps, name string, created func(events.MessagePayload) events.Event, opts []Option) *MessageService {
	s := &MessageService{
		lobbies:  lobbies,
		messages: deps.Messages,
		users:    deps.Users,
		bus:      deps.Bus,
		fanout:   deps.Fanout,
		logger:   deps.Logger.Named(name),
		created:  created,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type SendRequest struct {
	LobbyID  string
	SenderID string
	Kind     models.MessageKind
	Text     string
	FileRef  string
}

// Send persists a message, makes the lobby visible again to everyone,
// broadcasts it to the room and notifies the other participants.
// Once the message is stored, later failures are logged and do not fail
// the call.
func (s *MessageService) Send(ctx context.Context, req SendRequest) (*models.Message, error) {
	msg := &models.Message{
		LobbyID: req.LobbyID,
		Kind:    req.Kind,
		Body:    strings.TrimSpace(req.Text),
		FileRef: strings.TrimSpace(req.FileRef),
	}
	if msg.Kind == "" {
		msg.Kind = models.KindText
	}
	switch msg.Kind {
	case models.KindText:
		if msg.Body == "" {
			return nil, fmt.Errorf("%w: text is required", ErrValidation)
		}
		msg.FileRef = ""
	case models.KindFile:
		if msg.FileRef == "" {
			return nil, fmt.Errorf("%w: file reference is required", ErrValidation)
		}
	default:
		return nil, fmt.Errorf("%w: unknown message type %q", ErrValidation, msg.Kind)
	}
	if req.LobbyID == "" {
		return nil, fmt.Errorf("%w: lobby is required", ErrValidation)
	}

	sender, err := s.resolveSender(ctx, req.SenderID)
	if err != nil {
		return nil, err
	}
	msg.SenderID = sender.ID

	// A file message may only point at the sender's own uploads for this
	// lobby; deleting the message later removes the file.
	if msg.Kind == models.KindFile {
		if err := blob.CheckOwned(msg.FileRef, blob.UploadPrefix(req.LobbyID, sender.ID.String())); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
	}

	participants, err := s.lobbies.Participants(ctx, req.LobbyID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(participants, sender.ID) {
		return nil, fmt.Errorf("%w: sender is not a participant of lobby %s", ErrValidation, req.LobbyID)
	}

	saved, err := s.messages.Create(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("%w: create message: %w", ErrPersistence, err)
	}

	if err := s.lobbies.ClearHidden(ctx, req.LobbyID); err != nil {
		s.logger.Error("failed to revive lobby", zap.String("lobby_id", req.LobbyID), zap.Error(err))
	}
	s.broadcast(ctx, req.LobbyID, s.created(events.NewMessagePayload(saved, sender.DisplayName)))
	if s.fanout != nil {
		// Failures are logged by the fan-out itself.
		_ = s.fanout.MessageCreated(ctx, participants, *sender)
	}

	s.logger.Debug("message sent",
		zap.Int64("message_id", saved.ID),
		zap.String("lobby_id", saved.LobbyID),
	)
	return saved, nil
}

func (s *MessageService) resolveSender(ctx context.Context, raw string) (*models.User, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return nil, fmt.Errorf("%w: %q is not a user id", ErrInvalidSender, raw)
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: look up sender: %w", ErrPersistence, err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: unknown user %s", ErrInvalidSender, id)
	}
	return user, nil
}

// MarkSeen flags the message as seen and tells the room.
func (s *MessageService) MarkSeen(ctx context.Context, messageID int64) (*models.Message, error) {
	msg, err := s.messages.MarkSeen(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("%w: mark seen: %w", ErrPersistence, err)
	}
	if msg == nil {
		return nil, fmt.Errorf("%w: message %d", ErrNotFound, messageID)
	}

	s.broadcast(ctx, msg.LobbyID, events.MessageUpdated{
		MessagePayload: events.NewMessagePayload(msg, s.senderName(ctx, msg.SenderID)),
	})
	return msg, nil
}

type DeleteRequest struct {
	MessageID int64
	ActorID   uuid.UUID
	Scope     DeleteScope

	// LobbyID, when set, must match the message's lobby.
	LobbyID string
}

// Delete applies a forMe or forEveryone deletion. It reports whether the
// message was removed from storage.
func (s *MessageService) Delete(ctx context.Context, req DeleteRequest) (bool, error) {
	switch req.Scope {
	case ScopeForMe:
		return s.hide(ctx, req.MessageID, req.ActorID, req.LobbyID)
	case ScopeForEveryone:
		if err := s.deleteForEveryone(ctx, req.MessageID, req.ActorID, req.LobbyID); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, fmt.Errorf("%w: unknown delete scope %q", ErrValidation, req.Scope)
	}
}

func (s *MessageService) deleteForEveryone(ctx context.Context, messageID int64, actor uuid.UUID, lobbyID string) error {
	msg, _, err := s.loadForActor(ctx, messageID, actor, lobbyID)
	if err != nil {
		return err
	}

	if age := s.now().Sub(msg.SentAt); age >= DeletionWindow {
		return fmt.Errorf("%w: message %d is %s old", ErrDeletionWindowExpired, messageID, age.Truncate(time.Second))
	}

	s.deleteBlob(ctx, msg)
	removed, err := s.messages.Delete(ctx, messageID)
	if err != nil {
		return fmt.Errorf("%w: delete message: %w", ErrPersistence, err)
	}
	if !removed {
		return fmt.Errorf("%w: message %d", ErrNotFound, messageID)
	}
	s.broadcast(ctx, msg.LobbyID, events.MessageDeleted{MessageID: messageID})
	return nil
}

// HideForUser deletes the message for user only. When every participant
// has done so the message is purged and the room is told.
func (s *MessageService) HideForUser(ctx context.Context, messageID int64, user uuid.UUID) (bool, error) {
	return s.hide(ctx, messageID, user, "")
}

func (s *MessageService) hide(ctx context.Context, messageID int64, user uuid.UUID, lobbyID string) (bool, error) {
	msg, participants, err := s.loadForActor(ctx, messageID, user, lobbyID)
	if err != nil {
		return false, err
	}

	final, purged, err := s.messages.Hide(ctx, messageID, user, participants)
	if err != nil {
		return false, fmt.Errorf("%w: hide message: %w", ErrPersistence, err)
	}
	if final == nil {
		return false, fmt.Errorf("%w: message %d", ErrNotFound, messageID)
	}
	if purged {
		s.afterPurge(ctx, msg.LobbyID, []models.Message{*final})
	}
	return purged, nil
}

// HideConversation hides the lobby for user and deletes every message in
// it for user. Messages everyone else already deleted are purged.
func (s *MessageService) HideConversation(ctx context.Context, lobbyID string, user uuid.UUID) (int, error) {
	participants, err := s.lobbies.Participants(ctx, lobbyID)
	if err != nil {
		return 0, err
	}
	if !slices.Contains(participants, user) {
		return 0, fmt.Errorf("%w: user is not a participant of lobby %s", ErrValidation, lobbyID)
	}
	if err := s.lobbies.HideForUser(ctx, lobbyID, user); err != nil {
		return 0, err
	}

	purged, err := s.messages.HideAll(ctx, lobbyID, user, participants)
	if err != nil {
		return 0, fmt.Errorf("%w: hide conversation: %w", ErrPersistence, err)
	}
	s.afterPurge(ctx, lobbyID, purged)
	return len(purged), nil
}

// History returns the lobby's messages visible to viewer, oldest first,
// each with its sender's display name.
func (s *MessageService) History(ctx context.Context, lobbyID string, viewer uuid.UUID) ([]events.MessagePayload, error) {
	participants, err := s.lobbies.Participants(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(participants, viewer) {
		return nil, fmt.Errorf("%w: user is not a participant of lobby %s", ErrValidation, lobbyID)
	}

	msgs, err := s.messages.ListVisible(ctx, lobbyID, viewer)
	if err != nil {
		return nil, fmt.Errorf("%w: list messages: %w", ErrPersistence, err)
	}

	senders := make([]uuid.UUID, 0, len(msgs))
	for _, m := range msgs {
		senders = append(senders, m.SenderID)
	}
	names, err := s.users.FindMany(ctx, models.CanonicalParticipants(senders))
	if err != nil {
		return nil, fmt.Errorf("%w: load senders: %w", ErrPersistence, err)
	}

	out := make([]events.MessagePayload, 0, len(msgs))
	for i := range msgs {
		out = append(out, events.NewMessagePayload(&msgs[i], names[msgs[i].SenderID].DisplayName))
	}
	return out, nil
}

// Participants lists the users taking part in lobbyID.
func (s *MessageService) Participants(ctx context.Context, lobbyID string) ([]uuid.UUID, error) {
	return s.lobbies.Participants(ctx, lobbyID)
}

func (s *MessageService) loadForActor(ctx context.Context, messageID int64, actor uuid.UUID, lobbyID string) (*models.Message, []uuid.UUID, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: get message: %w", ErrPersistence, err)
	}
	if msg == nil || (lobbyID != "" && msg.LobbyID != lobbyID) {
		return nil, nil, fmt.Errorf("%w: message %d", ErrNotFound, messageID)
	}
	participants, err := s.lobbies.Participants(ctx, msg.LobbyID)
	if err != nil {
		return nil, nil, err
	}
	if !slices.Contains(participants, actor) {
		return nil, nil, fmt.Errorf("%w: user is not a participant of lobby %s", ErrValidation, msg.LobbyID)
	}
	return msg, participants, nil
}

func (s *MessageService) afterPurge(ctx context.Context, lobbyID string, purged []models.Message) {
	for i := range purged {
		s.deleteBlob(ctx, &purged[i])
		s.broadcast(ctx, lobbyID, events.MessageDeleted{MessageID: purged[i].ID})
	}
	if len(purged) > 0 {
		s.logger.Info("messages purged", zap.String("lobby_id", lobbyID), zap.Int("count", len(purged)))
	}
}

// deleteBlob is best-effort: the message is removed whether or not the
// file could be.
func (s *MessageService) deleteBlob(ctx context.Context, msg *models.Message) {
	if s.blobs == nil || msg.Kind != models.KindFile || msg.FileRef == "" {
		return
	}
	if err := s.blobs.Delete(ctx, msg.FileRef); err != nil {
		s.logger.Warn("failed to delete blob",
			zap.Int64("message_id", msg.ID),
			zap.String("file_ref", msg.FileRef),
			zap.Error(err),
		)
	}
}

func (s *MessageService) broadcast(ctx context.Context, room string, e events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Broadcast(ctx, room, e); err != nil {
		s.logger.Error("broadcast failed",
			zap.String("room", room),
			zap.String("event", string(e.Name())),
			zap.Error(err),
		)
	}
}

func (s *MessageService) senderName(ctx context.Context, id uuid.UUID) string {
	u, err := s.users.FindByID(ctx, id)
	if err != nil || u == nil {
		return ""
	}
	return u.DisplayName
}
