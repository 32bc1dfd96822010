// Package events defines the websocket wire contract. Outbound events and
// inbound commands are closed sets: each name maps to exactly one Go type,
// and anything else is rejected while decoding.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/tribechat/internal/models"
)

type Name string

const (
	NameUpdateUserList  Name = "updateUserList"
	NameNewMessage      Name = "newMessage"
	NameNewTribeMessage Name = "newTribeMessage"
	NameMessageUpdated  Name = "messageUpdated"
	NameMessageDeleted  Name = "messageDeleted"
	NameAck             Name = "ack"
)

// Event is a server-to-client event. The unexported method seals the set.
type Event interface {
	Name() Name
	event()
}

type UpdateUserList struct {
	Users []string `json:"users"`
}

// MessagePayload is what clients render for a message.
type MessagePayload struct {
	ID       int64              `json:"_id"`
	LobbyID  string             `json:"chatLobbyId"`
	SenderID uuid.UUID          `json:"senderId"`
	From     string             `json:"from"`
	Text     string             `json:"text,omitempty"`
	FileRef  string             `json:"fileRef,omitempty"`
	Type     models.MessageKind `json:"type"`
	SentAt   time.Time          `json:"sentAt"`
	Seen     bool               `json:"seen"`
}

func NewMessagePayload(m *models.Message, from string) MessagePayload {
	return MessagePayload{
		ID:       m.ID,
		LobbyID:  m.LobbyID,
		SenderID: m.SenderID,
		From:     from,
		Text:     m.Body,
		FileRef:  m.FileRef,
		Type:     m.Kind,
		SentAt:   m.SentAt,
		Seen:     m.Seen,
	}
}

type NewMessage struct {
	MessagePayload
}

type NewTribeMessage struct {
	MessagePayload
}

type MessageUpdated struct {
	MessagePayload
}

type MessageDeleted struct {
	MessageID int64 `json:"messageId"`
}

func (UpdateUserList) Name() Name  { return NameUpdateUserList }
func (NewMessage) Name() Name      { return NameNewMessage }
func (NewTribeMessage) Name() Name { return NameNewTribeMessage }
func (MessageUpdated) Name() Name  { return NameMessageUpdated }
func (MessageDeleted) Name() Name  { return NameMessageDeleted }

func (UpdateUserList) event()  {}
func (NewMessage) event()      {}
func (NewTribeMessage) event() {}
func (MessageUpdated) event()  {}
func (MessageDeleted) event()  {}

// Frame is the JSON envelope for both directions. Ack carries the client's
// correlation id on commands and is echoed back on the acknowledgment.
type Frame struct {
	Event   Name            `json:"event"`
	Ack     string          `json:"ack,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Encode renders an event as a wire frame.
func Encode(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.Name(), err)
	}
	return json.Marshal(Frame{Event: e.Name(), Data: data})
}

var ErrUnknownEvent = errors.New("unknown event")

// Decode parses a wire frame produced by Encode. The relay uses it to turn
// frames received from other instances back into events.
func Decode(raw []byte) (Event, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	switch f.Event {
	case NameUpdateUserList:
		return decodeAs[UpdateUserList](f)
	case NameNewMessage:
		return decodeAs[NewMessage](f)
	case NameNewTribeMessage:
		return decodeAs[NewTribeMessage](f)
	case NameMessageUpdated:
		return decodeAs[MessageUpdated](f)
	case NameMessageDeleted:
		return decodeAs[MessageDeleted](f)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownEvent, f.Event)
	}
}

func decodeAs[T Event](f Frame) (Event, error) {
	var v T
	if err := json.Unmarshal(f.Data, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.Event, err)
	}
	return v, nil
}

// Ack builds the acknowledgment frame for a command. code is empty on
// success.
func Ack(id, code, message string) ([]byte, error) {
	return json.Marshal(Frame{Event: NameAck, Ack: id, Error: code, Message: message})
}
