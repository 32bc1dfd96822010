package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin/binding"
)

const (
	NameJoin               Name = "join"
	NameCreateMessage      Name = "createMessage"
	NameTribeCreateMessage Name = "tribeCreateMessage"
	NameMessageSeen        Name = "messageSeen"
	NameDeleteMessage      Name = "deleteMessage"
	NameDeleteTribeMessage Name = "deleteTribeMessage"
)

// ErrInvalidCommand marks frames that are malformed, carry an unknown
// event name, or fail field validation.
var ErrInvalidCommand = errors.New("invalid command")

// Command is a client-to-server event.
type Command interface {
	CommandName() Name
	normalize()
}

type Join struct {
	Name   string `json:"name" binding:"required"`
	Room   string `json:"room" binding:"required"`
	UserID string `json:"userId" binding:"required"`
}

type CreateMessage struct {
	Text string `json:"text" binding:"required"`
}

type TribeCreateMessage struct {
	Text string `json:"text" binding:"required"`
}

type MessageSeen struct {
	MessageID int64  `json:"messageId" binding:"required"`
	Room      string `json:"room"`
}

type DeleteMessage struct {
	MessageID  int64  `json:"messageId" binding:"required"`
	DeleteType string `json:"deleteType" binding:"required,oneof=forMe forEveryone"`
}

type DeleteTribeMessage struct {
	MessageID  int64  `json:"messageId" binding:"required"`
	DeleteType string `json:"deleteType" binding:"required,oneof=forMe forEveryone"`
}

func (*Join) CommandName() Name               { return NameJoin }
func (*CreateMessage) CommandName() Name      { return NameCreateMessage }
func (*TribeCreateMessage) CommandName() Name { return NameTribeCreateMessage }
func (*MessageSeen) CommandName() Name        { return NameMessageSeen }
func (*DeleteMessage) CommandName() Name      { return NameDeleteMessage }
func (*DeleteTribeMessage) CommandName() Name { return NameDeleteTribeMessage }

// Whitespace-only strings count as missing.
func (c *Join) normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.Room = strings.TrimSpace(c.Room)
	c.UserID = strings.TrimSpace(c.UserID)
}
func (c *CreateMessage) normalize()      { c.Text = strings.TrimSpace(c.Text) }
func (c *TribeCreateMessage) normalize() { c.Text = strings.TrimSpace(c.Text) }
func (c *MessageSeen) normalize()        { c.Room = strings.TrimSpace(c.Room) }
func (c *DeleteMessage) normalize()      { c.DeleteType = strings.TrimSpace(c.DeleteType) }
func (c *DeleteTribeMessage) normalize() { c.DeleteType = strings.TrimSpace(c.DeleteType) }

func newCommand(name Name) Command {
	switch name {
	case NameJoin:
		return &Join{}
	case NameCreateMessage:
		return &CreateMessage{}
	case NameTribeCreateMessage:
		return &TribeCreateMessage{}
	case NameMessageSeen:
		return &MessageSeen{}
	case NameDeleteMessage:
		return &DeleteMessage{}
	case NameDeleteTribeMessage:
		return &DeleteTribeMessage{}
	}
	return nil
}

// DecodeCommand parses and validates one inbound frame. The ack id is
// returned even when decoding fails so the error can still be
// acknowledged.
func DecodeCommand(raw []byte) (string, Command, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}

	cmd := newCommand(f.Event)
	if cmd == nil {
		return f.Ack, nil, fmt.Errorf("%w: unknown event %q", ErrInvalidCommand, f.Event)
	}
	if len(f.Data) > 0 {
		if err := json.Unmarshal(f.Data, cmd); err != nil {
			return f.Ack, nil, fmt.Errorf("%w: %s: %v", ErrInvalidCommand, f.Event, err)
		}
	}
	cmd.normalize()
	if err := binding.Validator.ValidateStruct(cmd); err != nil {
		return f.Ack, nil, fmt.Errorf("%w: %s: %v", ErrInvalidCommand, f.Event, err)
	}
	return f.Ack, cmd, nil
}
