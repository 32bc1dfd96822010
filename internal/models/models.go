package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// User is the collaborator view of a profile. The chat core only ever
// needs the id and the name to show next to a message.
type User struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
}

// ChatLobby is a conversation between a fixed set of users.
//
// Participants is kept sorted so the set has one canonical form; the
// unique index on chat_lobbies.participants relies on it. HiddenFor lists
// users who removed the lobby from their own list.
type ChatLobby struct {
	ID           string      `json:"chat_lobby_id"`
	Participants []uuid.UUID `json:"participants"`
	HiddenFor    []uuid.UUID `json:"hidden_for"`
	CreatedAt    time.Time   `json:"created_at"`
}

func (l *ChatLobby) HasParticipant(userID uuid.UUID) bool {
	return slices.Contains(l.Participants, userID)
}

func (l *ChatLobby) IsHiddenFor(userID uuid.UUID) bool {
	return slices.Contains(l.HiddenFor, userID)
}

// TribeChatLobby is the single group conversation of a tribe. Its ID is
// the tribe id; membership lives with the tribe, not here.
type TribeChatLobby struct {
	ID        string      `json:"chat_lobby_id"`
	TribeID   uuid.UUID   `json:"tribe_id"`
	HiddenFor []uuid.UUID `json:"hidden_for"`
	CreatedAt time.Time   `json:"created_at"`
}

type MessageKind string

const (
	KindText MessageKind = "text"
	KindFile MessageKind = "file"
)

// Message is one chat message. Tribe messages share the shape and live in
// their own table.
//
// DeletedFor holds the users who deleted the message for themselves. Once
// it covers every participant the row is removed.
type Message struct {
	ID         int64       `json:"id"`
	LobbyID    string      `json:"chat_lobby_id"`
	SenderID   uuid.UUID   `json:"sender_id"`
	Kind       MessageKind `json:"type"`
	Body       string      `json:"text,omitempty"`
	FileRef    string      `json:"file_ref,omitempty"`
	SentAt     time.Time   `json:"sent_at"`
	Seen       bool        `json:"seen"`
	DeletedFor []uuid.UUID `json:"deleted_for"`
}

func (m *Message) IsDeletedFor(userID uuid.UUID) bool {
	return slices.Contains(m.DeletedFor, userID)
}

// IsDeletedForAll reports whether every one of users has deleted the
// message. Extra ids in DeletedFor are ignored.
func (m *Message) IsDeletedForAll(users []uuid.UUID) bool {
	for _, u := range users {
		if !m.IsDeletedFor(u) {
			return false
		}
	}
	return true
}

// Notification is one (type, text) entry in a user's notification set.
type Notification struct {
	UserID    uuid.UUID `json:"user_id"`
	Type      string    `json:"type"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	NotificationMessage       = "message"
	NotificationTribeCreate   = "tribecreate"
	NotificationFriendRequest = "friendrequest"
	NotificationAcceptRequest = "acceptrequest"
)

// CanonicalParticipants returns the distinct ids in ascending byte order.
func CanonicalParticipants(ids []uuid.UUID) []uuid.UUID {
	out := slices.Clone(ids)
	slices.SortFunc(out, func(a, b uuid.UUID) int {
		return slices.Compare(a[:], b[:])
	})
	return slices.Compact(out)
}
