package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/lalith-99/tribechat/internal/models"
)

// Every method takes ctx first and reports "not found" as nil, nil on
// single-row reads. Callers decide whether absence is an error.

// LobbyRepository stores direct and group chat lobbies.
type LobbyRepository interface {
	// GetOrCreate returns the lobby whose participant set equals exactly
	// the given ids, creating it when absent. created reports which path
	// was taken. participants must already be canonical.
	GetOrCreate(ctx context.Context, participants []uuid.UUID) (lobby *models.ChatLobby, created bool, err error)

	GetByID(ctx context.Context, lobbyID string) (*models.ChatLobby, error)

	// ListForUser returns lobbies containing userID that userID has not hidden.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.ChatLobby, error)

	// AddHidden inserts userID into hidden_for. No-op if already present.
	AddHidden(ctx context.Context, lobbyID string, userID uuid.UUID) (*models.ChatLobby, error)

	// RemoveHidden removes the given users from hidden_for.
	RemoveHidden(ctx context.Context, lobbyID string, userIDs ...uuid.UUID) (*models.ChatLobby, error)

	// ClearHidden empties hidden_for. Missing lobbies are not an error.
	ClearHidden(ctx context.Context, lobbyID string) error
}

// TribeLobbyRepository stores the one chat lobby each tribe owns.
type TribeLobbyRepository interface {
	GetOrCreate(ctx context.Context, tribeID uuid.UUID) (lobby *models.TribeChatLobby, created bool, err error)
	GetByID(ctx context.Context, lobbyID string) (*models.TribeChatLobby, error)
	AddHidden(ctx context.Context, lobbyID string, userID uuid.UUID) (*models.TribeChatLobby, error)
	ClearHidden(ctx context.Context, lobbyID string) error
}

// MessageRepository handles message persistence and the deletion sets.
// The same contract serves direct and tribe messages.
type MessageRepository interface {
	// Create persists msg and fills in ID and SentAt.
	Create(ctx context.Context, msg *models.Message) (*models.Message, error)

	GetByID(ctx context.Context, messageID int64) (*models.Message, error)

	// ListVisible returns the lobby's messages not deleted for viewer,
	// oldest first.
	ListVisible(ctx context.Context, lobbyID string, viewer uuid.UUID) ([]models.Message, error)

	// MarkSeen sets seen=true and returns the updated row.
	MarkSeen(ctx context.Context, messageID int64) (*models.Message, error)

	// Hide adds userID to deleted_for. When deleted_for then contains
	// every id in participants the row is removed in the same write and
	// purged is true. Ids of users who have since left the lobby do not
	// count. The returned message reflects the final state.
	Hide(ctx context.Context, messageID int64, userID uuid.UUID, participants []uuid.UUID) (msg *models.Message, purged bool, err error)

	// HideAll applies Hide to every message of the lobby in one pass and
	// returns the messages that were purged.
	HideAll(ctx context.Context, lobbyID string, userID uuid.UUID, participants []uuid.UUID) ([]models.Message, error)

	// Delete removes the row. Returns false if it was already gone.
	Delete(ctx context.Context, messageID int64) (bool, error)
}

// UserDirectory is the read-only view onto the profile store.
type UserDirectory interface {
	FindByID(ctx context.Context, userID uuid.UUID) (*models.User, error)

	// FindMany resolves several users in one round trip. Unknown ids are
	// absent from the result.
	FindMany(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]models.User, error)

	ListIDs(ctx context.Context) ([]uuid.UUID, error)
}

// TribeMembership is the read-only view onto tribe membership.
type TribeMembership interface {
	Exists(ctx context.Context, tribeID uuid.UUID) (bool, error)
	ListParticipants(ctx context.Context, tribeID uuid.UUID) ([]uuid.UUID, error)
}

// NotificationStore keeps each user's notification set.
type NotificationStore interface {
	// AddToSet inserts (type, text) for userID unless the pair is already
	// there. added is false for the duplicate case.
	AddToSet(ctx context.Context, userID uuid.UUID, kind, text string) (added bool, err error)

	// AddToSetMany runs AddToSet for every user as independent upserts.
	// A failure for one user does not stop the others; the returned error
	// joins every per-user failure and added counts fresh inserts.
	AddToSetMany(ctx context.Context, userIDs []uuid.UUID, kind, text string) (added int, err error)

	List(ctx context.Context, userID uuid.UUID) ([]models.Notification, error)
}

// BlobStore deletes uploaded files by the reference stored on a message.
type BlobStore interface {
	Delete(ctx context.Context, ref string) error
}
