package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/tribechat/internal/auth"
	"github.com/lalith-99/tribechat/internal/chat"
	"github.com/lalith-99/tribechat/internal/models"
	"github.com/lalith-99/tribechat/internal/realtime"
	"github.com/lalith-99/tribechat/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

type testServer struct {
	router   *gin.Engine
	dir      *memory.Directory
	messages *memory.MessageStore
	now      time.Time

	ann, bob, cat uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	s := &testServer{
		dir:      memory.NewDirectory(),
		messages: memory.NewMessageStore(),
		now:      time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
		ann:      uuid.New(),
		bob:      uuid.New(),
		cat:      uuid.New(),
	}
	s.dir.PutUser(s.ann, "ann")
	s.dir.PutUser(s.bob, "bob")
	s.dir.PutUser(s.cat, "cat")
	clock := func() time.Time { return s.now }
	s.messages.Now = clock

	reg := realtime.NewRegistry()
	hub := realtime.NewHub(reg, logger)
	fanout := chat.NewFanout(memory.NewNotificationStore(), s.dir, logger)
	lobbies := chat.NewLobbyService(memory.NewLobbyStore(), s.dir, logger)
	tribes := chat.NewTribeLobbyService(memory.NewTribeLobbyStore(), s.dir, logger)

	direct := chat.NewDirectMessages(lobbies, chat.Deps{
		Messages: s.messages, Users: s.dir, Bus: hub, Fanout: fanout, Logger: logger,
	}, chat.WithClock(clock))
	tribe := chat.NewTribeMessages(tribes, chat.Deps{
		Messages: memory.NewMessageStore(), Users: s.dir, Bus: hub, Fanout: fanout, Logger: logger,
	}, chat.WithClock(clock))

	gateway := realtime.NewGateway(realtime.GatewayConfig{
		Registry: reg, Hub: hub, Bus: hub, Direct: direct, Tribe: tribe, Logger: logger,
	})

	s.router = NewRouter(testSecret, Handlers{
		Lobbies:       NewLobbyHandler(lobbies, direct, logger),
		Messages:      NewMessageHandler(direct, logger),
		Tribes:        NewTribeHandler(tribes, tribe, logger),
		Notifications: NewNotificationHandler(fanout, logger),
		WS:            NewWSHandler(gateway, logger),
	})
	return s
}

func (s *testServer) do(t *testing.T, as uuid.UUID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != uuid.Nil {
		token, err := auth.GenerateToken(as, "", testSecret, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func upload(lobbyID string, user uuid.UUID, name string) string {
	return "chat/" + lobbyID + "/" + user.String() + "/" + name
}

func TestWriteContextSurvivesClientDisconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodDelete, "/v1/lobbies/x", nil).WithContext(ctx)
	cancel()

	assert.Error(t, c.Request.Context().Err())
	assert.NoError(t, writeContext(c).Err())
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (s *testServer) openDirect(t *testing.T) models.ChatLobby {
	t.Helper()
	w := s.do(t, s.ann, http.MethodPost, "/v1/lobbies/direct", gin.H{"userId": s.bob})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[models.ChatLobby](t, w)
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, uuid.Nil, http.MethodGet, "/v1/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, uuid.Nil, http.MethodGet, "/v1/lobbies", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLobbies(t *testing.T) {
	s := newTestServer(t)
	lobby := s.openDirect(t)

	w := s.do(t, s.bob, http.MethodPost, "/v1/lobbies/direct", gin.H{"userId": s.ann})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, lobby.ID, decode[models.ChatLobby](t, w).ID)

	w = s.do(t, s.ann, http.MethodPost, "/v1/lobbies/direct", gin.H{"userId": s.ann})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, s.ann, http.MethodPost, "/v1/lobbies/direct", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, s.ann, http.MethodGet, "/v1/lobbies", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]chat.LobbySummary](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, []models.User{{ID: s.bob, DisplayName: "bob"}}, list[0].Counterparts)

	w = s.do(t, s.ann, http.MethodPost, "/v1/lobbies/"+lobby.ID+"/hide", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, s.ann, http.MethodGet, "/v1/lobbies", nil)
	assert.Empty(t, decode[[]chat.LobbySummary](t, w))

	w = s.do(t, s.ann, http.MethodPost, "/v1/lobbies/direct/start", gin.H{"userId": s.bob})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[models.ChatLobby](t, w).HiddenFor)

	w = s.do(t, s.cat, http.MethodPost, "/v1/lobbies/group", gin.H{"userIds": []uuid.UUID{s.ann, s.bob}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[models.ChatLobby](t, w).Participants, 3)

	w = s.do(t, s.ann, http.MethodPost, "/v1/lobbies/missing/hide", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFileMessageAndHistory(t *testing.T) {
	s := newTestServer(t)
	lobby := s.openDirect(t)
	ref := upload(lobby.ID, s.ann, "a.png")

	w := s.do(t, s.bob, http.MethodPost, "/v1/lobbies/"+lobby.ID+"/files", gin.H{"fileRef": ref})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, s.ann, http.MethodPost, "/v1/lobbies/"+lobby.ID+"/files", gin.H{"fileRef": ref})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	msg := decode[models.Message](t, w)
	assert.Equal(t, models.KindFile, msg.Kind)

	w = s.do(t, s.bob, http.MethodGet, "/v1/lobbies/"+lobby.ID+"/messages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[[]map[string]any](t, w)
	require.Len(t, history, 1)
	assert.Equal(t, "ann", history[0]["from"])
	assert.Equal(t, ref, history[0]["fileRef"])

	w = s.do(t, s.cat, http.MethodGet, "/v1/lobbies/"+lobby.ID+"/messages", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteMessage(t *testing.T) {
	s := newTestServer(t)
	lobby := s.openDirect(t)

	w := s.do(t, s.ann, http.MethodPost, "/v1/lobbies/"+lobby.ID+"/files", gin.H{"fileRef": upload(lobby.ID, s.ann, "a.png")})
	require.Equal(t, http.StatusCreated, w.Code)
	msg := decode[models.Message](t, w)
	path := "/v1/messages/" + jsonNumber(msg.ID)

	s.now = s.now.Add(8 * time.Minute)
	w = s.do(t, s.ann, http.MethodDelete, path+"?scope=forEveryone", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "deletion_window_expired", decode[map[string]any](t, w)["code"])

	w = s.do(t, s.ann, http.MethodDelete, path+"?scope=sideways", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, s.ann, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode[map[string]any](t, w)["purged"])

	w = s.do(t, s.bob, http.MethodDelete, path+"?scope=forMe", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode[map[string]any](t, w)["purged"])
	assert.Zero(t, s.messages.Len())

	w = s.do(t, s.bob, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, s.bob, http.MethodDelete, "/v1/messages/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteConversation(t *testing.T) {
	s := newTestServer(t)
	lobby := s.openDirect(t)

	for range 2 {
		w := s.do(t, s.bob, http.MethodPost, "/v1/lobbies/"+lobby.ID+"/files", gin.H{"fileRef": upload(lobby.ID, s.bob, "b.png")})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := s.do(t, s.ann, http.MethodDelete, "/v1/lobbies/"+lobby.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode[map[string]any](t, w)["purged"])

	w = s.do(t, s.bob, http.MethodDelete, "/v1/lobbies/"+lobby.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode[map[string]any](t, w)["purged"])
	assert.Zero(t, s.messages.Len())
}

func TestTribes(t *testing.T) {
	s := newTestServer(t)
	tribeID := uuid.New()
	s.dir.PutTribe(tribeID, s.ann, s.bob)
	base := "/v1/tribes/" + tribeID.String()

	w := s.do(t, s.ann, http.MethodPost, "/v1/tribes/"+uuid.NewString()+"/lobby", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, s.ann, http.MethodPost, "/v1/tribes/not-a-uuid/lobby", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, s.ann, http.MethodPost, base+"/lobby", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, tribeID.String(), decode[models.TribeChatLobby](t, w).ID)

	w = s.do(t, s.ann, http.MethodGet, base+"/messages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]map[string]any](t, w))

	w = s.do(t, s.cat, http.MethodDelete, base+"/lobby", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, s.bob, http.MethodDelete, base+"/lobby", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// A direct message id is not found under the tribe.
	lobby := s.openDirect(t)
	w = s.do(t, s.ann, http.MethodPost, "/v1/lobbies/"+lobby.ID+"/files", gin.H{"fileRef": upload(lobby.ID, s.ann, "x")})
	require.Equal(t, http.StatusCreated, w.Code)
	msg := decode[models.Message](t, w)
	w = s.do(t, s.ann, http.MethodDelete, base+"/messages/"+jsonNumber(msg.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNotifications(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, s.ann, http.MethodPost, "/v1/notifications/tribe-created", gin.H{"title": "Hikers"})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.EqualValues(t, 3, decode[map[string]any](t, w)["added"])

	w = s.do(t, s.ann, http.MethodPost, "/v1/notifications/friend-request", gin.H{"targetUserId": s.bob})
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, s.bob, http.MethodPost, "/v1/notifications/friend-accept", gin.H{"requesterId": s.ann})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, s.bob, http.MethodGet, "/v1/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	bobNotes := decode[[]models.Notification](t, w)
	require.Len(t, bobNotes, 2)
	assert.Equal(t, "You have a new friend request from ann", bobNotes[1].Text)

	w = s.do(t, s.ann, http.MethodGet, "/v1/notifications", nil)
	annNotes := decode[[]models.Notification](t, w)
	require.Len(t, annNotes, 2)
	assert.Equal(t, "Your friend request has been accepted by bob", annNotes[1].Text)

	w = s.do(t, s.ann, http.MethodPost, "/v1/notifications/tribe-created", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(chat.ErrValidation))
	assert.Equal(t, http.StatusBadRequest, statusFor(chat.ErrInvalidSender))
	assert.Equal(t, http.StatusNotFound, statusFor(chat.ErrNotFound))
	assert.Equal(t, http.StatusConflict, statusFor(chat.ErrDeletionWindowExpired))
	assert.Equal(t, http.StatusInternalServerError, statusFor(chat.ErrPersistence))
	assert.Equal(t, http.StatusInternalServerError, statusFor(context.Canceled))
}

func jsonNumber(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
