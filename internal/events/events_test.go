package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/tribechat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_MessageEvents(t *testing.T) {
	msg := &models.Message{
		ID:       42,
		LobbyID:  "lobby-1",
		SenderID: uuid.New(),
		Kind:     models.KindText,
		Body:     "hello",
		SentAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	raw, err := Encode(NewMessage{NewMessagePayload(msg, "ann")})
	require.NoError(t, err)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(raw, &frame))
	assert.Equal(t, "newMessage", frame["event"])
	data := frame["data"].(map[string]any)
	assert.Equal(t, "hello", data["text"])
	assert.Equal(t, "ann", data["from"])
	assert.EqualValues(t, 42, data["_id"])

	decoded, err := Decode(raw)
	require.NoError(t, err)
	nm, ok := decoded.(NewMessage)
	require.True(t, ok)
	assert.Equal(t, int64(42), nm.ID)
	assert.Equal(t, msg.SenderID, nm.SenderID)
}

func TestDecode_RejectsUnknownEvent(t *testing.T) {
	_, err := Decode([]byte(`{"event":"somethingElse","data":{}}`))
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantAck string
		want    Command
		wantErr bool
	}{
		{
			name:    "join",
			raw:     `{"event":"join","ack":"1","data":{"name":" Ann ","room":"r1","userId":"u1"}}`,
			wantAck: "1",
			want:    &Join{Name: "Ann", Room: "r1", UserID: "u1"},
		},
		{
			name:    "join missing room",
			raw:     `{"event":"join","ack":"2","data":{"name":"Ann","userId":"u1"}}`,
			wantAck: "2",
			wantErr: true,
		},
		{
			name:    "whitespace text is empty",
			raw:     `{"event":"createMessage","ack":"3","data":{"text":"   "}}`,
			wantAck: "3",
			wantErr: true,
		},
		{
			name:    "delete with bad scope",
			raw:     `{"event":"deleteMessage","ack":"4","data":{"messageId":7,"deleteType":"forAll"}}`,
			wantAck: "4",
			wantErr: true,
		},
		{
			name:    "tribe delete",
			raw:     `{"event":"deleteTribeMessage","ack":"5","data":{"messageId":7,"deleteType":"forEveryone"}}`,
			wantAck: "5",
			want:    &DeleteTribeMessage{MessageID: 7, DeleteType: "forEveryone"},
		},
		{
			name:    "unknown event",
			raw:     `{"event":"typing","ack":"6","data":{}}`,
			wantAck: "6",
			wantErr: true,
		},
		{
			name:    "payload of wrong shape",
			raw:     `{"event":"messageSeen","ack":"7","data":{"messageId":"abc"}}`,
			wantAck: "7",
			wantErr: true,
		},
		{
			name:    "not json",
			raw:     `hello`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack, cmd, err := DecodeCommand([]byte(tt.raw))
			assert.Equal(t, tt.wantAck, ack)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCommand)
				assert.Nil(t, cmd)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd)
		})
	}
}

func TestAck(t *testing.T) {
	raw, err := Ack("9", "not_found", "message not found")
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"ack","ack":"9","error":"not_found","message":"message not found"}`, string(raw))

	raw, err = Ack("10", "", "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"ack","ack":"10"}`, string(raw))
}
