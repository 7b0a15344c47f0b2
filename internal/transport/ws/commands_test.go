package ws

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envelope(t *testing.T, event string, data any) Envelope {
	t.Helper()
	env := Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		require.NoError(t, err)
		env.Data = raw
	}
	return env
}

func TestDecode_SendMessage(t *testing.T) {
	// ARRANGE
	conversationID := uuid.New()
	env := envelope(t, EventSendMessage, map[string]any{
		"conversationId": conversationID,
		"content":        "hello",
		"tempId":         "tmp-1",
		"attachments":    []map[string]string{{"url": "https://cdn.example.com/a.png", "type": "image"}},
	})

	// ACT
	cmd, err := Decode(env)

	// ASSERT
	require.NoError(t, err)
	msg, ok := cmd.(SendMessage)
	require.True(t, ok)
	assert.Equal(t, conversationID, msg.ConversationID)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, "tmp-1", msg.TempID)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "image", msg.Attachments[0].Type)
}

func TestDecode_CommandsWithoutData(t *testing.T) {
	for _, event := range []string{EventHeartbeat, EventJoinNotifications, EventGetUnreadCount, EventGetNotifications, EventMarkNotificationsRead} {
		t.Run(event, func(t *testing.T) {
			// ACT
			cmd, err := Decode(Envelope{Event: event})

			// ASSERT
			require.NoError(t, err)
			assert.Equal(t, event, cmd.Event())
		})
	}
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		env     Envelope
		wantErr error
	}{
		{"unknown event", Envelope{Event: "launch-rockets"}, ErrUnknownEvent},
		{"missing conversation id", Envelope{Event: EventJoinConversation, Data: json.RawMessage(`{}`)}, ErrInvalidPayload},
		{"malformed id", Envelope{Event: EventJoinVendorQueue, Data: json.RawMessage(`{"vendorId":"nope"}`)}, ErrInvalidPayload},
		{"empty user list", Envelope{Event: EventGetOnlineStatus, Data: json.RawMessage(`{"userIds":[]}`)}, ErrInvalidPayload},
		{"limit too large", Envelope{Event: EventGetNotifications, Data: json.RawMessage(`{"limit":1000}`)}, ErrInvalidPayload},
		{"customer message without body", Envelope{Event: EventSendCustomerNotification, Data: json.RawMessage(`{"vendorId":"` + uuid.NewString() + `"}`)}, ErrInvalidPayload},
		{"auth without token", Envelope{Event: EventAuth, Data: json.RawMessage(`{}`)}, ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// ACT
			_, err := Decode(tt.env)

			// ASSERT
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecode_EveryEventHasACommand(t *testing.T) {
	for event, decode := range decoders {
		t.Run(event, func(t *testing.T) {
			// ACT
			cmd, err := decode(json.RawMessage(`{"conversationId":"` + uuid.NewString() + `","vendorId":"` + uuid.NewString() + `","messageId":"` + uuid.NewString() + `","userIds":["` + uuid.NewString() + `"],"token":"t","message":"m"}`))

			// ASSERT
			require.NoError(t, err)
			assert.Equal(t, event, cmd.Event())
		})
	}
}

func TestErrorCode(t *testing.T) {
	// ACT
	payload := errorPayload(EventSendMessage, assert.AnError)

	// ASSERT
	assert.Equal(t, CodeInternal, payload.Code)
	assert.Equal(t, "internal error", payload.Message)
	assert.Equal(t, EventSendMessage, payload.Event)
}
