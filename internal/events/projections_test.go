package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-service-backend/internal/model"
)

func sampleParticipant() model.ParticipantItem {
	return model.ParticipantItem{
		PK:            "acct-1#client#42",
		ParticipantID: "internal-1",
		UUID:          "public-1",
		TenantID:      "acct-1",
		RealType:      model.ParticipantTypeClient,
		RealID:        "42",
		RealUUID:      "upstream-1",
		Name:          "Alice",
		Email:         "alice@example.com",
		CreatedAt:     "2024-05-01T11:00:00Z",
		UpdatedAt:     "2024-05-01T11:30:00Z",
	}
}

func TestCleanParticipantViewWhitelistsFields(t *testing.T) {
	view := CleanParticipantView(sampleParticipant())

	payload, err := json.Marshal(view)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &fields))

	require.Equal(t, "public-1", fields["uuid"])
	require.NotContains(t, fields, "participantId", "internal id never leaves the platform")
	require.NotContains(t, fields, "realId")
	require.NotContains(t, fields, "accountId")
	require.NotContains(t, fields, "pk")
}

func TestCleanParticipantInternalViewAddsPlatformFields(t *testing.T) {
	view := CleanParticipantInternalView(sampleParticipant())
	require.Equal(t, "42", view.RealID)
	require.Equal(t, "acct-1", view.AccountID)
	require.Equal(t, "public-1", view.UUID)
}

func TestCleanMessageViewAuthoredAndSystem(t *testing.T) {
	author := sampleParticipant()
	authored := model.MessageItem{
		MessageID:     "msg-1",
		ParticipantID: author.ParticipantID,
		Text:          "hello",
		CreatedAt:     "2024-05-01T12:00:00Z",
	}

	view := CleanMessageView(authored, &author, "chat-1")
	require.Equal(t, "public-1", view.ParticipantID, "authors appear under their public uuid")
	require.Equal(t, "client", view.ParticipantType)
	require.Equal(t, "chat-1", view.ChatUUID)

	system := model.MessageItem{
		MessageID:     "msg-2",
		ParticipantID: model.SystemParticipantID,
		Text:          "Alice has joined the room",
		CreatedAt:     "2024-05-01T12:00:01Z",
	}
	sysView := CleanMessageView(system, nil, "chat-1")
	require.Equal(t, model.SystemParticipantID, sysView.ParticipantID)
	require.Equal(t, SystemParticipantType, sysView.ParticipantType)
}

func TestCleanMessageViewUnresolvedAuthorOmitsIdentity(t *testing.T) {
	message := model.MessageItem{
		MessageID:     "msg-1",
		ParticipantID: "internal-gone",
		Text:          "orphaned",
		CreatedAt:     "2024-05-01T12:00:00Z",
	}

	view := CleanMessageView(message, nil, "chat-1")
	require.Empty(t, view.ParticipantID)
	require.Empty(t, view.ParticipantType)
	require.Equal(t, "orphaned", view.Text)
}

func TestCleanChatViewCarriesRoster(t *testing.T) {
	chat := model.ChatItem{
		ChatID:        "chat-1",
		TenantID:      "acct-1",
		ParticipantID: "public-1",
		Status:        model.ChatStatusActive,
		CreatedAt:     "2024-05-01T11:00:00Z",
		UpdatedAt:     "2024-05-01T11:45:00Z",
	}

	view := CleanChatView(chat, []model.ParticipantItem{sampleParticipant()})
	require.Equal(t, "chat-1", view.UUID)
	require.Equal(t, model.ChatStatusActive, view.Status)
	require.Len(t, view.Participants, 1)
	require.Equal(t, "public-1", view.Participants[0].UUID)
}

func TestEnvelopeWireShape(t *testing.T) {
	envelope := Envelope{
		Event: TypeMessageCreated,
		Meta: Meta{
			Raw:   map[string]string{"secret": "internal"},
			Clean: map[string]string{"uuid": "public"},
		},
	}

	payload, err := json.Marshal(envelope)
	require.NoError(t, err)

	var wire map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &wire))
	require.Equal(t, "MESSAGE_CREATED", wire["event"])
	meta, ok := wire["meta"].(map[string]interface{})
	require.True(t, ok)
	require.Contains(t, meta, "raw")
	require.Contains(t, meta, "clean")
}
