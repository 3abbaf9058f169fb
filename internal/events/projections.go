package events

import (
	"chat-service-backend/internal/model"
)

// SystemParticipantType marks system-authored messages in clean
// projections.
const SystemParticipantType = "system"

// Clean views are the externally stable projections: uuid-keyed, fields
// whitelisted, never carrying internal ids or cross-tenant state. Raw
// views are the full joined state for in-platform consumers. Both are
// built by pure functions here so each shape has exactly one source.

type CleanParticipant struct {
	UUID      string                `json:"uuid"`
	RealType  model.ParticipantType `json:"realType"`
	RealUUID  string                `json:"realUuid,omitempty"`
	Name      string                `json:"name,omitempty"`
	Email     string                `json:"email,omitempty"`
	CreatedAt string                `json:"createdAt"`
	UpdatedAt string                `json:"updatedAt"`

	// ChatID is set on join events only.
	ChatID string `json:"chatId,omitempty"`

	// RealID and AccountID are filled only for the in-platform RPC
	// response, never for fan-out events.
	RealID    string `json:"realId,omitempty"`
	AccountID string `json:"accountId,omitempty"`
}

type CleanChat struct {
	UUID          string             `json:"uuid"`
	AccountID     string             `json:"accountId"`
	ParticipantID string             `json:"participantId"`
	Status        model.ChatStatus   `json:"status"`
	CreatedAt     string             `json:"createdAt"`
	UpdatedAt     string             `json:"updatedAt"`
	Participants  []CleanParticipant `json:"participants,omitempty"`
	LatestMessage *CleanMessage      `json:"latestMessage,omitempty"`
}

type CleanMessage struct {
	UUID            string `json:"uuid"`
	Text            string `json:"text"`
	CreatedAt       string `json:"createdAt"`
	ParticipantID   string `json:"participantId,omitempty"`
	ParticipantType string `json:"participantType,omitempty"`
	ChatUUID        string `json:"chatUuid,omitempty"`
}

type CleanCompose struct {
	ChatUUID string `json:"chatUuid"`
	Text     string `json:"text"`
}

type RawChat struct {
	model.ChatItem
	Participants []model.ParticipantItem `json:"participants,omitempty"`
	Memberships  []model.MembershipItem  `json:"memberships,omitempty"`
}

type RawParticipant struct {
	model.ParticipantItem
	Chat *RawChat `json:"chat,omitempty"`
}

type RawMessage struct {
	model.MessageItem
	Chat *RawChat `json:"chat,omitempty"`
}

type RawCompose struct {
	AccountID string                `json:"accountId"`
	ChatUUID  string                `json:"chatUuid"`
	RealType  model.ParticipantType `json:"realType"`
	RealID    string                `json:"realId"`
}

func CleanParticipantView(p model.ParticipantItem) CleanParticipant {
	return CleanParticipant{
		UUID:      p.UUID,
		RealType:  p.RealType,
		RealUUID:  p.RealUUID,
		Name:      p.Name,
		Email:     p.Email,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// CleanParticipantInternalView augments the clean shape with realId and
// accountId for synchronous in-platform callers.
func CleanParticipantInternalView(p model.ParticipantItem) CleanParticipant {
	view := CleanParticipantView(p)
	view.RealID = p.RealID
	view.AccountID = p.TenantID
	return view
}

func CleanChatView(chat model.ChatItem, participants []model.ParticipantItem) CleanChat {
	view := CleanChat{
		UUID:          chat.ChatID,
		AccountID:     chat.TenantID,
		ParticipantID: chat.ParticipantID,
		Status:        chat.Status,
		CreatedAt:     chat.CreatedAt,
		UpdatedAt:     chat.UpdatedAt,
	}
	for _, p := range participants {
		view.Participants = append(view.Participants, CleanParticipantView(p))
	}
	return view
}

// CleanMessageView projects a ledger entry. The author is identified by
// the participant's public uuid; system entries carry the sentinel id and
// the system participant type instead.
func CleanMessageView(m model.MessageItem, author *model.ParticipantItem, chatUUID string) CleanMessage {
	view := CleanMessage{
		UUID:      m.MessageID,
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
		ChatUUID:  chatUUID,
	}
	if m.System() {
		view.ParticipantID = model.SystemParticipantID
		view.ParticipantType = SystemParticipantType
		return view
	}
	if author != nil {
		view.ParticipantID = author.UUID
		view.ParticipantType = string(author.RealType)
	}
	return view
}

func RawChatView(chat model.ChatItem, memberships []model.MembershipItem, participants []model.ParticipantItem) RawChat {
	return RawChat{
		ChatItem:     chat,
		Participants: participants,
		Memberships:  memberships,
	}
}
