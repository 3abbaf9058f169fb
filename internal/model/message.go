package model

// MessageItem is one ledger entry. SK is the (creationTimestamp, id)
// ordering key; entries are immutable once written. ParticipantID is the
// author's internal participant id, or SystemParticipantID for
// system-generated entries.
type MessageItem struct {
	PK            string `dynamodbav:"pk" json:"pk"`
	SK            string `dynamodbav:"sk" json:"sk"`
	MessageID     string `dynamodbav:"uuid" json:"uuid"`
	TenantID      string `dynamodbav:"accountId" json:"accountId"`
	ChatID        string `dynamodbav:"chatId" json:"chatId"`
	ParticipantID string `dynamodbav:"participantId" json:"participantId"`
	Text          string `dynamodbav:"text" json:"text"`
	CreatedAt     string `dynamodbav:"createdAt" json:"createdAt"`
	DeletedAt     string `dynamodbav:"deletedAt,omitempty" json:"deletedAt,omitempty"`
}

func (m MessageItem) System() bool {
	return m.ParticipantID == SystemParticipantID
}
