package model

type ChatStatus string

const (
	ChatStatusOpen   ChatStatus = "open"
	ChatStatusActive ChatStatus = "active"
	ChatStatusClosed ChatStatus = "closed"
)

// statusRank orders the lifecycle. Status only ever moves to a strictly
// higher rank; closed is absorbing.
var statusRank = map[ChatStatus]int{
	ChatStatusOpen:   0,
	ChatStatusActive: 1,
	ChatStatusClosed: 2,
}

// CanTransition reports whether a chat may move from one status to another.
func CanTransition(from, to ChatStatus) bool {
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// ChatItem is one chat session. ChatID doubles as the public uuid; the
// partition key scopes it to its tenant so no chat is addressable across
// tenants. ParticipantID is the creating participant's public uuid,
// mirroring the shape emitted in clean projections.
type ChatItem struct {
	PK            string     `dynamodbav:"pk" json:"pk"`
	ChatID        string     `dynamodbav:"uuid" json:"uuid"`
	TenantID      string     `dynamodbav:"accountId" json:"accountId"`
	ParticipantID string     `dynamodbav:"participantId" json:"participantId"`
	Status        ChatStatus `dynamodbav:"status" json:"status"`
	CreatedAt     string     `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt     string     `dynamodbav:"updatedAt" json:"updatedAt"`
	DeletedAt     string     `dynamodbav:"deletedAt,omitempty" json:"deletedAt,omitempty"`
}

func (c ChatItem) Deleted() bool {
	return c.DeletedAt != ""
}
