package model

type ParticipantType string

const (
	ParticipantTypeClient ParticipantType = "client"
	ParticipantTypeUser   ParticipantType = "user"
)

// SystemParticipantID is the sentinel author id carried by system-generated
// messages. It never resolves against the participant directory.
const SystemParticipantID = "-1"

// ParticipantItem is one directory row: a tenant-scoped identity
// deduplicated from an external (role, id) pair. ParticipantID is the
// internal identifier referenced by memberships and messages; UUID is the
// only identifier exposed in clean projections.
type ParticipantItem struct {
	PK            string          `dynamodbav:"pk" json:"pk"`
	ParticipantID string          `dynamodbav:"participantId" json:"participantId"`
	UUID          string          `dynamodbav:"uuid" json:"uuid"`
	TenantID      string          `dynamodbav:"accountId" json:"accountId"`
	RealType      ParticipantType `dynamodbav:"realType" json:"realType"`
	RealID        string          `dynamodbav:"realId" json:"realId"`
	RealUUID      string          `dynamodbav:"realUuid,omitempty" json:"realUuid,omitempty"`
	Name          string          `dynamodbav:"name,omitempty" json:"name,omitempty"`
	Email         string          `dynamodbav:"email,omitempty" json:"email,omitempty"`
	CreatedAt     string          `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt     string          `dynamodbav:"updatedAt" json:"updatedAt"`
	DeletedAt     string          `dynamodbav:"deletedAt,omitempty" json:"deletedAt,omitempty"`
}

// Deleted reports whether the row is soft-deleted. Soft-deleted rows are
// treated as absent by every read path.
func (p ParticipantItem) Deleted() bool {
	return p.DeletedAt != ""
}

// MembershipItem links a chat to a participant. Created at most once per
// (chat, participant) pair; the membership table's key enforces that.
type MembershipItem struct {
	PK            string `dynamodbav:"pk" json:"pk"`
	ParticipantID string `dynamodbav:"participantId" json:"participantId"`
	LinkID        string `dynamodbav:"linkId" json:"linkId"`
	TenantID      string `dynamodbav:"accountId" json:"accountId"`
	ChatID        string `dynamodbav:"chatId" json:"chatId"`
	CreatedAt     string `dynamodbav:"createdAt" json:"createdAt"`
	DeletedAt     string `dynamodbav:"deletedAt,omitempty" json:"deletedAt,omitempty"`
}

func (m MembershipItem) Deleted() bool {
	return m.DeletedAt != ""
}
