package model

import (
	"fmt"
	"time"
)

const (
	ChatsTable        = "Chats"
	ParticipantsTable = "ChatParticipants"
	MembershipsTable  = "ChatMemberships"
	MessagesTable     = "ChatMessages"
)

// ParticipantIDIndex is the GSI on ChatParticipants keyed by participantId,
// used to hydrate membership rows back into participant records.
const ParticipantIDIndex = "byParticipantId"

// AccountIDIndex is the GSI on Chats keyed by accountId, used to list a
// tenant's chats.
const AccountIDIndex = "byAccountId"

// MembershipParticipantIndex is the GSI on ChatMemberships keyed by
// participantId, used to list the chats a participant belongs to.
const MembershipParticipantIndex = "byParticipantId"

// ParticipantPK is the identity key. Uniqueness of a participant per
// (tenant, role, external id) rides on this being the partition key.
func ParticipantPK(tenantID string, realType ParticipantType, realID string) string {
	return fmt.Sprintf("%s#%s#%s", tenantID, realType, realID)
}

func ChatPK(tenantID, chatID string) string {
	return fmt.Sprintf("%s#%s", tenantID, chatID)
}

// MessageKeyLayout is a fixed-width UTC layout so that lexical order of
// message sort keys equals chronological order.
const MessageKeyLayout = "2006-01-02T15:04:05.000000000Z"

// MessageSK builds the (creationTimestamp, id) ordering key.
func MessageSK(createdAt time.Time, messageID string) string {
	return fmt.Sprintf("%s#%s", createdAt.UTC().Format(MessageKeyLayout), messageID)
}

// MessageCursor is the exclusive upper bound for a message page. The "#"
// suffix-free timestamp sorts before any real key carrying that timestamp,
// so the bound stays strict.
func MessageCursor(before time.Time) string {
	return before.UTC().Format(MessageKeyLayout)
}
