package identity

import (
	"chat-service-backend/internal/model"
)

// Actor is the authenticated caller of a command, handed to the core by the
// transport layer. It is a closed variant: every actor is either a Client
// or a User, never a mix of nullable fields. Consumers switch on the
// concrete type.
type Actor interface {
	TenantID() string
	Role() model.ParticipantType
	// ExternalID is the caller's id in the upstream identity system.
	ExternalID() string
	// ExternalUUID is the upstream identity's public uuid, cached on the
	// participant row at first resolution.
	ExternalUUID() string

	sealed()
}

// Client is an end customer reaching the service through the widget. The
// upstream system supplies no profile fields for clients.
type Client struct {
	Tenant   string
	ClientID string
	UUID     string
}

func (c Client) TenantID() string            { return c.Tenant }
func (c Client) Role() model.ParticipantType { return model.ParticipantTypeClient }
func (c Client) ExternalID() string          { return c.ClientID }
func (c Client) ExternalUUID() string        { return c.UUID }
func (c Client) sealed()                     {}

// User is a support agent belonging to the tenant account.
type User struct {
	Tenant string
	UserID string
	UUID   string
	Name   string
	Email  string
}

func (u User) TenantID() string            { return u.Tenant }
func (u User) Role() model.ParticipantType { return model.ParticipantTypeUser }
func (u User) ExternalID() string          { return u.UserID }
func (u User) ExternalUUID() string        { return u.UUID }
func (u User) sealed()                     {}

// DisplayName returns the name to use in system messages for the actor.
func DisplayName(a Actor) string {
	switch actor := a.(type) {
	case User:
		return actor.Name
	case Client:
		return ""
	}
	return ""
}
