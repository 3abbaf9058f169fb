package identity

import (
	"testing"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/require"

	"chat-service-backend/internal/model"
)

func TestFromClaimsClient(t *testing.T) {
	actor, err := FromClaims(jwt.MapClaims{
		"accountId": "acct-1",
		"clientId":  float64(42),
		"uuid":      "client-uuid",
	})
	require.NoError(t, err)
	require.Equal(t, model.ParticipantTypeClient, actor.Role())
	require.Equal(t, "acct-1", actor.TenantID())
	require.Equal(t, "42", actor.ExternalID(), "numeric ids arrive as float64 and are stringified")
	require.Equal(t, "client-uuid", actor.ExternalUUID())
}

func TestFromClaimsUser(t *testing.T) {
	actor, err := FromClaims(jwt.MapClaims{
		"accountId": "acct-1",
		"userId":    "7",
		"uuid":      "user-uuid",
		"name":      "Dana",
		"email":     "dana@example.com",
	})
	require.NoError(t, err)

	user, ok := actor.(User)
	require.True(t, ok)
	require.Equal(t, model.ParticipantTypeUser, user.Role())
	require.Equal(t, "Dana", user.Name)
	require.Equal(t, "dana@example.com", user.Email)
}

func TestFromClaimsRejectsAmbiguousTokens(t *testing.T) {
	_, err := FromClaims(jwt.MapClaims{
		"accountId": "acct-1",
		"clientId":  "42",
		"userId":    "7",
	})
	require.Error(t, err)

	_, err = FromClaims(jwt.MapClaims{"accountId": "acct-1"})
	require.Error(t, err)

	_, err = FromClaims(jwt.MapClaims{"clientId": "42"})
	require.Error(t, err, "tenant is mandatory")
}

func TestDisplayName(t *testing.T) {
	require.Equal(t, "Dana", DisplayName(User{Name: "Dana"}))
	require.Equal(t, "", DisplayName(Client{ClientID: "42"}))
}
