package identity

import (
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt"
)

// FromClaims builds an Actor from the token claims minted by the auth
// service. A token carries accountId plus exactly one of clientId or
// userId; anything else is rejected rather than guessed at.
func FromClaims(claims jwt.MapClaims) (Actor, error) {
	tenantID := stringClaim(claims, "accountId")
	if tenantID == "" {
		return nil, fmt.Errorf("identity: accountId claim missing")
	}

	clientID := stringClaim(claims, "clientId")
	userID := stringClaim(claims, "userId")

	switch {
	case clientID != "" && userID != "":
		return nil, fmt.Errorf("identity: token carries both clientId and userId")
	case clientID != "":
		return Client{
			Tenant:   tenantID,
			ClientID: clientID,
			UUID:     stringClaim(claims, "uuid"),
		}, nil
	case userID != "":
		return User{
			Tenant: tenantID,
			UserID: userID,
			UUID:   stringClaim(claims, "uuid"),
			Name:   stringClaim(claims, "name"),
			Email:  stringClaim(claims, "email"),
		}, nil
	}

	return nil, fmt.Errorf("identity: token carries neither clientId nor userId")
}

// stringClaim tolerates numeric ids: the upstream auth service issues
// integer ids which arrive as float64 after JSON decoding.
func stringClaim(claims jwt.MapClaims, key string) string {
	v, ok := claims[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatInt(int64(val), 10)
	}
	return ""
}
