package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"chat-service-backend/internal/identity"
	internaljwt "chat-service-backend/internal/jwt"
	"chat-service-backend/internal/model"
)

type contextKey string

const actorContextKey contextKey = "actor"

// ActorFrom returns the authenticated actor the authorization middleware
// stored on the request context.
func ActorFrom(ctx context.Context) (identity.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(identity.Actor)
	return actor, ok
}

func withActor(r *http.Request, actor identity.Actor) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), actorContextKey, actor))
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

// ValidateJWTMiddleware authenticates the request as the given role and
// injects the resulting actor into the request context.
func ValidateJWTMiddleware(role model.ParticipantType) Middleware {
	return ValidateMultipleJWTMiddleware(role)
}

// ValidateMultipleJWTMiddleware tries each role's secret in order; the
// first one that verifies decides the caller's role.
func ValidateMultipleJWTMiddleware(roles ...model.ParticipantType) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearerToken(r)
			if tokenString == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			var actor identity.Actor
			for _, role := range roles {
				claims, err := internaljwt.ParseToken(tokenString, role)
				if err != nil {
					continue
				}

				expires, ok := claims["exp"].(float64)
				if !ok || time.Now().Unix() > int64(expires) {
					http.Error(w, "Token expired", http.StatusUnauthorized)
					return
				}

				parsed, err := identity.FromClaims(claims)
				if err != nil || parsed.Role() != role {
					continue
				}
				actor = parsed
				break
			}

			if actor == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next(w, withActor(r, actor))
		}
	}
}

var (
	ValidateUserJWT   = ValidateJWTMiddleware(model.ParticipantTypeUser)
	ValidateClientJWT = ValidateJWTMiddleware(model.ParticipantTypeClient)
	ValidateAnyJWT    = ValidateMultipleJWTMiddleware(model.ParticipantTypeUser, model.ParticipantTypeClient)
)
