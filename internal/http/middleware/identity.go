package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nurpe/marketplace-api/internal/auth"
	"github.com/nurpe/marketplace-api/internal/model"
	"github.com/nurpe/marketplace-api/internal/service"
)

const profileContextKey = "profile"

// Identity resolves the profile_id header into a stored profile and stores it
// on the context. Unresolvable callers stop here with 401.
func Identity(resolver *auth.Resolver, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile, err := resolver.Resolve(c.Request.Context(), c.GetHeader(auth.HeaderProfileID))
		if err != nil {
			status, body := identityFailure(err)
			if status == http.StatusInternalServerError {
				log.Error().Err(err).Msg("resolve caller profile")
			}
			c.AbortWithStatusJSON(status, body)
			return
		}

		c.Set(profileContextKey, *profile)
		c.Next()
	}
}

func identityFailure(err error) (int, gin.H) {
	var message string
	switch {
	case errors.Is(err, auth.ErrMissingIdentity):
		message = service.MsgProfileIDRequired
	case errors.Is(err, auth.ErrInvalidIdentity):
		message = service.MsgInvalidProfileID
	case errors.Is(err, auth.ErrUnknownProfile):
		message = service.MsgProfileNotFound
	default:
		return http.StatusInternalServerError, gin.H{"status": "error", "code": "INTERNAL", "message": "internal error"}
	}
	return http.StatusUnauthorized, gin.H{"status": "error", "code": "UNAUTHENTICATED", "message": message}
}

func MustProfile(c *gin.Context) (model.Profile, bool) {
	value, ok := c.Get(profileContextKey)
	if !ok {
		return model.Profile{}, false
	}
	profile, ok := value.(model.Profile)
	return profile, ok
}
