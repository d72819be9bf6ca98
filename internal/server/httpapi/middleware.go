package httpapi

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/realforestry/hortus-auth/internal/common"
	"github.com/realforestry/hortus-auth/internal/server/auth"
)

const principalKey = "principal"

// Authorizer checks bearer access tokens. *services.AuthService satisfies it.
type Authorizer interface {
	Authorize(ctx context.Context, accessToken string) (*auth.Principal, error)
}

// RequireAuth rejects requests without a valid bearer access token and
// stores the verified principal on the gin context.
func RequireAuth(a Authorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, common.BearerPrefix) {
			abortWithError(c, common.ErrorUnauthorized)
			return
		}

		p, err := a.Authorize(c.Request.Context(), strings.TrimSpace(strings.TrimPrefix(header, common.BearerPrefix)))
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(principalKey, p)
		c.Next()
	}
}

func principalFrom(c *gin.Context) *auth.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*auth.Principal)
	return p
}
