package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/smk-lppmri/portal-api/internal/models"
	"github.com/smk-lppmri/portal-api/internal/service"
	appErrors "github.com/smk-lppmri/portal-api/pkg/errors"
	"github.com/smk-lppmri/portal-api/pkg/response"
)

// ContextDecisionKey is the gin context key storing the resolved gate decision.
const ContextDecisionKey = "gateDecision"

// bearerToken extracts the session token from the Authorization header.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// Resolve attaches the gate decision for the presented token without blocking.
// Handlers that report session state rather than enforce it use this.
func Resolve(gate *service.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := gate.Resolve(c.Request.Context(), bearerToken(c))
		c.Set(ContextDecisionKey, decision)
		c.Next()
	}
}

// Gate resolves the presented token against the live identity record and
// blocks everything short of Authorized.
func Gate(gate *service.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := gate.Resolve(c.Request.Context(), bearerToken(c))
		c.Set(ContextDecisionKey, decision)

		switch decision.State {
		case models.StateAuthorized:
			c.Next()
		case models.StatePendingApproval:
			response.Error(c, appErrors.ErrPendingApproval)
			c.Abort()
		case models.StateProfileMissing:
			response.Error(c, appErrors.ErrProfileMissing)
			c.Abort()
		case models.StateLoading:
			response.Error(c, appErrors.Clone(appErrors.ErrPersistence, "session store unavailable, retry"))
			c.Abort()
		default:
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
		}
	}
}

// RequireRoles enforces a role requirement on top of Gate.
func RequireRoles(gate *service.Gate, roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(ContextDecisionKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		decision := value.(models.GateDecision)

		// No explicit roles means any authorized identity passes.
		if len(roles) == 0 {
			if ok, _ := gate.Authorize(decision, ""); ok {
				c.Next()
				return
			}
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}

		for _, role := range roles {
			if ok, _ := gate.Authorize(decision, role); ok {
				c.Next()
				return
			}
		}

		msg := ""
		if _, redirect := gate.Authorize(decision, roles[0]); redirect != "" {
			msg = "access limited to " + redirect
		}
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, msg))
		c.Abort()
	}
}
