package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/smk-lppmri/portal-api/internal/middleware"
	"github.com/smk-lppmri/portal-api/internal/models"
)

func decisionFromContext(c *gin.Context) models.GateDecision {
	value, exists := c.Get(middleware.ContextDecisionKey)
	if !exists {
		return models.GateDecision{State: models.StateUnauthenticated, RedirectTo: "/login"}
	}
	decision, ok := value.(models.GateDecision)
	if !ok {
		return models.GateDecision{State: models.StateUnauthenticated, RedirectTo: "/login"}
	}
	return decision
}

func identityFromContext(c *gin.Context) *models.Identity {
	return decisionFromContext(c).Identity
}
