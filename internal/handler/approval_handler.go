package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smk-lppmri/portal-api/internal/service"
	"github.com/smk-lppmri/portal-api/pkg/response"
)

// ApprovalHandler exposes the admin approval queue.
type ApprovalHandler struct {
	service *service.ApprovalService
}

// NewApprovalHandler creates a new handler.
func NewApprovalHandler(svc *service.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{service: svc}
}

// ListPending returns identities awaiting approval.
func (h *ApprovalHandler) ListPending(c *gin.Context) {
	identities, err := h.service.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, identities, nil)
}

// Approve marks an identity as approved.
func (h *ApprovalHandler) Approve(c *gin.Context) {
	if err := h.service.Approve(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Reject removes the identity record entirely. Live sessions for the
// identity terminate on their next observation.
func (h *ApprovalHandler) Reject(c *gin.Context) {
	if err := h.service.Reject(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
