package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smk-lppmri/portal-api/internal/service"
	appErrors "github.com/smk-lppmri/portal-api/pkg/errors"
	"github.com/smk-lppmri/portal-api/pkg/response"
)

// TutorHandler exposes the AI education assistant.
type TutorHandler struct {
	service *service.TutorService
}

// NewTutorHandler creates a new handler.
func NewTutorHandler(svc *service.TutorService) *TutorHandler {
	return &TutorHandler{service: svc}
}

type tutorAskRequest struct {
	Prompt  string `json:"prompt" binding:"required"`
	Context string `json:"context"`
}

// Ask forwards a prompt to the assistant. The answer is always 200; model
// failures surface as the assistant's apology text.
func (h *TutorHandler) Ask(c *gin.Context) {
	var req tutorAskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "prompt required"))
		return
	}

	answer := h.service.GetResponse(c.Request.Context(), req.Prompt, req.Context)
	response.JSON(c, http.StatusOK, gin.H{"answer": answer}, nil)
}
