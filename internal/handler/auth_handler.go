package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smk-lppmri/portal-api/internal/models"
	"github.com/smk-lppmri/portal-api/internal/service"
	appErrors "github.com/smk-lppmri/portal-api/pkg/errors"
	"github.com/smk-lppmri/portal-api/pkg/response"
)

// AuthHandler wires the registration and login ceremonies to HTTP.
type AuthHandler struct {
	registration *service.RegistrationService
	auth         *service.AuthService
	gate         *service.Gate
	metrics      *service.MetricsService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(registration *service.RegistrationService, auth *service.AuthService, gate *service.Gate, metrics *service.MetricsService) *AuthHandler {
	return &AuthHandler{registration: registration, auth: auth, gate: gate, metrics: metrics}
}

// BeginRegistration starts the credential creation ceremony.
func (h *AuthHandler) BeginRegistration(c *gin.Context) {
	var form models.RegistrationForm
	if err := c.ShouldBindJSON(&form); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}

	res, err := h.registration.Begin(c.Request.Context(), form)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// FinishRegistration completes the ceremony and creates the identity record.
func (h *AuthHandler) FinishRegistration(c *gin.Context) {
	var req models.FinishRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}

	info, err := h.registration.Finish(c.Request.Context(), req)
	if err != nil {
		h.metrics.RecordAuthAttempt("register", "failure")
		response.Error(c, err)
		return
	}

	h.metrics.RecordAuthAttempt("register", "success")
	response.Created(c, info)
}

// BeginLogin starts the assertion ceremony for a school identity number.
func (h *AuthHandler) BeginLogin(c *gin.Context) {
	var req models.BeginLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	res, err := h.auth.BeginLogin(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// FinishLogin verifies the assertion and establishes a session.
func (h *AuthHandler) FinishLogin(c *gin.Context) {
	var req models.FinishLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	res, err := h.auth.FinishLogin(c.Request.Context(), req)
	if err != nil {
		h.metrics.RecordAuthAttempt("biometric", "failure")
		response.Error(c, err)
		return
	}

	h.metrics.RecordAuthAttempt("biometric", "success")
	response.JSON(c, http.StatusOK, res, nil)
}

// PasswordLogin is the fallback for accounts without an enrolled credential.
func (h *AuthHandler) PasswordLogin(c *gin.Context) {
	var req models.PasswordLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	res, err := h.auth.PasswordLogin(c.Request.Context(), req)
	if err != nil {
		h.metrics.RecordAuthAttempt("password", "failure")
		response.Error(c, err)
		return
	}

	h.metrics.RecordAuthAttempt("password", "success")
	response.JSON(c, http.StatusOK, res, nil)
}

// Logout revokes the current session record.
func (h *AuthHandler) Logout(c *gin.Context) {
	decision := decisionFromContext(c)
	if decision.Claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.auth.Logout(c.Request.Context(), decision.Claims); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Me reports the resolved gate state for the presented token. Unlike the
// gated routes it answers for every state, so the client can route to
// /login, /pending or a role home.
func (h *AuthHandler) Me(c *gin.Context) {
	decision := decisionFromContext(c)

	payload := gin.H{
		"state":       decision.State,
		"redirect_to": decision.RedirectTo,
	}
	if decision.Identity != nil {
		payload["user"] = decision.Identity.Info()
	}
	if decision.State == models.StateAuthorized {
		payload["redirect_to"] = service.RoleHome(decision.Role)
	}

	response.JSON(c, http.StatusOK, payload, nil)
}
