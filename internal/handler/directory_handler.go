package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smk-lppmri/portal-api/internal/models"
	"github.com/smk-lppmri/portal-api/internal/service"
	appErrors "github.com/smk-lppmri/portal-api/pkg/errors"
	"github.com/smk-lppmri/portal-api/pkg/response"
)

// DirectoryHandler exposes admin account and directory management.
type DirectoryHandler struct {
	directory *service.DirectoryService
	approvals *service.ApprovalService
}

// NewDirectoryHandler creates a new handler.
func NewDirectoryHandler(directory *service.DirectoryService, approvals *service.ApprovalService) *DirectoryHandler {
	return &DirectoryHandler{directory: directory, approvals: approvals}
}

// CreateUser creates an account directly, pre-approved.
func (h *DirectoryHandler) CreateUser(c *gin.Context) {
	var req models.CreateIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid user payload"))
		return
	}

	info, err := h.directory.CreateIdentity(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, info)
}

// ListUsers returns identities, filterable by role, approval state and search.
func (h *DirectoryHandler) ListUsers(c *gin.Context) {
	filter := models.IdentityFilter{
		Role:   models.Role(c.Query("role")),
		Search: c.Query("search"),
	}
	switch c.Query("approved") {
	case "true":
		approved := true
		filter.Approved = &approved
	case "false":
		approved := false
		filter.Approved = &approved
	}

	identities, err := h.directory.ListIdentities(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, identities, nil)
}

// ExportUsers streams the filtered directory as a CSV download.
func (h *DirectoryHandler) ExportUsers(c *gin.Context) {
	filter := models.IdentityFilter{
		Role:   models.Role(c.Query("role")),
		Search: c.Query("search"),
	}
	switch c.Query("approved") {
	case "true":
		approved := true
		filter.Approved = &approved
	case "false":
		approved := false
		filter.Approved = &approved
	}

	data, err := h.directory.ExportIdentitiesCSV(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="users.csv"`)
	c.Data(http.StatusOK, "text/csv", data)
}

// DeleteUser removes an identity. Reuses the rejection path so sessions are
// revoked the same way.
func (h *DirectoryHandler) DeleteUser(c *gin.Context) {
	if err := h.approvals.Reject(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CreateClassroom creates a classroom.
func (h *DirectoryHandler) CreateClassroom(c *gin.Context) {
	var req service.NamedEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid classroom payload"))
		return
	}

	classroom, err := h.directory.CreateClassroom(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, classroom)
}

// ListClassrooms returns all classrooms.
func (h *DirectoryHandler) ListClassrooms(c *gin.Context) {
	classrooms, err := h.directory.ListClassrooms(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classrooms, nil)
}

// DeleteClassroom removes a classroom without cascading.
func (h *DirectoryHandler) DeleteClassroom(c *gin.Context) {
	if err := h.directory.DeleteClassroom(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CreateDepartment creates a department.
func (h *DirectoryHandler) CreateDepartment(c *gin.Context) {
	var req service.NamedEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid department payload"))
		return
	}

	department, err := h.directory.CreateDepartment(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, department)
}

// ListDepartments returns all departments.
func (h *DirectoryHandler) ListDepartments(c *gin.Context) {
	departments, err := h.directory.ListDepartments(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, departments, nil)
}

// DeleteDepartment removes a department without cascading.
func (h *DirectoryHandler) DeleteDepartment(c *gin.Context) {
	if err := h.directory.DeleteDepartment(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
