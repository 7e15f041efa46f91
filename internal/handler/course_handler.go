package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smk-lppmri/portal-api/internal/models"
	"github.com/smk-lppmri/portal-api/internal/service"
	appErrors "github.com/smk-lppmri/portal-api/pkg/errors"
	"github.com/smk-lppmri/portal-api/pkg/response"
)

// CourseHandler exposes course and material endpoints.
type CourseHandler struct {
	service *service.CourseService
}

// NewCourseHandler creates a new handler.
func NewCourseHandler(svc *service.CourseService) *CourseHandler {
	return &CourseHandler{service: svc}
}

// CreateCourse lets a teacher create a course.
func (h *CourseHandler) CreateCourse(c *gin.Context) {
	identity := identityFromContext(c)
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if identity.Role != models.RoleTeacher && identity.Role != models.RoleAdmin {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "only teachers can create courses"))
		return
	}

	var req service.CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid course payload"))
		return
	}

	course, err := h.service.CreateCourse(c.Request.Context(), identity, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// ListCourses returns the courses visible to the caller.
func (h *CourseHandler) ListCourses(c *gin.Context) {
	identity := identityFromContext(c)
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	courses, err := h.service.ListCourses(c.Request.Context(), identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}

// AddMaterial appends a material to a course the caller owns.
func (h *CourseHandler) AddMaterial(c *gin.Context) {
	identity := identityFromContext(c)
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.MaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid material payload"))
		return
	}

	material, err := h.service.AddMaterial(c.Request.Context(), identity, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, material)
}

// UploadMaterial accepts a multipart file and attaches it to a course the
// caller owns.
func (h *CourseHandler) UploadMaterial(c *gin.Context) {
	identity := identityFromContext(c)
	if identity == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "missing file field"))
		return
	}

	src, err := file.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to read upload"))
		return
	}
	defer src.Close() //nolint:errcheck

	material, err := h.service.UploadMaterial(c.Request.Context(), identity, c.Param("id"), c.PostForm("title"), file.Filename, src)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, material)
}

// ListMaterials returns a course's materials.
func (h *CourseHandler) ListMaterials(c *gin.Context) {
	materials, err := h.service.ListMaterials(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, materials, nil)
}
