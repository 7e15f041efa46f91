package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/smk-lppmri/portal-api/internal/models"
	appErrors "github.com/smk-lppmri/portal-api/pkg/errors"
)

type courseRepo interface {
	CreateCourse(ctx context.Context, course *models.Course) error
	FindCourse(ctx context.Context, id string) (*models.Course, error)
	ListCourses(ctx context.Context, classroom string) ([]models.Course, error)
	CreateMaterial(ctx context.Context, material *models.Material) error
	ListMaterials(ctx context.Context, courseID string) ([]models.Material, error)
}

// CourseRequest creates a course owned by the calling teacher.
type CourseRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Classroom   string `json:"classroom" validate:"required"`
	Subject     string `json:"subject" validate:"required"`
}

// MaterialRequest adds content to a course.
type MaterialRequest struct {
	Title   string              `json:"title" validate:"required"`
	Content string              `json:"content" validate:"required"`
	Type    models.MaterialType `json:"type" validate:"required,oneof=text video link"`
	FileURL string              `json:"fileUrl"`
}

type materialStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
}

type downloadSigner interface {
	Generate(fileID, relPath string) (string, time.Time, error)
}

// CourseService manages courses and their materials.
type CourseService struct {
	courses   courseRepo
	storage   materialStorage
	signer    downloadSigner
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs a CourseService instance. Storage and signer
// may be nil when file uploads are disabled.
func NewCourseService(courses courseRepo, storage materialStorage, signer downloadSigner, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CourseService{courses: courses, storage: storage, signer: signer, validator: validate, logger: logger}
}

// CreateCourse creates a course on behalf of a teacher.
func (s *CourseService) CreateCourse(ctx context.Context, teacher *models.Identity, req CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course := &models.Course{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		TeacherID:   teacher.ID,
		TeacherName: teacher.Name,
		Classroom:   req.Classroom,
		Subject:     req.Subject,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.courses.CreateCourse(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to persist course")
	}
	return course, nil
}

// ListCourses returns courses visible to the caller. Students only see their
// own classroom's courses.
func (s *CourseService) ListCourses(ctx context.Context, caller *models.Identity) ([]models.Course, error) {
	classroom := ""
	if caller.Role == models.RoleStudent {
		classroom = caller.Classroom
	}
	courses, err := s.courses.ListCourses(ctx, classroom)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list courses")
	}
	return courses, nil
}

// ownedCourse loads a course and checks the caller may modify it.
func (s *CourseService) ownedCourse(ctx context.Context, teacher *models.Identity, courseID string) (*models.Course, error) {
	course, err := s.courses.FindCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load course")
	}
	if course.TeacherID != teacher.ID && teacher.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another teacher")
	}
	return course, nil
}

// AddMaterial appends a material to an existing course. Only the owning
// teacher may add materials.
func (s *CourseService) AddMaterial(ctx context.Context, teacher *models.Identity, courseID string, req MaterialRequest) (*models.Material, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid material payload")
	}

	course, err := s.ownedCourse(ctx, teacher, courseID)
	if err != nil {
		return nil, err
	}

	material := &models.Material{
		ID:        uuid.NewString(),
		CourseID:  course.ID,
		Title:     req.Title,
		Content:   req.Content,
		Type:      req.Type,
		FileURL:   req.FileURL,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.courses.CreateMaterial(ctx, material); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to persist material")
	}
	return material, nil
}

// UploadMaterial stores an uploaded file and records a file material whose
// URL is a signed, expiring download link.
func (s *CourseService) UploadMaterial(ctx context.Context, teacher *models.Identity, courseID, title, filename string, r io.Reader) (*models.Material, error) {
	if s.storage == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file uploads are disabled")
	}
	if title == "" {
		title = filepath.Base(filename)
	}

	course, err := s.ownedCourse(ctx, teacher, courseID)
	if err != nil {
		return nil, err
	}

	materialID := uuid.NewString()
	relPath := fmt.Sprintf("materials/%s/%s_%s", course.ID, materialID, filepath.Base(filename))
	if _, err := s.storage.SaveStream(relPath, r); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store uploaded file")
	}

	token, _, err := s.signer.Generate(materialID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}

	material := &models.Material{
		ID:        materialID,
		CourseID:  course.ID,
		Title:     title,
		Content:   filepath.Base(filename),
		Type:      models.MaterialFile,
		FileURL:   "/api/v1/files/" + token,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.courses.CreateMaterial(ctx, material); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to persist material")
	}
	return material, nil
}

// ListMaterials returns the materials of a course.
func (s *CourseService) ListMaterials(ctx context.Context, courseID string) ([]models.Material, error) {
	if _, err := s.courses.FindCourse(ctx, courseID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load course")
	}

	materials, err := s.courses.ListMaterials(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list materials")
	}
	return materials, nil
}
