package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/smk-lppmri/portal-api/internal/models"
	appErrors "github.com/smk-lppmri/portal-api/pkg/errors"
)

type directoryIdentityRepo interface {
	FindByIdentityNumber(ctx context.Context, number string) (*models.Identity, error)
	Create(ctx context.Context, identity *models.Identity) error
	List(ctx context.Context, filter models.IdentityFilter) ([]models.Identity, error)
}

type classroomRepo interface {
	Create(ctx context.Context, classroom *models.Classroom) error
	FindByCode(ctx context.Context, code string) (*models.Classroom, error)
	List(ctx context.Context) ([]models.Classroom, error)
	Delete(ctx context.Context, id string) error
}

type departmentRepo interface {
	Create(ctx context.Context, department *models.Department) error
	FindByCode(ctx context.Context, code string) (*models.Department, error)
	List(ctx context.Context) ([]models.Department, error)
	Delete(ctx context.Context, id string) error
}

// NamedEntityRequest creates a classroom or department.
type NamedEntityRequest struct {
	Name string `json:"name" validate:"required"`
	Code string `json:"code" validate:"required,max=32"`
}

// DirectoryService manages identities, classrooms and departments on behalf
// of admins.
type DirectoryService struct {
	identities  directoryIdentityRepo
	classrooms  classroomRepo
	departments departmentRepo
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewDirectoryService constructs a DirectoryService instance.
func NewDirectoryService(identities directoryIdentityRepo, classrooms classroomRepo, departments departmentRepo, validate *validator.Validate, logger *zap.Logger) *DirectoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &DirectoryService{identities: identities, classrooms: classrooms, departments: departments, validator: validate, logger: logger}
}

// CreateIdentity creates an account directly. Admin-created accounts start
// approved; without a school identity number they cannot enrol biometrics and
// must use the password fallback, so a password is required in that case.
func (s *DirectoryService) CreateIdentity(ctx context.Context, req models.CreateIdentityRequest) (*models.IdentityInfo, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid identity payload")
	}

	number := req.NISN
	if number == "" {
		number = req.NIP
	}
	if number == "" && req.Password == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "accounts without NISN/NIP require a password")
	}

	if number != "" {
		if _, err := s.identities.FindByIdentityNumber(ctx, number); err == nil {
			return nil, appErrors.Clone(appErrors.ErrDuplicateIdentity, "")
		} else if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to check existing identity")
		}
	}

	now := time.Now().UTC()
	identity := &models.Identity{
		ID:         uuid.NewString(),
		Name:       req.Name,
		Email:      req.Email,
		Role:       req.Role,
		NISN:       req.NISN,
		NIP:        req.NIP,
		Classroom:  req.Classroom,
		Department: req.Department,
		Approved:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}
		identity.PasswordHash = string(hash)
	}

	if err := s.identities.Create(ctx, identity); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateIdentity, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to persist identity")
	}

	s.logger.Info("identity created by admin",
		zap.String("identity_id", identity.ID),
		zap.String("role", string(identity.Role)),
	)

	info := identity.Info()
	return &info, nil
}

// ListIdentities returns identities matching the filter.
func (s *DirectoryService) ListIdentities(ctx context.Context, filter models.IdentityFilter) ([]models.Identity, error) {
	identities, err := s.identities.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list identities")
	}
	return identities, nil
}

// ExportIdentitiesCSV renders the filtered directory as CSV for admin
// download.
func (s *DirectoryService) ExportIdentitiesCSV(ctx context.Context, filter models.IdentityFilter) ([]byte, error) {
	identities, err := s.identities.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list identities")
	}

	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write([]string{"id", "name", "email", "role", "nisn", "nip", "classroom", "department", "approved", "created_at"}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	for _, identity := range identities {
		record := []string{
			identity.ID,
			identity.Name,
			identity.Email,
			string(identity.Role),
			identity.NISN,
			identity.NIP,
			identity.Classroom,
			identity.Department,
			strconv.FormatBool(identity.Approved),
			identity.CreatedAt.Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return buf.Bytes(), nil
}

// CreateClassroom creates a classroom with a unique code.
func (s *DirectoryService) CreateClassroom(ctx context.Context, req NamedEntityRequest) (*models.Classroom, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid classroom payload")
	}

	if _, err := s.classrooms.FindByCode(ctx, req.Code); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "classroom code already exists")
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to check classroom code")
	}

	classroom := &models.Classroom{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Code:      req.Code,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.classrooms.Create(ctx, classroom); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to persist classroom")
	}
	return classroom, nil
}

// ListClassrooms returns all classrooms.
func (s *DirectoryService) ListClassrooms(ctx context.Context) ([]models.Classroom, error) {
	classrooms, err := s.classrooms.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list classrooms")
	}
	return classrooms, nil
}

// DeleteClassroom removes a classroom. Identities and courses referencing it
// keep their dangling reference; deletes do not cascade.
func (s *DirectoryService) DeleteClassroom(ctx context.Context, id string) error {
	if err := s.classrooms.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to delete classroom")
	}
	return nil
}

// CreateDepartment creates a department with a unique code.
func (s *DirectoryService) CreateDepartment(ctx context.Context, req NamedEntityRequest) (*models.Department, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid department payload")
	}

	if _, err := s.departments.FindByCode(ctx, req.Code); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "department code already exists")
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to check department code")
	}

	department := &models.Department{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Code:      req.Code,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.departments.Create(ctx, department); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to persist department")
	}
	return department, nil
}

// ListDepartments returns all departments.
func (s *DirectoryService) ListDepartments(ctx context.Context) ([]models.Department, error) {
	departments, err := s.departments.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list departments")
	}
	return departments, nil
}

// DeleteDepartment removes a department without cascading.
func (s *DirectoryService) DeleteDepartment(ctx context.Context, id string) error {
	if err := s.departments.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to delete department")
	}
	return nil
}
