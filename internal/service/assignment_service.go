package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/smk-lppmri/portal-api/internal/models"
	appErrors "github.com/smk-lppmri/portal-api/pkg/errors"
)

type assignmentRepo interface {
	CreateAssignment(ctx context.Context, assignment *models.Assignment) error
	FindAssignment(ctx context.Context, id string) (*models.Assignment, error)
	ListAssignments(ctx context.Context, classroom, teacherID string) ([]models.Assignment, error)
	CreateSubmission(ctx context.Context, submission *models.AssignmentSubmission) error
	FindSubmission(ctx context.Context, assignmentID, studentID string) (*models.AssignmentSubmission, error)
	FindSubmissionByID(ctx context.Context, id string) (*models.AssignmentSubmission, error)
	GradeSubmission(ctx context.Context, id string, grade int, feedback string, gradedAt time.Time) error
	ListSubmissions(ctx context.Context, assignmentID string) ([]models.AssignmentSubmission, error)
}

// AssignmentRequest creates an assignment owned by the calling teacher.
type AssignmentRequest struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description" validate:"required"`
	Classroom   string    `json:"classroom" validate:"required"`
	Deadline    time.Time `json:"deadline" validate:"required"`
}

// AssignmentSubmissionRequest turns in a student's work.
type AssignmentSubmissionRequest struct {
	Content string `json:"content" validate:"required"`
}

// GradeRequest records a teacher's grade and feedback.
type GradeRequest struct {
	Grade    int    `json:"grade" validate:"min=0,max=100"`
	Feedback string `json:"feedback"`
}

// AssignmentService manages assignments, turn-ins and grading.
type AssignmentService struct {
	assignments assignmentRepo
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAssignmentService constructs an AssignmentService instance.
func NewAssignmentService(assignments assignmentRepo, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AssignmentService{assignments: assignments, validator: validate, logger: logger}
}

// CreateAssignment creates an assignment on behalf of a teacher.
func (s *AssignmentService) CreateAssignment(ctx context.Context, teacher *models.Identity, req AssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	assignment := &models.Assignment{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		TeacherID:   teacher.ID,
		TeacherName: teacher.Name,
		Classroom:   req.Classroom,
		Deadline:    req.Deadline.UTC(),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.assignments.CreateAssignment(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to persist assignment")
	}
	return assignment, nil
}

// ListAssignments returns assignments visible to the caller. Students see
// their classroom's; teachers see their own.
func (s *AssignmentService) ListAssignments(ctx context.Context, caller *models.Identity) ([]models.Assignment, error) {
	classroom, teacherID := "", ""
	switch caller.Role {
	case models.RoleStudent:
		classroom = caller.Classroom
	case models.RoleTeacher:
		teacherID = caller.ID
	}

	assignments, err := s.assignments.ListAssignments(ctx, classroom, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list assignments")
	}
	return assignments, nil
}

// SubmitAssignment records a student's work. Late turn-ins and duplicates are
// rejected.
func (s *AssignmentService) SubmitAssignment(ctx context.Context, student *models.Identity, assignmentID string, req AssignmentSubmissionRequest) (*models.AssignmentSubmission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}

	assignment, err := s.assignments.FindAssignment(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load assignment")
	}
	if assignment.Classroom != student.Classroom {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "assignment belongs to another classroom")
	}
	if time.Now().UTC().After(assignment.Deadline) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "deadline has passed")
	}

	if _, err := s.assignments.FindSubmission(ctx, assignmentID, student.ID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "assignment already submitted")
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to check existing submission")
	}

	submission := &models.AssignmentSubmission{
		ID:           uuid.NewString(),
		AssignmentID: assignment.ID,
		StudentID:    student.ID,
		StudentName:  student.Name,
		Content:      req.Content,
		SubmittedAt:  time.Now().UTC(),
	}
	if err := s.assignments.CreateSubmission(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to persist submission")
	}
	return submission, nil
}

// GradeSubmission records grade and feedback. Only the assignment's owning
// teacher (or an admin) may grade.
func (s *AssignmentService) GradeSubmission(ctx context.Context, caller *models.Identity, submissionID string, req GradeRequest) (*models.AssignmentSubmission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}

	submission, err := s.assignments.FindSubmissionByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load submission")
	}

	assignment, err := s.assignments.FindAssignment(ctx, submission.AssignmentID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load assignment")
	}
	if assignment.TeacherID != caller.ID && caller.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "assignment belongs to another teacher")
	}

	gradedAt := time.Now().UTC()
	if err := s.assignments.GradeSubmission(ctx, submissionID, req.Grade, req.Feedback, gradedAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to grade submission")
	}

	submission.Grade = &req.Grade
	submission.Feedback = req.Feedback
	submission.GradedAt = &gradedAt
	return submission, nil
}

// ListSubmissions returns an assignment's submissions to its owning teacher.
func (s *AssignmentService) ListSubmissions(ctx context.Context, caller *models.Identity, assignmentID string) ([]models.AssignmentSubmission, error) {
	assignment, err := s.assignments.FindAssignment(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load assignment")
	}
	if assignment.TeacherID != caller.ID && caller.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "assignment belongs to another teacher")
	}

	submissions, err := s.assignments.ListSubmissions(ctx, assignmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list submissions")
	}
	return submissions, nil
}
