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

type examRepo interface {
	CreateExam(ctx context.Context, exam *models.Exam) error
	FindExam(ctx context.Context, id string) (*models.Exam, error)
	ListExams(ctx context.Context, classroom, teacherID string) ([]models.Exam, error)
	CreateSubmission(ctx context.Context, submission *models.ExamSubmission) error
	FindSubmission(ctx context.Context, examID, studentID string) (*models.ExamSubmission, error)
	ListSubmissions(ctx context.Context, examID string) ([]models.ExamSubmission, error)
}

// QuestionRequest is one multiple-choice item in an exam payload.
type QuestionRequest struct {
	Text          string   `json:"text" validate:"required"`
	Options       []string `json:"options" validate:"required,min=2,dive,required"`
	CorrectAnswer int      `json:"correctAnswer" validate:"min=0"`
}

// ExamRequest creates an exam owned by the calling teacher.
type ExamRequest struct {
	Title     string            `json:"title" validate:"required"`
	CourseID  string            `json:"courseId"`
	Classroom string            `json:"classroom" validate:"required"`
	Duration  int               `json:"duration" validate:"required,min=1"`
	Questions []QuestionRequest `json:"questions" validate:"required,min=1,dive"`
}

// ExamSubmissionRequest turns in a student's answers. Violations counts the
// proctoring events (tab switches, focus loss) the exam client observed.
type ExamSubmissionRequest struct {
	Answers    []int `json:"answers" validate:"required"`
	Violations int   `json:"violations" validate:"min=0"`
}

// ExamService manages exams, scoring and their submissions.
type ExamService struct {
	exams     examRepo
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExamService constructs an ExamService instance.
func NewExamService(exams examRepo, validate *validator.Validate, logger *zap.Logger) *ExamService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ExamService{exams: exams, validator: validate, logger: logger}
}

// CreateExam creates an exam on behalf of a teacher.
func (s *ExamService) CreateExam(ctx context.Context, teacher *models.Identity, req ExamRequest) (*models.Exam, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}
	for _, q := range req.Questions {
		if q.CorrectAnswer >= len(q.Options) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "correct answer index out of range")
		}
	}

	questions := make([]models.Question, len(req.Questions))
	for i, q := range req.Questions {
		questions[i] = models.Question{
			ID:            uuid.NewString(),
			Text:          q.Text,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
		}
	}

	exam := &models.Exam{
		ID:        uuid.NewString(),
		Title:     req.Title,
		CourseID:  req.CourseID,
		TeacherID: teacher.ID,
		Classroom: req.Classroom,
		Duration:  req.Duration,
		Questions: questions,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.exams.CreateExam(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to persist exam")
	}
	return exam, nil
}

// ListExams returns exams visible to the caller. Students see their own
// classroom's exams with the answer keys stripped; teachers see their own.
func (s *ExamService) ListExams(ctx context.Context, caller *models.Identity) ([]models.Exam, error) {
	classroom, teacherID := "", ""
	switch caller.Role {
	case models.RoleStudent:
		classroom = caller.Classroom
	case models.RoleTeacher:
		teacherID = caller.ID
	}

	exams, err := s.exams.ListExams(ctx, classroom, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list exams")
	}

	if caller.Role == models.RoleStudent {
		for i := range exams {
			exams[i] = exams[i].StudentView()
		}
	}
	return exams, nil
}

// SubmitExam scores a student's answers server-side and records the
// submission. One submission per student per exam.
func (s *ExamService) SubmitExam(ctx context.Context, student *models.Identity, examID string, req ExamSubmissionRequest) (*models.ExamSubmission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}

	exam, err := s.exams.FindExam(ctx, examID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load exam")
	}
	if exam.Classroom != student.Classroom {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "exam belongs to another classroom")
	}
	if len(req.Answers) != len(exam.Questions) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "answer count does not match question count")
	}

	if _, err := s.exams.FindSubmission(ctx, examID, student.ID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "exam already submitted")
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to check existing submission")
	}

	submission := &models.ExamSubmission{
		ID:          uuid.NewString(),
		ExamID:      exam.ID,
		StudentID:   student.ID,
		StudentName: student.Name,
		Answers:     req.Answers,
		Score:       scoreExam(exam.Questions, req.Answers),
		Violations:  req.Violations,
		SubmittedAt: time.Now().UTC(),
	}
	if err := s.exams.CreateSubmission(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to persist submission")
	}

	s.logger.Info("exam submitted",
		zap.String("exam_id", exam.ID),
		zap.String("student_id", student.ID),
		zap.Int("score", submission.Score),
		zap.Int("violations", submission.Violations),
	)
	return submission, nil
}

// ListSubmissions returns an exam's submissions to its owning teacher.
func (s *ExamService) ListSubmissions(ctx context.Context, caller *models.Identity, examID string) ([]models.ExamSubmission, error) {
	exam, err := s.exams.FindExam(ctx, examID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load exam")
	}
	if exam.TeacherID != caller.ID && caller.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "exam belongs to another teacher")
	}

	submissions, err := s.exams.ListSubmissions(ctx, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list submissions")
	}
	return submissions, nil
}

// scoreExam counts correct answers and scales to 0-100. An answer of -1 is
// an unanswered question.
func scoreExam(questions []models.Question, answers []int) int {
	if len(questions) == 0 {
		return 0
	}
	correct := 0
	for i, q := range questions {
		if answers[i] == q.CorrectAnswer {
			correct++
		}
	}
	return correct * 100 / len(questions)
}
