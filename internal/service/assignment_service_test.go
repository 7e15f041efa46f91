package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/smk-lppmri/portal-api/internal/models"
	appErrors "github.com/smk-lppmri/portal-api/pkg/errors"
)

type mockAssignments struct {
	assignments map[string]*models.Assignment
	submissions map[string]*models.AssignmentSubmission
}

func (m *mockAssignments) CreateAssignment(ctx context.Context, assignment *models.Assignment) error {
	if m.assignments == nil {
		m.assignments = make(map[string]*models.Assignment)
	}
	m.assignments[assignment.ID] = assignment
	return nil
}

func (m *mockAssignments) FindAssignment(ctx context.Context, id string) (*models.Assignment, error) {
	assignment, ok := m.assignments[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return assignment, nil
}

func (m *mockAssignments) ListAssignments(ctx context.Context, classroom, teacherID string) ([]models.Assignment, error) {
	var out []models.Assignment
	for _, assignment := range m.assignments {
		if classroom != "" && assignment.Classroom != classroom {
			continue
		}
		if teacherID != "" && assignment.TeacherID != teacherID {
			continue
		}
		out = append(out, *assignment)
	}
	return out, nil
}

func (m *mockAssignments) CreateSubmission(ctx context.Context, submission *models.AssignmentSubmission) error {
	if m.submissions == nil {
		m.submissions = make(map[string]*models.AssignmentSubmission)
	}
	m.submissions[submission.ID] = submission
	return nil
}

func (m *mockAssignments) FindSubmission(ctx context.Context, assignmentID, studentID string) (*models.AssignmentSubmission, error) {
	for _, submission := range m.submissions {
		if submission.AssignmentID == assignmentID && submission.StudentID == studentID {
			return submission, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (m *mockAssignments) FindSubmissionByID(ctx context.Context, id string) (*models.AssignmentSubmission, error) {
	submission, ok := m.submissions[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return submission, nil
}

func (m *mockAssignments) GradeSubmission(ctx context.Context, id string, grade int, feedback string, gradedAt time.Time) error {
	submission, ok := m.submissions[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	submission.Grade = &grade
	submission.Feedback = feedback
	submission.GradedAt = &gradedAt
	return nil
}

func (m *mockAssignments) ListSubmissions(ctx context.Context, assignmentID string) ([]models.AssignmentSubmission, error) {
	var out []models.AssignmentSubmission
	for _, submission := range m.submissions {
		if submission.AssignmentID == assignmentID {
			out = append(out, *submission)
		}
	}
	return out, nil
}

func openAssignment() *models.Assignment {
	return &models.Assignment{
		ID:        "a1",
		Title:     "Laporan Praktikum",
		TeacherID: "t1",
		Classroom: "X-TKJ-1",
		Deadline:  time.Now().Add(24 * time.Hour).UTC(),
	}
}

func assignmentStudent() *models.Identity {
	return &models.Identity{ID: "u1", Name: "Siti Rahma", Role: models.RoleStudent, Classroom: "X-TKJ-1", Approved: true}
}

func TestCreateAssignmentRecordsOwner(t *testing.T) {
	repo := &mockAssignments{}
	svc := NewAssignmentService(repo, validator.New(), zap.NewNop())

	assignment, err := svc.CreateAssignment(context.Background(), teacherIdentity(), AssignmentRequest{
		Title:       "Laporan Praktikum",
		Description: "Tulis laporan bab 3",
		Classroom:   "X-TKJ-1",
		Deadline:    time.Now().Add(48 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "t1", assignment.TeacherID)
	assert.Equal(t, "Pak Budi", assignment.TeacherName)
	assert.Contains(t, repo.assignments, assignment.ID)
}

func TestListAssignmentsScopedByRole(t *testing.T) {
	other := openAssignment()
	other.ID = "a2"
	other.TeacherID = "t2"
	other.Classroom = "XI-RPL-2"
	repo := &mockAssignments{assignments: map[string]*models.Assignment{"a1": openAssignment(), "a2": other}}
	svc := NewAssignmentService(repo, validator.New(), zap.NewNop())

	listed, err := svc.ListAssignments(context.Background(), assignmentStudent())
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "a1", listed[0].ID)

	listed, err = svc.ListAssignments(context.Background(), teacherIdentity())
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "a1", listed[0].ID)
}

func TestSubmitAssignmentRecordsTurnIn(t *testing.T) {
	repo := &mockAssignments{assignments: map[string]*models.Assignment{"a1": openAssignment()}}
	svc := NewAssignmentService(repo, validator.New(), zap.NewNop())

	submission, err := svc.SubmitAssignment(context.Background(), assignmentStudent(), "a1", AssignmentSubmissionRequest{
		Content: "Laporan terlampir",
	})
	require.NoError(t, err)
	assert.Equal(t, "Siti Rahma", submission.StudentName)
	assert.Nil(t, submission.Grade, "ungraded on turn-in")
	assert.Contains(t, repo.submissions, submission.ID)
}

func TestSubmitAssignmentRejectsAfterDeadline(t *testing.T) {
	expired := openAssignment()
	expired.Deadline = time.Now().Add(-time.Hour).UTC()
	repo := &mockAssignments{assignments: map[string]*models.Assignment{"a1": expired}}
	svc := NewAssignmentService(repo, validator.New(), zap.NewNop())

	_, err := svc.SubmitAssignment(context.Background(), assignmentStudent(), "a1", AssignmentSubmissionRequest{Content: "telat"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestSubmitAssignmentRejectsDuplicate(t *testing.T) {
	repo := &mockAssignments{assignments: map[string]*models.Assignment{"a1": openAssignment()}}
	svc := NewAssignmentService(repo, validator.New(), zap.NewNop())

	_, err := svc.SubmitAssignment(context.Background(), assignmentStudent(), "a1", AssignmentSubmissionRequest{Content: "v1"})
	require.NoError(t, err)

	_, err = svc.SubmitAssignment(context.Background(), assignmentStudent(), "a1", AssignmentSubmissionRequest{Content: "v2"})
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestSubmitAssignmentRejectsWrongClassroom(t *testing.T) {
	repo := &mockAssignments{assignments: map[string]*models.Assignment{"a1": openAssignment()}}
	svc := NewAssignmentService(repo, validator.New(), zap.NewNop())

	outsider := assignmentStudent()
	outsider.Classroom = "XI-RPL-2"
	_, err := svc.SubmitAssignment(context.Background(), outsider, "a1", AssignmentSubmissionRequest{Content: "x"})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestGradeSubmissionByOwner(t *testing.T) {
	repo := &mockAssignments{
		assignments: map[string]*models.Assignment{"a1": openAssignment()},
		submissions: map[string]*models.AssignmentSubmission{
			"s1": {ID: "s1", AssignmentID: "a1", StudentID: "u1"},
		},
	}
	svc := NewAssignmentService(repo, validator.New(), zap.NewNop())

	graded, err := svc.GradeSubmission(context.Background(), teacherIdentity(), "s1", GradeRequest{
		Grade:    85,
		Feedback: "Bagus, rapikan bab 2",
	})
	require.NoError(t, err)
	require.NotNil(t, graded.Grade)
	assert.Equal(t, 85, *graded.Grade)
	assert.Equal(t, "Bagus, rapikan bab 2", graded.Feedback)
	assert.NotNil(t, graded.GradedAt)
	require.NotNil(t, repo.submissions["s1"].Grade)
	assert.Equal(t, 85, *repo.submissions["s1"].Grade)
}

func TestGradeSubmissionRejectsNonOwner(t *testing.T) {
	repo := &mockAssignments{
		assignments: map[string]*models.Assignment{"a1": openAssignment()},
		submissions: map[string]*models.AssignmentSubmission{
			"s1": {ID: "s1", AssignmentID: "a1", StudentID: "u1"},
		},
	}
	svc := NewAssignmentService(repo, validator.New(), zap.NewNop())

	other := &models.Identity{ID: "t2", Role: models.RoleTeacher}
	_, err := svc.GradeSubmission(context.Background(), other, "s1", GradeRequest{Grade: 50})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestListAssignmentSubmissionsOnlyForOwner(t *testing.T) {
	repo := &mockAssignments{
		assignments: map[string]*models.Assignment{"a1": openAssignment()},
		submissions: map[string]*models.AssignmentSubmission{
			"s1": {ID: "s1", AssignmentID: "a1", StudentID: "u1"},
		},
	}
	svc := NewAssignmentService(repo, validator.New(), zap.NewNop())

	submissions, err := svc.ListSubmissions(context.Background(), teacherIdentity(), "a1")
	require.NoError(t, err)
	assert.Len(t, submissions, 1)

	other := &models.Identity{ID: "t2", Role: models.RoleTeacher}
	_, err = svc.ListSubmissions(context.Background(), other, "a1")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}
