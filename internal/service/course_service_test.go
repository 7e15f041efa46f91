package service

import (
	"context"
	"io"
	"strings"
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

type mockCourses struct {
	courses   map[string]*models.Course
	materials []models.Material
}

func (m *mockCourses) CreateCourse(ctx context.Context, course *models.Course) error {
	if m.courses == nil {
		m.courses = make(map[string]*models.Course)
	}
	m.courses[course.ID] = course
	return nil
}

func (m *mockCourses) FindCourse(ctx context.Context, id string) (*models.Course, error) {
	course, ok := m.courses[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return course, nil
}

func (m *mockCourses) ListCourses(ctx context.Context, classroom string) ([]models.Course, error) {
	var out []models.Course
	for _, course := range m.courses {
		if classroom != "" && course.Classroom != classroom {
			continue
		}
		out = append(out, *course)
	}
	return out, nil
}

func (m *mockCourses) CreateMaterial(ctx context.Context, material *models.Material) error {
	m.materials = append(m.materials, *material)
	return nil
}

func (m *mockCourses) ListMaterials(ctx context.Context, courseID string) ([]models.Material, error) {
	var out []models.Material
	for _, material := range m.materials {
		if material.CourseID == courseID {
			out = append(out, material)
		}
	}
	return out, nil
}

func teacherIdentity() *models.Identity {
	return &models.Identity{ID: "t1", Name: "Pak Budi", Role: models.RoleTeacher, Approved: true}
}

func TestCreateCourseRecordsOwner(t *testing.T) {
	repo := &mockCourses{}
	svc := NewCourseService(repo, nil, nil, validator.New(), zap.NewNop())

	course, err := svc.CreateCourse(context.Background(), teacherIdentity(), CourseRequest{
		Title:     "Jaringan Dasar",
		Classroom: "X-TKJ-1",
		Subject:   "TKJ",
	})
	require.NoError(t, err)
	assert.Equal(t, "t1", course.TeacherID)
	assert.Equal(t, "Pak Budi", course.TeacherName)
	assert.Contains(t, repo.courses, course.ID)
}

func TestListCoursesScopedToStudentClassroom(t *testing.T) {
	repo := &mockCourses{courses: map[string]*models.Course{
		"c1": {ID: "c1", Classroom: "X-TKJ-1"},
		"c2": {ID: "c2", Classroom: "XI-RPL-2"},
	}}
	svc := NewCourseService(repo, nil, nil, validator.New(), zap.NewNop())

	student := &models.Identity{ID: "u1", Role: models.RoleStudent, Classroom: "X-TKJ-1"}
	courses, err := svc.ListCourses(context.Background(), student)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "c1", courses[0].ID)

	teacher := teacherIdentity()
	courses, err = svc.ListCourses(context.Background(), teacher)
	require.NoError(t, err)
	assert.Len(t, courses, 2)
}

func TestAddMaterialOnlyByOwner(t *testing.T) {
	repo := &mockCourses{courses: map[string]*models.Course{
		"c1": {ID: "c1", TeacherID: "t1"},
	}}
	svc := NewCourseService(repo, nil, nil, validator.New(), zap.NewNop())

	other := &models.Identity{ID: "t2", Role: models.RoleTeacher}
	_, err := svc.AddMaterial(context.Background(), other, "c1", MaterialRequest{
		Title:   "Bab 1",
		Content: "Pengantar jaringan",
		Type:    models.MaterialText,
	})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	material, err := svc.AddMaterial(context.Background(), teacherIdentity(), "c1", MaterialRequest{
		Title:   "Bab 1",
		Content: "Pengantar jaringan",
		Type:    models.MaterialText,
	})
	require.NoError(t, err)
	assert.Equal(t, "c1", material.CourseID)
}

func TestAddMaterialUnknownCourse(t *testing.T) {
	svc := NewCourseService(&mockCourses{}, nil, nil, validator.New(), zap.NewNop())

	_, err := svc.AddMaterial(context.Background(), teacherIdentity(), "ghost", MaterialRequest{
		Title:   "Bab 1",
		Content: "Isi",
		Type:    models.MaterialText,
	})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestListMaterialsUnknownCourse(t *testing.T) {
	svc := NewCourseService(&mockCourses{}, nil, nil, validator.New(), zap.NewNop())

	_, err := svc.ListMaterials(context.Background(), "ghost")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

type stubStorage struct {
	saved map[string][]byte
}

func (s *stubStorage) SaveStream(filename string, r io.Reader) (string, error) {
	if s.saved == nil {
		s.saved = make(map[string][]byte)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.saved[filename] = data
	return filename, nil
}

type stubSigner struct{}

func (s *stubSigner) Generate(fileID, relPath string) (string, time.Time, error) {
	return fileID + ".token", time.Now().Add(time.Hour), nil
}

func TestUploadMaterialStoresFileAndSignsLink(t *testing.T) {
	repo := &mockCourses{courses: map[string]*models.Course{
		"c1": {ID: "c1", TeacherID: "t1"},
	}}
	storage := &stubStorage{}
	svc := NewCourseService(repo, storage, &stubSigner{}, validator.New(), zap.NewNop())

	material, err := svc.UploadMaterial(context.Background(), teacherIdentity(), "c1", "Modul Bab 1", "bab1.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)

	assert.Equal(t, models.MaterialFile, material.Type)
	assert.Contains(t, material.FileURL, "/api/v1/files/")
	require.Len(t, storage.saved, 1)
	require.Len(t, repo.materials, 1)
}

func TestUploadMaterialDisabledWithoutStorage(t *testing.T) {
	repo := &mockCourses{courses: map[string]*models.Course{
		"c1": {ID: "c1", TeacherID: "t1"},
	}}
	svc := NewCourseService(repo, nil, nil, validator.New(), zap.NewNop())

	_, err := svc.UploadMaterial(context.Background(), teacherIdentity(), "c1", "Modul", "bab1.pdf", strings.NewReader("x"))
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
