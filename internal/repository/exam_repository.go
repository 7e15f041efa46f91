package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/smk-lppmri/portal-api/internal/models"
)

// ExamRepository provides document access for exams and their submissions.
type ExamRepository struct {
	exams       *mongo.Collection
	submissions *mongo.Collection
}

// NewExamRepository creates a new instance of ExamRepository.
func NewExamRepository(db *mongo.Database) *ExamRepository {
	return &ExamRepository{
		exams:       db.Collection("exams"),
		submissions: db.Collection("exam_submissions"),
	}
}

// CreateExam inserts an exam document.
func (r *ExamRepository) CreateExam(ctx context.Context, exam *models.Exam) error {
	if _, err := r.exams.InsertOne(ctx, exam); err != nil {
		return fmt.Errorf("insert exam: %w", err)
	}
	return nil
}

// FindExam returns an exam by id.
func (r *ExamRepository) FindExam(ctx context.Context, id string) (*models.Exam, error) {
	var exam models.Exam
	if err := r.exams.FindOne(ctx, bson.M{"_id": id}).Decode(&exam); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, err
		}
		return nil, fmt.Errorf("find exam: %w", err)
	}
	return &exam, nil
}

// ListExams returns exams, optionally restricted to one classroom or one
// teacher.
func (r *ExamRepository) ListExams(ctx context.Context, classroom, teacherID string) ([]models.Exam, error) {
	query := bson.M{}
	if classroom != "" {
		query["classroom"] = classroom
	}
	if teacherID != "" {
		query["teacherId"] = teacherID
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.exams.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	defer cursor.Close(ctx)

	var exams []models.Exam
	if err := cursor.All(ctx, &exams); err != nil {
		return nil, fmt.Errorf("decode exams: %w", err)
	}
	return exams, nil
}

// CreateSubmission inserts an exam submission document.
func (r *ExamRepository) CreateSubmission(ctx context.Context, submission *models.ExamSubmission) error {
	if _, err := r.submissions.InsertOne(ctx, submission); err != nil {
		return fmt.Errorf("insert exam submission: %w", err)
	}
	return nil
}

// FindSubmission returns one student's submission for an exam.
func (r *ExamRepository) FindSubmission(ctx context.Context, examID, studentID string) (*models.ExamSubmission, error) {
	var submission models.ExamSubmission
	err := r.submissions.FindOne(ctx, bson.M{"examId": examID, "studentId": studentID}).Decode(&submission)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, err
		}
		return nil, fmt.Errorf("find exam submission: %w", err)
	}
	return &submission, nil
}

// ListSubmissions returns the submissions for one exam, newest first.
func (r *ExamRepository) ListSubmissions(ctx context.Context, examID string) ([]models.ExamSubmission, error) {
	opts := options.Find().SetSort(bson.D{{Key: "submittedAt", Value: -1}})
	cursor, err := r.submissions.Find(ctx, bson.M{"examId": examID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list exam submissions: %w", err)
	}
	defer cursor.Close(ctx)

	var submissions []models.ExamSubmission
	if err := cursor.All(ctx, &submissions); err != nil {
		return nil, fmt.Errorf("decode exam submissions: %w", err)
	}
	return submissions, nil
}
