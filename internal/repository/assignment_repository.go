package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/smk-lppmri/portal-api/internal/models"
)

// AssignmentRepository provides document access for assignments and their
// submissions.
type AssignmentRepository struct {
	assignments *mongo.Collection
	submissions *mongo.Collection
}

// NewAssignmentRepository creates a new instance of AssignmentRepository.
func NewAssignmentRepository(db *mongo.Database) *AssignmentRepository {
	return &AssignmentRepository{
		assignments: db.Collection("assignments"),
		submissions: db.Collection("assignment_submissions"),
	}
}

// CreateAssignment inserts an assignment document.
func (r *AssignmentRepository) CreateAssignment(ctx context.Context, assignment *models.Assignment) error {
	if _, err := r.assignments.InsertOne(ctx, assignment); err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

// FindAssignment returns an assignment by id.
func (r *AssignmentRepository) FindAssignment(ctx context.Context, id string) (*models.Assignment, error) {
	var assignment models.Assignment
	if err := r.assignments.FindOne(ctx, bson.M{"_id": id}).Decode(&assignment); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment: %w", err)
	}
	return &assignment, nil
}

// ListAssignments returns assignments, optionally restricted to one classroom
// or one teacher.
func (r *AssignmentRepository) ListAssignments(ctx context.Context, classroom, teacherID string) ([]models.Assignment, error) {
	query := bson.M{}
	if classroom != "" {
		query["classroom"] = classroom
	}
	if teacherID != "" {
		query["teacherId"] = teacherID
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.assignments.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer cursor.Close(ctx)

	var assignments []models.Assignment
	if err := cursor.All(ctx, &assignments); err != nil {
		return nil, fmt.Errorf("decode assignments: %w", err)
	}
	return assignments, nil
}

// CreateSubmission inserts an assignment submission document.
func (r *AssignmentRepository) CreateSubmission(ctx context.Context, submission *models.AssignmentSubmission) error {
	if _, err := r.submissions.InsertOne(ctx, submission); err != nil {
		return fmt.Errorf("insert assignment submission: %w", err)
	}
	return nil
}

// FindSubmission returns one student's submission for an assignment.
func (r *AssignmentRepository) FindSubmission(ctx context.Context, assignmentID, studentID string) (*models.AssignmentSubmission, error) {
	var submission models.AssignmentSubmission
	err := r.submissions.FindOne(ctx, bson.M{"assignmentId": assignmentID, "studentId": studentID}).Decode(&submission)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment submission: %w", err)
	}
	return &submission, nil
}

// FindSubmissionByID returns a submission by id.
func (r *AssignmentRepository) FindSubmissionByID(ctx context.Context, id string) (*models.AssignmentSubmission, error) {
	var submission models.AssignmentSubmission
	if err := r.submissions.FindOne(ctx, bson.M{"_id": id}).Decode(&submission); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment submission: %w", err)
	}
	return &submission, nil
}

// GradeSubmission sets the grade, feedback and grading timestamp.
func (r *AssignmentRepository) GradeSubmission(ctx context.Context, id string, grade int, feedback string, gradedAt time.Time) error {
	update := bson.M{"$set": bson.M{"grade": grade, "feedback": feedback, "gradedAt": gradedAt}}
	result, err := r.submissions.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("grade assignment submission: %w", err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ListSubmissions returns the submissions for one assignment, newest first.
func (r *AssignmentRepository) ListSubmissions(ctx context.Context, assignmentID string) ([]models.AssignmentSubmission, error) {
	opts := options.Find().SetSort(bson.D{{Key: "submittedAt", Value: -1}})
	cursor, err := r.submissions.Find(ctx, bson.M{"assignmentId": assignmentID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list assignment submissions: %w", err)
	}
	defer cursor.Close(ctx)

	var submissions []models.AssignmentSubmission
	if err := cursor.All(ctx, &submissions); err != nil {
		return nil, fmt.Errorf("decode assignment submissions: %w", err)
	}
	return submissions, nil
}
