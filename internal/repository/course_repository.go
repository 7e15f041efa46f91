package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/smk-lppmri/portal-api/internal/models"
)

// CourseRepository provides document access for courses and their materials.
type CourseRepository struct {
	courses   *mongo.Collection
	materials *mongo.Collection
}

// NewCourseRepository creates a new instance of CourseRepository.
func NewCourseRepository(db *mongo.Database) *CourseRepository {
	return &CourseRepository{
		courses:   db.Collection("courses"),
		materials: db.Collection("materials"),
	}
}

// CreateCourse inserts a course document.
func (r *CourseRepository) CreateCourse(ctx context.Context, course *models.Course) error {
	if _, err := r.courses.InsertOne(ctx, course); err != nil {
		return fmt.Errorf("insert course: %w", err)
	}
	return nil
}

// FindCourse returns a course by id.
func (r *CourseRepository) FindCourse(ctx context.Context, id string) (*models.Course, error) {
	var course models.Course
	if err := r.courses.FindOne(ctx, bson.M{"_id": id}).Decode(&course); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// ListCourses returns courses, optionally restricted to one classroom.
func (r *CourseRepository) ListCourses(ctx context.Context, classroom string) ([]models.Course, error) {
	query := bson.M{}
	if classroom != "" {
		query["classroom"] = classroom
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.courses.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer cursor.Close(ctx)

	var courses []models.Course
	if err := cursor.All(ctx, &courses); err != nil {
		return nil, fmt.Errorf("decode courses: %w", err)
	}
	return courses, nil
}

// CreateMaterial inserts a material document.
func (r *CourseRepository) CreateMaterial(ctx context.Context, material *models.Material) error {
	if _, err := r.materials.InsertOne(ctx, material); err != nil {
		return fmt.Errorf("insert material: %w", err)
	}
	return nil
}

// ListMaterials returns the materials for one course, oldest first.
func (r *CourseRepository) ListMaterials(ctx context.Context, courseID string) ([]models.Material, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.materials.Find(ctx, bson.M{"courseId": courseID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	defer cursor.Close(ctx)

	var materials []models.Material
	if err := cursor.All(ctx, &materials); err != nil {
		return nil, fmt.Errorf("decode materials: %w", err)
	}
	return materials, nil
}
