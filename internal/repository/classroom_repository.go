package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/smk-lppmri/portal-api/internal/models"
)

// ClassroomRepository provides document access for classrooms.
type ClassroomRepository struct {
	col *mongo.Collection
}

// NewClassroomRepository creates a new instance of ClassroomRepository.
func NewClassroomRepository(db *mongo.Database) *ClassroomRepository {
	return &ClassroomRepository{col: db.Collection("classrooms")}
}

// Create inserts a classroom document.
func (r *ClassroomRepository) Create(ctx context.Context, classroom *models.Classroom) error {
	if _, err := r.col.InsertOne(ctx, classroom); err != nil {
		return fmt.Errorf("insert classroom: %w", err)
	}
	return nil
}

// FindByCode returns a classroom by its unique code.
func (r *ClassroomRepository) FindByCode(ctx context.Context, code string) (*models.Classroom, error) {
	var classroom models.Classroom
	if err := r.col.FindOne(ctx, bson.M{"code": code}).Decode(&classroom); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, err
		}
		return nil, fmt.Errorf("find classroom by code: %w", err)
	}
	return &classroom, nil
}

// List returns all classrooms sorted by name.
func (r *ClassroomRepository) List(ctx context.Context) ([]models.Classroom, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list classrooms: %w", err)
	}
	defer cursor.Close(ctx)

	var classrooms []models.Classroom
	if err := cursor.All(ctx, &classrooms); err != nil {
		return nil, fmt.Errorf("decode classrooms: %w", err)
	}
	return classrooms, nil
}

// Delete removes a classroom. References from identities and courses are left
// dangling on purpose; deletes do not cascade.
func (r *ClassroomRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.col.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete classroom: %w", err)
	}
	return nil
}
