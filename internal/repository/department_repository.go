package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/smk-lppmri/portal-api/internal/models"
)

// DepartmentRepository provides document access for departments.
type DepartmentRepository struct {
	col *mongo.Collection
}

// NewDepartmentRepository creates a new instance of DepartmentRepository.
func NewDepartmentRepository(db *mongo.Database) *DepartmentRepository {
	return &DepartmentRepository{col: db.Collection("departments")}
}

// Create inserts a department document.
func (r *DepartmentRepository) Create(ctx context.Context, department *models.Department) error {
	if _, err := r.col.InsertOne(ctx, department); err != nil {
		return fmt.Errorf("insert department: %w", err)
	}
	return nil
}

// FindByCode returns a department by its unique code.
func (r *DepartmentRepository) FindByCode(ctx context.Context, code string) (*models.Department, error) {
	var department models.Department
	if err := r.col.FindOne(ctx, bson.M{"code": code}).Decode(&department); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, err
		}
		return nil, fmt.Errorf("find department by code: %w", err)
	}
	return &department, nil
}

// List returns all departments sorted by code.
func (r *DepartmentRepository) List(ctx context.Context) ([]models.Department, error) {
	opts := options.Find().SetSort(bson.D{{Key: "code", Value: 1}})
	cursor, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	defer cursor.Close(ctx)

	var departments []models.Department
	if err := cursor.All(ctx, &departments); err != nil {
		return nil, fmt.Errorf("decode departments: %w", err)
	}
	return departments, nil
}

// Delete removes a department without cascading to identities or courses.
func (r *DepartmentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.col.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete department: %w", err)
	}
	return nil
}
