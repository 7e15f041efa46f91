package repository

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/smk-lppmri/portal-api/internal/models"
)

// IdentityRepository provides document access for identity records.
type IdentityRepository struct {
	col *mongo.Collection
}

// NewIdentityRepository creates a new instance of IdentityRepository.
func NewIdentityRepository(db *mongo.Database) *IdentityRepository {
	return &IdentityRepository{col: db.Collection("users")}
}

// EnsureIndexes creates the uniqueness constraints the registration flow
// relies on. The check-before-insert in the service is best-effort only; the
// sparse unique indexes close the duplicate race at the store level.
func (r *IdentityRepository) EnsureIndexes(ctx context.Context) error {
	unique := func(field string) mongo.IndexModel {
		return mongo.IndexModel{
			Keys:    bson.D{{Key: field, Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		}
	}
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		unique("nisn"),
		unique("nip"),
		unique("credential.id"),
	})
	if err != nil {
		return fmt.Errorf("ensure identity indexes: %w", err)
	}
	return nil
}

// Create inserts a new identity document. The write is a single atomic insert;
// a failed insert leaves no partial record behind.
func (r *IdentityRepository) Create(ctx context.Context, identity *models.Identity) error {
	if _, err := r.col.InsertOne(ctx, identity); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return err
		}
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

// FindByID returns an identity by its document id.
func (r *IdentityRepository) FindByID(ctx context.Context, id string) (*models.Identity, error) {
	var identity models.Identity
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&identity); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, err
		}
		return nil, fmt.Errorf("find identity by id: %w", err)
	}
	return &identity, nil
}

// FindByIdentityNumber matches the public login handle against both the NISN
// and NIP fields, since the handle may be either.
func (r *IdentityRepository) FindByIdentityNumber(ctx context.Context, number string) (*models.Identity, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"nisn": number},
		bson.M{"nip": number},
	}}
	var identity models.Identity
	if err := r.col.FindOne(ctx, filter).Decode(&identity); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, err
		}
		return nil, fmt.Errorf("find identity by number: %w", err)
	}
	return &identity, nil
}

// FindByEmail returns an identity by email address (password fallback login).
func (r *IdentityRepository) FindByEmail(ctx context.Context, email string) (*models.Identity, error) {
	var identity models.Identity
	if err := r.col.FindOne(ctx, bson.M{"email": email}).Decode(&identity); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, err
		}
		return nil, fmt.Errorf("find identity by email: %w", err)
	}
	return &identity, nil
}

// List returns identities matching the filter, newest first.
func (r *IdentityRepository) List(ctx context.Context, filter models.IdentityFilter) ([]models.Identity, error) {
	query := bson.M{}
	if filter.Role != "" {
		query["role"] = filter.Role
	}
	if filter.Approved != nil {
		query["approved"] = *filter.Approved
	}
	if filter.Search != "" {
		query["$or"] = searchQuery(filter.Search)
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer cursor.Close(ctx)

	var identities []models.Identity
	if err := cursor.All(ctx, &identities); err != nil {
		return nil, fmt.Errorf("decode identities: %w", err)
	}
	return identities, nil
}

// SetApproved flips the approval flag. Setting an already-set flag is a no-op,
// which makes double-approval idempotent.
func (r *IdentityRepository) SetApproved(ctx context.Context, id string, approved bool, ts time.Time) error {
	update := bson.M{"$set": bson.M{"approved": approved, "updatedAt": ts}}
	res, err := r.col.UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("set approved: %w", err)
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// UpdateSignCount persists the credential sign count after an assertion.
func (r *IdentityRepository) UpdateSignCount(ctx context.Context, id string, count uint32, ts time.Time) error {
	update := bson.M{"$set": bson.M{"credential.signCount": count, "updatedAt": ts}}
	if _, err := r.col.UpdateByID(ctx, id, update); err != nil {
		return fmt.Errorf("update sign count: %w", err)
	}
	return nil
}

// Delete removes an identity document. Deleting an absent document is a no-op.
func (r *IdentityRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.col.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	return nil
}

// IdentityEvent is one ordered change notification for an identity document.
type IdentityEvent struct {
	Type     string // insert, update, replace or delete
	ID       string
	Identity *models.Identity // nil for deletes
}

// IdentityStream delivers identity change events until cancelled.
type IdentityStream struct {
	Events <-chan IdentityEvent
	cancel context.CancelFunc
}

// Cancel stops the stream; no events are delivered after it returns.
func (s *IdentityStream) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Watch subscribes to the users collection change stream. Events are
// delivered in oplog order per document.
func (r *IdentityRepository) Watch(ctx context.Context) (*IdentityStream, error) {
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	cs, err := r.col.Watch(ctx, mongo.Pipeline{}, opts)
	if err != nil {
		return nil, fmt.Errorf("watch identities: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	events := make(chan IdentityEvent)

	go func() {
		defer close(events)
		defer cs.Close(context.Background())

		for cs.Next(streamCtx) {
			var change struct {
				OperationType string `bson:"operationType"`
				DocumentKey   struct {
					ID string `bson:"_id"`
				} `bson:"documentKey"`
				FullDocument *models.Identity `bson:"fullDocument"`
			}
			if err := cs.Decode(&change); err != nil {
				continue
			}
			select {
			case events <- IdentityEvent{
				Type:     change.OperationType,
				ID:       change.DocumentKey.ID,
				Identity: change.FullDocument,
			}:
			case <-streamCtx.Done():
				return
			}
		}
	}()

	return &IdentityStream{Events: events, cancel: cancel}, nil
}

// searchQuery matches name or email loosely and identity numbers exactly.
// The free-text input is treated as a literal, never as a pattern.
func searchQuery(search string) bson.A {
	pattern := regexp.QuoteMeta(search)
	return bson.A{
		bson.M{"name": bson.M{"$regex": pattern, "$options": "i"}},
		bson.M{"email": bson.M{"$regex": pattern, "$options": "i"}},
		bson.M{"nisn": search},
		bson.M{"nip": search},
	}
}
