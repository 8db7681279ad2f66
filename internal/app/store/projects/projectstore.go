// internal/app/store/projects/projectstore.go
package projectstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/taskhubapp/taskhub/internal/app/system/normalize"
	"github.com/taskhubapp/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when no project matches the lookup.
var ErrNotFound = errors.New("project not found")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("projects")}
}

// Create inserts a new project under its workspace.
func (s *Store) Create(ctx context.Context, p models.Project) (models.Project, error) {
	if p.WorkspaceID.IsZero() {
		return models.Project{}, errors.New("project requires a workspace")
	}
	if p.CreatorUserID.IsZero() {
		return models.Project{}, errors.New("project requires a creator")
	}

	now := time.Now().UTC()
	p.ID = primitive.NewObjectID()
	p.Name = normalize.Name(p.Name)
	p.NameCI = text.Fold(p.Name)
	p.DeletedAt = nil
	p.CreatedAt = now
	p.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, p); err != nil {
		return models.Project{}, err
	}
	return p, nil
}

// GetByID retrieves a project, soft-deleted included.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Project, error) {
	var p models.Project
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Project{}, ErrNotFound
		}
		return models.Project{}, err
	}
	return p, nil
}

// FindActiveByID retrieves a project that is not soft-deleted, or nil when
// none exists.
func (s *Store) FindActiveByID(ctx context.Context, id primitive.ObjectID) (*models.Project, error) {
	var p models.Project
	err := s.c.FindOne(ctx, bson.M{"_id": id, "deleted_at": nil}).Decode(&p)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// Update modifies a project's name and description.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, name, description string) error {
	name = normalize.Name(name)
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id, "deleted_at": nil}, bson.M{"$set": bson.M{
		"name":        name,
		"name_ci":     text.Fold(name),
		"description": description,
		"updated_at":  time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete marks a project deleted.
func (s *Store) SoftDelete(ctx context.Context, id primitive.ObjectID, at time.Time) (int64, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "deleted_at": nil},
		bson.M{"$set": bson.M{"deleted_at": at.UTC(), "updated_at": at.UTC()}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Restore clears a project's deletion mark.
func (s *Store) Restore(ctx context.Context, id primitive.ObjectID) (int64, error) {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "deleted_at": bson.M{"$ne": nil}},
		bson.M{"$set": bson.M{"deleted_at": nil, "updated_at": now}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// SoftDeleteByWorkspace marks every active project in a workspace deleted.
// Part of the workspace delete cascade.
func (s *Store) SoftDeleteByWorkspace(ctx context.Context, workspaceID primitive.ObjectID, at time.Time) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"workspace_id": workspaceID, "deleted_at": nil},
		bson.M{"$set": bson.M{"deleted_at": at.UTC(), "updated_at": at.UTC()}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// RestoreByWorkspace reverses SoftDeleteByWorkspace for projects stamped
// with the cascade timestamp, leaving individually deleted projects alone.
func (s *Store) RestoreByWorkspace(ctx context.Context, workspaceID primitive.ObjectID, at time.Time) (int64, error) {
	now := time.Now().UTC()
	res, err := s.c.UpdateMany(ctx,
		bson.M{"workspace_id": workspaceID, "deleted_at": at.UTC()},
		bson.M{"$set": bson.M{"deleted_at": nil, "updated_at": now}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// ListActiveByWorkspace returns a workspace's live projects sorted by
// folded name.
func (s *Store) ListActiveByWorkspace(ctx context.Context, workspaceID primitive.ObjectID) ([]models.Project, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"workspace_id": workspaceID, "deleted_at": nil}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var projects []models.Project
	if err := cur.All(ctx, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// CountActiveByWorkspace returns the number of live projects in a workspace.
func (s *Store) CountActiveByWorkspace(ctx context.Context, workspaceID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"workspace_id": workspaceID, "deleted_at": nil})
}
