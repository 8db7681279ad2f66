// internal/app/store/workspaces/workspacestore.go
package workspacestore

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

var (
	// ErrNotFound is returned when no workspace matches the lookup.
	ErrNotFound = errors.New("workspace not found")
	errBadType  = errors.New(`type must be "personal"|"group"`)
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("workspaces")}
}

// Create inserts a new workspace.
func (s *Store) Create(ctx context.Context, ws models.Workspace) (models.Workspace, error) {
	switch ws.Type {
	case models.WorkspaceTypePersonal, models.WorkspaceTypeGroup:
	default:
		return models.Workspace{}, errBadType
	}
	if ws.OwnerUserID.IsZero() {
		return models.Workspace{}, errors.New("workspace requires an owner")
	}

	now := time.Now().UTC()
	ws.ID = primitive.NewObjectID()
	ws.Name = normalize.Name(ws.Name)
	ws.NameCI = text.Fold(ws.Name)
	ws.DeletedAt = nil
	ws.CreatedAt = now
	ws.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, ws); err != nil {
		return models.Workspace{}, err
	}
	return ws, nil
}

// GetByID retrieves a workspace by its ID, soft-deleted included. Callers
// that must not see deleted workspaces check DeletedAt themselves.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Workspace, error) {
	var ws models.Workspace
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&ws)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Workspace{}, ErrNotFound
		}
		return models.Workspace{}, err
	}
	return ws, nil
}

// FindActiveByID retrieves a workspace that is not soft-deleted, or nil
// when none exists. The nil-without-error contract is what the policy layer
// consumes.
func (s *Store) FindActiveByID(ctx context.Context, id primitive.ObjectID) (*models.Workspace, error) {
	var ws models.Workspace
	err := s.c.FindOne(ctx, bson.M{"_id": id, "deleted_at": nil}).Decode(&ws)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &ws, nil
}

// Rename updates a workspace's name.
func (s *Store) Rename(ctx context.Context, id primitive.ObjectID, name string) error {
	name = normalize.Name(name)
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id, "deleted_at": nil}, bson.M{"$set": bson.M{
		"name":       name,
		"name_ci":    text.Fold(name),
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetOwner records a new owning user. Callers are responsible for keeping
// the member roster's owner row in step (see the ownership transfer path).
func (s *Store) SetOwner(ctx context.Context, id, ownerUserID primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id, "deleted_at": nil}, bson.M{"$set": bson.M{
		"owner_user_id": ownerUserID,
		"updated_at":    time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete marks a workspace deleted. Already-deleted workspaces are left
// untouched so the original deletion time survives repeated calls.
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

// Restore clears a workspace's deletion mark.
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

// ListActiveByIDs returns the non-deleted workspaces among the given IDs,
// sorted by folded name.
func (s *Store) ListActiveByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Workspace, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}, "deleted_at": nil}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var workspaces []models.Workspace
	if err := cur.All(ctx, &workspaces); err != nil {
		return nil, err
	}
	return workspaces, nil
}

// ListActiveOwnedBy returns the non-deleted workspaces owned by a user.
func (s *Store) ListActiveOwnedBy(ctx context.Context, ownerUserID primitive.ObjectID) ([]models.Workspace, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"owner_user_id": ownerUserID, "deleted_at": nil}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var workspaces []models.Workspace
	if err := cur.All(ctx, &workspaces); err != nil {
		return nil, err
	}
	return workspaces, nil
}

// GetPersonalByOwner returns a user's personal workspace.
func (s *Store) GetPersonalByOwner(ctx context.Context, ownerUserID primitive.ObjectID) (models.Workspace, error) {
	var ws models.Workspace
	err := s.c.FindOne(ctx, bson.M{
		"owner_user_id": ownerUserID,
		"type":          models.WorkspaceTypePersonal,
		"deleted_at":    nil,
	}).Decode(&ws)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Workspace{}, ErrNotFound
		}
		return models.Workspace{}, err
	}
	return ws, nil
}

// Count returns the number of workspaces matching the given filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}
