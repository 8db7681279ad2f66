// internal/app/store/workspacemembers/store.go
package workspacemembers

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/taskhubapp/taskhub/internal/app/system/normalize"
	"github.com/taskhubapp/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrDuplicateMembership is returned when the user already has a
	// membership row in the workspace.
	ErrDuplicateMembership = errors.New("user is already a member of this workspace")
	// ErrNotFound is returned when no membership matches the lookup.
	ErrNotFound = errors.New("workspace membership not found")
	errBadRole  = errors.New(`role must be "owner"|"admin"|"member"`)
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("workspace_members")}
}

// Add inserts a membership row. The unique (workspace_id, user_id) index
// turns concurrent double-adds into ErrDuplicateMembership.
func (s *Store) Add(ctx context.Context, m models.WorkspaceMember) (models.WorkspaceMember, error) {
	m.Role = normalize.Role(m.Role)
	switch m.Role {
	case models.WorkspaceRoleOwner, models.WorkspaceRoleAdmin, models.WorkspaceRoleMember:
	default:
		return models.WorkspaceMember{}, errBadRole
	}

	now := time.Now().UTC()
	m.ID = primitive.NewObjectID()
	m.DeletedAt = nil
	m.CreatedAt = now
	m.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, m); err != nil {
		if wafflemongo.IsDup(err) {
			return models.WorkspaceMember{}, ErrDuplicateMembership
		}
		return models.WorkspaceMember{}, err
	}
	return m, nil
}

// GetActive returns the live membership for (workspace, user), or nil when
// the user holds none. Soft-deleted rows do not count.
func (s *Store) GetActive(ctx context.Context, workspaceID, userID primitive.ObjectID) (*models.WorkspaceMember, error) {
	var m models.WorkspaceMember
	err := s.c.FindOne(ctx, bson.M{
		"workspace_id": workspaceID,
		"user_id":      userID,
		"deleted_at":   nil,
	}).Decode(&m)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// SetRole changes the role on an active membership.
func (s *Store) SetRole(ctx context.Context, workspaceID, userID primitive.ObjectID, role string) error {
	role = normalize.Role(role)
	switch role {
	case models.WorkspaceRoleOwner, models.WorkspaceRoleAdmin, models.WorkspaceRoleMember:
	default:
		return errBadRole
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"workspace_id": workspaceID, "user_id": userID, "deleted_at": nil},
		bson.M{"$set": bson.M{"role": role, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Remove soft-deletes a single membership.
func (s *Store) Remove(ctx context.Context, workspaceID, userID primitive.ObjectID) (int64, error) {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"workspace_id": workspaceID, "user_id": userID, "deleted_at": nil},
		bson.M{"$set": bson.M{"deleted_at": now, "updated_at": now}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Reactivate clears the deletion mark on an existing membership and sets
// the given role. Used when a previously removed user is re-admitted; the
// unique index prevents inserting a second row for them.
func (s *Store) Reactivate(ctx context.Context, workspaceID, userID primitive.ObjectID, role string) (int64, error) {
	role = normalize.Role(role)
	res, err := s.c.UpdateOne(ctx,
		bson.M{"workspace_id": workspaceID, "user_id": userID, "deleted_at": bson.M{"$ne": nil}},
		bson.M{"$set": bson.M{"deleted_at": nil, "role": role, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// RemoveAllByWorkspace soft-deletes every active membership in a workspace.
// Part of the workspace delete cascade; rows deleted here carry the cascade
// timestamp so a restore can tell them apart from individually removed
// members.
func (s *Store) RemoveAllByWorkspace(ctx context.Context, workspaceID primitive.ObjectID, at time.Time) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"workspace_id": workspaceID, "deleted_at": nil},
		bson.M{"$set": bson.M{"deleted_at": at.UTC(), "updated_at": at.UTC()}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// RestoreAllByWorkspace reverses RemoveAllByWorkspace for the rows stamped
// with the cascade timestamp, leaving individually removed members deleted.
func (s *Store) RestoreAllByWorkspace(ctx context.Context, workspaceID primitive.ObjectID, at time.Time) (int64, error) {
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

// ListActiveByWorkspace returns the live roster of a workspace.
func (s *Store) ListActiveByWorkspace(ctx context.Context, workspaceID primitive.ObjectID) ([]models.WorkspaceMember, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"workspace_id": workspaceID, "deleted_at": nil}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var members []models.WorkspaceMember
	if err := cur.All(ctx, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// ListActiveByUser returns a user's live memberships across workspaces.
func (s *Store) ListActiveByUser(ctx context.Context, userID primitive.ObjectID) ([]models.WorkspaceMember, error) {
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID, "deleted_at": nil})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var members []models.WorkspaceMember
	if err := cur.All(ctx, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// CountActiveByWorkspace returns the number of live members in a workspace.
func (s *Store) CountActiveByWorkspace(ctx context.Context, workspaceID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"workspace_id": workspaceID, "deleted_at": nil})
}
