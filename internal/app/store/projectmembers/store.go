// internal/app/store/projectmembers/store.go
package projectmembers

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/taskhubapp/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrDuplicateMembership is returned when the user already has a
	// membership row in the project.
	ErrDuplicateMembership = errors.New("user is already a member of this project")
	// ErrNotFound is returned when no membership matches the lookup.
	ErrNotFound = errors.New("project membership not found")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("project_members")}
}

// Add inserts a membership row. The unique (project_id, user_id) index
// turns concurrent double-adds into ErrDuplicateMembership.
func (s *Store) Add(ctx context.Context, m models.ProjectMember) (models.ProjectMember, error) {
	if m.WorkspaceID.IsZero() || m.ProjectID.IsZero() || m.UserID.IsZero() || m.RoleID.IsZero() {
		return models.ProjectMember{}, errors.New("membership requires workspace, project, user, and role")
	}

	now := time.Now().UTC()
	m.ID = primitive.NewObjectID()
	m.DeletedAt = nil
	m.CreatedAt = now
	m.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, m); err != nil {
		if wafflemongo.IsDup(err) {
			return models.ProjectMember{}, ErrDuplicateMembership
		}
		return models.ProjectMember{}, err
	}
	return m, nil
}

// GetActive returns the live membership for (project, user), or nil when
// the user holds none.
func (s *Store) GetActive(ctx context.Context, projectID, userID primitive.ObjectID) (*models.ProjectMember, error) {
	var m models.ProjectMember
	err := s.c.FindOne(ctx, bson.M{
		"project_id": projectID,
		"user_id":    userID,
		"deleted_at": nil,
	}).Decode(&m)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// SetRole moves an active member onto a different role.
func (s *Store) SetRole(ctx context.Context, projectID, userID, roleID primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"project_id": projectID, "user_id": userID, "deleted_at": nil},
		bson.M{"$set": bson.M{"role_id": roleID, "updated_at": time.Now().UTC()}},
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
func (s *Store) Remove(ctx context.Context, projectID, userID primitive.ObjectID) (int64, error) {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"project_id": projectID, "user_id": userID, "deleted_at": nil},
		bson.M{"$set": bson.M{"deleted_at": now, "updated_at": now}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Reactivate clears the deletion mark on an existing membership and sets
// the given role.
func (s *Store) Reactivate(ctx context.Context, projectID, userID, roleID primitive.ObjectID) (int64, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"project_id": projectID, "user_id": userID, "deleted_at": bson.M{"$ne": nil}},
		bson.M{"$set": bson.M{"deleted_at": nil, "role_id": roleID, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// ListActiveByProject returns a project's live roster.
func (s *Store) ListActiveByProject(ctx context.Context, projectID primitive.ObjectID) ([]models.ProjectMember, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"project_id": projectID, "deleted_at": nil}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var members []models.ProjectMember
	if err := cur.All(ctx, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// ListActiveByUserInWorkspace returns a user's live project memberships
// inside one workspace.
func (s *Store) ListActiveByUserInWorkspace(ctx context.Context, workspaceID, userID primitive.ObjectID) ([]models.ProjectMember, error) {
	cur, err := s.c.Find(ctx, bson.M{
		"workspace_id": workspaceID,
		"user_id":      userID,
		"deleted_at":   nil,
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var members []models.ProjectMember
	if err := cur.All(ctx, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// CountActiveByRole returns how many live members hold a role. Used to
// block deleting a role that is still assigned.
func (s *Store) CountActiveByRole(ctx context.Context, roleID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"role_id": roleID, "deleted_at": nil})
}

// RemoveAllByWorkspace soft-deletes every active project membership in a
// workspace. Part of the member-removal and workspace-delete cascades.
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

// RestoreAllByWorkspace reverses RemoveAllByWorkspace for rows stamped with
// the cascade timestamp, leaving individually removed members deleted.
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

// RemoveAllByUserInWorkspace soft-deletes a user's project memberships in a
// workspace. Run when the user is removed from the workspace so their
// project rows cannot outlive the workspace membership.
func (s *Store) RemoveAllByUserInWorkspace(ctx context.Context, workspaceID, userID primitive.ObjectID, at time.Time) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"workspace_id": workspaceID, "user_id": userID, "deleted_at": nil},
		bson.M{"$set": bson.M{"deleted_at": at.UTC(), "updated_at": at.UTC()}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
