// internal/app/store/projectroles/store.go
package projectroles

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/taskhubapp/taskhub/internal/app/system/normalize"
	"github.com/taskhubapp/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrDuplicateName is returned when a role with the same folded name
	// already exists in the project.
	ErrDuplicateName = errors.New("a role with this name already exists in the project")
	// ErrNotFound is returned when no role matches the lookup.
	ErrNotFound = errors.New("project role not found")
	// ErrSystemRole is returned on attempts to modify or delete the
	// built-in Admin role.
	ErrSystemRole = errors.New("the system Admin role cannot be modified")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("project_roles")}
}

// Create inserts a custom role. Administrative is computed here, once, from
// the permission set; later permission checks read the stored flag.
func (s *Store) Create(ctx context.Context, r models.ProjectRole) (models.ProjectRole, error) {
	if r.ProjectID.IsZero() {
		return models.ProjectRole{}, errors.New("role requires a project")
	}
	r.Name = normalize.Name(r.Name)
	if r.Name == "" {
		return models.ProjectRole{}, errors.New("role requires a name")
	}

	now := time.Now().UTC()
	r.ID = primitive.NewObjectID()
	r.NameCI = text.Fold(r.Name)
	r.Administrative = models.ComputeAdministrative(r.System, r.Permissions)
	r.CreatedAt = now
	r.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, r); err != nil {
		if wafflemongo.IsDup(err) {
			return models.ProjectRole{}, ErrDuplicateName
		}
		return models.ProjectRole{}, err
	}
	return r, nil
}

// CreateSystemAdmin inserts the built-in Admin role for a new project.
func (s *Store) CreateSystemAdmin(ctx context.Context, projectID primitive.ObjectID) (models.ProjectRole, error) {
	return s.Create(ctx, models.ProjectRole{
		ProjectID:   projectID,
		Name:        models.SystemAdminRoleName,
		Permissions: []string{models.PermProjectManage},
		System:      true,
	})
}

// GetByID retrieves a role by ID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.ProjectRole, error) {
	var r models.ProjectRole
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.ProjectRole{}, ErrNotFound
		}
		return models.ProjectRole{}, err
	}
	return r, nil
}

// FindByID retrieves a role by ID, or nil when none exists.
func (s *Store) FindByID(ctx context.Context, id primitive.ObjectID) (*models.ProjectRole, error) {
	var r models.ProjectRole
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// GetSystemAdmin returns the built-in Admin role of a project.
func (s *Store) GetSystemAdmin(ctx context.Context, projectID primitive.ObjectID) (models.ProjectRole, error) {
	var r models.ProjectRole
	err := s.c.FindOne(ctx, bson.M{"project_id": projectID, "system": true}).Decode(&r)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.ProjectRole{}, ErrNotFound
		}
		return models.ProjectRole{}, err
	}
	return r, nil
}

// Update replaces a custom role's name and permission set, recomputing the
// administrative flag. System roles are immutable.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, name string, permissions []string) error {
	name = normalize.Name(name)
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "system": false},
		bson.M{"$set": bson.M{
			"name":           name,
			"name_ci":        text.Fold(name),
			"permissions":    permissions,
			"administrative": models.ComputeAdministrative(false, permissions),
			"updated_at":     time.Now().UTC(),
		}},
	)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateName
		}
		return err
	}
	if res.MatchedCount == 0 {
		// Either the role does not exist or it is the system role.
		r, gerr := s.GetByID(ctx, id)
		if gerr == nil && r.System {
			return ErrSystemRole
		}
		return ErrNotFound
	}
	return nil
}

// Delete removes a custom role. System roles cannot be deleted; callers
// must also verify no member still holds the role.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "system": false})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		r, gerr := s.GetByID(ctx, id)
		if gerr == nil && r.System {
			return ErrSystemRole
		}
		return ErrNotFound
	}
	return nil
}

// ListByProject returns a project's roles, system role first, then by
// folded name.
func (s *Store) ListByProject(ctx context.Context, projectID primitive.ObjectID) ([]models.ProjectRole, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "system", Value: -1},
		{Key: "name_ci", Value: 1},
	})
	cur, err := s.c.Find(ctx, bson.M{"project_id": projectID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var roles []models.ProjectRole
	if err := cur.All(ctx, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}
