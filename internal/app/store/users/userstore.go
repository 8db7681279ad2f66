// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/taskhubapp/taskhub/internal/app/system/normalize"
	"github.com/taskhubapp/taskhub/internal/app/system/status"
	"github.com/taskhubapp/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	// ErrDuplicateEmail is returned when attempting to create a user with an email that already exists.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound  = errors.New("user not found")
	errBadStatus = errors.New(`status must be "active"|"disabled"`)
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByEmail looks up a user by case-insensitive email.
// Returns ErrNotFound if no account is registered under the address.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// FindByEmail looks up a user by case-insensitive email, or nil when no
// account is registered under the address.
func (s *Store) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := s.GetByEmail(ctx, email)
	if err != nil {
		if err == ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// GetManyByIDs loads the users for a set of IDs. Missing IDs are silently
// omitted; callers hydrating rosters tolerate gaps.
func (s *Store) GetManyByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Create inserts a new user after normalizing & validating fields.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.FullName = normalize.Name(u.FullName)
	u.FullNameCI = text.Fold(u.FullName)
	u.Email = normalize.Email(u.Email)
	u.AuthMethod = normalize.AuthMethod(u.AuthMethod)
	if u.Status == "" {
		u.Status = status.Active
	}
	if !status.IsValid(u.Status) {
		return models.User{}, errBadStatus
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// UpdateProfile updates a user's display name.
func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, fullName string) error {
	fullName = normalize.Name(fullName)
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"full_name":    fullName,
		"full_name_ci": text.Fold(fullName),
		"updated_at":   time.Now().UTC(),
	}})
	return err
}

// SetStatus flips a user's account status.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, st string) error {
	st = normalize.Status(st)
	if !status.IsValid(st) {
		return errBadStatus
	}
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"status":     st,
		"updated_at": time.Now().UTC(),
	}})
	return err
}

// EmailExistsForOther checks if an email already exists for a user other than the given ID.
func (s *Store) EmailExistsForOther(ctx context.Context, email string, excludeID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{
		"email": normalize.Email(email),
		"_id":   bson.M{"$ne": excludeID},
	}).Err()
	if err == nil {
		return true, nil
	}
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	return false, err
}
