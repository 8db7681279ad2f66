// internal/app/store/users/fetcher.go
package userstore

import (
	"context"

	"github.com/taskhubapp/taskhub/internal/app/system/auth"
	"github.com/taskhubapp/taskhub/internal/app/system/normalize"
	"github.com/taskhubapp/taskhub/internal/app/system/timeouts"
	"github.com/taskhubapp/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Fetcher implements auth.UserFetcher so the session middleware can refresh
// the signed-in user from the database on each request. A nil result means
// the account no longer exists or is disabled, and the session is dropped.
type Fetcher struct {
	users *mongo.Collection
}

// NewFetcher creates a UserFetcher backed by the given database.
func NewFetcher(db *mongo.Database) *Fetcher {
	return &Fetcher{users: db.Collection("users")}
}

// FetchSessionUser loads the user identified by the session's user ID.
// Returns (nil, nil) when the ID is malformed, the user is gone, or the
// account is disabled.
func (f *Fetcher) FetchSessionUser(ctx context.Context, userID string) (*auth.SessionUser, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	var u models.User
	proj := options.FindOne().SetProjection(bson.M{
		"_id":       1,
		"full_name": 1,
		"email":     1,
		"status":    1,
	})
	if err := f.users.FindOne(ctx, bson.M{"_id": oid}, proj).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}

	if normalize.Status(u.Status) == "disabled" {
		return nil, nil
	}

	return &auth.SessionUser{
		ID:    u.ID.Hex(),
		Name:  u.FullName,
		Email: u.Email,
	}, nil
}
