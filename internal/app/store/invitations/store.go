// internal/app/store/invitations/store.go

// Package invitations persists workspace and project invitations.
//
// Lifecycle: a document is born pending and moves exactly once to accepted
// or rejected via a conditional update, so two racing accepts cannot both
// win. Expiry is lazy — there is no stored "expired" status; every query
// that wants live invitations filters on expires_at, and an expired pending
// document simply becomes unselectable.
package invitations

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/taskhubapp/taskhub/internal/app/system/normalize"
	"github.com/taskhubapp/taskhub/internal/app/system/tokens"
	"github.com/taskhubapp/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotFound is returned when no invitation matches the lookup.
	ErrNotFound  = errors.New("invitation not found")
	errBadScope  = errors.New(`scope_type must be "workspace"|"project"`)
	errBadStatus = errors.New("invitation is not pending")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("invitations")}
}

// UpsertPending creates a pending invitation, or refreshes the existing
// pending one for the same (scope, email). Refreshing rotates the token and
// extends expiry, and recycles a pending document whose expiry already
// passed — the partial unique index on pending rows guarantees there is at
// most one to recycle.
func (s *Store) UpsertPending(ctx context.Context, inv models.Invitation, ttl time.Duration, now time.Time) (models.Invitation, error) {
	inv.ScopeType = normalize.ScopeType(inv.ScopeType)
	switch inv.ScopeType {
	case models.InviteScopeWorkspace, models.InviteScopeProject:
	default:
		return models.Invitation{}, errBadScope
	}
	inv.Email = normalize.Email(inv.Email)
	if inv.Email == "" {
		return models.Invitation{}, errors.New("invitation requires an email")
	}

	now = now.UTC()
	inv.Token = tokens.New()
	inv.Status = models.InviteStatusPending
	inv.ExpiresAt = now.Add(ttl)
	inv.AcceptedAt = nil
	inv.UpdatedAt = now

	filter := bson.M{
		"scope_type": inv.ScopeType,
		"scope_id":   inv.ScopeID,
		"email":      inv.Email,
		"status":     models.InviteStatusPending,
	}
	set := bson.M{
		"invited_by_user_id": inv.InvitedByUserID,
		"role_id":            inv.RoleID,
		"role":               inv.Role,
		"message":            inv.Message,
		"token":              inv.Token,
		"expires_at":         inv.ExpiresAt,
		"updated_at":         inv.UpdatedAt,
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	res := s.c.FindOneAndUpdate(ctx, filter, bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"created_at": now},
	}, opts)

	var out models.Invitation
	if err := res.Decode(&out); err != nil {
		if wafflemongo.IsDup(err) {
			// Lost a race with a concurrent upsert for the same (scope, email).
			// The pending row exists now; refresh it.
			err = s.c.FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
				options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&out)
		}
		if err != nil {
			return models.Invitation{}, err
		}
	}
	return out, nil
}

// GetByToken looks up an invitation by its opaque token.
func (s *Store) GetByToken(ctx context.Context, token string) (models.Invitation, error) {
	var inv models.Invitation
	err := s.c.FindOne(ctx, bson.M{"token": token}).Decode(&inv)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Invitation{}, ErrNotFound
		}
		return models.Invitation{}, err
	}
	return inv, nil
}

// GetByID looks up an invitation by ID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Invitation, error) {
	var inv models.Invitation
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&inv)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Invitation{}, ErrNotFound
		}
		return models.Invitation{}, err
	}
	return inv, nil
}

// FindByToken looks up an invitation by token, or nil when none exists.
func (s *Store) FindByToken(ctx context.Context, token string) (*models.Invitation, error) {
	var inv models.Invitation
	err := s.c.FindOne(ctx, bson.M{"token": token}).Decode(&inv)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &inv, nil
}

// FindByID looks up an invitation by ID, or nil when none exists.
func (s *Store) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Invitation, error) {
	var inv models.Invitation
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&inv)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &inv, nil
}

// MarkAccepted flips a pending, unexpired invitation to accepted. Returns
// false when no such document matched — the invitation was already
// processed, expired, or never existed; the caller re-reads to tell which.
func (s *Store) MarkAccepted(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error) {
	now = now.UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":        id,
			"status":     models.InviteStatusPending,
			"expires_at": bson.M{"$gt": now},
		},
		bson.M{"$set": bson.M{
			"status":      models.InviteStatusAccepted,
			"accepted_at": now,
			"updated_at":  now,
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// MarkRejected flips a pending, unexpired invitation to rejected. Same
// matching contract as MarkAccepted.
func (s *Store) MarkRejected(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error) {
	now = now.UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":        id,
			"status":     models.InviteStatusPending,
			"expires_at": bson.M{"$gt": now},
		},
		bson.M{"$set": bson.M{
			"status":     models.InviteStatusRejected,
			"updated_at": now,
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// ListPendingForEmail returns the live (pending, unexpired) invitations
// addressed to an email, newest first.
func (s *Store) ListPendingForEmail(ctx context.Context, email string, now time.Time) ([]models.Invitation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{
		"email":      normalize.Email(email),
		"status":     models.InviteStatusPending,
		"expires_at": bson.M{"$gt": now.UTC()},
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var invs []models.Invitation
	if err := cur.All(ctx, &invs); err != nil {
		return nil, err
	}
	return invs, nil
}

// ListPendingForScope returns the live (pending, unexpired) invitations
// for a scope, newest first.
func (s *Store) ListPendingForScope(ctx context.Context, scopeType string, scopeID primitive.ObjectID, now time.Time) ([]models.Invitation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{
		"scope_type": normalize.ScopeType(scopeType),
		"scope_id":   scopeID,
		"status":     models.InviteStatusPending,
		"expires_at": bson.M{"$gt": now.UTC()},
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var invs []models.Invitation
	if err := cur.All(ctx, &invs); err != nil {
		return nil, err
	}
	return invs, nil
}

// ListByScope returns every invitation for a scope, newest first, terminal
// and expired rows included. Admin views use this as the invitation history.
func (s *Store) ListByScope(ctx context.Context, scopeType string, scopeID primitive.ObjectID) ([]models.Invitation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{
		"scope_type": normalize.ScopeType(scopeType),
		"scope_id":   scopeID,
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var invs []models.Invitation
	if err := cur.All(ctx, &invs); err != nil {
		return nil, err
	}
	return invs, nil
}

// GetPendingByScopeEmail returns the live pending invitation for
// (scope, email), or ErrNotFound.
func (s *Store) GetPendingByScopeEmail(ctx context.Context, scopeType string, scopeID primitive.ObjectID, email string, now time.Time) (models.Invitation, error) {
	var inv models.Invitation
	err := s.c.FindOne(ctx, bson.M{
		"scope_type": normalize.ScopeType(scopeType),
		"scope_id":   scopeID,
		"email":      normalize.Email(email),
		"status":     models.InviteStatusPending,
		"expires_at": bson.M{"$gt": now.UTC()},
	}).Decode(&inv)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Invitation{}, ErrNotFound
		}
		return models.Invitation{}, err
	}
	return inv, nil
}
