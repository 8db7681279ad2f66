// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Event categories
const (
	CategoryAuth      = "auth"
	CategoryWorkspace = "workspace"
	CategoryProject   = "project"
	CategoryInvite    = "invite"
	CategorySecurity  = "security"
)

// Auth event types
const (
	EventLoginSuccess             = "login_success"
	EventLoginFailedUserNotFound  = "login_failed_user_not_found"
	EventLoginFailedWrongPassword = "login_failed_wrong_password"
	EventLoginFailedUserDisabled  = "login_failed_user_disabled"
	EventLogout                   = "logout"
	EventUserRegistered           = "user_registered"
)

// Workspace event types
const (
	EventWorkspaceCreated      = "workspace_created"
	EventWorkspaceUpdated      = "workspace_updated"
	EventWorkspaceDeleted      = "workspace_deleted"
	EventWorkspaceRestored     = "workspace_restored"
	EventWorkspaceOwnerChanged = "workspace_owner_changed"
	EventMemberRoleChanged     = "member_role_changed"
	EventMemberRemoved         = "member_removed"
)

// Project event types
const (
	EventProjectCreated       = "project_created"
	EventProjectUpdated       = "project_updated"
	EventProjectDeleted       = "project_deleted"
	EventProjectRestored      = "project_restored"
	EventProjectRoleCreated   = "project_role_created"
	EventProjectRoleUpdated   = "project_role_updated"
	EventProjectRoleDeleted   = "project_role_deleted"
	EventProjectMemberChanged = "project_member_changed"
	EventProjectMemberRemoved = "project_member_removed"
)

// Invitation event types
const (
	EventInviteSent      = "invite_sent"
	EventInviteResent    = "invite_resent"
	EventInviteAccepted  = "invite_accepted"
	EventInviteRejected  = "invite_rejected"
	EventInviteCancelled = "invite_cancelled"
	EventInviteDenied    = "invite_denied" // acceptance refused (expired, already member, hierarchy)
)

// Event represents an audit event.
type Event struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	EventUID  string             `bson:"event_uid"` // globally unique, survives export
	Timestamp time.Time          `bson:"timestamp"`

	// Event classification
	Category  string `bson:"category"`
	EventType string `bson:"event_type"`

	// Where
	WorkspaceID *primitive.ObjectID `bson:"workspace_id,omitempty"`
	ProjectID   *primitive.ObjectID `bson:"project_id,omitempty"`

	// Who
	UserID  *primitive.ObjectID `bson:"user_id,omitempty"`  // affected user
	ActorID *primitive.ObjectID `bson:"actor_id,omitempty"` // who performed the action

	// Context
	IP        string `bson:"ip"`
	UserAgent string `bson:"user_agent,omitempty"`

	// Outcome
	Success       bool   `bson:"success"`
	FailureReason string `bson:"failure_reason,omitempty"`

	// Additional details (varies by event type)
	Details map[string]string `bson:"details,omitempty"`
}

// QueryFilter defines filters for querying audit events.
type QueryFilter struct {
	WorkspaceID *primitive.ObjectID
	ProjectID   *primitive.ObjectID
	UserID      *primitive.ObjectID
	Category    string
	EventType   string
	StartTime   *time.Time
	EndTime     *time.Time
	Limit       int64
	Offset      int64
}

func (f QueryFilter) query() bson.M {
	query := bson.M{}
	if f.WorkspaceID != nil {
		query["workspace_id"] = f.WorkspaceID
	}
	if f.ProjectID != nil {
		query["project_id"] = f.ProjectID
	}
	if f.UserID != nil {
		query["user_id"] = f.UserID
	}
	if f.Category != "" {
		query["category"] = f.Category
	}
	if f.EventType != "" {
		query["event_type"] = f.EventType
	}
	if f.StartTime != nil || f.EndTime != nil {
		timeQuery := bson.M{}
		if f.StartTime != nil {
			timeQuery["$gte"] = *f.StartTime
		}
		if f.EndTime != nil {
			timeQuery["$lte"] = *f.EndTime
		}
		query["timestamp"] = timeQuery
	}
	return query
}

// Store manages audit event records.
type Store struct {
	c *mongo.Collection
}

// New creates a new audit Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("audit_events")}
}

// EnsureIndexes creates necessary indexes for efficient querying.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		// Query by time range (most recent first)
		{
			Keys: bson.D{{Key: "timestamp", Value: -1}},
		},
		// Query by workspace
		{
			Keys: bson.D{
				{Key: "workspace_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		// Query by user
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		// Query by event type
		{
			Keys: bson.D{
				{Key: "category", Value: 1},
				{Key: "event_type", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Log records an audit event.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, event)
	return err
}

// Query retrieves audit events matching the given filter.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit).
		SetSkip(filter.Offset)

	cursor, err := s.c.Find(ctx, filter.query(), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CountByFilter returns the count of events matching the filter.
func (s *Store) CountByFilter(ctx context.Context, filter QueryFilter) (int64, error) {
	return s.c.CountDocuments(ctx, filter.query())
}

// GetByUser retrieves recent audit events for a specific user.
func (s *Store) GetByUser(ctx context.Context, userID primitive.ObjectID, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{
		UserID: &userID,
		Limit:  limit,
	})
}

// GetByWorkspace retrieves recent audit events in a workspace.
func (s *Store) GetByWorkspace(ctx context.Context, workspaceID primitive.ObjectID, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{
		WorkspaceID: &workspaceID,
		Limit:       limit,
	})
}

// GetRecent retrieves the most recent audit events.
func (s *Store) GetRecent(ctx context.Context, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{
		Limit: limit,
	})
}

// GetFailedLogins retrieves recent failed login attempts.
func (s *Store) GetFailedLogins(ctx context.Context, since time.Time, limit int64) ([]Event, error) {
	query := bson.M{
		"category": CategoryAuth,
		"success":  false,
		"event_type": bson.M{
			"$in": []string{
				EventLoginFailedUserNotFound,
				EventLoginFailedWrongPassword,
				EventLoginFailedUserDisabled,
			},
		},
		"timestamp": bson.M{"$gte": since},
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)

	cursor, err := s.c.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}
