package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"github.com/taskhubapp/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser creates an active test user.
func (f *Fixtures) CreateUser(ctx context.Context, fullName, email string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:         primitive.NewObjectID(),
		FullName:   fullName,
		FullNameCI: text.Fold(fullName),
		Email:      text.Fold(email),
		AuthMethod: models.AuthMethodInternal,
		Status:     "active",
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateDisabledUser creates a test user with disabled status.
func (f *Fixtures) CreateDisabledUser(ctx context.Context, fullName, email string) models.User {
	f.t.Helper()

	user := f.CreateUser(ctx, fullName, email)
	if _, err := f.db.Collection("users").UpdateByID(ctx, user.ID,
		bson.M{"$set": bson.M{"status": "disabled"}}); err != nil {
		f.t.Fatalf("failed to disable test user: %v", err)
	}
	user.Status = "disabled"
	return user
}

// CreateWorkspace creates a test workspace owned by the given user.
// The owner gets a roster row with the owner role, mirroring what the
// workspaces feature does on create.
func (f *Fixtures) CreateWorkspace(ctx context.Context, name, wsType string, ownerID primitive.ObjectID) models.Workspace {
	f.t.Helper()

	now := time.Now().UTC()
	ws := models.Workspace{
		ID:          primitive.NewObjectID(),
		Name:        name,
		NameCI:      text.Fold(name),
		Type:        wsType,
		OwnerUserID: ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := f.db.Collection("workspaces").InsertOne(ctx, ws); err != nil {
		f.t.Fatalf("failed to create test workspace: %v", err)
	}

	member := models.WorkspaceMember{
		ID:          primitive.NewObjectID(),
		WorkspaceID: ws.ID,
		UserID:      ownerID,
		Role:        models.WorkspaceRoleOwner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := f.db.Collection("workspace_members").InsertOne(ctx, member); err != nil {
		f.t.Fatalf("failed to create owner membership: %v", err)
	}
	return ws
}

// AddWorkspaceMember adds a user to a workspace roster with the given role.
func (f *Fixtures) AddWorkspaceMember(ctx context.Context, workspaceID, userID primitive.ObjectID, role string) models.WorkspaceMember {
	f.t.Helper()

	now := time.Now().UTC()
	m := models.WorkspaceMember{
		ID:          primitive.NewObjectID(),
		WorkspaceID: workspaceID,
		UserID:      userID,
		Role:        role,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := f.db.Collection("workspace_members").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("failed to create workspace membership: %v", err)
	}
	return m
}

// CreateProject creates a test project with its system Admin role.
func (f *Fixtures) CreateProject(ctx context.Context, name string, workspaceID, creatorID primitive.ObjectID) models.Project {
	f.t.Helper()

	now := time.Now().UTC()
	p := models.Project{
		ID:            primitive.NewObjectID(),
		WorkspaceID:   workspaceID,
		Name:          name,
		NameCI:        text.Fold(name),
		CreatorUserID: creatorID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := f.db.Collection("projects").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("failed to create test project: %v", err)
	}

	admin := models.ProjectRole{
		ID:             primitive.NewObjectID(),
		ProjectID:      p.ID,
		Name:           models.SystemAdminRoleName,
		NameCI:         text.Fold(models.SystemAdminRoleName),
		System:         true,
		Administrative: true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := f.db.Collection("project_roles").InsertOne(ctx, admin); err != nil {
		f.t.Fatalf("failed to create system admin role: %v", err)
	}
	return p
}

// CreateProjectRole creates a custom role on a project.
func (f *Fixtures) CreateProjectRole(ctx context.Context, projectID primitive.ObjectID, name string, permissions []string) models.ProjectRole {
	f.t.Helper()

	now := time.Now().UTC()
	role := models.ProjectRole{
		ID:             primitive.NewObjectID(),
		ProjectID:      projectID,
		Name:           name,
		NameCI:         text.Fold(name),
		Permissions:    permissions,
		Administrative: models.ComputeAdministrative(false, permissions),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := f.db.Collection("project_roles").InsertOne(ctx, role); err != nil {
		f.t.Fatalf("failed to create project role: %v", err)
	}
	return role
}

// AddProjectMember assigns a user to a project with the given role.
func (f *Fixtures) AddProjectMember(ctx context.Context, workspaceID, projectID, userID, roleID primitive.ObjectID) models.ProjectMember {
	f.t.Helper()

	now := time.Now().UTC()
	m := models.ProjectMember{
		ID:          primitive.NewObjectID(),
		WorkspaceID: workspaceID,
		ProjectID:   projectID,
		UserID:      userID,
		RoleID:      roleID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := f.db.Collection("project_members").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("failed to create project membership: %v", err)
	}
	return m
}
