// Package memory is an in-memory implementation of the store surfaces the
// policy and invitation packages consume. It backs their tests, which need
// deterministic state and clock control rather than a live database.
//
// Concurrency model: each operation takes the database mutex; Run serializes
// whole transactions on a second mutex. That is weaker than the mongo
// runner's snapshot isolation but is enough for tests, which drive races
// deterministically rather than in parallel.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/taskhubapp/taskhub/internal/app/store/projectmembers"
	"github.com/taskhubapp/taskhub/internal/app/store/workspacemembers"
	"github.com/taskhubapp/taskhub/internal/app/system/normalize"
	"github.com/taskhubapp/taskhub/internal/app/system/tokens"
	"github.com/taskhubapp/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memberKey struct {
	scope primitive.ObjectID
	user  primitive.ObjectID
}

// DB holds every collection behind one mutex.
type DB struct {
	mu sync.Mutex

	users          map[primitive.ObjectID]models.User
	workspaces     map[primitive.ObjectID]models.Workspace
	wsMembers      map[memberKey]models.WorkspaceMember
	projects       map[primitive.ObjectID]models.Project
	projectRoles   map[primitive.ObjectID]models.ProjectRole
	projectMembers map[memberKey]models.ProjectMember
	invitations    map[primitive.ObjectID]models.Invitation

	txnMu sync.Mutex
}

func New() *DB {
	return &DB{
		users:          make(map[primitive.ObjectID]models.User),
		workspaces:     make(map[primitive.ObjectID]models.Workspace),
		wsMembers:      make(map[memberKey]models.WorkspaceMember),
		projects:       make(map[primitive.ObjectID]models.Project),
		projectRoles:   make(map[primitive.ObjectID]models.ProjectRole),
		projectMembers: make(map[memberKey]models.ProjectMember),
		invitations:    make(map[primitive.ObjectID]models.Invitation),
	}
}

// Run serializes fn against other transactions.
func (db *DB) Run(_ context.Context, fn func(ctx context.Context) error) error {
	db.txnMu.Lock()
	defer db.txnMu.Unlock()
	return fn(context.Background())
}

// --- users ---

// SeedUser inserts a user and returns it with an assigned ID.
func (db *DB) SeedUser(fullName, email string) models.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	u := models.User{
		ID:         primitive.NewObjectID(),
		FullName:   fullName,
		FullNameCI: text.Fold(fullName),
		Email:      normalize.Email(email),
		Status:     "active",
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	db.users[u.ID] = u
	return u
}

func (db *DB) FindByEmail(_ context.Context, email string) (*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	email = normalize.Email(email)
	for _, u := range db.users {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, nil
}

// --- workspaces ---

// SeedWorkspace inserts a workspace and returns it with an assigned ID.
func (db *DB) SeedWorkspace(name, wsType string, owner primitive.ObjectID) models.Workspace {
	db.mu.Lock()
	defer db.mu.Unlock()
	ws := models.Workspace{
		ID:          primitive.NewObjectID(),
		Name:        name,
		NameCI:      text.Fold(name),
		Type:        wsType,
		OwnerUserID: owner,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	db.workspaces[ws.ID] = ws
	return ws
}

func (db *DB) FindActiveByID(_ context.Context, id primitive.ObjectID) (*models.Workspace, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	ws, ok := db.workspaces[id]
	if !ok || ws.DeletedAt != nil {
		return nil, nil
	}
	out := ws
	return &out, nil
}

// SetWorkspaceOwner rewrites a workspace's owner.
func (db *DB) SetWorkspaceOwner(id, owner primitive.ObjectID) {
	db.mu.Lock()
	defer db.mu.Unlock()
	ws := db.workspaces[id]
	ws.OwnerUserID = owner
	db.workspaces[id] = ws
}

// SoftDeleteWorkspace marks a workspace deleted at the given instant.
func (db *DB) SoftDeleteWorkspace(id primitive.ObjectID, at time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()
	ws := db.workspaces[id]
	at = at.UTC()
	ws.DeletedAt = &at
	db.workspaces[id] = ws
}

// RestoreWorkspace clears a workspace's deletion mark.
func (db *DB) RestoreWorkspace(id primitive.ObjectID) {
	db.mu.Lock()
	defer db.mu.Unlock()
	ws := db.workspaces[id]
	ws.DeletedAt = nil
	db.workspaces[id] = ws
}

// --- workspace members ---

// WorkspaceMembers returns the workspace roster facade.
func (db *DB) WorkspaceMembers() *WorkspaceMemberStore { return &WorkspaceMemberStore{db: db} }

// WorkspaceMemberStore adapts DB to the workspace roster surface.
type WorkspaceMemberStore struct{ db *DB }

func (s *WorkspaceMemberStore) GetActive(_ context.Context, workspaceID, userID primitive.ObjectID) (*models.WorkspaceMember, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	m, ok := s.db.wsMembers[memberKey{workspaceID, userID}]
	if !ok || m.DeletedAt != nil {
		return nil, nil
	}
	out := m
	return &out, nil
}

func (s *WorkspaceMemberStore) Add(_ context.Context, m models.WorkspaceMember) (models.WorkspaceMember, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	key := memberKey{m.WorkspaceID, m.UserID}
	if _, exists := s.db.wsMembers[key]; exists {
		return models.WorkspaceMember{}, workspacemembers.ErrDuplicateMembership
	}
	now := time.Now().UTC()
	m.ID = primitive.NewObjectID()
	m.Role = normalize.Role(m.Role)
	m.DeletedAt = nil
	m.CreatedAt = now
	m.UpdatedAt = now
	s.db.wsMembers[key] = m
	return m, nil
}

func (s *WorkspaceMemberStore) Reactivate(_ context.Context, workspaceID, userID primitive.ObjectID, role string) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	key := memberKey{workspaceID, userID}
	m, ok := s.db.wsMembers[key]
	if !ok || m.DeletedAt == nil {
		return 0, nil
	}
	m.DeletedAt = nil
	m.Role = normalize.Role(role)
	m.UpdatedAt = time.Now().UTC()
	s.db.wsMembers[key] = m
	return 1, nil
}

// Remove soft-deletes a membership.
func (s *WorkspaceMemberStore) Remove(_ context.Context, workspaceID, userID primitive.ObjectID) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	key := memberKey{workspaceID, userID}
	m, ok := s.db.wsMembers[key]
	if !ok || m.DeletedAt != nil {
		return 0, nil
	}
	now := time.Now().UTC()
	m.DeletedAt = &now
	m.UpdatedAt = now
	s.db.wsMembers[key] = m
	return 1, nil
}

// --- projects ---

// SeedProject inserts a project and returns it with an assigned ID.
func (db *DB) SeedProject(name string, workspaceID, creator primitive.ObjectID) models.Project {
	db.mu.Lock()
	defer db.mu.Unlock()
	p := models.Project{
		ID:            primitive.NewObjectID(),
		WorkspaceID:   workspaceID,
		Name:          name,
		NameCI:        text.Fold(name),
		CreatorUserID: creator,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	db.projects[p.ID] = p
	return p
}

// Projects returns the project store facade.
func (db *DB) Projects() *ProjectStore { return &ProjectStore{db: db} }

// ProjectStore adapts DB to the project lookup surface.
type ProjectStore struct{ db *DB }

func (s *ProjectStore) FindActiveByID(_ context.Context, id primitive.ObjectID) (*models.Project, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.projects[id]
	if !ok || p.DeletedAt != nil {
		return nil, nil
	}
	out := p
	return &out, nil
}

// SoftDeleteProject marks a project deleted.
func (db *DB) SoftDeleteProject(id primitive.ObjectID, at time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()
	p := db.projects[id]
	at = at.UTC()
	p.DeletedAt = &at
	db.projects[id] = p
}

// --- project roles ---

// SeedRole inserts a role, computing the administrative flag the way the
// real store does.
func (db *DB) SeedRole(projectID primitive.ObjectID, name string, system bool, permissions []string) models.ProjectRole {
	db.mu.Lock()
	defer db.mu.Unlock()
	r := models.ProjectRole{
		ID:             primitive.NewObjectID(),
		ProjectID:      projectID,
		Name:           name,
		NameCI:         text.Fold(name),
		Permissions:    permissions,
		System:         system,
		Administrative: models.ComputeAdministrative(system, permissions),
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	db.projectRoles[r.ID] = r
	return r
}

// DeleteRole removes a role definition outright.
func (db *DB) DeleteRole(id primitive.ObjectID) {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.projectRoles, id)
}

// Roles returns the role store facade.
func (db *DB) Roles() *ProjectRoleStore { return &ProjectRoleStore{db: db} }

// ProjectRoleStore adapts DB to the role lookup surface.
type ProjectRoleStore struct{ db *DB }

func (s *ProjectRoleStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.ProjectRole, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	r, ok := s.db.projectRoles[id]
	if !ok {
		return nil, nil
	}
	out := r
	return &out, nil
}

// --- project members ---

// ProjectMembers returns the project roster facade.
func (db *DB) ProjectMembers() *ProjectMemberStore { return &ProjectMemberStore{db: db} }

// ProjectMemberStore adapts DB to the project roster surface.
type ProjectMemberStore struct{ db *DB }

func (s *ProjectMemberStore) GetActive(_ context.Context, projectID, userID primitive.ObjectID) (*models.ProjectMember, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	m, ok := s.db.projectMembers[memberKey{projectID, userID}]
	if !ok || m.DeletedAt != nil {
		return nil, nil
	}
	out := m
	return &out, nil
}

func (s *ProjectMemberStore) Add(_ context.Context, m models.ProjectMember) (models.ProjectMember, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	key := memberKey{m.ProjectID, m.UserID}
	if _, exists := s.db.projectMembers[key]; exists {
		return models.ProjectMember{}, projectmembers.ErrDuplicateMembership
	}
	now := time.Now().UTC()
	m.ID = primitive.NewObjectID()
	m.DeletedAt = nil
	m.CreatedAt = now
	m.UpdatedAt = now
	s.db.projectMembers[key] = m
	return m, nil
}

func (s *ProjectMemberStore) Reactivate(_ context.Context, projectID, userID, roleID primitive.ObjectID) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	key := memberKey{projectID, userID}
	m, ok := s.db.projectMembers[key]
	if !ok || m.DeletedAt == nil {
		return 0, nil
	}
	m.DeletedAt = nil
	m.RoleID = roleID
	m.UpdatedAt = time.Now().UTC()
	s.db.projectMembers[key] = m
	return 1, nil
}

// Remove soft-deletes a project membership.
func (s *ProjectMemberStore) Remove(_ context.Context, projectID, userID primitive.ObjectID) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	key := memberKey{projectID, userID}
	m, ok := s.db.projectMembers[key]
	if !ok || m.DeletedAt != nil {
		return 0, nil
	}
	now := time.Now().UTC()
	m.DeletedAt = &now
	m.UpdatedAt = now
	s.db.projectMembers[key] = m
	return 1, nil
}

// --- invitations ---

// Invitations returns the invitation store facade.
func (db *DB) Invitations() *InvitationStore { return &InvitationStore{db: db} }

// InvitationStore adapts DB to the invitation ledger surface.
type InvitationStore struct{ db *DB }

func (s *InvitationStore) UpsertPending(_ context.Context, inv models.Invitation, ttl time.Duration, now time.Time) (models.Invitation, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	now = now.UTC()
	inv.ScopeType = normalize.ScopeType(inv.ScopeType)
	inv.Email = normalize.Email(inv.Email)
	inv.Token = tokens.New()
	inv.Status = models.InviteStatusPending
	inv.ExpiresAt = now.Add(ttl)
	inv.AcceptedAt = nil
	inv.UpdatedAt = now

	for id, cur := range s.db.invitations {
		if cur.Status == models.InviteStatusPending &&
			cur.ScopeType == inv.ScopeType && cur.ScopeID == inv.ScopeID &&
			strings.EqualFold(cur.Email, inv.Email) {
			inv.ID = id
			inv.CreatedAt = cur.CreatedAt
			s.db.invitations[id] = inv
			return inv, nil
		}
	}

	inv.ID = primitive.NewObjectID()
	inv.CreatedAt = now
	s.db.invitations[inv.ID] = inv
	return inv, nil
}

func (s *InvitationStore) FindByToken(_ context.Context, token string) (*models.Invitation, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, inv := range s.db.invitations {
		if inv.Token == token {
			out := inv
			return &out, nil
		}
	}
	return nil, nil
}

func (s *InvitationStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Invitation, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	inv, ok := s.db.invitations[id]
	if !ok {
		return nil, nil
	}
	out := inv
	return &out, nil
}

func (s *InvitationStore) MarkAccepted(_ context.Context, id primitive.ObjectID, now time.Time) (bool, error) {
	return s.mark(id, models.InviteStatusAccepted, now)
}

func (s *InvitationStore) MarkRejected(_ context.Context, id primitive.ObjectID, now time.Time) (bool, error) {
	return s.mark(id, models.InviteStatusRejected, now)
}

func (s *InvitationStore) mark(id primitive.ObjectID, to string, now time.Time) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	inv, ok := s.db.invitations[id]
	if !ok || inv.Status != models.InviteStatusPending || !now.Before(inv.ExpiresAt) {
		return false, nil
	}
	now = now.UTC()
	inv.Status = to
	if to == models.InviteStatusAccepted {
		inv.AcceptedAt = &now
	}
	inv.UpdatedAt = now
	s.db.invitations[id] = inv
	return true, nil
}

func (s *InvitationStore) ListPendingForEmail(_ context.Context, email string, now time.Time) ([]models.Invitation, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	email = normalize.Email(email)
	var out []models.Invitation
	for _, inv := range s.db.invitations {
		if inv.Email == email && inv.Status == models.InviteStatusPending && now.Before(inv.ExpiresAt) {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (s *InvitationStore) ListPendingForScope(_ context.Context, scopeType string, scopeID primitive.ObjectID, now time.Time) ([]models.Invitation, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	scopeType = normalize.ScopeType(scopeType)
	var out []models.Invitation
	for _, inv := range s.db.invitations {
		if inv.ScopeType == scopeType && inv.ScopeID == scopeID &&
			inv.Status == models.InviteStatusPending && now.Before(inv.ExpiresAt) {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (s *InvitationStore) ListByScope(_ context.Context, scopeType string, scopeID primitive.ObjectID) ([]models.Invitation, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	scopeType = normalize.ScopeType(scopeType)
	var out []models.Invitation
	for _, inv := range s.db.invitations {
		if inv.ScopeType == scopeType && inv.ScopeID == scopeID {
			out = append(out, inv)
		}
	}
	return out, nil
}
