package projects_test

import (
	"net/http"
	"testing"

	"github.com/taskhubapp/taskhub/internal/app/features/projects"
	"github.com/taskhubapp/taskhub/internal/app/policy/authzpolicy"
	"github.com/taskhubapp/taskhub/internal/app/policy/hierarchypolicy"
	"github.com/taskhubapp/taskhub/internal/app/policy/rolepolicy"
	projectmemberstore "github.com/taskhubapp/taskhub/internal/app/store/projectmembers"
	projectrolestore "github.com/taskhubapp/taskhub/internal/app/store/projectroles"
	projectstore "github.com/taskhubapp/taskhub/internal/app/store/projects"
	userstore "github.com/taskhubapp/taskhub/internal/app/store/users"
	wsmemberstore "github.com/taskhubapp/taskhub/internal/app/store/workspacemembers"
	workspacestore "github.com/taskhubapp/taskhub/internal/app/store/workspaces"
	"github.com/taskhubapp/taskhub/internal/app/system/auditlog"
	"github.com/taskhubapp/taskhub/internal/app/system/indexes"
	"github.com/taskhubapp/taskhub/internal/domain/models"
	"github.com/taskhubapp/taskhub/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T, db *mongo.Database) *projects.Handler {
	t.Helper()

	projStore := projectstore.New(db)
	roleStore := projectrolestore.New(db)
	pmStore := projectmemberstore.New(db)

	resolver := rolepolicy.New(
		workspacestore.New(db), wsmemberstore.New(db), projStore, pmStore, roleStore)
	engine := authzpolicy.New(resolver)
	guard := hierarchypolicy.New(resolver)
	audit := auditlog.New(nil, zap.NewNop(), auditlog.Config{})

	return projects.NewHandler(
		db.Client(), projStore, roleStore, pmStore, userstore.New(db),
		engine, guard, audit, zap.NewNop(),
	)
}

func asUser(t *testing.T, u models.User) testutil.TestUser {
	t.Helper()
	return testutil.TestUser{ID: u.ID, Name: u.FullName, Email: u.Email}
}

func TestHandleCreate_SeedsAdminRoleAndCreatorMembership(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db)
	f := testutil.NewFixtures(t, db)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := f.CreateUser(ctx, "Owner", "owner@example.com")
	member := f.CreateUser(ctx, "Member", "member@example.com")
	ws := f.CreateWorkspace(ctx, "Team", models.WorkspaceTypeGroup, owner.ID)
	f.AddWorkspaceMember(ctx, ws.ID, member.ID, models.WorkspaceRoleMember)

	req := testutil.NewAuthenticatedRequest(t, "POST", "/projects",
		map[string]string{"workspace_id": ws.ID.Hex(), "name": "Build"}, asUser(t, member))
	rec := testutil.NewRecorder(t)

	h.HandleCreate(rec.ResponseRecorder, req)

	rec.AssertStatus(http.StatusCreated)

	list, err := projectstore.New(db).ListActiveByWorkspace(ctx, ws.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected 1 project, got %d (err %v)", len(list), err)
	}
	p := list[0]

	admin, err := projectrolestore.New(db).GetSystemAdmin(ctx, p.ID)
	if err != nil {
		t.Fatalf("expected system Admin role: %v", err)
	}
	if !admin.Administrative {
		t.Error("expected the Admin role to be administrative")
	}
	pm, err := projectmemberstore.New(db).GetActive(ctx, p.ID, member.ID)
	if err != nil || pm == nil {
		t.Fatalf("expected creator membership, got %+v (err %v)", pm, err)
	}
	if pm.RoleID != admin.ID {
		t.Error("expected the creator to hold the Admin role")
	}
}

func TestHandleCreate_NonMemberGetsNotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db)
	f := testutil.NewFixtures(t, db)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := f.CreateUser(ctx, "Owner", "owner@example.com")
	outsider := f.CreateUser(ctx, "Outsider", "out@example.com")
	ws := f.CreateWorkspace(ctx, "Team", models.WorkspaceTypeGroup, owner.ID)

	req := testutil.NewAuthenticatedRequest(t, "POST", "/projects",
		map[string]string{"workspace_id": ws.ID.Hex(), "name": "Build"}, asUser(t, outsider))
	rec := testutil.NewRecorder(t)

	h.HandleCreate(rec.ResponseRecorder, req)

	rec.AssertStatus(http.StatusNotFound)
}

func TestHandleUpdate_RequiresAdministrative(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db)
	f := testutil.NewFixtures(t, db)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := f.CreateUser(ctx, "Owner", "owner@example.com")
	member := f.CreateUser(ctx, "Member", "member@example.com")
	ws := f.CreateWorkspace(ctx, "Team", models.WorkspaceTypeGroup, owner.ID)
	f.AddWorkspaceMember(ctx, ws.ID, member.ID, models.WorkspaceRoleMember)
	p := f.CreateProject(ctx, "Build", ws.ID, owner.ID)
	viewer := f.CreateProjectRole(ctx, p.ID, "Viewer", []string{models.PermTaskView})
	f.AddProjectMember(ctx, ws.ID, p.ID, member.ID, viewer.ID)

	req := testutil.NewAuthenticatedRequest(t, "PATCH", "/projects/"+p.ID.Hex(),
		map[string]string{"name": "Renamed"}, asUser(t, member))
	req = testutil.WithChiURLParam(req, "id", p.ID.Hex())
	rec := testutil.NewRecorder(t)

	h.HandleUpdate(rec.ResponseRecorder, req)

	rec.AssertStatus(http.StatusForbidden)
}

func TestHandleGet_StaleProjectRowGrantsNothing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db)
	f := testutil.NewFixtures(t, db)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := f.CreateUser(ctx, "Owner", "owner@example.com")
	member := f.CreateUser(ctx, "Member", "member@example.com")
	ws := f.CreateWorkspace(ctx, "Team", models.WorkspaceTypeGroup, owner.ID)
	f.AddWorkspaceMember(ctx, ws.ID, member.ID, models.WorkspaceRoleMember)
	p := f.CreateProject(ctx, "Build", ws.ID, owner.ID)
	viewer := f.CreateProjectRole(ctx, p.ID, "Viewer", []string{models.PermTaskView})
	f.AddProjectMember(ctx, ws.ID, p.ID, member.ID, viewer.ID)

	// Removing the workspace membership must sever project access even
	// though the project roster row is still live. The refusal reads as a
	// missing project, not a forbidden one.
	if _, err := wsmemberstore.New(db).Remove(ctx, ws.ID, member.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	req := testutil.NewAuthenticatedRequest(t, "GET", "/projects/"+p.ID.Hex(), nil, asUser(t, member))
	req = testutil.WithChiURLParam(req, "id", p.ID.Hex())
	rec := testutil.NewRecorder(t)

	h.HandleGet(rec.ResponseRecorder, req)

	rec.AssertStatus(http.StatusNotFound)
}

func TestHandleRestore_CreatorAllowed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db)
	f := testutil.NewFixtures(t, db)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := f.CreateUser(ctx, "Owner", "owner@example.com")
	creator := f.CreateUser(ctx, "Creator", "creator@example.com")
	ws := f.CreateWorkspace(ctx, "Team", models.WorkspaceTypeGroup, owner.ID)
	f.AddWorkspaceMember(ctx, ws.ID, creator.ID, models.WorkspaceRoleMember)
	p := f.CreateProject(ctx, "Build", ws.ID, creator.ID)

	del := testutil.NewAuthenticatedRequest(t, "DELETE", "/projects/"+p.ID.Hex(), nil, asUser(t, creator))
	del = testutil.WithChiURLParam(del, "id", p.ID.Hex())
	recDel := testutil.NewRecorder(t)
	h.HandleDelete(recDel.ResponseRecorder, del)
	recDel.AssertStatus(http.StatusNoContent)

	res := testutil.NewAuthenticatedRequest(t, "POST", "/projects/"+p.ID.Hex()+"/restore", nil, asUser(t, creator))
	res = testutil.WithChiURLParam(res, "id", p.ID.Hex())
	recRes := testutil.NewRecorder(t)
	h.HandleRestore(recRes.ResponseRecorder, res)
	recRes.AssertStatus(http.StatusOK)

	if got, err := projectstore.New(db).FindActiveByID(ctx, p.ID); err != nil || got == nil {
		t.Errorf("expected project live after restore, got %+v (err %v)", got, err)
	}
}

func TestHandleCreateRole_ProjectManageMakesAdministrative(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db)
	f := testutil.NewFixtures(t, db)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := f.CreateUser(ctx, "Owner", "owner@example.com")
	ws := f.CreateWorkspace(ctx, "Team", models.WorkspaceTypeGroup, owner.ID)
	p := f.CreateProject(ctx, "Build", ws.ID, owner.ID)

	req := testutil.NewAuthenticatedRequest(t, "POST", "/projects/"+p.ID.Hex()+"/roles",
		map[string]any{"name": "Lead", "permissions": []string{models.PermProjectManage}}, asUser(t, owner))
	req = testutil.WithChiURLParam(req, "id", p.ID.Hex())
	rec := testutil.NewRecorder(t)

	h.HandleCreateRole(rec.ResponseRecorder, req)

	rec.AssertStatus(http.StatusCreated)

	var resp struct {
		Administrative bool `json:"administrative"`
	}
	rec.DecodeJSON(&resp)
	if !resp.Administrative {
		t.Error("expected a role granting project:manage to be administrative")
	}
}

func TestHandleCreateRole_DuplicateNameConflicts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db)
	f := testutil.NewFixtures(t, db)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	owner := f.CreateUser(ctx, "Owner", "owner@example.com")
	ws := f.CreateWorkspace(ctx, "Team", models.WorkspaceTypeGroup, owner.ID)
	p := f.CreateProject(ctx, "Build", ws.ID, owner.ID)

	// The system role is named Admin; folded comparison catches "admin".
	req := testutil.NewAuthenticatedRequest(t, "POST", "/projects/"+p.ID.Hex()+"/roles",
		map[string]any{"name": "admin", "permissions": []string{}}, asUser(t, owner))
	req = testutil.WithChiURLParam(req, "id", p.ID.Hex())
	rec := testutil.NewRecorder(t)

	h.HandleCreateRole(rec.ResponseRecorder, req)

	rec.AssertStatus(http.StatusConflict)
}

func TestHandleUpdateRole_SystemRoleRejected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db)
	f := testutil.NewFixtures(t, db)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := f.CreateUser(ctx, "Owner", "owner@example.com")
	ws := f.CreateWorkspace(ctx, "Team", models.WorkspaceTypeGroup, owner.ID)
	p := f.CreateProject(ctx, "Build", ws.ID, owner.ID)

	admin, err := projectrolestore.New(db).GetSystemAdmin(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetSystemAdmin failed: %v", err)
	}

	req := testutil.NewAuthenticatedRequest(t, "PATCH",
		"/projects/"+p.ID.Hex()+"/roles/"+admin.ID.Hex(),
		map[string]any{"name": "Superadmin", "permissions": []string{}}, asUser(t, owner))
	req = testutil.WithChiURLParam(req, "id", p.ID.Hex())
	req = testutil.WithChiURLParam(req, "roleID", admin.ID.Hex())
	rec := testutil.NewRecorder(t)

	h.HandleUpdateRole(rec.ResponseRecorder, req)

	rec.AssertStatus(http.StatusUnprocessableEntity)
}

func TestHandleDeleteRole_HeldRoleConflicts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db)
	f := testutil.NewFixtures(t, db)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := f.CreateUser(ctx, "Owner", "owner@example.com")
	member := f.CreateUser(ctx, "Member", "member@example.com")
	ws := f.CreateWorkspace(ctx, "Team", models.WorkspaceTypeGroup, owner.ID)
	f.AddWorkspaceMember(ctx, ws.ID, member.ID, models.WorkspaceRoleMember)
	p := f.CreateProject(ctx, "Build", ws.ID, owner.ID)
	viewer := f.CreateProjectRole(ctx, p.ID, "Viewer", []string{models.PermTaskView})
	f.AddProjectMember(ctx, ws.ID, p.ID, member.ID, viewer.ID)

	req := testutil.NewAuthenticatedRequest(t, "DELETE",
		"/projects/"+p.ID.Hex()+"/roles/"+viewer.ID.Hex(), nil, asUser(t, owner))
	req = testutil.WithChiURLParam(req, "id", p.ID.Hex())
	req = testutil.WithChiURLParam(req, "roleID", viewer.ID.Hex())
	rec := testutil.NewRecorder(t)

	h.HandleDeleteRole(rec.ResponseRecorder, req)

	rec.AssertStatus(http.StatusConflict)
	rec.AssertContains("role_in_use")
}

func TestHandleAddMember_OutsiderViolatesHierarchy(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db)
	f := testutil.NewFixtures(t, db)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := f.CreateUser(ctx, "Owner", "owner@example.com")
	outsider := f.CreateUser(ctx, "Outsider", "out@example.com")
	ws := f.CreateWorkspace(ctx, "Team", models.WorkspaceTypeGroup, owner.ID)
	p := f.CreateProject(ctx, "Build", ws.ID, owner.ID)
	viewer := f.CreateProjectRole(ctx, p.ID, "Viewer", []string{models.PermTaskView})

	req := testutil.NewAuthenticatedRequest(t, "POST", "/projects/"+p.ID.Hex()+"/members",
		map[string]string{"user_id": outsider.ID.Hex(), "role_id": viewer.ID.Hex()}, asUser(t, owner))
	req = testutil.WithChiURLParam(req, "id", p.ID.Hex())
	rec := testutil.NewRecorder(t)

	h.HandleAddMember(rec.ResponseRecorder, req)

	rec.AssertStatus(http.StatusUnprocessableEntity)
}

func TestHandleAddMember_WorkspaceMemberSucceeds(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db)
	f := testutil.NewFixtures(t, db)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := f.CreateUser(ctx, "Owner", "owner@example.com")
	member := f.CreateUser(ctx, "Member", "member@example.com")
	ws := f.CreateWorkspace(ctx, "Team", models.WorkspaceTypeGroup, owner.ID)
	f.AddWorkspaceMember(ctx, ws.ID, member.ID, models.WorkspaceRoleMember)
	p := f.CreateProject(ctx, "Build", ws.ID, owner.ID)
	viewer := f.CreateProjectRole(ctx, p.ID, "Viewer", []string{models.PermTaskView})

	req := testutil.NewAuthenticatedRequest(t, "POST", "/projects/"+p.ID.Hex()+"/members",
		map[string]string{"user_id": member.ID.Hex(), "role_id": viewer.ID.Hex()}, asUser(t, owner))
	req = testutil.WithChiURLParam(req, "id", p.ID.Hex())
	rec := testutil.NewRecorder(t)

	h.HandleAddMember(rec.ResponseRecorder, req)

	rec.AssertStatus(http.StatusCreated)

	pm, err := projectmemberstore.New(db).GetActive(ctx, p.ID, member.ID)
	if err != nil || pm == nil {
		t.Fatalf("expected project membership, got %+v (err %v)", pm, err)
	}
	if pm.RoleID != viewer.ID {
		t.Error("expected the assigned role on the membership")
	}
}

func TestHandleRemoveMember_SelfRemovalAllowed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db)
	f := testutil.NewFixtures(t, db)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := f.CreateUser(ctx, "Owner", "owner@example.com")
	member := f.CreateUser(ctx, "Member", "member@example.com")
	ws := f.CreateWorkspace(ctx, "Team", models.WorkspaceTypeGroup, owner.ID)
	f.AddWorkspaceMember(ctx, ws.ID, member.ID, models.WorkspaceRoleMember)
	p := f.CreateProject(ctx, "Build", ws.ID, owner.ID)
	viewer := f.CreateProjectRole(ctx, p.ID, "Viewer", []string{models.PermTaskView})
	f.AddProjectMember(ctx, ws.ID, p.ID, member.ID, viewer.ID)

	req := testutil.NewAuthenticatedRequest(t, "DELETE",
		"/projects/"+p.ID.Hex()+"/members/"+member.ID.Hex(), nil, asUser(t, member))
	req = testutil.WithChiURLParam(req, "id", p.ID.Hex())
	req = testutil.WithChiURLParam(req, "userID", member.ID.Hex())
	rec := testutil.NewRecorder(t)

	h.HandleRemoveMember(rec.ResponseRecorder, req)

	rec.AssertStatus(http.StatusNoContent)

	if pm, _ := projectmemberstore.New(db).GetActive(ctx, p.ID, member.ID); pm != nil {
		t.Error("expected membership removed")
	}
}
