package invitations_test

import (
	"net/http"
	"testing"

	featinvites "github.com/taskhubapp/taskhub/internal/app/features/invitations"
	"github.com/taskhubapp/taskhub/internal/app/invites"
	"github.com/taskhubapp/taskhub/internal/app/policy/authzpolicy"
	"github.com/taskhubapp/taskhub/internal/app/policy/hierarchypolicy"
	"github.com/taskhubapp/taskhub/internal/app/policy/rolepolicy"
	invitationstore "github.com/taskhubapp/taskhub/internal/app/store/invitations"
	projectmemberstore "github.com/taskhubapp/taskhub/internal/app/store/projectmembers"
	projectrolestore "github.com/taskhubapp/taskhub/internal/app/store/projectroles"
	projectstore "github.com/taskhubapp/taskhub/internal/app/store/projects"
	userstore "github.com/taskhubapp/taskhub/internal/app/store/users"
	wsmemberstore "github.com/taskhubapp/taskhub/internal/app/store/workspacemembers"
	workspacestore "github.com/taskhubapp/taskhub/internal/app/store/workspaces"
	"github.com/taskhubapp/taskhub/internal/app/system/auditlog"
	"github.com/taskhubapp/taskhub/internal/app/system/txn"
	"github.com/taskhubapp/taskhub/internal/domain/models"
	"github.com/taskhubapp/taskhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T, db *mongo.Database, opts ...invites.Option) *featinvites.Handler {
	t.Helper()

	users := userstore.New(db)
	wsStore := workspacestore.New(db)
	memberStore := wsmemberstore.New(db)
	projStore := projectstore.New(db)
	roleStore := projectrolestore.New(db)
	pmStore := projectmemberstore.New(db)

	resolver := rolepolicy.New(wsStore, memberStore, projStore, pmStore, roleStore)
	engine := authzpolicy.New(resolver)
	guard := hierarchypolicy.New(resolver)

	ledger := invites.New(
		invitationstore.New(db), users, wsStore, projStore, roleStore,
		memberStore, pmStore, guard, txn.NewRunner(db.Client()),
		nil, zap.NewNop(), opts...,
	)
	audit := auditlog.New(nil, zap.NewNop(), auditlog.Config{})

	return featinvites.NewHandler(ledger, users, engine, audit, zap.NewNop())
}

func asUser(t *testing.T, u models.User) testutil.TestUser {
	t.Helper()
	return testutil.TestUser{ID: u.ID, Name: u.FullName, Email: u.Email}
}

// tokenFor digs the opaque token out of the store; responses never carry it.
func tokenFor(t *testing.T, db *mongo.Database, scopeType string, scopeID primitive.ObjectID, email string) string {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	list, err := invitationstore.New(db).ListByScope(ctx, scopeType, scopeID)
	if err != nil {
		t.Fatalf("ListByScope failed: %v", err)
	}
	for _, inv := range list {
		if inv.Email == email {
			return inv.Token
		}
	}
	t.Fatalf("no invitation for %s in scope", email)
	return ""
}

func TestInviteWorkspace_AndAccept(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db)
	f := testutil.NewFixtures(t, db)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := f.CreateUser(ctx, "Owner", "owner@example.com")
	invitee := f.CreateUser(ctx, "Invitee", "invitee@example.com")
	ws := f.CreateWorkspace(ctx, "Team", models.WorkspaceTypeGroup, owner.ID)

	send := testutil.NewAuthenticatedRequest(t, "POST", "/invitations/workspace",
		map[string]string{
			"workspace_id": ws.ID.Hex(),
			"email":        "invitee@example.com",
			"role":         "member",
			"message":      "join us",
		}, asUser(t, owner))
	recSend := testutil.NewRecorder(t)
	h.HandleInviteWorkspace(recSend.ResponseRecorder, send)
	recSend.AssertStatus(http.StatusCreated)
	recSend.AssertContains("pending")

	token := tokenFor(t, db, models.InviteScopeWorkspace, ws.ID, "invitee@example.com")

	accept := testutil.NewAuthenticatedRequest(t, "POST", "/invitations/accept",
		map[string]string{"token": token}, asUser(t, invitee))
	recAcc := testutil.NewRecorder(t)
	h.HandleAccept(recAcc.ResponseRecorder, accept)
	recAcc.AssertStatus(http.StatusOK)
	recAcc.AssertContains("accepted")

	m, err := wsmemberstore.New(db).GetActive(ctx, ws.ID, invitee.ID)
	if err != nil || m == nil {
		t.Fatalf("expected workspace membership after accept, got %+v (err %v)", m, err)
	}
	if m.Role != models.WorkspaceRoleMember {
		t.Errorf("expected member role, got %q", m.Role)
	}
}

func TestAccept_SecondAttemptConflicts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db)
	f := testutil.NewFixtures(t, db)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := f.CreateUser(ctx, "Owner", "owner@example.com")
	invitee := f.CreateUser(ctx, "Invitee", "invitee@example.com")
	ws := f.CreateWorkspace(ctx, "Team", models.WorkspaceTypeGroup, owner.ID)

	send := testutil.NewAuthenticatedRequest(t, "POST", "/invitations/workspace",
		map[string]string{"workspace_id": ws.ID.Hex(), "email": "invitee@example.com", "role": "member"},
		asUser(t, owner))
	recSend := testutil.NewRecorder(t)
	h.HandleInviteWorkspace(recSend.ResponseRecorder, send)
	recSend.AssertStatus(http.StatusCreated)

	token := tokenFor(t, db, models.InviteScopeWorkspace, ws.ID, "invitee@example.com")

	first := testutil.NewAuthenticatedRequest(t, "POST", "/invitations/accept",
		map[string]string{"token": token}, asUser(t, invitee))
	rec1 := testutil.NewRecorder(t)
	h.HandleAccept(rec1.ResponseRecorder, first)
	rec1.AssertStatus(http.StatusOK)

	second := testutil.NewAuthenticatedRequest(t, "POST", "/invitations/accept",
		map[string]string{"token": token}, asUser(t, invitee))
	rec2 := testutil.NewRecorder(t)
	h.HandleAccept(rec2.ResponseRecorder, second)
	rec2.AssertStatus(http.StatusConflict)
	rec2.AssertContains("already_processed")
}

func TestAccept_WrongInviteeForbidden(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db)
	f := testutil.NewFixtures(t, db)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := f.CreateUser(ctx, "Owner", "owner@example.com")
	f.CreateUser(ctx, "Invitee", "invitee@example.com")
	interloper := f.CreateUser(ctx, "Interloper", "other@example.com")
	ws := f.CreateWorkspace(ctx, "Team", models.WorkspaceTypeGroup, owner.ID)

	send := testutil.NewAuthenticatedRequest(t, "POST", "/invitations/workspace",
		map[string]string{"workspace_id": ws.ID.Hex(), "email": "invitee@example.com", "role": "member"},
		asUser(t, owner))
	recSend := testutil.NewRecorder(t)
	h.HandleInviteWorkspace(recSend.ResponseRecorder, send)
	recSend.AssertStatus(http.StatusCreated)

	token := tokenFor(t, db, models.InviteScopeWorkspace, ws.ID, "invitee@example.com")

	accept := testutil.NewAuthenticatedRequest(t, "POST", "/invitations/accept",
		map[string]string{"token": token}, asUser(t, interloper))
	rec := testutil.NewRecorder(t)
	h.HandleAccept(rec.ResponseRecorder, accept)
	rec.AssertStatus(http.StatusForbidden)
}

func TestAccept_ExpiredGone(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := f.CreateUser(ctx, "Owner", "owner@example.com")
	invitee := f.CreateUser(ctx, "Invitee", "invitee@example.com")
	ws := f.CreateWorkspace(ctx, "Team", models.WorkspaceTypeGroup, owner.ID)

	// A zero TTL expires the invitation the moment it is written.
	h := newTestHandler(t, db, invites.WithTTL(0))

	send := testutil.NewAuthenticatedRequest(t, "POST", "/invitations/workspace",
		map[string]string{"workspace_id": ws.ID.Hex(), "email": "invitee@example.com", "role": "member"},
		asUser(t, owner))
	recSend := testutil.NewRecorder(t)
	h.HandleInviteWorkspace(recSend.ResponseRecorder, send)
	recSend.AssertStatus(http.StatusCreated)

	token := tokenFor(t, db, models.InviteScopeWorkspace, ws.ID, "invitee@example.com")

	accept := testutil.NewAuthenticatedRequest(t, "POST", "/invitations/accept",
		map[string]string{"token": token}, asUser(t, invitee))
	rec := testutil.NewRecorder(t)
	h.HandleAccept(rec.ResponseRecorder, accept)
	rec.AssertStatus(http.StatusGone)
}

func TestInviteWorkspace_MemberForbidden(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db)
	f := testutil.NewFixtures(t, db)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := f.CreateUser(ctx, "Owner", "owner@example.com")
	member := f.CreateUser(ctx, "Member", "member@example.com")
	ws := f.CreateWorkspace(ctx, "Team", models.WorkspaceTypeGroup, owner.ID)
	f.AddWorkspaceMember(ctx, ws.ID, member.ID, models.WorkspaceRoleMember)

	send := testutil.NewAuthenticatedRequest(t, "POST", "/invitations/workspace",
		map[string]string{"workspace_id": ws.ID.Hex(), "email": "new@example.com", "role": "member"},
		asUser(t, member))
	rec := testutil.NewRecorder(t)
	h.HandleInviteWorkspace(rec.ResponseRecorder, send)
	rec.AssertStatus(http.StatusForbidden)
}

func TestInviteProject_UnregisteredEmailRejected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db)
	f := testutil.NewFixtures(t, db)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := f.CreateUser(ctx, "Owner", "owner@example.com")
	ws := f.CreateWorkspace(ctx, "Team", models.WorkspaceTypeGroup, owner.ID)
	p := f.CreateProject(ctx, "Build", ws.ID, owner.ID)
	viewer := f.CreateProjectRole(ctx, p.ID, "Viewer", []string{models.PermTaskView})

	send := testutil.NewAuthenticatedRequest(t, "POST", "/invitations/project",
		map[string]string{
			"project_id": p.ID.Hex(),
			"email":      "nobody@example.com",
			"role_id":    viewer.ID.Hex(),
		}, asUser(t, owner))
	rec := testutil.NewRecorder(t)
	h.HandleInviteProject(rec.ResponseRecorder, send)
	rec.AssertStatus(http.StatusUnprocessableEntity)
	rec.AssertContains("user_not_registered")
}

func TestInviteProject_AcceptGrantsRole(t *testing.T) {
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

	send := testutil.NewAuthenticatedRequest(t, "POST", "/invitations/project",
		map[string]string{
			"project_id": p.ID.Hex(),
			"email":      "member@example.com",
			"role_id":    viewer.ID.Hex(),
		}, asUser(t, owner))
	recSend := testutil.NewRecorder(t)
	h.HandleInviteProject(recSend.ResponseRecorder, send)
	recSend.AssertStatus(http.StatusCreated)

	token := tokenFor(t, db, models.InviteScopeProject, p.ID, "member@example.com")

	accept := testutil.NewAuthenticatedRequest(t, "POST", "/invitations/accept",
		map[string]string{"token": token}, asUser(t, member))
	recAcc := testutil.NewRecorder(t)
	h.HandleAccept(recAcc.ResponseRecorder, accept)
	recAcc.AssertStatus(http.StatusOK)

	pm, err := projectmemberstore.New(db).GetActive(ctx, p.ID, member.ID)
	if err != nil || pm == nil {
		t.Fatalf("expected project membership after accept, got %+v (err %v)", pm, err)
	}
	if pm.RoleID != viewer.ID {
		t.Error("expected the invited role on the membership")
	}
}

func TestAcceptProject_AfterWorkspaceRemovalRejected(t *testing.T) {
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

	send := testutil.NewAuthenticatedRequest(t, "POST", "/invitations/project",
		map[string]string{
			"project_id": p.ID.Hex(),
			"email":      "member@example.com",
			"role_id":    viewer.ID.Hex(),
		}, asUser(t, owner))
	recSend := testutil.NewRecorder(t)
	h.HandleInviteProject(recSend.ResponseRecorder, send)
	recSend.AssertStatus(http.StatusCreated)

	// The containment guard re-runs at accept time.
	if _, err := wsmemberstore.New(db).Remove(ctx, ws.ID, member.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	token := tokenFor(t, db, models.InviteScopeProject, p.ID, "member@example.com")

	accept := testutil.NewAuthenticatedRequest(t, "POST", "/invitations/accept",
		map[string]string{"token": token}, asUser(t, member))
	rec := testutil.NewRecorder(t)
	h.HandleAccept(rec.ResponseRecorder, accept)
	rec.AssertStatus(http.StatusUnprocessableEntity)

	if pm, _ := projectmemberstore.New(db).GetActive(ctx, p.ID, member.ID); pm != nil {
		t.Error("expected no project membership to be written")
	}
}

func TestPending_ListsOnlyLiveInvitations(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db)
	f := testutil.NewFixtures(t, db)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := f.CreateUser(ctx, "Owner", "owner@example.com")
	invitee := f.CreateUser(ctx, "Invitee", "invitee@example.com")
	ws := f.CreateWorkspace(ctx, "Team", models.WorkspaceTypeGroup, owner.ID)

	send := testutil.NewAuthenticatedRequest(t, "POST", "/invitations/workspace",
		map[string]string{"workspace_id": ws.ID.Hex(), "email": "invitee@example.com", "role": "admin"},
		asUser(t, owner))
	recSend := testutil.NewRecorder(t)
	h.HandleInviteWorkspace(recSend.ResponseRecorder, send)
	recSend.AssertStatus(http.StatusCreated)

	pending := testutil.NewAuthenticatedRequest(t, "GET", "/invitations/pending", nil, asUser(t, invitee))
	rec := testutil.NewRecorder(t)
	h.HandlePending(rec.ResponseRecorder, pending)
	rec.AssertStatus(http.StatusOK)

	var resp []struct {
		ScopeType string `json:"scope_type"`
		Role      string `json:"role"`
	}
	rec.DecodeJSON(&resp)
	if len(resp) != 1 {
		t.Fatalf("expected 1 pending invitation, got %d", len(resp))
	}
	if resp[0].ScopeType != models.InviteScopeWorkspace || resp[0].Role != "admin" {
		t.Errorf("unexpected invitation %+v", resp[0])
	}
}

func TestHistory_RequiresInvitePrivilege(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db)
	f := testutil.NewFixtures(t, db)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := f.CreateUser(ctx, "Owner", "owner@example.com")
	member := f.CreateUser(ctx, "Member", "member@example.com")
	ws := f.CreateWorkspace(ctx, "Team", models.WorkspaceTypeGroup, owner.ID)
	f.AddWorkspaceMember(ctx, ws.ID, member.ID, models.WorkspaceRoleMember)

	req := testutil.NewAuthenticatedRequest(t, "GET",
		"/invitations/history?scope_type=workspace&scope_id="+ws.ID.Hex(), nil, asUser(t, member))
	rec := testutil.NewRecorder(t)
	h.HandleHistory(rec.ResponseRecorder, req)
	rec.AssertStatus(http.StatusForbidden)
}

func TestReject_LeavesNoMembership(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db)
	f := testutil.NewFixtures(t, db)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := f.CreateUser(ctx, "Owner", "owner@example.com")
	invitee := f.CreateUser(ctx, "Invitee", "invitee@example.com")
	ws := f.CreateWorkspace(ctx, "Team", models.WorkspaceTypeGroup, owner.ID)

	send := testutil.NewAuthenticatedRequest(t, "POST", "/invitations/workspace",
		map[string]string{"workspace_id": ws.ID.Hex(), "email": "invitee@example.com", "role": "member"},
		asUser(t, owner))
	recSend := testutil.NewRecorder(t)
	h.HandleInviteWorkspace(recSend.ResponseRecorder, send)
	recSend.AssertStatus(http.StatusCreated)

	token := tokenFor(t, db, models.InviteScopeWorkspace, ws.ID, "invitee@example.com")

	reject := testutil.NewAuthenticatedRequest(t, "POST", "/invitations/reject",
		map[string]string{"token": token}, asUser(t, invitee))
	rec := testutil.NewRecorder(t)
	h.HandleReject(rec.ResponseRecorder, reject)
	rec.AssertStatus(http.StatusOK)
	rec.AssertContains("rejected")

	if m, _ := wsmemberstore.New(db).GetActive(ctx, ws.ID, invitee.ID); m != nil {
		t.Error("expected no membership after reject")
	}
}

// invitationIDFor looks up the invitation document so tests can hit the
// /{id}/cancel route.
func invitationIDFor(t *testing.T, db *mongo.Database, scopeType string, scopeID primitive.ObjectID, email string) primitive.ObjectID {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	list, err := invitationstore.New(db).ListByScope(ctx, scopeType, scopeID)
	if err != nil {
		t.Fatalf("ListByScope failed: %v", err)
	}
	for _, inv := range list {
		if inv.Email == email {
			return inv.ID
		}
	}
	t.Fatalf("no invitation for %s in scope", email)
	return primitive.NilObjectID
}

func TestCancel_InviterWithdraws(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db)
	f := testutil.NewFixtures(t, db)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := f.CreateUser(ctx, "Owner", "owner@example.com")
	invitee := f.CreateUser(ctx, "Invitee", "invitee@example.com")
	ws := f.CreateWorkspace(ctx, "Team", models.WorkspaceTypeGroup, owner.ID)

	send := testutil.NewAuthenticatedRequest(t, "POST", "/invitations/workspace",
		map[string]string{"workspace_id": ws.ID.Hex(), "email": "invitee@example.com", "role": "member"},
		asUser(t, owner))
	recSend := testutil.NewRecorder(t)
	h.HandleInviteWorkspace(recSend.ResponseRecorder, send)
	recSend.AssertStatus(http.StatusCreated)

	invID := invitationIDFor(t, db, models.InviteScopeWorkspace, ws.ID, "invitee@example.com")
	token := tokenFor(t, db, models.InviteScopeWorkspace, ws.ID, "invitee@example.com")

	req := testutil.NewAuthenticatedRequest(t, "POST", "/invitations/"+invID.Hex()+"/cancel",
		nil, asUser(t, owner))
	req = testutil.WithChiURLParam(req, "id", invID.Hex())
	rec := testutil.NewRecorder(t)
	h.HandleCancel(rec.ResponseRecorder, req)
	rec.AssertStatus(http.StatusOK)
	rec.AssertContains("rejected")

	// The withdrawn token is dead for the invitee.
	accept := testutil.NewAuthenticatedRequest(t, "POST", "/invitations/accept",
		map[string]string{"token": token}, asUser(t, invitee))
	recAcc := testutil.NewRecorder(t)
	h.HandleAccept(recAcc.ResponseRecorder, accept)
	recAcc.AssertStatus(http.StatusConflict)
}

func TestCancel_AdminMayWithdraw(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db)
	f := testutil.NewFixtures(t, db)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := f.CreateUser(ctx, "Owner", "owner@example.com")
	admin := f.CreateUser(ctx, "Admin", "admin@example.com")
	f.CreateUser(ctx, "Invitee", "invitee@example.com")
	ws := f.CreateWorkspace(ctx, "Team", models.WorkspaceTypeGroup, owner.ID)
	f.AddWorkspaceMember(ctx, ws.ID, admin.ID, models.WorkspaceRoleAdmin)

	send := testutil.NewAuthenticatedRequest(t, "POST", "/invitations/workspace",
		map[string]string{"workspace_id": ws.ID.Hex(), "email": "invitee@example.com", "role": "member"},
		asUser(t, owner))
	recSend := testutil.NewRecorder(t)
	h.HandleInviteWorkspace(recSend.ResponseRecorder, send)
	recSend.AssertStatus(http.StatusCreated)

	invID := invitationIDFor(t, db, models.InviteScopeWorkspace, ws.ID, "invitee@example.com")

	req := testutil.NewAuthenticatedRequest(t, "POST", "/invitations/"+invID.Hex()+"/cancel",
		nil, asUser(t, admin))
	req = testutil.WithChiURLParam(req, "id", invID.Hex())
	rec := testutil.NewRecorder(t)
	h.HandleCancel(rec.ResponseRecorder, req)
	rec.AssertStatus(http.StatusOK)
	rec.AssertContains("rejected")
}

func TestCancel_PlainMemberForbidden(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db)
	f := testutil.NewFixtures(t, db)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := f.CreateUser(ctx, "Owner", "owner@example.com")
	member := f.CreateUser(ctx, "Member", "member@example.com")
	f.CreateUser(ctx, "Invitee", "invitee@example.com")
	ws := f.CreateWorkspace(ctx, "Team", models.WorkspaceTypeGroup, owner.ID)
	f.AddWorkspaceMember(ctx, ws.ID, member.ID, models.WorkspaceRoleMember)

	send := testutil.NewAuthenticatedRequest(t, "POST", "/invitations/workspace",
		map[string]string{"workspace_id": ws.ID.Hex(), "email": "invitee@example.com", "role": "member"},
		asUser(t, owner))
	recSend := testutil.NewRecorder(t)
	h.HandleInviteWorkspace(recSend.ResponseRecorder, send)
	recSend.AssertStatus(http.StatusCreated)

	invID := invitationIDFor(t, db, models.InviteScopeWorkspace, ws.ID, "invitee@example.com")

	req := testutil.NewAuthenticatedRequest(t, "POST", "/invitations/"+invID.Hex()+"/cancel",
		nil, asUser(t, member))
	req = testutil.WithChiURLParam(req, "id", invID.Hex())
	rec := testutil.NewRecorder(t)
	h.HandleCancel(rec.ResponseRecorder, req)
	rec.AssertStatus(http.StatusForbidden)
}

func TestCancel_AfterAcceptInvalidState(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db)
	f := testutil.NewFixtures(t, db)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := f.CreateUser(ctx, "Owner", "owner@example.com")
	invitee := f.CreateUser(ctx, "Invitee", "invitee@example.com")
	ws := f.CreateWorkspace(ctx, "Team", models.WorkspaceTypeGroup, owner.ID)

	send := testutil.NewAuthenticatedRequest(t, "POST", "/invitations/workspace",
		map[string]string{"workspace_id": ws.ID.Hex(), "email": "invitee@example.com", "role": "member"},
		asUser(t, owner))
	recSend := testutil.NewRecorder(t)
	h.HandleInviteWorkspace(recSend.ResponseRecorder, send)
	recSend.AssertStatus(http.StatusCreated)

	invID := invitationIDFor(t, db, models.InviteScopeWorkspace, ws.ID, "invitee@example.com")
	token := tokenFor(t, db, models.InviteScopeWorkspace, ws.ID, "invitee@example.com")

	accept := testutil.NewAuthenticatedRequest(t, "POST", "/invitations/accept",
		map[string]string{"token": token}, asUser(t, invitee))
	recAcc := testutil.NewRecorder(t)
	h.HandleAccept(recAcc.ResponseRecorder, accept)
	recAcc.AssertStatus(http.StatusOK)

	req := testutil.NewAuthenticatedRequest(t, "POST", "/invitations/"+invID.Hex()+"/cancel",
		nil, asUser(t, owner))
	req = testutil.WithChiURLParam(req, "id", invID.Hex())
	rec := testutil.NewRecorder(t)
	h.HandleCancel(rec.ResponseRecorder, req)
	rec.AssertStatus(http.StatusUnprocessableEntity)
	rec.AssertContains("invalid_state")
}

func TestCancel_UnknownIDNotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db)
	f := testutil.NewFixtures(t, db)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := f.CreateUser(ctx, "Owner", "owner@example.com")

	bogus := primitive.NewObjectID().Hex()
	req := testutil.NewAuthenticatedRequest(t, "POST", "/invitations/"+bogus+"/cancel",
		nil, asUser(t, owner))
	req = testutil.WithChiURLParam(req, "id", bogus)
	rec := testutil.NewRecorder(t)
	h.HandleCancel(rec.ResponseRecorder, req)
	rec.AssertStatus(http.StatusNotFound)
}

func TestScopePending_ExcludesExpired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := f.CreateUser(ctx, "Owner", "owner@example.com")
	ws := f.CreateWorkspace(ctx, "Team", models.WorkspaceTypeGroup, owner.ID)

	// One invitation written already expired, one live.
	hExpired := newTestHandler(t, db, invites.WithTTL(0))
	send := testutil.NewAuthenticatedRequest(t, "POST", "/invitations/workspace",
		map[string]string{"workspace_id": ws.ID.Hex(), "email": "stale@example.com", "role": "member"},
		asUser(t, owner))
	rec := testutil.NewRecorder(t)
	hExpired.HandleInviteWorkspace(rec.ResponseRecorder, send)
	rec.AssertStatus(http.StatusCreated)

	h := newTestHandler(t, db)
	send = testutil.NewAuthenticatedRequest(t, "POST", "/invitations/workspace",
		map[string]string{"workspace_id": ws.ID.Hex(), "email": "live@example.com", "role": "member"},
		asUser(t, owner))
	rec = testutil.NewRecorder(t)
	h.HandleInviteWorkspace(rec.ResponseRecorder, send)
	rec.AssertStatus(http.StatusCreated)

	req := testutil.NewAuthenticatedRequest(t, "GET",
		"/invitations/scope/pending?scope_type=workspace&scope_id="+ws.ID.Hex(), nil, asUser(t, owner))
	recList := testutil.NewRecorder(t)
	h.HandleScopePending(recList.ResponseRecorder, req)
	recList.AssertStatus(http.StatusOK)

	var resp []struct {
		Email  string `json:"email"`
		Status string `json:"status"`
	}
	recList.DecodeJSON(&resp)
	if len(resp) != 1 {
		t.Fatalf("expected 1 outstanding invitation, got %d", len(resp))
	}
	if resp[0].Email != "live@example.com" || resp[0].Status != models.InviteStatusPending {
		t.Errorf("unexpected invitation %+v", resp[0])
	}
}

func TestScopePending_RequiresInvitePrivilege(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db)
	f := testutil.NewFixtures(t, db)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := f.CreateUser(ctx, "Owner", "owner@example.com")
	member := f.CreateUser(ctx, "Member", "member@example.com")
	ws := f.CreateWorkspace(ctx, "Team", models.WorkspaceTypeGroup, owner.ID)
	f.AddWorkspaceMember(ctx, ws.ID, member.ID, models.WorkspaceRoleMember)

	req := testutil.NewAuthenticatedRequest(t, "GET",
		"/invitations/scope/pending?scope_type=workspace&scope_id="+ws.ID.Hex(), nil, asUser(t, member))
	rec := testutil.NewRecorder(t)
	h.HandleScopePending(rec.ResponseRecorder, req)
	rec.AssertStatus(http.StatusForbidden)
}
