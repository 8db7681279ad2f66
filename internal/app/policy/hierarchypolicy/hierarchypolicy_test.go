package hierarchypolicy_test

import (
	"context"
	"testing"
	"time"

	"github.com/taskhubapp/taskhub/internal/app/policy/hierarchypolicy"
	"github.com/taskhubapp/taskhub/internal/app/policy/rolepolicy"
	"github.com/taskhubapp/taskhub/internal/app/store/memory"
	"github.com/taskhubapp/taskhub/internal/domain/models"
)

func newGuard(db *memory.DB) *hierarchypolicy.Guard {
	resolver := rolepolicy.New(db, db.WorkspaceMembers(), db.Projects(), db.ProjectMembers(), db.Roles())
	return hierarchypolicy.New(resolver)
}

func TestCheckProjectMembership_MemberPasses(t *testing.T) {
	db := memory.New()
	owner := db.SeedUser("Owner", "owner@example.com")
	member := db.SeedUser("Member", "member@example.com")
	ws := db.SeedWorkspace("Acme", models.WorkspaceTypeGroup, owner.ID)

	ctx := context.Background()
	if _, err := db.WorkspaceMembers().Add(ctx, models.WorkspaceMember{
		WorkspaceID: ws.ID, UserID: member.ID, Role: models.WorkspaceRoleMember,
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := newGuard(db).CheckProjectMembership(ctx, ws.ID, member.ID); err != nil {
		t.Errorf("member blocked: %v", err)
	}
}

func TestCheckProjectMembership_OwnerPassesWithoutRosterRow(t *testing.T) {
	db := memory.New()
	owner := db.SeedUser("Owner", "owner@example.com")
	ws := db.SeedWorkspace("Acme", models.WorkspaceTypeGroup, owner.ID)

	if err := newGuard(db).CheckProjectMembership(context.Background(), ws.ID, owner.ID); err != nil {
		t.Errorf("owner blocked: %v", err)
	}
}

func TestCheckProjectMembership_OutsiderViolates(t *testing.T) {
	db := memory.New()
	owner := db.SeedUser("Owner", "owner@example.com")
	outsider := db.SeedUser("Outsider", "outsider@example.com")
	ws := db.SeedWorkspace("Acme", models.WorkspaceTypeGroup, owner.ID)

	err := newGuard(db).CheckProjectMembership(context.Background(), ws.ID, outsider.ID)
	if err != hierarchypolicy.ErrViolation {
		t.Errorf("got %v, want ErrViolation", err)
	}
}

func TestCheckProjectMembership_RemovedMemberViolates(t *testing.T) {
	db := memory.New()
	owner := db.SeedUser("Owner", "owner@example.com")
	member := db.SeedUser("Member", "member@example.com")
	ws := db.SeedWorkspace("Acme", models.WorkspaceTypeGroup, owner.ID)

	ctx := context.Background()
	if _, err := db.WorkspaceMembers().Add(ctx, models.WorkspaceMember{
		WorkspaceID: ws.ID, UserID: member.ID, Role: models.WorkspaceRoleMember,
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := db.WorkspaceMembers().Remove(ctx, ws.ID, member.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	err := newGuard(db).CheckProjectMembership(ctx, ws.ID, member.ID)
	if err != hierarchypolicy.ErrViolation {
		t.Errorf("got %v, want ErrViolation", err)
	}
}

func TestCheckProjectMembership_DeletedWorkspaceViolates(t *testing.T) {
	db := memory.New()
	owner := db.SeedUser("Owner", "owner@example.com")
	ws := db.SeedWorkspace("Acme", models.WorkspaceTypeGroup, owner.ID)
	db.SoftDeleteWorkspace(ws.ID, time.Now())

	err := newGuard(db).CheckProjectMembership(context.Background(), ws.ID, owner.ID)
	if err != hierarchypolicy.ErrViolation {
		t.Errorf("got %v, want ErrViolation", err)
	}
}
