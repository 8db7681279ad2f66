// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/taskhubapp/taskhub/internal/app/store/audit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
// Each category takes one of: "all" (MongoDB + zap), "db" (MongoDB only),
// "log" (zap only), "off" (disabled).
type Config struct {
	// Auth controls logging for authentication events (login, logout, registration).
	Auth string
	// Workspace controls logging for workspace lifecycle and membership events.
	Workspace string
	// Project controls logging for project, role, and project membership events.
	Project string
	// Invite controls logging for invitation lifecycle events.
	Invite string
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header first (for reverse proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	// Fall back to RemoteAddr with the port stripped
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("event_uid", event.EventUID),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}

	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.WorkspaceID != nil {
		fields = append(fields, zap.String("workspace_id", event.WorkspaceID.Hex()))
	}
	if event.ProjectID != nil {
		fields = append(fields, zap.String("project_id", event.ProjectID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
// Logging destination is controlled by config: "all", "db", "log", or "off".
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryWorkspace:
		setting = l.config.Workspace
	case audit.CategoryProject:
		setting = l.config.Project
	case audit.CategoryInvite:
		setting = l.config.Invite
	default:
		setting = "all" // Default to logging everything for unknown categories
	}

	if setting == "off" {
		return
	}

	if event.EventUID == "" {
		event.EventUID = uuid.NewString()
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}

	if setting == "all" || setting == "db" {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Authentication Events ---

// LoginSuccess logs a successful login.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, authMethod, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    &userID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details: map[string]string{
			"auth_method": authMethod,
			"email":       email,
		},
	})
}

// LoginFailedUserNotFound logs a failed login due to user not found.
func (l *Logger) LoginFailedUserNotFound(ctx context.Context, r *http.Request, attemptedEmail string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedUserNotFound,
		IP:            getClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: "user not found",
		Details: map[string]string{
			"attempted_email": attemptedEmail,
		},
	})
}

// LoginFailedWrongPassword logs a failed login due to wrong password.
func (l *Logger) LoginFailedWrongPassword(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedWrongPassword,
		UserID:        &userID,
		IP:            getClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: "wrong password",
		Details: map[string]string{
			"email": email,
		},
	})
}

// LoginFailedUserDisabled logs a failed login due to disabled account.
func (l *Logger) LoginFailedUserDisabled(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedUserDisabled,
		UserID:        &userID,
		IP:            getClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: "user disabled",
		Details: map[string]string{
			"email": email,
		},
	})
}

// Logout logs a user logout.
// Accepts the string ID from SessionUser and converts it to an ObjectID.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userIDStr string) {
	var userID *primitive.ObjectID
	if oid, err := primitive.ObjectIDFromHex(userIDStr); err == nil {
		userID = &oid
	}

	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLogout,
		UserID:    userID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
	})
}

// UserRegistered logs a new account registration.
func (l *Logger) UserRegistered(ctx context.Context, r *http.Request, userID primitive.ObjectID, authMethod, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventUserRegistered,
		UserID:    &userID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details: map[string]string{
			"auth_method": authMethod,
			"email":       email,
		},
	})
}

// --- Workspace Events ---

// WorkspaceCreated logs creation of a workspace.
func (l *Logger) WorkspaceCreated(ctx context.Context, r *http.Request, actorID, workspaceID primitive.ObjectID, wsType, name string) {
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryWorkspace,
		EventType:   audit.EventWorkspaceCreated,
		WorkspaceID: &workspaceID,
		ActorID:     &actorID,
		IP:          getClientIP(r),
		UserAgent:   r.UserAgent(),
		Success:     true,
		Details: map[string]string{
			"workspace_type": wsType,
			"name":           name,
		},
	})
}

// WorkspaceUpdated logs a workspace rename or settings change.
func (l *Logger) WorkspaceUpdated(ctx context.Context, r *http.Request, actorID, workspaceID primitive.ObjectID, fieldsChanged string) {
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryWorkspace,
		EventType:   audit.EventWorkspaceUpdated,
		WorkspaceID: &workspaceID,
		ActorID:     &actorID,
		IP:          getClientIP(r),
		UserAgent:   r.UserAgent(),
		Success:     true,
		Details: map[string]string{
			"fields_changed": fieldsChanged,
		},
	})
}

// WorkspaceDeleted logs a workspace soft-delete.
func (l *Logger) WorkspaceDeleted(ctx context.Context, r *http.Request, actorID, workspaceID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryWorkspace,
		EventType:   audit.EventWorkspaceDeleted,
		WorkspaceID: &workspaceID,
		ActorID:     &actorID,
		IP:          getClientIP(r),
		UserAgent:   r.UserAgent(),
		Success:     true,
	})
}

// WorkspaceRestored logs a workspace restore.
func (l *Logger) WorkspaceRestored(ctx context.Context, r *http.Request, actorID, workspaceID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryWorkspace,
		EventType:   audit.EventWorkspaceRestored,
		WorkspaceID: &workspaceID,
		ActorID:     &actorID,
		IP:          getClientIP(r),
		UserAgent:   r.UserAgent(),
		Success:     true,
	})
}

// WorkspaceOwnerChanged logs an ownership transfer.
func (l *Logger) WorkspaceOwnerChanged(ctx context.Context, r *http.Request, actorID, workspaceID, newOwnerID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryWorkspace,
		EventType:   audit.EventWorkspaceOwnerChanged,
		WorkspaceID: &workspaceID,
		UserID:      &newOwnerID,
		ActorID:     &actorID,
		IP:          getClientIP(r),
		UserAgent:   r.UserAgent(),
		Success:     true,
	})
}

// MemberRoleChanged logs a workspace member role change.
func (l *Logger) MemberRoleChanged(ctx context.Context, r *http.Request, actorID, workspaceID, targetUserID primitive.ObjectID, newRole string) {
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryWorkspace,
		EventType:   audit.EventMemberRoleChanged,
		WorkspaceID: &workspaceID,
		UserID:      &targetUserID,
		ActorID:     &actorID,
		IP:          getClientIP(r),
		UserAgent:   r.UserAgent(),
		Success:     true,
		Details: map[string]string{
			"new_role": newRole,
		},
	})
}

// MemberRemoved logs removal of a workspace member.
func (l *Logger) MemberRemoved(ctx context.Context, r *http.Request, actorID, workspaceID, targetUserID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryWorkspace,
		EventType:   audit.EventMemberRemoved,
		WorkspaceID: &workspaceID,
		UserID:      &targetUserID,
		ActorID:     &actorID,
		IP:          getClientIP(r),
		UserAgent:   r.UserAgent(),
		Success:     true,
	})
}

// --- Project Events ---

// ProjectCreated logs creation of a project.
func (l *Logger) ProjectCreated(ctx context.Context, r *http.Request, actorID, workspaceID, projectID primitive.ObjectID, name string) {
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryProject,
		EventType:   audit.EventProjectCreated,
		WorkspaceID: &workspaceID,
		ProjectID:   &projectID,
		ActorID:     &actorID,
		IP:          getClientIP(r),
		UserAgent:   r.UserAgent(),
		Success:     true,
		Details: map[string]string{
			"name": name,
		},
	})
}

// ProjectUpdated logs a project rename or description change.
func (l *Logger) ProjectUpdated(ctx context.Context, r *http.Request, actorID, workspaceID, projectID primitive.ObjectID, fieldsChanged string) {
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryProject,
		EventType:   audit.EventProjectUpdated,
		WorkspaceID: &workspaceID,
		ProjectID:   &projectID,
		ActorID:     &actorID,
		IP:          getClientIP(r),
		UserAgent:   r.UserAgent(),
		Success:     true,
		Details: map[string]string{
			"fields_changed": fieldsChanged,
		},
	})
}

// ProjectDeleted logs a project soft-delete.
func (l *Logger) ProjectDeleted(ctx context.Context, r *http.Request, actorID, workspaceID, projectID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryProject,
		EventType:   audit.EventProjectDeleted,
		WorkspaceID: &workspaceID,
		ProjectID:   &projectID,
		ActorID:     &actorID,
		IP:          getClientIP(r),
		UserAgent:   r.UserAgent(),
		Success:     true,
	})
}

// ProjectRestored logs a project restore.
func (l *Logger) ProjectRestored(ctx context.Context, r *http.Request, actorID, workspaceID, projectID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryProject,
		EventType:   audit.EventProjectRestored,
		WorkspaceID: &workspaceID,
		ProjectID:   &projectID,
		ActorID:     &actorID,
		IP:          getClientIP(r),
		UserAgent:   r.UserAgent(),
		Success:     true,
	})
}

// ProjectRoleCreated logs creation of a custom project role.
func (l *Logger) ProjectRoleCreated(ctx context.Context, r *http.Request, actorID, workspaceID, projectID, roleID primitive.ObjectID, roleName string) {
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryProject,
		EventType:   audit.EventProjectRoleCreated,
		WorkspaceID: &workspaceID,
		ProjectID:   &projectID,
		ActorID:     &actorID,
		IP:          getClientIP(r),
		UserAgent:   r.UserAgent(),
		Success:     true,
		Details: map[string]string{
			"role_id":   roleID.Hex(),
			"role_name": roleName,
		},
	})
}

// ProjectRoleUpdated logs an edit to a custom project role.
func (l *Logger) ProjectRoleUpdated(ctx context.Context, r *http.Request, actorID, workspaceID, projectID, roleID primitive.ObjectID, fieldsChanged string) {
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryProject,
		EventType:   audit.EventProjectRoleUpdated,
		WorkspaceID: &workspaceID,
		ProjectID:   &projectID,
		ActorID:     &actorID,
		IP:          getClientIP(r),
		UserAgent:   r.UserAgent(),
		Success:     true,
		Details: map[string]string{
			"role_id":        roleID.Hex(),
			"fields_changed": fieldsChanged,
		},
	})
}

// ProjectRoleDeleted logs deletion of a custom project role.
func (l *Logger) ProjectRoleDeleted(ctx context.Context, r *http.Request, actorID, workspaceID, projectID, roleID primitive.ObjectID, roleName string) {
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryProject,
		EventType:   audit.EventProjectRoleDeleted,
		WorkspaceID: &workspaceID,
		ProjectID:   &projectID,
		ActorID:     &actorID,
		IP:          getClientIP(r),
		UserAgent:   r.UserAgent(),
		Success:     true,
		Details: map[string]string{
			"role_id":   roleID.Hex(),
			"role_name": roleName,
		},
	})
}

// ProjectMemberChanged logs a project member role assignment change.
func (l *Logger) ProjectMemberChanged(ctx context.Context, r *http.Request, actorID, workspaceID, projectID, targetUserID primitive.ObjectID, roleID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryProject,
		EventType:   audit.EventProjectMemberChanged,
		WorkspaceID: &workspaceID,
		ProjectID:   &projectID,
		UserID:      &targetUserID,
		ActorID:     &actorID,
		IP:          getClientIP(r),
		UserAgent:   r.UserAgent(),
		Success:     true,
		Details: map[string]string{
			"role_id": roleID.Hex(),
		},
	})
}

// ProjectMemberRemoved logs removal of a project member.
func (l *Logger) ProjectMemberRemoved(ctx context.Context, r *http.Request, actorID, workspaceID, projectID, targetUserID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryProject,
		EventType:   audit.EventProjectMemberRemoved,
		WorkspaceID: &workspaceID,
		ProjectID:   &projectID,
		UserID:      &targetUserID,
		ActorID:     &actorID,
		IP:          getClientIP(r),
		UserAgent:   r.UserAgent(),
		Success:     true,
	})
}

// --- Invitation Events ---

// InviteSent logs a new invitation.
func (l *Logger) InviteSent(ctx context.Context, r *http.Request, actorID primitive.ObjectID, workspaceID, projectID *primitive.ObjectID, email string) {
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryInvite,
		EventType:   audit.EventInviteSent,
		WorkspaceID: workspaceID,
		ProjectID:   projectID,
		ActorID:     &actorID,
		IP:          getClientIP(r),
		UserAgent:   r.UserAgent(),
		Success:     true,
		Details: map[string]string{
			"email": email,
		},
	})
}

// InviteResent logs an invitation refreshed for the same invitee.
func (l *Logger) InviteResent(ctx context.Context, r *http.Request, actorID primitive.ObjectID, workspaceID, projectID *primitive.ObjectID, email string) {
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryInvite,
		EventType:   audit.EventInviteResent,
		WorkspaceID: workspaceID,
		ProjectID:   projectID,
		ActorID:     &actorID,
		IP:          getClientIP(r),
		UserAgent:   r.UserAgent(),
		Success:     true,
		Details: map[string]string{
			"email": email,
		},
	})
}

// InviteAccepted logs a successful acceptance.
func (l *Logger) InviteAccepted(ctx context.Context, r *http.Request, userID primitive.ObjectID, workspaceID, projectID *primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryInvite,
		EventType:   audit.EventInviteAccepted,
		WorkspaceID: workspaceID,
		ProjectID:   projectID,
		UserID:      &userID,
		IP:          getClientIP(r),
		UserAgent:   r.UserAgent(),
		Success:     true,
	})
}

// InviteRejected logs a rejection by the invitee.
func (l *Logger) InviteRejected(ctx context.Context, r *http.Request, userID primitive.ObjectID, workspaceID, projectID *primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryInvite,
		EventType:   audit.EventInviteRejected,
		WorkspaceID: workspaceID,
		ProjectID:   projectID,
		UserID:      &userID,
		IP:          getClientIP(r),
		UserAgent:   r.UserAgent(),
		Success:     true,
	})
}

// InviteCancelled logs a pending invitation withdrawn by the inviter or a
// scope administrator.
func (l *Logger) InviteCancelled(ctx context.Context, r *http.Request, actorID primitive.ObjectID, workspaceID, projectID *primitive.ObjectID, email string) {
	l.Log(ctx, audit.Event{
		Category:    audit.CategoryInvite,
		EventType:   audit.EventInviteCancelled,
		WorkspaceID: workspaceID,
		ProjectID:   projectID,
		ActorID:     &actorID,
		IP:          getClientIP(r),
		UserAgent:   r.UserAgent(),
		Success:     true,
		Details: map[string]string{
			"email": email,
		},
	})
}

// InviteDenied logs an acceptance that was refused (expired, already a
// member, hierarchy violation, wrong invitee).
func (l *Logger) InviteDenied(ctx context.Context, r *http.Request, userID primitive.ObjectID, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryInvite,
		EventType:     audit.EventInviteDenied,
		UserID:        &userID,
		IP:            getClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: reason,
	})
}
