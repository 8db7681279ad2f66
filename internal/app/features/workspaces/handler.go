// internal/app/features/workspaces/handler.go
package workspaces

import (
	"github.com/taskhubapp/taskhub/internal/app/policy/authzpolicy"
	projectmemberstore "github.com/taskhubapp/taskhub/internal/app/store/projectmembers"
	projectstore "github.com/taskhubapp/taskhub/internal/app/store/projects"
	userstore "github.com/taskhubapp/taskhub/internal/app/store/users"
	wsmemberstore "github.com/taskhubapp/taskhub/internal/app/store/workspacemembers"
	workspacestore "github.com/taskhubapp/taskhub/internal/app/store/workspaces"
	"github.com/taskhubapp/taskhub/internal/app/system/auditlog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler provides the workspace endpoints: CRUD, soft-delete/restore with
// cascade, ownership transfer, and roster management.
type Handler struct {
	Client         *mongo.Client // transactions
	Workspaces     *workspacestore.Store
	Members        *wsmemberstore.Store
	Projects       *projectstore.Store
	ProjectMembers *projectmemberstore.Store
	Users          *userstore.Store
	Authz          *authzpolicy.Engine
	AuditLog       *auditlog.Logger
	Log            *zap.Logger
}

// NewHandler creates a new workspaces Handler.
func NewHandler(
	client *mongo.Client,
	workspaces *workspacestore.Store,
	members *wsmemberstore.Store,
	projects *projectstore.Store,
	projectMembers *projectmemberstore.Store,
	users *userstore.Store,
	authz *authzpolicy.Engine,
	audit *auditlog.Logger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Client:         client,
		Workspaces:     workspaces,
		Members:        members,
		Projects:       projects,
		ProjectMembers: projectMembers,
		Users:          users,
		Authz:          authz,
		AuditLog:       audit,
		Log:            logger,
	}
}
