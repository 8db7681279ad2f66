// internal/app/features/projects/handler.go
package projects

import (
	"github.com/taskhubapp/taskhub/internal/app/policy/authzpolicy"
	"github.com/taskhubapp/taskhub/internal/app/policy/hierarchypolicy"
	projectmemberstore "github.com/taskhubapp/taskhub/internal/app/store/projectmembers"
	projectrolestore "github.com/taskhubapp/taskhub/internal/app/store/projectroles"
	projectstore "github.com/taskhubapp/taskhub/internal/app/store/projects"
	userstore "github.com/taskhubapp/taskhub/internal/app/store/users"
	"github.com/taskhubapp/taskhub/internal/app/system/auditlog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler provides the project endpoints: CRUD under a workspace, role
// definitions, and roster management.
type Handler struct {
	Client    *mongo.Client // transactions
	Projects  *projectstore.Store
	Roles     *projectrolestore.Store
	Members   *projectmemberstore.Store
	Users     *userstore.Store
	Authz     *authzpolicy.Engine
	Hierarchy *hierarchypolicy.Guard
	AuditLog  *auditlog.Logger
	Log       *zap.Logger
}

// NewHandler creates a new projects Handler.
func NewHandler(
	client *mongo.Client,
	projects *projectstore.Store,
	roles *projectrolestore.Store,
	members *projectmemberstore.Store,
	users *userstore.Store,
	authz *authzpolicy.Engine,
	hierarchy *hierarchypolicy.Guard,
	audit *auditlog.Logger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Client:    client,
		Projects:  projects,
		Roles:     roles,
		Members:   members,
		Users:     users,
		Authz:     authz,
		Hierarchy: hierarchy,
		AuditLog:  audit,
		Log:       logger,
	}
}
