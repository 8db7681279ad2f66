// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureUsers(ctx, db); err != nil {
		problems = append(problems, "users: "+err.Error())
	}
	if err := ensureWorkspaces(ctx, db); err != nil {
		problems = append(problems, "workspaces: "+err.Error())
	}
	if err := ensureWorkspaceMembers(ctx, db); err != nil {
		problems = append(problems, "workspace_members: "+err.Error())
	}
	if err := ensureProjects(ctx, db); err != nil {
		problems = append(problems, "projects: "+err.Error())
	}
	if err := ensureProjectRoles(ctx, db); err != nil {
		problems = append(problems, "project_roles: "+err.Error())
	}
	if err := ensureProjectMembers(ctx, db); err != nil {
		problems = append(problems, "project_members: "+err.Error())
	}
	if err := ensureInvitations(ctx, db); err != nil {
		problems = append(problems, "invitations: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func sameBoolPtr(a, b *bool) bool {
	av := false
	bv := false
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	return av == bv
}

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 { // E11000 duplicate key error index
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

// Mongo/DocDB sometimes returns IndexOptionsConflict when an index with the
// same keys already exists under a different name (or options differ).
func isOptionsConflictErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "IndexOptionsConflict")
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string

	for _, m := range models {
		var desiredName string
		var desiredUnique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				desiredName = *m.Options.Name
			}
			if m.Options.Unique != nil {
				desiredUnique = m.Options.Unique
			}
		}
		desiredSig := keySig(m.Keys.(bson.D))

		start := time.Now()
		zap.L().Info("ensuring index",
			zap.String("collection", coll.Name()),
			zap.String("name", desiredName),
			zap.String("keys", desiredSig),
			zap.Bool("unique", desiredUnique != nil && *desiredUnique))

		// 1) Load existing indexes
		existing := map[string]existingIndex{} // sig -> index
		cur, err := coll.Indexes().List(ctx)
		if err == nil {
			defer cur.Close(ctx)
			for cur.Next(ctx) {
				var idx existingIndex
				if err := cur.Decode(&idx); err != nil {
					zap.L().Warn("failed to decode existing index",
						zap.String("collection", coll.Name()),
						zap.Error(err))
					continue
				}
				existing[keySig(idx.Key)] = idx
			}
		}

		if ex, ok := existing[desiredSig]; ok {
			// Same key pattern exists already.
			if sameBoolPtr(desiredUnique, ex.Unique) {
				// --- Name alignment: if the name differs, drop & recreate with the desired name.
				if desiredName != "" && ex.Name != desiredName {
					zap.L().Info("renaming index to align with desired name",
						zap.String("collection", coll.Name()),
						zap.String("from", ex.Name),
						zap.String("to", desiredName),
						zap.String("keys", desiredSig))

					if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
						zap.L().Warn("drop existing index (rename) failed",
							zap.String("collection", coll.Name()),
							zap.String("name", ex.Name),
							zap.Error(err))
						errs = append(errs, fmt.Sprintf("%s(%s): rename drop failed: %v", coll.Name(), desiredName, err))
						continue
					}
					if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
						zap.L().Warn("create index (rename) failed",
							zap.String("collection", coll.Name()),
							zap.String("name", desiredName),
							zap.Error(err))
						errs = append(errs, fmt.Sprintf("%s(%s): rename create failed: %v", coll.Name(), desiredName, err))
						continue
					}
					zap.L().Info("index renamed",
						zap.String("collection", coll.Name()),
						zap.String("name", desiredName),
						zap.String("keys", desiredSig),
						zap.String("took", time.Since(start).String()))
					continue
				}

				// Names aligned (or we don't care) → reuse
				zap.L().Info("reusing existing index",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name),
					zap.String("keys", desiredSig),
					zap.Bool("unique", ex.Unique != nil && *ex.Unique),
					zap.String("took", time.Since(start).String()))
				continue
			}

			// Options mismatch (e.g., upgrading to unique). Drop & recreate.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				zap.L().Warn("drop existing index failed",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name),
					zap.String("keys", desiredSig),
					zap.Error(err))
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), desiredName, err))
				continue
			}
			if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
				if isDuplicateKeyErr(err) && desiredUnique != nil && *desiredUnique {
					helper := ""
					if coll.Name() == "users" && strings.Contains(desiredSig, "email:1") {
						helper = " — duplicates exist on users.email. Example finder:\n" +
							`db.users.aggregate([{ $group: { _id: "$email", n: { $sum: 1 } } }, { $match: { n: { $gt: 1 } } }])`
					}
					errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)%s", coll.Name(), desiredName, helper))
				} else {
					errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
				}
				continue
			}
			zap.L().Info("index dropped and recreated",
				zap.String("collection", coll.Name()),
				zap.String("name", desiredName),
				zap.String("keys", desiredSig),
				zap.Bool("unique", desiredUnique != nil && *desiredUnique),
				zap.String("took", time.Since(start).String()))
			continue
		}

		// 2) No existing index with the same keys: create it.
		if created, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if isOptionsConflictErr(err) {
				cur2, e2 := coll.Indexes().List(ctx)
				if e2 == nil {
					var match *existingIndex
					for cur2.Next(ctx) {
						var idx existingIndex
						if err := cur2.Decode(&idx); err != nil {
							zap.L().Warn("failed to decode existing index (post-conflict)",
								zap.String("collection", coll.Name()),
								zap.Error(err))
							continue
						}
						if keySig(idx.Key) == desiredSig {
							match = &idx
							break
						}
					}
					cur2.Close(ctx)
					if match != nil {
						if sameBoolPtr(desiredUnique, match.Unique) {
							zap.L().Info("reusing existing index (post-conflict)",
								zap.String("collection", coll.Name()),
								zap.String("name", match.Name),
								zap.String("keys", desiredSig),
								zap.Bool("unique", match.Unique != nil && *match.Unique),
								zap.String("took", time.Since(start).String()))
							continue
						}
						if _, dropErr := coll.Indexes().DropOne(ctx, match.Name); dropErr != nil {
							zap.L().Warn("failed to drop conflicting index",
								zap.String("collection", coll.Name()),
								zap.String("name", match.Name),
								zap.Error(dropErr))
						}
						if _, e3 := coll.Indexes().CreateOne(ctx, m); e3 != nil {
							if isDuplicateKeyErr(e3) && desiredUnique != nil && *desiredUnique {
								errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)", coll.Name(), desiredName))
							} else {
								errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, e3))
							}
							continue
						}
						zap.L().Info("index dropped and recreated (post-conflict)",
							zap.String("collection", coll.Name()),
							zap.String("name", desiredName),
							zap.String("keys", desiredSig),
							zap.Bool("unique", desiredUnique != nil && *desiredUnique),
							zap.String("took", time.Since(start).String()))
						continue
					}
				}

				zap.L().Warn("index ensure failed",
					zap.String("collection", coll.Name()),
					zap.String("name", desiredName),
					zap.String("keys", desiredSig),
					zap.Bool("unique", desiredUnique != nil && *desiredUnique),
					zap.String("took", time.Since(start).String()),
					zap.Error(err))
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
				continue
			}

			zap.L().Warn("index ensure failed",
				zap.String("collection", coll.Name()),
				zap.String("name", desiredName),
				zap.String("keys", desiredSig),
				zap.Bool("unique", desiredUnique != nil && *desiredUnique),
				zap.String("took", time.Since(start).String()),
				zap.Error(err))
			errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
			continue
		} else {
			zap.L().Info("index ensured",
				zap.String("collection", coll.Name()),
				zap.String("name", desiredName),
				zap.String("created_name", created),
				zap.String("keys", desiredSig),
				zap.Bool("unique", desiredUnique != nil && *desiredUnique),
				zap.String("took", time.Since(start).String()))
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("users")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// 1) Email must be unique across all users.
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_email"),
		},

		// 2) Directory listings: filter by status, sort by folded name,
		//    stable tiebreak on _id.
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "full_name_ci", Value: 1},
				{Key: "_id", Value: 1},
			},
			Options: options.Index().SetName("idx_users_status_fullnameci_id"),
		},
	})
}

func ensureWorkspaces(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("workspaces")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// A user's workspaces (ownership lookups and cascades)
		{
			Keys:    bson.D{{Key: "owner_user_id", Value: 1}},
			Options: options.Index().SetName("idx_ws_owner"),
		},

		// At most one personal workspace per user. Partial so group
		// workspaces are unconstrained.
		{
			Keys: bson.D{{Key: "owner_user_id", Value: 1}, {Key: "type", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("uniq_ws_personal_owner").
				SetPartialFilterExpression(bson.M{"type": "personal"}),
		},

		// List pages: live workspaces sorted by folded name
		{
			Keys: bson.D{
				{Key: "deleted_at", Value: 1},
				{Key: "name_ci", Value: 1},
				{Key: "_id", Value: 1},
			},
			Options: options.Index().SetName("idx_ws_deleted_nameci__id"),
		},
	})
}

func ensureWorkspaceMembers(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("workspace_members")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Uniqueness: exactly one membership row per (workspace, user) —
		// soft-delete flips deleted_at; re-admission reactivates the row.
		{
			Keys:    bson.D{{Key: "workspace_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_wsm_workspace_user"),
		},

		// Fast: list a workspace roster (+role segmentation, stable tiebreak)
		{
			Keys:    bson.D{{Key: "workspace_id", Value: 1}, {Key: "role", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetName("idx_wsm_workspace_role_user"),
		},

		// Fast: list a user's workspaces
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "workspace_id", Value: 1}},
			Options: options.Index().SetName("idx_wsm_user_workspace"),
		},
	})
}

func ensureProjects(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("projects")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// List a workspace's live projects sorted by folded name
		{
			Keys: bson.D{
				{Key: "workspace_id", Value: 1},
				{Key: "deleted_at", Value: 1},
				{Key: "name_ci", Value: 1},
				{Key: "_id", Value: 1},
			},
			Options: options.Index().SetName("idx_projects_ws_deleted_nameci__id"),
		},

		// Cascade soft-delete/restore by workspace
		{
			Keys:    bson.D{{Key: "workspace_id", Value: 1}},
			Options: options.Index().SetName("idx_projects_ws"),
		},
	})
}

func ensureProjectRoles(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("project_roles")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Uniqueness: no duplicate role names inside the same project
		// (case/diacritics-folded via name_ci)
		{
			Keys:    bson.D{{Key: "project_id", Value: 1}, {Key: "name_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_roles_project_nameci"),
		},

		// Per-project role lists (system role first is done in the query)
		{
			Keys:    bson.D{{Key: "project_id", Value: 1}},
			Options: options.Index().SetName("idx_roles_project"),
		},
	})
}

func ensureProjectMembers(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("project_members")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Uniqueness: one membership row per (project, user)
		{
			Keys:    bson.D{{Key: "project_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_pm_project_user"),
		},

		// Roster listing per project
		{
			Keys:    bson.D{{Key: "project_id", Value: 1}, {Key: "role_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetName("idx_pm_project_role_user"),
		},

		// A user's project rows inside one workspace (workspace-level
		// cascades and removals touch these)
		{
			Keys:    bson.D{{Key: "workspace_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetName("idx_pm_ws_user"),
		},
	})
}

func ensureInvitations(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("invitations")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// At most one PENDING invitation per (scope, email). Partial so
		// accepted/rejected history rows never collide. Expired-but-pending
		// rows count: re-invites recycle them in place rather than insert.
		{
			Keys: bson.D{
				{Key: "scope_type", Value: 1},
				{Key: "scope_id", Value: 1},
				{Key: "email", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetName("uniq_invites_pending_scope_email").
				SetPartialFilterExpression(bson.M{"status": "pending"}),
		},

		// Token lookup is the acceptance hot path
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_invites_token"),
		},

		// A user's pending invitations (by email)
		{
			Keys:    bson.D{{Key: "email", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_invites_email_status"),
		},

		// Scope history listings (latest first is done in the query)
		{
			Keys:    bson.D{{Key: "scope_type", Value: 1}, {Key: "scope_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_invites_scope_created"),
		},
	})
}
