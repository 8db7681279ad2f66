// internal/app/system/txn/txn.go
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// WithTransaction runs fn inside a multi-document transaction with snapshot
// read concern and majority write concern.
//
// Standalone mongod deployments (common in development) do not support
// transactions; when the server reports that, fn is run directly without a
// session so the write path still works. fn must therefore tolerate running
// outside a transaction.
func WithTransaction(ctx context.Context, client *mongo.Client, fn func(ctx context.Context) error) error {
	session, err := client.StartSession()
	if err != nil {
		if IsNotSupported(err) {
			return fn(ctx)
		}
		return err
	}
	defer session.EndSession(ctx)

	opts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	}, opts)
	if err != nil && IsNotSupported(err) {
		return fn(ctx)
	}
	return err
}

// Runner carries a client so packages that only know "run this atomically"
// do not need to import the driver.
type Runner struct {
	client *mongo.Client
}

func NewRunner(client *mongo.Client) *Runner {
	return &Runner{client: client}
}

// Run executes fn via WithTransaction.
func (r *Runner) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	return WithTransaction(ctx, r.client, fn)
}

// IsNotSupported reports whether err indicates the deployment cannot run
// multi-document transactions (standalone server, no replica set, or a
// driver/session mismatch), as opposed to a transaction that ran and failed.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		// 20 IllegalOperation on standalone, 51 transactions unsupported,
		// 263 operation not permitted in transaction.
		switch cmdErr.Code {
		case 20, 51, 263:
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	has := func(s string) bool { return strings.Contains(msg, s) }

	switch {
	case has("transaction") && has("replica set"):
		return true
	case has("session") && has("not supported"):
		return true
	case has("transaction") && has("session"):
		return true
	case has("illegal operation") && has("transaction"):
		return true
	}
	return false
}
