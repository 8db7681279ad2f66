package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SetupTestDB connects to the MongoDB instance named by
// TASKHUB_TEST_MONGO_URI and hands back a uniquely named database that is
// dropped when the test finishes. Tests that need Mongo are skipped when
// the variable is unset, so the rest of the suite runs anywhere.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()

	uri := os.Getenv("TASKHUB_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TASKHUB_TEST_MONGO_URI not set; skipping MongoDB-backed test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("failed to connect to test MongoDB: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		t.Fatalf("failed to ping test MongoDB: %v", err)
	}

	db := client.Database(fmt.Sprintf("taskhub_test_%s", primitive.NewObjectID().Hex()))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.Drop(ctx); err != nil {
			t.Logf("failed to drop test database %s: %v", db.Name(), err)
		}
		_ = client.Disconnect(ctx)
	})

	return db
}

// TestContext returns a context with a generous timeout for test I/O.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
