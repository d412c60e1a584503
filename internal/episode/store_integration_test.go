package episode

import (
	"context"
	"testing"

	"github.com/alvolt/membank/internal/log"
	"github.com/alvolt/membank/internal/testutil"
)

func setupStore(t *testing.T) (*Store, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB, cleanup := testutil.SetupTestDB(t)
	return New(NewQueries(testDB.Pool), log.NewNop()), cleanup
}

func TestStore_AppendAndRecall_Integration(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	turns := []struct {
		role    Role
		content string
		vec     []float32
	}{
		{RoleUser, "how do I configure the database?", testutil.UnitVector(0)},
		{RoleAssistant, "set DATABASE_URL in the environment", testutil.UnitVector(1)},
		{RoleUser, "what about logging?", testutil.UnitVector(2)},
	}
	for _, turn := range turns {
		if err := store.Append(ctx, turn.role, turn.content, turn.vec); err != nil {
			t.Fatalf("append %q: %v", turn.content, err)
		}
	}

	// Query closest to the first turn; it must come back first.
	query := testutil.BlendVector(0, 1, 0.9)
	matches, err := store.QueryNearest(ctx, query, 2)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("len(matches) = %d, want 2", len(matches))
	}
	if matches[0].Content != turns[0].content {
		t.Errorf("matches[0].Content = %q, want %q", matches[0].Content, turns[0].content)
	}
	if matches[0].Role != RoleUser {
		t.Errorf("matches[0].Role = %q, want user", matches[0].Role)
	}
	if matches[0].Distance > matches[1].Distance {
		t.Errorf("distances out of order: %v then %v", matches[0].Distance, matches[1].Distance)
	}
	if matches[0].CreatedAt.IsZero() {
		t.Error("created_at was not populated")
	}
}

func TestStore_AppendIsInsertOnly_Integration(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	// The same content appended twice stays two rows; episodes are a log,
	// not a keyed table.
	for range 2 {
		if err := store.Append(ctx, RoleUser, "same question again", testutil.UnitVector(0)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	matches, err := store.QueryNearest(ctx, testutil.UnitVector(0), 10)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("len(matches) = %d, want 2 distinct rows", len(matches))
	}
}
