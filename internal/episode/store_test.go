package episode

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/alvolt/membank/internal/log"
)

// mockQuerier implements Querier for testing.
type mockQuerier struct {
	appendErr  error
	nearestErr error

	nearestRows []NearestEpisodesRow

	appendCalls       int
	lastAppendParams  AppendEpisodeParams
	lastNearestParams NearestEpisodesParams
}

func (m *mockQuerier) AppendEpisode(_ context.Context, arg AppendEpisodeParams) error {
	m.appendCalls++
	m.lastAppendParams = arg
	return m.appendErr
}

func (m *mockQuerier) NearestEpisodes(_ context.Context, arg NearestEpisodesParams) ([]NearestEpisodesRow, error) {
	m.lastNearestParams = arg
	if m.nearestErr != nil {
		return nil, m.nearestErr
	}
	return m.nearestRows, nil
}

func TestRole_Valid(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleUser, true},
		{RoleAssistant, true},
		{Role("system"), false},
		{Role(""), false},
		{Role("USER"), false},
	}
	for _, tt := range tests {
		if got := tt.role.Valid(); got != tt.want {
			t.Errorf("Role(%q).Valid() = %v, want %v", tt.role, got, tt.want)
		}
	}
}

func TestStore_Append(t *testing.T) {
	ctx := context.Background()

	t.Run("passes fields through with fresh id", func(t *testing.T) {
		mock := &mockQuerier{}
		store := New(mock, log.NewNop())

		err := store.Append(ctx, RoleUser, "how does the login flow work?", []float32{0.1, 0.2})
		if err != nil {
			t.Fatalf("Append() = %v", err)
		}
		if mock.appendCalls != 1 {
			t.Fatalf("append calls = %d, want 1", mock.appendCalls)
		}
		got := mock.lastAppendParams
		if got.ID == uuid.Nil {
			t.Error("id was not generated")
		}
		if got.Role != "user" || got.Content != "how does the login flow work?" {
			t.Errorf("params = %+v", got)
		}
		if got.Embedding == nil {
			t.Error("embedding was not passed through")
		}
	})

	t.Run("rejects invalid role without touching the store", func(t *testing.T) {
		mock := &mockQuerier{}
		store := New(mock, log.NewNop())

		err := store.Append(ctx, Role("system"), "ignored", []float32{0.1})
		if !errors.Is(err, ErrInvalidRole) {
			t.Fatalf("Append() = %v, want ErrInvalidRole", err)
		}
		if mock.appendCalls != 0 {
			t.Errorf("append calls = %d, want 0", mock.appendCalls)
		}
	})

	t.Run("rejects empty embedding", func(t *testing.T) {
		store := New(&mockQuerier{}, log.NewNop())

		err := store.Append(ctx, RoleAssistant, "reply", nil)
		if !errors.Is(err, ErrStore) {
			t.Fatalf("Append() = %v, want ErrStore", err)
		}
	})

	t.Run("wraps insert failures in ErrStore", func(t *testing.T) {
		mock := &mockQuerier{appendErr: errors.New("connection refused")}
		store := New(mock, log.NewNop())

		err := store.Append(ctx, RoleUser, "hello", []float32{0.1})
		if !errors.Is(err, ErrStore) {
			t.Fatalf("Append() = %v, want ErrStore", err)
		}
	})
}

func TestStore_QueryNearest(t *testing.T) {
	ctx := context.Background()

	t.Run("preserves row order and fields", func(t *testing.T) {
		now := time.Now()
		mock := &mockQuerier{nearestRows: []NearestEpisodesRow{
			{Role: "user", Content: "first", CreatedAt: now, Distance: 0.1},
			{Role: "assistant", Content: "second", CreatedAt: now, Distance: 0.4},
		}}
		store := New(mock, log.NewNop())

		matches, err := store.QueryNearest(ctx, []float32{0.5}, 5)
		if err != nil {
			t.Fatalf("QueryNearest() = %v", err)
		}
		if len(matches) != 2 {
			t.Fatalf("len(matches) = %d, want 2", len(matches))
		}
		if matches[0].Role != RoleUser || matches[0].Content != "first" || matches[0].Distance != 0.1 {
			t.Errorf("matches[0] = %+v", matches[0])
		}
		if matches[1].Role != RoleAssistant || matches[1].Distance != 0.4 {
			t.Errorf("matches[1] = %+v", matches[1])
		}
		if mock.lastNearestParams.ResultLimit != 5 {
			t.Errorf("limit = %d, want 5", mock.lastNearestParams.ResultLimit)
		}
	})

	t.Run("empty log yields empty slice", func(t *testing.T) {
		store := New(&mockQuerier{}, log.NewNop())

		matches, err := store.QueryNearest(ctx, []float32{0.5}, 5)
		if err != nil {
			t.Fatalf("QueryNearest() = %v", err)
		}
		if len(matches) != 0 {
			t.Errorf("len(matches) = %d, want 0", len(matches))
		}
	})

	t.Run("non-positive k short-circuits", func(t *testing.T) {
		mock := &mockQuerier{}
		store := New(mock, log.NewNop())

		matches, err := store.QueryNearest(ctx, []float32{0.5}, 0)
		if err != nil || len(matches) != 0 {
			t.Fatalf("QueryNearest() = %v, %v", matches, err)
		}
		if mock.lastNearestParams.ResultLimit != 0 {
			t.Error("query should not have been issued")
		}
	})

	t.Run("wraps query failures in ErrStore", func(t *testing.T) {
		mock := &mockQuerier{nearestErr: errors.New("connection refused")}
		store := New(mock, log.NewNop())

		_, err := store.QueryNearest(ctx, []float32{0.5}, 5)
		if !errors.Is(err, ErrStore) {
			t.Fatalf("QueryNearest() = %v, want ErrStore", err)
		}
	})
}
