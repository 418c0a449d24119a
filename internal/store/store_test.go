package store

import (
	"context"
	"testing"
	"time"

	"github.com/54b3r/farmtable-go/internal/domain"
)

// openTestStore opens an in-memory SQLiteStore with a controllable clock.
func openTestStore(t *testing.T) (*SQLiteStore, *time.Time) {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func appendTurn(t *testing.T, s *SQLiteStore, user, session, question string) *domain.ConversationTurn {
	t.Helper()
	turn := &domain.ConversationTurn{Question: question, Response: "answer to " + question, UserID: user, SessionID: session}
	if err := s.Append(context.Background(), turn); err != nil {
		t.Fatalf("append: %v", err)
	}
	return turn
}

func Test_Store_AppendRoundTripsTypedFields(t *testing.T) {
	t.Parallel()
	s, _ := openTestStore(t)
	ctx := context.Background()

	turn := &domain.ConversationTurn{
		Question:  "What greens are in season?",
		Response:  "Try the kale.",
		UserID:    "u1",
		SessionID: "s1",
		Context: domain.TurnContext{
			Location:          "Benguet",
			PreviousQuestions: []string{"any carrots?"},
			Preferences:       []string{"organic"},
		},
		Metadata: domain.TurnMetadata{
			ProduceIDs:     []string{"p1", "p2"},
			Categories:     []string{"Leafy Greens"},
			PriceRange:     &domain.PriceRange{Min: 40, Max: 95.5},
			ResponseTimeMS: 812,
			ModelUsed:      "llama3",
		},
	}
	if err := s.Append(ctx, turn); err != nil {
		t.Fatalf("append: %v", err)
	}
	if turn.ID == 0 || turn.CreatedAt.IsZero() {
		t.Fatalf("Append did not assign ID/CreatedAt: %+v", turn)
	}

	got, err := s.Recent(ctx, "u1", "", 5)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 turn, got %d", len(got))
	}
	g := got[0]
	if g.Context.Location != "Benguet" || len(g.Context.PreviousQuestions) != 1 {
		t.Errorf("context = %+v", g.Context)
	}
	if g.Metadata.PriceRange == nil || g.Metadata.PriceRange.Max != 95.5 || g.Metadata.ResponseTimeMS != 812 {
		t.Errorf("metadata = %+v", g.Metadata)
	}
	if !g.CreatedAt.Equal(turn.CreatedAt) {
		t.Errorf("created_at = %v, want %v", g.CreatedAt, turn.CreatedAt)
	}
}

func Test_Store_RecentNewestFirstAndLimit(t *testing.T) {
	t.Parallel()
	s, now := openTestStore(t)

	for _, q := range []string{"q1", "q2", "q3", "q4"} {
		appendTurn(t, s, "u1", "", q)
		*now = now.Add(time.Second)
	}

	got, err := s.Recent(context.Background(), "u1", "", 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3 turns, got %d", len(got))
	}
	if got[0].Question != "q4" || got[2].Question != "q2" {
		t.Errorf("order = %s..%s, want q4..q2", got[0].Question, got[2].Question)
	}
}

func Test_Store_RecentSameTimestampOrdersByID(t *testing.T) {
	t.Parallel()
	s, _ := openTestStore(t)

	appendTurn(t, s, "", "s1", "first")
	appendTurn(t, s, "", "s1", "second")

	got, _ := s.Recent(context.Background(), "", "s1", 5)
	if len(got) != 2 || got[0].Question != "second" {
		t.Errorf("got %+v", got)
	}
}

func Test_Store_RecentKeyFiltering(t *testing.T) {
	t.Parallel()
	s, _ := openTestStore(t)
	ctx := context.Background()

	appendTurn(t, s, "u1", "s1", "a")
	appendTurn(t, s, "u1", "s2", "b")
	appendTurn(t, s, "u2", "s1", "c")

	cases := []struct {
		name          string
		user, session string
		want          int
	}{
		{"user only", "u1", "", 2},
		{"session only", "", "s1", 2},
		{"both keys", "u1", "s1", 1},
		{"no keys", "", "", 0},
		{"unknown user", "nobody", "", 0},
	}
	for _, tc := range cases {
		got, err := s.Recent(ctx, tc.user, tc.session, 10)
		if err != nil {
			t.Fatalf("%s: recent: %v", tc.name, err)
		}
		if len(got) != tc.want {
			t.Errorf("%s: got %d turns, want %d", tc.name, len(got), tc.want)
		}
		if got == nil {
			t.Errorf("%s: Recent returned nil slice", tc.name)
		}
	}
}

func Test_Store_Since(t *testing.T) {
	t.Parallel()
	s, now := openTestStore(t)
	ctx := context.Background()

	start := *now
	appendTurn(t, s, "u1", "", "old")
	*now = now.Add(48 * time.Hour)
	appendTurn(t, s, "u1", "", "new")
	appendTurn(t, s, "u2", "", "other")

	got, err := s.Since(ctx, start.Add(24*time.Hour), "")
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("want 2 turns since cutoff, got %d", len(got))
	}

	got, _ = s.Since(ctx, start, "u1")
	if len(got) != 2 || got[0].Question != "new" {
		t.Errorf("user-scoped since = %+v", got)
	}
}

func Test_Store_Ping(t *testing.T) {
	t.Parallel()
	s, _ := openTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}
}
