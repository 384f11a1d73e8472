package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func Test_Store_RecordAndRecent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	in := Entry{
		Question: "How many vacation days?",
		Answer:   "28 days.",
		Sources:  []Source{{"policy.pdf", "3"}, {"policy.pdf", "N/A"}},
	}
	if err := s.Record(ctx, in); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 entry, got %d", len(got))
	}
	e := got[0]
	if e.Question != in.Question || e.Answer != in.Answer || e.Fallback {
		t.Errorf("entry: got %+v", e)
	}
	if len(e.Sources) != 2 || e.Sources[0] != in.Sources[0] || e.Sources[1] != in.Sources[1] {
		t.Errorf("sources: got %v, want %v", e.Sources, in.Sources)
	}
	if e.ID == 0 || e.CreatedAt.IsZero() {
		t.Errorf("store-assigned fields missing: %+v", e)
	}
}

func Test_Store_FallbackWithoutSources(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Record(ctx, Entry{Question: "q", Answer: "none", Fallback: true}); err != nil {
		t.Fatalf("record: %v", err)
	}
	got, err := s.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if !got[0].Fallback {
		t.Error("fallback flag lost")
	}
	if got[0].Sources == nil || len(got[0].Sources) != 0 {
		t.Errorf("want empty non-nil sources, got %#v", got[0].Sources)
	}
}

func Test_Store_NewestFirstAndLimit(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Unix(1_700_000_000, 0)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	for _, q := range []string{"first", "second", "third", "fourth"} {
		if err := s.Record(ctx, Entry{Question: q, Answer: "a"}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	got, err := s.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	want := []string{"fourth", "third", "second"}
	if len(got) != len(want) {
		t.Fatalf("want %d entries, got %d", len(want), len(got))
	}
	for i, q := range want {
		if got[i].Question != q {
			t.Errorf("entry[%d]: want %q, got %q", i, q, got[i].Question)
		}
	}
}

func Test_Store_EmptyAndNonPositiveLimit(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	got, err := s.Recent(ctx, 10)
	if err != nil || len(got) != 0 {
		t.Errorf("empty store: got %v, %v", got, err)
	}

	if err := s.Record(ctx, Entry{Question: "q", Answer: "a"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	got, err = s.Recent(ctx, 0)
	if err != nil || len(got) != 0 {
		t.Errorf("n=0: got %v, %v", got, err)
	}
}

func Test_Store_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Record(ctx, Entry{Question: "kept?", Answer: "yes"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = s2.Close() })

	got, err := s2.Recent(ctx, 5)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 1 || got[0].Question != "kept?" {
		t.Errorf("after reopen: got %v", got)
	}
}
