package storage

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pressbot/internal/model"
)

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInsertSeenIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	item := model.FeedItem{
		SourceID:   "screenrant_movie_news",
		ExternalID: "https://screenrant.com/marvel-confirms-new-series/",
		Title:      "Marvel confirms new series",
	}

	first, inserted, err := s.InsertSeen(ctx, item)
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if !inserted {
		t.Fatal("first insert reported duplicate")
	}
	if first.Status != model.StatusNew {
		t.Errorf("status = %s, want NEW", first.Status)
	}

	second, inserted, err := s.InsertSeen(ctx, item)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if inserted {
		t.Fatal("second insert of same key reported as new")
	}
	if second.ID != first.ID {
		t.Errorf("second insert returned id %d, want %d", second.ID, first.ID)
	}

	seen, err := s.IsSeen(ctx, item.SourceID, item.ExternalID)
	if err != nil {
		t.Fatalf("is seen: %v", err)
	}
	if !seen {
		t.Error("IsSeen = false after insert")
	}
}

func TestStatusTransitions(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	art, _, err := s.InsertSeen(ctx, model.FeedItem{
		SourceID:   "collider_movienews",
		ExternalID: "https://collider.com/some-article/",
		Title:      "Some Article",
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	steps := []struct {
		status model.Status
		reason string
	}{
		{model.StatusQueued, ""},
		{model.StatusProcessing, ""},
		{model.StatusFailed, "CTA persisted after cleaning"},
	}

	for _, step := range steps {
		if err := s.SetStatus(ctx, art.ID, step.status, step.reason); err != nil {
			t.Fatalf("set status %s: %v", step.status, err)
		}
		got, err := s.GetSeen(ctx, art.ID)
		if err != nil {
			t.Fatalf("get seen: %v", err)
		}
		if got.Status != step.status {
			t.Errorf("status = %s, want %s", got.Status, step.status)
		}
		if got.FailReason != step.reason {
			t.Errorf("fail reason = %q, want %q", got.FailReason, step.reason)
		}
	}
}

func TestListByStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	for i, url := range []string{"https://a.example/1", "https://a.example/2", "https://a.example/3"} {
		art, _, err := s.InsertSeen(ctx, model.FeedItem{SourceID: "ge_futebol", ExternalID: url})
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
		if i < 2 {
			if err := s.SetStatus(ctx, art.ID, model.StatusQueued, ""); err != nil {
				t.Fatalf("set status: %v", err)
			}
		}
	}

	queued, err := s.ListByStatus(ctx, model.StatusQueued, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(queued) != 2 {
		t.Fatalf("len(queued) = %d, want 2", len(queued))
	}
	if queued[0].ID > queued[1].ID {
		t.Error("queued items not ordered oldest first")
	}

	counts, err := s.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	want := map[model.Status]int{model.StatusQueued: 2, model.StatusNew: 1}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordPost(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	art, _, err := s.InsertSeen(ctx, model.FeedItem{SourceID: "gamerant_news", ExternalID: "https://gamerant.com/x/"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	post, err := s.RecordPost(ctx, art.ID, 4242)
	if err != nil {
		t.Fatalf("record post: %v", err)
	}
	if post.ID == 0 || post.WPPostID != 4242 || post.SeenArticleID != art.ID {
		t.Errorf("post = %+v", post)
	}
}

func TestFeedFailureCounters(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	const source = "collider_movienews"

	n, err := s.FeedFailures(ctx, source)
	if err != nil {
		t.Fatalf("initial failures: %v", err)
	}
	if n != 0 {
		t.Errorf("initial failures = %d, want 0", n)
	}

	for want := 1; want <= 3; want++ {
		n, err = s.IncrementFeedFailures(ctx, source)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if n != want {
			t.Errorf("failures = %d, want %d", n, want)
		}
	}

	if err := s.ResetFeedFailures(ctx, source); err != nil {
		t.Fatalf("reset: %v", err)
	}
	n, err = s.FeedFailures(ctx, source)
	if err != nil {
		t.Fatalf("failures after reset: %v", err)
	}
	if n != 0 {
		t.Errorf("failures after reset = %d, want 0", n)
	}
}

func TestRecordFailure(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	err := s.RecordFailure(ctx, model.Failure{
		SourceID:   "lance_futebol",
		ArticleURL: "https://lance.com.br/foo",
		Error:      "extraction yielded empty content",
	})
	if err != nil {
		t.Fatalf("record failure: %v", err)
	}

	failures, err := s.RecentFailures(ctx, 5)
	if err != nil {
		t.Fatalf("recent failures: %v", err)
	}
	if len(failures) != 1 {
		t.Fatalf("len(failures) = %d, want 1", len(failures))
	}
	if failures[0].SourceID != "lance_futebol" {
		t.Errorf("source = %q", failures[0].SourceID)
	}
}
