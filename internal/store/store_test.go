package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenClose(t *testing.T) {
	s := openTestStore(t)
	if s.DB() == nil {
		t.Fatal("expected non-nil db")
	}
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases,
		// so journal_mode is not checked here.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestStateRepo_UpdateAndGet(t *testing.T) {
	s := openTestStore(t)
	repo := s.ProgressRepo()
	ctx := context.Background()
	key := StateKey{UserID: "u1", Stage: "JS", Level: 1}

	rec, err := repo.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec != nil {
		t.Fatal("expected nil record before first write")
	}

	for i := range 3 {
		err := repo.Update(ctx, key, func(cur json.RawMessage) (json.RawMessage, error) {
			var n int
			if cur != nil {
				if err := json.Unmarshal(cur, &n); err != nil {
					return nil, err
				}
			}
			if n != i {
				t.Errorf("iteration %d saw %d", i, n)
			}
			return json.Marshal(n + 1)
		})
		if err != nil {
			t.Fatalf("Update %d: %v", i, err)
		}
	}

	rec, err = repo.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(rec.Data) != "3" {
		t.Errorf("data = %s, want 3", rec.Data)
	}
}

func TestStateRepo_UpdateErrorRollsBack(t *testing.T) {
	s := openTestStore(t)
	repo := s.ProgressRepo()
	ctx := context.Background()
	key := StateKey{UserID: "u1", Stage: "JS", Level: 2}
	boom := errors.New("boom")

	err := repo.Update(ctx, key, func(json.RawMessage) (json.RawMessage, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	rec, _ := repo.Get(ctx, key)
	if rec != nil {
		t.Error("expected no record after failed update")
	}
}

func TestStateRepo_KindsAreIsolated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := StateKey{UserID: "u1", Stage: "JS"}

	set := func(json.RawMessage) (json.RawMessage, error) { return json.RawMessage(`{"x":1}`), nil }
	if err := s.EventsProgressRepo().Update(ctx, key, set); err != nil {
		t.Fatalf("Update: %v", err)
	}

	rec, err := s.ProgressRepo().Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec != nil {
		t.Error("quiz progress should not see events progress rows")
	}

	list, err := s.EventsProgressRepo().ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 1 || list[0].Stage != "JS" {
		t.Errorf("ListByUser = %+v", list)
	}
}

func TestSessionRepo_Lifecycle(t *testing.T) {
	s := openTestStore(t)
	repo := s.SessionRepo()
	ctx := context.Background()
	now := time.Now()

	err := repo.Create(ctx, SessionRecord{
		Token: "tok", UserID: "u1", Stage: "JS",
		CreatedAt: now, LastActivity: now,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.AppendTurn(ctx, "tok", "q1", "a1", now.Add(time.Minute)); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	if err := repo.AppendTurn(ctx, "tok", "q2", "a2", now.Add(2*time.Minute)); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}

	rec, err := repo.Get(ctx, "tok")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.QuestionsCount != 2 {
		t.Errorf("QuestionsCount = %d, want 2", rec.QuestionsCount)
	}
	if rec.Language != "ar" {
		t.Errorf("Language = %q, want ar", rec.Language)
	}

	turns, err := repo.Turns(ctx, "tok")
	if err != nil {
		t.Fatalf("Turns: %v", err)
	}
	if len(turns) != 2 || turns[0].Question != "q1" || turns[1].Seq != 2 {
		t.Errorf("Turns = %+v", turns)
	}
}

func TestSessionRepo_NotFound(t *testing.T) {
	s := openTestStore(t)
	repo := s.SessionRepo()
	ctx := context.Background()

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get err = %v, want ErrNotFound", err)
	}
	if err := repo.AppendTurn(ctx, "missing", "q", "a", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("AppendTurn err = %v, want ErrNotFound", err)
	}
}

func TestSessionRepo_DeleteInactiveSince(t *testing.T) {
	s := openTestStore(t)
	repo := s.SessionRepo()
	ctx := context.Background()
	now := time.Now()

	old := now.Add(-40 * 24 * time.Hour)
	_ = repo.Create(ctx, SessionRecord{Token: "old", UserID: "u1", Stage: "JS", CreatedAt: old, LastActivity: old})
	_ = repo.Create(ctx, SessionRecord{Token: "new", UserID: "u1", Stage: "JS", CreatedAt: now, LastActivity: now})
	_ = repo.AppendTurn(ctx, "old", "q", "a", old)

	n, err := repo.DeleteInactiveSince(ctx, now.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteInactiveSince: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}

	list, _ := repo.ListByUser(ctx, "u1")
	if len(list) != 1 || list[0].Token != "new" {
		t.Errorf("remaining = %+v", list)
	}
	turns, _ := repo.Turns(ctx, "old")
	if len(turns) != 0 {
		t.Errorf("orphan turns = %d", len(turns))
	}
}

func TestCacheRepo(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	topics := s.CacheRepo("topic")
	quizzes := s.CacheRepo("quiz")

	if err := topics.Put(ctx, "JS:Nile", []byte("v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := topics.Put(ctx, "JS:Nile", []byte("v2")); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}

	e, err := topics.Get(ctx, "JS:Nile")
	if err != nil || e == nil || string(e.Value) != "v2" {
		t.Fatalf("Get = %+v, %v", e, err)
	}

	if e, _ := quizzes.Get(ctx, "JS:Nile"); e != nil {
		t.Error("namespaces should be isolated")
	}

	if err := topics.Delete(ctx, "JS:Nile"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if e, _ := topics.Get(ctx, "JS:Nile"); e != nil {
		t.Error("expected nil after delete")
	}
}

func TestEmbeddingCacheRepo(t *testing.T) {
	s := openTestStore(t)
	repo := s.EmbeddingCacheRepo()
	ctx := context.Background()

	err := repo.Put(ctx, EmbeddingCacheEntry{ContentHash: "h", Model: "m", Dimension: 2, Embedding: []byte{1, 2, 3, 4, 5, 6, 7, 8}})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	e, err := repo.Get(ctx, "h")
	if err != nil || e == nil {
		t.Fatalf("Get = %+v, %v", e, err)
	}
	if e.Dimension != 2 || len(e.Embedding) != 8 {
		t.Errorf("entry = %+v", e)
	}
	n, _ := repo.Count(ctx)
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestEventRepo_LLMEvents(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	for _, p := range []string{"chat", "quiz-questions", "chat"} {
		err := repo.AppendLLMRequest(ctx, LLMRequestEventData{
			Provider: "mock", Model: "mock", Purpose: p,
			InputTokens: 10, OutputTokens: 5, LatencyMs: 100, Success: true,
		})
		if err != nil {
			t.Fatalf("AppendLLMRequest: %v", err)
		}
	}

	events, err := repo.QueryLLMEvents(ctx, QueryOpts{Limit: 2})
	if err != nil {
		t.Fatalf("QueryLLMEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Sequence <= events[1].Sequence {
		t.Error("events should be newest first")
	}

	got, err := repo.GetLLMEvent(ctx, events[0].ID)
	if err != nil || got == nil || got.Purpose != "chat" {
		t.Errorf("GetLLMEvent = %+v, %v", got, err)
	}

	usage, err := repo.LLMUsageByPurpose(ctx)
	if err != nil {
		t.Fatalf("LLMUsageByPurpose: %v", err)
	}
	if len(usage) != 2 || usage[0].Purpose != "chat" || usage[0].Calls != 2 || usage[0].InputTokens != 20 {
		t.Errorf("usage = %+v", usage)
	}
}

func TestEventRepo_Answers(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	_ = repo.AppendAnswer(ctx, AnswerEventData{Category: "quiz", UserID: "u1", Stage: "JS", Level: 1, Question: "q", Correct: true})
	_ = repo.AppendAnswer(ctx, AnswerEventData{Category: "events", UserID: "u2", Stage: "JS", Question: "q", Correct: false})

	got, err := repo.QueryAnswers(ctx, "u1", QueryOpts{})
	if err != nil {
		t.Fatalf("QueryAnswers: %v", err)
	}
	if len(got) != 1 || !got[0].Correct || got[0].Level != 1 {
		t.Errorf("answers = %+v", got)
	}
}
