package storage

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"incidentwatch/types"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var storeNow = time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	s := NewRedisStoreWithClient(client, "test:", 48*time.Hour)
	s.now = func() time.Time { return storeNow }
	return s, mr
}

func TestSaveAndQueryRecentArticles(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	articles := []*types.Article{
		{ID: "old", Title: "old", PublishedAt: storeNow.Add(-30 * time.Hour)},
		{ID: "mid", Title: "mid", PublishedAt: storeNow.Add(-6 * time.Hour)},
		{ID: "new", Title: "new", PublishedAt: storeNow.Add(-time.Hour), MinHashSignature: []uint64{1, 2, 3}},
	}
	res := s.SaveArticles(ctx, articles)
	if len(res.Saved) != 3 || len(res.Failed) != 0 {
		t.Fatalf("unexpected write result %+v", res)
	}

	got, err := s.RecentArticles(ctx, storeNow.Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "mid" || got[1].ID != "new" {
		t.Fatalf("expected [mid new], got %d articles", len(got))
	}
	if len(got[1].MinHashSignature) != 3 {
		t.Fatalf("signature not persisted")
	}
}

func TestArticlesExpireAndIndexIsCleaned(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	s.SaveArticles(ctx, []*types.Article{{ID: "a", PublishedAt: storeNow}})
	mr.FastForward(49 * time.Hour)

	got, err := s.RecentArticles(ctx, storeNow.Add(-time.Hour))
	if err != nil || len(got) != 0 {
		t.Fatalf("expected expired article to be skipped, got %d err=%v", len(got), err)
	}
	if members, _ := mr.ZMembers("test:articles:by_time"); len(members) != 0 {
		t.Fatalf("expected stale index entry removed, got %v", members)
	}
}

func TestSaveIncidentsReportsPartialFailure(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	incidents := []*types.Incident{
		{ID: "ok-1", Type: types.IncidentProtest, Confidence: 70, Timestamp: storeNow},
		{ID: "bad", Type: types.IncidentArrest, Confidence: math.NaN(), Timestamp: storeNow},
		{ID: "ok-2", Type: types.IncidentInjury, Confidence: 55, Timestamp: storeNow.Add(time.Minute)},
	}
	res := s.SaveIncidents(ctx, incidents)
	if len(res.Saved) != 2 {
		t.Fatalf("expected 2 saved, got %v", res.Saved)
	}
	if ids := res.FailedIDs(); len(ids) != 1 || ids[0] != "bad" {
		t.Fatalf("expected bad to fail, got %v", ids)
	}

	// saved items stay written
	inc, err := s.GetIncident(ctx, "ok-2")
	if err != nil || inc.Confidence != 55 {
		t.Fatalf("GetIncident = %+v, %v", inc, err)
	}
	if _, err := s.GetIncident(ctx, "bad"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	recent, err := s.RecentIncidents(ctx, storeNow.Add(-time.Hour))
	if err != nil || len(recent) != 2 {
		t.Fatalf("RecentIncidents = %d, %v", len(recent), err)
	}
}

func TestSaveFailsEveryItemWhenRedisErrors(t *testing.T) {
	s, mr := newTestStore(t)
	mr.SetError("ERR server unavailable")
	defer mr.SetError("")

	res := s.SaveArticles(context.Background(), []*types.Article{{ID: "a"}, {ID: "b"}})
	if len(res.Saved) != 0 || len(res.Failed) != 2 {
		t.Fatalf("expected both writes to fail, got %+v", res)
	}
}

func TestLatestGroups(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if groups, err := s.LatestGroups(ctx); err != nil || groups != nil {
		t.Fatalf("expected no groups, got %v %v", groups, err)
	}
	want := []types.CoordinationGroup{{ID: "g1", MemberIncidentIDs: []string{"a", "b"}, SuspicionScore: 80}}
	if err := s.SaveGroups(ctx, want); err != nil {
		t.Fatal(err)
	}
	got, err := s.LatestGroups(ctx)
	if err != nil || len(got) != 1 || got[0].ID != "g1" || got[0].Size() != 2 {
		t.Fatalf("LatestGroups = %+v, %v", got, err)
	}
}
