package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/audit/domain"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/metrics"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/pkg/tenantctx"
)

// fakeLifecycle collects hooks so tests can start and stop the writer
// goroutine explicitly.
type fakeLifecycle struct {
	hooks []fx.Hook
}

func (l *fakeLifecycle) Append(hook fx.Hook) { l.hooks = append(l.hooks, hook) }

func (l *fakeLifecycle) start(t *testing.T) {
	t.Helper()
	for _, hook := range l.hooks {
		if hook.OnStart != nil {
			if err := hook.OnStart(context.Background()); err != nil {
				t.Fatalf("start hook failed: %v", err)
			}
		}
	}
}

func (l *fakeLifecycle) stop(t *testing.T) {
	t.Helper()
	for _, hook := range l.hooks {
		if hook.OnStop != nil {
			if err := hook.OnStop(context.Background()); err != nil {
				t.Fatalf("stop hook failed: %v", err)
			}
		}
	}
}

type memoryRepo struct {
	mu      sync.Mutex
	entries []*domain.Entry
}

func (r *memoryRepo) Insert(ctx context.Context, entry *domain.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *entry
	r.entries = append(r.entries, &copied)
	return nil
}

func (r *memoryRepo) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Entry
	for _, entry := range r.entries {
		if entry.OrgID == filter.OrgID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (r *memoryRepo) Aggregate(ctx context.Context, orgID snowflake.ID, startAt, endAt *time.Time) (*domain.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &domain.Stats{ActionsByType: make(map[domain.Action]int64)}
	for _, entry := range r.entries {
		if entry.OrgID == orgID {
			stats.TotalActions++
			stats.ActionsByType[entry.Action]++
		}
	}
	return stats, nil
}

func (r *memoryRepo) all() []*domain.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

func newTestAudit(t *testing.T) (domain.Service, *memoryRepo, *fakeLifecycle) {
	t.Helper()

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}
	repo := &memoryRepo{}
	lc := &fakeLifecycle{}
	svc := New(Params{
		Lifecycle: lc,
		Node:      node,
		Repo:      repo,
		Metrics:   metrics.New(),
	})
	return svc, repo, lc
}

func TestRecordPersistsThroughDrain(t *testing.T) {
	svc, repo, lc := newTestAudit(t)
	lc.start(t)

	svc.Record(domain.Entry{
		OrgID:    100,
		Action:   domain.ActionLogin,
		Resource: "session",
	})
	svc.Record(domain.Entry{
		OrgID:  100,
		Action: domain.ActionUpdate,
	})
	lc.stop(t)

	entries := repo.all()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.ID == 0 {
			t.Fatal("expected generated id")
		}
		if entry.CreatedAt.IsZero() {
			t.Fatal("expected stamped created_at")
		}
	}
	if entries[1].Resource != "unknown" {
		t.Fatalf("expected resource fallback, got %s", entries[1].Resource)
	}
}

func TestRecordDropsUnknownAction(t *testing.T) {
	svc, repo, lc := newTestAudit(t)
	lc.start(t)

	svc.Record(domain.Entry{OrgID: 100, Action: "FORMAT_DISK"})
	lc.stop(t)

	if len(repo.all()) != 0 {
		t.Fatal("expected unknown action to be dropped")
	}
}

func TestRecordMasksDetail(t *testing.T) {
	svc, repo, lc := newTestAudit(t)
	lc.start(t)

	svc.Record(domain.Entry{
		OrgID:  100,
		Action: domain.ActionPasswordReset,
		Detail: map[string]any{
			"email":       "alice@example.com",
			"reset_token": "01h2xcejqtf2nbrexx3vqjhp41",
		},
	})
	lc.stop(t)

	entries := repo.all()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Detail["email"] != "alice@example.com" {
		t.Fatalf("expected email untouched, got %v", entries[0].Detail["email"])
	}
	if entries[0].Detail["reset_token"] != "****hp41" {
		t.Fatalf("expected token masked, got %v", entries[0].Detail["reset_token"])
	}
}

func TestRecordAfterDrainIsIgnored(t *testing.T) {
	svc, repo, lc := newTestAudit(t)
	lc.start(t)
	lc.stop(t)

	svc.Record(domain.Entry{OrgID: 100, Action: domain.ActionLogin})

	if len(repo.all()) != 0 {
		t.Fatal("expected entry after drain to be ignored")
	}
}

func TestQueryRejectsBadInput(t *testing.T) {
	svc, _, _ := newTestAudit(t)
	scope := tenantctx.Scope{UserID: 1, OrgID: 100, Role: "admin"}

	req := domain.ListRequest{}
	req.PageToken = "not-a-cursor"
	if _, err := svc.Query(context.Background(), scope, req); err != domain.ErrInvalidPageToken {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}

	start := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	if _, err := svc.Query(context.Background(), scope, domain.ListRequest{StartAt: &start, EndAt: &end}); err != domain.ErrInvalidTimeRange {
		t.Fatalf("expected ErrInvalidTimeRange, got %v", err)
	}
	if _, err := svc.Aggregate(context.Background(), scope, &start, &end); err != domain.ErrInvalidTimeRange {
		t.Fatalf("expected ErrInvalidTimeRange, got %v", err)
	}
}
