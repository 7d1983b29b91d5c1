// Package service implements the asynchronous audit recorder and the
// tenant-scoped read paths.
package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/audit/domain"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/audit/masking"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/metrics"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/pkg/db/pagination"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/pkg/tenantctx"
)

const (
	queueSize    = 1024
	writeTimeout = 5 * time.Second
	drainTimeout = 10 * time.Second
)

// Params defines the dependencies of the audit service.
type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Node      *snowflake.Node
	Repo      domain.Repository
	Metrics   *metrics.Metrics
}

type serviceImpl struct {
	node    *snowflake.Node
	repo    domain.Repository
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time

	queue chan domain.Entry
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New constructs the audit service. The writer goroutine starts with the fx
// application and drains the queue on shutdown.
func New(p Params) domain.Service {
	s := &serviceImpl{
		node:    p.Node,
		repo:    p.Repo,
		metrics: p.Metrics,
		log:     zap.L().Named("audit.service"),
		now:     func() time.Time { return time.Now().UTC() },
		queue:   make(chan domain.Entry, queueSize),
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.wg.Add(1)
			go s.run()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return s.drain()
		},
	})
	return s
}

// Record enqueues an entry without blocking the request path. A full queue
// drops the entry; the request that produced it is never failed.
func (s *serviceImpl) Record(entry domain.Entry) {
	if !entry.Action.Valid() {
		s.log.Warn("dropping audit entry with unknown action", zap.String("action", string(entry.Action)))
		return
	}
	if entry.ID == 0 {
		entry.ID = s.node.Generate()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	if entry.Resource == "" {
		entry.Resource = "unknown"
	}
	if len(entry.Detail) > 0 {
		entry.Detail = datatypes.JSONMap(masking.MaskDetail(entry.Detail))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- entry:
		s.metrics.AuditQueueDepth.Set(float64(len(s.queue)))
	default:
		s.metrics.AuditDropped.Inc()
		s.log.Warn("audit queue full, entry dropped", zap.String("action", string(entry.Action)))
	}
}

func (s *serviceImpl) run() {
	defer s.wg.Done()
	for entry := range s.queue {
		s.write(entry)
		s.metrics.AuditQueueDepth.Set(float64(len(s.queue)))
	}
}

func (s *serviceImpl) write(entry domain.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := s.repo.Insert(ctx, &entry); err != nil {
		s.metrics.AuditWriteErrors.Inc()
		s.log.Error("failed to persist audit entry",
			zap.String("action", string(entry.Action)),
			zap.Error(err),
		)
	}
}

// drain stops intake, then lets the writer finish the backlog.
func (s *serviceImpl) drain() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(drainTimeout):
		s.log.Warn("audit drain timed out, entries may be lost")
		return nil
	}
}

func (s *serviceImpl) Query(ctx context.Context, scope tenantctx.Scope, req domain.ListRequest) (domain.ListResponse, error) {
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return domain.ListResponse{}, domain.ErrInvalidTimeRange
	}

	var cursor *domain.Cursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		cursor = &domain.Cursor{ID: id, CreatedAt: createdAt}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	var userID *snowflake.ID
	if trimmed := strings.TrimSpace(req.UserID); trimmed != "" {
		id, err := snowflake.ParseString(trimmed)
		if err != nil {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		userID = &id
	}

	items, err := s.repo.List(ctx, domain.ListFilter{
		OrgID:   scope.OrgID,
		Action:  req.Action,
		UserID:  userID,
		Success: req.Success,
		StartAt: req.StartAt,
		EndAt:   req.EndAt,
		Cursor:  cursor,
		Limit:   pageSize,
	})
	if err != nil {
		return domain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *domain.Entry) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	entries := make([]domain.Entry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		entries = append(entries, *item)
	}

	resp := domain.ListResponse{Entries: entries}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *serviceImpl) Aggregate(ctx context.Context, scope tenantctx.Scope, startAt, endAt *time.Time) (*domain.Stats, error) {
	if startAt != nil && endAt != nil && startAt.After(*endAt) {
		return nil, domain.ErrInvalidTimeRange
	}
	return s.repo.Aggregate(ctx, scope.OrgID, startAt, endAt)
}
