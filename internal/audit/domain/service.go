package domain

import (
	"context"
	"time"

	"github.com/rujopadi/autocontrol-sanitario-app-sub005/pkg/db/pagination"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/pkg/tenantctx"
)

// ListRequest narrows a tenant's audit listing.
type ListRequest struct {
	pagination.Pagination
	Action  string
	UserID  string
	Success *bool
	StartAt *time.Time
	EndAt   *time.Time
}

// ListResponse is one page of audit entries.
type ListResponse struct {
	pagination.PageInfo
	Entries []Entry `json:"entries"`
}

// Service records and reads audit entries. Record never blocks the request
// path and never returns an error; a full queue drops the entry and counts
// the loss.
type Service interface {
	Record(entry Entry)
	Query(ctx context.Context, scope tenantctx.Scope, req ListRequest) (ListResponse, error)
	Aggregate(ctx context.Context, scope tenantctx.Scope, startAt, endAt *time.Time) (*Stats, error)
}
