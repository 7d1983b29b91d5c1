package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Repository is the append-only audit store. There is deliberately no
// update or delete method.
type Repository interface {
	Insert(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter ListFilter) ([]*Entry, error)
	Aggregate(ctx context.Context, orgID snowflake.ID, startAt, endAt *time.Time) (*Stats, error)
}
