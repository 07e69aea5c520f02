// Package auditlog lists the audit trail written by the compliance package.
package auditlog

import (
	"context"
	"time"

	"github.com/samasante/amina/internal/platform/compliance"
)

// Filter narrows a listing. Zero values match everything.
type Filter struct {
	UserID     string
	Action     string
	EntityType string
	EntityID   int64
	From       time.Time
	To         time.Time
}

type Repository interface {
	GetByID(ctx context.Context, id int64) (*compliance.Entry, error)
	Search(ctx context.Context, f Filter, limit, offset int) ([]*compliance.Entry, int, error)
}
