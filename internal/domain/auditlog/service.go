package auditlog

import (
	"context"

	"github.com/samasante/amina/internal/platform/apperr"
	"github.com/samasante/amina/internal/platform/compliance"
)

var knownActions = map[string]bool{
	compliance.ActionAccess: true,
	compliance.ActionCreate: true,
	compliance.ActionUpdate: true,
	compliance.ActionDelete: true,
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetEntry(ctx context.Context, id int64) (*compliance.Entry, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Search(ctx context.Context, f Filter, limit, offset int) ([]*compliance.Entry, int, error) {
	if f.Action != "" && !knownActions[f.Action] {
		return nil, 0, apperr.Invalid("unknown action %q", f.Action)
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return nil, 0, apperr.Invalid("from must be before to")
	}
	return s.repo.Search(ctx, f, limit, offset)
}
