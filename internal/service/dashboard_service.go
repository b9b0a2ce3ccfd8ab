package service

import (
	"context"

	"procurement/internal/workflow"
)

// KindSummary is the status breakdown of one document kind.
type KindSummary struct {
	Kind     workflow.Kind `json:"kind"`
	Label    string        `json:"label"`
	Resource string        `json:"resource"`
	Total    int64         `json:"total"`
	Statuses []StatusCount `json:"statuses"`
}

type DashboardService interface {
	// Summary counts documents per status for every kind the caller may view.
	Summary(ctx context.Context, perms workflow.PermissionSet) ([]KindSummary, error)
}

type dashboardService struct {
	registry  *workflow.Registry
	documents DocumentService
}

func NewDashboardService(registry *workflow.Registry, documents DocumentService) DashboardService {
	return &dashboardService{registry: registry, documents: documents}
}

func (s *dashboardService) Summary(ctx context.Context, perms workflow.PermissionSet) ([]KindSummary, error) {
	out := make([]KindSummary, 0)
	for _, kind := range s.registry.Kinds() {
		if !perms.Has(workflow.Permission(kind, workflow.VerbView)) {
			continue
		}
		counts, err := s.documents.Summary(ctx, kind)
		if err != nil {
			return nil, err
		}

		var total int64
		for _, c := range counts {
			total += c.Count
		}
		out = append(out, KindSummary{
			Kind:     kind,
			Label:    kind.Label(),
			Resource: kind.Resource(),
			Total:    total,
			Statuses: counts,
		})
	}
	return out, nil
}
