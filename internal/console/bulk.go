package console

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/personaliza/api/internal/domain"
	"github.com/personaliza/api/internal/storefront/apiclient"
)

// Delete applies the delete lifecycle to one catalog entity and converts failures into a result.
// A dependency conflict is reported as DeleteOutcomeLinked.
func (c *Console) Delete(ctx context.Context, kind domain.CatalogKind, id string) domain.DeleteResult {
	outcome, err := c.backend.DeleteCatalogEntity(ctx, kind, id)
	if err == nil {
		return domain.DeleteResult{ID: id, Outcome: outcome}
	}

	result := domain.DeleteResult{ID: id, Outcome: domain.DeleteOutcomeError, Message: err.Error()}
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		result.Message = apiErr.Message
	}
	if apiclient.ClassifyError(err) == apiclient.KindDependencyConflict {
		result.Outcome = domain.DeleteOutcomeLinked
	}
	return result
}

// BulkDelete issues one delete per id, all dispatched before any is awaited, and tallies the
// per-item results. One failure does not affect the others.
func (c *Console) BulkDelete(ctx context.Context, kind domain.CatalogKind, ids []string) domain.BulkDeleteSummary {
	results := make([]domain.DeleteResult, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			results[i] = c.Delete(ctx, kind, id)
			return nil
		})
	}
	_ = g.Wait()

	summary := domain.Summarize(results)
	c.logger.Info("console: bulk delete finished",
		zap.String("kind", string(kind)),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
	)
	return summary
}
