package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	domain "github.com/personaliza/api/internal/domain"
	"github.com/personaliza/api/internal/platform/observability"
	"github.com/personaliza/api/internal/repositories"
)

const (
	defaultCatalogDeleteConcurrency = 4
	maxCatalogBulkDelete            = 200
	catalogLinkedMessage            = "vinculado a pedidos ou produtos"
)

var (
	// ErrCatalogInvalidInput indicates an unknown kind or missing id.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
	// ErrCatalogUnavailable indicates the catalog store failed.
	ErrCatalogUnavailable = errors.New("catalog: unavailable")
)

// ImageRemover deletes stored product images. Failures never undo a catalog delete.
type ImageRemover interface {
	RemoveObjects(ctx context.Context, refs []string) error
}

// CatalogLifecycleServiceDeps wires the catalog lifecycle.
type CatalogLifecycleServiceDeps struct {
	Repository  repositories.CatalogRepository
	Images      ImageRemover
	Concurrency int
	Metrics     *observability.Metrics
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type catalogLifecycleService struct {
	repo        repositories.CatalogRepository
	images      ImageRemover
	concurrency int
	metrics     *observability.Metrics
	logger      func(context.Context, string, map[string]any)
}

// NewCatalogLifecycleService constructs the delete lifecycle service.
func NewCatalogLifecycleService(deps CatalogLifecycleServiceDeps) (CatalogLifecycleService, error) {
	if deps.Repository == nil {
		return nil, errors.New("catalog lifecycle service: repository is required")
	}
	concurrency := deps.Concurrency
	if concurrency <= 0 {
		concurrency = defaultCatalogDeleteConcurrency
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &catalogLifecycleService{
		repo:        deps.Repository,
		images:      deps.Images,
		concurrency: concurrency,
		metrics:     deps.Metrics,
		logger:      logger,
	}, nil
}

// Delete applies one step of the lifecycle: an active entity is deactivated, an inactive one
// with dependents is left alone and reported as linked, anything else is removed. Absent ids
// succeed without changes.
func (s *catalogLifecycleService) Delete(ctx context.Context, cmd CatalogDeleteCommand) (DeleteResult, error) {
	id := strings.TrimSpace(cmd.ID)
	if id == "" {
		return DeleteResult{}, fmt.Errorf("%w: id is required", ErrCatalogInvalidInput)
	}
	if _, ok := domain.ParseCatalogKind(string(cmd.Kind)); !ok {
		return DeleteResult{}, fmt.Errorf("%w: unknown catalog kind %q", ErrCatalogInvalidInput, cmd.Kind)
	}

	result, err := s.deleteOne(ctx, cmd.Kind, id)
	s.metrics.CatalogDelete(ctx, string(cmd.Kind), string(result.Outcome))
	fields := map[string]any{
		"kind":    string(cmd.Kind),
		"id":      id,
		"actor":   cmd.ActorID,
		"outcome": string(result.Outcome),
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	s.logger(ctx, "catalog.delete", fields)
	return result, err
}

// BulkDelete runs Delete for each id concurrently. Items are independent: a failure never
// stops or reverts the others.
func (s *catalogLifecycleService) BulkDelete(ctx context.Context, cmd CatalogBulkDeleteCommand) (BulkDeleteSummary, error) {
	if _, ok := domain.ParseCatalogKind(string(cmd.Kind)); !ok {
		return BulkDeleteSummary{}, fmt.Errorf("%w: unknown catalog kind %q", ErrCatalogInvalidInput, cmd.Kind)
	}
	ids := uniqueIDs(cmd.IDs)
	if len(ids) == 0 {
		return BulkDeleteSummary{}, fmt.Errorf("%w: at least one id is required", ErrCatalogInvalidInput)
	}
	if len(ids) > maxCatalogBulkDelete {
		return BulkDeleteSummary{}, fmt.Errorf("%w: at most %d ids per request", ErrCatalogInvalidInput, maxCatalogBulkDelete)
	}

	results := make([]DeleteResult, len(ids))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			res, err := s.Delete(ctx, CatalogDeleteCommand{Kind: cmd.Kind, ID: id, ActorID: cmd.ActorID})
			if err != nil && res.Outcome == "" {
				res = DeleteResult{ID: id, Outcome: domain.DeleteOutcomeError, Message: err.Error()}
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	summary := domain.Summarize(results)
	s.logger(ctx, "catalog.bulk_delete", map[string]any{
		"kind":      string(cmd.Kind),
		"actor":     cmd.ActorID,
		"requested": len(ids),
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
	})
	return summary, nil
}

func (s *catalogLifecycleService) deleteOne(ctx context.Context, kind CatalogKind, id string) (DeleteResult, error) {
	entity, err := s.repo.Get(ctx, kind, id)
	if err != nil {
		if repositories.IsNotFound(err) {
			return DeleteResult{ID: id, Outcome: domain.DeleteOutcomeAbsent}, nil
		}
		return s.failed(id, err)
	}

	if entity.IsActive {
		if err := s.repo.Deactivate(ctx, kind, id); err != nil {
			if repositories.IsNotFound(err) {
				return DeleteResult{ID: id, Outcome: domain.DeleteOutcomeAbsent}, nil
			}
			return s.failed(id, err)
		}
		return DeleteResult{ID: id, Outcome: domain.DeleteOutcomeDeactivated}, nil
	}

	linked, err := s.repo.HasDependents(ctx, kind, id)
	if err != nil {
		return s.failed(id, err)
	}
	if linked {
		return DeleteResult{ID: id, Outcome: domain.DeleteOutcomeLinked, Message: catalogLinkedMessage}, nil
	}

	var images []domain.ProductImage
	if kind == domain.CatalogKindProduct {
		images, err = s.repo.ListProductImages(ctx, id)
		if err != nil {
			return s.failed(id, err)
		}
	}

	if err := s.repo.Delete(ctx, kind, id); err != nil {
		switch {
		case repositories.IsDependencyConflict(err):
			return DeleteResult{ID: id, Outcome: domain.DeleteOutcomeLinked, Message: catalogLinkedMessage}, nil
		case repositories.IsNotFound(err):
			return DeleteResult{ID: id, Outcome: domain.DeleteOutcomeAbsent}, nil
		}
		return s.failed(id, err)
	}

	s.removeImages(ctx, id, images)
	return DeleteResult{ID: id, Outcome: domain.DeleteOutcomeDeleted}, nil
}

func (s *catalogLifecycleService) removeImages(ctx context.Context, productID string, images []domain.ProductImage) {
	if s.images == nil || len(images) == 0 {
		return
	}
	refs := make([]string, 0, len(images))
	for _, img := range images {
		if ref := strings.TrimSpace(img.ObjectPath); ref != "" {
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		return
	}
	if err := s.images.RemoveObjects(ctx, refs); err != nil {
		s.logger(ctx, "catalog.images.remove_failed", map[string]any{
			"productID": productID,
			"objects":   len(refs),
			"error":     err.Error(),
		})
	}
}

func (s *catalogLifecycleService) failed(id string, err error) (DeleteResult, error) {
	return DeleteResult{ID: id, Outcome: domain.DeleteOutcomeError, Message: err.Error()},
		fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
