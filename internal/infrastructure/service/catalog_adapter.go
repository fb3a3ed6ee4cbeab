// Package service contains adapters that bridge infrastructure clients to
// domain interfaces.
package service

import (
	"context"
	"log/slog"

	"github.com/lmshub/lms-analytics/internal/domain/course"
	"github.com/lmshub/lms-analytics/internal/domain/shared"
	"github.com/lmshub/lms-analytics/internal/infrastructure/external/catalog"
	"github.com/lmshub/lms-analytics/pkg/circuitbreaker"
	"github.com/lmshub/lms-analytics/pkg/retry"
)

// CatalogAdapter adapts the catalog.Client to the course.Catalog interface,
// adding retries with backoff and a circuit breaker around every request.
type CatalogAdapter struct {
	client  *catalog.Client
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewCatalogAdapter creates a catalog adapter with the standard resilience
// policies for the catalog API.
func NewCatalogAdapter(client *catalog.Client, logger *slog.Logger) *CatalogAdapter {
	if logger == nil {
		logger = slog.Default()
	}

	breaker := circuitbreaker.CatalogBreaker(func(name string, from, to circuitbreaker.State) {
		logger.Warn("circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	})

	return &CatalogAdapter{
		client:  client,
		retrier: retry.CatalogRetrier(),
		breaker: breaker,
		logger:  logger,
	}
}

// CourseExists reports whether the catalog knows the course.
// A missing course is a definitive answer, not an error.
func (a *CatalogAdapter) CourseExists(ctx context.Context, courseID shared.CourseID) (bool, error) {
	_, err := a.GetCourse(ctx, courseID)
	if err != nil {
		if shared.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetCourse fetches course details from the catalog.
func (a *CatalogAdapter) GetCourse(ctx context.Context, courseID shared.CourseID) (*course.Info, error) {
	dto, err := a.fetch(ctx, courseID)
	if err != nil {
		return nil, err
	}

	unitCount := dto.UnitCount
	if unitCount == 0 && len(dto.Units) > 0 {
		unitCount = len(dto.Units)
	}

	return &course.Info{
		ID:        shared.CourseID(dto.ID),
		Title:     dto.Title,
		UnitCount: unitCount,
	}, nil
}

// GetUnitCount returns the number of trackable units in a course.
func (a *CatalogAdapter) GetUnitCount(ctx context.Context, courseID shared.CourseID) (int, error) {
	info, err := a.GetCourse(ctx, courseID)
	if err != nil {
		return 0, err
	}
	return info.UnitCount, nil
}

// fetch runs a single catalog lookup through the circuit breaker and retrier.
// A not-found answer is a healthy response and must not trip the breaker.
func (a *CatalogAdapter) fetch(ctx context.Context, courseID shared.CourseID) (*catalog.CourseDTO, error) {
	var dto *catalog.CourseDTO
	var notFound error

	err := a.breaker.Execute(ctx, func(ctx context.Context) error {
		return a.retrier.Do(ctx, func(ctx context.Context) error {
			result, err := a.client.GetCourse(ctx, courseID.Int64())
			if err != nil {
				if shared.IsNotFound(err) {
					notFound = err
					return nil
				}
				if shared.IsRetryable(err) {
					return retry.Retryable(err)
				}
				return retry.Permanent(err)
			}
			dto = result
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if notFound != nil {
		return nil, notFound
	}

	return dto, nil
}

var _ course.Catalog = (*CatalogAdapter)(nil)
