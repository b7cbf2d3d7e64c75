package aggregate

import (
	"context"

	"github.com/david/assembly-tracker/internal/models"
	"golang.org/x/sync/errgroup"
)

// DetailEnricher resolves the detail pair of one bill. It never fails.
type DetailEnricher interface {
	Enrich(ctx context.Context, billID string) models.Detail
}

var missingID = models.Detail{Details: models.DetailMissingID, Summary: models.SummaryUnavailable}

// enrichEach resolves ids concurrently and returns details in the same
// order; an empty id maps to the missing-id placeholder without a lookup.
func enrichEach(ctx context.Context, enricher DetailEnricher, ids []string) []models.Detail {
	details := make([]models.Detail, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		if id == "" {
			details[i] = missingID
			continue
		}
		g.Go(func() error {
			details[i] = enricher.Enrich(ctx, id)
			return nil
		})
	}
	_ = g.Wait()
	return details
}
