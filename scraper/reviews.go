package scraper

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/flarexio/marketfit/opportunity"
)

type Store interface {
	Find(ctx context.Context, name string) (*opportunity.App, error)
	Reviews(ctx context.Context, app *opportunity.App) ([]*opportunity.Opportunity, error)
}

func NewReviews(android Store, ios Store, log *zap.Logger) *Reviews {
	return &Reviews{
		stores: map[opportunity.Platform]Store{
			opportunity.Android: android,
			opportunity.IOS:     ios,
		},
		log: log.With(
			zap.String("scraper", "reviews"),
		),
	}
}

type Reviews struct {
	stores map[opportunity.Platform]Store
	log    *zap.Logger
}

// Reviews resolves the app in the store of the given platform and returns its
// newest reviews. A store that cannot be reached counts as the app not being found.
func (r *Reviews) Reviews(ctx context.Context, name string, platform opportunity.Platform) ([]*opportunity.Opportunity, error) {
	store, ok := r.stores[platform]
	if !ok {
		store = r.stores[opportunity.Android]
		platform = opportunity.Android
	}

	log := r.log.With(
		zap.String("app", name),
		zap.String("platform", string(platform)),
	)

	app, err := store.Find(ctx, name)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if !errors.Is(err, opportunity.ErrAppNotFound) {
			log.Error("app lookup failed", zap.Error(err))
		}

		return nil, opportunity.ErrAppNotFound
	}

	log = log.With(
		zap.String("app_id", app.ID),
		zap.String("title", app.Title),
	)

	opportunities, err := store.Reviews(ctx, app)
	if err != nil {
		log.Error("review scraping failed", zap.Error(err))
		return make([]*opportunity.Opportunity, 0), nil
	}

	log.Info("reviews fetched", zap.Int("count", len(opportunities)))
	return opportunities, nil
}
