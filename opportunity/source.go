package opportunity

import "context"

type StoryScraper interface {
	Stories(ctx context.Context) ([]*Opportunity, error)
}

type SubredditScraper interface {
	Subreddits(ctx context.Context, subreddits []string) ([]*Opportunity, error)
}

type ReviewScraper interface {
	// Reviews returns ErrAppNotFound when the app cannot be resolved in the store.
	Reviews(ctx context.Context, appName string, platform Platform) ([]*Opportunity, error)
}

type Analyzer interface {
	GenerateIdeas(ctx context.Context, items []*Opportunity) ([]*Idea, error)
}
