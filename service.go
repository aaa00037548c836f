package marketfit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/flarexio/core/model"
	"github.com/flarexio/marketfit/opportunity"
)

type Service interface {
	GenerateIdeas(ctx context.Context, req GenerateRequest) (*opportunity.Report, error)
	Report(id opportunity.ReportID) (*opportunity.Report, error)
	Reports(limit int) ([]*opportunity.Report, error)
	DeleteReport(id opportunity.ReportID) error
}

type ServiceMiddleware func(Service) Service

// GenerateRequest selects where pain points are collected from.
type GenerateRequest struct {
	Source     string   `json:"source"`
	Subreddits []string `json:"subreddits"`
	AppName    string   `json:"app_name"`
	Platform   string   `json:"platform"`
}

// AppNotFoundError is returned when a reviews run names an app no store knows.
type AppNotFoundError struct {
	AppName  string
	Platform opportunity.Platform
}

func (e *AppNotFoundError) Error() string {
	return fmt.Sprintf("app '%s' not found in %s store", e.AppName, e.Platform)
}

func (e *AppNotFoundError) Unwrap() error {
	return opportunity.ErrAppNotFound
}

type Sources struct {
	HackerNews opportunity.StoryScraper
	Reddit     opportunity.SubredditScraper
	Reviews    opportunity.ReviewScraper
}

type Config struct {
	DefaultSubreddits []string
	CacheTTL          time.Duration
}

func NewService(sources Sources, analyzer opportunity.Analyzer, reports opportunity.Repository, cfg Config) Service {
	defaults := cfg.DefaultSubreddits
	if len(defaults) == 0 {
		defaults = []string{"SaaS", "startups"}
	}

	svc := &service{
		sources:  sources,
		analyzer: analyzer,
		reports:  reports,
		defaults: defaults,
	}

	if cfg.CacheTTL > 0 {
		svc.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}

	return svc
}

type service struct {
	sources  Sources
	analyzer opportunity.Analyzer
	reports  opportunity.Repository
	defaults []string
	cache    *cache.Cache
}

func loggerFrom(ctx context.Context) *zap.Logger {
	if log, ok := ctx.Value(model.Logger).(*zap.Logger); ok {
		return log
	}

	return zap.L()
}

func (svc *service) GenerateIdeas(ctx context.Context, req GenerateRequest) (*opportunity.Report, error) {
	source, err := opportunity.ParseSource(req.Source)
	if err != nil {
		return nil, err
	}

	log := loggerFrom(ctx).With(
		zap.String("service", "marketfit"),
		zap.String("source", source.String()),
	)

	report := opportunity.NewReport(source)
	collected := make([]*opportunity.Opportunity, 0)

	if source.Includes(opportunity.HackerNews) {
		items, err := svc.cached(ctx, "hn", func() ([]*opportunity.Opportunity, error) {
			return svc.sources.HackerNews.Stories(ctx)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			log.Error("hacker news scrape failed", zap.Error(err))
		}

		collected = append(collected, items...)
	}

	if source.Includes(opportunity.Reddit) {
		subs := cleanSubreddits(req.Subreddits)
		if len(subs) == 0 {
			if source == opportunity.Reddit {
				return nil, opportunity.ErrEmptySubreddits
			}

			subs = svc.defaults
		}

		report.Subreddits = subs

		key := "reddit:" + strings.ToLower(strings.Join(subs, ","))
		items, err := svc.cached(ctx, key, func() ([]*opportunity.Opportunity, error) {
			return svc.sources.Reddit.Subreddits(ctx, subs)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			log.Error("reddit scrape failed", zap.Error(err))
		}

		collected = append(collected, items...)
	}

	if source.Includes(opportunity.Reviews) {
		appName := strings.TrimSpace(req.AppName)
		if appName == "" {
			return nil, opportunity.ErrEmptyAppName
		}

		platform := opportunity.ParsePlatform(req.Platform)

		report.AppName = appName
		report.Platform = platform

		log.Info("collecting reviews",
			zap.String("app", appName),
			zap.String("platform", string(platform)),
		)

		key := "reviews:" + string(platform) + ":" + strings.ToLower(appName)
		items, err := svc.cached(ctx, key, func() ([]*opportunity.Opportunity, error) {
			return svc.sources.Reviews.Reviews(ctx, appName, platform)
		})
		if err != nil {
			if errors.Is(err, opportunity.ErrAppNotFound) {
				return nil, &AppNotFoundError{appName, platform}
			}

			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			log.Error("review scrape failed", zap.Error(err))
		}

		collected = append(collected, items...)
	}

	ideas, err := svc.analyzer.GenerateIdeas(ctx, collected)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		log.Error("idea generation failed",
			zap.Int("raw_count", len(collected)),
			zap.Error(err),
		)

		ideas = nil
	}

	report.Complete(len(collected), ideas)

	if err := svc.reports.Store(report); err != nil {
		return nil, err
	}

	return report, nil
}

// cached runs fetch unless a result for key is still fresh. Failures are not cached.
func (svc *service) cached(ctx context.Context, key string, fetch func() ([]*opportunity.Opportunity, error)) ([]*opportunity.Opportunity, error) {
	if svc.cache != nil {
		if v, ok := svc.cache.Get(key); ok {
			return v.([]*opportunity.Opportunity), nil
		}
	}

	items, err := fetch()
	if err != nil {
		return items, err
	}

	if svc.cache != nil {
		svc.cache.SetDefault(key, items)
	}

	return items, nil
}

func cleanSubreddits(subs []string) []string {
	cleaned := make([]string, 0, len(subs))
	for _, sub := range subs {
		sub = strings.TrimSpace(sub)
		if sub == "" {
			continue
		}

		cleaned = append(cleaned, sub)
	}

	return cleaned
}

func (svc *service) Report(id opportunity.ReportID) (*opportunity.Report, error) {
	return svc.reports.Find(id)
}

func (svc *service) Reports(limit int) ([]*opportunity.Report, error) {
	return svc.reports.List(limit)
}

func (svc *service) DeleteReport(id opportunity.ReportID) error {
	r, err := svc.reports.Find(id)
	if err != nil {
		return err
	}

	return svc.reports.Delete(r)
}
