package scraper

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/flarexio/marketfit/conf"
	"github.com/flarexio/marketfit/opportunity"
)

const HackerNewsBaseURL = "https://hacker-news.firebaseio.com/v0"

func NewHackerNews(client *Client, cfg conf.HackerNews, log *zap.Logger) *HackerNews {
	limit := cfg.Limit
	if limit <= 0 {
		limit = 20
	}

	source := cfg.Keywords
	if len(source) == 0 {
		source = conf.DefaultHackerNewsKeywords
	}

	keywords := make([]string, len(source))
	for i, k := range source {
		keywords[i] = strings.ToLower(k)
	}

	return &HackerNews{
		client:      client,
		baseURL:     HackerNewsBaseURL,
		limit:       limit,
		keywords:    keywords,
		concurrency: 8,
		log: log.With(
			zap.String("scraper", "hackernews"),
		),
	}
}

type HackerNews struct {
	client      *Client
	baseURL     string
	limit       int
	keywords    []string
	concurrency int
	log         *zap.Logger
}

func (hn *HackerNews) WithBaseURL(baseURL string) *HackerNews {
	hn.baseURL = strings.TrimSuffix(baseURL, "/")
	return hn
}

type hnItem struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Stories scans the latest Ask HN stories for ones that sound like a complaint.
func (hn *HackerNews) Stories(ctx context.Context) ([]*opportunity.Opportunity, error) {
	if err := hn.client.Wait(ctx, 500*time.Millisecond, 1500*time.Millisecond); err != nil {
		return nil, err
	}

	var ids []int64
	if err := hn.client.GetJSON(ctx, hn.baseURL+"/askstories.json", &ids); err != nil {
		return nil, err
	}

	if len(ids) > hn.limit {
		ids = ids[:hn.limit]
	}

	items := make([]*hnItem, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(hn.concurrency)

	for i, id := range ids {
		g.Go(func() error {
			url := hn.baseURL + "/item/" + strconv.FormatInt(id, 10) + ".json"

			var item *hnItem
			if err := hn.client.GetJSON(ctx, url, &item); err != nil {
				hn.log.Debug("item skipped",
					zap.Int64("id", id),
					zap.Error(err),
				)
				return nil
			}

			items[i] = item
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	opportunities := make([]*opportunity.Opportunity, 0)
	for _, item := range items {
		if item == nil || !hn.matches(item) {
			continue
		}

		id := strconv.FormatInt(item.ID, 10)
		opportunities = append(opportunities, &opportunity.Opportunity{
			ID:     id,
			Text:   "[HN] " + item.Title + " - " + opportunity.Truncate(item.Text, 200),
			URL:    "https://news.ycombinator.com/item?id=" + id,
			Source: "Hacker News",
		})
	}

	return opportunities, nil
}

func (hn *HackerNews) matches(item *hnItem) bool {
	title := strings.ToLower(item.Title)
	text := strings.ToLower(item.Text)

	for _, k := range hn.keywords {
		if strings.Contains(title, k) || strings.Contains(text, k) {
			return true
		}
	}

	return false
}
