package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/flarexio/marketfit/conf"
	"github.com/flarexio/marketfit/opportunity"
	"github.com/flarexio/marketfit/security"
)

const RedditBaseURL = "https://www.reddit.com"

func NewReddit(client *Client, cfg conf.Reddit, log *zap.Logger) *Reddit {
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 3
	}

	postLimit := cfg.PostLimit
	if postLimit <= 0 {
		postLimit = 25
	}

	return &Reddit{
		client:    client,
		baseURL:   RedditBaseURL,
		attempts:  attempts,
		postLimit: postLimit,
		log: log.With(
			zap.String("scraper", "reddit"),
		),
	}
}

type Reddit struct {
	client    *Client
	baseURL   string
	attempts  int
	postLimit int
	log       *zap.Logger
}

func (r *Reddit) WithBaseURL(baseURL string) *Reddit {
	r.baseURL = strings.TrimSuffix(baseURL, "/")
	return r
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Selftext  string `json:"selftext"`
	Permalink string `json:"permalink"`
	Stickied  bool   `json:"stickied"`
}

// Subreddits collects the hot posts of each subreddit. A subreddit that keeps
// failing is skipped, so the result may be partial.
func (r *Reddit) Subreddits(ctx context.Context, subreddits []string) ([]*opportunity.Opportunity, error) {
	opportunities := make([]*opportunity.Opportunity, 0)

	for _, sub := range subreddits {
		sub = strings.TrimSpace(sub)
		if sub == "" {
			continue
		}

		posts, err := r.subreddit(ctx, sub)
		if err != nil {
			if ctx.Err() != nil {
				return opportunities, ctx.Err()
			}

			r.log.Error("subreddit skipped",
				zap.String("subreddit", sub),
				zap.Int("attempts", r.attempts),
				zap.Error(err),
			)
			continue
		}

		opportunities = append(opportunities, posts...)
	}

	return opportunities, nil
}

func (r *Reddit) subreddit(ctx context.Context, sub string) ([]*opportunity.Opportunity, error) {
	rawURL := r.baseURL + "/r/" + url.PathEscape(sub) + "/hot.json?limit=" + strconv.Itoa(r.postLimit)

	log := r.log.With(
		zap.String("subreddit", sub),
		zap.String("url", rawURL),
	)

	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		var listing redditListing
		err := r.client.GetJSON(ctx, rawURL, &listing)
		if err == nil {
			log.Info("posts fetched",
				zap.Int("attempt", attempt),
				zap.Int("posts", len(listing.Data.Children)),
			)

			return r.convert(sub, &listing), nil
		}

		lastErr = err

		if security.IsBlocked(err) {
			log.Warn("url blocked, not retried", zap.Error(err))
			return nil, err
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests {
			log.Warn("rate limited", zap.Int("attempt", attempt))
		} else {
			log.Warn("fetch failed", zap.Int("attempt", attempt), zap.Error(err))
		}

		if attempt < r.attempts {
			if err := r.client.Wait(ctx, 1*time.Second, 5*time.Second); err != nil {
				return nil, err
			}
		}
	}

	return nil, lastErr
}

func (r *Reddit) convert(sub string, listing *redditListing) []*opportunity.Opportunity {
	opportunities := make([]*opportunity.Opportunity, 0, len(listing.Data.Children))

	for _, child := range listing.Data.Children {
		post := child.Data

		if post.Stickied || len([]rune(post.Title)) < 10 {
			continue
		}

		opportunities = append(opportunities, &opportunity.Opportunity{
			ID:     post.ID,
			Text:   "[Reddit r/" + sub + "] " + post.Title + " - " + opportunity.Truncate(post.Selftext, 200),
			URL:    "https://reddit.com" + post.Permalink,
			Source: "Reddit r/" + sub,
		})
	}

	return opportunities
}
