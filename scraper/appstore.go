package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/flarexio/marketfit/conf"
	"github.com/flarexio/marketfit/opportunity"
)

const AppStoreBaseURL = "https://itunes.apple.com"

func NewAppStore(client *Client, cfg conf.Reviews, log *zap.Logger) *AppStore {
	return &AppStore{
		client:  client,
		baseURL: AppStoreBaseURL,
		country: cfg.Country,
		log: log.With(
			zap.String("scraper", "appstore"),
		),
	}
}

type AppStore struct {
	client  *Client
	baseURL string
	country string
	log     *zap.Logger
}

func (a *AppStore) WithBaseURL(baseURL string) *AppStore {
	a.baseURL = strings.TrimSuffix(baseURL, "/")
	return a
}

type itunesSearchResult struct {
	ResultCount int `json:"resultCount"`
	Results     []struct {
		TrackID      int64  `json:"trackId"`
		TrackName    string `json:"trackName"`
		TrackViewURL string `json:"trackViewUrl"`
	} `json:"results"`
}

func (a *AppStore) Find(ctx context.Context, name string) (*opportunity.App, error) {
	query := url.Values{}
	query.Set("term", name)
	query.Set("entity", "software")
	query.Set("limit", "1")

	var result itunesSearchResult
	if err := a.client.GetJSON(ctx, a.baseURL+"/search?"+query.Encode(), &result); err != nil {
		return nil, err
	}

	if result.ResultCount == 0 || len(result.Results) == 0 {
		return nil, opportunity.ErrAppNotFound
	}

	first := result.Results[0]

	return &opportunity.App{
		Platform: opportunity.IOS,
		ID:       strconv.FormatInt(first.TrackID, 10),
		Title:    first.TrackName,
		URL:      first.TrackViewURL,
	}, nil
}

type label struct {
	Label string `json:"label"`
}

type appStoreEntry struct {
	Author  json.RawMessage `json:"author"`
	ID      label           `json:"id"`
	Title   label           `json:"title"`
	Content label           `json:"content"`
	Rating  label           `json:"im:rating"`
}

type appStoreFeed struct {
	Feed struct {
		Entry json.RawMessage `json:"entry"`
	} `json:"feed"`
}

func (a *AppStore) Reviews(ctx context.Context, app *opportunity.App) ([]*opportunity.Opportunity, error) {
	rawURL := a.baseURL + "/" + url.PathEscape(a.country) +
		"/rss/customerreviews/id=" + url.PathEscape(app.ID) + "/sortBy=mostRecent/json"

	var feed appStoreFeed
	if err := a.client.GetJSON(ctx, rawURL, &feed); err != nil {
		return nil, err
	}

	entries, err := decodeEntries(feed.Feed.Entry)
	if err != nil {
		return nil, err
	}

	opportunities := make([]*opportunity.Opportunity, 0, len(entries))
	for _, e := range entries {
		// the first entry can be the app itself, which has no author
		if len(e.Author) == 0 || string(e.Author) == "null" {
			continue
		}

		rating := e.Rating.Label
		if rating == "" {
			rating = "?"
		}

		full := e.Title.Label + " - " + e.Content.Label
		if len([]rune(full)) <= 10 {
			continue
		}

		opportunities = append(opportunities, &opportunity.Opportunity{
			ID:     e.ID.Label,
			Text:   "[iOS Review " + rating + "/5] " + opportunity.Truncate(full, 300),
			URL:    app.URL,
			Source: "App Store (" + app.Title + ")",
		})
	}

	return opportunities, nil
}

// decodeEntries accepts both an array of entries and a single entry object.
func decodeEntries(raw json.RawMessage) ([]appStoreEntry, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	if raw[0] == '{' {
		var entry appStoreEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, err
		}
		return []appStoreEntry{entry}, nil
	}

	var entries []appStoreEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
