package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/flarexio/marketfit/conf"
	"github.com/flarexio/marketfit/opportunity"
)

const PlayStoreBaseURL = "https://play.google.com"

// sort order used by the reviews rpc
const playSortNewest = 2

var playAppIDPattern = regexp.MustCompile(`details\?id=([a-zA-Z0-9_.]+)`)

func NewPlayStore(client *Client, cfg conf.Reviews, log *zap.Logger) *PlayStore {
	count := cfg.Count
	if count <= 0 {
		count = 40
	}

	return &PlayStore{
		client:  client,
		baseURL: PlayStoreBaseURL,
		count:   count,
		lang:    cfg.Lang,
		country: cfg.Country,
		log: log.With(
			zap.String("scraper", "playstore"),
		),
	}
}

type PlayStore struct {
	client  *Client
	baseURL string
	count   int
	lang    string
	country string
	log     *zap.Logger
}

func (p *PlayStore) WithBaseURL(baseURL string) *PlayStore {
	p.baseURL = strings.TrimSuffix(baseURL, "/")
	return p
}

// Find resolves the first app the store search page lists for name.
func (p *PlayStore) Find(ctx context.Context, name string) (*opportunity.App, error) {
	query := url.Values{}
	query.Set("q", name)
	query.Set("c", "apps")

	body, err := p.client.GetBody(ctx, p.baseURL+"/store/search?"+query.Encode())
	if err != nil {
		return nil, err
	}

	id, err := findPlayAppID(body)
	if err != nil {
		return nil, err
	}

	log := p.log.With(zap.String("app_id", id))
	log.Info("app found")

	app := &opportunity.App{
		Platform: opportunity.Android,
		ID:       id,
		Title:    name,
		URL:      p.detailsURL(id),
	}

	title, err := p.title(ctx, id)
	if err != nil {
		log.Warn("title lookup failed", zap.Error(err))
	} else if title != "" {
		app.Title = title
	}

	return app, nil
}

func (p *PlayStore) detailsURL(id string) string {
	return p.baseURL + "/store/apps/details?id=" + url.QueryEscape(id)
}

func findPlayAppID(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	var id string
	doc.Find(`a[href*="details?id="]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if m := playAppIDPattern.FindStringSubmatch(href); m != nil {
			id = m[1]
			return false
		}
		return true
	})

	if id != "" {
		return id, nil
	}

	// ids also appear inside inline scripts
	if m := playAppIDPattern.FindSubmatch(body); m != nil {
		return string(m[1]), nil
	}

	return "", opportunity.ErrAppNotFound
}

func (p *PlayStore) title(ctx context.Context, id string) (string, error) {
	query := url.Values{}
	query.Set("id", id)
	query.Set("hl", p.lang)
	query.Set("gl", p.country)

	body, err := p.client.GetBody(ctx, p.baseURL+"/store/apps/details?"+query.Encode())
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	if title := strings.TrimSpace(doc.Find("h1").First().Text()); title != "" {
		return title, nil
	}

	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		return strings.TrimSpace(strings.TrimSuffix(og, " - Apps on Google Play")), nil
	}

	return "", nil
}

// Reviews fetches the newest reviews through the store's batchexecute rpc.
func (p *PlayStore) Reviews(ctx context.Context, app *opportunity.App) ([]*opportunity.Opportunity, error) {
	inner := fmt.Sprintf(`[null,null,[2,%d,[%d,null,null],null,[]],[%s,7]]`,
		playSortNewest, p.count, strconv.Quote(app.ID))

	freq, err := json.Marshal([]any{[]any{[]any{"UsvDTd", inner, nil, "generic"}}})
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("f.req", string(freq))

	query := url.Values{}
	query.Set("hl", p.lang)
	query.Set("gl", p.country)

	rawURL := p.baseURL + "/_/PlayStoreUi/data/batchexecute?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{rawURL, resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	reviews, err := parsePlayReviews(body)
	if err != nil {
		return nil, err
	}

	opportunities := make([]*opportunity.Opportunity, 0, len(reviews))
	for _, r := range reviews {
		if len([]rune(r.content)) <= 10 {
			continue
		}

		opportunities = append(opportunities, &opportunity.Opportunity{
			ID:     r.id,
			Text:   "[Android Review] " + opportunity.Truncate(r.content, 300),
			URL:    app.URL,
			Source: "Google Play (" + app.Title + ")",
		})
	}

	return opportunities, nil
}

type playReview struct {
	id      string
	content string
}

var ErrUnexpectedPayload = errors.New("unexpected payload")

func parsePlayReviews(body []byte) ([]playReview, error) {
	body = bytes.TrimSpace(body)
	body = bytes.TrimPrefix(body, []byte(")]}'"))

	var outer []any
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&outer); err != nil {
		return nil, err
	}

	payload, ok := at(outer, 0, 2).(string)
	if !ok {
		// no reviews yet
		return nil, nil
	}

	var inner []any
	if err := json.Unmarshal([]byte(payload), &inner); err != nil {
		return nil, err
	}

	list, ok := at(inner, 0).([]any)
	if !ok {
		if at(inner, 0) == nil {
			return nil, nil
		}
		return nil, ErrUnexpectedPayload
	}

	reviews := make([]playReview, 0, len(list))
	for _, item := range list {
		id, _ := at(item, 0).(string)
		content, _ := at(item, 4).(string)

		reviews = append(reviews, playReview{id, content})
	}

	return reviews, nil
}

// at walks nested json arrays and returns nil for any missing step.
func at(v any, path ...int) any {
	for _, i := range path {
		arr, ok := v.([]any)
		if !ok || i < 0 || i >= len(arr) {
			return nil
		}
		v = arr[i]
	}
	return v
}
