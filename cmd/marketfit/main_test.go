package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/flarexio/marketfit"
	"github.com/flarexio/marketfit/conf"
	"github.com/flarexio/marketfit/opportunity"
	"github.com/flarexio/marketfit/persistence"
)

type staticSource struct {
	items []*opportunity.Opportunity
}

func (s *staticSource) Stories(ctx context.Context) ([]*opportunity.Opportunity, error) {
	return s.items, nil
}

func (s *staticSource) Subreddits(ctx context.Context, subs []string) ([]*opportunity.Opportunity, error) {
	return s.items, nil
}

func (s *staticSource) Reviews(ctx context.Context, appName string, platform opportunity.Platform) ([]*opportunity.Opportunity, error) {
	return nil, opportunity.ErrAppNotFound
}

type echoAnalyzer struct{}

func (echoAnalyzer) GenerateIdeas(ctx context.Context, items []*opportunity.Opportunity) ([]*opportunity.Idea, error) {
	ideas := make([]*opportunity.Idea, len(items))
	for i, item := range items {
		ideas[i] = &opportunity.Idea{
			Name:         "Idea " + item.ID,
			Pitch:        "Solves: " + item.Text,
			SourceText:   item.Text,
			SourceURL:    item.URL,
			SourceOrigin: item.Source,
		}
	}

	return ideas, nil
}

type marketfitTestSuite struct {
	suite.Suite
	cfg     *conf.Config
	reports opportunity.Repository
	router  *gin.Engine
}

func (suite *marketfitTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)

	conf.Path = "../.."
	conf.Host = "127.0.0.1"
	conf.Port = 5000

	cfg, err := conf.LoadConfig()
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	cfg.Persistence.InMem = true
	conf.ReplaceGlobals(cfg)

	reports, err := persistence.NewReportRepository(cfg.Persistence)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	source := &staticSource{
		items: []*opportunity.Opportunity{
			{ID: "1", Text: "[HN] Ask HN: Is there a simple uptime monitor?", URL: "https://news.ycombinator.com/item?id=1", Source: "HackerNews"},
		},
	}

	sources := marketfit.Sources{
		HackerNews: source,
		Reddit:     source,
		Reviews:    source,
	}

	log := zap.NewNop()
	svc := newService(cfg, sources, echoAnalyzer{}, reports, log)

	suite.cfg = cfg
	suite.reports = reports
	suite.router = newRouter(cfg, newEndpoints(svc), log)
}

func (suite *marketfitTestSuite) TearDownSuite() {
	if suite.reports != nil {
		suite.reports.Close()
	}
}

func (suite *marketfitTestSuite) request(method, path, remote string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = remote + ":40000"

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *marketfitTestSuite) TestGenerateAndFetchReport() {
	w := suite.request(http.MethodPost, "/generate-ideas", "192.0.2.1", []byte(`{"source":"hn"}`))
	if !suite.Equal(http.StatusOK, w.Code) {
		return
	}

	var resp marketfit.GenerateIdeasResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal(1, resp.RawCount)
	if suite.Len(resp.Ideas, 1) {
		suite.Equal("HackerNews", resp.Ideas[0].SourceOrigin)
	}

	w = suite.request(http.MethodGet, "/reports/"+resp.ReportID.String(), "192.0.2.1", nil)
	suite.Equal(http.StatusOK, w.Code)
}

func (suite *marketfitTestSuite) TestAppNotFound() {
	body := []byte(`{"source":"reviews","app_name":"Ghost","platform":"android"}`)
	w := suite.request(http.MethodPost, "/generate-ideas", "192.0.2.2", body)

	suite.Equal(http.StatusNotFound, w.Code)
	suite.JSONEq(`{"error":"App 'Ghost' not found in android store(s)."}`, w.Body.String())
}

func (suite *marketfitTestSuite) TestGenerateRateLimit() {
	limit := suite.cfg.RateLimit.Generate.Requests

	for range limit {
		w := suite.request(http.MethodPost, "/generate-ideas", "192.0.2.3", []byte(`{"source":"hn"}`))
		suite.Equal(http.StatusOK, w.Code)
	}

	w := suite.request(http.MethodPost, "/generate-ideas", "192.0.2.3", []byte(`{"source":"hn"}`))
	suite.Equal(http.StatusTooManyRequests, w.Code)
}

func (suite *marketfitTestSuite) TestDefaultRateLimit() {
	limit := suite.cfg.RateLimit.Default.Requests

	for range limit {
		w := suite.request(http.MethodGet, "/healthz", "192.0.2.4", nil)
		suite.Equal(http.StatusOK, w.Code)
	}

	w := suite.request(http.MethodGet, "/healthz", "192.0.2.4", nil)
	suite.Equal(http.StatusTooManyRequests, w.Code)
}

func (suite *marketfitTestSuite) TestGenerateLimitReplacesDefault() {
	for range suite.cfg.RateLimit.Generate.Requests {
		w := suite.request(http.MethodPost, "/generate-ideas", "192.0.2.7", []byte(`{"source":"hn"}`))
		suite.Equal(http.StatusOK, w.Code)
	}

	for range suite.cfg.RateLimit.Default.Requests {
		w := suite.request(http.MethodGet, "/healthz", "192.0.2.7", nil)
		suite.Equal(http.StatusOK, w.Code)
	}

	w := suite.request(http.MethodGet, "/healthz", "192.0.2.7", nil)
	suite.Equal(http.StatusTooManyRequests, w.Code)
}

func (suite *marketfitTestSuite) TestMetrics() {
	w := suite.request(http.MethodGet, "/metrics", "192.0.2.5", nil)

	suite.Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), "go_goroutines")
}

func (suite *marketfitTestSuite) TestNotFound() {
	w := suite.request(http.MethodGet, "/api/unknown", "192.0.2.6", nil)

	suite.Equal(http.StatusNotFound, w.Code)
	suite.JSONEq(`{"error":"Resource Not Found"}`, w.Body.String())
}

func TestMarketfitTestSuite(t *testing.T) {
	suite.Run(t, new(marketfitTestSuite))
}
