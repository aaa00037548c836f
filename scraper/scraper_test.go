package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flarexio/marketfit/conf"
	"github.com/flarexio/marketfit/opportunity"
)

func newTestClient() *Client {
	return NewClient(ClientConfig{DisableJitter: true})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestHackerNewsStories(t *testing.T) {
	items := map[string]any{
		"1": map[string]any{"id": 1, "title": "How to manage invoices as a freelancer?", "text": "I keep losing track"},
		"2": map[string]any{"id": 2, "title": "Show HN: my weekend project", "text": ""},
		"4": map[string]any{"id": 4, "title": "Ask HN: Jira", "text": "Ticket triage SUCKS " + strings.Repeat("x", 300)},
		"5": map[string]any{"id": 5, "title": "Any alternative to Notion?", "text": ""},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/askstories.json" {
			writeJSON(w, []int{1, 2, 3, 4, 5})
			return
		}

		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/item/"), ".json")
		item, ok := items[id]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, item)
	}))
	defer srv.Close()

	hn := NewHackerNews(newTestClient(), conf.HackerNews{
		Limit:    4,
		Keywords: []string{"how to", "alternative", "wish", "sucks", "problem", "hard to"},
	}, zap.NewNop()).WithBaseURL(srv.URL)

	stories, err := hn.Stories(context.Background())
	require.NoError(t, err)
	require.Len(t, stories, 2)

	assert := assert.New(t)
	assert.Equal("1", stories[0].ID)
	assert.Equal("[HN] How to manage invoices as a freelancer? - I keep losing track", stories[0].Text)
	assert.Equal("https://news.ycombinator.com/item?id=1", stories[0].URL)
	assert.Equal("Hacker News", stories[0].Source)

	assert.Equal("4", stories[1].ID)
	assert.Equal("[HN] Ask HN: Jira - ", stories[1].Text[:len("[HN] Ask HN: Jira - ")])
	assert.Len([]rune(stories[1].Text), len("[HN] Ask HN: Jira - ")+200)
}

func TestHackerNewsIndexFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	hn := NewHackerNews(newTestClient(), conf.HackerNews{Keywords: []string{"problem"}}, zap.NewNop()).
		WithBaseURL(srv.URL)

	_, err := hn.Stories(context.Background())

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
}

func TestHackerNewsDefaultKeywords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/askstories.json":
			writeJSON(w, []int{7, 8})
		case "/item/7.json":
			writeJSON(w, map[string]any{"id": 7, "title": "I wish invoicing was easier"})
		default:
			writeJSON(w, map[string]any{"id": 8, "title": "Ask HN: favourite books"})
		}
	}))
	defer srv.Close()

	hn := NewHackerNews(newTestClient(), conf.HackerNews{}, zap.NewNop()).WithBaseURL(srv.URL)

	stories, err := hn.Stories(context.Background())
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, "7", stories[0].ID)
}

func redditPayload(posts ...map[string]any) map[string]any {
	children := make([]map[string]any, len(posts))
	for i, p := range posts {
		children[i] = map[string]any{"data": p}
	}
	return map[string]any{"data": map[string]any{"children": children}}
}

func TestRedditSubreddits(t *testing.T) {
	var mu sync.Mutex
	calls := make(map[string]int)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls[r.URL.Path]++
		n := calls[r.URL.Path]
		mu.Unlock()

		if r.Header.Get("User-Agent") == "" {
			w.WriteHeader(http.StatusForbidden)
			return
		}

		switch r.URL.Path {
		case "/r/SaaS/hot.json":
			assert.Equal(t, "25", r.URL.Query().Get("limit"))
			writeJSON(w, redditPayload(
				map[string]any{"id": "a", "title": "Weekly thread, read the rules", "stickied": true},
				map[string]any{"id": "b", "title": "Too short"},
				map[string]any{"id": "c", "title": "Billing software is a nightmare", "selftext": "Every tool I tried", "permalink": "/r/SaaS/comments/c/billing/"},
			))

		case "/r/flaky/hot.json":
			if n == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			writeJSON(w, redditPayload(
				map[string]any{"id": "d", "title": "Scheduling across time zones is hard", "permalink": "/r/flaky/comments/d/"},
			))

		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	reddit := NewReddit(newTestClient(), conf.Reddit{Attempts: 3, PostLimit: 25}, zap.NewNop()).
		WithBaseURL(srv.URL)

	posts, err := reddit.Subreddits(context.Background(), []string{" SaaS ", "", "flaky", "dead"})
	require.NoError(t, err)
	require.Len(t, posts, 2)

	assert := assert.New(t)
	assert.Equal("c", posts[0].ID)
	assert.Equal("[Reddit r/SaaS] Billing software is a nightmare - Every tool I tried", posts[0].Text)
	assert.Equal("https://reddit.com/r/SaaS/comments/c/billing/", posts[0].URL)
	assert.Equal("Reddit r/SaaS", posts[0].Source)

	assert.Equal("d", posts[1].ID)
	assert.Equal("Reddit r/flaky", posts[1].Source)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(1, calls["/r/SaaS/hot.json"])
	assert.Equal(2, calls["/r/flaky/hot.json"])
	assert.Equal(3, calls["/r/dead/hot.json"])
}

func TestRedditCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	reddit := NewReddit(newTestClient(), conf.Reddit{}, zap.NewNop()).WithBaseURL(srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := reddit.Subreddits(ctx, []string{"SaaS"})
	assert.ErrorIs(t, err, context.Canceled)
}

func playBatchResponse(t *testing.T, reviews []any) string {
	inner, err := json.Marshal([]any{reviews, nil})
	require.NoError(t, err)

	outer, err := json.Marshal([]any{
		[]any{"wrb.fr", "UsvDTd", string(inner), nil, nil, nil, "generic"},
		[]any{"di", 42},
	})
	require.NoError(t, err)

	return ")]}'\n\n" + string(outer)
}

func TestPlayStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/store/search":
			assert.Equal(t, "todo list", r.URL.Query().Get("q"))
			fmt.Fprint(w, `<html><body>
				<a href="/store/apps/collection">More</a>
				<a href="/store/apps/details?id=com.example.todo">Todo</a>
				<a href="/store/apps/details?id=com.example.other">Other</a>
			</body></html>`)

		case "/store/apps/details":
			assert.Equal(t, "com.example.todo", r.URL.Query().Get("id"))
			fmt.Fprint(w, `<html><body><h1><span>Todo Pro</span></h1></body></html>`)

		case "/_/PlayStoreUi/data/batchexecute":
			assert.NoError(t, r.ParseForm())
			assert.Contains(t, r.PostForm.Get("f.req"), "com.example.todo")
			assert.Contains(t, r.PostForm.Get("f.req"), "UsvDTd")

			fmt.Fprint(w, playBatchResponse(t, []any{
				[]any{"gp:1", []any{"Ann"}, 1, nil, "Sync keeps failing and I lose my tasks"},
				[]any{"gp:2", []any{"Bob"}, 5, nil, "great"},
			}))

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	store := NewPlayStore(newTestClient(), conf.Reviews{Count: 40, Lang: "en", Country: "us"}, zap.NewNop()).
		WithBaseURL(srv.URL)

	ctx := context.Background()

	app, err := store.Find(ctx, "todo list")
	require.NoError(t, err)

	assert := assert.New(t)
	assert.Equal(opportunity.Android, app.Platform)
	assert.Equal("com.example.todo", app.ID)
	assert.Equal("Todo Pro", app.Title)
	assert.Equal(srv.URL+"/store/apps/details?id=com.example.todo", app.URL)

	reviews, err := store.Reviews(ctx, app)
	require.NoError(t, err)
	require.Len(t, reviews, 1)

	assert.Equal("gp:1", reviews[0].ID)
	assert.Equal("[Android Review] Sync keeps failing and I lose my tasks", reviews[0].Text)
	assert.Equal("Google Play (Todo Pro)", reviews[0].Source)
	assert.Equal(app.URL, reviews[0].URL)
}

func TestPlayStoreNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>No results</p></body></html>`)
	}))
	defer srv.Close()

	store := NewPlayStore(newTestClient(), conf.Reviews{}, zap.NewNop()).WithBaseURL(srv.URL)

	_, err := store.Find(context.Background(), "nothing")
	assert.ErrorIs(t, err, opportunity.ErrAppNotFound)
}

func TestParsePlayReviewsEmpty(t *testing.T) {
	reviews, err := parsePlayReviews([]byte(")]}'\n\n" + `[["wrb.fr","UsvDTd",null,null,null,null,"generic"]]`))
	assert.NoError(t, err)
	assert.Empty(t, reviews)
}

func TestAppStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/search":
			assert.Equal(t, "software", r.URL.Query().Get("entity"))
			writeJSON(w, map[string]any{
				"resultCount": 1,
				"results": []any{map[string]any{
					"trackId":      int64(284882215),
					"trackName":    "Facebook",
					"trackViewUrl": "https://apps.apple.com/us/app/facebook/id284882215",
				}},
			})

		case r.URL.Path == "/us/rss/customerreviews/id=284882215/sortBy=mostRecent/json":
			writeJSON(w, map[string]any{
				"feed": map[string]any{
					"entry": []any{
						map[string]any{"id": map[string]any{"label": "app"}, "title": map[string]any{"label": "Facebook"}},
						map[string]any{
							"author":    map[string]any{"name": map[string]any{"label": "someone"}},
							"id":        map[string]any{"label": "r1"},
							"title":     map[string]any{"label": "Too many ads"},
							"content":   map[string]any{"label": "Feed is unusable now"},
							"im:rating": map[string]any{"label": "2"},
						},
						map[string]any{
							"author":  map[string]any{},
							"id":      map[string]any{"label": "r2"},
							"title":   map[string]any{"label": "ok"},
							"content": map[string]any{"label": "ok"},
						},
					},
				},
			})

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	store := NewAppStore(newTestClient(), conf.Reviews{Country: "us"}, zap.NewNop()).WithBaseURL(srv.URL)

	ctx := context.Background()

	app, err := store.Find(ctx, "facebook")
	require.NoError(t, err)

	assert := assert.New(t)
	assert.Equal(opportunity.IOS, app.Platform)
	assert.Equal("284882215", app.ID)
	assert.Equal("Facebook", app.Title)

	reviews, err := store.Reviews(ctx, app)
	require.NoError(t, err)
	require.Len(t, reviews, 1)

	assert.Equal("r1", reviews[0].ID)
	assert.Equal("[iOS Review 2/5] Too many ads - Feed is unusable now", reviews[0].Text)
	assert.Equal("App Store (Facebook)", reviews[0].Source)
}

func TestAppStoreNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"resultCount": 0, "results": []any{}})
	}))
	defer srv.Close()

	store := NewAppStore(newTestClient(), conf.Reviews{Country: "us"}, zap.NewNop()).WithBaseURL(srv.URL)

	_, err := store.Find(context.Background(), "nothing")
	assert.ErrorIs(t, err, opportunity.ErrAppNotFound)
}

func TestDecodeSingleEntry(t *testing.T) {
	entries, err := decodeEntries(json.RawMessage(`{"author":{},"id":{"label":"x"},"title":{"label":"t"},"content":{"label":"c"}}`))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "x", entries[0].ID.Label)

	entries, err = decodeEntries(nil)
	assert.NoError(t, err)
	assert.Empty(t, entries)
}

type fakeStore struct {
	app     *opportunity.App
	findErr error
	reviews []*opportunity.Opportunity
	err     error
}

func (s *fakeStore) Find(ctx context.Context, name string) (*opportunity.App, error) {
	return s.app, s.findErr
}

func (s *fakeStore) Reviews(ctx context.Context, app *opportunity.App) ([]*opportunity.Opportunity, error) {
	return s.reviews, s.err
}

func TestReviewsRouting(t *testing.T) {
	android := &fakeStore{
		app:     &opportunity.App{ID: "com.a"},
		reviews: []*opportunity.Opportunity{{ID: "android"}},
	}
	ios := &fakeStore{
		findErr: fmt.Errorf("connection reset"),
	}

	reviews := NewReviews(android, ios, zap.NewNop())
	ctx := context.Background()

	items, err := reviews.Reviews(ctx, "app", opportunity.Android)
	require.NoError(t, err)
	assert.Equal(t, "android", items[0].ID)

	_, err = reviews.Reviews(ctx, "app", opportunity.IOS)
	assert.ErrorIs(t, err, opportunity.ErrAppNotFound)

	android.err = fmt.Errorf("rpc failed")
	items, err = reviews.Reviews(ctx, "app", opportunity.Android)
	assert.NoError(t, err)
	assert.Empty(t, items)
}
