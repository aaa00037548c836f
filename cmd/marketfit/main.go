package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	ginzap "github.com/gin-contrib/zap"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	"github.com/flarexio/core/model"
	"github.com/flarexio/marketfit"
	"github.com/flarexio/marketfit/analyzer"
	"github.com/flarexio/marketfit/conf"
	"github.com/flarexio/marketfit/opportunity"
	"github.com/flarexio/marketfit/persistence"
	"github.com/flarexio/marketfit/scraper"
	"github.com/flarexio/marketfit/security"

	transHTTP "github.com/flarexio/marketfit/transport/http"
	transPubSub "github.com/flarexio/marketfit/transport/pubsub"
)

var (
	Version   string = "0.0.0"
	BuildTime string
	GitCommit string
)

const description = "Turns real user complaints into Micro-SaaS ideas"

var versionCmd = &cli.Command{
	Name:    "version",
	Aliases: []string{"ver", "v"},
	Usage:   "Show version",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    "all",
			Aliases: []string{"a"},
			Usage:   "Show all infomation (include: Version, BuildTime, GitCommit)",
			Value:   false,
		},
	},
	Action: func(ctx *cli.Context) error {
		if !ctx.Bool("all") {
			fmt.Println(ctx.App.Version)
		} else {
			cli.ShowVersion(ctx)
		}
		return nil
	},
}

var generateCmd = &cli.Command{
	Name:  "generate",
	Usage: "Run one idea generation and print the report",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "source",
			Usage: "Where to look for pain points (all, hn, reddit, reviews)",
			Value: "all",
		},
		&cli.StringSliceFlag{
			Name:    "subreddit",
			Aliases: []string{"r"},
			Usage:   "Subreddit to scrape, repeatable",
		},
		&cli.StringFlag{
			Name:  "app",
			Usage: "App name for the reviews source",
		},
		&cli.StringFlag{
			Name:  "platform",
			Usage: "Store for the reviews source (android, ios)",
			Value: "android",
		},
		&cli.BoolFlag{
			Name:  "remote",
			Usage: "Send the request to a running service over NATS",
		},
	},
	Action: generate,
}

func main() {
	cli.VersionPrinter = func(cli *cli.Context) {
		fmt.Println("Version: " + cli.App.Version)
		fmt.Println("BuildTime: " + BuildTime)
		fmt.Println("GitCommit: " + GitCommit)
	}

	app := &cli.App{
		Name:     "marketfit",
		Usage:    description,
		Version:  Version,
		Commands: []*cli.Command{versionCmd, generateCmd},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "path",
				Usage:   "Specifies the working directory",
				EnvVars: []string{"MARKETFIT_PATH"},
			},
			&cli.StringFlag{
				Name:    "host",
				Usage:   "Specifies the HTTP service host",
				Value:   "127.0.0.1",
				EnvVars: []string{"MARKETFIT_HTTP_HOST"},
			},
			&cli.IntFlag{
				Name:    "port",
				Usage:   "Specifies the HTTP service port",
				Value:   5000,
				EnvVars: []string{"MARKETFIT_HTTP_PORT"},
			},
			&cli.StringFlag{
				Name:    "nats",
				Usage:   "NATS server url, the NATS transport is disabled when empty",
				EnvVars: []string{"NATS_URL"},
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setup(cli *cli.Context) (*conf.Config, *zap.Logger, error) {
	if err := conf.LoadEnv(cli); err != nil {
		return nil, nil, err
	}

	cfg, err := conf.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	conf.ReplaceGlobals(cfg)

	log, err := zap.NewDevelopment()
	if err != nil {
		return nil, nil, err
	}

	zap.ReplaceGlobals(log)

	return cfg, log, nil
}

func newSources(cfg conf.Scraping, log *zap.Logger) marketfit.Sources {
	guard := security.NewGuard(cfg.AllowedDomains, log)

	client := scraper.NewClient(scraper.ClientConfig{
		Timeout:     cfg.Timeout,
		Guard:       guard,
		DialControl: security.DialControl,
	})

	return marketfit.Sources{
		HackerNews: scraper.NewHackerNews(client, cfg.HackerNews, log),
		Reddit:     scraper.NewReddit(client, cfg.Reddit, log),
		Reviews: scraper.NewReviews(
			scraper.NewPlayStore(client, cfg.Reviews, log),
			scraper.NewAppStore(client, cfg.Reviews, log),
			log,
		),
	}
}

func newService(cfg *conf.Config, sources marketfit.Sources, llm opportunity.Analyzer, reports opportunity.Repository, log *zap.Logger) marketfit.Service {
	svc := marketfit.NewService(sources, llm, reports, marketfit.Config{
		DefaultSubreddits: cfg.Scraping.Reddit.DefaultSubreddits,
		CacheTTL:          cfg.Scraping.CacheTTL,
	})

	svc = marketfit.LoggingMiddleware(log)(svc)

	fieldKeys := []string{"method", "error"}
	svc = marketfit.InstrumentingMiddleware(
		kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: "marketfit",
			Subsystem: "service",
			Name:      "request_count",
			Help:      "Number of requests received.",
		}, fieldKeys),
		kitprometheus.NewSummaryFrom(stdprometheus.SummaryOpts{
			Namespace: "marketfit",
			Subsystem: "service",
			Name:      "request_latency_seconds",
			Help:      "Total duration of requests in seconds.",
		}, fieldKeys),
		kitprometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: "marketfit",
			Subsystem: "service",
			Name:      "ideas_per_report",
			Help:      "Number of ideas generated per report.",
			Buckets:   []float64{0, 1, 3, 5, 10, 20},
		}, []string{"source"}),
	)(svc)

	return svc
}

func newEndpoints(svc marketfit.Service) marketfit.EndpointSet {
	return marketfit.EndpointSet{
		GenerateIdeas: marketfit.GenerateIdeasEndpoint(svc),
		Report:        marketfit.ReportEndpoint(svc),
		Reports:       marketfit.ReportsEndpoint(svc),
		DeleteReport:  marketfit.DeleteReportEndpoint(svc),
	}
}

func newRouter(cfg *conf.Config, endpoints marketfit.EndpointSet, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.ContextWithFallback = true

	r.Use(ginzap.Ginzap(log, time.RFC3339, true))
	r.Use(ginzap.CustomRecoveryWithZap(log, true, transHTTP.RecoveryHandler))
	r.Use(func(c *gin.Context) {
		ctx := context.WithValue(c.Request.Context(), model.Logger, log)
		c.Request = c.Request.WithContext(ctx)
	})

	r.NoRoute(transHTTP.NotFoundHandler)
	r.NoMethod(transHTTP.NotFoundHandler)

	generateLimit := func(c *gin.Context) { c.Next() }
	if limits := cfg.RateLimit; limits.Enabled {
		r.Use(transHTTP.NewRateLimiter(limits.Default).Middleware("/generate-ideas"))
		generateLimit = transHTTP.NewRateLimiter(limits.Generate).Middleware()
	}

	// GET /
	r.GET("/", transHTTP.IndexHandler)

	// GET /healthz
	r.GET("/healthz", transHTTP.HealthHandler(Version))

	// GET /metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// POST /generate-ideas
	r.POST("/generate-ideas", generateLimit,
		transHTTP.GenerateIdeasHandler(endpoints.GenerateIdeas))

	// GET /reports
	r.GET("/reports", transHTTP.ReportsHandler(endpoints.Reports))

	// GET /reports/:id
	r.GET("/reports/:id", transHTTP.ReportHandler(endpoints.Report))

	// DELETE /reports/:id
	r.DELETE("/reports/:id", transHTTP.DeleteReportHandler(endpoints.DeleteReport))

	return r
}

func connectNATS(url string, name string) (*nats.Conn, error) {
	opts := []nats.Option{nats.Name(name)}

	creds := conf.Path + "/user.creds"
	if _, err := os.Stat(creds); err == nil {
		opts = append(opts, nats.UserCredentials(creds))
	}

	return nats.Connect(url, opts...)
}

func run(cli *cli.Context) error {
	cfg, log, err := setup(cli)
	if err != nil {
		return err
	}
	defer log.Sync()

	// Add Persistence
	reports, err := persistence.NewReportRepository(cfg.Persistence)
	if err != nil {
		log.Error(err.Error(),
			zap.String("infra", "persistence"),
			zap.String("driver", cfg.Persistence.Driver.String()),
		)
		return err
	}
	defer reports.Close()

	// Add Analyzer
	if cfg.LLM.APIKey == "" {
		log.Warn("GROQ_API_KEY is not set, idea generation will return no ideas",
			zap.String("infra", "llm"),
		)
	}

	llm := analyzer.NewGroq(cfg.LLM)

	// Add Service and Middlewares
	sources := newSources(cfg.Scraping, log)
	svc := newService(cfg, sources, llm, reports, log)

	// Add Endpoints
	endpoints := newEndpoints(svc)

	// Add PubSub Transport
	if url := cli.String("nats"); url != "" {
		log := log.With(zap.String("infra", "pubsub"))

		nc, err := connectNATS(url, cfg.Name)
		if err != nil {
			log.Error(err.Error())
			return err
		}
		defer nc.Drain()

		log.Info("connected", zap.String("url", nc.ConnectedUrl()))

		srv, err := micro.AddService(nc, micro.Config{
			Name:        "marketfit",
			Version:     Version,
			Description: description,
			Metadata: map[string]string{
				"id": cfg.Name,
			},
		})
		if err != nil {
			log.Error(err.Error())
			return err
		}
		defer srv.Stop()

		root := srv.AddGroup("marketfit")

		// SUB marketfit.generate
		handler := transPubSub.GenerateIdeasHandler(endpoints.GenerateIdeas, log)
		if err := root.AddEndpoint("generate", handler); err != nil {
			log.Error(err.Error())
			return err
		}
	}

	// Add HTTP Transport
	r := newRouter(cfg, endpoints, log)

	server := &http.Server{
		Addr:              net.JoinHostPort(conf.Host, strconv.Itoa(conf.Port)),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("http server started", zap.String("addr", server.Addr))

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err.Error(), zap.String("transport", "http"))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sign := <-quit

	log.Info("shutdown", zap.String("signal", sign.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}

func generate(cli *cli.Context) error {
	cfg, log, err := setup(cli)
	if err != nil {
		return err
	}
	defer log.Sync()

	req := marketfit.GenerateRequest{
		Source:     cli.String("source"),
		Subreddits: cli.StringSlice("subreddit"),
		AppName:    cli.String("app"),
		Platform:   cli.String("platform"),
	}

	ctx := context.WithValue(cli.Context, model.Logger, log)

	var result any
	if cli.Bool("remote") {
		url := cli.String("nats")
		if url == "" {
			return errors.New("--nats is required with --remote")
		}

		nc, err := connectNATS(url, cfg.Name+"-cli")
		if err != nil {
			return err
		}
		defer nc.Close()

		factory := transPubSub.GenerateIdeasFactory(nc, cfg.LLM.Timeout+2*time.Minute)

		endpoint, _, err := factory("marketfit")
		if err != nil {
			return err
		}

		result, err = endpoint(ctx, req)
		if err != nil {
			return err
		}
	} else {
		reports, err := persistence.NewReportRepository(cfg.Persistence)
		if err != nil {
			return err
		}
		defer reports.Close()

		sources := newSources(cfg.Scraping, log)
		svc := marketfit.NewService(sources, analyzer.NewGroq(cfg.LLM), reports, marketfit.Config{
			DefaultSubreddits: cfg.Scraping.Reddit.DefaultSubreddits,
			CacheTTL:          cfg.Scraping.CacheTTL,
		})
		svc = marketfit.LoggingMiddleware(log)(svc)

		result, err = marketfit.GenerateIdeasEndpoint(svc)(ctx, req)
		if err != nil {
			return err
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
