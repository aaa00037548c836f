package conf

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

var (
	Path string
	Host string
	Port int

	global *Config
)

func G() *Config {
	if global == nil {
		panic("configuration not loaded")
	}

	return global
}

func ReplaceGlobals(cfg *Config) {
	global = cfg
}

func LoadEnv(cli *cli.Context) error {
	path := cli.String("path")
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		path = homeDir + "/.flarex/marketfit"
	}

	Path = path
	Host = cli.String("host")
	Port = cli.Int("port")

	return LoadDotEnv()
}

// LoadDotEnv loads .env from the working directory and the process directory.
// Variables already present in the environment are kept.
func LoadDotEnv() error {
	files := make([]string, 0, 2)
	for _, f := range []string{filepath.Join(Path, ".env"), ".env"} {
		if _, err := os.Stat(f); err == nil {
			files = append(files, f)
		}
	}

	if len(files) == 0 {
		return nil
	}

	return godotenv.Load(files...)
}

func LoadConfig() (*Config, error) {
	f, err := os.Open(Path + "/config.yaml")
	if err != nil {
		f, err = os.Open(Path + "/config.example.yaml")
		if err != nil {
			return nil, err
		}
	}
	defer f.Close()

	r := NewEnvExpandedReader(f)

	cfg, err := DefaultConfig()
	if err != nil {
		return nil, err
	}

	// sections missing from the file keep their defaults
	if err := yaml.NewDecoder(r).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	return cfg, nil
}

// DefaultConfig is the configuration of an empty config file.
func DefaultConfig() (*Config, error) {
	empty := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

	cfg := &Config{Name: "marketfit"}

	if err := cfg.LLM.UnmarshalYAML(empty); err != nil {
		return nil, err
	}

	if err := cfg.Scraping.UnmarshalYAML(empty); err != nil {
		return nil, err
	}

	if err := cfg.RateLimit.UnmarshalYAML(empty); err != nil {
		return nil, err
	}

	if err := cfg.Persistence.UnmarshalYAML(empty); err != nil {
		return nil, err
	}

	return cfg, nil
}

type Config struct {
	Name        string      `yaml:"name"`
	BaseURL     string      `yaml:"baseUrl"`
	LLM         LLM         `yaml:"llm"`
	Scraping    Scraping    `yaml:"scraping"`
	RateLimit   RateLimit   `yaml:"rateLimit"`
	Persistence Persistence `yaml:"persistence"`
}

type LLMProvider int

const Groq LLMProvider = iota

func ParseLLMProvider(provider string) (LLMProvider, error) {
	switch provider {
	case "", "groq":
		return Groq, nil
	default:
		return -1, errors.New("llm provider not supported")
	}
}

func (p LLMProvider) String() string {
	switch p {
	case Groq:
		return "groq"
	default:
		return "unknown"
	}
}

type LLM struct {
	Provider    LLMProvider
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxItems    int
	Timeout     time.Duration
}

func (cfg *LLM) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Provider    string   `yaml:"provider"`
		APIKey      string   `yaml:"apiKey"`
		BaseURL     string   `yaml:"baseUrl"`
		Model       string   `yaml:"model"`
		Temperature *float32 `yaml:"temperature"`
		MaxItems    int      `yaml:"maxItems"`
		Timeout     string   `yaml:"timeout"`
	}

	if err := value.Decode(&raw); err != nil {
		return err
	}

	provider, err := ParseLLMProvider(raw.Provider)
	if err != nil {
		return err
	}

	cfg.Provider = provider
	cfg.APIKey = raw.APIKey

	cfg.BaseURL = raw.BaseURL
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.groq.com/openai/v1"
	}

	cfg.Model = raw.Model
	if cfg.Model == "" {
		cfg.Model = "llama-3.3-70b-versatile"
	}

	cfg.Temperature = 0.7
	if raw.Temperature != nil {
		cfg.Temperature = *raw.Temperature
	}

	cfg.MaxItems = raw.MaxItems
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 30
	}

	timeout, err := parseDuration(raw.Timeout, 60*time.Second)
	if err != nil {
		return err
	}
	cfg.Timeout = timeout

	return nil
}

type Scraping struct {
	Timeout        time.Duration
	CacheTTL       time.Duration
	AllowedDomains []string
	HackerNews     HackerNews
	Reddit         Reddit
	Reviews        Reviews
}

func (cfg *Scraping) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Timeout        string     `yaml:"timeout"`
		CacheTTL       *string    `yaml:"cacheTTL"`
		AllowedDomains []string   `yaml:"allowedDomains"`
		HackerNews     HackerNews `yaml:"hackerNews"`
		Reddit         Reddit     `yaml:"reddit"`
		Reviews        Reviews    `yaml:"reviews"`
	}

	if err := value.Decode(&raw); err != nil {
		return err
	}

	timeout, err := parseDuration(raw.Timeout, 10*time.Second)
	if err != nil {
		return err
	}
	cfg.Timeout = timeout

	cfg.CacheTTL = 5 * time.Minute
	if raw.CacheTTL != nil {
		ttl, err := parseDuration(*raw.CacheTTL, 0)
		if err != nil {
			return err
		}

		cfg.CacheTTL = ttl
	}

	cfg.AllowedDomains = raw.AllowedDomains
	cfg.HackerNews = raw.HackerNews
	cfg.Reddit = raw.Reddit
	cfg.Reviews = raw.Reviews

	if cfg.HackerNews.Limit <= 0 {
		cfg.HackerNews.Limit = 20
	}

	if len(cfg.HackerNews.Keywords) == 0 {
		cfg.HackerNews.Keywords = DefaultHackerNewsKeywords
	}

	if len(cfg.Reddit.DefaultSubreddits) == 0 {
		cfg.Reddit.DefaultSubreddits = []string{"SaaS", "startups"}
	}

	if cfg.Reddit.Attempts <= 0 {
		cfg.Reddit.Attempts = 3
	}

	if cfg.Reddit.PostLimit <= 0 {
		cfg.Reddit.PostLimit = 25
	}

	if cfg.Reviews.Count <= 0 {
		cfg.Reviews.Count = 40
	}

	if cfg.Reviews.Lang == "" {
		cfg.Reviews.Lang = "en"
	}

	if cfg.Reviews.Country == "" {
		cfg.Reviews.Country = "us"
	}

	return nil
}

var DefaultHackerNewsKeywords = []string{
	"how to", "alternative", "wish", "sucks", "problem", "hard to",
}

type HackerNews struct {
	Limit    int      `yaml:"limit"`
	Keywords []string `yaml:"keywords"`
}

type Reddit struct {
	DefaultSubreddits []string `yaml:"defaultSubreddits"`
	Attempts          int      `yaml:"attempts"`
	PostLimit         int      `yaml:"postLimit"`
}

type Reviews struct {
	Count   int    `yaml:"count"`
	Lang    string `yaml:"lang"`
	Country string `yaml:"country"`
}

type RateLimit struct {
	Enabled  bool
	Default  Limit
	Generate Limit
}

func (cfg *RateLimit) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Enabled  *bool `yaml:"enabled"`
		Default  Limit `yaml:"default"`
		Generate Limit `yaml:"generate"`
	}

	if err := value.Decode(&raw); err != nil {
		return err
	}

	cfg.Enabled = true
	if raw.Enabled != nil {
		cfg.Enabled = *raw.Enabled
	}

	cfg.Default = raw.Default
	if cfg.Default.Requests <= 0 {
		cfg.Default = Limit{Requests: 10, Per: time.Minute}
	}

	cfg.Generate = raw.Generate
	if cfg.Generate.Requests <= 0 {
		cfg.Generate = Limit{Requests: 5, Per: time.Minute}
	}

	return nil
}

// Limit allows Requests within every Per window.
type Limit struct {
	Requests int
	Per      time.Duration
}

func (l *Limit) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Requests int    `yaml:"requests"`
		Per      string `yaml:"per"`
	}

	if err := value.Decode(&raw); err != nil {
		return err
	}

	per, err := parseDuration(raw.Per, time.Minute)
	if err != nil {
		return err
	}

	l.Requests = raw.Requests
	l.Per = per
	return nil
}

type PersistenceDriver int

const (
	SQLite PersistenceDriver = iota
	BadgerDB
	InMem
)

func ParsePersistenceDriver(driver string) (PersistenceDriver, error) {
	switch driver {
	case "", "sqlite":
		return SQLite, nil
	case "badger":
		return BadgerDB, nil
	case "inmem":
		return InMem, nil
	default:
		return -1, errors.New("driver not supported")
	}
}

func (driver PersistenceDriver) String() string {
	switch driver {
	case SQLite:
		return "sqlite"
	case BadgerDB:
		return "badger"
	case InMem:
		return "inmem"
	default:
		return "unknown"
	}
}

type Persistence struct {
	Driver PersistenceDriver
	Name   string
	Host   string
	InMem  bool
}

func (p *Persistence) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Driver string `yaml:"driver"`
		Name   string `yaml:"name"`
		Host   string `yaml:"host"`
		InMem  bool   `yaml:"inmem"`
	}

	if err := value.Decode(&raw); err != nil {
		return err
	}

	driver, err := ParsePersistenceDriver(raw.Driver)
	if err != nil {
		return err
	}

	p.Driver = driver

	p.Name = raw.Name
	if p.Name == "" {
		p.Name = "marketfit"
	}

	p.Host = raw.Host
	if raw.Host == "" {
		p.Host = Path
	}

	p.InMem = raw.InMem

	return nil
}

func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}

	return time.ParseDuration(s)
}
