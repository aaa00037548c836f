package opportunity

import (
	"encoding/json"
	"errors"
	"strings"
)

var (
	ErrInvalidSource   = errors.New("invalid source")
	ErrEmptySubreddits = errors.New("subreddits list cannot be empty for reddit source")
	ErrEmptyAppName    = errors.New("app name cannot be empty for reviews source")
	ErrAppNotFound     = errors.New("app not found")
)

// Opportunity is a single piece of scraped discussion that may hide a pain point.
type Opportunity struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	URL    string `json:"url"`
	Source string `json:"source"`
}

type Source int

const (
	All Source = iota
	HackerNews
	Reddit
	Reviews
)

func ParseSource(source string) (Source, error) {
	source = strings.ToLower(strings.TrimSpace(source))
	switch source {
	case "", "all":
		return All, nil
	case "hn":
		return HackerNews, nil
	case "reddit":
		return Reddit, nil
	case "reviews":
		return Reviews, nil
	default:
		return -1, ErrInvalidSource
	}
}

func (s Source) String() string {
	switch s {
	case All:
		return "all"
	case HackerNews:
		return "hn"
	case Reddit:
		return "reddit"
	case Reviews:
		return "reviews"
	default:
		return "unknown"
	}
}

// Includes reports whether scraping for s covers other. Reviews are never part of All.
func (s Source) Includes(other Source) bool {
	if s == other {
		return true
	}

	return s == All && (other == HackerNews || other == Reddit)
}

func (s Source) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Source) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	source, err := ParseSource(raw)
	if err != nil {
		return err
	}

	*s = source
	return nil
}

type Platform string

const (
	Android Platform = "android"
	IOS     Platform = "ios"
)

// ParsePlatform maps "ios" to the App Store. Anything else is Google Play.
func ParsePlatform(platform string) Platform {
	if strings.EqualFold(strings.TrimSpace(platform), string(IOS)) {
		return IOS
	}

	return Android
}

// App is an application resolved in one of the stores.
type App struct {
	Platform Platform `json:"platform"`
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	URL      string   `json:"url"`
}

type Idea struct {
	Name         string `json:"name"`
	Pitch        string `json:"pitch"`
	SourceText   string `json:"source_text"`
	SourceURL    string `json:"source_url"`
	SourceOrigin string `json:"source_origin"`
}

// Truncate cuts s to at most n characters.
func Truncate(s string, n int) string {
	if n < 0 {
		return ""
	}

	runes := []rune(s)
	if len(runes) <= n {
		return s
	}

	return string(runes[:n])
}
