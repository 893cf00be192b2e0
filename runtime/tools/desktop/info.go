package desktop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jmespath/go-jmespath"
	"github.com/mmcdole/gofeed"

	"github.com/deskpilot/deskpilot/runtime/logger"
)

// Info tool defaults.
const (
	DefaultWikipediaLang      = "tr"
	defaultWikipediaSentences = 3
	defaultGamingLimit        = 5
	gamingNewsMaxAge          = 7 * 24 * time.Hour
	gamingSummaryLimit        = 200
	maxResponseBytes          = 4 << 20
	userAgent                 = "deskpilot/1.0 (https://github.com/deskpilot/deskpilot)"
)

// Endpoints holds the base URLs of the web services used by the info tools.
type Endpoints struct {
	Weather string
	News    string
	// Wikipedia may contain a {lang} placeholder.
	Wikipedia string
	// GamingFeeds maps a source key to its feed.
	GamingFeeds map[string]FeedSource
}

// FeedSource is one gaming news feed.
type FeedSource struct {
	Name string
	URL  string
}

// DefaultEndpoints returns the public service endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Weather:   "https://api.weatherapi.com/v1",
		News:      "https://newsapi.org/v2",
		Wikipedia: "https://{lang}.wikipedia.org",
		GamingFeeds: map[string]FeedSource{
			"steam":     {Name: "Steam", URL: "https://store.steampowered.com/feeds/news.xml"},
			"ign":       {Name: "IGN", URL: "https://feeds.feedburner.com/ign/games-all"},
			"eurogamer": {Name: "Eurogamer", URL: "https://www.eurogamer.net/feed"},
			"gamerant":  {Name: "Game Rant", URL: "https://gamerant.com/feed"},
		},
	}
}

// errNotFound marks a 404 from an info service.
var errNotFound = errors.New("not found")

// getJSON fetches url and decodes the JSON body into a generic value.
func (t *Toolset) getJSON(ctx context.Context, rawURL string, header http.Header) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, errNotFound
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}
	if resp.StatusCode >= 300 {
		if msg, _ := jmespath.Search("error.message || message", data); msg != nil {
			return nil, fmt.Errorf("HTTP %d: %v", resp.StatusCode, msg)
		}
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return data, nil
}

// extract evaluates a JMESPath expression, returning nil on no match.
func extract(expr string, data any) any {
	v, err := jmespath.Search(expr, data)
	if err != nil {
		logger.Debug("JMESPath evaluation failed", "expr", expr, "error", err)
		return nil
	}
	return v
}

func (t *Toolset) getWeather(ctx context.Context, args Args) (any, error) {
	if t.weatherKey == "" {
		return nil, errors.New("WEATHER_API_KEY is not set")
	}
	q := url.Values{}
	q.Set("key", t.weatherKey)
	q.Set("q", args.String("city", ""))
	q.Set("aqi", "no")

	data, err := t.getJSON(ctx, t.endpoints.Weather+"/current.json?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("weather lookup failed: %w", err)
	}
	return extract(`{
		location: location.name,
		country: location.country,
		temperature_c: current.temp_c,
		condition: current.condition.text,
		humidity: current.humidity,
		wind_kph: current.wind_kph
	}`, data), nil
}

func (t *Toolset) getNews(ctx context.Context, args Args) (any, error) {
	if t.newsKey == "" {
		return nil, errors.New("NEWS_API_KEY is not set")
	}
	q := url.Values{}
	q.Set("category", args.String("category", ""))
	q.Set("country", args.String("country", ""))

	data, err := t.getJSON(ctx, t.endpoints.News+"/top-headlines?"+q.Encode(),
		http.Header{"X-Api-Key": []string{t.newsKey}})
	if err != nil {
		return nil, fmt.Errorf("news lookup failed: %w", err)
	}
	if status, _ := extract("status", data).(string); status != "ok" {
		if msg, ok := extract("message", data).(string); ok && msg != "" {
			return nil, errors.New(msg)
		}
		return nil, errors.New("unknown error from NewsAPI")
	}

	articles := extract(`articles[].{
		title: title,
		source: source.name,
		publishedAt: publishedAt,
		description: description
	}`, data)
	if articles == nil {
		articles = []any{}
	}
	return map[string]any{"articles": articles}, nil
}

// LocalTime is the get_local_time result.
type LocalTime struct {
	Time      string `json:"time"`
	Date      string `json:"date"`
	DateTime  any    `json:"datetime"`
	Timezone  string `json:"timezone"`
	DayOfWeek string `json:"day_of_week"`
	DayOfYear string `json:"day_of_year"`
}

// localTime formats now per format_type. Unknown formats use "full";
// "timestamp" yields fractional Unix seconds.
func localTime(now time.Time, formatType string) LocalTime {
	var dt any
	switch formatType {
	case "time_only":
		dt = now.Format("15:04:05")
	case "date_only":
		dt = now.Format("2006-01-02")
	case "timestamp":
		dt = float64(now.UnixMicro()) / 1e6
	case "readable":
		dt = now.Format("02 January 2006, Monday, 15:04")
	default:
		dt = now.Format("2006-01-02 15:04:05")
	}
	return LocalTime{
		Time:      now.Format("15:04:05"),
		Date:      now.Format("2006-01-02"),
		DateTime:  dt,
		Timezone:  "local",
		DayOfWeek: now.Weekday().String(),
		DayOfYear: fmt.Sprintf("%03d", now.YearDay()),
	}
}

func (t *Toolset) getLocalTime(_ context.Context, args Args) (any, error) {
	result := localTime(t.now(), args.String("format_type", "full"))
	return &result, nil
}

func (t *Toolset) wikipediaBase(lang string) string {
	return strings.ReplaceAll(t.endpoints.Wikipedia, "{lang}", url.PathEscape(lang))
}

// wikipediaSearch returns the page summary limited to the requested number of
// sentences, or search suggestions when no page has that exact title.
func (t *Toolset) wikipediaSearch(ctx context.Context, args Args) (any, error) {
	query := args.String("query", "")
	lang := args.String("lang", DefaultWikipediaLang)
	sentences := args.Int("sentences", defaultWikipediaSentences)
	base := t.wikipediaBase(lang)
	header := http.Header{"User-Agent": []string{userAgent}}

	title := strings.ReplaceAll(query, " ", "_")
	page, err := t.getJSON(ctx, base+"/api/rest_v1/page/summary/"+url.PathEscape(title), header)
	if err != nil && !errors.Is(err, errNotFound) {
		return nil, fmt.Errorf("wikipedia lookup failed: %w", err)
	}
	if err == nil && extract("type", page) != "disambiguation" {
		text, _ := extract("extract", page).(string)
		return map[string]any{
			"status":     "success",
			"title":      extract("title", page),
			"extract":    limitSentences(text, sentences),
			"page_url":   extract("content_urls.desktop.page", page),
			"language":   lang,
			"word_count": len(strings.Fields(text)),
		}, nil
	}

	q := url.Values{}
	q.Set("action", "opensearch")
	q.Set("search", query)
	q.Set("limit", "3")
	q.Set("format", "json")
	found, err := t.getJSON(ctx, base+"/w/api.php?"+q.Encode(), header)
	if err != nil {
		return nil, fmt.Errorf("wikipedia search failed: %w", err)
	}
	titles, _ := extract("[1]", found).([]any)
	if len(titles) == 0 {
		return map[string]any{
			"status":  "not_found",
			"query":   query,
			"message": "Page not found",
		}, nil
	}
	suggestions := make([]map[string]any, 0, len(titles))
	for _, title := range titles {
		suggestions = append(suggestions, map[string]any{"title": title, "summary": ""})
	}
	return map[string]any{
		"status":      "search_results",
		"query":       query,
		"suggestions": suggestions,
	}, nil
}

// limitSentences keeps the first n ". "-separated sentences.
func limitSentences(text string, n int) string {
	if n <= 0 {
		return text
	}
	parts := strings.Split(text, ". ")
	if len(parts) <= n {
		return text
	}
	return strings.Join(parts[:n], ". ") + "."
}

// GamingNewsItem is one get_gaming_news entry.
type GamingNewsItem struct {
	Source    string `json:"source"`
	Title     string `json:"title"`
	Summary   string `json:"summary"`
	Link      string `json:"link"`
	Published string `json:"published"`
	Category  string `json:"category"`
	published time.Time
}

// GamingNews is the get_gaming_news result.
type GamingNews struct {
	TotalNews int              `json:"total_news"`
	Sources   []string         `json:"sources"`
	News      []GamingNewsItem `json:"news"`
}

// selectFeeds resolves the source argument. Unknown sources fall back to IGN.
func selectFeeds(feeds map[string]FeedSource, source string) []string {
	source = strings.ToLower(strings.TrimSpace(source))
	if source == "" || source == "all" {
		keys := make([]string, 0, len(feeds))
		for k := range feeds {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys
	}
	if _, ok := feeds[source]; ok {
		return []string{source}
	}
	return []string{"ign"}
}

func (t *Toolset) getGamingNews(ctx context.Context, args Args) (any, error) {
	limit := args.Int("limit", defaultGamingLimit)
	if limit <= 0 {
		limit = defaultGamingLimit
	}
	selected := selectFeeds(t.endpoints.GamingFeeds, args.String("source", "all"))
	now := t.now()

	parser := gofeed.NewParser()
	parser.Client = t.http
	parser.UserAgent = userAgent

	var items []GamingNewsItem
	for _, key := range selected {
		src, ok := t.endpoints.GamingFeeds[key]
		if !ok {
			continue
		}
		feed, err := parser.ParseURLWithContext(src.URL, ctx)
		if err != nil {
			// one failing feed does not fail the call
			logger.Debug("Gaming feed failed", "source", src.Name, "error", err)
			continue
		}
		entries := feed.Items
		if len(entries) > limit {
			entries = entries[:limit]
		}
		for _, e := range entries {
			items = append(items, newsItem(src.Name, e))
		}
	}

	fresh := items[:0]
	for _, it := range items {
		if !it.published.IsZero() && now.Sub(it.published) > gamingNewsMaxAge {
			continue
		}
		fresh = append(fresh, it)
	}
	sort.SliceStable(fresh, func(i, j int) bool {
		return fresh[i].published.After(fresh[j].published)
	})
	if len(fresh) > limit*2 {
		fresh = fresh[:limit*2]
	}
	if fresh == nil {
		fresh = []GamingNewsItem{}
	}

	return &GamingNews{
		TotalNews: len(fresh),
		Sources:   selected,
		News:      fresh,
	}, nil
}

func newsItem(source string, e *gofeed.Item) GamingNewsItem {
	item := GamingNewsItem{
		Source:    source,
		Title:     e.Title,
		Summary:   truncateRunes(e.Description, gamingSummaryLimit),
		Link:      e.Link,
		Published: e.Published,
		Category:  "news",
	}
	switch {
	case e.PublishedParsed != nil:
		item.published = *e.PublishedParsed
	case e.UpdatedParsed != nil:
		item.published = *e.UpdatedParsed
	}
	if item.Published == "" {
		item.Published = e.Updated
	}
	return item
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
