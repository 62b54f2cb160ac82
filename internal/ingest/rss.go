// Package ingest fills the store-backed pages: RSS feeds become news articles
// and a remote gadget list becomes gadget rows. Ingestion is best-effort; a
// failing feed or record is logged and skipped.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/HerbHall/curio/internal/event"
	"github.com/HerbHall/curio/internal/fetch"
	"github.com/HerbHall/curio/internal/services"
)

// Ingestion kinds reported in event.IngestPayload.
const (
	KindNews    = "news"
	KindGadgets = "gadgets"
)

const maxDescriptionRunes = 280

// Publisher announces completed runs without waiting for subscribers.
type Publisher interface {
	PublishAsync(ctx context.Context, e event.Event)
}

// Result summarizes one ingestion run.
type Result struct {
	Stored  int
	Skipped int
}

// RSSIngester pulls RSS and Atom feeds into the news repository.
type RSSIngester struct {
	client *fetch.Client
	repo   services.NewsRepository
	feeds  []string
	bus    Publisher
	logger *zap.Logger
}

// NewRSSIngester creates an ingester for feeds. bus may be nil.
func NewRSSIngester(client *fetch.Client, repo services.NewsRepository, feeds []string, bus Publisher, logger *zap.Logger) *RSSIngester {
	return &RSSIngester{
		client: client,
		repo:   repo,
		feeds:  feeds,
		bus:    bus,
		logger: logger,
	}
}

// Run ingests every feed once. It only fails when ctx is cancelled.
func (r *RSSIngester) Run(ctx context.Context) (Result, error) {
	var res Result
	parser := gofeed.NewParser()

	for _, url := range r.feeds {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		body, err := r.client.Body(ctx, fetch.Source{Name: "rss", URL: url})
		if err != nil {
			r.logger.Warn("feed fetch failed, skipping", zap.String("url", url), zap.Error(err))
			continue
		}

		feed, err := parser.Parse(bytes.NewReader(body))
		if err != nil {
			r.logger.Warn("feed parse failed, skipping", zap.String("url", url), zap.Error(err))
			continue
		}

		stored, skipped := r.storeFeed(ctx, url, feed)
		res.Stored += stored
		res.Skipped += skipped
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}
	r.logger.Info("rss ingestion completed",
		zap.Int("feeds", len(r.feeds)),
		zap.Int("stored", res.Stored),
		zap.Int("skipped", res.Skipped),
	)
	publish(ctx, r.bus, KindNews, res)
	return res, nil
}

func (r *RSSIngester) storeFeed(ctx context.Context, url string, feed *gofeed.Feed) (stored, skipped int) {
	source := strings.TrimSpace(feed.Title)
	if source == "" {
		source = url
	}

	for _, entry := range feed.Items {
		a, ok := ArticleFromEntry(entry, source)
		if !ok {
			skipped++
			continue
		}
		if err := r.repo.Upsert(ctx, a); err != nil {
			r.logger.Warn("store article failed", zap.String("link", a.Link), zap.Error(err))
			skipped++
			continue
		}
		stored++
	}
	return stored, skipped
}

// ArticleFromEntry converts a feed entry. Entries without a usable link are
// rejected.
func ArticleFromEntry(entry *gofeed.Item, source string) (services.Article, bool) {
	link := entry.Link
	if link == "" && strings.HasPrefix(entry.GUID, "http") {
		link = entry.GUID
	}
	if link == "" {
		return services.Article{}, false
	}

	raw := entry.Description
	if raw == "" {
		raw = entry.Content
	}
	text, inlineImage := CleanHTML(raw)

	a := services.Article{
		Title:       strings.TrimSpace(entry.Title),
		Description: truncate(text, maxDescriptionRunes),
		Link:        link,
		Image:       entryImage(entry, inlineImage),
		Source:      source,
	}
	if len(entry.Categories) > 0 {
		a.Category = entry.Categories[0]
	}
	switch {
	case entry.PublishedParsed != nil:
		a.PublishedAt = entry.PublishedParsed.UTC()
	case entry.UpdatedParsed != nil:
		a.PublishedAt = entry.UpdatedParsed.UTC()
	}
	return a, true
}

// CleanHTML strips markup from an HTML fragment, collapsing whitespace, and
// returns the src of its first <img>.
func CleanHTML(fragment string) (text, image string) {
	if strings.TrimSpace(fragment) == "" {
		return "", ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " "), ""
	}
	image = doc.Find("img").First().AttrOr("src", "")
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " "), image
}

func entryImage(entry *gofeed.Item, inline string) string {
	if entry.Image != nil && entry.Image.URL != "" {
		return entry.Image.URL
	}
	for _, enc := range entry.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	return inline
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n])) + "..."
}

func publish(ctx context.Context, bus Publisher, kind string, res Result) {
	if bus == nil {
		return
	}
	bus.PublishAsync(ctx, event.Event{
		Topic:     event.TopicIngestCompleted,
		Source:    "ingest",
		Timestamp: time.Now().UTC(),
		Payload:   event.IngestPayload{Kind: kind, Stored: res.Stored, Skipped: res.Skipped},
	})
}

// Task adapts an ingester to a scheduler task function.
func Task(run func(context.Context) (Result, error)) func(context.Context) error {
	return func(ctx context.Context) error {
		if _, err := run(ctx); err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
		return nil
	}
}
