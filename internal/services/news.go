package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/HerbHall/curio/internal/store"
	"github.com/HerbHall/curio/pkg/content"
)

// Article is a tech-news entry ingested from an RSS feed.
type Article struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Link        string    `json:"link"`
	Image       string    `json:"image,omitempty"`
	Source      string    `json:"source"`
	Category    string    `json:"category,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Item converts the article into a record for the list engine.
func (a Article) Item() content.Item {
	item := content.Item{
		"id":          a.ID,
		"title":       a.Title,
		"description": a.Description,
		"link":        a.Link,
		"image":       a.Image,
		"source":      a.Source,
		"category":    a.Category,
	}
	if !a.PublishedAt.IsZero() {
		item["published_at"] = a.PublishedAt.UTC().Format(time.RFC3339)
	}
	return item
}

// NewsRepository stores articles keyed by link.
type NewsRepository interface {
	// Upsert inserts the article or updates the one with the same link.
	Upsert(ctx context.Context, a Article) error

	// Query returns articles matching q with the total match count.
	Query(ctx context.Context, q Query) (*ListResult[Article], error)

	// Count returns the number of stored articles.
	Count(ctx context.Context) (int, error)
}

// Compile-time interface guard.
var _ NewsRepository = (*SQLiteNewsRepository)(nil)

var newsColumns = columnSet{
	text: map[string]string{
		"id":           "id",
		"title":        "title",
		"link":         "link",
		"source":       "source",
		"category":     "category",
		"published_at": "published_at",
	},
}

// SQLiteNewsRepository implements NewsRepository using SQLite.
type SQLiteNewsRepository struct {
	db *sql.DB
}

// NewSQLiteNewsRepository creates a NewsRepository and runs the news
// migrations.
func NewSQLiteNewsRepository(ctx context.Context, m store.Migrator) (*SQLiteNewsRepository, error) {
	if err := m.Migrate(ctx, "news", newsMigrations); err != nil {
		return nil, fmt.Errorf("news migrations: %w", err)
	}
	return &SQLiteNewsRepository{db: m.DB()}, nil
}

func (r *SQLiteNewsRepository) Upsert(ctx context.Context, a Article) error {
	if a.Link == "" {
		return fmt.Errorf("upsert article %q: link is required", a.Title)
	}
	now := time.Now().UTC()
	published := a.PublishedAt
	if published.IsZero() {
		published = now
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO news (title, description, link, image, source, category, published_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (link) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			image = excluded.image,
			source = excluded.source,
			category = excluded.category,
			published_at = excluded.published_at,
			updated_at = excluded.updated_at`,
		a.Title, a.Description, a.Link, a.Image, a.Source, a.Category, published.UTC(), now,
	)
	if err != nil {
		return fmt.Errorf("upsert article %q: %w", a.Link, err)
	}
	return nil
}

func (r *SQLiteNewsRepository) Query(ctx context.Context, q Query) (*ListResult[Article], error) {
	c, err := q.compile(newsColumns, "published_at DESC")
	if err != nil {
		return nil, err
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM news"+c.where, c.args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count news: %w", err)
	}

	args := append(append([]any{}, c.args...), c.limit, c.off)
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, description, link, image, source, category, published_at, updated_at
		FROM news`+c.where+` ORDER BY `+c.order+`, id ASC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("query news: %w", err)
	}
	defer rows.Close()

	articles := make([]Article, 0)
	for rows.Next() {
		var a Article
		if err := rows.Scan(&a.ID, &a.Title, &a.Description, &a.Link, &a.Image,
			&a.Source, &a.Category, &a.PublishedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan news row: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate news: %w", err)
	}
	return &ListResult[Article]{Items: articles, Total: total}, nil
}

func (r *SQLiteNewsRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM news`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count news: %w", err)
	}
	return n, nil
}

var newsMigrations = []store.Migration{
	{
		Version:     1,
		Description: "create news table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE news (
					id           INTEGER PRIMARY KEY AUTOINCREMENT,
					title        TEXT NOT NULL,
					description  TEXT NOT NULL DEFAULT '',
					link         TEXT NOT NULL UNIQUE,
					image        TEXT NOT NULL DEFAULT '',
					source       TEXT NOT NULL DEFAULT '',
					category     TEXT NOT NULL DEFAULT '',
					published_at DATETIME NOT NULL,
					updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
				)`)
			if err != nil {
				return err
			}
			_, err = tx.Exec(`CREATE INDEX idx_news_published_at ON news (published_at DESC)`)
			return err
		},
	},
}
