package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/HerbHall/curio/internal/store"
	"github.com/HerbHall/curio/pkg/content"
)

// Gadget is a smart-tech product.
type Gadget struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Brand       string    `json:"brand,omitempty"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	Price       string    `json:"price,omitempty"`
	PriceValue  *float64  `json:"price_value,omitempty"`
	Rating      *float64  `json:"rating,omitempty"`
	Link        string    `json:"link,omitempty"`
	Image       string    `json:"image,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Item converts the gadget into a record for the list engine. The price text
// is kept verbatim; range filters parse it themselves.
func (g Gadget) Item() content.Item {
	item := content.Item{
		"id":          g.ID,
		"name":        g.Name,
		"brand":       g.Brand,
		"category":    g.Category,
		"description": g.Description,
		"price":       g.Price,
		"link":        g.Link,
		"image":       g.Image,
	}
	if g.PriceValue != nil {
		item["price_value"] = *g.PriceValue
	}
	if g.Rating != nil {
		item["rating"] = *g.Rating
	}
	return item
}

// GadgetRepository stores gadgets keyed by name.
type GadgetRepository interface {
	// Upsert inserts the gadget or updates the one with the same name.
	// PriceValue is derived from Price when unset.
	Upsert(ctx context.Context, g Gadget) error

	// Query returns gadgets matching q with the total match count.
	Query(ctx context.Context, q Query) (*ListResult[Gadget], error)

	// Count returns the number of stored gadgets.
	Count(ctx context.Context) (int, error)
}

// Compile-time interface guard.
var _ GadgetRepository = (*SQLiteGadgetRepository)(nil)

var gadgetColumns = columnSet{
	text: map[string]string{
		"id":          "id",
		"name":        "name",
		"brand":       "brand",
		"category":    "category",
		"price":       "price",
		"price_value": "price_value",
		"rating":      "rating",
	},
	numeric: map[string]string{
		"price": "price_value",
	},
}

// SQLiteGadgetRepository implements GadgetRepository using SQLite.
type SQLiteGadgetRepository struct {
	db *sql.DB
}

// NewSQLiteGadgetRepository creates a GadgetRepository and runs the gadgets
// migrations.
func NewSQLiteGadgetRepository(ctx context.Context, m store.Migrator) (*SQLiteGadgetRepository, error) {
	if err := m.Migrate(ctx, "gadgets", gadgetMigrations); err != nil {
		return nil, fmt.Errorf("gadgets migrations: %w", err)
	}
	return &SQLiteGadgetRepository{db: m.DB()}, nil
}

func (r *SQLiteGadgetRepository) Upsert(ctx context.Context, g Gadget) error {
	if g.Name == "" {
		return fmt.Errorf("upsert gadget: name is required")
	}

	var price sql.NullFloat64
	if g.PriceValue != nil {
		price = sql.NullFloat64{Float64: *g.PriceValue, Valid: true}
	} else if v, ok := content.ParseNumber(g.Price); ok {
		price = sql.NullFloat64{Float64: v, Valid: true}
	}
	var rating sql.NullFloat64
	if g.Rating != nil {
		rating = sql.NullFloat64{Float64: *g.Rating, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO gadgets (name, brand, category, description, price, price_value, rating, link, image, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			brand = excluded.brand,
			category = excluded.category,
			description = excluded.description,
			price = excluded.price,
			price_value = excluded.price_value,
			rating = excluded.rating,
			link = excluded.link,
			image = excluded.image,
			updated_at = excluded.updated_at`,
		g.Name, g.Brand, g.Category, g.Description, g.Price, price, rating, g.Link, g.Image, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert gadget %q: %w", g.Name, err)
	}
	return nil
}

func (r *SQLiteGadgetRepository) Query(ctx context.Context, q Query) (*ListResult[Gadget], error) {
	c, err := q.compile(gadgetColumns, "name ASC")
	if err != nil {
		return nil, err
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM gadgets"+c.where, c.args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count gadgets: %w", err)
	}

	args := append(append([]any{}, c.args...), c.limit, c.off)
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, brand, category, description, price, price_value, rating, link, image, updated_at
		FROM gadgets`+c.where+` ORDER BY `+c.order+`, id ASC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("query gadgets: %w", err)
	}
	defer rows.Close()

	gadgets := make([]Gadget, 0)
	for rows.Next() {
		var (
			g             Gadget
			price, rating sql.NullFloat64
		)
		if err := rows.Scan(&g.ID, &g.Name, &g.Brand, &g.Category, &g.Description,
			&g.Price, &price, &rating, &g.Link, &g.Image, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan gadget row: %w", err)
		}
		if price.Valid {
			g.PriceValue = &price.Float64
		}
		if rating.Valid {
			g.Rating = &rating.Float64
		}
		gadgets = append(gadgets, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gadgets: %w", err)
	}
	return &ListResult[Gadget]{Items: gadgets, Total: total}, nil
}

func (r *SQLiteGadgetRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM gadgets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count gadgets: %w", err)
	}
	return n, nil
}

var gadgetMigrations = []store.Migration{
	{
		Version:     1,
		Description: "create gadgets table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE gadgets (
					id          INTEGER PRIMARY KEY AUTOINCREMENT,
					name        TEXT NOT NULL UNIQUE,
					brand       TEXT NOT NULL DEFAULT '',
					category    TEXT NOT NULL DEFAULT '',
					description TEXT NOT NULL DEFAULT '',
					price       TEXT NOT NULL DEFAULT '',
					price_value REAL,
					rating      REAL,
					link        TEXT NOT NULL DEFAULT '',
					image       TEXT NOT NULL DEFAULT '',
					updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
				)`)
			if err != nil {
				return err
			}
			_, err = tx.Exec(`CREATE INDEX idx_gadgets_price_value ON gadgets (price_value)`)
			return err
		},
	},
}
