package ingest

import (
	"context"

	"go.uber.org/zap"

	"github.com/HerbHall/curio/internal/fetch"
	"github.com/HerbHall/curio/internal/services"
	"github.com/HerbHall/curio/pkg/content"
)

// GadgetMapping resolves the loosely named fields of a remote gadget list.
var GadgetMapping = content.FieldMapping{
	content.AttrTitle:       {"name", "Name", "Product", "product_name", "title"},
	content.AttrBrand:       {"brand", "Brand", "Manufacturer"},
	content.AttrCategory:    {"category", "Category", "Type"},
	content.AttrDescription: {"description", "Description", "Summary"},
	content.AttrPrice:       {"price", "Price", "Cost"},
	content.AttrRating:      {"rating", "Rating", "Stars"},
	content.AttrLink:        {"link", "Link", "url", "URL"},
	content.AttrImage:       {"image", "Image", "image_url", "Thumbnail"},
}

// GadgetIngester pulls a remote gadget list into the gadget repository.
type GadgetIngester struct {
	client *fetch.Client
	repo   services.GadgetRepository
	source fetch.Source
	bus    Publisher
	logger *zap.Logger
}

// NewGadgetIngester creates an ingester for src. bus may be nil.
func NewGadgetIngester(client *fetch.Client, repo services.GadgetRepository, src fetch.Source, bus Publisher, logger *zap.Logger) *GadgetIngester {
	return &GadgetIngester{
		client: client,
		repo:   repo,
		source: src,
		bus:    bus,
		logger: logger,
	}
}

// Run ingests the gadget list once. A failed fetch stores nothing and is not
// an error; only cancellation is.
func (g *GadgetIngester) Run(ctx context.Context) (Result, error) {
	var res Result

	for _, item := range g.client.FetchList(ctx, g.source) {
		gadget, ok := GadgetFromItem(item)
		if !ok {
			res.Skipped++
			continue
		}
		if err := g.repo.Upsert(ctx, gadget); err != nil {
			g.logger.Warn("store gadget failed", zap.String("name", gadget.Name), zap.Error(err))
			res.Skipped++
			continue
		}
		res.Stored++
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}
	g.logger.Info("gadget ingestion completed", zap.Int("stored", res.Stored), zap.Int("skipped", res.Skipped))
	publish(ctx, g.bus, KindGadgets, res)
	return res, nil
}

// GadgetFromItem converts a remote record. Records without a name are
// rejected. The price text is kept as given.
func GadgetFromItem(item content.Item) (services.Gadget, bool) {
	name := content.Stringify(content.Resolve(item, GadgetMapping[content.AttrTitle], nil))
	if name == "" {
		return services.Gadget{}, false
	}

	g := services.Gadget{
		Name:        name,
		Brand:       GadgetMapping.String(item, content.AttrBrand),
		Category:    GadgetMapping.String(item, content.AttrCategory),
		Description: GadgetMapping.String(item, content.AttrDescription),
		Price:       GadgetMapping.String(item, content.AttrPrice),
		Link:        GadgetMapping.String(item, content.AttrLink),
		Image:       GadgetMapping.String(item, content.AttrImage),
	}
	if v, ok := content.NumericValue(GadgetMapping.Value(item, content.AttrPrice)); ok {
		g.PriceValue = &v
	}
	if v, ok := content.NumericValue(GadgetMapping.Value(item, content.AttrRating)); ok {
		g.Rating = &v
	}
	if g.Link == content.DefaultLink {
		g.Link = ""
	}
	return g, true
}
