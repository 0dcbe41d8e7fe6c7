package pricing

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dinetab/dinetab-backend/pkg/models"
)

// Catalog is the read-only product reference the engine prices against.
type Catalog interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Product, error)
}

// LineInput is a requested order line before enrichment.
type LineInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// ProductNotFoundError is raised by the strict path when any requested
// product id does not resolve.
type ProductNotFoundError struct {
	ProductIDs []string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("products not found: %s", strings.Join(e.ProductIDs, ", "))
}

type UnavailableItem struct {
	ProductID         string `json:"product_id"`
	RequestedQuantity int    `json:"requested_quantity"`
}

// ProductUnavailableError is raised by the strict path when a requested
// product exists but is currently unavailable.
type ProductUnavailableError struct {
	Items []UnavailableItem
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("%d products are not available", len(e.Items))
}

// Engine computes order totals and freezes per-line price snapshots. The
// strict path guards order creation; the lenient path serves recomputes on
// edit, where a referenced product may legitimately have been deleted since.
type Engine struct {
	catalog Catalog
	logger  *logrus.Logger
}

func NewEngine(catalog Catalog, logger *logrus.Logger) *Engine {
	return &Engine{catalog: catalog, logger: logger}
}

// ComputeTotalStrict prices the lines for order creation: every product must
// resolve and be available. Returns the total and the enriched lines with
// frozen snapshots.
func (e *Engine) ComputeTotalStrict(ctx context.Context, lines []LineInput) (float64, []models.OrderLine, error) {
	byID, err := e.lookup(ctx, lines)
	if err != nil {
		return 0, nil, err
	}

	var missing []string
	var unavailable []UnavailableItem
	for _, line := range lines {
		product, ok := byID[line.ProductID]
		if !ok {
			missing = append(missing, line.ProductID)
			continue
		}
		if !product.Available {
			unavailable = append(unavailable, UnavailableItem{
				ProductID:         line.ProductID,
				RequestedQuantity: line.Quantity,
			})
		}
	}
	if len(missing) > 0 {
		return 0, nil, &ProductNotFoundError{ProductIDs: missing}
	}
	if len(unavailable) > 0 {
		return 0, nil, &ProductUnavailableError{Items: unavailable}
	}

	total, enriched, _ := enrich(lines, byID)
	return total, enriched, nil
}

// ComputeTotalLenient prices the lines for a recompute. Lines whose product
// no longer resolves are excluded from the total and returned with an empty
// snapshot, alongside the list of unresolved product ids; the caller decides
// whether to fall back to a previously frozen snapshot.
func (e *Engine) ComputeTotalLenient(ctx context.Context, lines []LineInput) (float64, []models.OrderLine, []string, error) {
	byID, err := e.lookup(ctx, lines)
	if err != nil {
		return 0, nil, nil, err
	}

	total, enriched, missing := enrich(lines, byID)
	for _, id := range missing {
		e.logger.WithField("product_id", id).Warn("Product not found during price recompute, excluding from total")
	}
	return total, enriched, missing, nil
}

func (e *Engine) lookup(ctx context.Context, lines []LineInput) (map[string]models.Product, error) {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	products, err := e.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("catalog lookup: %w", err)
	}
	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}

func enrich(lines []LineInput, byID map[string]models.Product) (float64, []models.OrderLine, []string) {
	var total float64
	var missing []string
	enriched := make([]models.OrderLine, 0, len(lines))
	for _, line := range lines {
		out := models.OrderLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		}
		if product, ok := byID[line.ProductID]; ok {
			out.Snapshot = models.PriceSnapshot{
				ProductID: product.ID,
				Name:      product.Name,
				Price:     product.Price,
			}
			total += product.Price * float64(line.Quantity)
		} else {
			missing = append(missing, line.ProductID)
		}
		enriched = append(enriched, out)
	}
	return total, enriched, missing
}
