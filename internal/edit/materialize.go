package edit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CatalogResolver resolves display fields from the read-only catalogs.
// Satisfied by *catalog.Resolver; narrow interface so the engine stays pure.
type CatalogResolver interface {
	ResolveName(ctx context.Context, kind Kind, id int64) (string, error)
	ResolvePrice(ctx context.Context, kind Kind, id int64) (decimal.Decimal, error)
	ResolvePhoto(ctx context.Context, kind Kind, id int64) (string, error)
}

// OrderInfo is the slice of a persisted order the materializer needs. The
// pre-edit order has a single pickup timestamp shared by all of its lines.
type OrderInfo struct {
	PickupAt time.Time
	Note     string
}

// Materialized is the editable state of one order at session start.
type Materialized struct {
	Items      []Item
	PickupDate string // "2006-01-02"
	PickupTime string // "15:04"
	Note       string
}

// Materialize converts persisted lines into an editable cart: classify each
// line, resolve its display fields, stamp the order's pickup timestamp on it.
// Lines with a zero or negative quantity are dropped; everything else comes
// through, one cart row per line. Legacy extra lines keep their inline name
// and price and never hit the resolver (the catalog may not contain them).
func Materialize(ctx context.Context, order OrderInfo, lines []Line, resolver CatalogResolver) (Materialized, error) {
	m := Materialized{Note: order.Note}
	if !order.PickupAt.IsZero() {
		m.PickupDate = order.PickupAt.Format("2006-01-02")
		m.PickupTime = order.PickupAt.Format("15:04")
	}

	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}

		ref := Classify(l)
		it := Item{
			Kind:      ref.Kind,
			CatalogID: ref.CatalogID,
			Quantity:  l.Quantity,
			PickupAt:  order.PickupAt,
			Legacy:    ref.Legacy,
		}

		if ref.Legacy {
			it.Name = ref.InlineName
			it.UnitPrice = ref.InlinePrice
		} else {
			name, err := resolver.ResolveName(ctx, ref.Kind, ref.CatalogID)
			if err != nil {
				return Materialized{}, fmt.Errorf("resolve name %s %d: %w", ref.Kind, ref.CatalogID, err)
			}
			price, err := resolver.ResolvePrice(ctx, ref.Kind, ref.CatalogID)
			if err != nil {
				return Materialized{}, fmt.Errorf("resolve price %s %d: %w", ref.Kind, ref.CatalogID, err)
			}
			photo, err := resolver.ResolvePhoto(ctx, ref.Kind, ref.CatalogID)
			if err != nil {
				return Materialized{}, fmt.Errorf("resolve photo %s %d: %w", ref.Kind, ref.CatalogID, err)
			}
			it.Name = name
			it.UnitPrice = price
			it.PhotoURL = photo
		}

		it.Key = ItemKey(it.Kind, it.CatalogID)
		it.InstanceID = newInstanceID()
		m.Items = append(m.Items, it)
	}

	return m, nil
}

// newInstanceID is a var so tests can pin it for deterministic carts.
var newInstanceID = func() string { return uuid.NewString() }
