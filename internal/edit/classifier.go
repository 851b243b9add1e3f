// Package edit implements the order revision engine: classifying persisted
// lines into dishes and extras, materializing them into an editable cart,
// detecting meaningful changes, and planning the replacement orders.
// Everything here is pure computation; persistence lives in the service layer.
package edit

import (
	"log"

	"github.com/petitplat/api/internal/enum"
	"github.com/shopspring/decimal"
)

// Kind distinguishes the two catalog families a line may reference.
type Kind int

const (
	KindDish Kind = iota
	KindExtra
)

func (k Kind) String() string {
	switch k {
	case KindDish:
		return "dish"
	case KindExtra:
		return "extra"
	default:
		return "unknown"
	}
}

// LegacyExtraPlaceholder is the name of the placeholder dish row (id 0) that
// first-generation extra lines pointed at. Matching on it is fragile by
// construction (a renamed placeholder silently breaks classification) but it
// is the only signal those rows carry.
const LegacyExtraPlaceholder = "Extra (Complément divers)"

// SentinelRef is the reference value legacy extra lines store instead of a
// real catalog id.
const SentinelRef int64 = 0

// Line is the classifier's view of one persisted order line. DishName and
// DishKnown describe what the raw reference resolves to in the dish catalog;
// InlineName and InlinePrice are the values stored on the line itself.
type Line struct {
	Ref         int64
	TypeTag     string
	DishKnown   bool
	DishName    string
	InlineName  string
	InlinePrice decimal.Decimal
	Quantity    int32
}

// LineRef is the disambiguated reference. Downstream code switches on Kind
// and Legacy and never re-inspects raw reference values.
type LineRef struct {
	Kind      Kind
	CatalogID int64
	// Legacy marks first-generation extra lines: the authoritative name and
	// price are the inline values, not a catalog row.
	Legacy      bool
	InlineName  string
	InlinePrice decimal.Decimal
}

// Classify resolves the overloaded reference on a persisted line. The rules
// run in precedence order and the first match wins:
//
//  1. explicit "extra" type tag
//  2. positive reference that resolves to no dish (current extra encoding)
//  3. zero sentinel whose dish name is the legacy placeholder
//  4. everything else is a dish
//
// A line that reaches rule 4 with a non-positive reference is inconsistent
// data; it is logged and defaulted to a dish so it still renders (with a
// best-effort zero price) instead of being dropped.
func Classify(l Line) LineRef {
	if l.TypeTag == enum.LineTypeExtra {
		if l.Ref > 0 {
			return LineRef{Kind: KindExtra, CatalogID: l.Ref}
		}
		// Tagged extra without a catalog id: inline fields are all we have.
		return LineRef{Kind: KindExtra, Legacy: true, InlineName: l.InlineName, InlinePrice: l.InlinePrice}
	}

	if !l.DishKnown && l.Ref > 0 {
		return LineRef{Kind: KindExtra, CatalogID: l.Ref}
	}

	if l.Ref == SentinelRef && (l.DishName == LegacyExtraPlaceholder || l.InlineName == LegacyExtraPlaceholder) {
		return LineRef{Kind: KindExtra, Legacy: true, InlineName: l.InlineName, InlinePrice: l.InlinePrice}
	}

	if l.Ref <= 0 {
		log.Printf("WARN: order line with reference %d matched no classification rule, defaulting to dish", l.Ref)
	}
	return LineRef{Kind: KindDish, CatalogID: l.Ref}
}
