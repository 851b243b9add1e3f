package edit

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Errors returned by cart mutations.
var (
	ErrPickupRequired  = errors.New("pickup date and time must be chosen before adding an item")
	ErrEmptyItemName   = errors.New("item name is required")
	ErrNegativePrice   = errors.New("item price must not be negative")
	ErrInvalidQuantity = errors.New("quantity must be > 0")
)

// Item is one editable cart row. Key identifies the catalog entry (kind plus
// catalog id); InstanceID identifies this row, so the same catalog item added
// twice at different pickup times stays two rows.
type Item struct {
	Key        string          `json:"key"`
	InstanceID string          `json:"instance_id"`
	Kind       Kind            `json:"-"`
	CatalogID  int64           `json:"catalog_id"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int32           `json:"quantity"`
	PickupAt   time.Time       `json:"pickup_at"`
	PhotoURL   string          `json:"photo_url,omitempty"`
	// Legacy marks items whose name/price came from inline line fields
	// rather than a catalog row.
	Legacy bool `json:"legacy,omitempty"`
}

// ItemKey builds the composite catalog key, e.g. "dish-12" or "extra-7".
func ItemKey(kind Kind, catalogID int64) string {
	return fmt.Sprintf("%s-%d", kind, catalogID)
}

// ParseKey is the inverse of ItemKey. It only decodes the kind prefix; the
// catalog id travels in its own field.
func ParseKey(key string) (Kind, error) {
	switch {
	case strings.HasPrefix(key, "dish-"):
		return KindDish, nil
	case strings.HasPrefix(key, "extra-"):
		return KindExtra, nil
	}
	return 0, fmt.Errorf("unrecognized item key %q", key)
}

// CartTotal is the single total computation shared by the differ, the save
// flow, and the API responses: Σ(unit price × quantity) over all items.
func CartTotal(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt32(it.Quantity)))
	}
	return total
}

// Snapshot is the immutable copy of the materialized cart plus the original
// pickup date, time and note, captured once per editing session. It feeds the
// differ and the restore action, nothing else.
type Snapshot struct {
	Items []Item
	Date  string // "2006-01-02", empty when the order had no pickup date
	Time  string // "15:04"
	Note  string
}

// TakeSnapshot deep-copies the cart so later mutations cannot leak into it.
func TakeSnapshot(items []Item, pickupAt time.Time, note string) Snapshot {
	s := Snapshot{
		Items: append([]Item(nil), items...),
		Note:  note,
	}
	if !pickupAt.IsZero() {
		s.Date = pickupAt.Format("2006-01-02")
		s.Time = pickupAt.Format("15:04")
	}
	return s
}

// Restore discards all edits and returns a fresh copy of the snapshot cart.
func Restore(s Snapshot) []Item {
	return append([]Item(nil), s.Items...)
}

// AddItem validates and appends a row. The pickup timestamp must already be
// chosen; this is the UI-level precondition the planner relies on.
func AddItem(cart []Item, it Item) ([]Item, error) {
	if it.PickupAt.IsZero() {
		return cart, ErrPickupRequired
	}
	if it.Name == "" {
		return cart, ErrEmptyItemName
	}
	if it.UnitPrice.IsNegative() {
		return cart, ErrNegativePrice
	}
	if it.Quantity <= 0 {
		return cart, ErrInvalidQuantity
	}
	if it.Key == "" {
		it.Key = ItemKey(it.Kind, it.CatalogID)
	}
	if it.InstanceID == "" {
		it.InstanceID = uuid.NewString()
	}
	return append(cart, it), nil
}

// SetQuantity updates one row by instance id; a quantity of zero or less
// removes the row. Unknown instance ids are a no-op.
func SetQuantity(cart []Item, instanceID string, quantity int32) []Item {
	if quantity <= 0 {
		return RemoveItem(cart, instanceID)
	}
	out := append([]Item(nil), cart...)
	for i := range out {
		if out[i].InstanceID == instanceID {
			out[i].Quantity = quantity
			break
		}
	}
	return out
}

// RemoveItem drops one row by instance id.
func RemoveItem(cart []Item, instanceID string) []Item {
	out := make([]Item, 0, len(cart))
	for _, it := range cart {
		if it.InstanceID != instanceID {
			out = append(out, it)
		}
	}
	return out
}
