package edit

import (
	"fmt"

	"github.com/petitplat/api/internal/enum"
)

// Editable reports whether the revision engine may touch the order. Only
// PENDING and CONFIRMED orders are editable; once the kitchen has started
// (or the order is done or cancelled) it is immutable to this engine.
func Editable(status string) bool {
	switch status {
	case enum.OrderStatusPending, enum.OrderStatusConfirmed:
		return true
	}
	return false
}

// IsValidStatus reports whether s is a known order status.
func IsValidStatus(s string) bool {
	switch s {
	case enum.OrderStatusPending,
		enum.OrderStatusConfirmed,
		enum.OrderStatusPreparing,
		enum.OrderStatusReadyForPickup,
		enum.OrderStatusPickedUp,
		enum.OrderStatusCancelled:
		return true
	}
	return false
}

// allowedTransitions defines the order lifecycle. Key is current status,
// value is the set of statuses it can move to. Cancellation is only
// reachable while the order is still editable.
var allowedTransitions = map[string][]string{
	enum.OrderStatusPending:        {enum.OrderStatusConfirmed, enum.OrderStatusCancelled},
	enum.OrderStatusConfirmed:      {enum.OrderStatusPreparing, enum.OrderStatusCancelled},
	enum.OrderStatusPreparing:      {enum.OrderStatusReadyForPickup},
	enum.OrderStatusReadyForPickup: {enum.OrderStatusPickedUp},
}

// ValidateTransition checks if moving from current to next is allowed.
func ValidateTransition(current, next string) error {
	allowed, ok := allowedTransitions[current]
	if !ok {
		return fmt.Errorf("cannot transition from %s", current)
	}
	for _, s := range allowed {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("cannot transition from %s to %s", current, next)
}
