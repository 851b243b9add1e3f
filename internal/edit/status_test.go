package edit

import (
	"testing"

	"github.com/petitplat/api/internal/enum"
)

func TestEditable(t *testing.T) {
	editable := []string{enum.OrderStatusPending, enum.OrderStatusConfirmed}
	for _, s := range editable {
		if !Editable(s) {
			t.Errorf("%s must be editable", s)
		}
	}

	frozen := []string{
		enum.OrderStatusPreparing,
		enum.OrderStatusReadyForPickup,
		enum.OrderStatusPickedUp,
		enum.OrderStatusCancelled,
	}
	for _, s := range frozen {
		if Editable(s) {
			t.Errorf("%s must not be editable", s)
		}
	}

	if Editable("GARBAGE") {
		t.Error("unknown status must not be editable")
	}
}

func TestValidateTransition_Lifecycle(t *testing.T) {
	ok := [][2]string{
		{enum.OrderStatusPending, enum.OrderStatusConfirmed},
		{enum.OrderStatusPending, enum.OrderStatusCancelled},
		{enum.OrderStatusConfirmed, enum.OrderStatusPreparing},
		{enum.OrderStatusConfirmed, enum.OrderStatusCancelled},
		{enum.OrderStatusPreparing, enum.OrderStatusReadyForPickup},
		{enum.OrderStatusReadyForPickup, enum.OrderStatusPickedUp},
	}
	for _, pair := range ok {
		if err := ValidateTransition(pair[0], pair[1]); err != nil {
			t.Errorf("%s -> %s should be allowed: %v", pair[0], pair[1], err)
		}
	}

	bad := [][2]string{
		{enum.OrderStatusPending, enum.OrderStatusPreparing},
		{enum.OrderStatusPreparing, enum.OrderStatusCancelled},
		{enum.OrderStatusReadyForPickup, enum.OrderStatusCancelled},
		{enum.OrderStatusPickedUp, enum.OrderStatusCancelled},
		{enum.OrderStatusCancelled, enum.OrderStatusPending},
		{enum.OrderStatusPickedUp, enum.OrderStatusPending},
	}
	for _, pair := range bad {
		if err := ValidateTransition(pair[0], pair[1]); err == nil {
			t.Errorf("%s -> %s should be rejected", pair[0], pair[1])
		}
	}
}

func TestIsValidStatus(t *testing.T) {
	if !IsValidStatus(enum.OrderStatusReadyForPickup) {
		t.Error("READY_FOR_PICKUP is a valid status")
	}
	if IsValidStatus("NEW") {
		t.Error("NEW is not part of this lifecycle")
	}
}
