package edit

import (
	"testing"
	"time"
)

func TestPlan_SingleTimestampSingleGroup(t *testing.T) {
	cart, _ := AddItem(nil, testItem("Poulet basquaise", "12.90", 2))
	cart, _ = AddItem(cart, testItem("Tarte citron", "4.20", 1))

	groups := Plan(cart)
	if len(groups) != 1 {
		t.Fatalf("group count: got %d, want 1", len(groups))
	}
	if len(groups[0].Items) != 2 {
		t.Errorf("group items: got %d, want 2", len(groups[0].Items))
	}
	if groups[0].Key != testPickup.Format(time.RFC3339) {
		t.Errorf("group key: got %q", groups[0].Key)
	}
}

func TestPlan_GroupsByExactTimestampNotCalendarDay(t *testing.T) {
	evening := testItem("Poulet basquaise", "12.90", 1)
	later := testItem("Tarte citron", "4.20", 1)
	later.PickupAt = testPickup.Add(90 * time.Minute) // same day, 20:30

	cart, _ := AddItem(nil, evening)
	cart, _ = AddItem(cart, later)

	groups := Plan(cart)
	if len(groups) != 2 {
		t.Fatalf("group count: got %d, want 2 (same day, different times)", len(groups))
	}
}

func TestPlan_FirstEncounterOrder(t *testing.T) {
	a := testItem("Poulet basquaise", "12.90", 1)
	b := testItem("Tarte citron", "4.20", 1)
	b.PickupAt = testPickup.Add(-24 * time.Hour)
	c := testItem("Gratin dauphinois", "9.80", 1)

	cart, _ := AddItem(nil, a)
	cart, _ = AddItem(cart, b)
	cart, _ = AddItem(cart, c) // same timestamp as a, joins the first group

	groups := Plan(cart)
	if len(groups) != 2 {
		t.Fatalf("group count: got %d, want 2", len(groups))
	}
	if !groups[0].PickupAt.Equal(testPickup) {
		t.Errorf("first group must be the first-encountered timestamp, got %v", groups[0].PickupAt)
	}
	if len(groups[0].Items) != 2 || len(groups[1].Items) != 1 {
		t.Errorf("group sizes: got %d and %d, want 2 and 1", len(groups[0].Items), len(groups[1].Items))
	}
}

func TestPlan_Exhaustive(t *testing.T) {
	var cart []Item
	names := []string{"a", "b", "c", "d", "e"}
	for i, n := range names {
		it := testItem(n, "1.00", 1)
		it.CatalogID = int64(i + 1)
		it.PickupAt = testPickup.Add(time.Duration(i%2) * time.Hour)
		cart, _ = AddItem(cart, it)
	}

	groups := Plan(cart)

	seen := make(map[string]int)
	total := 0
	for _, g := range groups {
		for _, it := range g.Items {
			seen[it.InstanceID]++
			total++
		}
	}

	if total != len(cart) {
		t.Fatalf("planned items: got %d, want %d", total, len(cart))
	}
	for _, it := range cart {
		if seen[it.InstanceID] != 1 {
			t.Errorf("item %s appears %d times, want exactly once", it.Name, seen[it.InstanceID])
		}
	}
	if len(groups) != 2 {
		t.Errorf("group count: got %d, want 2 distinct timestamps", len(groups))
	}
}

func TestPlan_EmptyCart(t *testing.T) {
	if groups := Plan(nil); len(groups) != 0 {
		t.Fatalf("empty cart must plan zero groups, got %d", len(groups))
	}
}
