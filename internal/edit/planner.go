package edit

import "time"

// Group is the set of cart items sharing one exact pickup timestamp. Each
// group becomes one replacement order.
type Group struct {
	Key      string // RFC 3339 pickup timestamp
	PickupAt time.Time
	Items    []Item
}

// Plan partitions the cart into one group per distinct pickup timestamp.
// Grouping is by exact timestamp string equality (date and time combined),
// not calendar day: a customer who changes the time selector and re-adds
// items legitimately produces two groups in one session. Groups come back in
// the order their timestamps were first encountered, so output is stable and
// deterministic. Items without a timestamp are a caller precondition
// (AddItem rejects them) and are not re-validated here.
func Plan(cart []Item) []Group {
	var groups []Group
	index := make(map[string]int)

	for _, it := range cart {
		key := it.PickupAt.Format(time.RFC3339)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key, PickupAt: it.PickupAt})
		}
		groups[i].Items = append(groups[i].Items, it)
	}

	return groups
}
