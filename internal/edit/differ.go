package edit

import "github.com/shopspring/decimal"

// totalEpsilon absorbs float rounding of per-unit prices so a re-serialized
// but unchanged cart never reads as dirty and blocks saving.
var totalEpsilon = decimal.New(1, -2) // 0.01

// Revision is the live state of the editing session, compared against the
// session's Snapshot.
type Revision struct {
	Items []Item
	Date  string // "2006-01-02"
	Time  string // "15:04"
	Note  string
}

// IsDirty reports whether saving would change anything: a different pickup
// date (calendar day, including present/absent flips), a different time of
// day, a different note, a different line count, or a total that moved by
// more than totalEpsilon.
func IsDirty(original Snapshot, current Revision) bool {
	if original.Date != current.Date {
		return true
	}
	if original.Time != current.Time {
		return true
	}
	if original.Note != current.Note {
		return true
	}
	if len(original.Items) != len(current.Items) {
		return true
	}
	diff := CartTotal(original.Items).Sub(CartTotal(current.Items)).Abs()
	return diff.GreaterThan(totalEpsilon)
}
