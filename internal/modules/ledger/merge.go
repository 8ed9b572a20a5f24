package ledger

import (
	"sort"
	"time"
)

// Merge returns the new table body: every row outside partition is kept as is,
// the partition's rows are replaced by fresh, all stamped with the same time.
func Merge(existing []Entry, partition string, fresh []Entry, stamp time.Time) []Entry {
	out := make([]Entry, 0, len(existing)+len(fresh))
	for _, e := range existing {
		if e.Exchange != partition {
			out = append(out, e)
		}
	}
	for _, e := range fresh {
		e = e.Normalize()
		e.Exchange = partition
		e.Updated = stamp
		out = append(out, e)
	}
	Sort(out)
	return out
}

// Sort orders entries by exchange asc, type desc, currency asc
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Exchange != b.Exchange {
			return a.Exchange < b.Exchange
		}
		if a.Type != b.Type {
			ra, rb := typeRank[a.Type], typeRank[b.Type]
			if ra != rb {
				return ra > rb
			}
			return a.Type > b.Type
		}
		return a.Currency < b.Currency
	})
}
