// internal/registry/views.go
package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/whaleshi/b/internal/dex/model"
)

var hundred = decimal.NewFromInt(100)

// View names one directory tab.
type View int

const (
	ViewNew View = iota
	ViewTrending
	ViewLaunched
)

func (v View) String() string {
	switch v {
	case ViewNew:
		return "New"
	case ViewTrending:
		return "Trending"
	case ViewLaunched:
		return "Launched"
	default:
		return "Unknown"
	}
}

// Views lists every tab in display order.
var Views = []View{ViewNew, ViewTrending, ViewLaunched}

// ParseView accepts a tab name in any case.
func ParseView(s string) (View, error) {
	for _, v := range Views {
		if strings.EqualFold(v.String(), strings.TrimSpace(s)) {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown view %q", s)
}

// Apply returns the records of view. Input is never modified.
func Apply(view View, records []model.TokenRecord) []model.TokenRecord {
	switch view {
	case ViewNew:
		return New(records)
	case ViewTrending:
		return Trending(records)
	case ViewLaunched:
		return Launched(records)
	default:
		return nil
	}
}

// New: still bonding, most recent first.
func New(records []model.TokenRecord) []model.TokenRecord {
	out := filter(records, isBonding)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index > out[j].Index })
	return out
}

// Trending: still bonding, closest to launch first.
func Trending(records []model.TokenRecord) []model.TokenRecord {
	out := filter(records, isBonding)
	sortByProgress(out)
	return out
}

// Launched: graduated to the AMM, highest progress first.
func Launched(records []model.TokenRecord) []model.TokenRecord {
	out := filter(records, func(r model.TokenRecord) bool { return r.Launched })
	sortByProgress(out)
	return out
}

// FilterByAddress keeps records whose address contains query, case-insensitively.
// An empty query keeps everything.
func FilterByAddress(records []model.TokenRecord, query string) []model.TokenRecord {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return append([]model.TokenRecord(nil), records...)
	}
	return filter(records, func(r model.TokenRecord) bool {
		return strings.Contains(strings.ToLower(r.Address.Hex()), q)
	})
}

func isBonding(r model.TokenRecord) bool {
	return r.Progress.LessThan(hundred)
}

func sortByProgress(records []model.TokenRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Progress.GreaterThan(records[j].Progress)
	})
}

func filter(records []model.TokenRecord, keep func(model.TokenRecord) bool) []model.TokenRecord {
	out := make([]model.TokenRecord, 0, len(records))
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
