package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Amounts is an insertion-order-preserving mapping from currency code
// to a running sum. Iteration order is the order currencies were first
// seen, which keeps report output reproducible.
type Amounts struct {
	order []string
	sums  map[string]decimal.Decimal
}

func NewAmounts() *Amounts {
	return &Amounts{sums: make(map[string]decimal.Decimal)}
}

// Add accumulates amount under code. No rounding happens here; rounding
// is a display-time concern.
func (a *Amounts) Add(code string, amount decimal.Decimal) {
	if _, ok := a.sums[code]; !ok {
		a.order = append(a.order, code)
	}
	a.sums[code] = a.sums[code].Add(amount)
}

// Currencies returns the codes in first-seen order.
func (a *Amounts) Currencies() []string { return a.order }

// Get returns the sum for code, zero if absent.
func (a *Amounts) Get(code string) decimal.Decimal { return a.sums[code] }

func (a *Amounts) Len() int { return len(a.order) }

// InBase converts the whole map into the base currency without
// mutating the stored per-currency sums.
func (a *Amounts) InBase(table *Table) decimal.Decimal {
	total := decimal.Decimal{}
	for _, code := range a.order {
		total = total.Add(table.ToBase(code, a.sums[code]))
	}
	return total
}

// HasForeign reports whether any non-base currency is present.
func (a *Amounts) HasForeign(base string) bool {
	for _, code := range a.order {
		if code != base {
			return true
		}
	}
	return false
}

// Report is the ephemeral aggregation of a cell's spends over a period:
// an itemized per-day ledger plus per-tag and grand totals.
type Report struct {
	Total *Amounts
	Days  map[string][]string
	// DayOrder preserves first-seen day order for output.
	DayOrder []string
	Tags     map[string]*Amounts
	tagOrder []string
	Empty    bool
	// Remaining is the budget left this month, attached by the caller
	// when a limit is configured. nil means "no budget line".
	Remaining *decimal.Decimal
}

// Aggregator groups spends and evaluates budgets against a rate table
// and the tracker's fixed display timezone.
type Aggregator struct {
	Table *Table
	Zone  *time.Location
}

// NewAggregator uses the tracker's display offset of UTC+3.
func NewAggregator(table *Table) *Aggregator {
	return &Aggregator{Table: table, Zone: time.FixedZone("MSK", 3*60*60)}
}

// Aggregate buckets the entries by calendar day (display timezone,
// first-seen order, chronological within a day) and by tag. Spends
// without tags get the sentinel "other" tag, so the sum of all tag
// buckets always equals the grand total.
func (g *Aggregator) Aggregate(entries []Spend) *Report {
	r := &Report{
		Total: NewAmounts(),
		Days:  make(map[string][]string),
		Tags:  make(map[string]*Amounts),
	}
	if len(entries) == 0 {
		r.Empty = true
		return r
	}

	for _, entry := range entries {
		created := entry.CreatedAt.In(g.Zone)
		day := created.Format("02.01")
		if _, ok := r.Days[day]; !ok {
			r.DayOrder = append(r.DayOrder, day)
		}
		r.Days[day] = append(r.Days[day], g.ledgerLine(created, entry))

		r.Total.Add(entry.Currency, entry.Amount)

		tags := entry.Tags
		if len(tags) == 0 {
			tags = []string{TagOther}
		}
		for _, tag := range tags {
			bucket, ok := r.Tags[tag]
			if !ok {
				bucket = NewAmounts()
				r.Tags[tag] = bucket
				r.tagOrder = append(r.tagOrder, tag)
			}
			bucket.Add(entry.Currency, entry.Amount)
		}
	}
	return r
}

func (g *Aggregator) ledgerLine(created time.Time, entry Spend) string {
	line := created.Format("15:04") + " - " + entry.Amount.String() +
		" " + g.Table.ForDisplay(entry.Currency) + " - " + entry.Author
	if entry.Note != "" {
		line += " - " + entry.Note
	}
	return line
}

// SortedTags returns the report's tags by descending base-currency sum,
// ties kept in first-seen order. The stored per-currency sums are not
// touched; conversion happens only for the sort key.
func (r *Report) SortedTags(table *Table) []string {
	tags := make([]string, len(r.tagOrder))
	copy(tags, r.tagOrder)
	sort.SliceStable(tags, func(i, j int) bool {
		return r.Tags[tags[i]].InBase(table).GreaterThan(r.Tags[tags[j]].InBase(table))
	})
	return tags
}

// Remaining computes the budget left after the given entries, which
// must already be scoped to the current month. The comma-ok result is
// false when no limit is configured, which is distinct from a limit
// with zero left.
//
// Spends tagged no_limit never count. An only-list keeps just spends
// carrying at least one listed tag; otherwise an except-list drops
// spends carrying any listed tag. Each spend's base conversion is
// rounded up to the next whole unit before subtraction: the budget is
// deliberately conservative where display rounding is not.
func (g *Aggregator) Remaining(entries []Spend, limit Limit) (decimal.Decimal, bool) {
	if !limit.Enabled() {
		return decimal.Decimal{}, false
	}

	spent := decimal.Decimal{}
	for _, entry := range entries {
		if hasTag(entry.Tags, TagNoLimit) {
			continue
		}
		if len(limit.Only) > 0 {
			if !hasAnyTag(entry.Tags, limit.Only) {
				continue
			}
		} else if len(limit.Except) > 0 {
			if hasAnyTag(entry.Tags, limit.Except) {
				continue
			}
		}
		spent = spent.Add(g.Table.toBaseExact(entry.Currency, entry.Amount).Ceil())
	}
	return limit.Amount.Sub(spent), true
}

func hasTag(tags []string, want string) bool {
	for _, tag := range tags {
		if tag == want {
			return true
		}
	}
	return false
}

func hasAnyTag(tags []string, wanted []string) bool {
	for _, want := range wanted {
		if hasTag(tags, want) {
			return true
		}
	}
	return false
}
