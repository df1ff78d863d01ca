package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// EmptyReport is the fixed reply for a period with no records.
const EmptyReport = "Нет записей"

// Format renders a report into the multi-line text the bot sends:
// each day's label and ledger lines, a totals section with the per-tag
// breakdown, the grand total, and the remaining budget when one is
// attached. Byte-identical output for identical input.
func (g *Aggregator) Format(r *Report) string {
	if r.Empty {
		return EmptyReport
	}

	var b strings.Builder
	for _, day := range r.DayOrder {
		b.WriteString("\n" + day + "\n")
		b.WriteString(strings.Join(r.Days[day], "\n"))
		b.WriteString("\n")
	}

	b.WriteString("\nВсего:")

	// A lone "other" bucket repeats the grand total, so it is dropped.
	_, onlyOther := r.Tags[TagOther]
	if len(r.Tags) > 1 || !onlyOther {
		for _, tag := range r.SortedTags(g.Table) {
			b.WriteString("\n" + tag + " - " + g.DisplayAmounts(r.Tags[tag]))
		}
	}

	b.WriteString("\n= " + g.DisplayAmounts(r.Total))

	if r.Remaining != nil {
		b.WriteString("\nОстаток:\n= " + DisplayNumber(*r.Remaining))
	}

	return b.String()
}

// DisplayAmounts renders a per-currency sum map: "1 000 руб"-style
// parts joined with ", ", plus a parenthesized base-currency total
// whenever a foreign currency is present.
func (g *Aggregator) DisplayAmounts(a *Amounts) string {
	parts := make([]string, 0, a.Len())
	for _, code := range a.Currencies() {
		parts = append(parts, DisplayNumber(a.Get(code))+" "+g.Table.ForDisplay(code))
	}
	out := strings.Join(parts, ", ")
	if a.HasForeign(g.Table.Base()) {
		out += " (" + DisplayNumber(a.InBase(g.Table)) + " " + g.Table.ForDisplay(g.Table.Base()) + ")"
	}
	return out
}

// DisplayNumber shows a value with one decimal place only when it has
// a fractional part, else as a bare integer.
func DisplayNumber(d decimal.Decimal) string {
	if d.IsInteger() {
		return d.String()
	}
	return d.StringFixed(1)
}

// SplitMessage splits a formatted report into chunks that each fit the
// transport payload cap without ever cutting a line in half: lines are
// packed greedily and a new chunk starts when the next line would not
// fit. Concatenating the chunks reproduces the input exactly.
func SplitMessage(text string, limit int) []string {
	parts := []string{""}

	for _, line := range strings.Split(text, "\n") {
		line += "\n"
		if len(parts[len(parts)-1])+len(line) > limit {
			parts = append(parts, "")
		}
		parts[len(parts)-1] += line
	}

	// The loop treats every line as newline-terminated; the source text
	// is not, so drop the one extra terminator to keep concatenation
	// lossless.
	last := len(parts) - 1
	parts[last] = strings.TrimSuffix(parts[last], "\n")

	return parts
}
