package core

import (
	"strings"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is the base currency every cross-currency total is
// converted into.
const DefaultCurrency = "RUB"

// aliases maps user-typed currency shorthands to canonical codes.
// Checked before the rate table, so "euro" and "eu" both resolve to EUR.
var aliases = map[string]string{
	"EU":   "EUR",
	"EURO": "EUR",
	"US":   "USD",
	"RU":   "RUB",
	"РУБ":  "RUB",
}

// labels maps canonical codes to their vernacular display form. Codes
// without an entry are shown as the lowercased code itself.
var labels = map[string]string{
	"RUB": "руб",
	"EUR": "euro",
}

// Table holds the current exchange rates keyed by canonical currency
// code, each rate being the value of one unit in the base currency.
// Readers always see a complete snapshot: Replace swaps the whole map
// atomically, so a concurrent refresh can never expose a half-updated
// table. Single writer (the daily refresh), many readers.
type Table struct {
	base string
	snap atomic.Pointer[map[string]decimal.Decimal]
}

// NewTable returns a table that knows only the base currency at rate 1.
func NewTable(base string) *Table {
	if base == "" {
		base = DefaultCurrency
	}
	t := &Table{base: base}
	rates := map[string]decimal.Decimal{base: decimal.NewFromInt(1)}
	t.snap.Store(&rates)
	return t
}

// Base returns the base currency code.
func (t *Table) Base() string { return t.base }

// Replace swaps in a whole new rate table. A malformed input (empty, or
// any non-positive rate) leaves the previous table intact and returns
// an error; missing entries are never interpolated. The base currency
// is always pinned at rate 1.
func (t *Table) Replace(rates map[string]decimal.Decimal) error {
	if len(rates) == 0 {
		return ErrEmptyRates
	}
	next := make(map[string]decimal.Decimal, len(rates)+1)
	for code, rate := range rates {
		if !rate.IsPositive() {
			return ErrInvalidRate
		}
		next[strings.ToUpper(code)] = rate
	}
	next[t.base] = decimal.NewFromInt(1)
	t.snap.Store(&next)
	return nil
}

// Rates returns the current snapshot. Callers must not mutate it.
func (t *Table) Rates() map[string]decimal.Decimal {
	return *t.snap.Load()
}

// Normalize resolves a user-typed token to a known currency code.
// Alias table first, then direct match against the rate table; returns
// "" when the result is not a known currency.
func (t *Table) Normalize(token string) string {
	code := strings.ToUpper(token)
	if canonical, ok := aliases[code]; ok {
		code = canonical
	}
	if _, ok := t.Rates()[code]; !ok {
		return ""
	}
	return code
}

// IsCurrency reports whether the token names a known currency, i.e.
// Normalize would not fall back to the default for it.
func (t *Table) IsCurrency(token string) bool {
	return token != "" && t.Normalize(token) != ""
}

// CanonicalName returns the code itself when known, else the base
// code, so every display path ends up with a valid currency.
func (t *Table) CanonicalName(code string) string {
	if _, ok := t.Rates()[strings.ToUpper(code)]; ok {
		return strings.ToUpper(code)
	}
	return t.base
}

// ToBase converts an amount into the base currency, rounded to two
// decimal places half away from zero. The base code converts as
// identity. Unknown codes pass through unconverted: storage also keeps
// the original code and raw amount, so nothing is lost by degrading.
func (t *Table) ToBase(code string, amount decimal.Decimal) decimal.Decimal {
	code = strings.ToUpper(code)
	if code == "" || code == t.base {
		return amount
	}
	rate, ok := t.Rates()[code]
	if !ok {
		return amount
	}
	return amount.Mul(rate).Round(2)
}

// toBaseExact is ToBase without the display rounding. The budget's
// per-entry ceiling has to see the raw product, not a value already
// rounded to cents.
func (t *Table) toBaseExact(code string, amount decimal.Decimal) decimal.Decimal {
	code = strings.ToUpper(code)
	if code == "" || code == t.base {
		return amount
	}
	rate, ok := t.Rates()[code]
	if !ok {
		return amount
	}
	return amount.Mul(rate)
}

// ForDisplay maps a code to its short human label. Empty or unknown
// codes render as the base label.
func (t *Table) ForDisplay(code string) string {
	code = t.CanonicalName(code)
	if label, ok := labels[code]; ok {
		return label
	}
	return strings.ToLower(code)
}
