package core

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// moneyPattern matches a message that starts with an optional budget
// exemption marker and an amount: digits with optional dots and
// internal spaces ("1 000", "12.50"). Everything after is the
// remainder (currency word, note, tags).
var moneyPattern = regexp.MustCompile(`^(\*?)([0-9][0-9. ]*)(.*)$`)

// ParseMessage turns a raw chat message plus its entity spans into a
// structured spend intent.
//
// The comma-ok result is the "not an expense" case: a message with no
// leading amount (or an amount that does not parse) yields ok=false,
// never an error. An Intent with a non-empty Commands list means the
// message is a bot command; routing on that fact is the caller's job.
//
// Pure function: identical (text, spans) always produce an identical
// Intent.
func ParseMessage(text string, spans []Span, table *Table) (Intent, bool) {
	trimmed := strings.TrimSpace(text)

	m := moneyPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return Intent{}, false
	}

	ignoreLimit := m[1] == "*"

	amount, ok := parseAmount(m[2])
	if !ok {
		return Intent{}, false
	}

	remainder := strings.TrimSpace(m[3])

	// A leading run of letters is a candidate currency word. When it
	// names a known currency it is consumed; otherwise it stays in the
	// note and the currency falls back to the default. That ambiguity
	// ("euro lunch" vs "evening lunch") is inherent to the grammar, so
	// the unknown-token case degrades silently.
	currency := table.Base()
	if word := leadingLetters(remainder); word != "" {
		if code := table.Normalize(word); code != "" {
			currency = code
			remainder = remainder[len(word):]
		}
	}

	// Span offsets are relative to the original message; re-align them
	// to the remainder by subtracting where the remainder starts.
	base := 0
	if remainder != "" {
		if idx := strings.Index(trimmed, remainder); idx >= 0 {
			base = -utf8.RuneCountInString(trimmed[:idx])
		}
	}
	extracted := ExtractEntities(remainder, spans, base)

	tags := extracted.Tags
	if ignoreLimit {
		tags = append(tags, TagNoLimit)
	}

	return Intent{
		Amount:      amount,
		Note:        strings.TrimSpace(extracted.Text),
		Currency:    currency,
		Tags:        tags,
		Commands:    extracted.Commands,
		IgnoreLimit: ignoreLimit,
	}, true
}

// parseAmount strips the internal space padding ("1 000" -> "1000")
// and parses the rest as a decimal. A bare trailing dot is tolerated,
// anything else malformed (say "1.2.3") is not an amount.
func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	s = strings.TrimSuffix(s, ".")
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

func leadingLetters(s string) string {
	for i, r := range s {
		if !unicode.IsLetter(r) {
			return s[:i]
		}
	}
	return s
}
