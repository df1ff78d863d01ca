package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func testTable(t *testing.T) *Table {
	t.Helper()
	tbl := NewTable(DefaultCurrency)
	err := tbl.Replace(map[string]decimal.Decimal{
		"EUR": decimal.RequireFromString("100.5"),
		"USD": decimal.RequireFromString("90"),
	})
	if err != nil {
		t.Fatalf("replace rates: %v", err)
	}
	return tbl
}

func TestNormalize(t *testing.T) {
	tbl := testTable(t)
	cases := []struct {
		in  string
		out string
	}{
		{"eur", "EUR"},
		{"EUR", "EUR"},
		{"euro", "EUR"},
		{"eu", "EUR"},
		{"usd", "USD"},
		{"us", "USD"},
		{"руб", "RUB"},
		{"rub", "RUB"},
		{"pounds", ""},
		{"food", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := tbl.Normalize(tc.in); got != tc.out {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.out)
		}
	}
}

func TestIsCurrency(t *testing.T) {
	tbl := testTable(t)
	if !tbl.IsCurrency("euro") {
		t.Fatal("euro should be a currency")
	}
	if tbl.IsCurrency("lunch") {
		t.Fatal("lunch should not be a currency")
	}
	if tbl.IsCurrency("") {
		t.Fatal("empty token should not be a currency")
	}
}

func TestCanonicalName(t *testing.T) {
	tbl := testTable(t)
	if got := tbl.CanonicalName("eur"); got != "EUR" {
		t.Fatalf("known code: got %q", got)
	}
	if got := tbl.CanonicalName("XXX"); got != "RUB" {
		t.Fatalf("unknown code should fall back to base: got %q", got)
	}
	if got := tbl.CanonicalName(""); got != "RUB" {
		t.Fatalf("absent code should fall back to base: got %q", got)
	}
}

func TestToBase(t *testing.T) {
	tbl := testTable(t)
	cases := []struct {
		code   string
		amount string
		want   string
	}{
		{"RUB", "150", "150"},           // identity for base
		{"EUR", "2", "201"},             // 2 * 100.5
		{"EUR", "1.234", "124.02"},      // rounded to 2 places, half away
		{"XXX", "42.42", "42.42"},       // unknown codes pass through
		{"", "10", "10"},                // absent code is base
	}
	for _, tc := range cases {
		got := tbl.ToBase(tc.code, decimal.RequireFromString(tc.amount))
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("ToBase(%q, %s) = %s, want %s", tc.code, tc.amount, got, tc.want)
		}
	}
}

func TestForDisplay(t *testing.T) {
	tbl := testTable(t)
	cases := []struct {
		code string
		want string
	}{
		{"RUB", "руб"},
		{"EUR", "euro"},
		{"USD", "usd"},
		{"", "руб"},
		{"XXX", "руб"},
	}
	for _, tc := range cases {
		if got := tbl.ForDisplay(tc.code); got != tc.want {
			t.Fatalf("ForDisplay(%q) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestReplaceKeepsOldTableOnError(t *testing.T) {
	tbl := testTable(t)

	if err := tbl.Replace(nil); err == nil {
		t.Fatal("empty replacement should fail")
	}
	if err := tbl.Replace(map[string]decimal.Decimal{"EUR": decimal.Zero}); err == nil {
		t.Fatal("non-positive rate should fail")
	}

	// Previous snapshot must survive both failures.
	if !tbl.IsCurrency("euro") {
		t.Fatal("old table lost after failed replace")
	}
	got := tbl.ToBase("USD", decimal.NewFromInt(1))
	if !got.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("old USD rate lost: got %s", got)
	}
}

func TestReplacePinsBaseRate(t *testing.T) {
	tbl := NewTable("RUB")
	err := tbl.Replace(map[string]decimal.Decimal{
		"RUB": decimal.RequireFromString("55"), // feed noise, must be overridden
		"EUR": decimal.RequireFromString("100"),
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	got := tbl.ToBase("RUB", decimal.NewFromInt(10))
	if !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("base conversion must stay identity, got %s", got)
	}
}
