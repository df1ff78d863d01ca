package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func mskTime(t *testing.T, value string) time.Time {
	t.Helper()
	msk := time.FixedZone("MSK", 3*60*60)
	ts, err := time.ParseInLocation("2006-01-02 15:04", value, msk)
	if err != nil {
		t.Fatalf("parse time %q: %v", value, err)
	}
	return ts
}

func spend(t *testing.T, created, amount, currency, author, note string, tags ...string) Spend {
	t.Helper()
	return Spend{
		Author:    author,
		Amount:    decimal.RequireFromString(amount),
		Currency:  currency,
		Note:      note,
		Tags:      tags,
		CreatedAt: mskTime(t, created),
	}
}

func TestAggregateEmpty(t *testing.T) {
	agg := NewAggregator(testTable(t))
	r := agg.Aggregate(nil)
	if !r.Empty {
		t.Fatal("no entries should aggregate to an empty report")
	}
}

func TestAggregateDaysAndTags(t *testing.T) {
	agg := NewAggregator(testTable(t))
	entries := []Spend{
		spend(t, "2025-03-01 09:15", "100", "RUB", "Аня", "завтрак", "#еда"),
		spend(t, "2025-03-01 13:00", "2", "EUR", "Ваня", "кофе", "#еда"),
		spend(t, "2025-03-02 10:30", "500", "RUB", "Аня", "", "#транспорт"),
		spend(t, "2025-03-02 20:00", "70", "RUB", "Ваня", "без тега"),
	}

	r := agg.Aggregate(entries)

	wantDays := []string{"01.03", "02.03"}
	if len(r.DayOrder) != 2 || r.DayOrder[0] != wantDays[0] || r.DayOrder[1] != wantDays[1] {
		t.Fatalf("day order = %v, want %v", r.DayOrder, wantDays)
	}
	if got := r.Days["01.03"][0]; got != "09:15 - 100 руб - Аня - завтрак" {
		t.Fatalf("ledger line = %q", got)
	}
	if got := r.Days["02.03"][1]; got != "20:00 - 70 руб - Ваня - без тега" {
		t.Fatalf("untagged ledger line = %q", got)
	}

	if got := r.Total.Get("RUB"); !got.Equal(decimal.NewFromInt(670)) {
		t.Fatalf("RUB total = %s", got)
	}
	if got := r.Total.Get("EUR"); !got.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("EUR total = %s", got)
	}

	// The untagged entry lands in the sentinel bucket.
	other, ok := r.Tags[TagOther]
	if !ok {
		t.Fatal("missing sentinel tag bucket")
	}
	if got := other.Get("RUB"); !got.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("other bucket = %s", got)
	}
}

// The sum of all tag buckets must equal the grand total once untagged
// entries are normalized into the sentinel bucket.
func TestAggregateTagTotalInvariant(t *testing.T) {
	tbl := testTable(t)
	agg := NewAggregator(tbl)
	entries := []Spend{
		spend(t, "2025-03-01 09:00", "100", "RUB", "a", ""),
		spend(t, "2025-03-01 10:00", "3.5", "EUR", "b", "", "#x"),
		spend(t, "2025-03-02 11:00", "40", "USD", "c", "", "#y"),
		spend(t, "2025-03-03 12:00", "7", "RUB", "d", "", "#x"),
	}

	r := agg.Aggregate(entries)

	total := r.Total.InBase(tbl)
	tagged := decimal.Decimal{}
	for tag := range r.Tags {
		tagged = tagged.Add(r.Tags[tag].InBase(tbl))
	}
	if !total.Equal(tagged) {
		t.Fatalf("tag sums %s != grand total %s", tagged, total)
	}
}

func TestSortedTagsByBaseSum(t *testing.T) {
	tbl := testTable(t)
	agg := NewAggregator(tbl)
	entries := []Spend{
		spend(t, "2025-03-01 09:00", "10", "RUB", "a", "", "#мелочь"),
		spend(t, "2025-03-01 10:00", "5", "EUR", "a", "", "#поездка"), // 502.5 in base
		spend(t, "2025-03-01 11:00", "100", "RUB", "a", "", "#еда"),
	}

	got := agg.Aggregate(entries).SortedTags(tbl)
	want := []string{"#поездка", "#еда", "#мелочь"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sorted tags = %v, want %v", got, want)
		}
	}
}

func TestSortedTagsStableOnTies(t *testing.T) {
	tbl := testTable(t)
	agg := NewAggregator(tbl)
	entries := []Spend{
		spend(t, "2025-03-01 09:00", "50", "RUB", "a", "", "#б"),
		spend(t, "2025-03-01 10:00", "50", "RUB", "a", "", "#а"),
	}
	got := agg.Aggregate(entries).SortedTags(tbl)
	if got[0] != "#б" || got[1] != "#а" {
		t.Fatalf("ties must keep insertion order, got %v", got)
	}
}

func TestRemainingDisabled(t *testing.T) {
	agg := NewAggregator(testTable(t))
	if _, ok := agg.Remaining([]Spend{spend(t, "2025-03-01 09:00", "10", "RUB", "a", "")}, Limit{}); ok {
		t.Fatal("zero limit means no budget, not zero remaining")
	}
}

func TestRemainingSubtractsWithCeiling(t *testing.T) {
	tbl := NewTable("RUB")
	if err := tbl.Replace(map[string]decimal.Decimal{"EUR": decimal.RequireFromString("1.67")}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	agg := NewAggregator(tbl)

	// 1.20 EUR * 1.67 = 2.004 in base; the budget charges ceil(2.004) = 3.
	entries := []Spend{spend(t, "2025-03-01 09:00", "1.20", "EUR", "a", "")}
	left, ok := agg.Remaining(entries, Limit{Amount: decimal.NewFromInt(10)})
	if !ok {
		t.Fatal("limit is enabled")
	}
	if !left.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("remaining = %s, want 7", left)
	}
}

func TestRemainingTagFilters(t *testing.T) {
	agg := NewAggregator(testTable(t))
	entries := []Spend{
		spend(t, "2025-03-01 09:00", "100", "RUB", "a", "", "#еда"),
		spend(t, "2025-03-01 10:00", "200", "RUB", "a", "", "#техника"),
		spend(t, "2025-03-01 11:00", "400", "RUB", "a", "", TagNoLimit),
	}

	cases := []struct {
		name  string
		limit Limit
		want  int64
	}{
		{
			name:  "no filters counts all but no_limit",
			limit: Limit{Amount: decimal.NewFromInt(1000)},
			want:  700,
		},
		{
			name:  "only-list keeps listed tags",
			limit: Limit{Amount: decimal.NewFromInt(1000), Only: []string{"#еда"}},
			want:  900,
		},
		{
			name:  "except-list drops listed tags",
			limit: Limit{Amount: decimal.NewFromInt(1000), Except: []string{"#техника"}},
			want:  900,
		},
		{
			name: "only wins over except when both set",
			limit: Limit{
				Amount: decimal.NewFromInt(1000),
				Only:   []string{"#еда"},
				Except: []string{"#еда"},
			},
			want: 900,
		},
		{
			name:  "overspend goes negative",
			limit: Limit{Amount: decimal.NewFromInt(250)},
			want:  -50,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			left, ok := agg.Remaining(entries, tc.limit)
			if !ok {
				t.Fatal("limit is enabled")
			}
			if !left.Equal(decimal.NewFromInt(tc.want)) {
				t.Fatalf("remaining = %s, want %d", left, tc.want)
			}
		})
	}
}
