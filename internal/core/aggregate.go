package core

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Window selects a calendar-aligned range of transactions.
type Window string

const (
	WindowAll   Window = "all"
	WindowDay   Window = "day"
	WindowMonth Window = "month"
	WindowYear  Window = "year"
)

const (
	IncomeSeriesLabel  = "Income"
	ExpenseSeriesLabel = "Expenses"
	IncomeSeriesColor  = "rgb(75, 192, 192)"
	ExpenseSeriesColor = "rgb(255, 99, 132)"
)

// ParseWindow maps a query value to a Window. Empty means all.
func ParseWindow(s string) (Window, error) {
	switch Window(strings.ToLower(strings.TrimSpace(s))) {
	case "", WindowAll:
		return WindowAll, nil
	case WindowDay:
		return WindowDay, nil
	case WindowMonth:
		return WindowMonth, nil
	case WindowYear:
		return WindowYear, nil
	}
	return "", fmt.Errorf("invalid window %q: must be one of all, day, month, year", s)
}

// Bounds returns the half-open interval [start, end) of the calendar day,
// month or year containing now, in now's location. ok is false for
// WindowAll, which is unbounded.
func (w Window) Bounds(now time.Time) (start, end time.Time, ok bool) {
	loc := now.Location()
	y, m, d := now.Date()
	switch w {
	case WindowDay:
		start = time.Date(y, m, d, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 0, 1), true
	case WindowMonth:
		start = time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0), true
	case WindowYear:
		start = time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(1, 0, 0), true
	}
	return time.Time{}, time.Time{}, false
}

// ChartData is the labeled dataset shape consumed by chart renderers.
type ChartData struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Dataset is one series of a chart. Line series carry a single Color;
// pie slices carry one entry in Colors per label.
type Dataset struct {
	Label  string            `json:"label,omitempty"`
	Data   []decimal.Decimal `json:"data"`
	Color  string            `json:"color,omitempty"`
	Colors []string          `json:"colors,omitempty"`
}

// FilterByWindow keeps the transactions inside the current calendar window.
func FilterByWindow(txs []Transaction, w Window) []Transaction {
	return FilterByWindowAt(txs, w, time.Now())
}

// FilterByWindowAt is FilterByWindow evaluated at a fixed instant. The result
// is always a fresh slice.
func FilterByWindowAt(txs []Transaction, w Window, now time.Time) []Transaction {
	out := make([]Transaction, 0, len(txs))
	start, end, bounded := w.Bounds(now)
	for _, tx := range txs {
		if bounded && (tx.Date.Before(start) || !tx.Date.Before(end)) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

type bucketSums struct {
	at      time.Time
	income  decimal.Decimal
	expense decimal.Decimal
}

// ComputeTimeSeries folds transactions into income and expense sums per time
// bucket. Buckets are hours for a day window, days for a month window and
// months otherwise, taken in loc. Labels come back in chronological order.
func ComputeTimeSeries(txs []Transaction, w Window, loc *time.Location) ChartData {
	if loc == nil {
		loc = time.Local
	}

	buckets := make(map[int64]*bucketSums)
	for _, tx := range txs {
		at := bucketStart(tx.Date.In(loc), w)
		key := at.Unix()
		b, ok := buckets[key]
		if !ok {
			b = &bucketSums{at: at, income: decimal.Zero, expense: decimal.Zero}
			buckets[key] = b
		}
		if tx.IsIncome() {
			b.income = b.income.Add(tx.Amount)
		} else {
			b.expense = b.expense.Add(tx.Amount)
		}
	}

	ordered := make([]*bucketSums, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].at.Before(ordered[j].at) })

	labels := make([]string, len(ordered))
	income := make([]decimal.Decimal, len(ordered))
	expense := make([]decimal.Decimal, len(ordered))
	for i, b := range ordered {
		labels[i] = bucketLabel(b.at, w)
		income[i] = b.income
		expense[i] = b.expense
	}

	return ChartData{
		Labels: labels,
		Datasets: []Dataset{
			{Label: IncomeSeriesLabel, Data: income, Color: IncomeSeriesColor},
			{Label: ExpenseSeriesLabel, Data: expense, Color: ExpenseSeriesColor},
		},
	}
}

func bucketStart(t time.Time, w Window) time.Time {
	y, m, d := t.Date()
	switch w {
	case WindowDay:
		return time.Date(y, m, d, t.Hour(), 0, 0, 0, t.Location())
	case WindowMonth:
		return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	default:
		return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	}
}

func bucketLabel(t time.Time, w Window) string {
	switch w {
	case WindowDay:
		return t.Format("2006-01-02 15:00")
	case WindowMonth:
		return t.Format("2006-01-02")
	default:
		return t.Format("2006-01")
	}
}

// ComputeCategoryTotals sums expense amounts per category. Labels are sorted
// alphabetically so a given set of categories always gets the same colors.
func ComputeCategoryTotals(txs []Transaction) ChartData {
	totals := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		if !tx.IsExpense() {
			continue
		}
		sum, ok := totals[tx.Category]
		if !ok {
			sum = decimal.Zero
		}
		totals[tx.Category] = sum.Add(tx.Amount)
	}

	labels := make([]string, 0, len(totals))
	for label := range totals {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	data := make([]decimal.Decimal, len(labels))
	for i, label := range labels {
		data[i] = totals[label]
	}

	return ChartData{
		Labels: labels,
		Datasets: []Dataset{
			{Data: data, Colors: CategoryColors(len(labels))},
		},
	}
}

// CategoryColors spreads n hues around the color wheel by the golden angle.
func CategoryColors(n int) []string {
	colors := make([]string, n)
	for i := range colors {
		hue := math.Mod(float64(i)*137.5, 360)
		colors[i] = "hsl(" + strconv.FormatFloat(hue, 'f', -1, 64) + ", 70%, 50%)"
	}
	return colors
}
