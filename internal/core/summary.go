package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Summary is the chart-ready view of one window.
type Summary struct {
	Window       Window          `json:"window"`
	Start        *time.Time      `json:"start,omitempty"`
	End          *time.Time      `json:"end,omitempty"`
	Count        int             `json:"count"`
	TotalIncome  decimal.Decimal `json:"totalIncome"`
	TotalExpense decimal.Decimal `json:"totalExpense"`
	Balance      decimal.Decimal `json:"balance"`
	TimeSeries   ChartData       `json:"timeSeries"`
	Categories   ChartData       `json:"categories"`
}

// Summarize filters txs to the window around now and folds them into both
// chart shapes plus running totals. Buckets are taken in now's location.
func Summarize(txs []Transaction, w Window, now time.Time) Summary {
	inWindow := FilterByWindowAt(txs, w, now)

	s := Summary{
		Window:       w,
		Count:        len(inWindow),
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
		TimeSeries:   ComputeTimeSeries(inWindow, w, now.Location()),
		Categories:   ComputeCategoryTotals(inWindow),
	}
	if start, end, ok := w.Bounds(now); ok {
		s.Start, s.End = &start, &end
	}
	for _, tx := range inWindow {
		if tx.IsIncome() {
			s.TotalIncome = s.TotalIncome.Add(tx.Amount)
		} else {
			s.TotalExpense = s.TotalExpense.Add(tx.Amount)
		}
	}
	s.Balance = s.TotalIncome.Sub(s.TotalExpense)
	return s
}
