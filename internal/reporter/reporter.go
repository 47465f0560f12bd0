// Package reporter summarizes a finished session into performance metrics
// and renders them as a terminal report.
package reporter

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"stratx-trader-go/internal/account"
)

// Summary holds the computed session metrics.
type Summary struct {
	InitialBalance float64
	FinalBalance   float64
	TotalProfit    float64
	ProfitPercent  float64

	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64
	AvgHolding    time.Duration

	BestTrade  *account.Trade // highest realized profit
	WorstTrade *account.Trade // lowest realized profit

	closeReasons map[string]int
}

// Summarize computes the metrics over an account's closed trades. Open
// trades (when a session keeps positions across runs) are skipped.
func Summarize(acct *account.Account) *Summary {
	s := &Summary{
		InitialBalance: acct.InitialBalance(),
		FinalBalance:   acct.Balance(),
		closeReasons:   make(map[string]int),
	}
	s.TotalProfit = s.FinalBalance - s.InitialBalance
	if s.InitialBalance != 0 {
		s.ProfitPercent = s.TotalProfit / s.InitialBalance * 100
	}

	var holdingMs int64
	for _, t := range acct.Trades() {
		if t.IsOpen() {
			continue
		}
		s.TotalTrades++
		s.closeReasons[t.CloseReason()]++
		holdingMs += t.HoldingTime(0)

		profit := t.RealizedProfit()
		if profit > 0 {
			s.WinningTrades++
		} else {
			s.LosingTrades++
		}
		if s.BestTrade == nil || profit > s.BestTrade.RealizedProfit() {
			s.BestTrade = t
		}
		if s.WorstTrade == nil || profit < s.WorstTrade.RealizedProfit() {
			s.WorstTrade = t
		}
	}

	if s.TotalTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
		s.AvgHolding = time.Duration(holdingMs/int64(s.TotalTrades)) * time.Millisecond
	}
	return s
}

// CloseReasons returns how often each close reason occurred.
func (s *Summary) CloseReasons() map[string]int { return s.closeReasons }

// Render writes the report tables to w.
func (s *Summary) Render(w io.Writer, symbol string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("Session Report: %s", symbol))

	t.AppendRows([]table.Row{
		{"Initial Balance", fmt.Sprintf("%.2f", s.InitialBalance)},
		{"Final Balance", fmt.Sprintf("%.2f", s.FinalBalance)},
		{"Total Profit", fmt.Sprintf("%+.2f (%+.2f%%)", s.TotalProfit, s.ProfitPercent)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Closed Trades", s.TotalTrades},
		{"Winning / Losing", fmt.Sprintf("%d / %d", s.WinningTrades, s.LosingTrades)},
		{"Win Rate", fmt.Sprintf("%.2f%%", s.WinRate)},
		{"Avg Holding Time", s.AvgHolding.Round(time.Second)},
	})
	if s.BestTrade != nil {
		t.AppendSeparator()
		t.AppendRows([]table.Row{
			{"Best Trade", tradeLine(s.BestTrade)},
			{"Worst Trade", tradeLine(s.WorstTrade)},
		})
	}
	t.Render()

	if len(s.closeReasons) > 0 {
		rt := table.NewWriter()
		rt.SetOutputMirror(w)
		rt.SetStyle(table.StyleLight)
		rt.AppendHeader(table.Row{"Close Reason", "Count"})
		for _, reason := range []string{
			account.ReasonTakeProfit, account.ReasonStopLoss, account.ReasonTrailingStop,
			account.ReasonIndicatorSignal, account.ReasonSessionEnd,
			account.ReasonOrderRejected, account.ReasonOrderFailed,
		} {
			if n, ok := s.closeReasons[reason]; ok {
				rt.AppendRow(table.Row{reason, n})
			}
		}
		rt.Render()
	}
}

func tradeLine(t *account.Trade) string {
	return fmt.Sprintf("%+.2f (%+.2f%%) in %.0fs, %s",
		t.RealizedProfit(), t.ProfitPercent(t.ExitPrice()),
		float64(t.HoldingTime(0))/1000, t.CloseReason())
}
