// Package analytics computes performance metrics from a finished run's
// equity curve and fill ledger. It consumes the engine's report
// boundary; the simulation core never depends on it.
package analytics

import (
	"math"

	"quantbt/internal/engine"
	"quantbt/internal/models"
)

// tradingDaysPerYear annualizes daily return series.
const tradingDaysPerYear = 252

// annualRiskFreeRate is the rate used by the Sharpe calculation.
const annualRiskFreeRate = 0.05

// Report summarizes a run's performance.
type Report struct {
	RunID            string
	FinalEquity      float64
	TotalReturn      float64 // percent
	AnnualizedReturn float64 // percent
	MaxDrawdown      float64 // percent, positive number
	SharpeRatio      float64
	Volatility       float64 // annualized stddev of returns, percent
	RealizedPnL      float64
	UnrealizedPnL    float64
	TotalCommission  float64
	FillCount        int
	OrderCount       int
	RejectedOrders   int
	CancelledOrders  int
	ClosedTrades     int
	WinRate          float64 // percent of closed trades with positive PnL
	ProfitFactor     float64 // gross profit over gross loss
	AvgWin           float64
	AvgLoss          float64
}

// Analyze computes a performance report from a run result. Partial
// results from aborted runs are analyzed the same way.
func Analyze(result *engine.Result) *Report {
	rep := &Report{
		RunID:      result.RunID,
		FillCount:  len(result.Fills),
		OrderCount: len(result.Orders),
	}
	rep.RejectedOrders = len(result.OrdersByStatus(models.OrderStatusRejected))
	rep.CancelledOrders = len(result.OrdersByStatus(models.OrderStatusCancelled))
	rep.TotalCommission, _ = result.TotalCommission().Float64()

	starting, _ := result.StartingCash.Float64()
	final, _ := result.FinalEquity().Float64()
	rep.FinalEquity = final
	if starting > 0 {
		rep.TotalReturn = (final - starting) / starting * 100
	}

	if snap, ok := result.FinalSnapshot(); ok {
		rep.RealizedPnL, _ = snap.RealizedPnL.Float64()
		rep.UnrealizedPnL, _ = snap.UnrealizedPnL.Float64()
	}

	wins, losses := closedTradePnLs(result.Fills)
	rep.ClosedTrades = len(wins) + len(losses)
	if rep.ClosedTrades > 0 {
		rep.WinRate = float64(len(wins)) / float64(rep.ClosedTrades) * 100
	}
	var grossProfit, grossLoss float64
	for _, w := range wins {
		grossProfit += w
	}
	for _, l := range losses {
		grossLoss += -l
	}
	if len(wins) > 0 {
		rep.AvgWin = grossProfit / float64(len(wins))
	}
	if len(losses) > 0 {
		rep.AvgLoss = -grossLoss / float64(len(losses))
	}
	if grossLoss > 0 {
		rep.ProfitFactor = grossProfit / grossLoss
	}

	curve := equityValues(result.Snapshots)
	rep.MaxDrawdown = maxDrawdown(curve)

	returns := periodReturns(curve)
	mean, stddev := meanStddev(returns)
	rep.Volatility = stddev * math.Sqrt(tradingDaysPerYear) * 100
	rep.SharpeRatio = sharpe(mean, stddev)

	if len(result.Snapshots) > 1 && starting > 0 && final > 0 {
		days := result.Snapshots[len(result.Snapshots)-1].Timestamp.
			Sub(result.Snapshots[0].Timestamp).Hours() / 24
		if days > 0 {
			years := days / 365
			rep.AnnualizedReturn = (math.Pow(final/starting, 1/years) - 1) * 100
		}
	}

	return rep
}

// closedTradePnLs replays the fill ledger through a weighted-average
// position tracker and returns the realized PnL of every position-
// reducing fill, split into wins and losses. Fills that only extend a
// position produce no entry; zero-PnL closes land in losses.
func closedTradePnLs(fills []models.Fill) (wins, losses []float64) {
	type book struct {
		qty int64
		avg float64
	}
	books := make(map[string]*book)

	for i := range fills {
		f := &fills[i]
		price, _ := f.Price.Float64()
		signed := f.Quantity
		if f.Side == models.SideSell {
			signed = -signed
		}

		b := books[f.Symbol]
		if b == nil {
			b = &book{}
			books[f.Symbol] = b
		}

		if b.qty == 0 || (b.qty > 0) == (signed > 0) {
			// Extending: blend the average cost.
			total := float64(abs64(b.qty))*b.avg + float64(abs64(signed))*price
			b.qty += signed
			b.avg = total / float64(abs64(b.qty))
			continue
		}

		closed := abs64(signed)
		if held := abs64(b.qty); closed > held {
			closed = held
		}
		pnl := (price - b.avg) * float64(closed)
		if b.qty < 0 {
			pnl = -pnl
		}
		if pnl > 0 {
			wins = append(wins, pnl)
		} else {
			losses = append(losses, pnl)
		}

		b.qty += signed
		if b.qty != 0 && (b.qty > 0) == (signed > 0) {
			// Flipped through zero: the remainder opens at this price.
			b.avg = price
		}
	}
	return wins, losses
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func equityValues(snapshots []models.PortfolioSnapshot) []float64 {
	values := make([]float64, len(snapshots))
	for i := range snapshots {
		values[i], _ = snapshots[i].Equity.Float64()
	}
	return values
}

// maxDrawdown returns the largest peak-to-trough decline, in percent.
func maxDrawdown(curve []float64) float64 {
	var peak, maxDD float64
	for _, v := range curve {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD * 100
}

func periodReturns(curve []float64) []float64 {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		if curve[i-1] != 0 {
			returns = append(returns, (curve[i]-curve[i-1])/curve[i-1])
		}
	}
	return returns
}

func meanStddev(values []float64) (mean, stddev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

func sharpe(meanReturn, stddev float64) float64 {
	if stddev == 0 {
		return 0
	}
	riskFree := annualRiskFreeRate / tradingDaysPerYear
	return (meanReturn - riskFree) / stddev * math.Sqrt(tradingDaysPerYear)
}
