package formatting

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fazecat/smarttrader/Internal/types"
	"github.com/fazecat/smarttrader/Internal/utils/scanner"
	"github.com/fazecat/smarttrader/Internal/utils/scoring"
)

// Separator returns a line separator of given width
func Separator(width int) string {
	return strings.Repeat("=", width)
}

// ParseDate accepts RFC3339 or a plain date in a few common layouts. The
// boolean is false when nothing matched.
func ParseDate(dateStr string) (time.Time, bool) {
	dateStr = strings.TrimSpace(dateStr)
	formats := []string{
		time.RFC3339,
		"2006-01-02", // YYYY-MM-DD (standard)
		"02/01/2006", // DD/MM/YYYY
		"02.01.2006", // DD.MM.YYYY
	}

	for _, format := range formats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func optPrice(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *p)
}

func PrintReport(w io.Writer, r *scoring.Report) {
	fmt.Fprintln(w, Separator(50))
	fmt.Fprintf(w, "%s  @ %.2f\n", r.Symbol, r.CurrentPrice)
	fmt.Fprintln(w, Separator(50))

	rec := r.Recommendation
	fmt.Fprintf(w, "Recommendation: %s (confidence %.2f)\n", rec.Action, rec.Confidence)
	fmt.Fprintf(w, "Target: %.2f  Stop: %.2f\n", rec.TargetPrice, rec.StopLoss)
	fmt.Fprintf(w, "Scores: overall %.2f [%s]  sentiment %.2f  technical %.2f  fundamental %.2f\n",
		rec.Scores.Overall, scoring.ScoreCategory(rec.Scores.Overall),
		rec.Scores.Sentiment, rec.Scores.Technical, rec.Scores.Fundamental)

	if r.Technical != nil {
		ind := r.Technical.Indicators
		if ind.RSI != nil {
			fmt.Fprintf(w, "RSI: %.1f (%s)\n", ind.RSI.Value, ind.RSI.Signal)
		}
		if ind.ATR != nil {
			fmt.Fprintf(w, "ATR: %.2f (%.2f%%)\n", ind.ATR.Value, ind.ATR.Percent)
		}
		if len(r.Technical.SupportResistance) > 0 {
			fmt.Fprintf(w, "Levels: %v\n", r.Technical.SupportResistance)
		}
	}
}

func PrintResults(w io.Writer, results []scanner.Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSYMBOL\tPRICE\tSTRENGTH\tSIGNALS")
	for i, r := range results {
		price := 0.0
		if r.Analysis != nil {
			price = r.Analysis.CurrentPrice
		}
		reasons := make([]string, len(r.Signals))
		for j, s := range r.Signals {
			reasons[j] = fmt.Sprintf("%s:%s", s.Direction, s.Reason)
		}
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%d\t%s\n", i+1, r.Symbol, price, r.Strength(), strings.Join(reasons, "; "))
	}
	tw.Flush()
}

func PrintRecommendations(w io.Writer, recs []types.Recommendation) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No active recommendations")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tACTION\tQTY\tPRIORITY\tRISK\tSTOP\tTARGET")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			r.ID, r.Type, r.Action, r.Quantity, r.Priority, r.RiskLevel, optPrice(r.StopLoss), optPrice(r.Target))
	}
	tw.Flush()
}

func PrintTrades(w io.Writer, trades []types.ExecutedTrade) {
	if len(trades) == 0 {
		fmt.Fprintln(w, "No executed trades")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSYMBOL\tACTION\tQTY\tORDER\tRECOMMENDATION")
	for _, t := range trades {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			t.Timestamp.Format("2006-01-02 15:04:05"), t.Symbol, t.Action, t.Quantity, t.OrderID, t.RecommendationID)
	}
	tw.Flush()
}

func PrintPositions(w io.Writer, positions []types.Position, value float64) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tQTY\tPRICE\tVALUE")
	for _, p := range positions {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\n", p.Symbol, p.Quantity, p.CurrentPrice, float64(p.Quantity)*p.CurrentPrice)
	}
	tw.Flush()
	fmt.Fprintf(w, "Portfolio value: %.2f\n", value)
}
