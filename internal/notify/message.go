package notify

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// OpportunityMessage renders a detected cycle for chat.
func OpportunityMessage(rec domain.OpportunityRecord) (title, body string) {
	opp := rec.Opportunity
	title = fmt.Sprintf("Triangular arb: %s %s %+.2f bps", rec.Triangle, opp.Path, opp.ProfitBps)

	var b strings.Builder
	fmt.Fprintf(&b, "Profit: %.4f on %.2f (out %.4f)\n", opp.ProfitAmount, opp.InputAmount, opp.OutputAmount)
	for _, leg := range rec.Legs {
		action := "buy"
		if leg.Side == domain.Bid {
			action = "sell"
		}
		fmt.Fprintf(&b, "%s %s @ %g\n", action, leg.Symbol, leg.Price)
	}
	fmt.Fprintf(&b, "Detected: %s", rec.DetectedAt.UTC().Format("2006-01-02 15:04:05.000 MST"))
	return title, b.String()
}

// ReplayMessage summarises a finished replay.
func ReplayMessage(r domain.ReplayReport) (title, body string) {
	title = fmt.Sprintf("Replay finished: %s", r.Triangle)
	body = fmt.Sprintf("Updates: %d applied, %d rejected\nOpportunities: %d (forward %d, reverse %d)\nTotal profit: %.4f, avg %.2f bps\nElapsed: %s",
		r.UpdatesApplied, r.UpdatesRejected,
		r.Opportunities, r.ForwardCount, r.ReverseCount,
		r.TotalProfit, r.AvgProfitBps,
		r.Elapsed,
	)
	return title, body
}
