package ledger

import (
	"caja/internal/core"

	"github.com/shopspring/decimal"
)

// shareScale is the number of decimals kept in reported savings shares.
const shareScale = 6

// Holding is one member's savings at close.
type Holding struct {
	MemberID int64
	Savings  core.Money
}

// Distribution is the result of splitting a cycle's net profit.
type Distribution struct {
	TotalSavings   core.Money
	NetProfit      core.Money
	NoDistribution bool
	PerMember      []core.MemberPayout
}

// Distribute splits cash − Σ savings across holdings in proportion to their
// savings. Each share is rounded half away from zero to the cent; whatever
// rounding leaves over goes to the largest saver (lowest member id on ties),
// so Σ profit shares equals the net profit and Σ payouts equals cash.
// Holdings must be ordered by member id. With no savings there is nothing to
// divide by and the result is flagged NoDistribution.
func Distribute(cash core.Money, holdings []Holding) Distribution {
	total := core.Zero
	for _, h := range holdings {
		total = total.Add(h.Savings)
	}
	d := Distribution{
		TotalSavings: total,
		NetProfit:    cash.Sub(total),
		PerMember:    []core.MemberPayout{},
	}
	if !total.IsPositive() {
		d.NoDistribution = true
		return d
	}

	largest := -1
	allocated := core.Zero
	for _, h := range holdings {
		if !h.Savings.IsPositive() {
			continue
		}
		share := d.NetProfit.MulRatio(h.Savings, total)
		allocated = allocated.Add(share)
		d.PerMember = append(d.PerMember, core.MemberPayout{
			MemberID:     h.MemberID,
			Savings:      h.Savings,
			SavingsShare: decimal.NewFromInt(h.Savings.Cents).DivRound(decimal.NewFromInt(total.Cents), shareScale),
			ProfitShare:  share,
		})
		// Strictly greater keeps the earliest, lowest id, on ties.
		if largest < 0 || h.Savings.GreaterThan(d.PerMember[largest].Savings) {
			largest = len(d.PerMember) - 1
		}
	}

	residual := d.NetProfit.Sub(allocated)
	d.PerMember[largest].ProfitShare = d.PerMember[largest].ProfitShare.Add(residual)
	for i := range d.PerMember {
		p := &d.PerMember[i]
		p.PayoutTotal = p.Savings.Add(p.ProfitShare)
	}
	return d
}
