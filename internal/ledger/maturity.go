package ledger

import (
	"fmt"
	"time"

	"caja/internal/core"
)

// MaturityStrategy computes the date a loan of term periods falls due. Terms
// are counted in meeting periods, so each group frequency has its own.
type MaturityStrategy interface {
	MaturityDate(originated core.Date, term int) core.Date
}

// WeeklyMaturity adds seven days per period.
type WeeklyMaturity struct{}

func (WeeklyMaturity) MaturityDate(originated core.Date, term int) core.Date {
	return core.DateOf(originated.AddDate(0, 0, 7*term))
}

// BiweeklyMaturity adds fourteen days per period.
type BiweeklyMaturity struct{}

func (BiweeklyMaturity) MaturityDate(originated core.Date, term int) core.Date {
	return core.DateOf(originated.AddDate(0, 0, 14*term))
}

// MonthlyMaturity adds calendar months, clamping to the last day of the
// target month (Jan 31 + 1 month is Feb 28/29, not Mar 3).
type MonthlyMaturity struct{}

func (MonthlyMaturity) MaturityDate(originated core.Date, term int) core.Date {
	y, m, d := originated.Date()
	target := time.Date(y, m+time.Month(term), 1, 0, 0, 0, 0, time.UTC)
	lastDay := time.Date(target.Year(), target.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if d > lastDay {
		d = lastDay
	}
	return core.NewDate(target.Year(), int(target.Month()), d)
}

var maturityStrategies = map[core.Frequency]MaturityStrategy{
	core.Weekly:   WeeklyMaturity{},
	core.Biweekly: BiweeklyMaturity{},
	core.Monthly:  MonthlyMaturity{},
}

// GetMaturityStrategy returns the strategy for a meeting frequency.
func GetMaturityStrategy(f core.Frequency) (MaturityStrategy, error) {
	s, ok := maturityStrategies[f]
	if !ok {
		return nil, fmt.Errorf("%w: unknown meeting frequency %q", core.ErrInvalidInput, f)
	}
	return s, nil
}
