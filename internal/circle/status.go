// Package circle derives display state for a savings circle from its on-chain
// reads and stored participant flags. Everything here is pure.
package circle

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive     Status = "active"
	StatusDepositDue Status = "deposit_due"
	StatusCompleted  Status = "completed"
)

const secondsPerDay = 86400

// Reads are the contract fields a circle view depends on.
// A nil field means the read has not resolved yet.
type Reads struct {
	OperationCounter      *big.Int
	CurrentOperationIndex *big.Int
	RecurringAmount       *big.Int
	DepositFrequency      *big.Int // seconds between deposits

	// Optional: sum deposited in the current period. Nil falls back to an estimate.
	PeriodDeposits *big.Int

	// Viewer is the connected wallet, empty when nobody is connected.
	// ViewerHasDeposited is required whenever Viewer is set.
	Viewer             string
	ViewerHasDeposited *bool
}

// View is the derived presentation state of a circle
type View struct {
	Status                  Status     `json:"status"`
	CurrentWeek             int64      `json:"currentWeek"`
	TotalWeeks              int64      `json:"totalWeeks"`
	CurrentPot              string     `json:"currentPot"` // token base units
	CurrentPotIsEstimate    bool       `json:"currentPotIsEstimate"`
	RecurringAmount         string     `json:"recurringAmount"`
	DepositFrequencySeconds int64      `json:"depositFrequencySeconds"`
	NextPayout              time.Time  `json:"nextPayout"`
	LastPayout              *time.Time `json:"lastPayout,omitempty"`
}

// Ready reports whether every required read has resolved
func (r Reads) Ready() bool {
	if r.OperationCounter == nil || r.CurrentOperationIndex == nil ||
		r.RecurringAmount == nil || r.DepositFrequency == nil {
		return false
	}
	if r.Viewer != "" && r.ViewerHasDeposited == nil {
		return false
	}
	return true
}

// Derive computes the circle view. It returns false while any required read
// is unresolved so callers never show a half-computed status.
func Derive(r Reads, now time.Time) (View, bool) {
	if !r.Ready() {
		return View{}, false
	}

	totalWeeks := clampInt64(r.OperationCounter)
	if totalWeeks < 1 {
		totalWeeks = 1
	}

	// idx < totalWeeks keeps idx+1 from overflowing
	currentWeek := totalWeeks
	if idx := clampInt64(r.CurrentOperationIndex); idx < totalWeeks {
		currentWeek = idx + 1
	}
	if currentWeek < 1 {
		currentWeek = 1
	}

	status := StatusActive
	switch {
	case currentWeek >= totalWeeks:
		status = StatusCompleted
	case r.ViewerHasDeposited != nil && !*r.ViewerHasDeposited:
		status = StatusDepositDue
	}

	pot := r.PeriodDeposits
	estimate := false
	if pot == nil {
		pot = new(big.Int).Mul(r.RecurringAmount, big.NewInt(currentWeek))
		estimate = true
	}

	freq := clampInt64(r.DepositFrequency)
	if freq < 0 {
		freq = 0
	}
	days := int((freq + secondsPerDay - 1) / secondsPerDay)

	view := View{
		Status:                  status,
		CurrentWeek:             currentWeek,
		TotalWeeks:              totalWeeks,
		CurrentPot:              pot.String(),
		CurrentPotIsEstimate:    estimate,
		RecurringAmount:         r.RecurringAmount.String(),
		DepositFrequencySeconds: freq,
		NextPayout:              now.AddDate(0, 0, days),
	}
	if status == StatusCompleted {
		last := now.AddDate(0, 0, -days)
		view.LastPayout = &last
	}

	return view, true
}

// FormatUnits renders a base-unit amount with the token's decimals, e.g. 1500000 (6) -> "1.5"
func FormatUnits(amount string, decimals int32) string {
	v, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return "0"
	}
	return decimal.NewFromBigInt(v, -decimals).String()
}

func clampInt64(v *big.Int) int64 {
	if v.IsInt64() {
		return v.Int64()
	}
	if v.Sign() < 0 {
		return -1 << 63
	}
	return 1<<63 - 1
}
