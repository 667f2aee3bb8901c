package circle

import (
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(v bool) *bool { return &v }

func baseReads(counter, index int64) Reads {
	return Reads{
		OperationCounter:      big.NewInt(counter),
		CurrentOperationIndex: big.NewInt(index),
		RecurringAmount:       big.NewInt(10_000_000),
		DepositFrequency:      big.NewInt(7 * secondsPerDay),
	}
}

func TestDeriveCompletedOnLastWeek(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	view, ok := Derive(baseReads(4, 3), now)
	require.True(t, ok)

	assert.Equal(t, int64(4), view.CurrentWeek)
	assert.Equal(t, int64(4), view.TotalWeeks)
	assert.Equal(t, StatusCompleted, view.Status)
	require.NotNil(t, view.LastPayout)
	assert.Equal(t, now.AddDate(0, 0, -7), *view.LastPayout)
	assert.Equal(t, now.AddDate(0, 0, 7), view.NextPayout)
}

func TestDeriveDepositDueForViewerWithoutDeposit(t *testing.T) {
	r := baseReads(4, 1)
	r.Viewer = "0xabc"
	r.ViewerHasDeposited = boolPtr(false)

	view, ok := Derive(r, time.Now())
	require.True(t, ok)
	assert.Equal(t, StatusDepositDue, view.Status)
	assert.Equal(t, int64(2), view.CurrentWeek)
	assert.Nil(t, view.LastPayout)
}

func TestDeriveActiveWhenViewerDeposited(t *testing.T) {
	r := baseReads(4, 1)
	r.Viewer = "0xabc"
	r.ViewerHasDeposited = boolPtr(true)

	view, ok := Derive(r, time.Now())
	require.True(t, ok)
	assert.Equal(t, StatusActive, view.Status)
}

func TestDeriveActiveWithoutViewer(t *testing.T) {
	view, ok := Derive(baseReads(4, 0), time.Now())
	require.True(t, ok)
	assert.Equal(t, StatusActive, view.Status)
	assert.Equal(t, int64(1), view.CurrentWeek)
}

func TestDeriveNoDataWhileLoading(t *testing.T) {
	cases := map[string]func(r *Reads){
		"counter":   func(r *Reads) { r.OperationCounter = nil },
		"index":     func(r *Reads) { r.CurrentOperationIndex = nil },
		"amount":    func(r *Reads) { r.RecurringAmount = nil },
		"frequency": func(r *Reads) { r.DepositFrequency = nil },
		"viewer deposit": func(r *Reads) {
			r.Viewer = "0xabc"
			r.ViewerHasDeposited = nil
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			r := baseReads(4, 1)
			mutate(&r)
			_, ok := Derive(r, time.Now())
			assert.False(t, ok)
		})
	}
}

func TestDeriveClampsWeeks(t *testing.T) {
	view, ok := Derive(baseReads(0, 5), time.Now())
	require.True(t, ok)
	assert.Equal(t, int64(1), view.TotalWeeks)
	assert.Equal(t, int64(1), view.CurrentWeek)
	assert.Equal(t, StatusCompleted, view.Status)
}

func TestDeriveHugeIndexDoesNotWrap(t *testing.T) {
	for _, index := range []*big.Int{
		big.NewInt(math.MaxInt64),
		new(big.Int).Lsh(big.NewInt(1), 80),
	} {
		r := baseReads(4, 0)
		r.CurrentOperationIndex = index

		view, ok := Derive(r, time.Now())
		require.True(t, ok)
		assert.Equal(t, int64(4), view.CurrentWeek, index.String())
		assert.Equal(t, StatusCompleted, view.Status, index.String())
		assert.Equal(t, "40000000", view.CurrentPot, index.String())
	}

	r := baseReads(4, 0)
	r.CurrentOperationIndex = big.NewInt(-3)
	view, ok := Derive(r, time.Now())
	require.True(t, ok)
	assert.Equal(t, int64(1), view.CurrentWeek)
}

func TestDerivePotPrefersOnChainSum(t *testing.T) {
	r := baseReads(5, 2)
	view, ok := Derive(r, time.Now())
	require.True(t, ok)
	assert.Equal(t, "30000000", view.CurrentPot)
	assert.True(t, view.CurrentPotIsEstimate)

	r.PeriodDeposits = big.NewInt(20_000_000)
	view, ok = Derive(r, time.Now())
	require.True(t, ok)
	assert.Equal(t, "20000000", view.CurrentPot)
	assert.False(t, view.CurrentPotIsEstimate)
}

func TestDeriveRoundsPartialDaysUp(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := baseReads(5, 0)
	r.DepositFrequency = big.NewInt(secondsPerDay + 1)

	view, ok := Derive(r, now)
	require.True(t, ok)
	assert.Equal(t, now.AddDate(0, 0, 2), view.NextPayout)
}

func TestDeriveIsIdempotent(t *testing.T) {
	now := time.Now()
	r := baseReads(6, 2)
	first, ok1 := Derive(r, now)
	second, ok2 := Derive(r, now)
	assert.Equal(t, ok1, ok2)
	assert.Equal(t, first, second)
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "1.5", FormatUnits("1500000", 6))
	assert.Equal(t, "10", FormatUnits("10000000", 6))
	assert.Equal(t, "0", FormatUnits("garbage", 6))
}
