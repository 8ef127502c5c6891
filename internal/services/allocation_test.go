package services

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/go-fees/internal/models"
)

func decimals(ss ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(ss))
	for i, s := range ss {
		out[i] = d(s)
	}
	return out
}

func assertDecimals(t *testing.T, want []string, got []decimal.Decimal) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, d(want[i]).Equal(got[i]), "index %d: want %s got %s", i, want[i], got[i])
	}
}

func TestProportionalSplit(t *testing.T) {
	tests := []struct {
		name     string
		balances []string
		amount   string
		want     []string
	}{
		{"even thirds", []string{"100000", "100000", "100000"}, "150000", []string{"50000", "50000", "50000"}},
		{"leftover cent", []string{"100", "100", "100"}, "100", []string{"33.34", "33.33", "33.33"}},
		{"weighted", []string{"300", "100"}, "200", []string{"150", "50"}},
		{"zero balance gets nothing", []string{"0", "50", "50"}, "30", []string{"0", "15", "15"}},
		{"full settlement", []string{"10.01", "20.02", "0.03"}, "30.06", []string{"10.01", "20.02", "0.03"}},
		{"single component", []string{"500"}, "0.01", []string{"0.01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ProportionalSplit(decimals(tt.balances...), d(tt.amount), 2)
			require.NoError(t, err)
			assertDecimals(t, tt.want, got)
		})
	}
}

func TestProportionalSplitRejects(t *testing.T) {
	var ia *InvalidAmountError
	_, err := ProportionalSplit(decimals("100", "100"), d("200.01"), 2)
	require.ErrorAs(t, err, &ia)
	_, err = ProportionalSplit(decimals("100"), decimal.Zero, 2)
	require.ErrorAs(t, err, &ia)
	_, err = ProportionalSplit(decimals("100"), d("-5"), 2)
	require.ErrorAs(t, err, &ia)
}

// Random splits must add up exactly and never exceed a balance.
func TestProportionalSplitConserves(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 500; i++ {
		n := 1 + r.IntN(6)
		balances := make([]decimal.Decimal, n)
		total := decimal.Zero
		for j := range balances {
			balances[j] = decimal.New(int64(r.IntN(10_000_000)), -2)
			total = total.Add(balances[j])
		}
		if !total.IsPositive() {
			continue
		}
		cents := total.Shift(2).IntPart()
		amount := decimal.New(1+r.Int64N(cents), -2)
		shares, err := ProportionalSplit(balances, amount, 2)
		require.NoError(t, err)
		sum := decimal.Sum(decimal.Zero, shares...)
		require.True(t, sum.Equal(amount), "sum %s != amount %s", sum, amount)
		for j, s := range shares {
			require.False(t, s.IsNegative())
			require.True(t, s.LessThanOrEqual(balances[j]), "share %s > balance %s", s, balances[j])
			require.True(t, s.Equal(s.Round(2)))
		}
	}
}

func TestInstallmentAmounts(t *testing.T) {
	got := InstallmentAmounts(d("200000"), decimals("40", "30", "30"), 2)
	assertDecimals(t, []string{"80000", "60000", "60000"}, got)

	got = InstallmentAmounts(d("1000"), decimals("33.33", "33.33", "33.34"), 2)
	assertDecimals(t, []string{"333.30", "333.30", "333.40"}, got)

	got = InstallmentAmounts(d("100.01"), decimals("50", "50"), 2)
	assertDecimals(t, []string{"50.01", "50.00"}, got)
	assert.True(t, decimal.Sum(decimal.Zero, got...).Equal(d("100.01")))
}

func TestCreditInstallments(t *testing.T) {
	jan := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	may := time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC)
	sep := time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)
	ins := []models.StudentFeeInstallment{
		{Position: 0, Installment: models.Installment{Name: "Term 2", DueDate: may}, Amount: d("300"), AmountPaid: decimal.Zero},
		{Position: 1, Installment: models.Installment{Name: "Term 1", DueDate: jan}, Amount: d("400"), AmountPaid: d("100")},
		{Position: 2, Installment: models.Installment{Name: "Term 3", DueDate: sep}, Amount: d("300"), AmountPaid: decimal.Zero},
	}

	left := CreditInstallments(ins, d("450"))
	assert.True(t, left.IsZero())
	assert.True(t, ins[1].AmountPaid.Equal(d("400")), "earliest installment is filled first")
	assert.True(t, ins[0].AmountPaid.Equal(d("150")))
	assert.True(t, ins[2].AmountPaid.IsZero())

	left = CreditInstallments(ins, d("500"))
	assert.True(t, left.Equal(d("50")))
	assert.True(t, ins[0].AmountPaid.Equal(d("300")))
	assert.True(t, ins[2].AmountPaid.Equal(d("300")))
}

func TestRecomputeDerivedFields(t *testing.T) {
	past := testNow.AddDate(0, -1, 0)
	future := testNow.AddDate(0, 2, 0)
	fee := &models.StudentFee{
		TotalAmount: d("300"),
		AmountPaid:  d("120"),
		DueDate:     future,
		Components: []models.StudentFeeComponent{
			{FeeComponent: models.FeeComponent{Name: "Tuition", Amount: d("100")}, AmountPaid: d("100")},
			{FeeComponent: models.FeeComponent{Name: "Boarding", Amount: d("100")}, AmountPaid: d("20")},
			{FeeComponent: models.FeeComponent{Name: "Uniform", Amount: d("100"), DueDate: &past}, AmountPaid: decimal.Zero},
			{FeeComponent: models.FeeComponent{Name: "Library", Amount: d("0")}, AmountPaid: decimal.Zero},
		},
		Installments: []models.StudentFeeInstallment{
			{Installment: models.Installment{Name: "Term 1", DueDate: past}, Amount: d("150"), AmountPaid: d("120")},
			{Installment: models.Installment{Name: "Term 2", DueDate: future}, Amount: d("150"), AmountPaid: decimal.Zero},
		},
	}
	RecomputeDerivedFields(fee, testNow)

	requireBalanceInvariant(t, fee)
	assert.Equal(t, models.FeeStatusPartial, fee.Status)
	assert.True(t, fee.Balance.Equal(d("180")))
	assert.Equal(t, models.FeeStatusPaid, fee.Components[0].Status)
	assert.Equal(t, models.FeeStatusPartial, fee.Components[1].Status)
	assert.Equal(t, models.FeeStatusOverdue, fee.Components[2].Status)
	assert.Equal(t, models.FeeStatusPaid, fee.Components[3].Status)
	assert.Equal(t, models.FeeStatusPartial, fee.Installments[0].Status)
	assert.Equal(t, models.FeeStatusPending, fee.Installments[1].Status)

	fee.AmountPaid = decimal.Zero
	fee.DueDate = past
	RecomputeDerivedFields(fee, testNow)
	assert.Equal(t, models.FeeStatusOverdue, fee.Status)
}
