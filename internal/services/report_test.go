package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/go-fees/internal/models"
)

func TestCollectPayments(t *testing.T) {
	day1 := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 2, 2, 9, 0, 0, 0, time.UTC)
	payments := []models.Payment{
		{Amount: d("100"), PaymentDate: day1, Method: models.PaymentMethodCash},
		{Amount: d("250.50"), PaymentDate: day1.Add(3 * time.Hour), Method: models.PaymentMethodMobileMoney},
		{Amount: d("50"), PaymentDate: day2, Method: models.PaymentMethodCash},
	}
	r := CollectPayments(payments)
	assert.Equal(t, 3, r.Count)
	assert.True(t, r.Total.Equal(d("400.50")))
	require.Len(t, r.ByDate, 2)
	assert.Equal(t, "2025-02-01", r.ByDate[0].Key)
	assert.Equal(t, 2, r.ByDate[0].Count)
	assert.True(t, r.ByDate[0].Amount.Equal(d("350.50")))
	require.Len(t, r.ByMethod, 2)
	assert.Equal(t, "cash", r.ByMethod[0].Key)
	assert.True(t, r.ByMethod[0].Amount.Equal(d("150")))

	empty := CollectPayments(nil)
	assert.True(t, empty.Total.IsZero())
	assert.Empty(t, empty.ByDate)
}

func TestSummarizeZeroDenominators(t *testing.T) {
	s := Summarize(CollectPayments(nil), BalanceByFees(nil), GroupByMethod(nil), 2)
	assert.True(t, s.CollectionRate.IsZero())
	assert.True(t, s.AveragePayment.IsZero())
	assert.True(t, s.AverageFeePerStudent.IsZero())
	assert.True(t, s.AverageBalancePerStudent.IsZero())
}

func TestBalanceByFees(t *testing.T) {
	classA, classB := uuid.New(), uuid.New()
	fees := []models.StudentFee{
		{ClassID: classA, TotalAmount: d("1000"), AmountPaid: d("1000"), Balance: decimal.Zero, Status: models.FeeStatusPaid},
		{ClassID: classA, TotalAmount: d("1000"), AmountPaid: d("250"), Balance: d("750"), Status: models.FeeStatusPartial},
		{ClassID: classB, TotalAmount: d("600"), AmountPaid: decimal.Zero, Balance: d("600"), Status: models.FeeStatusPending},
	}
	r := BalanceByFees(fees)
	assert.Equal(t, 3, r.Count)
	assert.True(t, r.TotalAmount.Equal(d("2600")))
	assert.True(t, r.AmountPaid.Equal(d("1250")))
	assert.True(t, r.Balance.Equal(d("1350")))
	assert.Len(t, r.ByClass, 2)
	require.Len(t, r.ByStatus, 3)
	assert.Equal(t, "paid", r.ByStatus[0].Key)

	s := Summarize(PaymentCollectionReport{Total: d("1250"), Count: 3}, r, PaymentMethodReport{}, 2)
	assert.True(t, s.CollectionRate.Equal(d("48.08")), "rate %s", s.CollectionRate)
	assert.True(t, s.AveragePayment.Equal(d("416.67")))
	assert.True(t, s.AverageFeePerStudent.Equal(d("866.67")))
	assert.True(t, s.AverageBalancePerStudent.Equal(d("450")))
}

func TestGenerateReports(t *testing.T) {
	f := newFixture(t, 2)
	st := f.activeStructure("600", "400")
	res, err := f.assignment().AssignToClass(f.ctx, st.ID, f.user)
	require.NoError(t, err)
	require.Equal(t, 2, res.Created)

	other := models.Class{Name: "S2"}
	require.NoError(t, f.db.Create(&other).Error)

	feb10 := time.Date(2025, 2, 10, 10, 0, 0, 0, time.UTC)
	feb20 := time.Date(2025, 2, 20, 10, 0, 0, 0, time.UTC)
	pay := f.payments(nil)
	_, err = pay.RecordPayment(f.ctx, RecordPaymentInput{StudentFeeID: res.Fees[0].ID, Amount: d("100"), Method: models.PaymentMethodCash, PaymentDate: feb10, ReceivedBy: f.user})
	require.NoError(t, err)
	_, err = pay.RecordPayment(f.ctx, RecordPaymentInput{StudentFeeID: res.Fees[1].ID, Amount: d("300"), Method: models.PaymentMethodMobileMoney, PaymentDate: feb20, ReceivedBy: f.user})
	require.NoError(t, err)

	reports := NewReportService(f.db, f.opts)

	r, err := reports.Generate(f.ctx, ReportParams{Type: ReportPaymentCollection})
	require.NoError(t, err)
	require.NotNil(t, r.PaymentCollection)
	assert.Nil(t, r.FeeBalance)
	assert.Equal(t, 2, r.PaymentCollection.Count)
	assert.True(t, r.PaymentCollection.Total.Equal(d("400")))

	r, err = reports.Generate(f.ctx, ReportParams{
		Type:      ReportPaymentCollection,
		StartDate: time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, r.PaymentCollection.Count)
	assert.True(t, r.PaymentCollection.Total.Equal(d("300")))

	r, err = reports.Generate(f.ctx, ReportParams{Type: ReportPaymentMethod, PaymentMethod: models.PaymentMethodCash})
	require.NoError(t, err)
	require.Len(t, r.PaymentMethod.ByMethod, 1)
	assert.True(t, r.PaymentMethod.ByMethod[0].Amount.Equal(d("100")))
	require.Len(t, r.PaymentMethod.ByReceiver, 1)
	assert.Equal(t, f.user.String(), r.PaymentMethod.ByReceiver[0].Key)

	r, err = reports.Generate(f.ctx, ReportParams{Type: ReportPaymentCollection, ClassID: &other.ID})
	require.NoError(t, err)
	assert.Zero(t, r.PaymentCollection.Count)

	r, err = reports.Generate(f.ctx, ReportParams{Type: ReportFeeBalance, AcademicYearID: &f.year.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, r.FeeBalance.Count)
	assert.True(t, r.FeeBalance.Balance.Equal(d("1600")))

	r, err = reports.Generate(f.ctx, ReportParams{Type: ReportFinancialSummary, ClassID: &f.class.ID})
	require.NoError(t, err)
	require.NotNil(t, r.Summary)
	assert.True(t, r.Summary.CollectionRate.Equal(d("20")))
	assert.True(t, r.Summary.AveragePayment.Equal(d("200")))
	assert.True(t, r.Summary.AverageFeePerStudent.Equal(d("1000")))
	assert.True(t, r.Summary.AverageBalancePerStudent.Equal(d("800")))
	assert.Equal(t, testNow, r.GeneratedAt)
}

func TestGenerateRejects(t *testing.T) {
	f := newFixture(t, 0)
	reports := NewReportService(f.db, f.opts)
	var arg *InvalidArgumentError

	_, err := reports.Generate(f.ctx, ReportParams{Type: "aging"})
	require.ErrorAs(t, err, &arg)
	assert.Equal(t, "report_type", arg.Field)

	_, err = reports.Generate(f.ctx, ReportParams{
		Type:      ReportPaymentCollection,
		StartDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorAs(t, err, &arg)

	_, err = reports.Generate(f.ctx, ReportParams{Type: ReportPaymentMethod, PaymentMethod: "gold"})
	require.ErrorAs(t, err, &arg)
}
