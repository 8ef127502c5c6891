package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/diewo77/go-fees/internal/models"
)

// ReportType selects the aggregation produced by ReportService.Generate.
type ReportType string

const (
	ReportPaymentCollection ReportType = "payment_collection"
	ReportFeeBalance        ReportType = "fee_balance"
	ReportPaymentMethod     ReportType = "payment_method"
	ReportFinancialSummary  ReportType = "financial_summary"
)

// ReportParams filters the rows a report folds over. Zero values mean no filter.
type ReportParams struct {
	Type           ReportType
	StartDate      time.Time
	EndDate        time.Time
	AcademicYearID *uuid.UUID
	ClassID        *uuid.UUID
	PaymentMethod  models.PaymentMethod
}

// Bucket is a group of payments.
type Bucket struct {
	Key    string          `json:"key"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// BalanceBucket is a group of student fees.
type BalanceBucket struct {
	Key         string          `json:"key"`
	Count       int             `json:"count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	AmountPaid  decimal.Decimal `json:"amount_paid"`
	Balance     decimal.Decimal `json:"balance"`
}

type PaymentCollectionReport struct {
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
	ByDate   []Bucket        `json:"by_date"`
	ByMethod []Bucket        `json:"by_method"`
}

type FeeBalanceReport struct {
	Count       int             `json:"count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	AmountPaid  decimal.Decimal `json:"amount_paid"`
	Balance     decimal.Decimal `json:"balance"`
	ByClass     []BalanceBucket `json:"by_class"`
	ByStatus    []BalanceBucket `json:"by_status"`
}

type PaymentMethodReport struct {
	ByMethod   []Bucket `json:"by_method"`
	ByReceiver []Bucket `json:"by_receiver"`
}

// FinancialSummary combines the three reports with derived ratios.
// CollectionRate is the paid share of the total, in percent.
type FinancialSummary struct {
	Collection               PaymentCollectionReport `json:"collection"`
	Balances                 FeeBalanceReport        `json:"balances"`
	Methods                  PaymentMethodReport     `json:"methods"`
	CollectionRate           decimal.Decimal         `json:"collection_rate"`
	AveragePayment           decimal.Decimal         `json:"average_payment"`
	AverageFeePerStudent     decimal.Decimal         `json:"average_fee_per_student"`
	AverageBalancePerStudent decimal.Decimal         `json:"average_balance_per_student"`
}

// Report holds the section matching Type; the others are nil.
type Report struct {
	Type              ReportType               `json:"type"`
	GeneratedAt       time.Time                `json:"generated_at"`
	PaymentCollection *PaymentCollectionReport `json:"payment_collection,omitempty"`
	FeeBalance        *FeeBalanceReport        `json:"fee_balance,omitempty"`
	PaymentMethod     *PaymentMethodReport     `json:"payment_method,omitempty"`
	Summary           *FinancialSummary        `json:"financial_summary,omitempty"`
}

// ReportService reads payments and student fees for reporting. It never writes.
type ReportService struct {
	db   *gorm.DB
	opts Options
}

func NewReportService(db *gorm.DB, opts Options) *ReportService {
	return &ReportService{db: db, opts: opts.withDefaults()}
}

// Generate builds the report selected by p.Type.
func (s *ReportService) Generate(ctx context.Context, p ReportParams) (*Report, error) {
	if !p.StartDate.IsZero() && !p.EndDate.IsZero() && p.EndDate.Before(p.StartDate) {
		return nil, &InvalidArgumentError{Field: "end_date", Reason: "must not be before start_date"}
	}
	if p.PaymentMethod != "" && !p.PaymentMethod.Valid() {
		return nil, &InvalidArgumentError{Field: "payment_method", Reason: "unknown payment method " + string(p.PaymentMethod)}
	}
	r := &Report{Type: p.Type, GeneratedAt: s.opts.Now()}
	switch p.Type {
	case ReportPaymentCollection:
		payments, err := s.payments(ctx, p)
		if err != nil {
			return nil, err
		}
		c := CollectPayments(payments)
		r.PaymentCollection = &c
	case ReportFeeBalance:
		fees, err := s.fees(ctx, p)
		if err != nil {
			return nil, err
		}
		b := BalanceByFees(fees)
		r.FeeBalance = &b
	case ReportPaymentMethod:
		payments, err := s.payments(ctx, p)
		if err != nil {
			return nil, err
		}
		m := GroupByMethod(payments)
		r.PaymentMethod = &m
	case ReportFinancialSummary:
		payments, err := s.payments(ctx, p)
		if err != nil {
			return nil, err
		}
		fees, err := s.fees(ctx, p)
		if err != nil {
			return nil, err
		}
		sum := Summarize(CollectPayments(payments), BalanceByFees(fees), GroupByMethod(payments), s.opts.Places)
		r.Summary = &sum
	default:
		return nil, &InvalidArgumentError{Field: "report_type", Reason: "unknown report type " + string(p.Type)}
	}
	return r, nil
}

func (s *ReportService) payments(ctx context.Context, p ReportParams) ([]models.Payment, error) {
	q := s.db.WithContext(ctx).Model(&models.Payment{}).Where("status = ?", models.PaymentStatusCompleted)
	if !p.StartDate.IsZero() {
		q = q.Where("payment_date >= ?", p.StartDate.UTC())
	}
	if !p.EndDate.IsZero() {
		q = q.Where("payment_date <= ?", p.EndDate.UTC())
	}
	if p.AcademicYearID != nil {
		q = q.Where("academic_year_id = ?", *p.AcademicYearID)
	}
	if p.PaymentMethod != "" {
		q = q.Where("method = ?", p.PaymentMethod)
	}
	if p.ClassID != nil {
		sub := s.db.Model(&models.StudentFee{}).Select("id").Where("class_id = ?", *p.ClassID)
		q = q.Where("student_fee_id IN (?)", sub)
	}
	var out []models.Payment
	if err := q.Order("payment_date").Find(&out).Error; err != nil {
		return nil, persistence("load payments", err)
	}
	return out, nil
}

func (s *ReportService) fees(ctx context.Context, p ReportParams) ([]models.StudentFee, error) {
	q := applyFeeFilter(s.db.WithContext(ctx).Model(&models.StudentFee{}), StudentFeeFilter{
		AcademicYearID: p.AcademicYearID,
		ClassID:        p.ClassID,
	})
	var out []models.StudentFee
	if err := q.Find(&out).Error; err != nil {
		return nil, persistence("load student fees", err)
	}
	return out, nil
}

type bucketer map[string]*Bucket

func (b bucketer) add(key string, amount decimal.Decimal) {
	if _, ok := b[key]; !ok {
		b[key] = &Bucket{Key: key, Amount: decimal.Zero}
	}
	b[key].Count++
	b[key].Amount = b[key].Amount.Add(amount)
}

func (b bucketer) sorted() []Bucket {
	out := make([]Bucket, 0, len(b))
	for _, v := range b {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// CollectPayments totals payments and groups them by calendar day (UTC) and method.
func CollectPayments(payments []models.Payment) PaymentCollectionReport {
	byDate, byMethod := bucketer{}, bucketer{}
	r := PaymentCollectionReport{Total: decimal.Zero}
	for _, p := range payments {
		r.Total = r.Total.Add(p.Amount)
		r.Count++
		byDate.add(p.PaymentDate.UTC().Format("2006-01-02"), p.Amount)
		byMethod.add(string(p.Method), p.Amount)
	}
	r.ByDate = byDate.sorted()
	r.ByMethod = byMethod.sorted()
	return r
}

// GroupByMethod groups payments by method and by receiving user.
func GroupByMethod(payments []models.Payment) PaymentMethodReport {
	byMethod, byReceiver := bucketer{}, bucketer{}
	for _, p := range payments {
		byMethod.add(string(p.Method), p.Amount)
		byReceiver.add(p.ReceivedBy.String(), p.Amount)
	}
	return PaymentMethodReport{ByMethod: byMethod.sorted(), ByReceiver: byReceiver.sorted()}
}

// BalanceByFees totals student fees and groups them by class and status.
func BalanceByFees(fees []models.StudentFee) FeeBalanceReport {
	byClass := map[string]*BalanceBucket{}
	byStatus := map[string]*BalanceBucket{}
	add := func(m map[string]*BalanceBucket, key string, f models.StudentFee) {
		b, ok := m[key]
		if !ok {
			b = &BalanceBucket{Key: key, TotalAmount: decimal.Zero, AmountPaid: decimal.Zero, Balance: decimal.Zero}
			m[key] = b
		}
		b.Count++
		b.TotalAmount = b.TotalAmount.Add(f.TotalAmount)
		b.AmountPaid = b.AmountPaid.Add(f.AmountPaid)
		b.Balance = b.Balance.Add(f.Balance)
	}
	r := FeeBalanceReport{TotalAmount: decimal.Zero, AmountPaid: decimal.Zero, Balance: decimal.Zero}
	for _, f := range fees {
		r.Count++
		r.TotalAmount = r.TotalAmount.Add(f.TotalAmount)
		r.AmountPaid = r.AmountPaid.Add(f.AmountPaid)
		r.Balance = r.Balance.Add(f.Balance)
		add(byClass, f.ClassID.String(), f)
		add(byStatus, string(f.Status), f)
	}
	r.ByClass = sortedBalances(byClass)
	r.ByStatus = sortedBalances(byStatus)
	return r
}

func sortedBalances(m map[string]*BalanceBucket) []BalanceBucket {
	out := make([]BalanceBucket, 0, len(m))
	for _, v := range m {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Summarize derives the summary ratios. A zero denominator yields zero.
func Summarize(c PaymentCollectionReport, b FeeBalanceReport, m PaymentMethodReport, places int32) FinancialSummary {
	ratio := func(num, den decimal.Decimal) decimal.Decimal {
		if den.IsZero() {
			return decimal.Zero
		}
		return num.DivRound(den, places)
	}
	students := decimal.NewFromInt(int64(b.Count))
	return FinancialSummary{
		Collection:               c,
		Balances:                 b,
		Methods:                  m,
		CollectionRate:           ratio(b.AmountPaid.Mul(hundred), b.TotalAmount),
		AveragePayment:           ratio(c.Total, decimal.NewFromInt(int64(c.Count))),
		AverageFeePerStudent:     ratio(b.TotalAmount, students),
		AverageBalancePerStudent: ratio(b.Balance, students),
	}
}
